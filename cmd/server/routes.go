package main

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/wicketlens/WicketLens/pkg/logger"
)

// setupRoutes registers all HTTP routes and middleware.
func (s *Server) setupRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/health", s.handleHealth)

	mux.HandleFunc("/api/analyze", s.handleAnalyzeRoute)
	mux.HandleFunc("/api/result/", s.handleResult)
	mux.HandleFunc("/api/history", s.handleHistory)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/api/metrics", s.handleMetrics)

	return corsMiddleware(s.config.AllowedOrigins)(requestIDMiddleware(mux))
}

// requestIDMiddleware tags every request with an id for log correlation.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		logger.Debugf("%s %s [%s]", r.Method, r.URL.Path, id)
		next.ServeHTTP(w, r)
	})
}

// corsMiddleware adds CORS headers to responses.
func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			allowed := false
			if len(allowedOrigins) == 0 || (len(allowedOrigins) == 1 && allowedOrigins[0] == "*") {
				w.Header().Set("Access-Control-Allow-Origin", "*")
				allowed = true
			} else {
				for _, allowedOrigin := range allowedOrigins {
					if allowedOrigin == origin {
						w.Header().Set("Access-Control-Allow-Origin", origin)
						allowed = true
						break
					}
				}
			}

			if allowed {
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-User-ID, X-Requested-With")
				w.Header().Set("Access-Control-Max-Age", "3600")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	handler := s.setupRoutes()

	addr := fmt.Sprintf(":%d", s.config.Port)
	s.log.Infof("WicketLens server starting on %s", addr)
	s.log.Infof("   Database: %s", s.config.DBPath)
	if s.config.BackendURL != "" {
		s.log.Infof("   Analysis backend: %s", s.config.BackendURL)
	} else {
		s.log.Infof("   Analysis backend: none (simulation mode)")
	}
	s.log.Infof("Endpoints:")
	s.log.Infof("   GET    /health            - Health check")
	s.log.Infof("   POST   /api/analyze       - Analyze a video (event stream)")
	s.log.Infof("   GET    /api/result/{id}   - Fetch a decision report")
	s.log.Infof("   DELETE /api/result/{id}   - Delete a decision report")
	s.log.Infof("   GET    /api/history       - Analysis history")
	s.log.Infof("   GET    /api/stats         - Aggregate stats")
	s.log.Infof("   GET    /api/metrics       - Distribution metrics")

	return http.ListenAndServe(addr, handler)
}
