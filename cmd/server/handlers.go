package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/wicketlens/WicketLens/pkg/logger"
	"github.com/wicketlens/WicketLens/pkg/models"
	"github.com/wicketlens/WicketLens/pkg/wicketlens"
)

const serverVersion = "1.0.0"

// Server encapsulates the HTTP server and its dependencies.
type Server struct {
	service wicketlens.Service
	config  *ServerConfig
	log     *logger.Logger
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Port           int
	DBPath         string
	TempDir        string
	BackendURL     string
	AllowedOrigins []string
}

// NewServer creates a new server instance.
func NewServer(service wicketlens.Service, config *ServerConfig) *Server {
	return &Server{
		service: service,
		config:  config,
		log:     logger.GetLogger(),
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Errorf("Failed to encode JSON response: %v", err)
	}
}

func (s *Server) respondError(w http.ResponseWriter, statusCode int, message string) {
	s.respondJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	})
}

// ownerID identifies the caller. Empty means unauthenticated: results then
// live only in the session log for this process.
func ownerID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-User-ID"))
}

// handleRoot handles GET /
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"service": "WicketLens API",
		"version": serverVersion,
		"endpoints": map[string]string{
			"health":  "GET /health",
			"analyze": "POST /api/analyze",
			"result":  "GET /api/result/{id}",
			"delete":  "DELETE /api/result/{id}",
			"history": "GET /api/history?limit=N",
			"stats":   "GET /api/stats",
			"metrics": "GET /api/metrics",
		},
	})
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	online := s.service.BackendOnline(r.Context())
	mode := "simulation"
	if online {
		mode = "live"
	}
	s.respondJSON(w, http.StatusOK, HealthResponse{
		Status:        "healthy",
		Version:       serverVersion,
		BackendOnline: online,
		Mode:          mode,
		Time:          time.Now().Format(time.RFC3339),
	})
}

// handleAnalyze handles POST /api/analyze. The response is a framed event
// stream: one `data: ` frame per pipeline step, then a terminal result or
// error frame, each followed by a blank line.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Minute)
	defer cancel()

	if err := r.ParseMultipartForm(500 << 20); err != nil {
		s.log.Errorf("Failed to parse form: %v", err)
		s.respondError(w, http.StatusBadRequest, "Failed to parse form data")
		return
	}

	file, header, err := r.FormFile("video")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "video file is required")
		return
	}
	defer file.Close()

	cfg := models.DefaultMatchConfig()
	if settings := r.FormValue("settings"); settings != "" {
		if err := json.Unmarshal([]byte(settings), &cfg); err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid settings payload")
			return
		}
		cfg = cfg.WithDefaults()
	}

	// The upload is staged on disk so fingerprinting can re-read it in
	// fixed-size chunks. It keeps its original basename inside a per-request
	// directory: the report id is derived from content plus that name, so a
	// synthetic prefix would break identity across re-uploads.
	stageDir, err := os.MkdirTemp(s.config.TempDir, "wicketlens-upload-")
	if err != nil {
		s.log.Errorf("Failed to create staging dir: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to process upload")
		return
	}
	defer os.RemoveAll(stageDir)

	baseName := filepath.Base(header.Filename)
	if baseName == "." || baseName == "/" || baseName == "" {
		baseName = "upload"
	}
	tempFile := filepath.Join(stageDir, baseName)
	out, err := os.Create(tempFile)
	if err != nil {
		s.log.Errorf("Failed to create temp file: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to process upload")
		return
	}

	if _, err := io.Copy(out, file); err != nil {
		out.Close()
		s.log.Errorf("Failed to save file: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to save uploaded file")
		return
	}
	out.Close()

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.respondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	writeFrame := func(frame streamFrame) {
		payload, err := json.Marshal(frame)
		if err != nil {
			s.log.Errorf("Failed to encode frame: %v", err)
			return
		}
		fmt.Fprintf(w, "data: %s\n\n", payload)
		flusher.Flush()
	}

	onProgress := func(pct float64) {
		writeFrame(streamFrame{Type: "progress", Progress: pct})
	}
	onStep := func(step models.Step) {
		writeFrame(streamFrame{Type: "step", Name: step.Name, Status: step.Status})
	}

	report, err := s.service.Analyze(ctx, ownerID(r), tempFile, cfg, onProgress, onStep)
	if err != nil {
		s.log.Errorf("Analysis failed for %s: %v", header.Filename, err)
		writeFrame(streamFrame{Type: "error", Message: err.Error()})
		return
	}
	writeFrame(streamFrame{Type: "result", Report: report})
}

// handleResult handles GET and DELETE on /api/result/{id}
func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/result/")
	if id == "" || strings.Contains(id, "/") {
		s.respondError(w, http.StatusBadRequest, "Analysis ID required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		report, err := s.service.GetResult(r.Context(), ownerID(r), id)
		if err != nil {
			s.respondError(w, http.StatusNotFound, fmt.Sprintf("Analysis %s not found", id))
			return
		}
		s.respondJSON(w, http.StatusOK, report)
	case http.MethodDelete:
		ok, err := s.service.Remove(r.Context(), ownerID(r), id)
		if err != nil || !ok {
			s.respondError(w, http.StatusNotFound, fmt.Sprintf("Analysis %s not found", id))
			return
		}
		s.respondJSON(w, http.StatusOK, DeleteResponse{Success: true, ID: id})
	default:
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// handleHistory handles GET /api/history
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	entries, err := s.service.ListHistory(r.Context(), ownerID(r), limit)
	if err != nil {
		s.log.Errorf("Failed to list history: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve history")
		return
	}
	s.respondJSON(w, http.StatusOK, HistoryResponse{Analyses: entries, Count: len(entries)})
}

// handleStats handles GET /api/stats
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.service.GetStats(r.Context(), ownerID(r))
	if err != nil {
		s.log.Errorf("Failed to compute stats: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve stats")
		return
	}
	s.respondJSON(w, http.StatusOK, stats)
}

// handleMetrics handles GET /api/metrics
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	metrics, err := s.service.GetMetrics(r.Context(), ownerID(r))
	if err != nil {
		s.log.Errorf("Failed to compute metrics: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve metrics")
		return
	}
	s.respondJSON(w, http.StatusOK, metrics)
}

// handleAnalyzeRoute guards the method on /api/analyze
func (s *Server) handleAnalyzeRoute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	s.handleAnalyze(w, r)
}
