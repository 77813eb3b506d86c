package main

import (
	"flag"
	"log"
	"os"
	"strings"

	"github.com/wicketlens/WicketLens/pkg/wicketlens"
)

var (
	port           int
	dbPath         string
	tempDir        string
	backendURL     string
	allowedOrigins string
)

func init() {
	flag.IntVar(&port, "port", 8080, "HTTP server port")
	flag.StringVar(&dbPath, "db", getEnvOrDefault("WICKETLENS_DB_PATH", "wicketlens.sqlite3"), "Path to SQLite database")
	flag.StringVar(&tempDir, "temp", getEnvOrDefault("WICKETLENS_TEMP_DIR", "/tmp"), "Temporary directory for uploads")
	flag.StringVar(&backendURL, "backend", os.Getenv("WICKETLENS_BACKEND_URL"), "Live analysis backend URL (empty for simulation mode)")
	flag.StringVar(&allowedOrigins, "origins", "*", "Comma-separated list of allowed CORS origins (use * for all)")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	flag.Parse()

	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		log.Fatalf("Failed to create temp dir %s: %v", tempDir, err)
	}

	var origins []string
	if allowedOrigins == "*" {
		origins = []string{"*"}
	} else {
		origins = strings.Split(allowedOrigins, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
	}

	service, err := wicketlens.NewService(
		wicketlens.WithDBPath(dbPath),
		wicketlens.WithBackendURL(backendURL),
	)
	if err != nil {
		log.Fatalf("Failed to create service: %v", err)
	}
	defer service.Close()

	config := &ServerConfig{
		Port:           port,
		DBPath:         dbPath,
		TempDir:        tempDir,
		BackendURL:     backendURL,
		AllowedOrigins: origins,
	}

	server := NewServer(service, config)
	if err := server.Start(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
