package wicketlens

import "net/http"

// Config carries service construction options.
type Config struct {
	DBPath     string
	BackendURL string
	HTTPClient *http.Client
	Logger     Logger
	Storage    Storage
	Repository Repository
	Backend    Backend
}

type Option func(*Config)

// WithDBPath points the default sqlite store at a file.
func WithDBPath(path string) Option {
	return func(c *Config) { c.DBPath = path }
}

// WithBackendURL enables live analysis against the backend at url. Empty
// means simulation-only.
func WithBackendURL(url string) Option {
	return func(c *Config) { c.BackendURL = url }
}

// WithHTTPClient substitutes the HTTP client used for the live backend.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Config) { c.HTTPClient = h }
}

func WithLogger(log Logger) Option {
	return func(c *Config) { c.Logger = log }
}

// WithStorage injects a durable store (nil disables durable persistence).
func WithStorage(s Storage) Option {
	return func(c *Config) { c.Storage = s }
}

// WithRepository injects the session log implementation.
func WithRepository(r Repository) Option {
	return func(c *Config) { c.Repository = r }
}

// WithBackend injects a live backend implementation directly (tests).
func WithBackend(b Backend) Option {
	return func(c *Config) { c.Backend = b }
}

func defaultConfig() *Config {
	return &Config{
		DBPath: "wicketlens.sqlite3",
	}
}
