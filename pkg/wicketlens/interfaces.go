package wicketlens

import (
	"context"

	"github.com/wicketlens/WicketLens/pkg/models"
)

// Service is the public facade over analysis, reconciliation and history.
type Service interface {
	// Analyze fingerprints the video, produces a report (streamed from the
	// live backend when one is reachable, synthesized otherwise) and
	// persists it best-effort. onProgress receives fingerprint percentages,
	// onStep receives pipeline stage updates; both may be nil.
	Analyze(ctx context.Context, ownerID, videoPath string, cfg models.MatchConfig, onProgress func(float64), onStep func(models.Step)) (*models.DecisionReport, error)

	GetResult(ctx context.Context, ownerID, reportID string) (*models.DecisionReport, error)
	ListHistory(ctx context.Context, ownerID string, limit int) ([]models.HistoryEntry, error)
	GetStats(ctx context.Context, ownerID string) (*models.StatsSummary, error)
	GetMetrics(ctx context.Context, ownerID string) (*models.MetricsSummary, error)

	// Remove deletes the report from every source it can reach. It reports
	// true when the item was present somewhere, or when a durable delete
	// was attempted (the durable store is presumed authoritative).
	Remove(ctx context.Context, ownerID, reportID string) (bool, error)

	// BackendOnline reports whether a live analysis backend is reachable.
	BackendOnline(ctx context.Context) bool

	Close() error
}

// Storage is the durable per-owner store.
type Storage interface {
	Upsert(ownerID string, report *models.DecisionReport) error
	Get(ownerID, reportID string) (*models.DecisionReport, error) // (nil, nil) on miss
	List(ownerID string) ([]*models.DecisionReport, error)
	Delete(ownerID, reportID string) (bool, error)
	Close() error
}

// Repository is the transient in-memory session log. Entries are appended,
// removed or searched, never mutated in place.
type Repository interface {
	List() []*models.DecisionReport
	Get(reportID string) *models.DecisionReport
	Upsert(report *models.DecisionReport)
	Remove(reportID string) bool
}

// Backend is a live analysis service (see the stream package for the real
// implementation).
type Backend interface {
	Analyze(ctx context.Context, videoPath string, cfg models.MatchConfig, onStep func(models.Step)) (*models.DecisionReport, error)
	FetchResult(ctx context.Context, id string) (*models.DecisionReport, error)
	History(ctx context.Context, limit int) ([]models.HistoryEntry, error)
	Stats(ctx context.Context) (*models.StatsSummary, error)
	Metrics(ctx context.Context) (*models.MetricsSummary, error)
	Delete(ctx context.Context, id string) (bool, error)
	Health(ctx context.Context) bool
}

// Logger is the minimal logging surface the core needs.
type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Debugf(format string, args ...any)
}
