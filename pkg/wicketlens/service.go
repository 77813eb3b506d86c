// Package wicketlens is the core of the adjudication system: it turns an
// uploaded video into a complete decision report and keeps that report
// consistent across a transient session log, a durable per-owner store and
// an optional live analysis backend.
package wicketlens

import (
	"context"
	"fmt"
	"math"
	"path/filepath"

	"github.com/wicketlens/WicketLens/pkg/logger"
	"github.com/wicketlens/WicketLens/pkg/models"
	"github.com/wicketlens/WicketLens/pkg/wicketlens/fingerprint"
	"github.com/wicketlens/WicketLens/pkg/wicketlens/storage"
	"github.com/wicketlens/WicketLens/pkg/wicketlens/stream"
	"github.com/wicketlens/WicketLens/pkg/wicketlens/synth"
)

type lensService struct {
	storage Storage
	repo    Repository
	backend Backend
	log     Logger
	config  *Config
}

// NewService wires the service from options. With no options it runs
// simulation-only against a local sqlite file and a fresh session log.
func NewService(opts ...Option) (Service, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger()
	}
	if cfg.Repository == nil {
		cfg.Repository = NewSessionLog()
	}

	stor := cfg.Storage
	if stor == nil {
		var err error
		stor, err = storage.NewDBClientWithPath(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage: %w", err)
		}
	}

	backend := cfg.Backend
	if backend == nil && cfg.BackendURL != "" {
		clientOpts := []stream.ClientOption{}
		if cfg.HTTPClient != nil {
			clientOpts = append(clientOpts, stream.WithHTTPClient(cfg.HTTPClient))
		}
		backend = stream.NewClient(cfg.BackendURL, clientOpts...)
	}

	return &lensService{
		storage: stor,
		repo:    cfg.Repository,
		backend: backend,
		log:     cfg.Logger,
		config:  cfg,
	}, nil
}

// Analyze produces a complete report for the video. The fingerprint always
// succeeds; with a reachable backend the report is streamed from it,
// otherwise it is synthesized deterministically from the fingerprint seed.
func (s *lensService) Analyze(ctx context.Context, ownerID, videoPath string, cfg models.MatchConfig, onProgress func(float64), onStep func(models.Step)) (*models.DecisionReport, error) {
	if onStep == nil {
		onStep = func(models.Step) {}
	}
	name := filepath.Base(videoPath)
	s.log.Infof("Analyzing video: %s", name)

	seed := fingerprint.File(videoPath, onProgress)
	s.log.Debugf("Fingerprint seed for %s: %d", name, seed)

	var report *models.DecisionReport
	if s.backend != nil && s.backend.Health(ctx) {
		tracker := newStepTracker(onStep)
		streamed, err := s.backend.Analyze(ctx, videoPath, cfg, tracker.observe)
		if err != nil {
			// Nothing may be persisted for a failed call, and every stage
			// still in flight is retroactively failed so callers render
			// accurate status.
			tracker.failInFlight()
			return nil, err
		}
		report = streamed
		if report.ID == "" {
			report.ID = synth.ReportID(seed, name)
		}
		if report.VideoName == "" {
			report.VideoName = name
		}
	} else {
		report = synth.Synthesize(name, seed, cfg)
		for _, stage := range models.PipelineStages {
			onStep(models.Step{Name: stage, Status: models.StepProcessing})
			onStep(models.Step{Name: stage, Status: models.StepCompleted})
		}
	}

	s.persist(ownerID, report)
	s.log.Infof("Analysis complete: %s -> %s (%.1f%%)", report.ID, report.Decision, report.Confidence)
	return report, nil
}

// persist is the best-effort write-through: a durable-store failure is
// logged and swallowed, never surfaced to the analyze caller.
func (s *lensService) persist(ownerID string, report *models.DecisionReport) {
	if s.storage != nil && ownerID != "" {
		if err := s.storage.Upsert(ownerID, report); err != nil {
			s.log.Warnf("Durable save failed for %s: %v", report.ID, err)
		}
	}
	s.repo.Upsert(report)
}

// GetResult resolves a report by id. Authenticated reads consult the durable
// store first and use the session log only to backfill fields the durable
// schema does not carry; otherwise the session log, then the live backend.
func (s *lensService) GetResult(ctx context.Context, ownerID, reportID string) (*models.DecisionReport, error) {
	if ownerID != "" && s.storage != nil {
		durable, err := s.storage.Get(ownerID, reportID)
		if err != nil {
			s.log.Warnf("Durable read failed for %s: %v", reportID, err)
		} else if durable != nil {
			return mergeReports(durable, s.repo.Get(reportID)), nil
		}
	}

	if mem := s.repo.Get(reportID); mem != nil {
		return mem, nil
	}

	if s.backend != nil {
		report, err := s.backend.FetchResult(ctx, reportID)
		if err != nil {
			s.log.Debugf("Backend fetch failed for %s: %v", reportID, err)
			return nil, ErrNotFound
		}
		return report, nil
	}

	return nil, ErrNotFound
}

// mergeReports overlays the durable record on top of the session-log record.
// Durable fields always win; fields missing from the durable schema are
// backfilled from memory when a matching record exists.
func mergeReports(durable, mem *models.DecisionReport) *models.DecisionReport {
	if mem == nil || mem.ID != durable.ID {
		return durable
	}
	merged := *durable

	merged.Criteria = mem.Criteria
	if len(mem.Steps) > 0 {
		merged.Steps = mem.Steps
	}
	if mem.BallMetrics != nil {
		bm := *mem.BallMetrics
		// The durable row does carry speed and spin; keep those.
		if durable.BallMetrics != nil {
			if durable.BallMetrics.ReleaseSpeedKmh != 0 {
				bm.ReleaseSpeedKmh = durable.BallMetrics.ReleaseSpeedKmh
			}
			if durable.BallMetrics.SpinRateRpm != 0 {
				bm.SpinRateRpm = durable.BallMetrics.SpinRateRpm
			}
		}
		merged.BallMetrics = &bm
	}
	if mem.PitchAnalysis != nil {
		pa := *mem.PitchAnalysis
		if durable.PitchAnalysis != nil && durable.PitchAnalysis.Zone != "" {
			pa.Zone = durable.PitchAnalysis.Zone
		}
		merged.PitchAnalysis = &pa
	}
	if mem.ImpactAnalysis != nil {
		ia := *mem.ImpactAnalysis
		if durable.ImpactAnalysis != nil && durable.ImpactAnalysis.Zone != "" {
			ia.Zone = durable.ImpactAnalysis.Zone
		}
		merged.ImpactAnalysis = &ia
	}
	if merged.WicketPrediction == nil {
		merged.WicketPrediction = mem.WicketPrediction
	}
	if merged.BouncePoint == nil {
		merged.BouncePoint = mem.BouncePoint
	}
	if len(merged.Trajectory) == 0 {
		merged.Trajectory = mem.Trajectory
	}
	if len(merged.KeyFrames) == 0 {
		merged.KeyFrames = mem.KeyFrames
	}
	if merged.Thumbnail == "" || merged.Thumbnail == "/placeholder" {
		if mem.Thumbnail != "" {
			merged.Thumbnail = mem.Thumbnail
		}
	}
	return &merged
}

// visibleReports resolves the caller's report set with the standard fallback
// order: durable store (non-empty), then session log. An empty slice with
// ok=false means both local sources came up empty and the backend should be
// consulted.
func (s *lensService) visibleReports(ownerID string) ([]*models.DecisionReport, bool) {
	if ownerID != "" && s.storage != nil {
		reports, err := s.storage.List(ownerID)
		if err != nil {
			s.log.Warnf("Durable list failed: %v", err)
		} else if len(reports) > 0 {
			return reports, true
		}
	}
	if reports := s.repo.List(); len(reports) > 0 {
		return reports, true
	}
	return nil, false
}

func (s *lensService) ListHistory(ctx context.Context, ownerID string, limit int) ([]models.HistoryEntry, error) {
	if reports, ok := s.visibleReports(ownerID); ok {
		entries := make([]models.HistoryEntry, 0, len(reports))
		for _, r := range reports {
			entries = append(entries, r.HistoryItem())
		}
		if limit > 0 && len(entries) > limit {
			entries = entries[:limit]
		}
		return entries, nil
	}

	if s.backend != nil {
		entries, err := s.backend.History(ctx, limit)
		if err == nil {
			return entries, nil
		}
		s.log.Debugf("Backend history failed: %v", err)
	}
	return []models.HistoryEntry{}, nil
}

func (s *lensService) GetStats(ctx context.Context, ownerID string) (*models.StatsSummary, error) {
	if reports, ok := s.visibleReports(ownerID); ok {
		return computeStats(reports), nil
	}
	if s.backend != nil {
		stats, err := s.backend.Stats(ctx)
		if err == nil {
			return stats, nil
		}
		s.log.Debugf("Backend stats failed: %v", err)
	}
	// Explicit zeroed answer when every source is empty or unavailable.
	return &models.StatsSummary{Recent: []models.HistoryEntry{}}, nil
}

func (s *lensService) GetMetrics(ctx context.Context, ownerID string) (*models.MetricsSummary, error) {
	if reports, ok := s.visibleReports(ownerID); ok {
		return computeMetrics(reports), nil
	}
	if s.backend != nil {
		metrics, err := s.backend.Metrics(ctx)
		if err == nil {
			return metrics, nil
		}
		s.log.Debugf("Backend metrics failed: %v", err)
	}
	return emptyMetrics(), nil
}

func (s *lensService) Remove(ctx context.Context, ownerID, reportID string) (bool, error) {
	durableAttempted := false
	if ownerID != "" && s.storage != nil {
		durableAttempted = true
		if _, err := s.storage.Delete(ownerID, reportID); err != nil {
			s.log.Warnf("Durable delete failed for %s: %v", reportID, err)
		}
	}

	memRemoved := s.repo.Remove(reportID)
	if memRemoved || durableAttempted {
		return true, nil
	}

	if s.backend != nil {
		ok, err := s.backend.Delete(ctx, reportID)
		if err != nil {
			s.log.Debugf("Backend delete failed for %s: %v", reportID, err)
			return false, nil
		}
		return ok, nil
	}
	return false, nil
}

func (s *lensService) BackendOnline(ctx context.Context) bool {
	return s.backend != nil && s.backend.Health(ctx)
}

func (s *lensService) Close() error {
	if s.storage != nil {
		return s.storage.Close()
	}
	return nil
}

func computeStats(reports []*models.DecisionReport) *models.StatsSummary {
	stats := &models.StatsSummary{
		TotalAnalyses: len(reports),
		Recent:        []models.HistoryEntry{},
	}
	var confidenceSum float64
	for _, r := range reports {
		if r.Decision == models.DecisionOut {
			stats.OutDecisions++
		} else {
			stats.NotOutDecisions++
		}
		confidenceSum += r.Confidence
	}
	if len(reports) > 0 {
		stats.AverageConfidence = math.Round(confidenceSum/float64(len(reports))*10) / 10
	}
	for i, r := range reports {
		if i == 5 {
			break
		}
		stats.Recent = append(stats.Recent, r.HistoryItem())
	}
	return stats
}

func computeMetrics(reports []*models.DecisionReport) *models.MetricsSummary {
	metrics := emptyMetrics()
	metrics.TotalAnalyses = len(reports)
	for _, r := range reports {
		if r.Decision == models.DecisionOut {
			metrics.DecisionDistribution.Out++
		} else {
			metrics.DecisionDistribution.NotOut++
		}
		metrics.ConfidenceDistribution[models.ConfidenceBucket(r.Confidence)]++
		if r.ImpactAnalysis != nil && r.ImpactAnalysis.Zone != "" {
			metrics.ImpactZones[r.ImpactAnalysis.Zone]++
		}
		if r.PitchAnalysis != nil && r.PitchAnalysis.Zone != "" {
			metrics.PitchingZones[r.PitchAnalysis.Zone]++
		}
		if r.WicketPrediction != nil && r.WicketPrediction.Hitting {
			metrics.WicketPrediction.Hitting++
		} else {
			metrics.WicketPrediction.Missing++
		}
	}
	return metrics
}

func emptyMetrics() *models.MetricsSummary {
	confidence := make(map[string]int, len(models.ConfidenceBuckets))
	for _, b := range models.ConfidenceBuckets {
		confidence[b] = 0
	}
	return &models.MetricsSummary{
		ConfidenceDistribution: confidence,
		ImpactZones:            map[string]int{"inline": 0, "outside_off": 0, "outside_leg": 0},
		PitchingZones:          map[string]int{"inline": 0, "outside_off": 0, "outside_leg": 0},
	}
}

// stepTracker records which stages a streamed analysis has started so a
// failure can retroactively mark them failed.
type stepTracker struct {
	onStep  func(models.Step)
	order   []string
	status  map[string]models.StepStatus
	stopped bool
}

func newStepTracker(onStep func(models.Step)) *stepTracker {
	return &stepTracker{onStep: onStep, status: map[string]models.StepStatus{}}
}

func (t *stepTracker) observe(step models.Step) {
	if t.stopped {
		return
	}
	if _, seen := t.status[step.Name]; !seen {
		t.order = append(t.order, step.Name)
	}
	t.status[step.Name] = step.Status
	t.onStep(step)
}

func (t *stepTracker) failInFlight() {
	t.stopped = true
	for _, name := range t.order {
		if st := t.status[name]; st == models.StepProcessing || st == models.StepPending {
			t.onStep(models.Step{Name: name, Status: models.StepFailed})
		}
	}
}
