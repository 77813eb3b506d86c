// Package storage is the durable per-owner store for decision reports,
// backed by sqlite through GORM. Rows are keyed by (owner, report id); the
// structured pieces of a report travel as JSON blobs. The store itself
// returns errors normally — best-effort semantics (log and swallow) are the
// caller's policy, not this package's.
package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/wicketlens/WicketLens/pkg/models"
)

const DefaultDBFile = "wicketlens.sqlite3"

var errClientNil = errors.New("db client is nil")

// DBClient wraps the GORM handle and the underlying pool.
type DBClient struct {
	DB *gorm.DB
	db *sql.DB
}

// AnalysisRecord is the persisted row for one adjudication. Criteria, steps
// and most ball metrics are not part of the durable schema; readers backfill
// those from the session log.
type AnalysisRecord struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	OwnerID     string `gorm:"uniqueIndex:idx_owner_report,priority:1;index:idx_owner"`
	ReportID    string `gorm:"uniqueIndex:idx_owner_report,priority:2"`
	VideoName   string
	Decision    string
	Confidence  float64 // stored to 2 decimal places
	UmpiresCall bool

	ImpactPoint string // JSON Point3
	WicketPoint string // JSON Point3
	Trajectory  string // JSON []Point3
	KeyFrames   string // JSON []KeyFrame

	BallSpeed    float64
	BallSpin     float64
	PitchingZone string
	ImpactZone   string

	AnalyzedAt time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewDBClient opens the database at WICKETLENS_DB_PATH, or the default file.
func NewDBClient() (*DBClient, error) {
	dbPath := os.Getenv("WICKETLENS_DB_PATH")
	if dbPath == "" {
		dbPath = DefaultDBFile
	}
	return NewDBClientWithPath(dbPath)
}

// NewDBClientWithPath opens (creating if needed) the sqlite database.
func NewDBClientWithPath(dbPath string) (*DBClient, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db dir: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(dbPath+"?_foreign_keys=on"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB from gorm: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&AnalysisRecord{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	return &DBClient{DB: db, db: sqlDB}, nil
}

func (c *DBClient) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Upsert writes the report under (ownerID, report.ID): update when the row
// exists, insert otherwise.
func (c *DBClient) Upsert(ownerID string, report *models.DecisionReport) error {
	if c == nil || c.DB == nil {
		return errClientNil
	}
	row, err := recordFromReport(ownerID, report)
	if err != nil {
		return err
	}

	var existing AnalysisRecord
	err = c.DB.Where("owner_id = ? AND report_id = ?", ownerID, report.ID).First(&existing).Error
	switch {
	case err == nil:
		row.ID = existing.ID
		row.CreatedAt = existing.CreatedAt
		if err := c.DB.Save(row).Error; err != nil {
			return fmt.Errorf("updating analysis row: %w", err)
		}
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		if err := c.DB.Create(row).Error; err != nil {
			return fmt.Errorf("creating analysis row: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("querying existing analysis: %w", err)
	}
}

// Get returns the stored report for (ownerID, reportID), or (nil, nil) when
// no row exists.
func (c *DBClient) Get(ownerID, reportID string) (*models.DecisionReport, error) {
	if c == nil || c.DB == nil {
		return nil, errClientNil
	}
	var row AnalysisRecord
	err := c.DB.Where("owner_id = ? AND report_id = ?", ownerID, reportID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying analysis: %w", err)
	}
	return row.toReport(), nil
}

// List returns all reports for an owner, newest first.
func (c *DBClient) List(ownerID string) ([]*models.DecisionReport, error) {
	if c == nil || c.DB == nil {
		return nil, errClientNil
	}
	var rows []AnalysisRecord
	if err := c.DB.Where("owner_id = ?", ownerID).Order("analyzed_at DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing analyses: %w", err)
	}
	reports := make([]*models.DecisionReport, 0, len(rows))
	for i := range rows {
		reports = append(reports, rows[i].toReport())
	}
	return reports, nil
}

// Delete removes the row for (ownerID, reportID). The bool reports whether a
// row was actually deleted.
func (c *DBClient) Delete(ownerID, reportID string) (bool, error) {
	if c == nil || c.DB == nil {
		return false, errClientNil
	}
	res := c.DB.Where("owner_id = ? AND report_id = ?", ownerID, reportID).Delete(&AnalysisRecord{})
	if res.Error != nil {
		return false, fmt.Errorf("deleting analysis: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func recordFromReport(ownerID string, r *models.DecisionReport) (*AnalysisRecord, error) {
	row := &AnalysisRecord{
		OwnerID:     ownerID,
		ReportID:    r.ID,
		VideoName:   r.VideoName,
		Decision:    string(r.Decision),
		Confidence:  math.Round(r.Confidence*100) / 100,
		UmpiresCall: r.UmpiresCall,
		AnalyzedAt:  r.CreatedAt,
	}
	if r.PitchAnalysis != nil {
		row.PitchingZone = r.PitchAnalysis.Zone
	}
	if r.ImpactAnalysis != nil {
		row.ImpactZone = r.ImpactAnalysis.Zone
	}
	if r.BallMetrics != nil {
		row.BallSpeed = r.BallMetrics.ReleaseSpeedKmh
		row.BallSpin = r.BallMetrics.SpinRateRpm
	}

	var err error
	if row.ImpactPoint, err = marshalBlob(r.ImpactPoint); err != nil {
		return nil, err
	}
	if row.WicketPoint, err = marshalBlob(r.PredictedWicketHit); err != nil {
		return nil, err
	}
	if row.Trajectory, err = marshalBlob(r.Trajectory); err != nil {
		return nil, err
	}
	if row.KeyFrames, err = marshalBlob(r.KeyFrames); err != nil {
		return nil, err
	}
	return row, nil
}

// toReport reconstructs the durable subset of a report. Criteria and steps
// come back as decision-consistent defaults; the reconciliation layer
// overrides them from the session log when it can.
func (row *AnalysisRecord) toReport() *models.DecisionReport {
	report := &models.DecisionReport{
		ID:          row.ReportID,
		VideoName:   row.VideoName,
		Thumbnail:   "/placeholder",
		Decision:    models.Decision(row.Decision),
		Confidence:  row.Confidence,
		UmpiresCall: row.UmpiresCall,
		Criteria:    models.DefaultCriteria(models.Decision(row.Decision)),
		Steps:       models.CompletedSteps(),
		CreatedAt:   row.AnalyzedAt,
	}

	var impact models.Point3
	if unmarshalBlob(row.ImpactPoint, &impact) {
		report.ImpactPoint = &impact
	}
	var wicket models.Point3
	if unmarshalBlob(row.WicketPoint, &wicket) {
		report.PredictedWicketHit = &wicket
	}
	unmarshalBlob(row.Trajectory, &report.Trajectory)
	if report.Trajectory == nil {
		report.Trajectory = []models.Point3{}
	}
	unmarshalBlob(row.KeyFrames, &report.KeyFrames)

	if row.BallSpeed != 0 || row.BallSpin != 0 {
		report.BallMetrics = &models.BallMetrics{
			ReleaseSpeedKmh: row.BallSpeed,
			SpinRateRpm:     row.BallSpin,
		}
	}
	if row.PitchingZone != "" {
		report.PitchAnalysis = &models.PitchAnalysis{Zone: row.PitchingZone}
	}
	if row.ImpactZone != "" {
		report.ImpactAnalysis = &models.ImpactAnalysis{Zone: row.ImpactZone}
	}
	return report
}

func marshalBlob(v any) (string, error) {
	if v == nil {
		return "", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encoding blob column: %w", err)
	}
	return string(b), nil
}

func unmarshalBlob(s string, out any) bool {
	if s == "" || s == "null" {
		return false
	}
	return json.Unmarshal([]byte(s), out) == nil
}
