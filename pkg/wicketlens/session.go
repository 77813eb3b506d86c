package wicketlens

import (
	"sort"

	gocache "github.com/patrickmn/go-cache"

	"github.com/wicketlens/WicketLens/pkg/models"
)

// sessionLog is the transient in-memory record of this process's analyses.
// It backs the Repository interface with a go-cache store: whole-entry
// set/delete only, no in-place mutation, which is all the reconciliation
// layer needs.
type sessionLog struct {
	c *gocache.Cache
}

// NewSessionLog builds an empty in-memory repository.
func NewSessionLog() Repository {
	return &sessionLog{c: gocache.New(gocache.NoExpiration, 0)}
}

func (s *sessionLog) List() []*models.DecisionReport {
	items := s.c.Items()
	reports := make([]*models.DecisionReport, 0, len(items))
	for _, item := range items {
		if r, ok := item.Object.(*models.DecisionReport); ok {
			reports = append(reports, r)
		}
	}
	sort.Slice(reports, func(i, j int) bool {
		return reports[i].CreatedAt.After(reports[j].CreatedAt)
	})
	return reports
}

func (s *sessionLog) Get(reportID string) *models.DecisionReport {
	if v, ok := s.c.Get(reportID); ok {
		if r, ok := v.(*models.DecisionReport); ok {
			return r
		}
	}
	return nil
}

func (s *sessionLog) Upsert(report *models.DecisionReport) {
	if report == nil || report.ID == "" {
		return
	}
	s.c.Set(report.ID, report, gocache.NoExpiration)
}

func (s *sessionLog) Remove(reportID string) bool {
	if _, ok := s.c.Get(reportID); !ok {
		return false
	}
	s.c.Delete(reportID)
	return true
}
