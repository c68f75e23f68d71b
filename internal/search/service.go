package search

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// Service is the facade that tries Meilisearch first and falls back to the
// in-process scan.
type Service struct {
	meili    *Meili
	fallback Searcher
	log      *logrus.Entry
	wg       sync.WaitGroup
}

// NewService creates a search service. meili may be nil if Meilisearch is not configured.
func NewService(meili *Meili, fallback Searcher, log *logrus.Entry) *Service {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Service{meili: meili, fallback: fallback, log: log.WithField("component", "search")}
}

// Search tries Meilisearch if healthy, otherwise falls back.
func (s *Service) Search(ctx context.Context, q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(ctx, q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text, Engine: "meilisearch"}
		}
		s.log.WithError(err).Warn("meilisearch error, falling back to local scan")
	}

	if s.fallback == nil {
		return Response{Results: []Result{}, Query: q.Text, Engine: "none"}
	}
	results, total, err := s.fallback.Search(ctx, q)
	if err != nil {
		s.log.WithError(err).Error("local roster search failed")
		return Response{Results: []Result{}, Query: q.Text, Engine: "local"}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text, Engine: "local"}
}

// IndexRoster indexes a gazette's roster (fire-and-forget to Meilisearch).
func (s *Service) IndexRoster(rec RosterRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.meili.IndexRoster(rec); err != nil {
			s.log.WithError(err).WithField("gazette", rec.Gazette).Warn("index roster")
		}
	}()
}

// DeleteRoster removes a gazette's roster from the index (fire-and-forget).
func (s *Service) DeleteRoster(rec RosterRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.meili.DeleteRoster(rec.ID); err != nil {
			s.log.WithError(err).WithField("gazette", rec.Gazette).Warn("delete roster")
		}
	}()
}

// ReindexAll pushes every record to Meilisearch. Called at startup once the
// registry is loaded.
func (s *Service) ReindexAll(records []RosterRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	if err := s.meili.IndexRosters(records); err != nil {
		s.log.WithError(err).Warn("reindex rosters")
	}
}

// Close waits for pending index writes and stops the health monitor.
func (s *Service) Close() {
	s.wg.Wait()
	if s.meili != nil {
		s.meili.Close()
	}
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
