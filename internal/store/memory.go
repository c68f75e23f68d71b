package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore serves the registry and commit log when no database is
// configured. Commits are lost on restart.
type MemoryStore struct {
	mu         sync.RWMutex
	presidents []President
	commits    []CommitRecord
}

func NewMemoryStore(presidents []President) *MemoryStore {
	return &MemoryStore{presidents: append([]President(nil), presidents...)}
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) ListPresidents(context.Context) ([]President, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]President{}, s.presidents...), nil
}

func (s *MemoryStore) RecordCommit(_ context.Context, rec CommitRecord) (CommitRecord, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CommittedAt.IsZero() {
		rec.CommittedAt = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commits = append(s.commits, rec)
	return rec, nil
}

func (s *MemoryStore) ListCommits(_ context.Context, filter CommitFilter) ([]CommitRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]CommitRecord, 0)
	for i := len(s.commits) - 1; i >= 0 && len(items) < filter.limit(); i-- {
		rec := s.commits[i]
		if filter.Scope != "" && rec.Scope != filter.Scope {
			continue
		}
		if filter.Number != "" && rec.Number != filter.Number {
			continue
		}
		rec.Payload = nil
		items = append(items, rec)
	}
	return items, nil
}
