package jobstore

import (
	"context"
	"sync"
	"time"

	"github.com/certifyhq/certgen/pkg/observability"
)

// MemoryStore is an in-memory job store for development and
// single-instance servers. Safe for concurrent use.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

// NewMemoryStore creates an empty in-memory job store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]*Job)}
}

func (s *MemoryStore) Get(ctx context.Context, jobID string) (*Job, error) {
	s.mu.RLock()
	job, ok := s.jobs[jobID]
	s.mu.RUnlock()

	observability.Store().OnStoreGet(ctx, "jobs", ok)
	if !ok {
		return nil, nil
	}
	if job.IsExpired() {
		s.mu.Lock()
		delete(s.jobs, jobID)
		s.mu.Unlock()
		return nil, nil
	}

	cp := *job
	return &cp, nil
}

func (s *MemoryStore) Set(ctx context.Context, job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *job
	cp.UpdatedAt = time.Now()
	s.jobs[job.ID] = &cp
	observability.Store().OnStoreSet(ctx, "jobs")
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, jobID)
	return nil
}

func (s *MemoryStore) Cleanup(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for id, job := range s.jobs {
		if now.After(job.ExpiresAt) {
			delete(s.jobs, id)
		}
	}
	return nil
}

func (s *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)
