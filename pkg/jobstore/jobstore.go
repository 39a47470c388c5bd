// Package jobstore tracks asynchronous generation jobs.
//
// A Job records the lifecycle of one generation run started over HTTP:
// its current phase, progress counters, the final summary, and the
// locations of exported archives. The Store interface supports:
//   - Get/Set/Delete operations
//   - Automatic expiration checking
//   - Cleanup of expired jobs
//
// Two backends are provided:
//   - memory: In-memory storage for development/testing and single-instance servers
//   - redis: Redis-backed storage for multi-instance deployments
package jobstore

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/certifyhq/certgen/pkg/batch"
)

// DefaultTTL is how long a finished job remains retrievable.
const DefaultTTL = 24 * time.Hour

// Job records the state of one asynchronous generation run.
type Job struct {
	ID        string         `json:"id"`
	Progress  batch.Progress `json:"progress"`
	Summary   *batch.Summary `json:"summary,omitempty"`
	Error     string         `json:"error,omitempty"`
	Artifacts []Artifact     `json:"artifacts,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	ExpiresAt time.Time      `json:"expires_at"`
}

// Artifact is one exported archive belonging to a job.
type Artifact struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// New creates a pending job with a fresh ID.
func New(ttl time.Duration) *Job {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := time.Now()
	return &Job{
		ID:        uuid.NewString(),
		Progress:  batch.Progress{Phase: batch.PhaseIdle},
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// IsExpired returns true if the job has passed its retention window.
func (j *Job) IsExpired() bool {
	return time.Now().After(j.ExpiresAt)
}

// Done reports whether the job reached a terminal phase.
func (j *Job) Done() bool {
	return j.Progress.Phase.Terminal()
}

// Artifact returns the artifact with the given name, or nil.
func (j *Job) Artifact(name string) *Artifact {
	for i := range j.Artifacts {
		if j.Artifacts[i].Name == name {
			return &j.Artifacts[i]
		}
	}
	return nil
}

// Store is the interface for job storage backends.
type Store interface {
	// Get retrieves a job by ID.
	// Returns nil, nil if the job doesn't exist or has expired.
	Get(ctx context.Context, jobID string) (*Job, error)

	// Set stores a job.
	Set(ctx context.Context, job *Job) error

	// Delete removes a job.
	Delete(ctx context.Context, jobID string) error

	// Cleanup removes expired jobs (no-op for Redis, which expires keys itself).
	Cleanup(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}
