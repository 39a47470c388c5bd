// Package history persists completed run summaries so failed rows can
// be retried later without re-reading the original dataset.
//
// Two backends are provided:
//   - file: JSON files under a config directory, for CLI use
//   - mongo: MongoDB collection, for server deployments
package history

import (
	"context"
	"time"

	"github.com/certifyhq/certgen/pkg/batch"
	"github.com/certifyhq/certgen/pkg/dataset"
	"github.com/certifyhq/certgen/pkg/errors"
)

// Record is one archived run.
type Record struct {
	ID            string               `json:"id" bson:"_id"`
	BaseName      string               `json:"base_name" bson:"base_name"`
	Formats       []string             `json:"formats" bson:"formats"`
	StartedAt     time.Time            `json:"started_at" bson:"started_at"`
	ElapsedMs     int64                `json:"elapsed_ms" bson:"elapsed_ms"`
	Succeeded     int                  `json:"succeeded" bson:"succeeded"`
	Cancelled     bool                 `json:"cancelled" bson:"cancelled"`
	Failures      []batch.Failure      `json:"failures,omitempty" bson:"failures,omitempty"`
	ChunkFailures []batch.ChunkFailure `json:"chunk_failures,omitempty" bson:"chunk_failures,omitempty"`
	Archives      []string             `json:"archives,omitempty" bson:"archives,omitempty"`
}

// FromSummary converts a run summary into a history record.
func FromSummary(sum *batch.Summary, baseName string, formats []string, startedAt time.Time) *Record {
	return &Record{
		ID:            sum.RunID,
		BaseName:      baseName,
		Formats:       formats,
		StartedAt:     startedAt,
		ElapsedMs:     sum.ElapsedMs,
		Succeeded:     sum.SucceededCount,
		Cancelled:     sum.Cancelled,
		Failures:      sum.Failures,
		ChunkFailures: sum.ChunkFailures,
		Archives:      sum.Archives,
	}
}

// RetryTasks rebuilds the task list for this record's failed rows.
// Returns an error if the record carries no retryable failures.
func (r *Record) RetryTasks() ([]dataset.Task, error) {
	tasks := batch.RetryTasks(r.Failures)
	if len(tasks) == 0 {
		return nil, errors.New(errors.ErrCodeRunNotFound, "run has no retryable failures")
	}
	return tasks, nil
}

// Store is the interface for run history backends.
type Store interface {
	// Save persists a run record, replacing any record with the same ID.
	Save(ctx context.Context, rec *Record) error

	// Get retrieves a run record by ID.
	// Returns a RunNotFound error if no such run exists.
	Get(ctx context.Context, runID string) (*Record, error)

	// ListRecent returns up to limit records, newest first.
	ListRecent(ctx context.Context, limit int) ([]Record, error)

	// Close releases backend resources.
	Close(ctx context.Context) error
}
