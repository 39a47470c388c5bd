package batch

import (
	"time"

	"github.com/certifyhq/certgen/pkg/dataset"
)

// Phase is one state of the orchestrator's run state machine.
type Phase string

// Run phases. A run moves idle → loading → initializing → probing, then
// cycles generating → converting → packaging → exporting → cooldown once
// per chunk, and ends in completed. Cancelled is reachable from every
// non-terminal phase.
const (
	PhaseIdle         Phase = "idle"
	PhaseLoading      Phase = "loading"
	PhaseInitializing Phase = "initializing"
	PhaseProbing      Phase = "probing"
	PhaseGenerating   Phase = "generating"
	PhaseConverting   Phase = "converting"
	PhasePackaging    Phase = "packaging"
	PhaseExporting    Phase = "exporting"
	PhaseCooldown     Phase = "cooldown"
	PhaseCompleted    Phase = "completed"
	PhaseCancelled    Phase = "cancelled"
)

// Terminal reports whether the phase ends a run.
func (p Phase) Terminal() bool { return p == PhaseCompleted || p == PhaseCancelled }

// Progress is one observation of a running batch, streamed to the
// registered progress callback.
type Progress struct {
	Phase             Phase `json:"phase"`
	CompletedCount    int   `json:"completedCount"`
	TotalCount        int   `json:"totalCount"`
	CurrentChunkIndex int   `json:"currentChunkIndex"`
	TotalChunks       int   `json:"totalChunks"`
	ActiveWorkerCount int   `json:"activeWorkerCount"`
}

// Failure is one task that produced no output, with enough detail to drive
// a retry run from failed rows alone. RowIndex is the original dataset row;
// Record is the full row content, reattached by the orchestrator.
type Failure struct {
	RowIndex int            `json:"rowIndex"`
	Name     string         `json:"name"`
	Error    string         `json:"error"`
	Record   dataset.Record `json:"record,omitempty"`
}

// ChunkFailure is a packaging or export failure. It is a distinct failure
// class from per-record failures: the chunk's successfully rendered
// documents are not recoverable as output, and that loss must be surfaced,
// not folded into row errors.
type ChunkFailure struct {
	ChunkIndex int    `json:"chunkIndex"`
	Format     string `json:"format"`
	Error      string `json:"error"`
}

// Summary is the final report of a run.
type Summary struct {
	RunID          string         `json:"runId"`
	SucceededCount int            `json:"succeededCount"`
	Failures       []Failure      `json:"failures,omitempty"`
	ChunkFailures  []ChunkFailure `json:"chunkFailures,omitempty"`
	Archives       []string       `json:"archives,omitempty"`
	Cancelled      bool           `json:"cancelled"`
	Elapsed        time.Duration  `json:"-"`
	ElapsedMs      int64          `json:"elapsedMs"`
}

// RetryTasks builds the task list for a follow-up run containing only the
// failed rows. RowIndex and NameStem are preserved so retried output files
// land under their original names; IDs are re-densified for the new run.
// Failures without a reattached Record (e.g. deserialized from an older
// history entry) are skipped.
func RetryTasks(failures []Failure) []dataset.Task {
	tasks := make([]dataset.Task, 0, len(failures))
	for _, f := range failures {
		if f.Record == nil {
			continue
		}
		tasks = append(tasks, dataset.Task{
			ID:       len(tasks),
			RowIndex: f.RowIndex,
			Record:   f.Record,
			NameStem: f.Name,
		})
	}
	return tasks
}
