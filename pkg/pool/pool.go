package pool

import (
	"image"
	"io"
	"runtime"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/certifyhq/certgen/pkg/dataset"
	"github.com/certifyhq/certgen/pkg/errors"
	"github.com/certifyhq/certgen/pkg/render"
	"github.com/certifyhq/certgen/pkg/template"
)

const (
	// minWorkers and maxWorkers clamp the auto-derived worker count.
	// Past ~32 workers the per-worker background copies dominate memory
	// without buying throughput on any machine this runs on.
	minWorkers = 1
	maxWorkers = 32

	// initTimeout bounds how long New waits for worker readiness.
	initTimeout = 30 * time.Second
)

// Config carries the shared initialization payload for a pool. Every worker
// receives its own copy of the background; Boxes and FontData are read-only
// after New returns.
type Config struct {
	Background *image.RGBA
	Boxes      []template.Box
	FontData   map[string][]byte
	Encoding   render.Encoding
	Quality    int
	Workers    int // 0 derives from available CPUs
	Logger     *log.Logger
}

// Pool owns N render workers. It is purely reactive: work starts only when
// the caller invokes ProcessChunk or GenerateSingle, and those calls return
// only when every dispatched task is accounted for.
type Pool struct {
	workers []*worker
	results chan Result
	quit    chan struct{}
	once    sync.Once
	logger  *log.Logger

	// mu serializes chunk processing: results from two interleaved chunk
	// calls would be indistinguishable on the shared results channel.
	mu sync.Mutex
}

// WorkerCount computes the effective pool size for a requested count:
// the request itself when positive, otherwise the machine's CPU count,
// clamped in both cases to [minWorkers, maxWorkers].
func WorkerCount(requested int) int {
	n := requested
	if n <= 0 {
		n = runtime.NumCPU()
	}
	if n < minWorkers {
		n = minWorkers
	}
	if n > maxWorkers {
		n = maxWorkers
	}
	return n
}

// New decodes nothing and draws nothing: it clones the already-decoded
// background once per worker, builds each worker's renderer, and resolves
// only once every worker has acknowledged readiness. If any worker fails
// to initialize within a bounded timeout, the pool is torn down and the
// first error is returned.
func New(cfg Config) (*Pool, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	n := WorkerCount(cfg.Workers)

	p := &Pool{
		workers: make([]*worker, 0, n),
		results: make(chan Result, n),
		quit:    make(chan struct{}),
		logger:  logger,
	}

	type readiness struct {
		worker *worker
		err    error
	}
	ready := make(chan readiness, n)

	for i := 0; i < n; i++ {
		go func(id int) {
			r, err := render.New(render.Options{
				Background: template.CloneBackground(cfg.Background),
				Boxes:      cfg.Boxes,
				FontData:   cfg.FontData,
				Encoding:   cfg.Encoding,
				Quality:    cfg.Quality,
			})
			if err != nil {
				ready <- readiness{err: err}
				return
			}
			ready <- readiness{worker: newWorker(id, r, p.results, p.quit)}
		}(i)
	}

	deadline := time.NewTimer(initTimeout)
	defer deadline.Stop()
	var firstErr error
	for i := 0; i < n; i++ {
		select {
		case r := <-ready:
			if r.err != nil && firstErr == nil {
				firstErr = r.err
			}
			if r.worker != nil {
				p.workers = append(p.workers, r.worker)
			}
		case <-deadline.C:
			p.Terminate()
			return nil, errors.New(errors.ErrCodeTimeout, "worker initialization timed out after %s", initTimeout)
		}
	}
	if firstErr != nil {
		p.Terminate()
		return nil, firstErr
	}

	logger.Debug("worker pool ready", "workers", n)
	return p, nil
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// OnResult receives one streamed result plus progress within the current
// chunk. It runs synchronously in the ProcessChunk caller's goroutine.
type OnResult func(res Result, completed, total int)

// ProcessChunk partitions tasks into contiguous near-equal slices, one per
// worker, dispatches them, and streams every Result through onResult in
// completion order. It returns only when all workers have drained their
// share (the single moment the caller knows zero workers are executing)
// or with a terminated error if Terminate is called while in flight.
// Callers must key bookkeeping by Result.RowIndex or ID, never by arrival
// position.
func (p *Pool) ProcessChunk(tasks []dataset.Task, onResult OnResult) error {
	if len(tasks) == 0 {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.terminated() {
		return errors.New(errors.ErrCodeTerminated, "pool is terminated")
	}

	per := (len(tasks) + len(p.workers) - 1) / len(p.workers)
	for i, w := range p.workers {
		lo := i * per
		if lo >= len(tasks) {
			break
		}
		hi := lo + per
		if hi > len(tasks) {
			hi = len(tasks)
		}
		w.batches <- tasks[lo:hi]
	}

	total := len(tasks)
	completed := 0
	for completed < total {
		select {
		case res := <-p.results:
			completed++
			if onResult != nil {
				onResult(res, completed, total)
			}
		case <-p.quit:
			return errors.New(errors.ErrCodeTerminated, "pool terminated with %d tasks in flight", total-completed)
		}
	}
	return nil
}

// GenerateSingle renders exactly one task through the first worker, a
// degenerate one-task chunk used by the size probe. It bypasses chunk
// accounting entirely.
func (p *Pool) GenerateSingle(task dataset.Task) (Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.terminated() {
		return Result{}, errors.New(errors.ErrCodeTerminated, "pool is terminated")
	}

	p.workers[0].batches <- []dataset.Task{task}
	select {
	case res := <-p.results:
		return res, nil
	case <-p.quit:
		return Result{}, errors.New(errors.ErrCodeTerminated, "pool terminated during probe")
	}
}

// Terminate stops all workers immediately. Any in-flight ProcessChunk or
// GenerateSingle call resolves with a terminated error rather than hanging;
// leaving a caller blocked on a dead pool is a correctness bug, not a
// performance one. Terminate is idempotent.
func (p *Pool) Terminate() {
	p.once.Do(func() {
		close(p.quit)
		for _, w := range p.workers {
			<-w.done
		}
		p.logger.Debug("worker pool terminated", "workers", len(p.workers))
	})
}

func (p *Pool) terminated() bool {
	select {
	case <-p.quit:
		return true
	default:
		return false
	}
}
