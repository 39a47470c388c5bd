package pool

import (
	"image"
	"sync"

	"github.com/certifyhq/certgen/pkg/dataset"
	"github.com/certifyhq/certgen/pkg/render"
)

// snapshotBuffers is the number of reusable snapshot bitmaps per worker.
// Two lets a draw and an encode proceed in parallel without waiting on
// each other for a free buffer.
const snapshotBuffers = 2

// worker owns one renderer and processes batches of tasks sequentially
// with pipelined encoding: while document N encodes on the background
// goroutine, document N+1 is already being drawn. Encoding needs only a
// snapshot of the surface, not the surface itself.
type worker struct {
	id       int
	renderer *render.Renderer
	batches  chan []dataset.Task
	results  chan<- Result
	quit     <-chan struct{}
	done     chan struct{}
}

// encodeJob carries one drawn document (or its draw error) to the encoder
// goroutine. Jobs flow through an ordered channel, so the pending result
// for task K-1 is always flushed before task K's error is reported.
type encodeJob struct {
	task dataset.Task
	img  *image.RGBA
	err  string
}

func newWorker(id int, r *render.Renderer, results chan<- Result, quit <-chan struct{}) *worker {
	w := &worker{
		id:       id,
		renderer: r,
		batches:  make(chan []dataset.Task, 1),
		results:  results,
		quit:     quit,
		done:     make(chan struct{}),
	}
	go w.run()
	return w
}

func (w *worker) run() {
	defer close(w.done)
	for {
		select {
		case <-w.quit:
			return
		case batch := <-w.batches:
			w.runBatch(batch)
		}
	}
}

// runBatch processes one ordered slice of tasks. An error on task K does
// not abort tasks K+1..N; it is reported through the same ordered pipeline
// as successes, preserving one result per task. On termination the loop
// stops drawing; the pool's chunk wait resolves via its own quit check,
// not by counting our remaining results.
func (w *worker) runBatch(tasks []dataset.Task) {
	free := make(chan *image.RGBA, snapshotBuffers)
	for i := 0; i < snapshotBuffers; i++ {
		free <- nil // allocated lazily by Snapshot
	}
	jobs := make(chan encodeJob, snapshotBuffers)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.encodeLoop(jobs, free)
	}()
	// The encoder drains jobs or exits on quit; either way close+wait is
	// bounded by at most one in-flight encode.
	defer wg.Wait()
	defer close(jobs)

	for _, task := range tasks {
		if w.quitting() {
			return
		}

		if err := w.renderer.Draw(task.Record); err != nil {
			if !w.submit(jobs, encodeJob{task: task, err: err.Error()}) {
				return
			}
			continue
		}

		var buf *image.RGBA
		select {
		case buf = <-free:
		case <-w.quit:
			return
		}
		if !w.submit(jobs, encodeJob{task: task, img: w.renderer.Snapshot(buf)}) {
			return
		}
	}
}

// submit queues a job for the encoder, giving up on termination so a
// stalled encoder can never wedge the draw loop.
func (w *worker) submit(jobs chan<- encodeJob, job encodeJob) bool {
	select {
	case jobs <- job:
		return true
	case <-w.quit:
		return false
	}
}

func (w *worker) quitting() bool {
	select {
	case <-w.quit:
		return true
	default:
		return false
	}
}

func (w *worker) encodeLoop(jobs <-chan encodeJob, free chan<- *image.RGBA) {
	for job := range jobs {
		res := Result{
			ID:       job.task.ID,
			RowIndex: job.task.RowIndex,
			NameStem: job.task.NameStem,
			Err:      job.err,
		}
		if job.err == "" {
			payload, err := w.renderer.Encode(job.img)
			if err != nil {
				res.Err = err.Error()
			} else {
				res.Payload = payload
			}
			free <- job.img
		}

		select {
		case w.results <- res:
		case <-w.quit:
			return
		}
	}
}
