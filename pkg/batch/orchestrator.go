package batch

import (
	"context"
	"image"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/certifyhq/certgen/pkg/archive"
	"github.com/certifyhq/certgen/pkg/dataset"
	"github.com/certifyhq/certgen/pkg/errors"
	"github.com/certifyhq/certgen/pkg/observability"
	"github.com/certifyhq/certgen/pkg/pool"
	"github.com/certifyhq/certgen/pkg/render"
	"github.com/certifyhq/certgen/pkg/template"
)

// DefaultCooldown is the pause between chunks. Back-to-back gigabyte
// deliveries can overwhelm the host's file-delivery queue; a short breather
// lets it drain.
const DefaultCooldown = 500 * time.Millisecond

// DefaultBaseName is the archive base name when none is configured.
const DefaultBaseName = "certificates"

// Options configures an Orchestrator.
type Options struct {
	Formats  []render.Format
	Workers  int // 0 derives from CPU count
	Quality  int // JPEG quality, 0 = render.DefaultQuality
	BaseName string
	Policy   ChunkPolicy   // zero value = DefaultChunkPolicy
	Cooldown time.Duration // 0 = DefaultCooldown
	Exporter archive.Exporter

	// OnProgress receives phase transitions and per-result updates. Called
	// from the orchestrator goroutine; implementations must be fast.
	OnProgress func(Progress)

	Logger *log.Logger
}

// Inputs are the already-validated resources a run consumes. The
// orchestrator treats Background, Boxes and FontData as read-only; workers
// get their own copies at pool initialization.
type Inputs struct {
	Background *image.RGBA
	Boxes      []template.Box
	FontData   map[string][]byte
	Tasks      []dataset.Task
}

// Orchestrator is the top-level driver of a generation run. It is the sole
// initiator of work: the pool underneath is purely reactive.
type Orchestrator struct {
	opts   Options
	logger *log.Logger
}

// New creates an Orchestrator, applying option defaults.
func New(opts Options) *Orchestrator {
	if len(opts.Formats) == 0 {
		opts.Formats = []render.Format{render.FormatJPG}
	}
	if opts.BaseName == "" {
		opts.BaseName = DefaultBaseName
	}
	if opts.Policy == (ChunkPolicy{}) {
		opts.Policy = DefaultChunkPolicy
	}
	if opts.Cooldown == 0 {
		opts.Cooldown = DefaultCooldown
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &Orchestrator{opts: opts, logger: logger}
}

// chunkDoc is one successfully rendered document held in the chunk-scoped
// collection between the barrier and export.
type chunkDoc struct {
	stem     string
	rowIndex int
	data     []byte
}

// Run executes a full generation run. Cancellation via ctx is not an
// error: the summary comes back with Cancelled set and a nil error.
// Initialization failures are fatal and return before any output exists.
// The run always terminates: per-record failures are accumulated, chunk
// packaging/export failures are recorded as a distinct class, and the pool
// is torn down on every path.
func (o *Orchestrator) Run(ctx context.Context, in Inputs) (*Summary, error) {
	start := time.Now()
	runID := uuid.NewString()
	sum := &Summary{RunID: runID}

	// loading
	o.emit(PhaseLoading, sum, 0, len(in.Tasks), 0, 0, 0)
	boxes := template.Printable(in.Boxes)
	if len(boxes) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidBox, "no boxes bound to a field")
	}
	if len(in.Tasks) == 0 {
		return nil, errors.New(errors.ErrCodeEmptyDataset, "no tasks to generate")
	}
	if err := validateFormats(o.opts.Formats); err != nil {
		return nil, err
	}
	encoding := render.BaseEncoding(o.opts.Formats)
	needsPDF := render.NeedsConversion(o.opts.Formats)
	if o.opts.Exporter == nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, "no exporter configured")
	}

	// initializing
	o.emit(PhaseInitializing, sum, 0, len(in.Tasks), 0, 0, 0)
	p, err := pool.New(pool.Config{
		Background: in.Background,
		Boxes:      boxes,
		FontData:   in.FontData,
		Encoding:   encoding,
		Quality:    o.opts.Quality,
		Workers:    o.opts.Workers,
		Logger:     o.logger,
	})
	if err != nil {
		return nil, err
	}
	defer p.Terminate()
	workers := p.Size()
	observability.Run().OnRunStart(ctx, runID, len(in.Tasks), workers)

	// A cancelled context must resolve an in-flight chunk barrier, not
	// just stop future chunks. Terminating the pool does exactly that.
	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-ctx.Done():
			p.Terminate()
		case <-watchDone:
		}
	}()

	// probing
	o.emit(PhaseProbing, sum, 0, len(in.Tasks), 0, 0, workers)
	chunkSize := o.probe(ctx, p, in.Tasks[0], needsPDF)
	totalChunks := NumChunks(len(in.Tasks), chunkSize)
	o.logger.Info("run planned",
		"run", runID, "tasks", len(in.Tasks), "chunkSize", chunkSize, "chunks", totalChunks, "workers", workers)

	completed := 0
	bounds := in.Background.Bounds()

chunks:
	for ci := 0; ci < totalChunks; ci++ {
		if ctx.Err() != nil {
			sum.Cancelled = true
			break
		}
		lo := ci * chunkSize
		hi := lo + chunkSize
		if hi > len(in.Tasks) {
			hi = len(in.Tasks)
		}
		chunkTasks := in.Tasks[lo:hi]
		chunkStart := time.Now()
		chunkFailed := 0
		observability.Run().OnChunkStart(ctx, ci, len(chunkTasks))

		// generating: this call is the barrier. It returns only when every
		// worker has drained its share of the chunk.
		o.emit(PhaseGenerating, sum, completed, len(in.Tasks), ci, totalChunks, workers)
		docs := make([]chunkDoc, 0, len(chunkTasks))
		err := p.ProcessChunk(chunkTasks, func(res pool.Result, _, _ int) {
			completed++
			if res.Failed() {
				chunkFailed++
				sum.Failures = append(sum.Failures, Failure{
					RowIndex: res.RowIndex,
					Name:     res.NameStem,
					Error:    res.Err,
					Record:   o.recordFor(in.Tasks, res.ID),
				})
			} else {
				sum.SucceededCount++
				docs = append(docs, chunkDoc{stem: res.NameStem, rowIndex: res.RowIndex, data: res.Payload})
			}
			o.emit(PhaseGenerating, sum, completed, len(in.Tasks), ci, totalChunks, workers)
		})
		if err != nil {
			if ctx.Err() != nil {
				sum.Cancelled = true
				break
			}
			return nil, err
		}

		// convert/package/export, one archive per requested format
		for _, f := range o.opts.Formats {
			if ctx.Err() != nil {
				sum.Cancelled = true
				break chunks
			}
			if f == render.FormatPDF {
				o.emit(PhaseConverting, sum, completed, len(in.Tasks), ci, totalChunks, workers)
			}
			files, convFailures := o.formatFiles(docs, in.Tasks, f, bounds)
			sum.Failures = append(sum.Failures, convFailures...)

			o.emit(PhasePackaging, sum, completed, len(in.Tasks), ci, totalChunks, workers)
			blob, err := archive.Build(files)
			if err != nil {
				o.logger.Error("packaging failed", "chunk", ci, "format", f, "err", err)
				sum.ChunkFailures = append(sum.ChunkFailures, ChunkFailure{
					ChunkIndex: ci, Format: string(f), Error: err.Error(),
				})
				continue
			}

			o.emit(PhaseExporting, sum, completed, len(in.Tasks), ci, totalChunks, workers)
			name := archive.Name(o.opts.BaseName, f.Ext(), ci+1, totalChunks)
			loc, err := o.opts.Exporter.Export(ctx, name, blob)
			observability.Run().OnExport(ctx, name, len(blob), err)
			if err != nil {
				o.logger.Error("export failed", "archive", name, "err", err)
				sum.ChunkFailures = append(sum.ChunkFailures, ChunkFailure{
					ChunkIndex: ci, Format: string(f), Error: err.Error(),
				})
				continue
			}
			sum.Archives = append(sum.Archives, loc)
		}

		// release: the chunk-scoped collection must be reclaimable before
		// the next chunk's generation starts.
		docs = nil
		observability.Run().OnChunkComplete(ctx, ci, len(chunkTasks)-chunkFailed, chunkFailed, time.Since(chunkStart))

		if ci < totalChunks-1 {
			o.emit(PhaseCooldown, sum, completed, len(in.Tasks), ci, totalChunks, workers)
			select {
			case <-time.After(o.opts.Cooldown):
			case <-ctx.Done():
				sum.Cancelled = true
				break chunks
			}
		}
	}

	p.Terminate()
	sum.Elapsed = time.Since(start)
	sum.ElapsedMs = sum.Elapsed.Milliseconds()
	final := PhaseCompleted
	if sum.Cancelled {
		final = PhaseCancelled
	}
	lastChunk := totalChunks - 1
	if lastChunk < 0 {
		lastChunk = 0
	}
	o.emit(final, sum, completed, len(in.Tasks), lastChunk, totalChunks, 0)
	observability.Run().OnRunComplete(ctx, runID, sum.SucceededCount, len(sum.Failures), sum.Cancelled, sum.Elapsed)
	o.logger.Info("run finished",
		"run", runID, "succeeded", sum.SucceededCount, "failed", len(sum.Failures),
		"cancelled", sum.Cancelled, "elapsed", sum.Elapsed.Round(time.Millisecond))
	return sum, nil
}

// probe renders exactly one real record to measure per-document output
// size. Probe output never counts toward run totals, and probe failure is
// non-fatal: the conservative fallback chunk size is used instead.
func (o *Orchestrator) probe(ctx context.Context, p *pool.Pool, first dataset.Task, needsPDF bool) int {
	res, err := p.GenerateSingle(first)
	if err != nil || res.Failed() {
		if err == nil {
			err = errors.New(errors.ErrCodeProbe, "%s", res.Err)
		}
		o.logger.Warn("size probe failed, using fallback chunk size",
			"fallback", o.opts.Policy.Fallback, "err", err)
		observability.Run().OnProbe(ctx, 0, o.opts.Policy.Fallback, true)
		return o.opts.Policy.Fallback
	}
	perDoc := o.opts.Policy.PerDocEstimate(len(res.Payload), needsPDF)
	size := o.opts.Policy.ChunkSize(perDoc)
	o.logger.Debug("size probe", "perDocBytes", perDoc, "chunkSize", size)
	observability.Run().OnProbe(ctx, perDoc, size, false)
	return size
}

// formatFiles builds one format's archive entries from the chunk's raster
// documents. Raster formats reuse payloads as-is; PDF wraps each raster
// into a one-page document. A wrap failure is attributable to its row and
// recorded as a per-record failure while leaving other formats' output for
// that row intact.
func (o *Orchestrator) formatFiles(docs []chunkDoc, tasks []dataset.Task, f render.Format, bounds image.Rectangle) ([]archive.File, []Failure) {
	files := make([]archive.File, 0, len(docs))
	var failures []Failure

	if f != render.FormatPDF {
		for _, d := range docs {
			files = append(files, archive.File{Name: d.stem + "." + f.Ext(), Data: d.data})
		}
		return files, nil
	}

	for _, d := range docs {
		pdf, err := render.WrapPDF(d.data, bounds.Dx(), bounds.Dy())
		if err != nil {
			failures = append(failures, Failure{
				RowIndex: d.rowIndex,
				Name:     d.stem,
				Error:    err.Error(),
				Record:   o.recordForRow(tasks, d.rowIndex),
			})
			continue
		}
		files = append(files, archive.File{Name: d.stem + ".pdf", Data: pdf})
	}
	return files, failures
}

func (o *Orchestrator) recordFor(tasks []dataset.Task, id int) dataset.Record {
	if id >= 0 && id < len(tasks) && tasks[id].ID == id {
		return tasks[id].Record
	}
	return nil
}

func (o *Orchestrator) recordForRow(tasks []dataset.Task, rowIndex int) dataset.Record {
	for i := range tasks {
		if tasks[i].RowIndex == rowIndex {
			return tasks[i].Record
		}
	}
	return nil
}

func (o *Orchestrator) emit(phase Phase, sum *Summary, completed, total, chunkIdx, totalChunks, workers int) {
	if o.opts.OnProgress == nil {
		return
	}
	o.opts.OnProgress(Progress{
		Phase:             phase,
		CompletedCount:    completed,
		TotalCount:        total,
		CurrentChunkIndex: chunkIdx,
		TotalChunks:       totalChunks,
		ActiveWorkerCount: workers,
	})
}

// validateFormats rejects combinations the renderer cannot serve from a
// single base encoding. JPG and PNG in one run would require re-encoding
// every document; request two runs instead.
func validateFormats(formats []render.Format) error {
	hasJPG, hasPNG := false, false
	for _, f := range formats {
		if !render.ValidFormats[f] {
			return errors.New(errors.ErrCodeInvalidFormat, "invalid format %q", f)
		}
		if f == render.FormatJPG {
			hasJPG = true
		}
		if f == render.FormatPNG {
			hasPNG = true
		}
	}
	if hasJPG && hasPNG {
		return errors.New(errors.ErrCodeInvalidFormat, "jpg and png cannot be combined in one run")
	}
	return nil
}
