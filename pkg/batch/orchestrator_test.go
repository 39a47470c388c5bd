package batch

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"image"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/image/font/gofont/goregular"

	"github.com/certifyhq/certgen/pkg/archive"
	"github.com/certifyhq/certgen/pkg/dataset"
	"github.com/certifyhq/certgen/pkg/render"
	"github.com/certifyhq/certgen/pkg/template"
)

// collectExporter retains exported archives in memory for assertions.
type collectExporter struct {
	mu       sync.Mutex
	archives map[string][]byte
}

func newCollectExporter() *collectExporter {
	return &collectExporter{archives: make(map[string][]byte)}
}

func (e *collectExporter) Export(ctx context.Context, name string, data []byte) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.archives[name] = append([]byte(nil), data...)
	return name, nil
}

func testInputs(names ...string) Inputs {
	bg := image.NewRGBA(image.Rect(0, 0, 200, 100))
	for i := range bg.Pix {
		bg.Pix[i] = 0xff
	}
	box := template.Box{Field: "Name", X: 10, Y: 10, W: 180, H: 80, MaxFontSize: 40}
	if err := box.Validate(); err != nil {
		panic(err)
	}

	records := make([]dataset.Record, len(names))
	for i, n := range names {
		records[i] = dataset.Record{"Name": n}
	}
	return Inputs{
		Background: bg,
		Boxes:      []template.Box{box},
		FontData:   map[string][]byte{"": goregular.TTF},
		Tasks:      dataset.BuildTasks(records, []string{"Name"}),
	}
}

func fastOptions(exp archive.Exporter, formats ...render.Format) Options {
	return Options{
		Formats:  formats,
		Workers:  2,
		BaseName: "certs",
		Cooldown: time.Millisecond,
		Exporter: exp,
	}
}

func TestRunEndToEnd(t *testing.T) {
	exp := newCollectExporter()
	in := testInputs("Ann", "", "Bartholomew The Third")

	sum, err := New(fastOptions(exp, render.FormatJPG)).Run(context.Background(), in)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Cancelled {
		t.Fatal("run reported cancelled")
	}
	if sum.SucceededCount != 2 {
		t.Errorf("SucceededCount = %d, want 2", sum.SucceededCount)
	}
	if len(sum.Failures) != 1 {
		t.Fatalf("got %d failures, want 1", len(sum.Failures))
	}
	f := sum.Failures[0]
	if f.RowIndex != 1 {
		t.Errorf("failure row = %d, want 1", f.RowIndex)
	}
	if !strings.Contains(f.Error, "all fields empty") {
		t.Errorf("failure error = %q, want all-fields-empty message", f.Error)
	}
	if f.Record == nil {
		t.Error("failure record not reattached")
	}

	blob, ok := exp.archives["certs_jpg.zip"]
	if !ok {
		t.Fatalf("archive not exported; have %v", keys(exp.archives))
	}
	zr, err := zip.NewReader(bytes.NewReader(blob), int64(len(blob)))
	if err != nil {
		t.Fatal(err)
	}
	if len(zr.File) != 2 {
		t.Errorf("archive holds %d documents, want 2", len(zr.File))
	}
}

func TestRunChunkAccounting(t *testing.T) {
	exp := newCollectExporter()
	names := make([]string, 10)
	for i := range names {
		names[i] = fmt.Sprintf("Person %d", i)
	}
	in := testInputs(names...)

	opts := fastOptions(exp, render.FormatJPG)
	// Chunk size collapses to the increment floor: 2 tasks per chunk.
	opts.Policy = ChunkPolicy{BudgetBytes: 1, Increment: 2, PDFOverhead: 1.2, Fallback: 2}

	var maxCompleted int
	var phases []Phase
	opts.OnProgress = func(p Progress) {
		phases = append(phases, p.Phase)
		if p.CompletedCount > maxCompleted {
			maxCompleted = p.CompletedCount
		}
		if p.TotalChunks != 0 && p.TotalChunks != 5 {
			t.Errorf("TotalChunks = %d, want 5", p.TotalChunks)
		}
	}

	sum, err := New(opts).Run(context.Background(), in)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// Probe output never counts toward run totals.
	if sum.SucceededCount != 10 {
		t.Errorf("SucceededCount = %d, want 10 (probe must not count)", sum.SucceededCount)
	}
	if maxCompleted != 10 {
		t.Errorf("completed peaked at %d, want 10", maxCompleted)
	}
	if got := len(exp.archives); got != 5 {
		t.Errorf("exported %d archives, want 5 (one per chunk)", got)
	}
	if _, ok := exp.archives["certs_jpg_part3_of_5.zip"]; !ok {
		t.Errorf("part naming missing; have %v", keys(exp.archives))
	}
	if phases[len(phases)-1] != PhaseCompleted {
		t.Errorf("final phase = %s, want completed", phases[len(phases)-1])
	}
}

func TestRunPDFConversion(t *testing.T) {
	exp := newCollectExporter()
	in := testInputs("Ann", "Bob")

	sum, err := New(fastOptions(exp, render.FormatJPG, render.FormatPDF)).Run(context.Background(), in)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.SucceededCount != 2 {
		t.Errorf("SucceededCount = %d", sum.SucceededCount)
	}

	pdfBlob, ok := exp.archives["certs_pdf.zip"]
	if !ok {
		t.Fatalf("pdf archive missing; have %v", keys(exp.archives))
	}
	zr, err := zip.NewReader(bytes.NewReader(pdfBlob), int64(len(pdfBlob)))
	if err != nil {
		t.Fatal(err)
	}
	for _, f := range zr.File {
		if !strings.HasSuffix(f.Name, ".pdf") {
			t.Errorf("unexpected entry %s in pdf archive", f.Name)
		}
		rc, _ := f.Open()
		head := make([]byte, 4)
		rc.Read(head)
		rc.Close()
		if string(head) != "%PDF" {
			t.Errorf("entry %s is not a pdf", f.Name)
		}
	}
	if _, ok := exp.archives["certs_jpg.zip"]; !ok {
		t.Error("jpg archive missing alongside pdf")
	}
}

func TestRunPhaseSequence(t *testing.T) {
	exp := newCollectExporter()
	in := testInputs("Ann", "Bob")

	opts := fastOptions(exp, render.FormatJPG, render.FormatPDF)
	var phases []Phase
	var last Progress
	opts.OnProgress = func(p Progress) {
		if len(phases) == 0 || phases[len(phases)-1] != p.Phase {
			phases = append(phases, p.Phase)
		}
		last = p
	}

	if _, err := New(opts).Run(context.Background(), in); err != nil {
		t.Fatalf("Run: %v", err)
	}

	seen := make(map[Phase]bool, len(phases))
	for _, ph := range phases {
		seen[ph] = true
	}
	for _, want := range []Phase{
		PhaseLoading, PhaseInitializing, PhaseProbing,
		PhaseGenerating, PhaseConverting, PhasePackaging, PhaseExporting,
		PhaseCompleted,
	} {
		if !seen[want] {
			t.Errorf("phase %q never emitted; sequence %v", want, phases)
		}
	}

	// Converting belongs to the per-chunk cycle: after generation, before
	// the PDF archive is packaged.
	idx := func(p Phase) int {
		for i, ph := range phases {
			if ph == p {
				return i
			}
		}
		return -1
	}
	if idx(PhaseConverting) < idx(PhaseGenerating) {
		t.Errorf("converting emitted before generating: %v", phases)
	}

	if last.Phase != PhaseCompleted {
		t.Errorf("final phase = %q", last.Phase)
	}
	if last.CurrentChunkIndex != last.TotalChunks-1 {
		t.Errorf("final CurrentChunkIndex = %d, want %d", last.CurrentChunkIndex, last.TotalChunks-1)
	}
}

func TestRunJPGOnlySkipsConverting(t *testing.T) {
	exp := newCollectExporter()
	in := testInputs("Ann", "Bob")

	opts := fastOptions(exp, render.FormatJPG)
	var sawConverting bool
	opts.OnProgress = func(p Progress) {
		if p.Phase == PhaseConverting {
			sawConverting = true
		}
	}

	if _, err := New(opts).Run(context.Background(), in); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sawConverting {
		t.Error("converting phase emitted for a raster-only run")
	}
}

func TestRunCancellation(t *testing.T) {
	exp := newCollectExporter()
	names := make([]string, 400)
	for i := range names {
		names[i] = fmt.Sprintf("Person %d", i)
	}
	in := testInputs(names...)

	ctx, cancel := context.WithCancel(context.Background())
	opts := fastOptions(exp, render.FormatJPG)
	opts.Workers = 1
	opts.OnProgress = func(p Progress) {
		if p.Phase == PhaseGenerating && p.CompletedCount > 2 {
			cancel()
		}
	}

	done := make(chan struct{})
	var sum *Summary
	var err error
	go func() {
		defer close(done)
		sum, err = New(opts).Run(ctx, in)
	}()

	select {
	case <-done:
	case <-time.After(30 * time.Second):
		t.Fatal("run did not resolve after cancellation")
	}
	if err != nil {
		t.Fatalf("cancellation must not be an error: %v", err)
	}
	if !sum.Cancelled {
		t.Error("summary should report cancelled")
	}
}

func TestRunRetryOnlyFailedRows(t *testing.T) {
	exp := newCollectExporter()
	names := make([]string, 10)
	for i := range names {
		names[i] = fmt.Sprintf("Person %d", i)
	}
	// Inject 2 failures: rows whose printed value is blank.
	names[3] = ""
	names[7] = "   "
	in := testInputs(names...)
	// Blank and whitespace-only rows print identically, so dedup collapses
	// them; build tasks manually to keep both as distinct retry fodder.
	records := make([]dataset.Record, len(names))
	tasks := make([]dataset.Task, len(names))
	for i, n := range names {
		records[i] = dataset.Record{"Name": n}
		tasks[i] = dataset.Task{ID: i, RowIndex: i, Record: records[i], NameStem: dataset.NameStem(i, n)}
	}
	in.Tasks = tasks

	sum, err := New(fastOptions(exp, render.FormatJPG)).Run(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}
	if sum.SucceededCount != 8 || len(sum.Failures) != 2 {
		t.Fatalf("first run: %d ok / %d failed, want 8/2", sum.SucceededCount, len(sum.Failures))
	}

	retry := RetryTasks(sum.Failures)
	if len(retry) != 2 {
		t.Fatalf("RetryTasks produced %d tasks, want 2", len(retry))
	}
	// Results arrive in completion order across workers, so check as a set.
	rows := map[int]bool{retry[0].RowIndex: true, retry[1].RowIndex: true}
	if !rows[3] || !rows[7] {
		t.Errorf("retry rows = %v, want {3, 7}", rows)
	}

	in2 := in
	in2.Tasks = retry
	sum2, err := New(fastOptions(newCollectExporter(), render.FormatJPG)).Run(context.Background(), in2)
	if err != nil {
		t.Fatal(err)
	}
	// Exactly 2 new results, success or failure, never more or fewer.
	if sum2.SucceededCount+len(sum2.Failures) != 2 {
		t.Errorf("retry run produced %d results, want 2", sum2.SucceededCount+len(sum2.Failures))
	}
}

func TestRunExportFailureIsChunkScoped(t *testing.T) {
	fail := archive.FuncExporter(func(ctx context.Context, name string, data []byte) (string, error) {
		return "", fmt.Errorf("delivery refused")
	})
	in := testInputs("Ann", "Bob")

	sum, err := New(fastOptions(fail, render.FormatJPG)).Run(context.Background(), in)
	if err != nil {
		t.Fatalf("export failure must not abort the run: %v", err)
	}
	if len(sum.ChunkFailures) != 1 {
		t.Fatalf("got %d chunk failures, want 1", len(sum.ChunkFailures))
	}
	if sum.ChunkFailures[0].Format != "jpg" {
		t.Errorf("chunk failure format = %q", sum.ChunkFailures[0].Format)
	}
	// Export failure is not a per-record failure.
	if len(sum.Failures) != 0 {
		t.Errorf("per-record failures = %d, want 0", len(sum.Failures))
	}
}

func TestRunRejectsBadInputs(t *testing.T) {
	exp := newCollectExporter()
	o := New(fastOptions(exp, render.FormatJPG))

	in := testInputs("Ann")
	in.Boxes = nil
	if _, err := o.Run(context.Background(), in); err == nil {
		t.Error("run without boxes accepted")
	}

	in = testInputs("Ann")
	in.Tasks = nil
	if _, err := o.Run(context.Background(), in); err == nil {
		t.Error("run without tasks accepted")
	}

	in = testInputs("Ann")
	bad := New(fastOptions(exp, render.FormatJPG, render.FormatPNG))
	if _, err := bad.Run(context.Background(), in); err == nil {
		t.Error("jpg+png combination accepted")
	}
}

func keys(m map[string][]byte) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
