package history

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/certifyhq/certgen/pkg/batch"
	"github.com/certifyhq/certgen/pkg/dataset"
	"github.com/certifyhq/certgen/pkg/errors"
)

func sampleRecord(id string, started time.Time) *Record {
	return &Record{
		ID:        id,
		BaseName:  "certs",
		Formats:   []string{"jpg"},
		StartedAt: started,
		Succeeded: 3,
		Failures: []batch.Failure{
			{RowIndex: 4, Name: "00004_Bad_Row", Error: "all fields empty", Record: dataset.Record{"Name": ""}},
		},
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	rec := sampleRecord("run-1", time.Now())
	if err := store.Save(ctx, rec); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Get(ctx, "run-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.BaseName != "certs" || got.Succeeded != 3 {
		t.Errorf("got %+v", got)
	}
	if len(got.Failures) != 1 || got.Failures[0].RowIndex != 4 {
		t.Errorf("failures = %+v", got.Failures)
	}
}

func TestFileStoreGetMissing(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	_, err = store.Get(context.Background(), "nope")
	if errors.GetCode(err) != errors.ErrCodeRunNotFound {
		t.Errorf("error code = %v, want run not found", errors.GetCode(err))
	}
	if !strings.Contains(err.Error(), "run nope not found") {
		t.Errorf("error message = %q, want the run id interpolated", err.Error())
	}
}

func TestFileStoreListRecent(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "mid", "new"} {
		if err := store.Save(ctx, sampleRecord(id, base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("Save %s: %v", id, err)
		}
	}

	recs, err := store.ListRecent(ctx, 2)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("len = %d, want 2", len(recs))
	}
	if recs[0].ID != "new" || recs[1].ID != "mid" {
		t.Errorf("order = [%s, %s], want [new, mid]", recs[0].ID, recs[1].ID)
	}
}

func TestFromSummary(t *testing.T) {
	sum := &batch.Summary{
		RunID:          "run-9",
		SucceededCount: 7,
		ElapsedMs:      1234,
		Archives:       []string{"certs_jpg.zip"},
		Failures:       []batch.Failure{{RowIndex: 2, Error: "boom"}},
	}
	started := time.Now()

	rec := FromSummary(sum, "certs", []string{"jpg", "pdf"}, started)
	if rec.ID != "run-9" || rec.Succeeded != 7 || rec.ElapsedMs != 1234 {
		t.Errorf("rec = %+v", rec)
	}
	if len(rec.Formats) != 2 {
		t.Errorf("formats = %v", rec.Formats)
	}
}

func TestRetryTasks(t *testing.T) {
	rec := sampleRecord("run-1", time.Now())
	tasks, err := rec.RetryTasks()
	if err != nil {
		t.Fatalf("RetryTasks: %v", err)
	}
	if len(tasks) != 1 || tasks[0].RowIndex != 4 {
		t.Errorf("tasks = %+v", tasks)
	}

	empty := &Record{ID: "run-2"}
	if _, err := empty.RetryTasks(); errors.GetCode(err) != errors.ErrCodeRunNotFound {
		t.Errorf("expected run not found for empty failures, got %v", err)
	}
}
