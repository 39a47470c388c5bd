package jobstore

import (
	"context"
	"testing"
	"time"

	"github.com/certifyhq/certgen/pkg/batch"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	job := New(time.Hour)
	if job.ID == "" {
		t.Fatal("expected generated job ID")
	}
	if job.Done() {
		t.Error("fresh job should not be done")
	}

	if err := store.Set(ctx, job); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, err := store.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil {
		t.Fatal("expected job, got nil")
	}
	if got.ID != job.ID {
		t.Errorf("ID = %q, want %q", got.ID, job.ID)
	}
	if got.Progress.Phase != batch.PhaseIdle {
		t.Errorf("phase = %q, want idle", got.Progress.Phase)
	}
}

func TestMemoryStoreGetMissing(t *testing.T) {
	store := NewMemoryStore()
	got, err := store.Get(context.Background(), "nope")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for missing job, got %+v", got)
	}
}

func TestMemoryStoreGetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	job := New(time.Hour)
	if err := store.Set(ctx, job); err != nil {
		t.Fatalf("Set: %v", err)
	}

	first, _ := store.Get(ctx, job.ID)
	first.Error = "mutated"

	second, _ := store.Get(ctx, job.ID)
	if second.Error != "" {
		t.Error("Get should return an independent copy")
	}
}

func TestMemoryStoreExpiration(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	job := New(time.Hour)
	job.ExpiresAt = time.Now().Add(-time.Minute)
	if err := store.Set(ctx, job); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, err := store.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != nil {
		t.Error("expired job should read as missing")
	}
}

func TestMemoryStoreCleanup(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	live := New(time.Hour)
	dead := New(time.Hour)
	dead.ExpiresAt = time.Now().Add(-time.Minute)
	store.Set(ctx, live)
	store.Set(ctx, dead)

	if err := store.Cleanup(ctx); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}

	if got, _ := store.Get(ctx, live.ID); got == nil {
		t.Error("live job removed by cleanup")
	}
	if _, ok := store.jobs[dead.ID]; ok {
		t.Error("expired job survived cleanup")
	}
}

func TestJobArtifactLookup(t *testing.T) {
	job := New(time.Hour)
	job.Artifacts = []Artifact{
		{Name: "certs_jpg.zip", Path: "/tmp/certs_jpg.zip"},
		{Name: "certs_pdf.zip", Path: "/tmp/certs_pdf.zip"},
	}

	if a := job.Artifact("certs_pdf.zip"); a == nil || a.Path != "/tmp/certs_pdf.zip" {
		t.Errorf("Artifact lookup = %+v", a)
	}
	if a := job.Artifact("missing.zip"); a != nil {
		t.Errorf("expected nil for unknown artifact, got %+v", a)
	}
}
