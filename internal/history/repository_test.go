package history

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/controlsdev/opcburst/internal/infrastructure/database"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	db, err := database.Open(context.Background(), database.Config{
		Path:        filepath.Join(t.TempDir(), "history.db"),
		WALMode:     false,
		BusyTimeout: 1,
	})
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewRepository(db.DB)
}

func TestRecordBatch_AndByRun(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	readings := []Reading{
		{RunID: "run-1", Batch: 1, Tag: "A", Value: "1.5", Quality: "Good", Timestamp: "25-08-2026 02:30:05 PM"},
		{RunID: "run-1", Batch: 1, Tag: "B", Value: "2.5", Quality: "Good", Timestamp: "25-08-2026 02:30:05 PM"},
	}
	if err := repo.RecordBatch(ctx, readings); err != nil {
		t.Fatalf("RecordBatch() error = %v", err)
	}
	if err := repo.RecordBatch(ctx, []Reading{
		{RunID: "run-1", Batch: 2, Tag: "C", Value: "3", Quality: "Uncertain", Timestamp: "t"},
	}); err != nil {
		t.Fatalf("RecordBatch() batch 2 error = %v", err)
	}

	got, err := repo.ByRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("ByRun() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("ByRun() returned %d readings, want 3", len(got))
	}

	if got[0].Tag != "A" || got[1].Tag != "B" || got[2].Tag != "C" {
		t.Errorf("readings out of order: %v, %v, %v", got[0].Tag, got[1].Tag, got[2].Tag)
	}
	if got[2].Batch != 2 {
		t.Errorf("reading C batch = %d, want 2", got[2].Batch)
	}
	if got[2].Quality != "Uncertain" {
		t.Errorf("reading C quality = %q, want Uncertain", got[2].Quality)
	}
	if got[0].RecordedAt.IsZero() {
		t.Error("RecordedAt not populated")
	}
}

func TestByRun_IsolatesRuns(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	if err := repo.RecordBatch(ctx, []Reading{
		{RunID: "run-1", Batch: 1, Tag: "A", Value: "1", Quality: "Good", Timestamp: "t"},
		{RunID: "run-2", Batch: 1, Tag: "A", Value: "9", Quality: "Good", Timestamp: "t"},
	}); err != nil {
		t.Fatalf("RecordBatch() error = %v", err)
	}

	got, err := repo.ByRun(ctx, "run-2")
	if err != nil {
		t.Fatalf("ByRun() error = %v", err)
	}
	if len(got) != 1 || got[0].Value != "9" {
		t.Errorf("ByRun(run-2) = %+v, want single reading with value 9", got)
	}
}

func TestRecordBatch_EmptyIsNoop(t *testing.T) {
	repo := newTestRepository(t)
	if err := repo.RecordBatch(context.Background(), nil); err != nil {
		t.Errorf("RecordBatch(nil) error = %v", err)
	}
}

func TestRecordBatch_Validation(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	err := repo.RecordBatch(ctx, []Reading{{RunID: "", Batch: 1, Tag: "A"}})
	if err == nil {
		t.Error("RecordBatch() expected error for missing run id")
	}

	err = repo.RecordBatch(ctx, []Reading{{RunID: "run-1", Batch: 1, Tag: ""}})
	if err == nil {
		t.Error("RecordBatch() expected error for missing tag")
	}

	// Failed batches roll back entirely.
	got, queryErr := repo.ByRun(ctx, "run-1")
	if queryErr != nil {
		t.Fatalf("ByRun() error = %v", queryErr)
	}
	if len(got) != 0 {
		t.Errorf("rolled-back batch left %d rows", len(got))
	}
}

func TestByRun_RequiresRunID(t *testing.T) {
	repo := newTestRepository(t)
	if _, err := repo.ByRun(context.Background(), ""); err == nil {
		t.Error("ByRun(\"\") expected error")
	}
}
