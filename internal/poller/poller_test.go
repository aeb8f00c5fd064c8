package poller

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/controlsdev/opcburst/internal/opc"
)

// fakeServer is a scriptable data-access server for loop tests.
type fakeServer struct {
	connectErr error // returned by every Connect while set
	failReadOn int   // 1-based read call to fail, 0 = never

	connects    int
	closes      int
	readCalls   int
	readBatches [][]string
}

func (f *fakeServer) Name() string { return "fake://server" }

func (f *fakeServer) Connect(_ context.Context) (opc.Session, error) {
	if f.connectErr != nil {
		return nil, f.connectErr
	}
	f.connects++
	return &fakeSession{server: f}, nil
}

type fakeSession struct {
	server *fakeServer
	closed bool
}

func (s *fakeSession) Read(_ context.Context, tags []string) ([]opc.ReadResult, error) {
	f := s.server
	f.readCalls++
	batch := make([]string, len(tags))
	copy(batch, tags)
	f.readBatches = append(f.readBatches, batch)

	if f.failReadOn == f.readCalls {
		return nil, errors.New("group read rejected")
	}

	results := make([]opc.ReadResult, len(tags))
	for i, tag := range tags {
		results[i] = opc.ReadResult{
			Tag:       tag,
			Value:     float64(i + 1),
			Quality:   "Good",
			Timestamp: "08/25/26 14:30:05",
		}
	}
	return results, nil
}

func (s *fakeSession) Close() error {
	if !s.closed {
		s.closed = true
		s.server.closes++
	}
	return nil
}

// fakeStore records merges and can fail on demand.
type fakeStore struct {
	mergeErr error
	merges   []map[string]Result
}

func (s *fakeStore) Merge(results map[string]Result) error {
	if s.mergeErr != nil {
		return s.mergeErr
	}
	s.merges = append(s.merges, results)
	return nil
}

// fakeSink records batches and can fail on demand.
type fakeSink struct {
	recordErr error
	batches   []int
}

func (s *fakeSink) Name() string { return "fake-sink" }

func (s *fakeSink) Record(_ context.Context, batch int, _ map[string]Result) error {
	if s.recordErr != nil {
		return s.recordErr
	}
	s.batches = append(s.batches, batch)
	return nil
}

func newTestPoller(t *testing.T, opts Options) *Poller {
	t.Helper()
	p, err := New(opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return p
}

func TestNew_Validation(t *testing.T) {
	server := &fakeServer{}
	store := &fakeStore{}

	tests := []struct {
		name    string
		opts    Options
		wantErr error
	}{
		{
			name:    "nil server",
			opts:    Options{Store: store, MaxBatchSize: 10},
			wantErr: ErrServerRequired,
		},
		{
			name:    "nil store",
			opts:    Options{Server: server, MaxBatchSize: 10},
			wantErr: ErrStoreRequired,
		},
		{
			name:    "zero batch size",
			opts:    Options{Server: server, Store: store},
			wantErr: ErrInvalidBatchSize,
		},
		{
			name:    "unknown mode",
			opts:    Options{Server: server, Store: store, MaxBatchSize: 10, Mode: "adaptive"},
			wantErr: ErrInvalidConnectionMode,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.opts)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("New() error = %v, want %v", err, tt.wantErr)
			}
			var batchErr *BatchError
			if !errors.As(err, &batchErr) || !batchErr.Fatal() {
				t.Errorf("New() error = %v, want a fatal *BatchError", err)
			}
		})
	}
}

func TestRun_BatchShapesAndLifecycle(t *testing.T) {
	// Three tags at batch size two: batches [A B] and [C], two read
	// cycles, per-batch session lifecycle.
	server := &fakeServer{}
	store := &fakeStore{}

	p := newTestPoller(t, Options{
		Tags:         []string{"A", "B", "C"},
		Server:       server,
		Store:        store,
		MaxBatchSize: 2,
		Mode:         ModePerBatch,
	})

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(server.readBatches) != 2 {
		t.Fatalf("read %d batches, want 2", len(server.readBatches))
	}
	if got := server.readBatches[0]; len(got) != 2 || got[0] != "A" || got[1] != "B" {
		t.Errorf("batch 1 = %v, want [A B]", got)
	}
	if got := server.readBatches[1]; len(got) != 1 || got[0] != "C" {
		t.Errorf("batch 2 = %v, want [C]", got)
	}

	if server.connects != 2 || server.closes != 2 {
		t.Errorf("per-batch lifecycle: connects=%d closes=%d, want 2/2", server.connects, server.closes)
	}

	if len(store.merges) != 2 {
		t.Fatalf("merged %d batches, want 2", len(store.merges))
	}

	stats := p.Stats()
	if stats.Batches != 2 || stats.TagsRead != 3 || stats.ReadFailures != 0 {
		t.Errorf("stats = %+v, want 2 batches, 3 tags read, 0 failures", stats)
	}
}

func TestRun_NormalizesTimestamps(t *testing.T) {
	server := &fakeServer{}
	store := &fakeStore{}

	p := newTestPoller(t, Options{
		Tags:         []string{"A"},
		Server:       server,
		Store:        store,
		MaxBatchSize: 1,
	})

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	result, ok := store.merges[0]["A"]
	if !ok {
		t.Fatalf("merge missing tag A: %v", store.merges[0])
	}
	if result.Timestamp != "25-08-2026 02:30:05 PM" {
		t.Errorf("Timestamp = %q, want display format", result.Timestamp)
	}
	if result.Status != "Good" {
		t.Errorf("Status = %q, want Good", result.Status)
	}
}

func TestRun_PersistentMode(t *testing.T) {
	server := &fakeServer{}
	store := &fakeStore{}

	p := newTestPoller(t, Options{
		Tags:         []string{"A", "B", "C"},
		Server:       server,
		Store:        store,
		MaxBatchSize: 1,
		Mode:         ModePersistent,
	})

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if server.connects != 1 {
		t.Errorf("persistent mode opened %d sessions, want 1", server.connects)
	}
	if server.closes != 1 {
		t.Errorf("persistent mode closed %d sessions, want 1", server.closes)
	}
	if len(store.merges) != 3 {
		t.Errorf("merged %d batches, want 3", len(store.merges))
	}
}

func TestRun_ReadFailureSkipsBatchOnly(t *testing.T) {
	// Batch 1 read fails: its tags are never merged, batch 2 proceeds.
	server := &fakeServer{failReadOn: 1}
	store := &fakeStore{}

	p := newTestPoller(t, Options{
		Tags:         []string{"A", "B", "C"},
		Server:       server,
		Store:        store,
		MaxBatchSize: 2,
	})

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(store.merges) != 1 {
		t.Fatalf("merged %d batches, want 1 (batch 1 skipped)", len(store.merges))
	}
	if _, ok := store.merges[0]["C"]; !ok {
		t.Errorf("batch 2 merge missing tag C: %v", store.merges[0])
	}
	if _, ok := store.merges[0]["A"]; ok {
		t.Errorf("failed batch 1 tag A must not be merged")
	}

	stats := p.Stats()
	if stats.ReadFailures != 1 {
		t.Errorf("ReadFailures = %d, want 1", stats.ReadFailures)
	}
	if stats.Batches != 2 {
		t.Errorf("Batches = %d, want 2 (both attempted)", stats.Batches)
	}
}

func TestRun_ConnectFailureIsFatal(t *testing.T) {
	server := &fakeServer{connectErr: errors.New("server unavailable")}
	store := &fakeStore{}

	p := newTestPoller(t, Options{
		Tags:         []string{"A", "B"},
		Server:       server,
		Store:        store,
		MaxBatchSize: 10,
	})

	err := p.Run(context.Background())
	if err == nil {
		t.Fatal("Run() expected fatal error for connect failure, got nil")
	}

	var batchErr *BatchError
	if !errors.As(err, &batchErr) {
		t.Fatalf("Run() error = %T, want *BatchError", err)
	}
	if !batchErr.Fatal() {
		t.Errorf("connect failure severity = %v, want fatal", batchErr.Severity)
	}
	if len(store.merges) != 0 {
		t.Errorf("no file write may happen after a failed connect, got %d merges", len(store.merges))
	}
}

func TestRun_MergeFailureContinues(t *testing.T) {
	server := &fakeServer{}
	store := &fakeStore{mergeErr: errors.New("disk full")}
	sink := &fakeSink{}

	p := newTestPoller(t, Options{
		Tags:         []string{"A", "B", "C"},
		Server:       server,
		Store:        store,
		Sinks:        []Sink{sink},
		MaxBatchSize: 2,
	})

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v, merge failures must not abort the run", err)
	}

	stats := p.Stats()
	if stats.MergeFailures != 2 {
		t.Errorf("MergeFailures = %d, want 2", stats.MergeFailures)
	}
	if len(sink.batches) != 0 {
		t.Errorf("sinks must not receive results whose merge failed, got %v", sink.batches)
	}
}

func TestRun_SinkFailureDoesNotAbort(t *testing.T) {
	server := &fakeServer{}
	store := &fakeStore{}
	sink := &fakeSink{recordErr: errors.New("broker down")}

	p := newTestPoller(t, Options{
		Tags:         []string{"A", "B"},
		Server:       server,
		Store:        store,
		Sinks:        []Sink{sink},
		MaxBatchSize: 1,
	})

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v, sink failures must not abort the run", err)
	}

	if got := p.Stats().SinkFailures; got != 2 {
		t.Errorf("SinkFailures = %d, want 2", got)
	}
	if len(store.merges) != 2 {
		t.Errorf("merged %d batches, want 2", len(store.merges))
	}
}

func TestRun_SinksReceiveMergedBatches(t *testing.T) {
	server := &fakeServer{}
	store := &fakeStore{}
	sink := &fakeSink{}

	p := newTestPoller(t, Options{
		Tags:         []string{"A", "B", "C"},
		Server:       server,
		Store:        store,
		Sinks:        []Sink{sink},
		MaxBatchSize: 2,
	})

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(sink.batches) != 2 || sink.batches[0] != 1 || sink.batches[1] != 2 {
		t.Errorf("sink batches = %v, want [1 2]", sink.batches)
	}
}

func TestRun_EmptyTagListDoesNothing(t *testing.T) {
	server := &fakeServer{}
	store := &fakeStore{}

	p := newTestPoller(t, Options{
		Tags:         nil,
		Server:       server,
		Store:        store,
		MaxBatchSize: 10,
	})

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if server.connects != 0 {
		t.Errorf("empty tag list must not connect, got %d connects", server.connects)
	}
}

func TestRun_CancelDuringWaitShutsDownCleanly(t *testing.T) {
	// Cancel while the poller sits in the inter-batch wait: the run
	// returns nil and the first batch's merge stays recorded.
	server := &fakeServer{}
	store := &fakeStore{}
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		// Let batch 1 complete, then interrupt during the wait.
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	p := newTestPoller(t, Options{
		Tags:         []string{"A", "B"},
		Server:       server,
		Store:        store,
		MaxBatchSize: 1,
		Interval:     time.Hour,
	})

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v, want nil on interrupt", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after cancellation")
	}

	if len(store.merges) != 1 {
		t.Errorf("merged %d batches before interrupt, want 1 (kept persisted)", len(store.merges))
	}
	if server.closes != server.connects {
		t.Errorf("open sessions leaked: connects=%d closes=%d", server.connects, server.closes)
	}
}

func TestRun_DuplicateTagLaterReadWins(t *testing.T) {
	server := &fakeServer{}
	store := &fakeStore{}

	p := newTestPoller(t, Options{
		Tags:         []string{"A", "A"},
		Server:       server,
		Store:        store,
		MaxBatchSize: 2,
	})

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	result := store.merges[0]["A"]
	// The fake assigns values by position; the second occurrence (2.0)
	// must overwrite the first.
	if result.Value != float64(2) {
		t.Errorf("duplicate tag value = %v, want 2 (later read wins)", result.Value)
	}
}

func TestRun_RepeatRunsMultiplePasses(t *testing.T) {
	server := &fakeServer{}
	store := &fakeStore{}
	ctx, cancel := context.WithCancel(context.Background())

	p := newTestPoller(t, Options{
		Tags:         []string{"A"},
		Server:       server,
		Store:        store,
		MaxBatchSize: 1,
		Repeat:       true,
		Interval:     time.Millisecond,
	})

	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	if err := p.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if p.Stats().Passes < 2 {
		t.Errorf("Passes = %d, want at least 2 with repeat enabled", p.Stats().Passes)
	}
}
