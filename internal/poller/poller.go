package poller

import (
	"context"
	"time"

	"github.com/controlsdev/opcburst/internal/infrastructure/logging"
	"github.com/controlsdev/opcburst/internal/opc"
)

// Result is the normalized outcome of one tag read: the server-native
// value, the quality code, and the display-formatted timestamp.
type Result struct {
	Value     any
	Status    string
	Timestamp string
}

// Store merges a batch's results into the persisted tag table.
//
// Implementations must leave rows for tags outside the map untouched and
// must be idempotent for a given map.
type Store interface {
	Merge(results map[string]Result) error
}

// Sink receives a batch's normalized results after a successful merge.
// Sink failures are logged and never affect the run.
type Sink interface {
	// Name identifies the sink in log output.
	Name() string

	// Record forwards one batch's results.
	Record(ctx context.Context, batch int, results map[string]Result) error
}

// Options configures a Poller.
type Options struct {
	// Tags is the ordered tag list, loaded once at startup.
	Tags []string

	// Server is the data-access server to poll.
	Server opc.Server

	// Store receives merged batch results.
	Store Store

	// Sinks optionally receive each batch's results after the merge.
	Sinks []Sink

	// MaxBatchSize is the maximum tags per burst. Required, positive.
	MaxBatchSize int

	// Interval is the wait between batches (and between passes when
	// Repeat is set).
	Interval time.Duration

	// SettleDelay is the pause after closing a session.
	SettleDelay time.Duration

	// Mode selects the session lifecycle. Defaults to ModePerBatch.
	Mode ConnectionMode

	// Repeat re-runs the batch sequence until cancelled.
	Repeat bool

	// Logger for run output. Defaults to logging.Default().
	Logger *logging.Logger
}

// Stats summarises a run for the completion log line.
type Stats struct {
	Passes        int
	Batches       int
	TagsRead      int
	ReadFailures  int
	MergeFailures int
	SinkFailures  int
}

// Poller drives the burst polling loop: partition the tag list, then per
// batch connect, read, normalize, merge, disconnect, wait.
//
// Per-batch failures (read, merge, sink) are recoverable: they are logged
// with batch context and the loop advances. Connect failures are fatal;
// once a connect fails no further batch can proceed.
type Poller struct {
	opts  Options
	log   *logging.Logger
	stats Stats
}

// New validates the options and creates a Poller.
//
// Parameters:
//   - opts: Run configuration; Server, Store, and a positive
//     MaxBatchSize are required
//
// Returns:
//   - *Poller: Ready to Run
//   - error: BatchError of fatal severity describing the invalid option
func New(opts Options) (*Poller, error) {
	if opts.Server == nil {
		return nil, &BatchError{Severity: SeverityFatal, Op: "configure", Err: ErrServerRequired}
	}
	if opts.Store == nil {
		return nil, &BatchError{Severity: SeverityFatal, Op: "configure", Err: ErrStoreRequired}
	}
	if opts.MaxBatchSize <= 0 {
		return nil, &BatchError{Severity: SeverityFatal, Op: "configure", Err: ErrInvalidBatchSize}
	}
	switch opts.Mode {
	case "":
		opts.Mode = ModePerBatch
	case ModePerBatch, ModePersistent:
	default:
		return nil, &BatchError{Severity: SeverityFatal, Op: "configure", Err: ErrInvalidConnectionMode}
	}
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}

	return &Poller{
		opts: opts,
		log:  opts.Logger.With("component", "poller"),
	}, nil
}

// Run executes the polling loop until all batches are processed (once,
// or repeatedly with Repeat) or ctx is cancelled.
//
// Cancellation at any suspension point performs an orderly shutdown: the
// open session is closed and Run returns nil. Batches already merged
// stay persisted; nothing is rolled back.
//
// Parameters:
//   - ctx: Context for cancellation (operator interrupt)
//
// Returns:
//   - error: nil on completion or interrupt; a fatal *BatchError on
//     configuration or connect failure
func (p *Poller) Run(ctx context.Context) error {
	batches, err := Partition(p.opts.Tags, p.opts.MaxBatchSize)
	if err != nil {
		return &BatchError{Severity: SeverityFatal, Op: "partition", Err: err}
	}
	if len(batches) == 0 {
		p.log.Warn("tag list is empty, nothing to poll")
		return nil
	}

	lifecycle := NewLifecycle(p.opts.Server, p.opts.Mode, p.opts.SettleDelay, p.log)
	defer lifecycle.Shutdown(ctx)

	p.log.Info("starting burst polling",
		"server", p.opts.Server.Name(),
		"tags", len(p.opts.Tags),
		"batches", len(batches),
		"batch_size", p.opts.MaxBatchSize,
		"interval", p.opts.Interval,
		"mode", string(p.opts.Mode),
	)

	for pass := 1; ; pass++ {
		if err := p.runPass(ctx, lifecycle, batches, pass); err != nil {
			return err
		}
		p.stats.Passes++

		if !p.opts.Repeat || ctx.Err() != nil {
			break
		}
		p.log.Info("pass complete, waiting before next pass", "pass", pass, "wait", p.opts.Interval)
		if !p.wait(ctx, p.opts.Interval) {
			break
		}
	}

	p.log.Info("polling complete",
		"passes", p.stats.Passes,
		"batches", p.stats.Batches,
		"tags_read", p.stats.TagsRead,
		"read_failures", p.stats.ReadFailures,
		"merge_failures", p.stats.MergeFailures,
		"sink_failures", p.stats.SinkFailures,
	)
	return nil
}

// Stats returns the run counters accumulated so far.
func (p *Poller) Stats() Stats {
	return p.stats
}

// runPass processes every batch once. Only fatal failures are returned;
// recoverable ones are logged and counted.
func (p *Poller) runPass(ctx context.Context, lifecycle *Lifecycle, batches [][]string, pass int) error {
	for i, batch := range batches {
		if ctx.Err() != nil {
			p.log.Info("shutdown requested, stopping", "pass", pass, "batches_done", i)
			return nil
		}
		num := i + 1
		p.stats.Batches++

		// Connecting
		session, err := lifecycle.Acquire(ctx)
		if err != nil {
			return &BatchError{Severity: SeverityFatal, Batch: num, Op: "connect", Err: err}
		}

		// Reading
		p.log.Info("reading batch", "pass", pass, "batch", num, "batches", len(batches), "tags", len(batch))
		results, err := session.Read(ctx, batch)
		if err != nil {
			p.stats.ReadFailures++
			p.log.Error("batch read failed, skipping batch",
				"batch", num, "tags", len(batch), "error", err)
			results = nil
		}

		// Writing
		if len(results) > 0 {
			merged := normalizeResults(results)
			if err := p.opts.Store.Merge(merged); err != nil {
				p.stats.MergeFailures++
				p.log.Error("merge failed, batch results lost",
					"batch", num, "tags", len(batch), "error", err)
			} else {
				p.stats.TagsRead += len(results)
				p.log.Info("batch merged", "batch", num, "tags", len(merged))
				p.record(ctx, num, merged)
			}
		}

		// Disconnecting
		lifecycle.Release(ctx)

		// Waiting
		if num < len(batches) {
			if !p.wait(ctx, p.opts.Interval) {
				p.log.Info("shutdown requested during wait", "pass", pass, "batches_done", num)
				return nil
			}
		}
	}
	return nil
}

// record forwards one batch's results to every configured sink.
func (p *Poller) record(ctx context.Context, batch int, results map[string]Result) {
	for _, sink := range p.opts.Sinks {
		if err := sink.Record(ctx, batch, results); err != nil {
			p.stats.SinkFailures++
			p.log.Warn("result sink failed", "sink", sink.Name(), "batch", batch, "error", err)
		}
	}
}

// wait blocks for d, returning false if ctx is cancelled first.
func (p *Poller) wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// normalizeResults keys a batch's read results by tag, normalizing each
// timestamp for display. A later duplicate of a tag overwrites an
// earlier one.
func normalizeResults(results []opc.ReadResult) map[string]Result {
	m := make(map[string]Result, len(results))
	for _, r := range results {
		m[r.Tag] = Result{
			Value:     r.Value,
			Status:    r.Quality,
			Timestamp: NormalizeTimestamp(r.Timestamp),
		}
	}
	return m
}
