package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// maxQueryLimit caps ByRun result sizes.
const maxQueryLimit = 10000

// Reading is one persisted tag read.
type Reading struct {
	ID         int64
	RunID      string
	Batch      int
	Tag        string
	Value      string
	Quality    string
	Timestamp  string
	RecordedAt time.Time
}

// Repository persists per-read history rows in SQLite.
//
// Each run of the poller gets a fresh run ID; every merged batch appends
// one row per tag. The table is append-only from the poller's point of
// view.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a read-history repository.
//
// Parameters:
//   - db: Open SQLite connection used for queries
//
// Returns:
//   - *Repository: Repository instance ready for use
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// RecordBatch inserts one row per reading, all under the same run and
// batch, inside a single transaction.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - readings: Readings to persist; RunID and Batch must be set
//
// Returns:
//   - error: nil on success, otherwise the underlying database error
func (r *Repository) RecordBatch(ctx context.Context, readings []Reading) error {
	if len(readings) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // No-op if committed

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO read_history (run_id, batch, tag, value, quality, ts) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close() //nolint:errcheck // Statement closed with tx

	for _, reading := range readings {
		if reading.RunID == "" {
			return fmt.Errorf("run id is required")
		}
		if reading.Tag == "" {
			return fmt.Errorf("tag is required")
		}
		if _, err := stmt.ExecContext(ctx,
			reading.RunID,
			reading.Batch,
			reading.Tag,
			reading.Value,
			reading.Quality,
			reading.Timestamp,
		); err != nil {
			return fmt.Errorf("inserting reading for %q: %w", reading.Tag, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing batch: %w", err)
	}
	return nil
}

// ByRun returns all readings recorded under a run ID, ordered by batch
// then insertion order.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - runID: Run identifier minted at poller startup
//
// Returns:
//   - []Reading: Readings for the run, oldest first
//   - error: nil on success, otherwise the underlying query error
func (r *Repository) ByRun(ctx context.Context, runID string) ([]Reading, error) {
	if runID == "" {
		return nil, fmt.Errorf("run id is required")
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, run_id, batch, tag, value, quality, ts, recorded_at
		 FROM read_history
		 WHERE run_id = ?
		 ORDER BY batch, id
		 LIMIT ?`,
		runID,
		maxQueryLimit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying read history: %w", err)
	}
	defer rows.Close()

	var readings []Reading
	for rows.Next() {
		var reading Reading
		if err := rows.Scan(
			&reading.ID,
			&reading.RunID,
			&reading.Batch,
			&reading.Tag,
			&reading.Value,
			&reading.Quality,
			&reading.Timestamp,
			&reading.RecordedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning reading: %w", err)
		}
		readings = append(readings, reading)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating read history: %w", err)
	}

	return readings, nil
}
