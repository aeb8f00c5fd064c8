package poller

import (
	"context"
	"time"

	"github.com/controlsdev/opcburst/internal/infrastructure/logging"
	"github.com/controlsdev/opcburst/internal/opc"
)

// ConnectionMode selects the session lifecycle strategy.
type ConnectionMode string

const (
	// ModePerBatch opens a fresh session around every batch read and
	// settles after each close, letting the server release per-tag
	// resources between bursts. A mid-run connect failure is fatal.
	ModePerBatch ConnectionMode = "per_batch"

	// ModePersistent holds one session open for the whole run and
	// settles only after the final close.
	ModePersistent ConnectionMode = "persistent"
)

// Lifecycle owns the single data-access session around the batch loop.
//
// It guarantees exactly one open and at most one close per batch in
// per-batch mode. Close failures are logged and swallowed: teardown must
// never abort a batch whose results are already persisted.
//
// Lifecycle is not safe for concurrent use; the polling loop is strictly
// sequential.
type Lifecycle struct {
	server opc.Server
	mode   ConnectionMode
	settle time.Duration
	log    *logging.Logger

	session opc.Session
	opens   int
	closes  int
}

// NewLifecycle creates a lifecycle manager for the given server.
//
// Parameters:
//   - server: The data-access server to dial
//   - mode: Per-batch or persistent session strategy
//   - settle: Post-close settle delay
//   - log: Logger for swallowed close failures
//
// Returns:
//   - *Lifecycle: Manager with no session open yet
func NewLifecycle(server opc.Server, mode ConnectionMode, settle time.Duration, log *logging.Logger) *Lifecycle {
	return &Lifecycle{
		server: server,
		mode:   mode,
		settle: settle,
		log:    log,
	}
}

// Acquire returns an open session for the next batch read, connecting if
// none is open. In per-batch mode every call connects; in persistent mode
// only the first call does.
//
// Parameters:
//   - ctx: Context for connect cancellation
//
// Returns:
//   - opc.Session: Open session
//   - error: If the connect fails (fatal to the run)
func (l *Lifecycle) Acquire(ctx context.Context) (opc.Session, error) {
	if l.session != nil {
		return l.session, nil
	}

	session, err := l.server.Connect(ctx)
	if err != nil {
		return nil, err
	}
	l.opens++
	l.session = session
	return session, nil
}

// Release ends a batch's use of the session.
//
// In per-batch mode this closes the session and blocks for the settle
// delay; in persistent mode it is a no-op and the session stays open for
// the next batch.
//
// Parameters:
//   - ctx: Context that can cut the settle delay short on shutdown
func (l *Lifecycle) Release(ctx context.Context) {
	if l.mode == ModePersistent {
		return
	}
	l.closeSession()
	l.settleWait(ctx)
}

// Shutdown closes any open session. It runs at the end of the run and on
// operator interrupt. A persistent session gets its settle delay here;
// when ctx is already cancelled the settle returns immediately.
//
// Parameters:
//   - ctx: Context that can cut the settle delay short
func (l *Lifecycle) Shutdown(ctx context.Context) {
	if l.session == nil {
		return
	}
	l.closeSession()
	l.settleWait(ctx)
}

// Opens returns how many sessions this lifecycle has opened.
func (l *Lifecycle) Opens() int {
	return l.opens
}

// Closes returns how many sessions this lifecycle has closed.
func (l *Lifecycle) Closes() int {
	return l.closes
}

// closeSession closes the current session, logging and swallowing any
// close error.
func (l *Lifecycle) closeSession() {
	if l.session == nil {
		return
	}
	if err := l.session.Close(); err != nil {
		l.log.Warn("session close failed", "server", l.server.Name(), "error", err)
	}
	l.closes++
	l.session = nil
}

// settleWait blocks for the settle delay, returning early if ctx is
// cancelled.
func (l *Lifecycle) settleWait(ctx context.Context) {
	if l.settle <= 0 {
		return
	}
	timer := time.NewTimer(l.settle)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
