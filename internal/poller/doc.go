// Package poller implements the burst polling and reconciliation loop.
//
// The loop partitions an ordered tag list into fixed-size batches and,
// for each batch, walks connect → read → normalize → merge → disconnect
// → wait. The tag list is loaded once before the run and never re-derived
// from the output file.
//
// # Failure model
//
// Failures are classified at the batch boundary by BatchError severity.
// Connect failures are fatal: a session that never came up cannot be
// known good, and no further batch can proceed. Read, merge, and sink
// failures are recoverable: the batch is skipped (its rows keep their
// previous values) and the loop advances.
//
// # Session lifecycle
//
// Two strategies are supported. Per-batch mode opens a fresh session
// around every read and blocks for a settle delay after each close so
// the server can release per-tag allocations before the next open.
// Persistent mode holds one session for the whole run. Per-batch is the
// default.
//
// Control flow is strictly sequential: the only suspensions are the read
// call, the settle delay, and the inter-batch wait, and all three honour
// context cancellation for orderly shutdown.
package poller
