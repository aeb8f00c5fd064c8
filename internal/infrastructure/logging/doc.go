// Package logging provides structured logging for opcburst.
//
// It wraps log/slog with level/format parsing from configuration and
// stamps every record with the service name and version. Log lines are
// the tool's only error-reporting channel, so per-batch failures carry
// enough context (batch index, tag count, underlying error) to diagnose
// a run after the fact.
package logging
