// Package database provides the SQLite connection for the optional
// read-history sink.
//
// The schema is a single read_history table created on open. History is
// an auxiliary log of what each run read, not the store of record; the
// tag file remains authoritative.
package database
