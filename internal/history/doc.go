// Package history records what each polling run read.
//
// The tag file only keeps the latest value per tag; the history sink
// keeps every reading, keyed by a run ID minted at startup, so an
// operator can reconstruct what a past run saw. It is an optional sink,
// not the store of record.
package history
