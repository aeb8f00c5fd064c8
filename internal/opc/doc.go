// Package opc is the seam between the burst poller and a data-access
// server.
//
// The poller only needs three operations from a server: connect, batch
// read, close. This package defines that contract (Server, Session,
// ReadResult) plus Dial, which resolves a server name to an
// implementation.
//
// The only implementation shipped here is a deterministic simulator,
// selected by the sim:// scheme. OPC DA itself is a Windows DCOM
// protocol; a production binding lives behind the same Server interface
// in a platform-specific module.
package opc
