package opc

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// TimestampLayout is the layout (two-digit month/day/year, 24-hour time)
// in which data-access servers report sample timestamps. Readings carry
// the raw string; display formatting is the caller's concern.
const TimestampLayout = "01/02/06 15:04:05"

// SimProgID is the ProgID of the built-in simulation server, mirroring
// the simulator ProgIDs shipped with commercial OPC servers.
const SimProgID = "Matrikon.OPC.Simulation.1"

// Domain-specific errors for data-access operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrConnectionFailed is returned when a session cannot be established.
	ErrConnectionFailed = errors.New("opc: connection failed")

	// ErrReadFailed is returned when a batch read fails.
	ErrReadFailed = errors.New("opc: read failed")

	// ErrSessionClosed is returned when reading on a closed session.
	ErrSessionClosed = errors.New("opc: session closed")

	// ErrUnsupportedServer is returned by Dial for a server name with no
	// available binding on this platform.
	ErrUnsupportedServer = errors.New("opc: unsupported server")
)

// ReadResult is one tag's outcome from a batch read.
type ReadResult struct {
	// Tag is the data point name as requested.
	Tag string

	// Value is the server-native scalar for the tag.
	Value any

	// Quality is the server's opaque confidence code for Value
	// (e.g. "Good", "Uncertain", "Bad").
	Quality string

	// Timestamp is the raw sample time string in TimestampLayout.
	Timestamp string
}

// Session is one logical connection to a data-access server.
//
// A session is not safe for concurrent use; the polling loop is strictly
// sequential and owns at most one session at a time.
type Session interface {
	// Read returns one ReadResult per readable tag in the batch.
	Read(ctx context.Context, tags []string) ([]ReadResult, error)

	// Close releases the session. Safe to call more than once.
	Close() error
}

// Server is a dialable data-access server.
type Server interface {
	// Name returns the server identifier used to dial it.
	Name() string

	// Connect establishes a new session.
	Connect(ctx context.Context) (Session, error)
}

// Dial resolves a server name to a Server.
//
// The sim:// scheme (and the simulation ProgID) select the built-in
// deterministic simulator. Real OPC DA servers are DCOM endpoints that
// need a platform-specific binding outside this module; dialing one here
// returns ErrUnsupportedServer.
//
// Parameters:
//   - serverName: Server identifier, e.g. "sim://local" or a ProgID
//
// Returns:
//   - Server: Dialable server
//   - error: ErrUnsupportedServer if no binding exists for the name
func Dial(serverName string) (Server, error) {
	if serverName == "" {
		return nil, fmt.Errorf("%w: server name is empty", ErrUnsupportedServer)
	}
	if strings.HasPrefix(serverName, "sim://") || serverName == SimProgID {
		return NewSimServer(serverName), nil
	}
	return nil, fmt.Errorf("%w: no binding for %q on this platform", ErrUnsupportedServer, serverName)
}
