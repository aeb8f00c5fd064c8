package opc

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"
)

// uncertainCycle controls how often the simulator degrades a reading's
// quality from Good to Uncertain, so downstream quality handling gets
// exercised without a real server.
const uncertainCycle = 17

// SimServer is a deterministic in-process data-access server.
//
// Values are derived from the tag name and the session's read count, so
// repeated runs against the same tag list produce the same sequence.
// Tests can inject connect and read failures.
type SimServer struct {
	name string

	mu          sync.Mutex
	connects    int
	connectErr  error
	readErr     error
	now         func() time.Time
	activeCount int
}

// NewSimServer creates a simulation server for the given name.
//
// Parameters:
//   - name: The dialed server name, reported back by Name()
//
// Returns:
//   - *SimServer: Server ready to Connect
func NewSimServer(name string) *SimServer {
	return &SimServer{
		name: name,
		now:  time.Now,
	}
}

// Name returns the server identifier used to dial it.
func (s *SimServer) Name() string {
	return s.name
}

// Connect establishes a new simulated session.
//
// Returns:
//   - Session: Open session
//   - error: ErrConnectionFailed if a failure was injected or ctx is done
func (s *SimServer) Connect(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connectErr != nil {
		err := s.connectErr
		s.connectErr = nil
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	s.connects++
	s.activeCount++
	return &simSession{server: s}, nil
}

// FailNextConnect injects a one-shot failure into the next Connect call.
func (s *SimServer) FailNextConnect(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connectErr = err
}

// FailNextRead injects a one-shot failure into the next Read call on any
// session of this server.
func (s *SimServer) FailNextRead(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readErr = err
}

// SetClock overrides the time source used for sample timestamps.
// Intended for tests that need deterministic timestamp strings.
func (s *SimServer) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// ConnectCount returns how many sessions have been opened.
func (s *SimServer) ConnectCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connects
}

// ActiveSessions returns how many sessions are currently open.
func (s *SimServer) ActiveSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeCount
}

// takeReadErr pops an injected read failure, if any.
func (s *SimServer) takeReadErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.readErr
	s.readErr = nil
	return err
}

// sampleTime returns the current sample timestamp string.
func (s *SimServer) sampleTime() string {
	s.mu.Lock()
	now := s.now
	s.mu.Unlock()
	return now().Format(TimestampLayout)
}

// sessionClosed records a session close for ActiveSessions bookkeeping.
func (s *SimServer) sessionClosed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activeCount > 0 {
		s.activeCount--
	}
}

// simSession is one open session against a SimServer.
type simSession struct {
	server *SimServer

	mu     sync.Mutex
	reads  int
	closed bool
}

// Read returns one deterministic result per requested tag.
//
// The value for a tag is a function of the tag name hash and how many
// reads this session has served, so successive bursts show movement
// while staying reproducible.
func (s *simSession) Read(ctx context.Context, tags []string) ([]ReadResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReadFailed, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSessionClosed
	}

	if err := s.server.takeReadErr(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReadFailed, err)
	}

	timestamp := s.server.sampleTime()
	results := make([]ReadResult, 0, len(tags))
	for _, tag := range tags {
		results = append(results, ReadResult{
			Tag:       tag,
			Value:     simValue(tag, s.reads),
			Quality:   simQuality(tag, s.reads),
			Timestamp: timestamp,
		})
	}
	s.reads++

	return results, nil
}

// Close releases the session. Safe to call more than once.
func (s *simSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.server.sessionClosed()
	return nil
}

// simValue derives a stable float for a tag at a given read index.
func simValue(tag string, read int) float64 {
	h := fnv.New32a()
	h.Write([]byte(tag))
	base := float64(h.Sum32()%10000) / 10.0
	return base + float64(read)
}

// simQuality degrades every uncertainCycle-th reading of a tag.
func simQuality(tag string, read int) string {
	h := fnv.New32a()
	h.Write([]byte(tag))
	if (int(h.Sum32())+read)%uncertainCycle == 0 {
		return "Uncertain"
	}
	return "Good"
}
