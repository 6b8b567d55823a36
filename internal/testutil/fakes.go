// Package testutil provides shared fakes for unit tests.
package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/sophialabs/contractmock/internal/domain/trace"
	"github.com/sophialabs/contractmock/internal/infrastructure/ports"
)

var _ ports.Logger = (*NoopLogger)(nil)

// NoopLogger discards all log output.
type NoopLogger struct{}

func (l *NoopLogger) Info(string, ...any)  {}
func (l *NoopLogger) Warn(string, ...any)  {}
func (l *NoopLogger) Error(string, ...any) {}
func (l *NoopLogger) Debug(string, ...any) {}

var _ ports.Clock = (*FixedClock)(nil)

// FixedClock returns a fixed time and records requested sleeps without
// actually sleeping.
type FixedClock struct {
	T      time.Time
	Sleeps []time.Duration
}

func (c *FixedClock) Now() time.Time { return c.T }

func (c *FixedClock) SleepContext(_ context.Context, d time.Duration) error {
	c.Sleeps = append(c.Sleeps, d)
	return nil
}

var _ ports.Forwarder = (*StubForwarder)(nil)

// StubForwarder returns a configurable upstream response and records whether
// it was contacted.
type StubForwarder struct {
	Resp   *ports.ForwardResponse
	Err    error
	Called bool
	Last   *ports.ForwardRequest
}

func (f *StubForwarder) Forward(_ context.Context, req *ports.ForwardRequest) (*ports.ForwardResponse, error) {
	f.Called = true
	f.Last = req
	return f.Resp, f.Err
}

var _ ports.EventSink = (*CollectSink)(nil)

// CollectSink gathers emitted events for assertions.
type CollectSink struct {
	mu     sync.Mutex
	events []trace.Event
}

func (s *CollectSink) Emit(e trace.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

// Events returns a snapshot of everything emitted so far.
func (s *CollectSink) Events() []trace.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]trace.Event, len(s.events))
	copy(out, s.events)
	return out
}
