package ports

import (
	"context"
	"errors"
	"time"

	"github.com/sophialabs/contractmock/internal/domain/trace"
)

// Clock provides the current time (for testing).
type Clock interface {
	Now() time.Time
	// SleepContext blocks for d or until ctx is cancelled. Returns ctx.Err() if cancelled.
	SleepContext(ctx context.Context, d time.Duration) error
}

// Logger provides structured logging.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	Debug(msg string, args ...any)
}

// EventSink receives resolution events. Append-only: the pipeline never
// inspects the result of an emit.
type EventSink interface {
	Emit(e trace.Event)
}

// ErrUpstreamTimeout marks a forwarded request that exceeded its deadline.
// Cancellation aborts the in-flight network call, not just the wait.
var ErrUpstreamTimeout = errors.New("upstream timeout")

// ForwardRequest is the transport-neutral shape of a request relayed to the
// upstream. Hop-by-hop headers are the forwarder's concern.
type ForwardRequest struct {
	Method   string
	Path     string
	RawQuery string
	Headers  map[string][]string
	Body     []byte
}

// ForwardResponse is the relayed upstream response, hop-by-hop headers
// already stripped.
type ForwardResponse struct {
	Status  int
	Headers map[string][]string
	Body    []byte
}

// Forwarder relays requests to a configured upstream target.
type Forwarder interface {
	Forward(ctx context.Context, req *ForwardRequest) (*ForwardResponse, error)
}
