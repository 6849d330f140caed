package mcpproxy

import (
	"errors"
	"fmt"

	"github.com/plexmcp/plexmcp/pkg/protocol"
)

// ErrorKind partitions proxy failures by how callers should react.
type ErrorKind int

const (
	// KindTransport covers network failures, I/O failures, and timeouts.
	// These are the only retryable errors.
	KindTransport ErrorKind = iota
	// KindProtocol covers malformed responses, upstream-reported protocol
	// errors, and calls made before initialization.
	KindProtocol
	// KindProcess covers spawn failures, broken pipes, and unexpected child
	// exits. Never retryable; always accompanied by table cleanup and reap.
	KindProcess
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindProtocol:
		return "protocol"
	case KindProcess:
		return "process"
	default:
		return "unknown"
	}
}

// Error is the proxy's tagged failure type. Retryability is an explicit
// property of the tag, not something callers infer from message text.
type Error struct {
	Kind     ErrorKind
	Upstream string
	Op       string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("mcpproxy: %s %s (%s): %v", e.Op, e.Upstream, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether retrying the operation could succeed.
func (e *Error) Retryable() bool { return e.Kind == KindTransport }

func newError(kind ErrorKind, upstream, op string, err error) *Error {
	return &Error{Kind: kind, Upstream: upstream, Op: op, Err: err}
}

// UpstreamError carries a protocol error reported by the upstream itself,
// preserving its code and message. It is permanent: the upstream answered,
// it just answered with a failure.
type UpstreamError struct {
	Upstream string
	RPC      *protocol.RPCError
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("mcpproxy: upstream %s: %v", e.Upstream, e.RPC)
}

func (e *UpstreamError) Unwrap() error { return e.RPC }

// IsRetryable reports whether err is classified transient. Anything that is
// not a transport-kind *Error, including breaker rejections and upstream
// protocol errors, is permanent.
func IsRetryable(err error) bool {
	var pErr *Error
	if errors.As(err, &pErr) {
		return pErr.Retryable()
	}
	return false
}

// isAvailabilityFailure classifies errors for circuit-breaker accounting:
// only transport and process faults indicate the upstream is unhealthy. An
// upstream that answers with a protocol error is alive.
func isAvailabilityFailure(err error) bool {
	var pErr *Error
	if errors.As(err, &pErr) {
		return pErr.Kind == KindTransport || pErr.Kind == KindProcess
	}
	var uErr *UpstreamError
	return !errors.As(err, &uErr)
}
