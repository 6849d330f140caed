package mcpproxy

import (
	"errors"
	"fmt"
	"testing"

	"github.com/plexmcp/plexmcp/pkg/protocol"
)

func TestErrorRetryability(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"transport fault", newError(KindTransport, "up", "tools/list", errors.New("connection reset")), true},
		{"wrapped transport fault", fmt.Errorf("outer: %w", newError(KindTransport, "up", "ping", errors.New("timeout"))), true},
		{"protocol fault", newError(KindProtocol, "up", "tools/list", errors.New("malformed response")), false},
		{"process fault", newError(KindProcess, "up", "spawn", errors.New("exec: not found")), false},
		{"upstream rpc error", &UpstreamError{Upstream: "up", RPC: &protocol.RPCError{Code: -32000, Message: "boom"}}, false},
		{"plain error", errors.New("anything"), false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsRetryable(tc.err); got != tc.retryable {
				t.Fatalf("IsRetryable = %v, want %v", got, tc.retryable)
			}
		})
	}
}

func TestAvailabilityClassification(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		counted bool
	}{
		{"transport fault", newError(KindTransport, "up", "tools/list", errors.New("timeout")), true},
		{"process fault", newError(KindProcess, "up", "tools/call", errors.New("child exited")), true},
		{"protocol fault", newError(KindProtocol, "up", "tools/list", errors.New("malformed")), false},
		// An upstream that answers, even with a failure, is available.
		{"upstream rpc error", &UpstreamError{Upstream: "up", RPC: &protocol.RPCError{Code: -32601, Message: "nope"}}, false},
		{"unclassified error", errors.New("anything"), true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := isAvailabilityFailure(tc.err); got != tc.counted {
				t.Fatalf("isAvailabilityFailure = %v, want %v", got, tc.counted)
			}
		})
	}
}

func TestErrorUnwrapping(t *testing.T) {
	cause := errors.New("connection refused")
	err := newError(KindTransport, "up", "tools/list", cause)
	if !errors.Is(err, cause) {
		t.Fatal("Error must unwrap to its cause")
	}

	rpc := &protocol.RPCError{Code: -32602, Message: "invalid params"}
	uErr := &UpstreamError{Upstream: "up", RPC: rpc}
	var target *protocol.RPCError
	if !errors.As(uErr, &target) || target.Code != -32602 {
		t.Fatal("UpstreamError must unwrap to the RPC error")
	}
}
