package mcpproxy

import (
	"context"
	"reflect"
	"testing"
	"time"
)

func TestClientUpstreamRegistry(t *testing.T) {
	t.Parallel()

	cfg := map[string]TransportConfig{
		"local": &StdioConfig{
			BaseConfig: BaseConfig{Timeout: 5 * time.Second},
			Command:    "npx",
			Args:       []string{"@modelcontextprotocol/server-everything"},
		},
		"hosted": &HTTPConfig{
			BaseConfig: BaseConfig{Auth: AuthBearer{Token: "tok"}},
			Endpoint:   "https://mcp.example.com/rpc",
		},
	}
	c := NewClient(cfg, &Options{Logger: quietLogger()})

	if got, want := c.ListUpstreams(), []string{"hosted", "local"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("ListUpstreams() = %v, want %v", got, want)
	}
	if !c.HasUpstream("local") || !c.HasUpstream("hosted") {
		t.Fatal("client should know both configured upstreams")
	}
	if c.HasUpstream("ghost") {
		t.Fatal("unknown upstream reported as configured")
	}

	stdioCfg, ok := c.UpstreamConfig("local").(*StdioConfig)
	if !ok {
		t.Fatalf("expected stdio config, got %T", c.UpstreamConfig("local"))
	}
	if stdioCfg.Command != "npx" || len(stdioCfg.Args) != 1 {
		t.Fatalf("stdio config not preserved: %#v", stdioCfg)
	}

	httpCfg, ok := c.UpstreamConfig("hosted").(*HTTPConfig)
	if !ok {
		t.Fatalf("expected http config, got %T", c.UpstreamConfig("hosted"))
	}
	if httpCfg.Endpoint != "https://mcp.example.com/rpc" {
		t.Fatalf("endpoint mismatch: %s", httpCfg.Endpoint)
	}
}

func TestClientAddRemoveUpstream(t *testing.T) {
	t.Parallel()

	c := NewClient(nil, &Options{Logger: quietLogger()})
	if got := c.ListUpstreams(); len(got) != 0 {
		t.Fatalf("fresh client has upstreams: %v", got)
	}

	c.AddUpstream("a", &HTTPConfig{Endpoint: "https://a.example.com"})
	if !c.HasUpstream("a") {
		t.Fatal("AddUpstream did not register the upstream")
	}

	c.AddUpstream("a", &HTTPConfig{Endpoint: "https://a2.example.com"})
	if cfg := c.UpstreamConfig("a").(*HTTPConfig); cfg.Endpoint != "https://a2.example.com" {
		t.Fatalf("replacement not applied: %s", cfg.Endpoint)
	}

	c.RemoveUpstream("a")
	if c.HasUpstream("a") {
		t.Fatal("RemoveUpstream left the upstream registered")
	}
	// Removing twice is a no-op.
	c.RemoveUpstream("a")
}

func TestSendRequestUnknownUpstream(t *testing.T) {
	t.Parallel()

	c := NewClient(nil, &Options{Logger: quietLogger()})
	_, err := c.ListTools(context.Background(), "ghost")
	if err == nil {
		t.Fatal("expected error for unconfigured upstream")
	}
	pErr, ok := err.(*Error)
	if !ok || pErr.Kind != KindProtocol {
		t.Fatalf("error = %v, want protocol-kind Error", err)
	}
}

func TestBreakerStateStartsClosed(t *testing.T) {
	t.Parallel()

	c := NewClient(nil, &Options{Logger: quietLogger()})
	if state := c.BreakerState("anything"); state != "closed" {
		t.Fatalf("BreakerState = %q, want closed", state)
	}
}
