package mcpproxy

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/xid"

	"github.com/plexmcp/plexmcp/pkg/breaker"
	"github.com/plexmcp/plexmcp/pkg/protocol"
)

// Client executes protocol requests against configured upstreams with
// session, process, and failure-isolation state owned per instance. There
// are no package-level tables: constructing a second Client yields fully
// independent state, and Shutdown tears everything down deterministically.
type Client struct {
	opts     Options
	logger   *slog.Logger
	breakers *breaker.Manager

	httpClient *http.Client
	launch     launcher

	nextID atomic.Int64

	mu        sync.RWMutex
	upstreams map[string]TransportConfig

	sessionMu sync.Mutex
	sessions  map[string]httpSession

	stdioMu sync.Mutex
	procs   map[string]*stdioProcess

	background sync.WaitGroup
}

// NewClient constructs a Client over the given upstream configurations.
// Connections and processes are established lazily on first call.
func NewClient(upstreams map[string]TransportConfig, opts *Options) *Client {
	options := opts.withDefaults()
	c := &Client{
		opts:       options,
		logger:     options.Logger,
		breakers:   breaker.NewManager(options.Breaker),
		httpClient: options.HTTPClient,
		launch:     launchCommand,
		upstreams:  make(map[string]TransportConfig, len(upstreams)),
		sessions:   make(map[string]httpSession),
		procs:      make(map[string]*stdioProcess),
	}
	for id, cfg := range upstreams {
		c.upstreams[id] = cfg
	}
	return c
}

// ListUpstreams returns the configured upstream ids, sorted.
func (c *Client) ListUpstreams() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]string, 0, len(c.upstreams))
	for id := range c.upstreams {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// HasUpstream reports whether an upstream id is configured.
func (c *Client) HasUpstream(upstreamID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.upstreams[upstreamID]
	return ok
}

// UpstreamConfig returns the transport descriptor for an upstream, or nil.
func (c *Client) UpstreamConfig(upstreamID string) TransportConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.upstreams[upstreamID]
}

// AddUpstream registers or replaces an upstream configuration. Replacing a
// stdio upstream tears down its running process; the next call respawns
// under the new configuration.
func (c *Client) AddUpstream(upstreamID string, cfg TransportConfig) {
	c.mu.Lock()
	previous := c.upstreams[upstreamID]
	c.upstreams[upstreamID] = cfg
	c.mu.Unlock()

	if previous != nil {
		c.teardownUpstream(upstreamID, previous)
	}
}

// RemoveUpstream deletes an upstream and tears down its runtime state:
// process, cached session, and breaker.
func (c *Client) RemoveUpstream(upstreamID string) {
	c.mu.Lock()
	cfg, ok := c.upstreams[upstreamID]
	delete(c.upstreams, upstreamID)
	c.mu.Unlock()
	if !ok {
		return
	}
	c.teardownUpstream(upstreamID, cfg)
}

func (c *Client) teardownUpstream(upstreamID string, cfg TransportConfig) {
	if endpoint := endpointOf(cfg); endpoint != "" {
		c.dropSession(endpoint)
	}
	c.stdioMu.Lock()
	p := c.procs[upstreamID]
	delete(c.procs, upstreamID)
	c.stdioMu.Unlock()
	if p != nil {
		<-p.ready
		if p.startErr == nil {
			c.gracefulStop(p)
		}
	}
	c.breakers.Reset(upstreamID)
}

// SendRequest executes one protocol request against the named upstream over
// its configured transport. Upstream-reported protocol errors come back as
// *UpstreamError; transport and process faults as *Error.
func (c *Client) SendRequest(ctx context.Context, upstreamID string, req *protocol.Request) (*protocol.Response, error) {
	cfg := c.UpstreamConfig(upstreamID)
	if cfg == nil {
		return nil, newError(KindProtocol, upstreamID, req.Method, fmt.Errorf("unknown upstream"))
	}

	ctx, cancel := c.callContext(ctx, cfg)
	defer cancel()

	corr := xid.New().String()
	c.logger.Debug("proxy call", "corr", corr, "upstream", upstreamID,
		"method", req.Method, "transport", cfg.Kind())

	var (
		resp *protocol.Response
		err  error
	)
	switch t := cfg.(type) {
	case *StdioConfig:
		resp, err = c.sendStdio(ctx, upstreamID, t, req)
	default:
		resp, err = c.sendHTTP(ctx, upstreamID, cfg, req)
	}
	if err != nil {
		c.logger.Debug("proxy call failed", "corr", corr, "upstream", upstreamID,
			"method", req.Method, "error", err)
	}
	return resp, err
}

// SendRequestGuarded is SendRequest behind the upstream's circuit breaker.
// When the breaker does not admit the call, the error wraps
// breaker.ErrRejected and the transport is never touched.
func (c *Client) SendRequestGuarded(ctx context.Context, upstreamID string, req *protocol.Request) (*protocol.Response, error) {
	var resp *protocol.Response
	err := c.breakers.Do(upstreamID, func() error {
		var innerErr error
		resp, innerErr = c.SendRequest(ctx, upstreamID, req)
		return innerErr
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// SendRequestWithRetry is SendRequestGuarded plus jittered exponential
// backoff on transient transport failures. Breaker rejections and permanent
// errors surface immediately.
func (c *Client) SendRequestWithRetry(ctx context.Context, upstreamID string, req *protocol.Request) (*protocol.Response, error) {
	var resp *protocol.Response
	err := c.retryTransient(ctx, func() error {
		var innerErr error
		resp, innerErr = c.SendRequestGuarded(ctx, upstreamID, req)
		return innerErr
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// BreakerState reports the circuit state for an upstream ("closed", "open",
// "half-open").
func (c *Client) BreakerState(upstreamID string) string {
	return c.breakers.State(upstreamID)
}

// Initialize performs (or replays) the handshake for an upstream and
// returns the upstream's advertised capabilities.
func (c *Client) Initialize(ctx context.Context, upstreamID string) (*mcp.InitializeResult, error) {
	cfg := c.UpstreamConfig(upstreamID)
	if cfg == nil {
		return nil, newError(KindProtocol, upstreamID, protocol.MethodInitialize, fmt.Errorf("unknown upstream"))
	}
	ctx, cancel := c.callContext(ctx, cfg)
	defer cancel()

	var out mcp.InitializeResult
	if stdioCfg, ok := cfg.(*StdioConfig); ok {
		// The spawn path already ran the handshake over the fresh pipe;
		// replaying initialize against a running child is a protocol error.
		p, err := c.getProcess(ctx, upstreamID, stdioCfg)
		if err != nil {
			return nil, err
		}
		if err := decodeInto(upstreamID, protocol.MethodInitialize, p.initResult, &out); err != nil {
			return nil, err
		}
		return &out, nil
	}

	resp, _, err := c.handshakeHTTP(ctx, upstreamID, cfg)
	if err != nil {
		return nil, err
	}
	if err := decodeInto(upstreamID, protocol.MethodInitialize, resp.Result, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListTools lists the tools declared by one upstream.
func (c *Client) ListTools(ctx context.Context, upstreamID string) (*mcp.ListToolsResult, error) {
	return call[mcp.ListToolsResult](ctx, c, upstreamID, protocol.MethodToolsList, nil)
}

// CallTool invokes a tool by its native (unprefixed) name.
func (c *Client) CallTool(ctx context.Context, upstreamID, tool string, args any) (*mcp.CallToolResult, error) {
	params := &mcp.CallToolParams{Name: tool, Arguments: args}
	return call[mcp.CallToolResult](ctx, c, upstreamID, protocol.MethodToolsCall, params)
}

// ListResources lists the resources declared by one upstream.
func (c *Client) ListResources(ctx context.Context, upstreamID string) (*mcp.ListResourcesResult, error) {
	return call[mcp.ListResourcesResult](ctx, c, upstreamID, protocol.MethodResourcesList, nil)
}

// ReadResource reads a resource by its native URI.
func (c *Client) ReadResource(ctx context.Context, upstreamID, uri string) (*mcp.ReadResourceResult, error) {
	params := &mcp.ReadResourceParams{URI: uri}
	return call[mcp.ReadResourceResult](ctx, c, upstreamID, protocol.MethodResourcesRead, params)
}

// ListPrompts lists the prompts declared by one upstream.
func (c *Client) ListPrompts(ctx context.Context, upstreamID string) (*mcp.ListPromptsResult, error) {
	return call[mcp.ListPromptsResult](ctx, c, upstreamID, protocol.MethodPromptsList, nil)
}

// GetPrompt retrieves one prompt by its native name.
func (c *Client) GetPrompt(ctx context.Context, upstreamID, prompt string, args map[string]string) (*mcp.GetPromptResult, error) {
	params := &mcp.GetPromptParams{Name: prompt, Arguments: args}
	return call[mcp.GetPromptResult](ctx, c, upstreamID, protocol.MethodPromptsGet, params)
}

// Ping checks upstream liveness at the protocol level.
func (c *Client) Ping(ctx context.Context, upstreamID string) error {
	_, err := c.SendRequest(ctx, upstreamID, c.newRequest(protocol.MethodPing, nil))
	return err
}

// Shutdown drains the process table and stops every child: stdin close for
// a graceful exit, force-kill after the grace period, and a final reap on
// every path. No live or zombie child survives a completed Shutdown.
func (c *Client) Shutdown(ctx context.Context) error {
	c.stdioMu.Lock()
	procs := make([]*stdioProcess, 0, len(c.procs))
	for _, p := range c.procs {
		procs = append(procs, p)
	}
	c.procs = make(map[string]*stdioProcess)
	c.stdioMu.Unlock()

	for _, p := range procs {
		<-p.ready
		if p.startErr != nil {
			continue
		}
		c.gracefulStop(p)
	}

	c.sessionMu.Lock()
	c.sessions = make(map[string]httpSession)
	c.sessionMu.Unlock()

	done := make(chan struct{})
	go func() {
		c.background.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// call is the shared typed-operation path: send, check, decode.
func call[T any](ctx context.Context, c *Client, upstreamID, method string, params any) (*T, error) {
	resp, err := c.SendRequest(ctx, upstreamID, c.newRequest(method, params))
	if err != nil {
		return nil, err
	}
	var out T
	if err := decodeInto(upstreamID, method, resp.Result, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func decodeInto(upstreamID, method string, raw []byte, out any) error {
	if raw == nil {
		return newError(KindProtocol, upstreamID, method, fmt.Errorf("response carried no result"))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return newError(KindProtocol, upstreamID, method, fmt.Errorf("malformed result: %w", err))
	}
	return nil
}

func (c *Client) newRequest(method string, params any) *protocol.Request {
	return protocol.NewRequest(protocol.NumberID(c.nextID.Add(1)), method, params)
}

func (c *Client) initializeRequest() *protocol.Request {
	params := &mcp.InitializeParams{
		ProtocolVersion: protocol.MCPVersion,
		Capabilities:    &mcp.ClientCapabilities{},
		ClientInfo: &mcp.Implementation{
			Name:    c.opts.ClientName,
			Version: c.opts.ClientVersion,
		},
	}
	return c.newRequest(protocol.MethodInitialize, params)
}

// callContext applies the per-upstream or client-wide request timeout.
func (c *Client) callContext(ctx context.Context, cfg TransportConfig) (context.Context, context.CancelFunc) {
	timeout := cfg.base().Timeout
	if timeout <= 0 {
		timeout = c.opts.RequestTimeout
	}
	if timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}
