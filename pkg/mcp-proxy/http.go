package mcpproxy

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/plexmcp/plexmcp/pkg/protocol"
)

// sessionHeader carries the upstream-issued session token on HTTP carriers.
const sessionHeader = "Mcp-Session-Id"

// errAuthRejected marks a 401/403 from the upstream; the caller invalidates
// the cached session and retries once with a fresh handshake.
var errAuthRejected = errors.New("mcpproxy: upstream rejected credentials")

// httpSession is the cached negotiation outcome per endpoint. An empty id
// with negotiated=true means the upstream is sessionless and no header is
// sent on subsequent calls.
type httpSession struct {
	id         string
	negotiated bool
}

func (c *Client) httpClientFor(cfg TransportConfig) *http.Client {
	switch t := cfg.(type) {
	case *HTTPConfig:
		if t.HTTPClient != nil {
			return t.HTTPClient
		}
	case *SSEConfig:
		if t.HTTPClient != nil {
			return t.HTTPClient
		}
	}
	return c.httpClient
}

// postOnce performs a single HTTP exchange: marshal, POST with content
// negotiation, parse either a plain JSON response or a buffered SSE stream.
// It returns the response headers so handshake callers can extract the
// session id.
func (c *Client) postOnce(ctx context.Context, upstreamID string, cfg TransportConfig, req *protocol.Request, sessionID string) (*protocol.Response, http.Header, error) {
	endpoint := endpointOf(cfg)
	body, err := json.Marshal(req)
	if err != nil {
		return nil, nil, newError(KindProtocol, upstreamID, req.Method, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, nil, newError(KindProtocol, upstreamID, req.Method, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json, text/event-stream")
	authOf(cfg).apply(httpReq.Header)
	if sessionID != "" {
		httpReq.Header.Set(sessionHeader, sessionID)
	}

	resp, err := c.httpClientFor(cfg).Do(httpReq)
	if err != nil {
		return nil, nil, newError(KindTransport, upstreamID, req.Method, err)
	}
	defer resp.Body.Close()

	if req.IsNotification() {
		// Nothing to parse; upstreams answer notifications with 202/204.
		if resp.StatusCode >= 400 {
			return nil, resp.Header, c.statusError(upstreamID, req.Method, resp)
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, resp.Header, nil
	}

	if resp.StatusCode >= 400 {
		return nil, resp.Header, c.statusError(upstreamID, req.Method, resp)
	}

	var parsed *protocol.Response
	if isEventStream(resp.Header.Get("Content-Type")) {
		parsed, err = parseEventStream(resp.Body)
	} else {
		parsed, err = parseJSONResponse(resp.Body)
	}
	if err != nil {
		return nil, resp.Header, newError(KindProtocol, upstreamID, req.Method, err)
	}
	if parsed.Error != nil {
		return parsed, resp.Header, &UpstreamError{Upstream: upstreamID, RPC: parsed.Error}
	}
	return parsed, resp.Header, nil
}

func (c *Client) statusError(upstreamID, op string, resp *http.Response) error {
	_, _ = io.Copy(io.Discard, resp.Body)
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return newError(KindProtocol, upstreamID, op,
			fmt.Errorf("%w: status %d", errAuthRejected, resp.StatusCode))
	case resp.StatusCode >= 500:
		return newError(KindTransport, upstreamID, op,
			fmt.Errorf("upstream returned status %d", resp.StatusCode))
	default:
		return newError(KindProtocol, upstreamID, op,
			fmt.Errorf("upstream returned status %d", resp.StatusCode))
	}
}

func isEventStream(contentType string) bool {
	return strings.Contains(strings.ToLower(contentType), "text/event-stream")
}

func parseJSONResponse(r io.Reader) (*protocol.Response, error) {
	var resp protocol.Response
	if err := json.NewDecoder(r).Decode(&resp); err != nil {
		return nil, fmt.Errorf("malformed response: %w", err)
	}
	if !resp.Valid() {
		return nil, fmt.Errorf("malformed response: result and error are mutually exclusive")
	}
	return &resp, nil
}

// parseEventStream buffers the whole stream and scans it for "data:" frames.
// The protocol's streamed transport emits exactly one terminal result frame;
// intermediate frames (progress, keepalives) are discarded and the last
// parsable frame wins.
func parseEventStream(r io.Reader) (*protocol.Response, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var last *protocol.Response
	for scanner.Scan() {
		payload, ok := strings.CutPrefix(scanner.Text(), "data:")
		if !ok {
			continue
		}
		payload = strings.TrimSpace(payload)
		if payload == "" {
			continue
		}
		var resp protocol.Response
		if err := json.Unmarshal([]byte(payload), &resp); err != nil {
			continue
		}
		if !resp.Valid() {
			continue
		}
		last = &resp
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading event stream: %w", err)
	}
	if last == nil {
		return nil, fmt.Errorf("event stream carried no parsable result frame")
	}
	return last, nil
}

// sendHTTP executes a request over an HTTP or SSE carrier, negotiating a
// session on first use and re-negotiating once when the upstream rejects the
// cached credentials mid-session.
func (c *Client) sendHTTP(ctx context.Context, upstreamID string, cfg TransportConfig, req *protocol.Request) (*protocol.Response, error) {
	endpoint := endpointOf(cfg)

	sessionID, err := c.ensureSession(ctx, upstreamID, cfg)
	if err != nil {
		return nil, err
	}

	resp, _, err := c.postOnce(ctx, upstreamID, cfg, req, sessionID)
	if err != nil && errors.Is(err, errAuthRejected) {
		c.dropSession(endpoint)
		c.logger.Warn("session rejected upstream-side, renegotiating",
			"upstream", upstreamID, "method", req.Method)
		sessionID, err = c.ensureSession(ctx, upstreamID, cfg)
		if err != nil {
			return nil, err
		}
		resp, _, err = c.postOnce(ctx, upstreamID, cfg, req, sessionID)
	}
	return resp, err
}

// ensureSession returns the cached session id for the upstream's endpoint,
// running the initialize handshake on first use. Sessionless upstreams are
// recorded so the handshake is not repeated per call.
func (c *Client) ensureSession(ctx context.Context, upstreamID string, cfg TransportConfig) (string, error) {
	c.sessionMu.Lock()
	state, ok := c.sessions[endpointOf(cfg)]
	c.sessionMu.Unlock()
	if ok && state.negotiated {
		return state.id, nil
	}
	_, sessionID, err := c.handshakeHTTP(ctx, upstreamID, cfg)
	return sessionID, err
}

// handshakeHTTP performs the initialize exchange, caches the session id
// extracted from the response header (absence means sessionless), and fires
// the best-effort initialized notification.
func (c *Client) handshakeHTTP(ctx context.Context, upstreamID string, cfg TransportConfig) (*protocol.Response, string, error) {
	resp, header, err := c.postOnce(ctx, upstreamID, cfg, c.initializeRequest(), "")
	if err != nil {
		return nil, "", err
	}
	sessionID := header.Get(sessionHeader)

	c.sessionMu.Lock()
	c.sessions[endpointOf(cfg)] = httpSession{id: sessionID, negotiated: true}
	c.sessionMu.Unlock()

	c.notifyInitialized(upstreamID, cfg, sessionID)
	return resp, sessionID, nil
}

func (c *Client) dropSession(endpoint string) {
	c.sessionMu.Lock()
	delete(c.sessions, endpoint)
	c.sessionMu.Unlock()
}

// notifyInitialized fires the best-effort "initialized" notification in the
// background. Notifications have no response to validate; the outcome is
// logged rather than silently dropped.
func (c *Client) notifyInitialized(upstreamID string, cfg TransportConfig, sessionID string) {
	note := protocol.NewNotification(protocol.MethodInitializedNotify, nil)
	c.background.Add(1)
	go func() {
		defer c.background.Done()
		ctx, cancel := context.WithTimeout(context.Background(), c.opts.RequestTimeout)
		defer cancel()
		if _, _, err := c.postOnce(ctx, upstreamID, cfg, note, sessionID); err != nil {
			c.logger.Warn("initialized notification failed", "upstream", upstreamID, "error", err)
		}
	}()
}
