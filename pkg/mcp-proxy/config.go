package mcpproxy

import (
	"encoding/base64"
	"net/http"
	"time"
)

// TransportKind identifies the carrier family used by a TransportConfig.
type TransportKind string

const (
	TransportHTTP  TransportKind = "http"
	TransportSSE   TransportKind = "sse"
	TransportStdio TransportKind = "stdio"
)

// BaseConfig captures settings shared by all transport variants.
type BaseConfig struct {
	// Auth attaches credentials to outbound requests. Nil means AuthNone.
	Auth AuthConfig
	// Timeout overrides the client-wide request timeout for this upstream.
	Timeout time.Duration
}

// TransportConfig is implemented by the per-upstream transport descriptors.
// Descriptors are immutable configuration; the Client never mutates them.
type TransportConfig interface {
	base() *BaseConfig
	Kind() TransportKind
}

// HTTPConfig describes an upstream reachable via streaming HTTP POST.
type HTTPConfig struct {
	BaseConfig
	// Endpoint is the upstream's MCP URL.
	Endpoint string
	// HTTPClient overrides the client-wide pooled HTTP client.
	HTTPClient *http.Client
}

func (c *HTTPConfig) base() *BaseConfig { return &c.BaseConfig }
func (c *HTTPConfig) Kind() TransportKind { return TransportHTTP }

// SSEConfig describes an upstream whose responses arrive as Server-Sent
// Events. Requests are still POSTed; the response stream is buffered and the
// last parsable data frame wins.
type SSEConfig struct {
	BaseConfig
	Endpoint   string
	HTTPClient *http.Client
}

func (c *SSEConfig) base() *BaseConfig { return &c.BaseConfig }
func (c *SSEConfig) Kind() TransportKind { return TransportSSE }

// StdioConfig describes an upstream launched as a child process speaking
// newline-delimited JSON over its standard streams.
type StdioConfig struct {
	BaseConfig
	Command string
	Args    []string
	Env     map[string]string
}

func (c *StdioConfig) base() *BaseConfig { return &c.BaseConfig }
func (c *StdioConfig) Kind() TransportKind { return TransportStdio }

// endpointOf returns the HTTP endpoint for http-family configs and "" for
// stdio.
func endpointOf(cfg TransportConfig) string {
	switch c := cfg.(type) {
	case *HTTPConfig:
		return c.Endpoint
	case *SSEConfig:
		return c.Endpoint
	default:
		return ""
	}
}

// AuthConfig attaches upstream credentials to an outbound HTTP request.
type AuthConfig interface {
	apply(h http.Header)
}

// AuthNone sends no credentials.
type AuthNone struct{}

func (AuthNone) apply(http.Header) {}

// AuthBearer sends "Authorization: Bearer {token}".
type AuthBearer struct {
	Token string
}

func (a AuthBearer) apply(h http.Header) {
	h.Set("Authorization", "Bearer "+a.Token)
}

// AuthAPIKey sends the key under a configurable header, defaulting to
// X-Api-Key.
type AuthAPIKey struct {
	Header string
	Value  string
}

func (a AuthAPIKey) apply(h http.Header) {
	header := a.Header
	if header == "" {
		header = "X-Api-Key"
	}
	h.Set(header, a.Value)
}

// AuthBasic sends HTTP basic credentials.
type AuthBasic struct {
	Username string
	Password string
}

func (a AuthBasic) apply(h http.Header) {
	creds := base64.StdEncoding.EncodeToString([]byte(a.Username + ":" + a.Password))
	h.Set("Authorization", "Basic "+creds)
}

func authOf(cfg TransportConfig) AuthConfig {
	if auth := cfg.base().Auth; auth != nil {
		return auth
	}
	return AuthNone{}
}
