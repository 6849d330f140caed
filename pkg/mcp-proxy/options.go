package mcpproxy

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/plexmcp/plexmcp/pkg/breaker"
)

// Options configure a Client instance.
type Options struct {
	// ClientName is advertised to upstreams during the initialize handshake.
	// Defaults to "plexmcp-gateway".
	ClientName string
	// ClientVersion is the semantic version reported to upstreams.
	ClientVersion string
	// RequestTimeout bounds every transport call, independent of the retry
	// budget. Defaults to 30s.
	RequestTimeout time.Duration
	// ShutdownGrace is how long Shutdown waits for a stdio child to exit
	// after its stdin closes before force-killing it. Defaults to 5s.
	ShutdownGrace time.Duration
	// Retry tunes the backoff strategy used by the WithRetry call variants.
	Retry RetryPolicy
	// Breaker tunes the per-upstream circuit breakers.
	Breaker breaker.Config
	// HTTPClient is the pooled client for HTTP/SSE upstreams that do not
	// carry their own. Defaults to a client bounded per host.
	HTTPClient *http.Client
	// MaxConnsPerHost bounds the default HTTP client's connection pool.
	// Defaults to 64.
	MaxConnsPerHost int
	// Logger receives structured diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
}

func (o *Options) withDefaults() Options {
	var opts Options
	if o != nil {
		opts = *o
	}
	if opts.ClientName == "" {
		opts.ClientName = "plexmcp-gateway"
	}
	if opts.ClientVersion == "" {
		opts.ClientVersion = "1.0.0"
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if opts.ShutdownGrace <= 0 {
		opts.ShutdownGrace = 5 * time.Second
	}
	opts.Retry = opts.Retry.withDefaults()
	if opts.MaxConnsPerHost <= 0 {
		opts.MaxConnsPerHost = 64
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{
			Transport: &http.Transport{
				MaxConnsPerHost:     opts.MaxConnsPerHost,
				MaxIdleConnsPerHost: 16,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Breaker.IsFailure == nil {
		opts.Breaker.IsFailure = isAvailabilityFailure
	}
	if opts.Breaker.Logger == nil {
		opts.Breaker.Logger = opts.Logger
	}
	return opts
}
