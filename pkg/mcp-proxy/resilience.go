package mcpproxy

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// RetryPolicy parameterizes the generic retry strategy: jittered exponential
// backoff, applied only when the error classifies transient.
type RetryPolicy struct {
	// BaseDelay is the first backoff interval. Defaults to 100ms.
	BaseDelay time.Duration
	// MaxDelay caps the backoff interval. Defaults to 5s.
	MaxDelay time.Duration
	// MaxAttempts bounds total attempts including the first. Defaults to 3.
	MaxAttempts uint
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.BaseDelay <= 0 {
		p.BaseDelay = 100 * time.Millisecond
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 5 * time.Second
	}
	if p.MaxAttempts == 0 {
		p.MaxAttempts = 3
	}
	return p
}

// retryTransient runs op under the client's retry policy. Errors that do not
// classify transient are marked permanent so backoff stops immediately;
// retrying is the classifier's decision, never the call site's.
func (c *Client) retryTransient(ctx context.Context, op func() error) error {
	policy := c.opts.Retry
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = policy.BaseDelay
	bo.MaxInterval = policy.MaxDelay

	wrapped := func() (struct{}, error) {
		err := op()
		if err != nil && !IsRetryable(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}
	_, err := backoff.Retry(ctx, wrapped,
		backoff.WithBackOff(bo), backoff.WithMaxTries(policy.MaxAttempts))
	return err
}

// guarded runs a typed operation behind the upstream's circuit breaker.
func guarded[T any](c *Client, upstreamID string, op func() (*T, error)) (*T, error) {
	var out *T
	err := c.breakers.Do(upstreamID, func() error {
		var innerErr error
		out, innerErr = op()
		return innerErr
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// guardedRetry adds transient-failure retries around the breaker-guarded
// operation. A breaker rejection is permanent and surfaces immediately.
func guardedRetry[T any](ctx context.Context, c *Client, upstreamID string, op func() (*T, error)) (*T, error) {
	var out *T
	err := c.retryTransient(ctx, func() error {
		var innerErr error
		out, innerErr = guarded(c, upstreamID, op)
		return innerErr
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListToolsGuarded is ListTools behind the upstream's circuit breaker.
func (c *Client) ListToolsGuarded(ctx context.Context, upstreamID string) (*mcp.ListToolsResult, error) {
	return guarded(c, upstreamID, func() (*mcp.ListToolsResult, error) {
		return c.ListTools(ctx, upstreamID)
	})
}

// ListToolsWithRetry is ListToolsGuarded with transient-failure retries.
func (c *Client) ListToolsWithRetry(ctx context.Context, upstreamID string) (*mcp.ListToolsResult, error) {
	return guardedRetry(ctx, c, upstreamID, func() (*mcp.ListToolsResult, error) {
		return c.ListTools(ctx, upstreamID)
	})
}

// CallToolGuarded is CallTool behind the upstream's circuit breaker.
func (c *Client) CallToolGuarded(ctx context.Context, upstreamID, tool string, args any) (*mcp.CallToolResult, error) {
	return guarded(c, upstreamID, func() (*mcp.CallToolResult, error) {
		return c.CallTool(ctx, upstreamID, tool, args)
	})
}

// CallToolWithRetry is CallToolGuarded with transient-failure retries.
func (c *Client) CallToolWithRetry(ctx context.Context, upstreamID, tool string, args any) (*mcp.CallToolResult, error) {
	return guardedRetry(ctx, c, upstreamID, func() (*mcp.CallToolResult, error) {
		return c.CallTool(ctx, upstreamID, tool, args)
	})
}

// ListResourcesGuarded is ListResources behind the upstream's circuit breaker.
func (c *Client) ListResourcesGuarded(ctx context.Context, upstreamID string) (*mcp.ListResourcesResult, error) {
	return guarded(c, upstreamID, func() (*mcp.ListResourcesResult, error) {
		return c.ListResources(ctx, upstreamID)
	})
}

// ListResourcesWithRetry is ListResourcesGuarded with transient-failure retries.
func (c *Client) ListResourcesWithRetry(ctx context.Context, upstreamID string) (*mcp.ListResourcesResult, error) {
	return guardedRetry(ctx, c, upstreamID, func() (*mcp.ListResourcesResult, error) {
		return c.ListResources(ctx, upstreamID)
	})
}

// ReadResourceGuarded is ReadResource behind the upstream's circuit breaker.
func (c *Client) ReadResourceGuarded(ctx context.Context, upstreamID, uri string) (*mcp.ReadResourceResult, error) {
	return guarded(c, upstreamID, func() (*mcp.ReadResourceResult, error) {
		return c.ReadResource(ctx, upstreamID, uri)
	})
}

// ReadResourceWithRetry is ReadResourceGuarded with transient-failure retries.
func (c *Client) ReadResourceWithRetry(ctx context.Context, upstreamID, uri string) (*mcp.ReadResourceResult, error) {
	return guardedRetry(ctx, c, upstreamID, func() (*mcp.ReadResourceResult, error) {
		return c.ReadResource(ctx, upstreamID, uri)
	})
}

// ListPromptsGuarded is ListPrompts behind the upstream's circuit breaker.
func (c *Client) ListPromptsGuarded(ctx context.Context, upstreamID string) (*mcp.ListPromptsResult, error) {
	return guarded(c, upstreamID, func() (*mcp.ListPromptsResult, error) {
		return c.ListPrompts(ctx, upstreamID)
	})
}

// ListPromptsWithRetry is ListPromptsGuarded with transient-failure retries.
func (c *Client) ListPromptsWithRetry(ctx context.Context, upstreamID string) (*mcp.ListPromptsResult, error) {
	return guardedRetry(ctx, c, upstreamID, func() (*mcp.ListPromptsResult, error) {
		return c.ListPrompts(ctx, upstreamID)
	})
}

// GetPromptGuarded is GetPrompt behind the upstream's circuit breaker.
func (c *Client) GetPromptGuarded(ctx context.Context, upstreamID, prompt string, args map[string]string) (*mcp.GetPromptResult, error) {
	return guarded(c, upstreamID, func() (*mcp.GetPromptResult, error) {
		return c.GetPrompt(ctx, upstreamID, prompt, args)
	})
}

// GetPromptWithRetry is GetPromptGuarded with transient-failure retries.
func (c *Client) GetPromptWithRetry(ctx context.Context, upstreamID, prompt string, args map[string]string) (*mcp.GetPromptResult, error) {
	return guardedRetry(ctx, c, upstreamID, func() (*mcp.GetPromptResult, error) {
		return c.GetPrompt(ctx, upstreamID, prompt, args)
	})
}
