// Package breaker provides per-upstream failure isolation for the gateway.
// Each upstream gets its own circuit breaker so one persistently failing
// server cannot exhaust caller retry budgets or connection pools. A rejected
// call is reported through ErrRejected, distinct from whatever error the
// guarded operation itself would have produced, so callers can tell
// "fast-failed without trying" apart from "attempted and failed".
package breaker

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// ErrRejected is returned when a call is refused without being attempted,
// either because the circuit is open or because the half-open trial slot is
// already taken.
var ErrRejected = errors.New("breaker: upstream rejected")

// Config tunes the per-upstream state machine. The zero value is usable;
// withDefaults fills in conservative settings.
type Config struct {
	// FailureThreshold is the number of failures within Window that trips
	// the breaker from Closed to Open.
	FailureThreshold uint32
	// Window is the rolling interval over which closed-state failure counts
	// accumulate before being reset.
	Window time.Duration
	// Cooldown is how long an open breaker rejects calls before admitting
	// half-open trials.
	Cooldown time.Duration
	// HalfOpenTrials bounds concurrent trial calls in the half-open state.
	HalfOpenTrials uint32
	// IsFailure classifies operation errors for counting purposes. When nil
	// every non-nil error counts as a failure.
	IsFailure func(error) bool
	// Logger receives state-transition diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.FailureThreshold == 0 {
		c.FailureThreshold = 5
	}
	if c.Window <= 0 {
		c.Window = 30 * time.Second
	}
	if c.Cooldown <= 0 {
		c.Cooldown = 30 * time.Second
	}
	if c.HalfOpenTrials == 0 {
		c.HalfOpenTrials = 1
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Manager holds one circuit breaker per upstream id, created lazily with a
// shared Config.
type Manager struct {
	cfg Config

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[struct{}]
}

// NewManager builds a Manager from cfg, applying defaults for zero fields.
func NewManager(cfg Config) *Manager {
	return &Manager{
		cfg:      cfg.withDefaults(),
		breakers: make(map[string]*gobreaker.CircuitBreaker[struct{}]),
	}
}

// Do runs op under the breaker for upstreamID. When the breaker does not
// admit the call, the returned error wraps ErrRejected and op is never
// invoked; otherwise op's own error (or nil) is returned and recorded.
func (m *Manager) Do(upstreamID string, op func() error) error {
	cb := m.breaker(upstreamID)
	_, err := cb.Execute(func() (struct{}, error) {
		return struct{}{}, op()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %s", ErrRejected, upstreamID)
	}
	return err
}

// State reports the current state name for an upstream's breaker, creating
// it if needed.
func (m *Manager) State(upstreamID string) string {
	return m.breaker(upstreamID).State().String()
}

// Reset discards the breaker for an upstream so the next call starts from a
// fresh closed state. Used when an upstream's configuration is replaced.
func (m *Manager) Reset(upstreamID string) {
	m.mu.Lock()
	delete(m.breakers, upstreamID)
	m.mu.Unlock()
}

func (m *Manager) breaker(upstreamID string) *gobreaker.CircuitBreaker[struct{}] {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cb, ok := m.breakers[upstreamID]; ok {
		return cb
	}
	cfg := m.cfg
	settings := gobreaker.Settings{
		Name:        upstreamID,
		MaxRequests: cfg.HalfOpenTrials,
		Interval:    cfg.Window,
		Timeout:     cfg.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.TotalFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			cfg.Logger.Warn("circuit state change",
				"upstream", name, "from", from.String(), "to", to.String())
		},
	}
	if cfg.IsFailure != nil {
		settings.IsSuccessful = func(err error) bool {
			return err == nil || !cfg.IsFailure(err)
		}
	}
	cb := gobreaker.NewCircuitBreaker[struct{}](settings)
	m.breakers[upstreamID] = cb
	return cb
}
