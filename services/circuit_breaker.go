package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"invest-desk/observability"
)

// Circuit breaker names for external providers
const (
	BreakerYahoo        = "yahoo"
	BreakerAlpaca       = "alpaca"
	BreakerAlphaVantage = "alphavantage"
	BreakerSupabase     = "supabase"
)

// CircuitBreakerConfig tunes one provider's breaker
type CircuitBreakerConfig struct {
	MaxRequests  uint32        // probes allowed while half-open
	Interval     time.Duration // closed-state window after which counts reset
	Timeout      time.Duration // how long the breaker stays open
	MinRequests  uint32        // requests in the window before the ratio is considered
	FailureRatio float64       // trip when failures/requests reaches this
}

// DefaultCircuitBreakerConfig applies to providers without an override
var DefaultCircuitBreakerConfig = CircuitBreakerConfig{
	MaxRequests:  5,
	Interval:     1 * time.Minute,
	Timeout:      30 * time.Second,
	MinRequests:  5,
	FailureRatio: 0.5,
}

// providerOverrides: the auth breaker trips late and recovers fast; the
// rate-limited fundamentals breaker trips early and stays open longer.
var providerOverrides = map[string]CircuitBreakerConfig{
	BreakerSupabase: {
		MaxRequests:  10,
		Interval:     1 * time.Minute,
		Timeout:      10 * time.Second,
		MinRequests:  10,
		FailureRatio: 0.6,
	},
	BreakerAlphaVantage: {
		MaxRequests:  1,
		Interval:     5 * time.Minute,
		Timeout:      2 * time.Minute,
		MinRequests:  3,
		FailureRatio: 0.5,
	},
}

// CircuitBreakerRegistry holds one breaker per provider
type CircuitBreakerRegistry struct {
	mu        sync.RWMutex
	breakers  map[string]*gobreaker.CircuitBreaker[any]
	config    CircuitBreakerConfig
	overrides map[string]CircuitBreakerConfig
}

// NewCircuitBreakerRegistry creates a registry whose breakers use config
func NewCircuitBreakerRegistry(config CircuitBreakerConfig) *CircuitBreakerRegistry {
	return &CircuitBreakerRegistry{
		breakers:  make(map[string]*gobreaker.CircuitBreaker[any]),
		config:    config,
		overrides: make(map[string]CircuitBreakerConfig),
	}
}

// NewProviderRegistry creates a registry with the per-provider overrides applied
func NewProviderRegistry() *CircuitBreakerRegistry {
	r := NewCircuitBreakerRegistry(DefaultCircuitBreakerConfig)
	for name, cfg := range providerOverrides {
		r.Configure(name, cfg)
	}
	return r
}

// Configure sets the config for a named breaker. It has no effect once the
// breaker has been created.
func (r *CircuitBreakerRegistry) Configure(name string, cfg CircuitBreakerConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.overrides[name] = cfg
}

func (r *CircuitBreakerRegistry) configFor(name string) CircuitBreakerConfig {
	if cfg, ok := r.overrides[name]; ok {
		return cfg
	}
	return r.config
}

// GetBreaker returns the breaker for name, creating it on first use
func (r *CircuitBreakerRegistry) GetBreaker(name string) *gobreaker.CircuitBreaker[any] {
	r.mu.RLock()
	cb, exists := r.breakers[name]
	r.mu.RUnlock()
	if exists {
		return cb
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if cb, exists = r.breakers[name]; exists {
		return cb
	}

	cb = gobreaker.NewCircuitBreaker[any](breakerSettings(name, r.configFor(name)))
	r.breakers[name] = cb
	return cb
}

func breakerSettings(name string, cfg CircuitBreakerConfig) gobreaker.Settings {
	minRequests := cfg.MinRequests
	if minRequests == 0 {
		minRequests = 1
	}
	return gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < minRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
		// Unknown symbols, rejected tokens and caller cancellations say nothing about provider health
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, ErrSymbolNotFound) ||
				errors.Is(err, ErrUnauthorized) ||
				errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			observability.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String())

			metrics := observability.GetMetrics()
			metrics.SetCircuitBreakerState(name, stateToInt(to))
			if to == gobreaker.StateOpen {
				metrics.RecordCircuitBreakerTrip(name)
			}
		},
	}
}

// Execute runs fn through the named breaker. Rejected calls return an
// error wrapping ErrProviderUnavailable.
func (r *CircuitBreakerRegistry) Execute(ctx context.Context, name string, fn func() (any, error)) (any, error) {
	result, err := r.GetBreaker(name).Execute(func() (any, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return fn()
	})

	switch {
	case errors.Is(err, gobreaker.ErrOpenState):
		observability.Warn("circuit breaker open, rejecting request", "breaker", name)
		return nil, fmt.Errorf("%w: %s circuit open", ErrProviderUnavailable, name)
	case errors.Is(err, gobreaker.ErrTooManyRequests):
		observability.Warn("circuit breaker half-open, rejecting request", "breaker", name)
		return nil, fmt.Errorf("%w: %s probing after outage", ErrProviderUnavailable, name)
	}
	return result, err
}

// CircuitBreakerStatus is a breaker's state as reported by the health endpoint
type CircuitBreakerStatus struct {
	Name             string `json:"name"`
	State            string `json:"state"`
	Requests         uint32 `json:"requests"`
	TotalSuccesses   uint32 `json:"total_successes"`
	TotalFailures    uint32 `json:"total_failures"`
	ConsecutiveSucc  uint32 `json:"consecutive_successes"`
	ConsecutiveFails uint32 `json:"consecutive_failures"`
}

// Status snapshots every breaker created so far
func (r *CircuitBreakerRegistry) Status() map[string]CircuitBreakerStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	status := make(map[string]CircuitBreakerStatus, len(r.breakers))
	for name, cb := range r.breakers {
		counts := cb.Counts()
		status[name] = CircuitBreakerStatus{
			Name:             name,
			State:            cb.State().String(),
			Requests:         counts.Requests,
			TotalSuccesses:   counts.TotalSuccesses,
			TotalFailures:    counts.TotalFailures,
			ConsecutiveSucc:  counts.ConsecutiveSuccesses,
			ConsecutiveFails: counts.ConsecutiveFailures,
		}
	}
	return status
}

// AnyOpen reports whether some breaker is currently rejecting calls
func (r *CircuitBreakerRegistry) AnyOpen() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, cb := range r.breakers {
		if cb.State() == gobreaker.StateOpen {
			return true
		}
	}
	return false
}

var (
	globalRegistry *CircuitBreakerRegistry
	registryMu     sync.RWMutex
)

// GetGlobalRegistry returns the process-wide registry used by the providers
func GetGlobalRegistry() *CircuitBreakerRegistry {
	registryMu.RLock()
	r := globalRegistry
	registryMu.RUnlock()
	if r != nil {
		return r
	}

	registryMu.Lock()
	defer registryMu.Unlock()
	if globalRegistry == nil {
		globalRegistry = NewProviderRegistry()
	}
	return globalRegistry
}

// SetGlobalRegistry replaces the process-wide registry, for tests
func SetGlobalRegistry(r *CircuitBreakerRegistry) {
	registryMu.Lock()
	globalRegistry = r
	registryMu.Unlock()
}

// WithCircuitBreaker runs fn through the named breaker of the global registry
func WithCircuitBreaker[T any](ctx context.Context, name string, fn func() (T, error)) (T, error) {
	result, err := GetGlobalRegistry().Execute(ctx, name, func() (any, error) {
		return fn()
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result.(T), nil
}

// stateToInt maps a breaker state to the gauge value: 0 closed, 1 half-open, 2 open
func stateToInt(state gobreaker.State) int {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
