package resilience

import (
	"errors"
	"time"

	"github.com/sony/gobreaker"
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

type CircuitState string

const (
	CircuitStateClosed   CircuitState = "closed"
	CircuitStateOpen     CircuitState = "open"
	CircuitStateHalfOpen CircuitState = "half_open"
)

// CircuitBreakerConfig sizes a breaker. Zero values fall back to 5
// consecutive failures, a 15s open window and 2 half-open probes.
type CircuitBreakerConfig struct {
	Enabled          bool
	FailureThreshold int
	OpenTimeout      time.Duration
	HalfOpenMaxReq   int
}

func (c CircuitBreakerConfig) withDefaults() CircuitBreakerConfig {
	if c.FailureThreshold < 1 {
		c.FailureThreshold = 5
	}
	if c.OpenTimeout <= 0 {
		c.OpenTimeout = 15 * time.Second
	}
	if c.HalfOpenMaxReq < 1 {
		c.HalfOpenMaxReq = 2
	}
	return c
}

// CircuitBreaker protects one upstream dependency. A nil breaker allows everything.
type CircuitBreaker struct {
	cb           *gobreaker.TwoStepCircuitBreaker
	isSuccessful func(err error) bool
}

type BreakerOption func(*breakerOptions)

type breakerOptions struct {
	settings     gobreaker.Settings
	isSuccessful func(err error) bool
}

// WithStateChange registers a callback fired on every state transition.
func WithStateChange(fn func(name string, from, to CircuitState)) BreakerOption {
	return func(o *breakerOptions) {
		if fn == nil {
			return
		}
		o.settings.OnStateChange = func(name string, from, to gobreaker.State) {
			fn(name, mapState(from), mapState(to))
		}
	}
}

// WithSuccessClassifier decides which errors do not count as failures.
func WithSuccessClassifier(fn func(err error) bool) BreakerOption {
	return func(o *breakerOptions) {
		o.isSuccessful = fn
	}
}

func NewCircuitBreaker(name string, cfg CircuitBreakerConfig, opts ...BreakerOption) *CircuitBreaker {
	if !cfg.Enabled {
		return nil
	}
	cfg = cfg.withDefaults()

	threshold := uint32(cfg.FailureThreshold)
	options := breakerOptions{
		settings: gobreaker.Settings{
			Name:        name,
			MaxRequests: uint32(cfg.HalfOpenMaxReq),
			Timeout:     cfg.OpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
		},
		isSuccessful: func(err error) bool { return err == nil },
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.isSuccessful == nil {
		options.isSuccessful = func(err error) bool { return err == nil }
	}

	return &CircuitBreaker{
		cb:           gobreaker.NewTwoStepCircuitBreaker(options.settings),
		isSuccessful: options.isSuccessful,
	}
}

// Allow reserves a slot. The returned done func must be called exactly once
// with the outcome of the protected call.
func (b *CircuitBreaker) Allow() (func(err error), error) {
	if b == nil || b.cb == nil {
		return func(error) {}, nil
	}

	done, err := b.cb.Allow()
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, ErrCircuitOpen
		}
		return nil, err
	}
	return func(callErr error) {
		done(b.isSuccessful(callErr))
	}, nil
}

// Execute runs fn behind the breaker.
func (b *CircuitBreaker) Execute(fn func() (any, error)) (any, error) {
	done, err := b.Allow()
	if err != nil {
		return nil, err
	}
	value, err := fn()
	done(err)
	return value, err
}

func (b *CircuitBreaker) State() CircuitState {
	if b == nil || b.cb == nil {
		return CircuitStateClosed
	}
	return mapState(b.cb.State())
}

func mapState(state gobreaker.State) CircuitState {
	switch state {
	case gobreaker.StateOpen:
		return CircuitStateOpen
	case gobreaker.StateHalfOpen:
		return CircuitStateHalfOpen
	default:
		return CircuitStateClosed
	}
}
