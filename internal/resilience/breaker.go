package resilience

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// ErrUnavailable is returned instead of calling the backend while its breaker is open.
var ErrUnavailable = errors.New("backend temporarily unavailable")

type Config struct {
	Enabled          bool
	MinRequests      uint32
	FailureRatio     float64
	OpenTimeout      time.Duration
	HalfOpenMaxCalls uint32
}

func DefaultConfig() Config {
	return Config{
		Enabled:          true,
		MinRequests:      10,
		FailureRatio:     0.5,
		OpenTimeout:      30 * time.Second,
		HalfOpenMaxCalls: 2,
	}
}

func (c Config) normalize() Config {
	out := c
	def := DefaultConfig()
	if out.MinRequests == 0 {
		out.MinRequests = def.MinRequests
	}
	if out.FailureRatio <= 0 || out.FailureRatio > 1 {
		out.FailureRatio = def.FailureRatio
	}
	if out.OpenTimeout <= 0 {
		out.OpenTimeout = def.OpenTimeout
	}
	if out.HalfOpenMaxCalls == 0 {
		out.HalfOpenMaxCalls = def.HalfOpenMaxCalls
	}
	return out
}

// Breaker keeps one circuit per named backend operation. Calls are never
// retried; a failure is reported to the caller as is.
type Breaker struct {
	cfg    Config
	logger zerolog.Logger

	// Ignore reports errors that say nothing about backend health, such as
	// a rejected password. They do not count as failures.
	Ignore func(error) bool

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[struct{}]
}

func New(cfg Config, logger zerolog.Logger) *Breaker {
	return &Breaker{
		cfg:      cfg.normalize(),
		logger:   logger.With().Str("component", "breaker").Logger(),
		breakers: map[string]*gobreaker.CircuitBreaker[struct{}]{},
	}
}

// Execute runs fn under the breaker for operation. A nil Breaker runs fn directly.
func (b *Breaker) Execute(ctx context.Context, operation string, fn func(context.Context) error) error {
	if fn == nil {
		return fmt.Errorf("resilience: operation callback is nil")
	}
	if b == nil || !b.cfg.Enabled {
		return fn(ctx)
	}
	op := strings.TrimSpace(operation)
	if op == "" {
		op = "unknown"
	}
	_, err := b.circuit(op).Execute(func() (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	if IsOpen(err) {
		return fmt.Errorf("%s: %w", op, ErrUnavailable)
	}
	return err
}

// State reports the circuit state for operation, "closed" if it was never used.
func (b *Breaker) State(operation string) string {
	if b == nil {
		return gobreaker.StateClosed.String()
	}
	b.mu.Lock()
	cb, ok := b.breakers[operation]
	b.mu.Unlock()
	if !ok {
		return gobreaker.StateClosed.String()
	}
	return cb.State().String()
}

func (b *Breaker) circuit(operation string) *gobreaker.CircuitBreaker[struct{}] {
	b.mu.Lock()
	defer b.mu.Unlock()
	if cb, ok := b.breakers[operation]; ok {
		return cb
	}
	settings := gobreaker.Settings{
		Name:        operation,
		MaxRequests: b.cfg.HalfOpenMaxCalls,
		Timeout:     b.cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < b.cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= b.cfg.FailureRatio
		},
		IsSuccessful: func(err error) bool {
			if err == nil || errors.Is(err, context.Canceled) {
				return true
			}
			return b.Ignore != nil && b.Ignore(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			b.logger.Warn().Str("operation", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
		},
	}
	cb := gobreaker.NewCircuitBreaker[struct{}](settings)
	b.breakers[operation] = cb
	return cb
}

func IsOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) || errors.Is(err, ErrUnavailable)
}
