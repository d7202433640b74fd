package mailer

import (
	"context"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
)

// BreakerConfig holds circuit breaker tuning for the mail transport.
type BreakerConfig struct {
	// MaxRequests is the number of probe requests allowed in half-open state.
	MaxRequests uint32
	// Interval is the cyclic period for clearing counts while closed.
	Interval time.Duration
	// Timeout is how long the breaker stays open before probing again.
	Timeout time.Duration
	// FailureRatio trips the breaker once MinRequests have been seen.
	FailureRatio float64
	MinRequests  uint32
}

// DefaultBreakerConfig returns sensible defaults for the SMTP breaker.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:  1,
		Interval:     60 * time.Second,
		Timeout:      30 * time.Second,
		FailureRatio: 0.5,
		MinRequests:  5,
	}
}

// Breaker wraps a Mailer with a circuit breaker so a dead SMTP server fails
// fast instead of holding a dial timeout on every send.
type Breaker struct {
	next    Mailer
	breaker *gobreaker.CircuitBreaker[struct{}]
}

// NewBreaker wraps a mailer with circuit breaker protection.
func NewBreaker(next Mailer, cfg BreakerConfig, logger *slog.Logger) *Breaker {
	settings := gobreaker.Settings{
		Name:        "mailer",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	}

	return &Breaker{
		next:    next,
		breaker: gobreaker.NewCircuitBreaker[struct{}](settings),
	}
}

// SendRegistrationOTP sends through the breaker.
func (b *Breaker) SendRegistrationOTP(ctx context.Context, to, code string) error {
	return b.execute(func() error { return b.next.SendRegistrationOTP(ctx, to, code) })
}

// SendPasswordResetOTP sends through the breaker.
func (b *Breaker) SendPasswordResetOTP(ctx context.Context, to, code string) error {
	return b.execute(func() error { return b.next.SendPasswordResetOTP(ctx, to, code) })
}

func (b *Breaker) execute(fn func() error) error {
	_, err := b.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// State returns the current breaker state.
func (b *Breaker) State() gobreaker.State {
	return b.breaker.State()
}
