package geminiservice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

// Generator produces structured JSON text from a prompt pair and schema.
type Generator interface {
	GenerateStructured(ctx context.Context, systemPrompt, userPrompt string, schema *Schema) (string, error)
}

// BreakerConfig tunes the circuit breaker around a Generator.
type BreakerConfig struct {
	FailureThreshold uint32
	OpenTimeout      time.Duration
	MaxRequests      uint32
}

// Breaker stops calling Gemini after repeated failures and fails fast until
// OpenTimeout has passed.
type Breaker struct {
	next Generator
	cb   *gobreaker.CircuitBreaker
}

func NewBreaker(next Generator, cfg BreakerConfig) *Breaker {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = 1
	}

	settings := gobreaker.Settings{
		Name:        "gemini",
		MaxRequests: cfg.MaxRequests,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			// Cancelled callers do not count as failures.
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn().
				Str("circuit_breaker", name).
				Str("from_state", from.String()).
				Str("to_state", to.String()).
				Msg("Circuit breaker state changed")
		},
	}

	return &Breaker{next: next, cb: gobreaker.NewCircuitBreaker(settings)}
}

func (b *Breaker) GenerateStructured(ctx context.Context, systemPrompt, userPrompt string, schema *Schema) (string, error) {
	result, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.GenerateStructured(ctx, systemPrompt, userPrompt, schema)
	})
	if err != nil {
		return "", fmt.Errorf("circuit breaker execution failed: %w", err)
	}
	return result.(string), nil
}

// State reports the breaker state for health output.
func (b *Breaker) State() string {
	return b.cb.State().String()
}
