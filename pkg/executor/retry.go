package executor

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// Policy controls the retry loop around the action adapter.
type Policy struct {
	MaxAttempts    int
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	JitterFraction float64

	// Classify decides whether a failure deserves another attempt.
	// Nil means IsTransient.
	Classify func(error) bool
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    4,
		BaseDelay:      500 * time.Millisecond,
		MaxDelay:       30 * time.Second,
		JitterFraction: 0.3,
	}
}

// Delay computes the sleep before retrying after the given 1-based
// attempt: the base delay doubled per attempt, capped at MaxDelay,
// plus up to JitterFraction of random jitter to spread out competing
// retries.
func (p Policy) Delay(attempt int) time.Duration {
	delay := float64(p.BaseDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}
	if p.JitterFraction > 0 {
		delay += delay * p.JitterFraction * rand.Float64()
	}
	return time.Duration(delay)
}

// Do runs op until it succeeds, fails fatally, exhausts MaxAttempts,
// or ctx ends. op receives the 1-based attempt number.
func Do(ctx context.Context, p Policy, op func(ctx context.Context, attempt int) error) error {
	classify := p.Classify
	if classify == nil {
		classify = IsTransient
	}
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err = op(ctx, attempt); err == nil {
			return nil
		}
		if !classify(err) {
			return err
		}
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.Delay(attempt)):
		}
	}
	return fmt.Errorf("giving up after %d attempts: %w", attempts, err)
}
