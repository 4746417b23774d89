package executor

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestDelayDoublesAndCaps(t *testing.T) {
	p := Policy{BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, time.Second},
		{6, time.Second},
	}
	for _, tt := range tests {
		if got := p.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestDelayJitterBounds(t *testing.T) {
	p := Policy{BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second, JitterFraction: 0.3}

	for attempt := 1; attempt <= 6; attempt++ {
		base := Policy{BaseDelay: p.BaseDelay, MaxDelay: p.MaxDelay}.Delay(attempt)
		upper := base + time.Duration(0.3*float64(base))
		for i := 0; i < 50; i++ {
			got := p.Delay(attempt)
			if got < base || got > upper {
				t.Fatalf("Delay(%d) = %v outside [%v, %v]", attempt, got, base, upper)
			}
		}
	}
}

func fastPolicy(maxAttempts int) Policy {
	return Policy{
		MaxAttempts: maxAttempts,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
	}
}

func TestDoFirstTrySuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(4), func(ctx context.Context, attempt int) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if calls != 1 {
		t.Errorf("op called %d times, want 1", calls)
	}
}

func TestDoRetriesTransientUntilSuccess(t *testing.T) {
	var attempts []int
	err := Do(context.Background(), fastPolicy(4), func(ctx context.Context, attempt int) error {
		attempts = append(attempts, attempt)
		if attempt < 3 {
			return Transient(errors.New("throttled"))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if len(attempts) != 3 || attempts[0] != 1 || attempts[2] != 3 {
		t.Errorf("attempts = %v, want [1 2 3]", attempts)
	}
}

func TestDoStopsOnFatal(t *testing.T) {
	fatal := errors.New("volume not found")
	calls := 0
	err := Do(context.Background(), fastPolicy(4), func(ctx context.Context, attempt int) error {
		calls++
		return fatal
	})
	if !errors.Is(err, fatal) {
		t.Fatalf("err = %v, want the fatal error", err)
	}
	if calls != 1 {
		t.Errorf("op called %d times after fatal error, want 1", calls)
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	transient := errors.New("connection reset")
	calls := 0
	err := Do(context.Background(), fastPolicy(3), func(ctx context.Context, attempt int) error {
		calls++
		return Transient(transient)
	})
	if calls != 3 {
		t.Fatalf("op called %d times, want 3", calls)
	}
	if err == nil || !errors.Is(err, transient) {
		t.Fatalf("err = %v, want wrap of the last transient error", err)
	}
	if !strings.Contains(err.Error(), "giving up after 3 attempts") {
		t.Errorf("err = %v, want the giving-up message", err)
	}
}

func TestDoStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, Policy{MaxAttempts: 4, BaseDelay: time.Minute, MaxDelay: time.Minute}, func(ctx context.Context, attempt int) error {
		calls++
		cancel()
		return Transient(errors.New("retry me"))
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("op called %d times, want 1: the minute-long sleep must be skipped", calls)
	}
}

func TestDoCustomClassify(t *testing.T) {
	calls := 0
	p := fastPolicy(4)
	p.Classify = func(error) bool { return false }
	Do(context.Background(), p, func(ctx context.Context, attempt int) error {
		calls++
		return Transient(errors.New("would normally retry"))
	})
	if calls != 1 {
		t.Errorf("op called %d times with never-retry classifier, want 1", calls)
	}
}
