// Package executor applies recommendations through an action adapter.
// Every execution claims its recommendation with a conditional status
// update first, so concurrent engines (or an approval racing the
// scheduler) can never apply the same action twice. Attempts are
// retried per the retry policy and logged to the attempt audit trail.
package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/opscart/cloud-cost-optimizer/pkg/events"
	"github.com/opscart/cloud-cost-optimizer/pkg/models"
	"github.com/opscart/cloud-cost-optimizer/pkg/storage"
)

// Result is the payload of optimization_executed events.
type Result struct {
	RecommendationID string `json:"recommendation_id"`
	Status           string `json:"status"`
	Error            string `json:"error,omitempty"`
}

// MetricsRecorder receives execution outcomes. The metrics package
// implements it; the executor works without one.
type MetricsRecorder interface {
	ExecutionFinished(outcome string, attempts int)
	RealizedSavings(usd float64)
}

type Config struct {
	// Policy is the retry policy. A zero MaxAttempts selects
	// DefaultPolicy.
	Policy Policy
	// CallTimeout bounds each individual adapter call.
	CallTimeout time.Duration
}

type Executor struct {
	cfg     Config
	store   storage.Store
	adapter ActionAdapter
	events  events.Publisher
	logger  *zap.Logger
	breaker *gobreaker.CircuitBreaker
	metrics MetricsRecorder

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	wg     sync.WaitGroup
	closed bool
}

func New(cfg Config, store storage.Store, adapter ActionAdapter, pub events.Publisher, logger *zap.Logger) *Executor {
	if cfg.Policy.MaxAttempts == 0 {
		cfg.Policy = DefaultPolicy()
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 30 * time.Second
	}
	if pub == nil {
		pub = events.NopPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Executor{
		cfg:     cfg,
		store:   store,
		adapter: adapter,
		events:  pub,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}

	e.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        adapter.Name(),
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state change",
				zap.String("adapter", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return e
}

// SetMetrics attaches an execution metrics recorder.
func (e *Executor) SetMetrics(m MetricsRecorder) { e.metrics = m }

// ExecuteAsync runs Execute on its own goroutine, tracked so Close can
// drain it. The claim happens inside the goroutine; losing it to a
// concurrent engine is not an error worth surfacing to the caller.
func (e *Executor) ExecuteAsync(rec *models.Recommendation, from models.Status) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		e.logger.Warn("Executor closed, dropping execution",
			zap.String("recommendation_id", rec.ID))
		return
	}
	e.wg.Add(1)
	e.mu.Unlock()

	go func() {
		defer e.wg.Done()
		err := e.Execute(e.ctx, rec, from)
		if err != nil && !errors.Is(err, storage.ErrStatusConflict) {
			e.logger.Error("Execution failed",
				zap.String("recommendation_id", rec.ID),
				zap.Error(err))
		}
	}()
}

// Execute claims the recommendation (from → executing) and applies its
// action through the retry loop. It returns nil when the
// recommendation reached executed, a storage.ErrStatusConflict wrap
// when the claim was lost, and the execution error after the
// recommendation was marked failed.
func (e *Executor) Execute(ctx context.Context, rec *models.Recommendation, from models.Status) error {
	claimed, err := e.store.UpdateStatus(ctx, rec.ID, from, models.StatusExecuting, storage.UpdateFields{})
	if err != nil {
		if errors.Is(err, storage.ErrStatusConflict) {
			e.logger.Debug("Lost execution claim",
				zap.String("recommendation_id", rec.ID))
		}
		return fmt.Errorf("claim %s: %w", rec.ID, err)
	}
	rec = claimed

	e.logger.Info("Executing recommendation",
		zap.String("recommendation_id", rec.ID),
		zap.String("resource_id", rec.ResourceID),
		zap.String("action", string(rec.Action)),
		zap.String("claimed_from", string(from)))

	attempts := 0
	execErr := Do(ctx, e.cfg.Policy, func(ctx context.Context, attempt int) error {
		attempts = attempt
		callCtx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
		defer cancel()

		_, err := e.breaker.Execute(func() (interface{}, error) {
			return nil, e.adapter.Apply(callCtx, rec)
		})
		e.recordAttempt(rec.ID, attempt, err)
		return err
	})

	if execErr != nil {
		e.markFailed(rec, attempts, execErr)
		return fmt.Errorf("execute %s: %w", rec.ID, execErr)
	}
	e.markExecuted(rec, attempts)
	return nil
}

// Close stops accepting work and waits for in-flight executions. When
// ctx expires first, the remaining executions are cancelled and their
// claims resolve to failed through the cancellation path.
func (e *Executor) Close(ctx context.Context) error {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		e.cancel()
		return nil
	case <-ctx.Done():
		e.cancel()
		<-done
		return ctx.Err()
	}
}

// auditCtx returns a context for attempt rows and terminal
// transitions. They get their own deadline so a cancelled execution
// cannot lose its audit trail.
func (e *Executor) auditCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 10*time.Second)
}

func (e *Executor) recordAttempt(recID string, attempt int, attemptErr error) {
	outcome := models.AttemptSuccess
	msg := ""
	if attemptErr != nil {
		msg = attemptErr.Error()
		if IsTransient(attemptErr) {
			outcome = models.AttemptRetryableFailure
		} else {
			outcome = models.AttemptFatalFailure
		}
	}

	ctx, cancel := e.auditCtx()
	defer cancel()
	err := e.store.RecordAttempt(ctx, &models.ExecutionAttempt{
		RecommendationID: recID,
		Attempt:          attempt,
		Outcome:          outcome,
		Error:            msg,
	})
	if err != nil {
		e.logger.Error("Failed to record execution attempt",
			zap.String("recommendation_id", recID),
			zap.Int("attempt", attempt),
			zap.Error(err))
	}
}

func (e *Executor) markExecuted(rec *models.Recommendation, attempts int) {
	now := time.Now().UTC()
	ctx, cancel := e.auditCtx()
	defer cancel()

	updated, err := e.store.UpdateStatus(ctx, rec.ID, models.StatusExecuting, models.StatusExecuted,
		storage.UpdateFields{ExecutedAt: &now})
	if err != nil {
		e.logger.Error("Failed to finalize executed recommendation",
			zap.String("recommendation_id", rec.ID),
			zap.Error(err))
		return
	}

	e.logger.Info("Recommendation executed",
		zap.String("recommendation_id", rec.ID),
		zap.String("resource_id", rec.ResourceID),
		zap.Int("attempts", attempts),
		zap.Float64("monthly_savings", updated.MonthlySavings))

	e.events.Publish(events.TypeOptimizationExecuted, Result{
		RecommendationID: rec.ID,
		Status:           string(models.StatusExecuted),
	})
	if e.metrics != nil {
		e.metrics.ExecutionFinished(string(models.StatusExecuted), attempts)
		e.metrics.RealizedSavings(updated.MonthlySavings)
	}
}

func (e *Executor) markFailed(rec *models.Recommendation, attempts int, execErr error) {
	msg := execErr.Error()
	ctx, cancel := e.auditCtx()
	defer cancel()

	if _, err := e.store.UpdateStatus(ctx, rec.ID, models.StatusExecuting, models.StatusFailed,
		storage.UpdateFields{LastError: &msg}); err != nil {
		e.logger.Error("Failed to finalize failed recommendation",
			zap.String("recommendation_id", rec.ID),
			zap.Error(err))
		return
	}

	e.logger.Warn("Recommendation execution failed",
		zap.String("recommendation_id", rec.ID),
		zap.String("resource_id", rec.ResourceID),
		zap.Int("attempts", attempts),
		zap.Error(execErr))

	e.events.Publish(events.TypeOptimizationExecuted, Result{
		RecommendationID: rec.ID,
		Status:           string(models.StatusFailed),
		Error:            msg,
	})
	if e.metrics != nil {
		e.metrics.ExecutionFinished(string(models.StatusFailed), attempts)
	}
}
