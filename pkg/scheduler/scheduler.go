// Package scheduler drives the periodic scan loop. Every tick it pulls
// the resource inventory from telemetry, runs waste detection across a
// bounded worker pool, and turns positive detections into stored
// recommendations. Low-risk recommendations are handed straight to the
// execution engine; everything else waits for a human decision.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/opscart/cloud-cost-optimizer/pkg/detector"
	"github.com/opscart/cloud-cost-optimizer/pkg/events"
	"github.com/opscart/cloud-cost-optimizer/pkg/models"
	"github.com/opscart/cloud-cost-optimizer/pkg/recommender"
	"github.com/opscart/cloud-cost-optimizer/pkg/risk"
	"github.com/opscart/cloud-cost-optimizer/pkg/storage"
	"github.com/opscart/cloud-cost-optimizer/pkg/telemetry"
)

// Dispatcher hands an autonomous recommendation to the execution
// engine without blocking the scan tick.
type Dispatcher interface {
	ExecuteAsync(rec *models.Recommendation, from models.Status)
}

// MetricsRecorder receives scan-loop counters. Implementations must be
// safe for concurrent use.
type MetricsRecorder interface {
	ScanCompleted(resources int)
	DetectionFound(typ models.ResourceType, kind models.WasteKind)
	RecommendationCreated()
	RecommendationSkipped()
}

type Config struct {
	// ScanInterval is the time between ticks. The first tick runs
	// immediately.
	ScanInterval time.Duration

	// Workers bounds per-tick detection concurrency.
	Workers int

	// ClaimTimeout is how long a recommendation may sit in executing
	// before reconciliation treats its claim as abandoned.
	ClaimTimeout time.Duration
}

// ScanStats summarizes one scan cycle.
type ScanStats struct {
	Resources  int `json:"resources"`
	Detections int `json:"detections"`
	Created    int `json:"created"`
	Deduped    int `json:"deduped"`
	NoSavings  int `json:"no_savings"`
	Errors     int `json:"errors"`
}

type outcome int

const (
	outcomeHealthy outcome = iota
	outcomeCreated
	outcomeDeduped
	outcomeNoSavings
	outcomeFailed
)

type Scheduler struct {
	cfg        Config
	provider   telemetry.Provider
	store      storage.Store
	policy     *risk.Policy
	factory    *recommender.Factory
	dispatcher Dispatcher
	events     events.Publisher
	metrics    MetricsRecorder
	logger     *zap.Logger
}

// New builds a scheduler. A nil dispatcher leaves autonomous
// recommendations pending, which is what the one-shot scan command
// wants; a nil publisher or logger is replaced with a no-op.
func New(cfg Config, provider telemetry.Provider, store storage.Store, policy *risk.Policy,
	factory *recommender.Factory, dispatcher Dispatcher, publisher events.Publisher, logger *zap.Logger) *Scheduler {
	if cfg.ScanInterval <= 0 {
		cfg.ScanInterval = time.Minute
	}
	if cfg.Workers < 1 {
		cfg.Workers = 8
	}
	if cfg.ClaimTimeout <= 0 {
		cfg.ClaimTimeout = 10 * time.Minute
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		cfg:        cfg,
		provider:   provider,
		store:      store,
		policy:     policy,
		factory:    factory,
		dispatcher: dispatcher,
		events:     publisher,
		logger:     logger,
	}
}

// SetMetrics attaches scan counters. Must be called before Run.
func (s *Scheduler) SetMetrics(m MetricsRecorder) {
	s.metrics = m
}

// Run executes the scan loop until ctx is cancelled. The first tick
// fires immediately; each tick reconciles abandoned execution claims
// before scanning.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("Scan loop starting",
		zap.Duration("interval", s.cfg.ScanInterval),
		zap.Int("workers", s.cfg.Workers),
		zap.String("telemetry", s.provider.Name()))

	if !s.provider.IsAvailable(ctx) {
		s.logger.Warn("Telemetry source is not reachable",
			zap.String("telemetry", s.provider.Name()))
	}

	s.tick(ctx)

	ticker := time.NewTicker(s.cfg.ScanInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scan loop stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	s.reconcileStuck(ctx)

	start := time.Now()
	stats, err := s.ScanOnce(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Error("Scan cycle failed", zap.Error(err))
		return
	}

	s.logger.Info("Scan cycle complete",
		zap.Int("resources", stats.Resources),
		zap.Int("detections", stats.Detections),
		zap.Int("created", stats.Created),
		zap.Int("deduped", stats.Deduped),
		zap.Duration("took", time.Since(start)))
}

// ScanOnce runs a single scan cycle and returns its tallies. The serve
// loop calls it every tick; the scan subcommand calls it directly.
func (s *Scheduler) ScanOnce(ctx context.Context) (ScanStats, error) {
	resources, err := s.provider.ListResources(ctx, "")
	if err != nil {
		return ScanStats{}, fmt.Errorf("list resources: %w", err)
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, s.cfg.Workers)
	outcomes := make(chan outcome, len(resources))

	for _, r := range resources {
		wg.Add(1)
		go func(r *models.Resource) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			outcomes <- s.process(ctx, r)
		}(r)
	}
	wg.Wait()
	close(outcomes)

	stats := ScanStats{Resources: len(resources)}
	for o := range outcomes {
		switch o {
		case outcomeCreated:
			stats.Created++
		case outcomeDeduped:
			stats.Deduped++
		case outcomeNoSavings:
			stats.NoSavings++
		case outcomeFailed:
			stats.Errors++
		}
		if o != outcomeHealthy {
			stats.Detections++
		}
	}

	if s.metrics != nil {
		s.metrics.ScanCompleted(stats.Resources)
	}
	return stats, nil
}

// process runs the detection pipeline for one resource. Errors are
// logged and skip only this resource.
func (s *Scheduler) process(ctx context.Context, r *models.Resource) outcome {
	det, wasteful := detector.Evaluate(r)
	if !wasteful {
		return outcomeHealthy
	}
	if s.metrics != nil {
		s.metrics.DetectionFound(r.Type, det.Kind)
	}

	existing, err := s.store.GetActiveRecommendation(ctx, r.ID, r.Type)
	if err != nil {
		s.logger.Warn("Dedup lookup failed",
			zap.String("resource_id", r.ID), zap.Error(err))
		return outcomeFailed
	}
	if existing != nil {
		return outcomeDeduped
	}

	level, mode := s.policy.Classify(r.Type, det.Kind)

	rec, err := s.factory.Build(ctx, r, det, level, mode)
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecommendationSkipped()
		}
		if errors.Is(err, recommender.ErrNoSavings) {
			s.logger.Debug("Skipping detection with no savings",
				zap.String("resource_id", r.ID),
				zap.String("kind", string(det.Kind)))
			return outcomeNoSavings
		}
		s.logger.Warn("Failed to build recommendation",
			zap.String("resource_id", r.ID), zap.Error(err))
		return outcomeFailed
	}

	if err := s.store.InsertRecommendation(ctx, rec); err != nil {
		if errors.Is(err, storage.ErrDuplicateActive) {
			// Another tick won the insert race.
			return outcomeDeduped
		}
		s.logger.Warn("Failed to store recommendation",
			zap.String("resource_id", r.ID), zap.Error(err))
		return outcomeFailed
	}

	s.logger.Info("Recommendation created",
		zap.String("recommendation_id", rec.ID),
		zap.String("resource_id", rec.ResourceID),
		zap.String("type", string(rec.ResourceType)),
		zap.String("kind", string(rec.Kind)),
		zap.String("risk", string(rec.RiskLevel)),
		zap.String("mode", string(rec.Mode)),
		zap.Float64("monthly_savings", rec.MonthlySavings))

	if s.metrics != nil {
		s.metrics.RecommendationCreated()
	}
	s.events.Publish(events.TypeNewRecommendation, rec)

	if rec.Mode == models.ModeAutonomous && s.dispatcher != nil {
		s.dispatcher.ExecuteAsync(rec, models.StatusPending)
	}
	return outcomeCreated
}

// reconcileStuck fails recommendations whose execution claim outlived
// ClaimTimeout. A restart mid-execution leaves rows in executing with
// nobody working on them; failing them frees the dedup slot so the
// next scan can re-detect the resource.
func (s *Scheduler) reconcileStuck(ctx context.Context) {
	cutoff := time.Now().Add(-s.cfg.ClaimTimeout)
	stuck, err := s.store.ListStuckExecuting(ctx, cutoff)
	if err != nil {
		s.logger.Warn("Failed to list stuck executions", zap.Error(err))
		return
	}

	for _, rec := range stuck {
		msg := "execution interrupted, claim expired"
		if _, err := s.store.UpdateStatus(ctx, rec.ID, models.StatusExecuting, models.StatusFailed,
			storage.UpdateFields{LastError: &msg}); err != nil {
			if errors.Is(err, storage.ErrStatusConflict) {
				// Finished between the list and the update.
				continue
			}
			s.logger.Warn("Failed to reconcile stuck execution",
				zap.String("recommendation_id", rec.ID), zap.Error(err))
			continue
		}
		s.logger.Warn("Reconciled interrupted execution to failed",
			zap.String("recommendation_id", rec.ID),
			zap.String("resource_id", rec.ResourceID),
			zap.Time("claimed_at", rec.UpdatedAt))
	}
}
