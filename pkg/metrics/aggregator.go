// Package metrics carries the engine's two read-side surfaces: the
// on-demand Summary projection the dashboard and CLI read, and the
// prometheus collectors scraped at /metrics. Neither is a source of
// truth; both are recomputed or re-emitted from store and inventory
// state.
package metrics

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/opscart/cloud-cost-optimizer/pkg/models"
	"github.com/opscart/cloud-cost-optimizer/pkg/pricing"
	"github.com/opscart/cloud-cost-optimizer/pkg/storage"
	"github.com/opscart/cloud-cost-optimizer/pkg/telemetry"
)

type Aggregator struct {
	store    storage.Store
	provider telemetry.Provider
	pricing  pricing.Provider
	logger   *zap.Logger
}

func NewAggregator(store storage.Store, provider telemetry.Provider, pricer pricing.Provider, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{
		store:    store,
		provider: provider,
		pricing:  pricer,
		logger:   logger,
	}
}

// Summary recomputes the KPI projection from current state. A failed
// inventory fetch degrades to a store-only summary with zero cost
// fields rather than an error; the recommendation figures are the part
// callers act on.
func (a *Aggregator) Summary(ctx context.Context) (*models.Summary, error) {
	recs, err := a.store.ListRecommendations(ctx, storage.Filter{})
	if err != nil {
		return nil, fmt.Errorf("list recommendations: %w", err)
	}

	identified, realized, err := a.store.SavingsTotals(ctx)
	if err != nil {
		return nil, fmt.Errorf("savings totals: %w", err)
	}

	s := &models.Summary{
		TotalRecommendations:     len(recs),
		ByStatus:                 make(map[models.Status]int),
		IdentifiedMonthlySavings: round2(identified),
		RealizedMonthlySavings:   round2(realized),
		GeneratedAt:              time.Now().UTC(),
	}

	var lastAction time.Time
	for _, rec := range recs {
		s.ByStatus[rec.Status]++
		if rec.Status == models.StatusPending {
			s.PendingCount++
		}
		if rec.Status != models.StatusPending && rec.UpdatedAt.After(lastAction) {
			lastAction = rec.UpdatedAt
		}
	}
	if !lastAction.IsZero() {
		s.LastActionAt = &lastAction
	}

	resources, err := a.provider.ListResources(ctx, "")
	if err != nil {
		a.logger.Warn("Summary inventory fetch failed", zap.Error(err))
		return s, nil
	}

	s.ResourceCount = len(resources)
	for _, r := range resources {
		cost, err := pricing.EstimateMonthlyCost(ctx, a.pricing, r)
		if err != nil {
			a.logger.Debug("No cost model for resource",
				zap.String("resource_id", r.ID), zap.Error(err))
			continue
		}
		s.TotalMonthlyCost += cost
	}
	s.TotalMonthlyCost = round2(s.TotalMonthlyCost)
	if s.TotalMonthlyCost > 0 {
		s.WastePercent = round2(100 * s.IdentifiedMonthlySavings / s.TotalMonthlyCost)
	}
	return s, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
