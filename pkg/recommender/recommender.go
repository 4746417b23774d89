// Package recommender turns positive detections into recommendation
// records with per-type savings estimates.
package recommender

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/opscart/cloud-cost-optimizer/pkg/detector"
	"github.com/opscart/cloud-cost-optimizer/pkg/models"
	"github.com/opscart/cloud-cost-optimizer/pkg/pricing"
)

// ErrNoSavings marks a detection whose savings model produced a zero or
// negative estimate. The scheduler logs and skips these rather than
// inserting a recommendation nobody should act on.
var ErrNoSavings = errors.New("non-positive savings estimate")

// Rightsizing reclaims a fraction of the resource cost; lifecycle
// policies transition a fraction of bucket storage to cold tiers.
const (
	rightsizeFraction = 0.5
	lifecycleFraction = 0.3
)

// Factory builds recommendations from detections using a pricing
// provider for cost estimates.
type Factory struct {
	pricing pricing.Provider
}

func New(p pricing.Provider) *Factory {
	return &Factory{pricing: p}
}

// Build produces a pending recommendation for a detected wasteful
// resource. The store assigns the ID and timestamps on insert.
func (f *Factory) Build(ctx context.Context, r *models.Resource, det detector.Detection, level models.RiskLevel, mode models.ExecutionMode) (*models.Recommendation, error) {
	if r == nil {
		return nil, fmt.Errorf("nil resource")
	}

	action := actionFor(r.Type, det.Kind)

	savings, err := f.estimateSavings(ctx, r, action)
	if err != nil {
		return nil, err
	}
	savings = roundCents(savings)
	if savings <= 0 {
		return nil, fmt.Errorf("%s %s: %w", r.Type, r.ID, ErrNoSavings)
	}

	rec := &models.Recommendation{
		ResourceID:     r.ID,
		ResourceType:   r.Type,
		ResourceName:   r.Name,
		Region:         r.Region,
		Kind:           det.Kind,
		Action:         action,
		Title:          title(r, action),
		Description:    description(r, det, savings),
		RiskLevel:      level,
		Mode:           mode,
		MonthlySavings: savings,
		AnnualSavings:  roundCents(savings * 12),
		Status:         models.StatusPending,
	}
	return rec, nil
}

func (f *Factory) estimateSavings(ctx context.Context, r *models.Resource, action models.ActionType) (float64, error) {
	monthly, err := pricing.EstimateMonthlyCost(ctx, f.pricing, r)
	if err != nil {
		return 0, fmt.Errorf("failed to estimate cost for %s: %w", r.ID, err)
	}

	switch action {
	case models.ActionMigrateVolumeClass:
		// Savings are the per-GB rate delta against the provider's
		// migration target class.
		table, err := f.pricing.PriceTable(ctx)
		if err != nil {
			return 0, fmt.Errorf("failed to load price table: %w", err)
		}
		delta := table.VolumeRate(r.Config.VolumeClass) - table.VolumeRate(table.VolumeMigrationTarget)
		return delta * float64(r.Config.SizeGB), nil

	case models.ActionRightsizeDatabase, models.ActionPauseWarehouse, models.ActionRightsizeFunction:
		return monthly * rightsizeFraction, nil

	case models.ActionApplyLifecyclePolicy:
		return monthly * lifecycleFraction, nil

	default:
		// Stop/delete/release actions reclaim the full monthly cost.
		return monthly, nil
	}
}

func actionFor(typ models.ResourceType, kind models.WasteKind) models.ActionType {
	switch typ {
	case models.ResourceManagedDatabase:
		return models.ActionRightsizeDatabase
	case models.ResourceDataWarehouse:
		return models.ActionPauseWarehouse
	case models.ResourceBlockVolume:
		if kind == models.WasteLegacyClass {
			return models.ActionMigrateVolumeClass
		}
		return models.ActionDeleteVolume
	case models.ResourceVolumeSnapshot:
		return models.ActionDeleteSnapshot
	case models.ResourceStaticIP:
		return models.ActionReleaseStaticIP
	case models.ResourceNATGateway:
		return models.ActionDeleteNATGateway
	case models.ResourceLoadBalancer:
		return models.ActionDeleteLoadBalancer
	case models.ResourceStorageBucket:
		return models.ActionApplyLifecyclePolicy
	case models.ResourceServerlessFunction:
		return models.ActionRightsizeFunction
	default:
		// Unknown types were detected by the compute rule.
		return models.ActionStopInstance
	}
}

func title(r *models.Resource, action models.ActionType) string {
	name := r.Name
	if name == "" {
		name = r.ID
	}

	switch action {
	case models.ActionStopInstance:
		return fmt.Sprintf("Stop idle instance %s", name)
	case models.ActionRightsizeDatabase:
		return fmt.Sprintf("Rightsize underutilized database %s", name)
	case models.ActionPauseWarehouse:
		return fmt.Sprintf("Pause idle warehouse %s", name)
	case models.ActionDeleteVolume:
		return fmt.Sprintf("Delete unattached volume %s", name)
	case models.ActionMigrateVolumeClass:
		return fmt.Sprintf("Migrate volume %s off legacy class %s", name, r.Config.VolumeClass)
	case models.ActionDeleteSnapshot:
		return fmt.Sprintf("Delete snapshot %s", name)
	case models.ActionReleaseStaticIP:
		return fmt.Sprintf("Release unassociated static IP %s", name)
	case models.ActionDeleteNATGateway:
		return fmt.Sprintf("Delete low-traffic NAT gateway %s", name)
	case models.ActionDeleteLoadBalancer:
		return fmt.Sprintf("Delete idle load balancer %s", name)
	case models.ActionApplyLifecyclePolicy:
		return fmt.Sprintf("Apply lifecycle policy to bucket %s", name)
	case models.ActionRightsizeFunction:
		return fmt.Sprintf("Rightsize function %s", name)
	default:
		return fmt.Sprintf("Optimize %s", name)
	}
}

func description(r *models.Resource, det detector.Detection, savings float64) string {
	return fmt.Sprintf("%s. Estimated savings $%.2f/month ($%.2f/year).",
		det.Reason, savings, savings*12)
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
