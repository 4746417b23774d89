package pricing

import (
	"context"
	"fmt"

	"github.com/opscart/cloud-cost-optimizer/pkg/models"
)

// Provider defines the interface for cloud pricing data
type Provider interface {
	PriceTable(ctx context.Context) (*models.PriceTable, error)
	Name() string
}

type Config struct {
	Provider string
	Region   string
	CacheTTL int
}

// EstimateMonthlyCost returns the monthly billing estimate for a resource.
// A billed cost reported by the telemetry source wins over the price
// table; the table fills in when the source does not report one.
func EstimateMonthlyCost(ctx context.Context, p Provider, r *models.Resource) (float64, error) {
	if r == nil {
		return 0, fmt.Errorf("nil resource")
	}
	if r.Config.MonthlyCost != nil && *r.Config.MonthlyCost > 0 {
		return *r.Config.MonthlyCost, nil
	}

	table, err := p.PriceTable(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load price table: %w", err)
	}

	switch r.Type {
	case models.ResourceComputeInstance:
		return table.ComputeInstanceMonthly, nil
	case models.ResourceManagedDatabase:
		return table.ManagedDatabaseMonthly, nil
	case models.ResourceDataWarehouse:
		return table.WarehouseMonthly, nil
	case models.ResourceBlockVolume:
		return table.VolumeRate(r.Config.VolumeClass) * float64(r.Config.SizeGB), nil
	case models.ResourceVolumeSnapshot:
		return table.SnapshotGBMonthly * float64(r.Config.SizeGB), nil
	case models.ResourceStaticIP:
		return table.StaticIPMonthly, nil
	case models.ResourceNATGateway:
		return table.NATGatewayMonthly, nil
	case models.ResourceLoadBalancer:
		return table.LoadBalancerMonthly, nil
	case models.ResourceStorageBucket:
		return table.BucketGBMonthly * float64(r.Config.SizeGB), nil
	case models.ResourceServerlessFunction:
		return table.FunctionMonthly, nil
	default:
		return 0, fmt.Errorf("no price model for resource type %q", r.Type)
	}
}
