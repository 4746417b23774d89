package pricing

import (
	"context"
	"time"

	"github.com/opscart/cloud-cost-optimizer/pkg/models"
)

// DefaultProvider provides fallback pricing for on-prem or unknown clouds
type DefaultProvider struct {
	computeMonthly  float64
	databaseMonthly float64
}

func NewDefaultProvider(computeMonthly, databaseMonthly float64) *DefaultProvider {
	if computeMonthly == 0 {
		computeMonthly = 50.0 // Conservative default
	}
	if databaseMonthly == 0 {
		databaseMonthly = 100.0
	}
	return &DefaultProvider{
		computeMonthly:  computeMonthly,
		databaseMonthly: databaseMonthly,
	}
}

func (d *DefaultProvider) Name() string {
	return "default"
}

func (d *DefaultProvider) PriceTable(ctx context.Context) (*models.PriceTable, error) {
	return &models.PriceTable{
		Provider:               "default",
		Region:                 "unknown",
		Currency:               "USD",
		ComputeInstanceMonthly: d.computeMonthly,
		ManagedDatabaseMonthly: d.databaseMonthly,
		WarehouseMonthly:       150.00,
		StaticIPMonthly:        3.60,
		NATGatewayMonthly:      30.00,
		LoadBalancerMonthly:    18.00,
		FunctionMonthly:        5.00,
		VolumeGBMonthly: map[string]float64{
			"standard": 0.050,
		},
		SnapshotGBMonthly:     0.050,
		BucketGBMonthly:       0.020,
		VolumeMigrationTarget: "standard",
		LastUpdated:           time.Now(),
	}, nil
}
