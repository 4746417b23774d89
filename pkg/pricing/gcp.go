package pricing

import (
	"context"
	"time"

	"github.com/opscart/cloud-cost-optimizer/pkg/models"
)

// GCPProvider implements GCP pricing
type GCPProvider struct {
	region string
	cache  *PriceCache
}

func NewGCPProvider(region string) *GCPProvider {
	return &GCPProvider{
		region: region,
		cache:  NewPriceCache(24 * time.Hour),
	}
}

func (g *GCPProvider) Name() string {
	return "gcp"
}

func (g *GCPProvider) PriceTable(ctx context.Context) (*models.PriceTable, error) {
	if cached := g.cache.Get("gcp-" + g.region); cached != nil {
		return cached, nil
	}

	// us-central1 list prices, monthly at 730 hours.
	// TODO: Integrate with GCP Pricing API
	table := &models.PriceTable{
		Provider:               "gcp",
		Region:                 g.region,
		Currency:               "USD",
		ComputeInstanceMonthly: 70.81,  // n2-standard-2 $0.097/hr
		ManagedDatabaseMonthly: 98.55,  // Cloud SQL db-custom-2-8 $0.135/hr
		WarehouseMonthly:       200.00, // BigQuery flat-rate share
		StaticIPMonthly:        7.30,   // unused external IP $0.01/hr
		NATGatewayMonthly:      32.12,  // Cloud NAT $0.044/hr
		LoadBalancerMonthly:    18.25,  // forwarding rule $0.025/hr
		FunctionMonthly:        5.00,
		VolumeGBMonthly: map[string]float64{
			"pd-ssd":      0.170,
			"pd-balanced": 0.100,
			"pd-standard": 0.040,
		},
		SnapshotGBMonthly:     0.026,
		BucketGBMonthly:       0.020,
		VolumeMigrationTarget: "pd-balanced",
		LastUpdated:           time.Now(),
	}

	g.cache.Set("gcp-"+g.region, table)
	return table, nil
}
