package models

import "time"

// PriceTable holds per-resource-type monthly rates for one cloud
// provider and region. Savings models fall back to these rates when a
// resource does not carry its own billed monthly cost.
type PriceTable struct {
	Provider string
	Region   string
	Currency string

	// Flat monthly baselines.
	ComputeInstanceMonthly float64
	ManagedDatabaseMonthly float64
	WarehouseMonthly       float64
	StaticIPMonthly        float64
	NATGatewayMonthly      float64
	LoadBalancerMonthly    float64
	FunctionMonthly        float64

	// Capacity-based rates.
	VolumeGBMonthly   map[string]float64 // keyed by volume class
	SnapshotGBMonthly float64
	BucketGBMonthly   float64

	// VolumeMigrationTarget is the modern general-purpose class legacy
	// volumes should migrate to.
	VolumeMigrationTarget string

	LastUpdated time.Time
}

// VolumeRate returns the per-GB monthly rate for a volume class,
// falling back to the most expensive known class so an unpriced class
// never produces a zero savings estimate.
func (t *PriceTable) VolumeRate(class string) float64 {
	if rate, ok := t.VolumeGBMonthly[class]; ok {
		return rate
	}
	var max float64
	for _, rate := range t.VolumeGBMonthly {
		if rate > max {
			max = rate
		}
	}
	return max
}
