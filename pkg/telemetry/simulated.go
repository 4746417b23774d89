package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/opscart/cloud-cost-optimizer/pkg/models"
)

// SimulatedProvider serves a fixed in-memory fleet. It backs local
// development and the end-to-end tests; the default fleet exercises
// every detection rule with both a wasteful and a healthy example.
type SimulatedProvider struct {
	mu        sync.RWMutex
	resources []*models.Resource
}

func NewSimulatedProvider() *SimulatedProvider {
	return &SimulatedProvider{resources: defaultFleet()}
}

// SetResources replaces the fleet. Tests use this to drive specific
// scenarios.
func (s *SimulatedProvider) SetResources(resources []*models.Resource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resources = resources
}

func (s *SimulatedProvider) ListResources(ctx context.Context, typeFilter models.ResourceType) ([]*models.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	var out []*models.Resource
	for _, r := range s.resources {
		if typeFilter != "" && r.Type != typeFilter {
			continue
		}
		copied := *r
		copied.ObservedAt = now
		out = append(out, &copied)
	}
	return out, nil
}

func (s *SimulatedProvider) IsAvailable(ctx context.Context) bool {
	return true
}

func (s *SimulatedProvider) Name() string {
	return "simulated"
}

func defaultFleet() []*models.Resource {
	return []*models.Resource{
		{
			ID: "i-0f3a9c01", Type: models.ResourceComputeInstance,
			Name: "batch-runner-1", Region: "us-east-1", Account: "prod",
			Utilization: models.Utilization{
				CPUPercent:    models.Float64Ptr(4.2),
				MemoryPercent: models.Float64Ptr(11.0),
			},
			Config: models.Configuration{InstanceType: "m5.large", MonthlyCost: models.Float64Ptr(70.08)},
		},
		{
			ID: "i-0b77e210", Type: models.ResourceComputeInstance,
			Name: "api-server-1", Region: "us-east-1", Account: "prod",
			Utilization: models.Utilization{
				CPUPercent:    models.Float64Ptr(62.5),
				MemoryPercent: models.Float64Ptr(71.3),
			},
			Config: models.Configuration{InstanceType: "m5.xlarge", MonthlyCost: models.Float64Ptr(140.16)},
		},
		{
			ID: "db-billing", Type: models.ResourceManagedDatabase,
			Name: "billing-replica", Region: "us-east-1", Account: "prod",
			Utilization: models.Utilization{CPUPercent: models.Float64Ptr(7.8)},
			Config:      models.Configuration{InstanceType: "db.m5.large", EngineVersion: "postgres-15", MonthlyCost: models.Float64Ptr(124.83)},
		},
		{
			ID: "wh-analytics", Type: models.ResourceDataWarehouse,
			Name: "analytics-dev", Region: "us-east-1", Account: "dev",
			Utilization: models.Utilization{CPUPercent: models.Float64Ptr(2.1)},
			Config:      models.Configuration{MonthlyCost: models.Float64Ptr(182.50)},
		},
		{
			ID: "vol-0aa31f55", Type: models.ResourceBlockVolume,
			Name: "old-jenkins-data", Region: "us-east-1", Account: "prod",
			Config: models.Configuration{
				Attached:    models.BoolPtr(false),
				VolumeClass: "gp3",
				SizeGB:      200,
			},
		},
		{
			ID: "vol-0bc42e66", Type: models.ResourceBlockVolume,
			Name: "api-server-data", Region: "us-east-1", Account: "prod",
			Config: models.Configuration{
				Attached:    models.BoolPtr(true),
				VolumeClass: "gp2",
				SizeGB:      500,
			},
		},
		{
			ID: "snap-09d1c3a7", Type: models.ResourceVolumeSnapshot,
			Name: "pre-migration-backup", Region: "us-east-1", Account: "prod",
			Utilization: models.Utilization{SnapshotAgeDays: models.Float64Ptr(214)},
			Config: models.Configuration{
				SourceVolumeID:     "vol-0aa31f55",
				SourceVolumeExists: models.BoolPtr(true),
				SizeGB:             200,
			},
		},
		{
			ID: "eip-52.4.18.9", Type: models.ResourceStaticIP,
			Name: "legacy-nat-ip", Region: "us-east-1", Account: "prod",
			Config: models.Configuration{Associated: models.BoolPtr(false)},
		},
		{
			ID: "nat-071b3d2", Type: models.ResourceNATGateway,
			Name: "staging-nat", Region: "us-east-1", Account: "staging",
			Utilization: models.Utilization{BytesProcessed: models.Int64Ptr(180 * 1024 * 1024)},
			Config:      models.Configuration{MonthlyCost: models.Float64Ptr(32.85)},
		},
		{
			ID: "lb-edge-old", Type: models.ResourceLoadBalancer,
			Name: "edge-legacy", Region: "us-east-1", Account: "prod",
			Utilization: models.Utilization{RequestCount: models.Int64Ptr(0)},
			Config:      models.Configuration{MonthlyCost: models.Float64Ptr(16.43)},
		},
		{
			ID: "bkt-audit-logs", Type: models.ResourceStorageBucket,
			Name: "audit-logs-archive", Region: "us-east-1", Account: "prod",
			Config: models.Configuration{
				LifecyclePolicy: models.BoolPtr(false),
				SizeGB:          4096,
			},
		},
		{
			ID: "fn-thumbnailer", Type: models.ResourceServerlessFunction,
			Name: "thumbnailer", Region: "us-east-1", Account: "prod",
			Utilization: models.Utilization{
				Invocations:   models.Int64Ptr(120000),
				MemoryPercent: models.Float64Ptr(22.0),
			},
			Config: models.Configuration{MemoryMB: 1024, MonthlyCost: models.Float64Ptr(14.20)},
		},
	}
}
