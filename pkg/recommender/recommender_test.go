package recommender

import (
	"context"
	"errors"
	"testing"

	"github.com/opscart/cloud-cost-optimizer/pkg/detector"
	"github.com/opscart/cloud-cost-optimizer/pkg/models"
	"github.com/opscart/cloud-cost-optimizer/pkg/pricing"
)

func awsFactory() *Factory {
	return New(pricing.NewAWSProvider("us-east-1"))
}

func TestBuildStaticIPRecommendation(t *testing.T) {
	f := awsFactory()

	r := &models.Resource{
		ID:     "eip-001",
		Type:   models.ResourceStaticIP,
		Name:   "legacy-nat-ip",
		Region: "us-east-1",
		Config: models.Configuration{Associated: models.BoolPtr(false)},
	}
	det := detector.Detection{Kind: models.WasteUnassociated, Reason: "address is not associated with any resource"}

	rec, err := f.Build(context.Background(), r, det, models.RiskLow, models.ModeAutonomous)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if rec.Action != models.ActionReleaseStaticIP {
		t.Errorf("Expected release_static_ip action, got %s", rec.Action)
	}
	if rec.MonthlySavings != 3.60 {
		t.Errorf("Expected flat $3.60/month for an idle static IP, got %.2f", rec.MonthlySavings)
	}
	if rec.AnnualSavings != 43.20 {
		t.Errorf("Expected $43.20/year, got %.2f", rec.AnnualSavings)
	}
	if rec.Status != models.StatusPending {
		t.Errorf("Expected pending status, got %s", rec.Status)
	}
	if rec.Mode != models.ModeAutonomous {
		t.Errorf("Expected autonomous mode, got %s", rec.Mode)
	}
	if rec.Title == "" || rec.Description == "" {
		t.Error("Expected non-empty title and description")
	}
	if rec.ID != "" {
		t.Errorf("Expected store-assigned ID to be empty at build time, got %q", rec.ID)
	}
}

func TestBuildUnattachedVolumeReclaimsFullCost(t *testing.T) {
	f := awsFactory()

	r := &models.Resource{
		ID:   "vol-001",
		Type: models.ResourceBlockVolume,
		Name: "orphan-data",
		Config: models.Configuration{
			Attached:    models.BoolPtr(false),
			VolumeClass: "gp3",
			SizeGB:      100,
		},
	}
	det := detector.Detection{Kind: models.WasteUnattached, Reason: "volume is not attached to any instance"}

	rec, err := f.Build(context.Background(), r, det, models.RiskLow, models.ModeAutonomous)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if rec.Action != models.ActionDeleteVolume {
		t.Errorf("Expected delete_volume action, got %s", rec.Action)
	}
	// 100 GB at $0.08/GB.
	if rec.MonthlySavings != 8.00 {
		t.Errorf("Expected $8.00/month, got %.2f", rec.MonthlySavings)
	}
}

func TestBuildLegacyClassMigrationUsesRateDelta(t *testing.T) {
	f := awsFactory()

	r := &models.Resource{
		ID:   "vol-002",
		Type: models.ResourceBlockVolume,
		Config: models.Configuration{
			Attached:    models.BoolPtr(true),
			VolumeClass: "gp2",
			SizeGB:      500,
		},
	}
	det := detector.Detection{Kind: models.WasteLegacyClass, Reason: "volume class gp2 has a cheaper modern equivalent"}

	rec, err := f.Build(context.Background(), r, det, models.RiskLow, models.ModeAutonomous)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if rec.Action != models.ActionMigrateVolumeClass {
		t.Errorf("Expected migrate_volume_class action, got %s", rec.Action)
	}
	// 500 GB at ($0.10 - $0.08)/GB delta to gp3.
	if rec.MonthlySavings != 10.00 {
		t.Errorf("Expected $10.00/month delta, got %.2f", rec.MonthlySavings)
	}
}

func TestBuildRightsizingUsesFraction(t *testing.T) {
	f := awsFactory()

	r := &models.Resource{
		ID:          "db-001",
		Type:        models.ResourceManagedDatabase,
		Utilization: models.Utilization{CPUPercent: models.Float64Ptr(8)},
		Config:      models.Configuration{MonthlyCost: models.Float64Ptr(200.00)},
	}
	det := detector.Detection{Kind: models.WasteIdle, Reason: "CPU utilization 8% is below 20% over the observation window"}

	rec, err := f.Build(context.Background(), r, det, models.RiskHigh, models.ModeHITL)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if rec.Action != models.ActionRightsizeDatabase {
		t.Errorf("Expected rightsize_database action, got %s", rec.Action)
	}
	// Half the billed $200/month.
	if rec.MonthlySavings != 100.00 {
		t.Errorf("Expected $100.00/month, got %.2f", rec.MonthlySavings)
	}
	if rec.RiskLevel != models.RiskHigh || rec.Mode != models.ModeHITL {
		t.Errorf("Expected high/hitl carried through, got %s/%s", rec.RiskLevel, rec.Mode)
	}
}

func TestBuildBucketLifecycleFraction(t *testing.T) {
	f := awsFactory()

	r := &models.Resource{
		ID:   "bkt-001",
		Type: models.ResourceStorageBucket,
		Config: models.Configuration{
			LifecyclePolicy: models.BoolPtr(false),
			SizeGB:          1000,
		},
	}
	det := detector.Detection{Kind: models.WasteNoLifecycle, Reason: "bucket has no lifecycle policy configured"}

	rec, err := f.Build(context.Background(), r, det, models.RiskMedium, models.ModeHITL)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	// 30% of 1000 GB at $0.023/GB = $6.90.
	if rec.MonthlySavings != 6.90 {
		t.Errorf("Expected $6.90/month, got %.2f", rec.MonthlySavings)
	}
}

func TestBuildBilledCostWinsOverTable(t *testing.T) {
	f := awsFactory()

	r := &models.Resource{
		ID:     "i-042",
		Type:   models.ResourceComputeInstance,
		Config: models.Configuration{MonthlyCost: models.Float64Ptr(312.44)},
	}
	det := detector.Detection{Kind: models.WasteIdle, Reason: "CPU 5% and memory 3% are both below 20% over the observation window"}

	rec, err := f.Build(context.Background(), r, det, models.RiskMedium, models.ModeHITL)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if rec.MonthlySavings != 312.44 {
		t.Errorf("Expected billed cost 312.44, got %.2f", rec.MonthlySavings)
	}
}

func TestBuildRejectsNonPositiveSavings(t *testing.T) {
	f := awsFactory()

	// Magnetic "standard" is cheaper per GB than the gp3 migration
	// target, so the delta model yields negative savings.
	r := &models.Resource{
		ID:   "vol-003",
		Type: models.ResourceBlockVolume,
		Config: models.Configuration{
			Attached:    models.BoolPtr(true),
			VolumeClass: "standard",
			SizeGB:      100,
		},
	}
	det := detector.Detection{Kind: models.WasteLegacyClass, Reason: "volume class standard has a cheaper modern equivalent"}

	_, err := f.Build(context.Background(), r, det, models.RiskLow, models.ModeAutonomous)
	if err == nil {
		t.Fatal("Expected error for non-positive savings")
	}
	if !errors.Is(err, ErrNoSavings) {
		t.Errorf("Expected ErrNoSavings, got %v", err)
	}
}

func TestBuildZeroSizeBucketRejected(t *testing.T) {
	f := awsFactory()

	r := &models.Resource{
		ID:     "bkt-002",
		Type:   models.ResourceStorageBucket,
		Config: models.Configuration{LifecyclePolicy: models.BoolPtr(false)},
	}
	det := detector.Detection{Kind: models.WasteNoLifecycle, Reason: "bucket has no lifecycle policy configured"}

	if _, err := f.Build(context.Background(), r, det, models.RiskMedium, models.ModeHITL); !errors.Is(err, ErrNoSavings) {
		t.Errorf("Expected ErrNoSavings for empty bucket, got %v", err)
	}
}

func TestBuildNilResource(t *testing.T) {
	f := awsFactory()
	if _, err := f.Build(context.Background(), nil, detector.Detection{}, models.RiskLow, models.ModeAutonomous); err == nil {
		t.Error("Expected error for nil resource")
	}
}
