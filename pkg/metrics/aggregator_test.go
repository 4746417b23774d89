package metrics

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/opscart/cloud-cost-optimizer/pkg/models"
	"github.com/opscart/cloud-cost-optimizer/pkg/pricing"
	"github.com/opscart/cloud-cost-optimizer/pkg/storage"
)

type stubProvider struct {
	mu        sync.Mutex
	resources []*models.Resource
	err       error
}

func (p *stubProvider) ListResources(ctx context.Context, typeFilter models.ResourceType) ([]*models.Resource, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	return append([]*models.Resource(nil), p.resources...), nil
}

func (p *stubProvider) IsAvailable(ctx context.Context) bool { return true }

func (p *stubProvider) Name() string { return "stub" }

func costedResource(id string, monthly float64) *models.Resource {
	return &models.Resource{
		ID:   id,
		Type: models.ResourceComputeInstance,
		Utilization: models.Utilization{
			CPUPercent:    models.Float64Ptr(55.0),
			MemoryPercent: models.Float64Ptr(60.0),
		},
		Config: models.Configuration{MonthlyCost: models.Float64Ptr(monthly)},
	}
}

func seedRec(t *testing.T, store storage.Store, resourceID string, savings float64, transitions ...models.Status) *models.Recommendation {
	t.Helper()
	rec := &models.Recommendation{
		ResourceID:     resourceID,
		ResourceType:   models.ResourceBlockVolume,
		Kind:           models.WasteUnattached,
		Action:         models.ActionDeleteVolume,
		RiskLevel:      models.RiskLow,
		Mode:           models.ModeAutonomous,
		MonthlySavings: savings,
		Status:         models.StatusPending,
	}
	if err := store.InsertRecommendation(context.Background(), rec); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	current := models.StatusPending
	for _, next := range transitions {
		if _, err := store.UpdateStatus(context.Background(), rec.ID, current, next,
			storage.UpdateFields{}); err != nil {
			t.Fatalf("transition to %s failed: %v", next, err)
		}
		current = next
	}
	return rec
}

func TestSummaryEmpty(t *testing.T) {
	a := NewAggregator(storage.NewMemoryStore(), &stubProvider{}, pricing.NewAWSProvider("us-east-1"), nil)

	s, err := a.Summary(context.Background())
	if err != nil {
		t.Fatalf("Summary failed: %v", err)
	}
	if s.TotalRecommendations != 0 || s.PendingCount != 0 || s.ResourceCount != 0 {
		t.Errorf("empty summary has counts: %+v", s)
	}
	if s.IdentifiedMonthlySavings != 0 || s.RealizedMonthlySavings != 0 || s.WastePercent != 0 {
		t.Errorf("empty summary has savings: %+v", s)
	}
	if s.LastActionAt != nil {
		t.Error("LastActionAt set with no acted recommendations")
	}
	if s.GeneratedAt.IsZero() {
		t.Error("GeneratedAt not stamped")
	}
}

func TestSummaryProjection(t *testing.T) {
	store := storage.NewMemoryStore()
	seedRec(t, store, "vol-1", 10.0)
	seedRec(t, store, "vol-2", 20.0, models.StatusRejected)
	seedRec(t, store, "vol-3", 30.0, models.StatusExecuting, models.StatusExecuted)
	seedRec(t, store, "vol-4", 5.0, models.StatusExecuting, models.StatusFailed)

	provider := &stubProvider{resources: []*models.Resource{
		costedResource("i-1", 60.0),
		costedResource("i-2", 40.0),
	}}
	a := NewAggregator(store, provider, pricing.NewAWSProvider("us-east-1"), nil)

	s, err := a.Summary(context.Background())
	if err != nil {
		t.Fatalf("Summary failed: %v", err)
	}

	if s.TotalRecommendations != 4 || s.PendingCount != 1 {
		t.Errorf("counts = %d total, %d pending; want 4, 1", s.TotalRecommendations, s.PendingCount)
	}
	for _, status := range []models.Status{
		models.StatusPending, models.StatusRejected, models.StatusExecuted, models.StatusFailed,
	} {
		if s.ByStatus[status] != 1 {
			t.Errorf("ByStatus[%s] = %d, want 1", status, s.ByStatus[status])
		}
	}

	// Rejected and failed savings count toward neither figure.
	if s.IdentifiedMonthlySavings != 40.0 {
		t.Errorf("identified = %.2f, want 40.00", s.IdentifiedMonthlySavings)
	}
	if s.RealizedMonthlySavings != 30.0 {
		t.Errorf("realized = %.2f, want 30.00", s.RealizedMonthlySavings)
	}

	if s.ResourceCount != 2 || s.TotalMonthlyCost != 100.0 {
		t.Errorf("inventory = %d resources at %.2f, want 2 at 100.00", s.ResourceCount, s.TotalMonthlyCost)
	}
	if s.WastePercent != 40.0 {
		t.Errorf("waste percent = %.2f, want 40.00", s.WastePercent)
	}
	if s.LastActionAt == nil {
		t.Error("LastActionAt not set despite acted recommendations")
	}
}

func TestSummaryInventoryFailureDegrades(t *testing.T) {
	store := storage.NewMemoryStore()
	seedRec(t, store, "vol-1", 10.0)

	provider := &stubProvider{err: errors.New("telemetry unreachable")}
	a := NewAggregator(store, provider, pricing.NewAWSProvider("us-east-1"), nil)

	s, err := a.Summary(context.Background())
	if err != nil {
		t.Fatalf("Summary failed: %v", err)
	}
	if s.TotalRecommendations != 1 || s.IdentifiedMonthlySavings != 10.0 {
		t.Errorf("store figures lost on inventory failure: %+v", s)
	}
	if s.ResourceCount != 0 || s.TotalMonthlyCost != 0 || s.WastePercent != 0 {
		t.Errorf("cost fields not zeroed on inventory failure: %+v", s)
	}
}

type failingStore struct {
	storage.Store
}

func (s *failingStore) ListRecommendations(ctx context.Context, f storage.Filter) ([]*models.Recommendation, error) {
	return nil, errors.New("connection reset")
}

func TestSummaryStoreFailure(t *testing.T) {
	a := NewAggregator(&failingStore{Store: storage.NewMemoryStore()}, &stubProvider{},
		pricing.NewAWSProvider("us-east-1"), nil)

	if _, err := a.Summary(context.Background()); err == nil {
		t.Fatal("expected error when the store is down")
	}
}
