// Package e2e wires the whole engine together in memory - telemetry,
// detection, risk, storage, execution, approval and the HTTP surface -
// and drives recommendation lifecycles end to end.
package e2e

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/opscart/cloud-cost-optimizer/pkg/approval"
	"github.com/opscart/cloud-cost-optimizer/pkg/auth"
	"github.com/opscart/cloud-cost-optimizer/pkg/events"
	"github.com/opscart/cloud-cost-optimizer/pkg/executor"
	"github.com/opscart/cloud-cost-optimizer/pkg/metrics"
	"github.com/opscart/cloud-cost-optimizer/pkg/models"
	"github.com/opscart/cloud-cost-optimizer/pkg/pricing"
	"github.com/opscart/cloud-cost-optimizer/pkg/recommender"
	"github.com/opscart/cloud-cost-optimizer/pkg/risk"
	"github.com/opscart/cloud-cost-optimizer/pkg/scheduler"
	"github.com/opscart/cloud-cost-optimizer/pkg/server"
	"github.com/opscart/cloud-cost-optimizer/pkg/storage"
	"github.com/opscart/cloud-cost-optimizer/pkg/telemetry"
)

type eventRecorder struct {
	mu    sync.Mutex
	types []string
}

func (r *eventRecorder) Publish(eventType string, data interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types = append(r.types, eventType)
}

func (r *eventRecorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.types...)
}

// engine is the full pipeline over an in-memory store and a simulated
// cloud. The scan interval is irrelevant: tests drive cycles with
// ScanOnce.
type engine struct {
	store     *storage.MemoryStore
	telemetry *telemetry.SimulatedProvider
	adapter   *executor.SimulatedAdapter
	executor  *executor.Executor
	scheduler *scheduler.Scheduler
	approvals *approval.Service
	recorder  *eventRecorder
}

func newEngine(t *testing.T, resources ...*models.Resource) *engine {
	t.Helper()

	store := storage.NewMemoryStore()
	provider := telemetry.NewSimulatedProvider()
	provider.SetResources(resources)
	adapter := executor.NewSimulatedAdapter()
	recorder := &eventRecorder{}

	exec := executor.New(executor.Config{
		Policy: executor.Policy{
			MaxAttempts:    3,
			BaseDelay:      time.Millisecond,
			MaxDelay:       5 * time.Millisecond,
			JitterFraction: 0.3,
		},
		CallTimeout: time.Second,
	}, store, adapter, recorder, nil)

	sched := scheduler.New(scheduler.Config{
		ScanInterval: time.Minute,
		Workers:      4,
		ClaimTimeout: 10 * time.Minute,
	}, provider, store, risk.NewPolicy(nil),
		recommender.New(pricing.NewAWSProvider("us-east-1")), exec, recorder, nil)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		exec.Close(ctx)
	})

	return &engine{
		store:     store,
		telemetry: provider,
		adapter:   adapter,
		executor:  exec,
		scheduler: sched,
		approvals: approval.New(store, exec, auth.RoleAdmin, nil),
		recorder:  recorder,
	}
}

func unattachedVolume() *models.Resource {
	return &models.Resource{
		ID: "vol-e2e-1", Type: models.ResourceBlockVolume,
		Name: "decommissioned-data", Region: "us-east-1", Account: "prod",
		Config: models.Configuration{
			Attached:    models.BoolPtr(false),
			VolumeClass: "gp3",
			SizeGB:      200,
		},
	}
}

func idleDatabase() *models.Resource {
	return &models.Resource{
		ID: "db-e2e-1", Type: models.ResourceManagedDatabase,
		Name: "reporting-replica", Region: "us-east-1", Account: "prod",
		Utilization: models.Utilization{CPUPercent: models.Float64Ptr(6.5)},
		Config: models.Configuration{
			InstanceType: "db.m5.large",
			MonthlyCost:  models.Float64Ptr(124.83),
		},
	}
}

func scan(t *testing.T, e *engine) scheduler.ScanStats {
	t.Helper()
	stats, err := e.scheduler.ScanOnce(context.Background())
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	return stats
}

func onlyRecommendation(t *testing.T, store storage.Store) *models.Recommendation {
	t.Helper()
	recs, err := store.ListRecommendations(context.Background(), storage.Filter{})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("store holds %d recommendations, want 1", len(recs))
	}
	return recs[0]
}

func waitForStatus(t *testing.T, store storage.Store, id string, want models.Status) *models.Recommendation {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		rec, err := store.GetRecommendation(context.Background(), id)
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if rec.Status == want {
			return rec
		}
		if time.Now().After(deadline) {
			t.Fatalf("status stuck at %s, want %s", rec.Status, want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestAutonomousRecommendationExecutes(t *testing.T) {
	e := newEngine(t, unattachedVolume())

	stats := scan(t, e)
	if stats.Resources != 1 || stats.Created != 1 {
		t.Fatalf("stats = %+v, want 1 resource and 1 created", stats)
	}

	rec := onlyRecommendation(t, e.store)
	if rec.Mode != models.ModeAutonomous || rec.RiskLevel != models.RiskLow {
		t.Fatalf("volume deletion classified as %s/%s, want low/autonomous", rec.RiskLevel, rec.Mode)
	}

	executed := waitForStatus(t, e.store, rec.ID, models.StatusExecuted)
	if executed.ExecutedAt == nil {
		t.Error("ExecutedAt not stamped")
	}
	// 200 GB of gp3 at the us-east-1 rate.
	if executed.MonthlySavings != 16.00 {
		t.Errorf("MonthlySavings = %v, want 16.00", executed.MonthlySavings)
	}

	attempts, err := e.store.ListAttempts(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("list attempts: %v", err)
	}
	if len(attempts) != 1 || attempts[0].Outcome != models.AttemptSuccess {
		t.Errorf("attempts = %+v, want one success", attempts)
	}

	_, realized, err := e.store.SavingsTotals(context.Background())
	if err != nil {
		t.Fatalf("savings totals: %v", err)
	}
	if realized != 16.00 {
		t.Errorf("realized savings = %v, want 16.00", realized)
	}

	types := e.recorder.all()
	if len(types) != 2 || types[0] != events.TypeNewRecommendation || types[1] != events.TypeOptimizationExecuted {
		t.Errorf("event sequence = %v", types)
	}
}

func TestHITLRecommendationWaitsForApproval(t *testing.T) {
	e := newEngine(t, idleDatabase())
	ctx := context.Background()

	scan(t, e)
	rec := onlyRecommendation(t, e.store)
	if rec.Mode != models.ModeHITL || rec.RiskLevel != models.RiskHigh {
		t.Fatalf("database rightsize classified as %s/%s, want high/hitl", rec.RiskLevel, rec.Mode)
	}

	// Nothing executes without a decision.
	time.Sleep(50 * time.Millisecond)
	stored, _ := e.store.GetRecommendation(ctx, rec.ID)
	if stored.Status != models.StatusPending {
		t.Fatalf("status = %s without approval, want pending", stored.Status)
	}

	// An operator below the approval tier cannot act.
	operator := &auth.User{ID: "op-1", Name: "Sam", Role: auth.RoleUser}
	if _, err := e.approvals.Approve(ctx, rec.ID, operator); !errors.Is(err, approval.ErrUnauthorized) {
		t.Fatalf("low-role approve err = %v, want ErrUnauthorized", err)
	}

	admin := &auth.User{ID: "admin-1", Name: "Ada", Role: auth.RoleAdmin}
	approved, err := e.approvals.Approve(ctx, rec.ID, admin)
	if err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if approved.Status != models.StatusApproved {
		t.Fatalf("status = %s, want approved", approved.Status)
	}

	executed := waitForStatus(t, e.store, rec.ID, models.StatusExecuted)
	if executed.ActedBy != "admin-1" {
		t.Errorf("ActedBy = %q, want admin-1", executed.ActedBy)
	}
}

func TestRejectedRecommendationFreesDedupSlot(t *testing.T) {
	e := newEngine(t, idleDatabase())
	ctx := context.Background()

	scan(t, e)
	rec := onlyRecommendation(t, e.store)

	admin := &auth.User{ID: "admin-1", Name: "Ada", Role: auth.RoleAdmin}
	rejected, err := e.approvals.Reject(ctx, rec.ID, admin)
	if err != nil {
		t.Fatalf("reject failed: %v", err)
	}
	if rejected.Status != models.StatusRejected {
		t.Fatalf("status = %s, want rejected", rejected.Status)
	}

	// The waste is still there, so the next cycle raises it again as a
	// fresh recommendation; the rejected one stays terminal.
	stats := scan(t, e)
	if stats.Created != 1 {
		t.Fatalf("re-scan stats = %+v, want 1 created", stats)
	}
	recs, err := e.store.ListRecommendations(ctx, storage.Filter{})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("store holds %d recommendations, want 2", len(recs))
	}
	byStatus := map[models.Status]int{}
	for _, r := range recs {
		byStatus[r.Status]++
	}
	if byStatus[models.StatusRejected] != 1 || byStatus[models.StatusPending] != 1 {
		t.Errorf("statuses = %v, want one rejected and one pending", byStatus)
	}
}

func TestActiveRecommendationDeduplicates(t *testing.T) {
	e := newEngine(t, idleDatabase())

	scan(t, e)
	stats := scan(t, e)
	if stats.Deduped != 1 || stats.Created != 0 {
		t.Fatalf("second scan stats = %+v, want 1 deduped", stats)
	}
	onlyRecommendation(t, e.store)
}

func TestExecutionRetriesTransientFailures(t *testing.T) {
	e := newEngine(t, unattachedVolume())
	e.adapter.FailWith("vol-e2e-1",
		executor.Transient(errors.New("throttled")),
		executor.Transient(errors.New("throttled")))

	scan(t, e)
	rec := onlyRecommendation(t, e.store)
	waitForStatus(t, e.store, rec.ID, models.StatusExecuted)

	attempts, err := e.store.ListAttempts(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("list attempts: %v", err)
	}
	if len(attempts) != 3 {
		t.Fatalf("attempts = %d, want 3", len(attempts))
	}
	for i, attempt := range attempts[:2] {
		if attempt.Outcome != models.AttemptRetryableFailure {
			t.Errorf("attempt %d outcome = %s, want retryable_failure", i+1, attempt.Outcome)
		}
	}
	if attempts[2].Outcome != models.AttemptSuccess {
		t.Errorf("final outcome = %s, want success", attempts[2].Outcome)
	}
}

func TestFatalFailureMarksFailedAndRedetects(t *testing.T) {
	e := newEngine(t, unattachedVolume())
	e.adapter.FailWith("vol-e2e-1",
		executor.Fatal(errors.New("volume has active snapshots")))

	scan(t, e)
	rec := onlyRecommendation(t, e.store)

	failed := waitForStatus(t, e.store, rec.ID, models.StatusFailed)
	if !strings.Contains(failed.LastError, "active snapshots") {
		t.Errorf("LastError = %q", failed.LastError)
	}

	_, realized, err := e.store.SavingsTotals(context.Background())
	if err != nil {
		t.Fatalf("savings totals: %v", err)
	}
	if realized != 0 {
		t.Errorf("realized savings = %v after failure, want 0", realized)
	}

	// failed is terminal for the record but frees the dedup slot.
	stats := scan(t, e)
	if stats.Created != 1 {
		t.Fatalf("re-scan stats = %+v, want 1 created", stats)
	}
}

// TestFullStackOverHTTP runs the same lifecycle through the public
// surface: scan, watch the websocket feed, approve over the API.
func TestFullStackOverHTTP(t *testing.T) {
	store := storage.NewMemoryStore()
	provider := telemetry.NewSimulatedProvider()
	provider.SetResources([]*models.Resource{idleDatabase()})
	hub := events.NewHub(nil)
	defer hub.Close()

	exec := executor.New(executor.Config{
		Policy:      executor.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond},
		CallTimeout: time.Second,
	}, store, executor.NewSimulatedAdapter(), hub, nil)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		exec.Close(ctx)
	}()

	pricer := pricing.NewAWSProvider("us-east-1")
	sched := scheduler.New(scheduler.Config{
		ScanInterval: time.Minute,
		Workers:      4,
		ClaimTimeout: 10 * time.Minute,
	}, provider, store, risk.NewPolicy(nil), recommender.New(pricer), exec, hub, nil)

	tokens, err := auth.NewTokenManager("e2e-test-secret-0123456789", time.Hour)
	if err != nil {
		t.Fatalf("token manager: %v", err)
	}
	srv := server.New(server.Config{ListenAddr: ":0"}, server.Deps{
		Store:      store,
		Telemetry:  provider,
		Approvals:  approval.New(store, exec, auth.RoleAdmin, nil),
		Aggregator: metrics.NewAggregator(store, provider, pricer, nil),
		Collectors: metrics.NewCollectors(),
		Hub:        hub,
		Tokens:     tokens,
	})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	adminToken, err := tokens.Issue(auth.User{ID: "admin-1", Name: "Ada", Role: auth.RoleAdmin})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?access_token=" + adminToken
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("websocket dial: %v", err)
	}
	defer conn.Close()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("websocket client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if _, err := sched.ScanOnce(context.Background()); err != nil {
		t.Fatalf("scan failed: %v", err)
	}

	created := readEvent(t, conn, events.TypeNewRecommendation)
	data, ok := created.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("event data = %T", created.Data)
	}
	id, _ := data["id"].(string)
	if id == "" {
		t.Fatalf("new_recommendation event missing id: %+v", data)
	}

	status, body := post(t, ts.URL+"/api/v1/recommendations/"+id+"/approve", adminToken)
	if status != http.StatusOK {
		t.Fatalf("approve status = %d: %s", status, body)
	}

	executedEvent := readEvent(t, conn, events.TypeOptimizationExecuted)
	if executedEvent.Timestamp.IsZero() {
		t.Error("executed event missing timestamp")
	}
	waitForStatus(t, store, id, models.StatusExecuted)
}

func readEvent(t *testing.T, conn *websocket.Conn, want string) events.Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("websocket read while waiting for %s: %v", want, err)
		}
		var ev events.Event
		if err := json.Unmarshal(payload, &ev); err != nil {
			t.Fatalf("bad event payload: %v", err)
		}
		if ev.Type == want {
			return ev
		}
	}
}

func post(t *testing.T, url, token string) (int, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, string(body)
}
