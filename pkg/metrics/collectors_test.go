package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/opscart/cloud-cost-optimizer/pkg/executor"
	"github.com/opscart/cloud-cost-optimizer/pkg/models"
	"github.com/opscart/cloud-cost-optimizer/pkg/scheduler"
)

var (
	_ scheduler.MetricsRecorder = (*Collectors)(nil)
	_ executor.MetricsRecorder  = (*Collectors)(nil)
)

func scrape(t *testing.T, c *Collectors) string {
	t.Helper()
	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("scrape failed: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	return string(body)
}

func TestCollectorsExposition(t *testing.T) {
	c := NewCollectors()
	c.TrackClientCount(func() int { return 3 })

	c.ScanCompleted(12)
	c.ScanCompleted(12)
	c.DetectionFound(models.ResourceBlockVolume, models.WasteUnattached)
	c.RecommendationCreated()
	c.RecommendationSkipped()
	c.ExecutionFinished("executed", 3)
	c.RealizedSavings(16.5)
	c.HTTPRequest("GET", "/api/v1/recommendations", 200, 42*time.Millisecond)

	body := scrape(t, c)
	for _, line := range []string{
		"costopt_scan_cycles_total 2",
		"costopt_resources_scanned_total 24",
		`costopt_detections_total{kind="unattached",type="block_volume"} 1`,
		"costopt_recommendations_created_total 1",
		"costopt_recommendations_skipped_total 1",
		`costopt_executions_total{outcome="executed"} 1`,
		"costopt_execution_retries_total 2",
		"costopt_realized_savings_usd_total 16.5",
		`costopt_http_requests_total{code="200",method="GET",route="/api/v1/recommendations"} 1`,
		`costopt_http_request_duration_seconds_count{method="GET",route="/api/v1/recommendations"} 1`,
		"costopt_ws_clients 3",
	} {
		if !strings.Contains(body, line) {
			t.Errorf("exposition missing %q", line)
		}
	}
}

func TestFirstAttemptCountsNoRetries(t *testing.T) {
	c := NewCollectors()
	c.ExecutionFinished("failed", 1)

	body := scrape(t, c)
	if !strings.Contains(body, "costopt_execution_retries_total 0") {
		t.Error("single-attempt execution must not count retries")
	}
	if !strings.Contains(body, `costopt_executions_total{outcome="failed"} 1`) {
		t.Error("missing failed outcome counter")
	}
}
