package output

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/opscart/cloud-cost-optimizer/pkg/models"
)

func sampleRecommendations() []*models.Recommendation {
	return []*models.Recommendation{
		{
			ID:             "rec-1",
			ResourceID:     "i-0f3a9c01",
			ResourceType:   models.ResourceComputeInstance,
			ResourceName:   "build-runner-17",
			Kind:           models.WasteIdle,
			Action:         models.ActionStopInstance,
			Description:    "Average CPU is 3.1% over the observation window.",
			RiskLevel:      models.RiskMedium,
			Mode:           models.ModeHITL,
			MonthlySavings: 70.08,
			Status:         models.StatusPending,
		},
		{
			ID:             "rec-2",
			ResourceID:     "eip-52.4.18.9",
			ResourceType:   models.ResourceStaticIP,
			Kind:           models.WasteUnassociated,
			Action:         models.ActionReleaseStaticIP,
			RiskLevel:      models.RiskLow,
			Mode:           models.ModeAutonomous,
			MonthlySavings: 3.60,
			Status:         models.StatusExecuted,
		},
	}
}

func TestNewHandler(t *testing.T) {
	var buf bytes.Buffer
	for _, format := range []string{"text", "json"} {
		h, err := NewHandler(format, &buf)
		if err != nil {
			t.Fatalf("NewHandler(%q) failed: %v", format, err)
		}
		if h.Format() != format {
			t.Errorf("Format() = %q, want %q", h.Format(), format)
		}
	}
	if _, err := NewHandler("xml", &buf); err == nil {
		t.Error("unknown format accepted")
	}
}

func TestTextOutput(t *testing.T) {
	var buf bytes.Buffer
	h := &TextHandler{w: &buf}
	ctx := context.Background()

	if err := h.DisplayRecommendations(ctx, sampleRecommendations()); err != nil {
		t.Fatalf("DisplayRecommendations failed: %v", err)
	}
	if err := h.DisplaySummary(ctx, 73.68, 2); err != nil {
		t.Fatalf("DisplaySummary failed: %v", err)
	}

	text := buf.String()
	for _, want := range []string{
		"1. i-0f3a9c01 (build-runner-17) [HITL]",
		"Type: compute_instance",
		"Finding: idle",
		"Action: stop_instance",
		"Risk: medium",
		"Savings: $70.08/month",
		"Reason: Average CPU is 3.1%",
		"2. eip-52.4.18.9 [AUTONOMOUS]",
		"Status: executed",
		"Total potential savings: $73.68/month across 2 recommendations",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("text output missing %q:\n%s", want, text)
		}
	}
}

func TestTextOutputEmpty(t *testing.T) {
	var buf bytes.Buffer
	h := &TextHandler{w: &buf}
	ctx := context.Background()

	if err := h.DisplayRecommendations(ctx, nil); err != nil {
		t.Fatalf("DisplayRecommendations failed: %v", err)
	}
	if err := h.DisplaySummary(ctx, 0, 0); err != nil {
		t.Fatalf("DisplaySummary failed: %v", err)
	}
	if !strings.Contains(buf.String(), "No optimization opportunities found") {
		t.Errorf("empty output = %q", buf.String())
	}
}

func TestJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	h := &JSONHandler{w: &buf}

	if err := h.DisplayRecommendations(context.Background(), sampleRecommendations()); err != nil {
		t.Fatalf("DisplayRecommendations failed: %v", err)
	}

	var document struct {
		Recommendations []*models.Recommendation `json:"recommendations"`
		TotalSavings    float64                  `json:"total_savings"`
		Count           int                      `json:"count"`
		Timestamp       string                   `json:"timestamp"`
	}
	if err := json.Unmarshal(buf.Bytes(), &document); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if document.Count != 2 || len(document.Recommendations) != 2 {
		t.Errorf("count = %d, want 2", document.Count)
	}
	if math.Abs(document.TotalSavings-73.68) > 0.001 {
		t.Errorf("total_savings = %v, want 73.68", document.TotalSavings)
	}
	if document.Timestamp == "" {
		t.Error("timestamp missing")
	}
	if document.Recommendations[0].ID != "rec-1" {
		t.Errorf("first recommendation = %+v", document.Recommendations[0])
	}
}
