package output

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/opscart/cloud-cost-optimizer/pkg/models"
)

// JSONHandler emits machine-readable output for piping into other
// tooling. DisplayRecommendations writes the whole document, so
// DisplaySummary is a no-op.
type JSONHandler struct {
	w io.Writer
}

func (h *JSONHandler) DisplayRecommendations(ctx context.Context, recommendations []*models.Recommendation) error {
	var total float64
	for _, rec := range recommendations {
		total += rec.MonthlySavings
	}

	document := map[string]interface{}{
		"recommendations": recommendations,
		"total_savings":   total,
		"count":           len(recommendations),
		"timestamp":       time.Now().Format(time.RFC3339),
	}

	encoder := json.NewEncoder(h.w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(document)
}

func (h *JSONHandler) DisplaySummary(ctx context.Context, totalSavings float64, count int) error {
	return nil
}

func (h *JSONHandler) Format() string { return "json" }
