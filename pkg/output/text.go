package output

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/opscart/cloud-cost-optimizer/pkg/models"
)

// TextHandler renders recommendations for a terminal.
type TextHandler struct {
	w io.Writer
}

func (h *TextHandler) DisplayRecommendations(ctx context.Context, recommendations []*models.Recommendation) error {
	if len(recommendations) == 0 {
		_, err := fmt.Fprintln(h.w, "[INFO] No optimization opportunities found")
		return err
	}

	fmt.Fprintf(h.w, "=== Optimization Recommendations ===\n\n")

	for i, rec := range recommendations {
		name := rec.ResourceID
		if rec.ResourceName != "" {
			name = fmt.Sprintf("%s (%s)", rec.ResourceID, rec.ResourceName)
		}
		fmt.Fprintf(h.w, "%d. %s [%s]\n", i+1, name, strings.ToUpper(string(rec.Mode)))
		fmt.Fprintf(h.w, "   Type: %s\n", rec.ResourceType)
		fmt.Fprintf(h.w, "   Finding: %s\n", rec.Kind)
		fmt.Fprintf(h.w, "   Action: %s\n", rec.Action)
		fmt.Fprintf(h.w, "   Risk: %s\n", rec.RiskLevel)
		fmt.Fprintf(h.w, "   Savings: $%.2f/month\n", rec.MonthlySavings)
		if rec.Description != "" {
			fmt.Fprintf(h.w, "   Reason: %s\n", rec.Description)
		}
		if rec.Status != models.StatusPending {
			fmt.Fprintf(h.w, "   Status: %s\n", rec.Status)
		}
		fmt.Fprintln(h.w)
	}
	return nil
}

func (h *TextHandler) DisplaySummary(ctx context.Context, totalSavings float64, count int) error {
	if count == 0 {
		return nil
	}
	_, err := fmt.Fprintf(h.w, "Total potential savings: $%.2f/month across %d recommendations\n",
		totalSavings, count)
	return err
}

func (h *TextHandler) Format() string { return "text" }
