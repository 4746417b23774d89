package reporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/opscart/cloud-cost-optimizer/pkg/models"
)

// GenerateCSV creates a CSV report
func GenerateCSV(report *Report, writer io.Writer) error {
	w := csv.NewWriter(writer)
	defer w.Flush()

	header := []string{
		"ID",
		"Resource",
		"Name",
		"Type",
		"Finding",
		"Action",
		"Risk",
		"Mode",
		"Status",
		"Monthly Savings ($)",
		"Acted By",
		"Created",
	}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, rec := range report.Recommendations {
		row := []string{
			rec.ID,
			rec.ResourceID,
			rec.ResourceName,
			string(rec.ResourceType),
			string(rec.Kind),
			string(rec.Action),
			string(rec.RiskLevel),
			string(rec.Mode),
			string(rec.Status),
			fmt.Sprintf("%.2f", rec.MonthlySavings),
			rec.ActedBy,
			rec.CreatedAt.Format(time.RFC3339),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	// Summary rows
	w.Write([]string{})
	w.Write([]string{"SUMMARY"})
	w.Write([]string{"Total Recommendations", fmt.Sprintf("%d", report.TotalCount)})
	w.Write([]string{"Identified Monthly Savings", fmt.Sprintf("$%.2f", report.IdentifiedSavings)})
	w.Write([]string{"Realized Monthly Savings", fmt.Sprintf("$%.2f", report.RealizedSavings)})

	// Type breakdown, sorted for stable output
	types := make([]string, 0, len(report.TypeStats))
	for typ := range report.TypeStats {
		types = append(types, string(typ))
	}
	sort.Strings(types)

	w.Write([]string{})
	w.Write([]string{"TYPE BREAKDOWN"})
	w.Write([]string{"Type", "Recommendations", "Executed", "Savings"})
	for _, typ := range types {
		stat := report.TypeStats[models.ResourceType(typ)]
		w.Write([]string{
			typ,
			fmt.Sprintf("%d", stat.Count),
			fmt.Sprintf("%d", stat.Executed),
			fmt.Sprintf("$%.2f", stat.TotalSavings),
		})
	}

	return nil
}
