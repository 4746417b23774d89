package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/opscart/cloud-cost-optimizer/pkg/models"
)

// ReportFormat represents the output format
type ReportFormat string

const (
	FormatCSV  ReportFormat = "csv"
	FormatJSON ReportFormat = "json"
)

// Report contains all data for generating reports
type Report struct {
	GeneratedAt     time.Time                `json:"generated_at"`
	Recommendations []*models.Recommendation `json:"recommendations"`

	TotalCount int                   `json:"total_count"`
	ByStatus   map[models.Status]int `json:"by_status"`

	// IdentifiedSavings excludes rejected and failed recommendations;
	// RealizedSavings counts executed ones only.
	IdentifiedSavings float64 `json:"identified_monthly_savings"`
	RealizedSavings   float64 `json:"realized_monthly_savings"`

	TypeStats map[models.ResourceType]*TypeStats `json:"type_stats"`
}

// TypeStats holds statistics per resource type
type TypeStats struct {
	Type         models.ResourceType `json:"type"`
	Count        int                 `json:"count"`
	TotalSavings float64             `json:"total_savings"`
	Executed     int                 `json:"executed"`
}

// Reporter generates cost optimization reports
type Reporter struct {
	format ReportFormat
}

// New creates a new reporter
func New(format ReportFormat) (*Reporter, error) {
	switch format {
	case FormatCSV, FormatJSON:
		return &Reporter{format: format}, nil
	default:
		return nil, fmt.Errorf("unknown report format %q", format)
	}
}

// Generate builds a report over a set of recommendations
func (r *Reporter) Generate(recommendations []*models.Recommendation) *Report {
	report := &Report{
		GeneratedAt:     time.Now(),
		Recommendations: recommendations,
		ByStatus:        make(map[models.Status]int),
		TypeStats:       make(map[models.ResourceType]*TypeStats),
	}

	for _, rec := range recommendations {
		report.TotalCount++
		report.ByStatus[rec.Status]++

		if rec.Status != models.StatusRejected && rec.Status != models.StatusFailed {
			report.IdentifiedSavings += rec.MonthlySavings
		}
		if rec.Status == models.StatusExecuted {
			report.RealizedSavings += rec.MonthlySavings
		}

		stat, exists := report.TypeStats[rec.ResourceType]
		if !exists {
			stat = &TypeStats{Type: rec.ResourceType}
			report.TypeStats[rec.ResourceType] = stat
		}
		stat.Count++
		stat.TotalSavings += rec.MonthlySavings
		if rec.Status == models.StatusExecuted {
			stat.Executed++
		}
	}

	return report
}

// Write renders the report in the reporter's format
func (r *Reporter) Write(report *Report, w io.Writer) error {
	switch r.format {
	case FormatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(report)
	case FormatCSV:
		return GenerateCSV(report, w)
	default:
		return fmt.Errorf("unknown report format %q", r.format)
	}
}
