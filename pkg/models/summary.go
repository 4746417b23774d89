package models

import "time"

// Summary is the on-demand KPI projection the dashboard and CLI read.
// It is recomputed from recommendation and inventory state every time;
// it is never a source of truth.
type Summary struct {
	TotalRecommendations int            `json:"total_recommendations"`
	PendingCount         int            `json:"pending_count"`
	ByStatus             map[Status]int `json:"by_status"`

	// IdentifiedMonthlySavings sums projected savings of pending,
	// approved, executing and executed recommendations;
	// RealizedMonthlySavings counts only executed ones.
	IdentifiedMonthlySavings float64 `json:"identified_monthly_savings"`
	RealizedMonthlySavings   float64 `json:"realized_monthly_savings"`

	// TotalMonthlyCost is the estimated spend of the current
	// inventory; WastePercent is identified savings relative to it.
	TotalMonthlyCost float64 `json:"total_monthly_cost"`
	WastePercent     float64 `json:"waste_percent"`

	ResourceCount int        `json:"resource_count"`
	LastActionAt  *time.Time `json:"last_action_at,omitempty"`
	GeneratedAt   time.Time  `json:"generated_at"`
}
