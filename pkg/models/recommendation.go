package models

import (
	"fmt"
	"time"
)

// RiskLevel grades the blast radius of applying a recommendation.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// ExecutionMode decides whether a recommendation is applied without
// human involvement or waits for an explicit approval.
type ExecutionMode string

const (
	ModeAutonomous ExecutionMode = "autonomous"
	ModeHITL       ExecutionMode = "hitl"
)

// WasteKind names the specific waste pattern a detection matched.
type WasteKind string

const (
	WasteIdle            WasteKind = "idle"
	WasteOverprovisioned WasteKind = "overprovisioned"
	WasteUnattached      WasteKind = "unattached"
	WasteLegacyClass     WasteKind = "legacy_class"
	WasteOrphaned        WasteKind = "orphaned"
	WasteAged            WasteKind = "aged"
	WasteUnassociated    WasteKind = "unassociated"
	WasteLowTraffic      WasteKind = "low_traffic"
	WasteNoLifecycle     WasteKind = "no_lifecycle"
)

// ActionType is the concrete optimization the action adapter applies.
type ActionType string

const (
	ActionStopInstance         ActionType = "stop_instance"
	ActionRightsizeDatabase    ActionType = "rightsize_database"
	ActionPauseWarehouse       ActionType = "pause_warehouse"
	ActionDeleteVolume         ActionType = "delete_volume"
	ActionMigrateVolumeClass   ActionType = "migrate_volume_class"
	ActionDeleteSnapshot       ActionType = "delete_snapshot"
	ActionReleaseStaticIP      ActionType = "release_static_ip"
	ActionDeleteNATGateway     ActionType = "delete_nat_gateway"
	ActionDeleteLoadBalancer   ActionType = "delete_load_balancer"
	ActionApplyLifecyclePolicy ActionType = "apply_lifecycle_policy"
	ActionRightsizeFunction    ActionType = "rightsize_function"
)

// Status is the recommendation lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusExecuting Status = "executing"
	StatusExecuted  Status = "executed"
	StatusFailed    Status = "failed"
)

// ActiveStatuses are the states that occupy the dedup slot for a
// (resource, type) pair. A failed or terminal recommendation frees the
// slot so a later scan cycle can raise the finding again.
func ActiveStatuses() []Status {
	return []Status{StatusPending, StatusApproved, StatusExecuting}
}

// IsActive reports whether s occupies the dedup slot.
func (s Status) IsActive() bool {
	return s == StatusPending || s == StatusApproved || s == StatusExecuting
}

// IsTerminal reports whether no further transition is allowed from s.
// failed is terminal for the record itself even though the waste may
// be re-detected as a fresh recommendation.
func (s Status) IsTerminal() bool {
	return s == StatusRejected || s == StatusExecuted || s == StatusFailed
}

// CanTransition reports whether the state machine allows from → to.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusApproved || to == StatusRejected || to == StatusExecuting
	case StatusApproved:
		return to == StatusExecuting
	case StatusExecuting:
		return to == StatusExecuted || to == StatusFailed
	default:
		return false
	}
}

// ParseStatus validates a user-supplied status string.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusApproved, StatusRejected, StatusExecuting, StatusExecuted, StatusFailed:
		return Status(s), nil
	default:
		return "", fmt.Errorf("unknown status %q", s)
	}
}

// Recommendation is a single optimization opportunity and its audit
// trail. Records are never deleted; they only move through the state
// machine.
type Recommendation struct {
	ID           string       `json:"id"`
	ResourceID   string       `json:"resource_id"`
	ResourceType ResourceType `json:"resource_type"`
	ResourceName string       `json:"resource_name,omitempty"`
	Region       string       `json:"region,omitempty"`

	Kind        WasteKind  `json:"kind"`
	Action      ActionType `json:"action"`
	Title       string     `json:"title"`
	Description string     `json:"description"`

	RiskLevel RiskLevel     `json:"risk_level"`
	Mode      ExecutionMode `json:"execution_mode"`

	// Projected savings if the action is applied.
	MonthlySavings float64 `json:"projected_monthly_savings"`
	AnnualSavings  float64 `json:"projected_annual_savings"`

	Status     Status     `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	ExecutedAt *time.Time `json:"executed_at,omitempty"`
	ActedBy    string     `json:"acted_by,omitempty"`
	LastError  string     `json:"last_error,omitempty"`
}

// AttemptOutcome classifies a single execution attempt.
type AttemptOutcome string

const (
	AttemptSuccess          AttemptOutcome = "success"
	AttemptRetryableFailure AttemptOutcome = "retryable_failure"
	AttemptFatalFailure     AttemptOutcome = "fatal_failure"
)

// ExecutionAttempt is one entry of the append-only execution log.
type ExecutionAttempt struct {
	ID               string         `json:"id"`
	RecommendationID string         `json:"recommendation_id"`
	Attempt          int            `json:"attempt"`
	Outcome          AttemptOutcome `json:"outcome"`
	Error            string         `json:"error,omitempty"`
	Timestamp        time.Time      `json:"timestamp"`
}
