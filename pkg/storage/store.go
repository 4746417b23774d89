package storage

import (
	"context"
	"errors"
	"time"

	"github.com/opscart/cloud-cost-optimizer/pkg/models"
)

var (
	// ErrNotFound is returned when no recommendation exists for an ID.
	ErrNotFound = errors.New("recommendation not found")

	// ErrStatusConflict is returned when a conditional status update
	// finds the recommendation in a different state than expected.
	ErrStatusConflict = errors.New("recommendation status conflict")

	// ErrDuplicateActive is returned when an insert would create a
	// second active recommendation for the same (resource, type) pair.
	ErrDuplicateActive = errors.New("active recommendation already exists for resource")
)

// UpdateFields carries the optional columns a status transition may
// set. Nil fields are left untouched.
type UpdateFields struct {
	ExecutedAt *time.Time
	ActedBy    *string
	LastError  *string
}

// Filter narrows ListRecommendations. Zero values mean no constraint.
type Filter struct {
	Statuses   []models.Status
	Type       models.ResourceType
	ResourceID string
	Limit      int
}

// Store defines the interface for persistent storage
type Store interface {
	// InsertRecommendation persists a new recommendation, assigning its
	// ID and timestamps. Returns ErrDuplicateActive if an active
	// recommendation already covers the same (resource, type) pair.
	InsertRecommendation(ctx context.Context, rec *models.Recommendation) error

	GetRecommendation(ctx context.Context, id string) (*models.Recommendation, error)

	// GetActiveRecommendation returns the active recommendation for a
	// (resource, type) pair, or (nil, nil) when none exists.
	GetActiveRecommendation(ctx context.Context, resourceID string, typ models.ResourceType) (*models.Recommendation, error)

	// UpdateStatus transitions a recommendation from an expected status
	// to the next one atomically and returns the updated record.
	// Returns ErrStatusConflict when the current status does not match.
	UpdateStatus(ctx context.Context, id string, expected, next models.Status, fields UpdateFields) (*models.Recommendation, error)

	ListRecommendations(ctx context.Context, filter Filter) ([]*models.Recommendation, error)

	// ListStuckExecuting returns recommendations left in executing
	// since before the cutoff, for restart reconciliation.
	ListStuckExecuting(ctx context.Context, olderThan time.Time) ([]*models.Recommendation, error)

	RecordAttempt(ctx context.Context, attempt *models.ExecutionAttempt) error
	ListAttempts(ctx context.Context, recommendationID string) ([]*models.ExecutionAttempt, error)

	// SavingsTotals returns identified (pending, approved, executing,
	// executed) and realized (executed only) monthly savings sums.
	// Rejected and failed recommendations count toward neither.
	SavingsTotals(ctx context.Context) (identified, realized float64, err error)

	Ping(ctx context.Context) error
	Close() error
}
