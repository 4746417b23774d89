package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/opscart/cloud-cost-optimizer/pkg/models"
)

//go:embed migrations/*.sql
var postgresFS embed.FS

const uniqueViolation = "23505"

// PostgresStore implements Store interface using PostgreSQL
type PostgresStore struct {
	db  *sql.DB
	dsn string
}

// NewPostgresStore creates a new PostgreSQL store
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Test connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &PostgresStore{
		db:  db,
		dsn: dsn,
	}

	// Run migrations
	if err := store.migrate(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// migrate runs database migrations
func (s *PostgresStore) migrate() error {
	schema, err := postgresFS.ReadFile("migrations/001_postgres_schema.sql")
	if err != nil {
		return fmt.Errorf("failed to read schema: %w", err)
	}

	if _, err := s.db.Exec(string(schema)); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	return nil
}

const recommendationColumns = `
	id, resource_id, resource_type, resource_name, region,
	waste_kind, action, title, description,
	risk_level, execution_mode,
	monthly_savings_usd, annual_savings_usd,
	status, created_at, updated_at, executed_at, acted_by, last_error`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecommendation(row rowScanner) (*models.Recommendation, error) {
	var rec models.Recommendation
	var executedAt sql.NullTime
	var actedBy, lastError sql.NullString

	err := row.Scan(
		&rec.ID, &rec.ResourceID, &rec.ResourceType, &rec.ResourceName, &rec.Region,
		&rec.Kind, &rec.Action, &rec.Title, &rec.Description,
		&rec.RiskLevel, &rec.Mode,
		&rec.MonthlySavings, &rec.AnnualSavings,
		&rec.Status, &rec.CreatedAt, &rec.UpdatedAt, &executedAt, &actedBy, &lastError,
	)
	if err != nil {
		return nil, err
	}

	if executedAt.Valid {
		rec.ExecutedAt = &executedAt.Time
	}
	if actedBy.Valid {
		rec.ActedBy = actedBy.String
	}
	if lastError.Valid {
		rec.LastError = lastError.String
	}

	return &rec, nil
}

// InsertRecommendation persists a new recommendation. A partial unique
// index on active statuses enforces the one-active-per-resource rule,
// surfaced as ErrDuplicateActive.
func (s *PostgresStore) InsertRecommendation(ctx context.Context, rec *models.Recommendation) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	now := time.Now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	if rec.Status == "" {
		rec.Status = models.StatusPending
	}

	query := `
		INSERT INTO recommendations (
			id, resource_id, resource_type, resource_name, region,
			waste_kind, action, title, description,
			risk_level, execution_mode,
			monthly_savings_usd, annual_savings_usd,
			status, created_at, updated_at, executed_at, acted_by, last_error
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`

	_, err := s.db.ExecContext(ctx, query,
		rec.ID, rec.ResourceID, rec.ResourceType, rec.ResourceName, rec.Region,
		rec.Kind, rec.Action, rec.Title, rec.Description,
		rec.RiskLevel, rec.Mode,
		rec.MonthlySavings, rec.AnnualSavings,
		rec.Status, rec.CreatedAt, rec.UpdatedAt, rec.ExecutedAt, nullString(rec.ActedBy), nullString(rec.LastError),
	)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("%s/%s: %w", rec.ResourceID, rec.ResourceType, ErrDuplicateActive)
	}
	return err
}

// GetRecommendation retrieves a recommendation by ID
func (s *PostgresStore) GetRecommendation(ctx context.Context, id string) (*models.Recommendation, error) {
	query := `SELECT` + recommendationColumns + `
		FROM recommendations
		WHERE id = $1
	`

	rec, err := scanRecommendation(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// GetActiveRecommendation returns the active recommendation occupying
// the (resource, type) dedup slot, or nil when the slot is free.
func (s *PostgresStore) GetActiveRecommendation(ctx context.Context, resourceID string, typ models.ResourceType) (*models.Recommendation, error) {
	query := `SELECT` + recommendationColumns + `
		FROM recommendations
		WHERE resource_id = $1 AND resource_type = $2
			AND status = ANY($3)
		LIMIT 1
	`

	rec, err := scanRecommendation(s.db.QueryRowContext(ctx, query, resourceID, typ, pq.Array(statusStrings(models.ActiveStatuses()))))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// UpdateStatus performs the conditional transition expected → next. The
// WHERE clause on the current status makes the claim atomic; losing a
// race surfaces as ErrStatusConflict.
func (s *PostgresStore) UpdateStatus(ctx context.Context, id string, expected, next models.Status, fields UpdateFields) (*models.Recommendation, error) {
	query := `
		UPDATE recommendations
		SET status = $1,
			updated_at = $2,
			executed_at = COALESCE($3, executed_at),
			acted_by = COALESCE($4, acted_by),
			last_error = COALESCE($5, last_error)
		WHERE id = $6 AND status = $7
	`

	result, err := s.db.ExecContext(ctx, query,
		next, time.Now(), fields.ExecutedAt, fields.ActedBy, fields.LastError, id, expected,
	)
	if err != nil {
		return nil, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		current, err := s.GetRecommendation(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%s is %s, expected %s: %w", id, current.Status, expected, ErrStatusConflict)
	}

	return s.GetRecommendation(ctx, id)
}

// ListRecommendations retrieves recommendations matching the filter,
// newest first.
func (s *PostgresStore) ListRecommendations(ctx context.Context, filter Filter) ([]*models.Recommendation, error) {
	var conditions []string
	var args []any

	if len(filter.Statuses) > 0 {
		args = append(args, pq.Array(statusStrings(filter.Statuses)))
		conditions = append(conditions, fmt.Sprintf("status = ANY($%d)", len(args)))
	}
	if filter.Type != "" {
		args = append(args, filter.Type)
		conditions = append(conditions, fmt.Sprintf("resource_type = $%d", len(args)))
	}
	if filter.ResourceID != "" {
		args = append(args, filter.ResourceID)
		conditions = append(conditions, fmt.Sprintf("resource_id = $%d", len(args)))
	}

	query := `SELECT` + recommendationColumns + ` FROM recommendations`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recommendations []*models.Recommendation
	for rows.Next() {
		rec, err := scanRecommendation(rows)
		if err != nil {
			return nil, err
		}
		recommendations = append(recommendations, rec)
	}

	return recommendations, rows.Err()
}

// ListStuckExecuting returns recommendations that entered executing
// before the cutoff and never resolved.
func (s *PostgresStore) ListStuckExecuting(ctx context.Context, olderThan time.Time) ([]*models.Recommendation, error) {
	query := `SELECT` + recommendationColumns + `
		FROM recommendations
		WHERE status = $1 AND updated_at < $2
		ORDER BY updated_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, models.StatusExecuting, olderThan)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recommendations []*models.Recommendation
	for rows.Next() {
		rec, err := scanRecommendation(rows)
		if err != nil {
			return nil, err
		}
		recommendations = append(recommendations, rec)
	}

	return recommendations, rows.Err()
}

// RecordAttempt appends one entry to the execution log
func (s *PostgresStore) RecordAttempt(ctx context.Context, attempt *models.ExecutionAttempt) error {
	if attempt.ID == "" {
		attempt.ID = uuid.New().String()
	}
	if attempt.Timestamp.IsZero() {
		attempt.Timestamp = time.Now()
	}

	query := `
		INSERT INTO execution_attempts (
			id, recommendation_id, attempt, outcome, error_message, attempted_at
		) VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := s.db.ExecContext(ctx, query,
		attempt.ID, attempt.RecommendationID, attempt.Attempt,
		attempt.Outcome, nullString(attempt.Error), attempt.Timestamp,
	)

	return err
}

// ListAttempts retrieves the execution log for a recommendation in
// attempt order
func (s *PostgresStore) ListAttempts(ctx context.Context, recommendationID string) ([]*models.ExecutionAttempt, error) {
	query := `
		SELECT id, recommendation_id, attempt, outcome, error_message, attempted_at
		FROM execution_attempts
		WHERE recommendation_id = $1
		ORDER BY attempt ASC
	`

	rows, err := s.db.QueryContext(ctx, query, recommendationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []*models.ExecutionAttempt
	for rows.Next() {
		var attempt models.ExecutionAttempt
		var errorMessage sql.NullString

		err := rows.Scan(
			&attempt.ID, &attempt.RecommendationID, &attempt.Attempt,
			&attempt.Outcome, &errorMessage, &attempt.Timestamp,
		)
		if err != nil {
			return nil, err
		}

		if errorMessage.Valid {
			attempt.Error = errorMessage.String
		}

		attempts = append(attempts, &attempt)
	}

	return attempts, rows.Err()
}

// SavingsTotals sums identified and realized monthly savings. Rejected
// and failed recommendations count toward neither; a failed execution
// frees the dedup slot and its waste is re-identified by the next scan.
func (s *PostgresStore) SavingsTotals(ctx context.Context) (float64, float64, error) {
	query := `
		SELECT
			COALESCE(SUM(CASE WHEN status NOT IN ($1, $2) THEN monthly_savings_usd END), 0),
			COALESCE(SUM(CASE WHEN status = $3 THEN monthly_savings_usd END), 0)
		FROM recommendations
	`

	var identified, realized float64
	err := s.db.QueryRowContext(ctx, query, models.StatusRejected, models.StatusFailed, models.StatusExecuted).
		Scan(&identified, &realized)
	if err != nil {
		return 0, 0, err
	}

	return identified, realized, nil
}

// Ping checks database connectivity
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func statusStrings(statuses []models.Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
