package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/opscart/cloud-cost-optimizer/pkg/models"
)

// MemoryStore implements Store in process memory. It backs local
// development without a database and the test suites; it honors the
// same conditional-update and dedup semantics as PostgresStore.
type MemoryStore struct {
	mu              sync.RWMutex
	recommendations map[string]*models.Recommendation
	attempts        map[string][]*models.ExecutionAttempt
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		recommendations: make(map[string]*models.Recommendation),
		attempts:        make(map[string][]*models.ExecutionAttempt),
	}
}

func clone(rec *models.Recommendation) *models.Recommendation {
	out := *rec
	if rec.ExecutedAt != nil {
		t := *rec.ExecutedAt
		out.ExecutedAt = &t
	}
	return &out
}

func (s *MemoryStore) InsertRecommendation(ctx context.Context, rec *models.Recommendation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.recommendations {
		if existing.ResourceID == rec.ResourceID &&
			existing.ResourceType == rec.ResourceType &&
			existing.Status.IsActive() {
			return fmt.Errorf("%s/%s: %w", rec.ResourceID, rec.ResourceType, ErrDuplicateActive)
		}
	}

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

	s.recommendations[rec.ID] = clone(rec)
	return nil
}

func (s *MemoryStore) GetRecommendation(ctx context.Context, id string) (*models.Recommendation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.recommendations[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return clone(rec), nil
}

func (s *MemoryStore) GetActiveRecommendation(ctx context.Context, resourceID string, typ models.ResourceType) (*models.Recommendation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rec := range s.recommendations {
		if rec.ResourceID == resourceID && rec.ResourceType == typ && rec.Status.IsActive() {
			return clone(rec), nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) UpdateStatus(ctx context.Context, id string, expected, next models.Status, fields UpdateFields) (*models.Recommendation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.recommendations[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if rec.Status != expected {
		return nil, fmt.Errorf("%s is %s, expected %s: %w", id, rec.Status, expected, ErrStatusConflict)
	}

	rec.Status = next
	rec.UpdatedAt = time.Now()
	if fields.ExecutedAt != nil {
		t := *fields.ExecutedAt
		rec.ExecutedAt = &t
	}
	if fields.ActedBy != nil {
		rec.ActedBy = *fields.ActedBy
	}
	if fields.LastError != nil {
		rec.LastError = *fields.LastError
	}

	return clone(rec), nil
}

func (s *MemoryStore) ListRecommendations(ctx context.Context, filter Filter) ([]*models.Recommendation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Recommendation
	for _, rec := range s.recommendations {
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, rec.Status) {
			continue
		}
		if filter.Type != "" && rec.ResourceType != filter.Type {
			continue
		}
		if filter.ResourceID != "" && rec.ResourceID != filter.ResourceID {
			continue
		}
		out = append(out, clone(rec))
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *MemoryStore) ListStuckExecuting(ctx context.Context, olderThan time.Time) ([]*models.Recommendation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Recommendation
	for _, rec := range s.recommendations {
		if rec.Status == models.StatusExecuting && rec.UpdatedAt.Before(olderThan) {
			out = append(out, clone(rec))
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.Before(out[j].UpdatedAt)
	})
	return out, nil
}

func (s *MemoryStore) RecordAttempt(ctx context.Context, attempt *models.ExecutionAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if attempt.ID == "" {
		attempt.ID = uuid.New().String()
	}
	if attempt.Timestamp.IsZero() {
		attempt.Timestamp = time.Now()
	}

	stored := *attempt
	s.attempts[attempt.RecommendationID] = append(s.attempts[attempt.RecommendationID], &stored)
	return nil
}

func (s *MemoryStore) ListAttempts(ctx context.Context, recommendationID string) ([]*models.ExecutionAttempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	attempts := s.attempts[recommendationID]
	out := make([]*models.ExecutionAttempt, len(attempts))
	for i, a := range attempts {
		copied := *a
		out[i] = &copied
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Attempt < out[j].Attempt
	})
	return out, nil
}

func (s *MemoryStore) SavingsTotals(ctx context.Context) (float64, float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var identified, realized float64
	for _, rec := range s.recommendations {
		// Rejected and failed count toward neither: a failed execution
		// frees the dedup slot, so its waste is re-identified by the
		// next scan and would otherwise be counted twice.
		if rec.Status != models.StatusRejected && rec.Status != models.StatusFailed {
			identified += rec.MonthlySavings
		}
		if rec.Status == models.StatusExecuted {
			realized += rec.MonthlySavings
		}
	}
	return identified, realized, nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

func containsStatus(statuses []models.Status, status models.Status) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}
