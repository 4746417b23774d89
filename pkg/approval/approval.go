// Package approval is the human decision surface over recommendations
// that wait for sign-off. Approving hands the recommendation to the
// execution engine through the same conditional claim the autonomous
// path uses, so a human and the scheduler can never double-execute.
package approval

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/opscart/cloud-cost-optimizer/pkg/auth"
	"github.com/opscart/cloud-cost-optimizer/pkg/models"
	"github.com/opscart/cloud-cost-optimizer/pkg/storage"
)

var (
	// ErrUnauthorized is returned when the acting user's role does not
	// meet the minimum approval tier. Nothing is read or written.
	ErrUnauthorized = errors.New("not authorized to act on recommendations")

	// ErrNotApprovable is returned when the recommendation is not a
	// pending human-in-the-loop decision.
	ErrNotApprovable = errors.New("recommendation is not awaiting approval")

	// ErrConflict is returned when a concurrent actor changed the
	// recommendation between the read and the conditional update.
	ErrConflict = errors.New("recommendation changed concurrently")
)

// Dispatcher hands an approved recommendation to the execution engine.
type Dispatcher interface {
	ExecuteAsync(rec *models.Recommendation, from models.Status)
}

type Service struct {
	store      storage.Store
	dispatcher Dispatcher
	minRole    auth.Role
	logger     *zap.Logger
}

func New(store storage.Store, dispatcher Dispatcher, minRole auth.Role, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:      store,
		dispatcher: dispatcher,
		minRole:    minRole,
		logger:     logger,
	}
}

// Approve marks a pending hitl recommendation approved on behalf of
// user and dispatches it for execution. Returns the recommendation in
// its approved state.
func (s *Service) Approve(ctx context.Context, id string, user *auth.User) (*models.Recommendation, error) {
	rec, err := s.load(ctx, id, user)
	if err != nil {
		return nil, err
	}

	approved, err := s.store.UpdateStatus(ctx, id, models.StatusPending, models.StatusApproved,
		storage.UpdateFields{ActedBy: &user.ID})
	if err != nil {
		return nil, conflictOr(err)
	}

	s.logger.Info("Recommendation approved",
		zap.String("recommendation_id", id),
		zap.String("resource_id", rec.ResourceID),
		zap.String("acted_by", user.ID))

	s.dispatcher.ExecuteAsync(approved, models.StatusApproved)
	return approved, nil
}

// Reject marks a pending hitl recommendation rejected on behalf of
// user. Rejection is terminal; nothing is executed.
func (s *Service) Reject(ctx context.Context, id string, user *auth.User) (*models.Recommendation, error) {
	rec, err := s.load(ctx, id, user)
	if err != nil {
		return nil, err
	}

	rejected, err := s.store.UpdateStatus(ctx, id, models.StatusPending, models.StatusRejected,
		storage.UpdateFields{ActedBy: &user.ID})
	if err != nil {
		return nil, conflictOr(err)
	}

	s.logger.Info("Recommendation rejected",
		zap.String("recommendation_id", id),
		zap.String("resource_id", rec.ResourceID),
		zap.String("acted_by", user.ID))

	return rejected, nil
}

// load runs the role gate, fetches the recommendation, and checks it
// is actually awaiting a human decision.
func (s *Service) load(ctx context.Context, id string, user *auth.User) (*models.Recommendation, error) {
	if err := auth.CheckRole(user, s.minRole); err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrUnauthorized)
	}

	rec, err := s.store.GetRecommendation(ctx, id)
	if err != nil {
		return nil, err
	}

	if rec.Status != models.StatusPending || rec.Mode != models.ModeHITL {
		return nil, fmt.Errorf("%s is %s/%s: %w", id, rec.Status, rec.Mode, ErrNotApprovable)
	}
	return rec, nil
}

func conflictOr(err error) error {
	if errors.Is(err, storage.ErrStatusConflict) {
		return fmt.Errorf("%v: %w", err, ErrConflict)
	}
	return err
}
