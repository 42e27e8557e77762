package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/HanTheDev/tutor-gateway/internal/models"
)

var ErrNoSubscription = errors.New("no active subscription")

// PlanStore resolves the billing plan attached to a student's household.
type PlanStore struct {
	db *DB
}

func NewPlanStore(db *DB) *PlanStore {
	return &PlanStore{db: db}
}

// PlanFor returns the newest active subscription's plan. A NULL daily limit
// means unlimited.
func (s *PlanStore) PlanFor(ctx context.Context, userID string) (*models.PlanLimits, error) {
	query := `
        SELECT p.slug, p.ai_access, p.tutor_daily_limit
        FROM student_profiles sp
        JOIN subscriptions s ON s.parent_id = sp.parent_id
        JOIN plans p ON p.id = s.plan_id
        WHERE sp.id = $1 AND s.status IN ('active', 'trialing')
        ORDER BY s.created_at DESC
        LIMIT 1
    `

	var (
		plan  models.PlanLimits
		limit *int
	)
	err := s.db.Pool.QueryRow(ctx, query, userID).Scan(&plan.Plan, &plan.AIAccess, &limit)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoSubscription
	}
	if err != nil {
		return nil, err
	}

	if limit == nil {
		plan.TutorDailyLimit = models.UnlimitedLimit()
	} else {
		plan.TutorDailyLimit = models.Limited(*limit)
	}
	return &plan, nil
}
