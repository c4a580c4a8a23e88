package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/SAP-F-2025/skill-assessment-service/internal/models"
	"github.com/SAP-F-2025/skill-assessment-service/internal/repositories"
)

type GrantPostgreSQL struct {
	db *gorm.DB
}

func NewGrantPostgreSQL(db *gorm.DB) repositories.GrantRepository {
	return &GrantPostgreSQL{db: db}
}

func (g *GrantPostgreSQL) Create(ctx context.Context, grant *models.AttemptGrant) error {
	if err := g.db.WithContext(ctx).Create(grant).Error; err != nil {
		return fmt.Errorf("failed to create attempt grant: %w", err)
	}
	return nil
}

func (g *GrantPostgreSQL) Get(ctx context.Context, userID string, assessmentID uint) (*models.AttemptGrant, error) {
	var grant models.AttemptGrant
	err := g.db.WithContext(ctx).
		Where("user_id = ? AND assessment_id = ?", userID, assessmentID).
		First(&grant).Error
	if err != nil {
		return nil, notFoundOr(err, "attempt grant")
	}
	return &grant, nil
}

func (g *GrantPostgreSQL) GetActive(ctx context.Context, userID string, assessmentID uint) (*models.AttemptGrant, error) {
	var grant models.AttemptGrant
	err := g.db.WithContext(ctx).
		Where("user_id = ? AND assessment_id = ? AND has_access = ?", userID, assessmentID, true).
		Order("purchased_at DESC").
		First(&grant).Error
	if err != nil {
		return nil, notFoundOr(err, "attempt grant")
	}
	return &grant, nil
}

// Reserve is a single conditional UPDATE, so concurrent admissions cannot overshoot the cap.
// RETURNING hands back the count this update produced rather than a stale read.
func (g *GrantPostgreSQL) Reserve(ctx context.Context, grantID uint) (int, bool, error) {
	var grant models.AttemptGrant
	result := g.db.WithContext(ctx).
		Model(&grant).
		Clauses(clause.Returning{Columns: []clause.Column{{Name: "attempts_used"}}}).
		Where("id = ? AND has_access = ? AND attempts_used < max_attempts", grantID, true).
		Updates(map[string]interface{}{
			"attempts_used": gorm.Expr("attempts_used + 1"),
			"updated_at":    time.Now(),
		})
	if result.Error != nil {
		return 0, false, fmt.Errorf("failed to reserve attempt: %w", result.Error)
	}
	if result.RowsAffected != 1 {
		return 0, false, nil
	}
	return grant.AttemptsUsed, true, nil
}

func (g *GrantPostgreSQL) Reset(ctx context.Context, grantID uint, maxAttempts int, purchasedAt time.Time) error {
	result := g.db.WithContext(ctx).
		Model(&models.AttemptGrant{}).
		Where("id = ?", grantID).
		Updates(map[string]interface{}{
			"has_access":    true,
			"attempts_used": 0,
			"max_attempts":  maxAttempts,
			"purchased_at":  purchasedAt,
			"updated_at":    time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to reset attempt grant: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("attempt grant %d: %w", grantID, repositories.ErrNotFound)
	}
	return nil
}

// ClaimOrder inserts the order row; ON CONFLICT DO NOTHING keeps the transaction usable when
// the order was applied before. A concurrent claim of the same order waits for the first.
func (g *GrantPostgreSQL) ClaimOrder(ctx context.Context, order *models.GrantOrder) (bool, error) {
	result := g.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "order_id"}}, DoNothing: true}).
		Create(order)
	if result.Error != nil {
		return false, fmt.Errorf("failed to record grant order: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}
