package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/skill-assessment-service/internal/models"
	"github.com/SAP-F-2025/skill-assessment-service/internal/repositories"
)

type PaymentOrderPostgreSQL struct {
	db *gorm.DB
}

func NewPaymentOrderPostgreSQL(db *gorm.DB) repositories.PaymentOrderRepository {
	return &PaymentOrderPostgreSQL{db: db}
}

func (p *PaymentOrderPostgreSQL) ListByUserAndAssessment(ctx context.Context, userID string, assessmentID uint) ([]*models.PaymentOrder, error) {
	var orders []*models.PaymentOrder
	err := p.db.WithContext(ctx).
		Where("user_id = ? AND assessment_id = ?", userID, assessmentID).
		Order("created_at DESC").
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list payment orders: %w", err)
	}
	return orders, nil
}

func (p *PaymentOrderPostgreSQL) GetByOrderID(ctx context.Context, orderID string) (*models.PaymentOrder, error) {
	var order models.PaymentOrder
	if err := p.db.WithContext(ctx).Where("order_id = ?", orderID).First(&order).Error; err != nil {
		return nil, notFoundOr(err, "payment order")
	}
	return &order, nil
}

// UpdateStatus only moves orders out of pending; settled orders are left alone
func (p *PaymentOrderPostgreSQL) UpdateStatus(ctx context.Context, orderID string, status models.PaymentStatus, paidAt *time.Time) error {
	updates := map[string]interface{}{
		"status":     status,
		"updated_at": time.Now(),
	}
	if paidAt != nil {
		updates["paid_at"] = *paidAt
	}
	err := p.db.WithContext(ctx).
		Model(&models.PaymentOrder{}).
		Where("order_id = ? AND status = ?", orderID, models.PaymentPending).
		Updates(updates).Error
	if err != nil {
		return fmt.Errorf("failed to update payment order: %w", err)
	}
	return nil
}
