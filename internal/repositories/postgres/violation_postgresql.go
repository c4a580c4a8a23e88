package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/skill-assessment-service/internal/models"
	"github.com/SAP-F-2025/skill-assessment-service/internal/repositories"
)

type ViolationPostgreSQL struct {
	db *gorm.DB
}

func NewViolationPostgreSQL(db *gorm.DB) repositories.ViolationRepository {
	return &ViolationPostgreSQL{db: db}
}

func (v *ViolationPostgreSQL) Create(ctx context.Context, violation *models.ViolationRecord) error {
	if err := v.db.WithContext(ctx).Create(violation).Error; err != nil {
		return fmt.Errorf("failed to create violation record: %w", err)
	}
	return nil
}

func (v *ViolationPostgreSQL) ListBySession(ctx context.Context, sessionID string) ([]*models.ViolationRecord, error) {
	var records []*models.ViolationRecord
	err := v.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("occurred_at ASC, id ASC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list violations: %w", err)
	}
	return records, nil
}

func (v *ViolationPostgreSQL) ListByAssessment(ctx context.Context, assessmentID uint) ([]*models.ViolationRecord, error) {
	var records []*models.ViolationRecord
	err := v.db.WithContext(ctx).
		Where("assessment_id = ?", assessmentID).
		Order("user_id ASC, occurred_at ASC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list violations: %w", err)
	}
	return records, nil
}
