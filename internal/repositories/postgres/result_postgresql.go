package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/skill-assessment-service/internal/models"
	"github.com/SAP-F-2025/skill-assessment-service/internal/repositories"
)

type ResultPostgreSQL struct {
	db *gorm.DB
}

func NewResultPostgreSQL(db *gorm.DB) repositories.ResultRepository {
	return &ResultPostgreSQL{db: db}
}

// Create inserts a result. A second result for the same session fails with a unique violation.
func (r *ResultPostgreSQL) Create(ctx context.Context, result *models.Result) error {
	if err := r.db.WithContext(ctx).Create(result).Error; err != nil {
		return fmt.Errorf("failed to create result: %w", err)
	}
	return nil
}

func (r *ResultPostgreSQL) GetByID(ctx context.Context, id uint) (*models.Result, error) {
	var result models.Result
	if err := r.db.WithContext(ctx).First(&result, id).Error; err != nil {
		return nil, notFoundOr(err, "result")
	}
	return &result, nil
}

func (r *ResultPostgreSQL) GetBySessionID(ctx context.Context, sessionID string) (*models.Result, error) {
	var result models.Result
	if err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&result).Error; err != nil {
		return nil, notFoundOr(err, "result")
	}
	return &result, nil
}

func (r *ResultPostgreSQL) CountByUserAndAssessment(ctx context.Context, userID string, assessmentID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Result{}).
		Where("user_id = ? AND assessment_id = ?", userID, assessmentID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count results: %w", err)
	}
	return count, nil
}

func (r *ResultPostgreSQL) ListByUserAndAssessment(ctx context.Context, userID string, assessmentID uint) ([]*models.Result, error) {
	var results []*models.Result
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND assessment_id = ?", userID, assessmentID).
		Order("attempt_number ASC").
		Find(&results).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}
	return results, nil
}

func (r *ResultPostgreSQL) ListByAssessment(ctx context.Context, assessmentID uint) ([]*models.Result, error) {
	var results []*models.Result
	err := r.db.WithContext(ctx).
		Where("assessment_id = ?", assessmentID).
		Order("completed_at ASC").
		Find(&results).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}
	return results, nil
}

func (r *ResultPostgreSQL) ListMissingCertificates(ctx context.Context, limit int) ([]*models.Result, error) {
	var results []*models.Result
	query := r.db.WithContext(ctx).
		Where("status = ? AND certificate_url IS NULL", models.ResultPass).
		Order("id ASC")
	if err := applyLimit(query, limit).Find(&results).Error; err != nil {
		return nil, fmt.Errorf("failed to list results missing certificates: %w", err)
	}
	return results, nil
}

func (r *ResultPostgreSQL) SetCertificate(ctx context.Context, id uint, url, serial string, issuedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.Result{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"certificate_url":       url,
			"certificate_serial":    serial,
			"certificate_issued_at": issuedAt,
			"updated_at":            time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to set certificate: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("result %d: %w", id, repositories.ErrNotFound)
	}
	return nil
}
