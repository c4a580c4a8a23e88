package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/skill-assessment-service/internal/cache"
	"github.com/SAP-F-2025/skill-assessment-service/internal/models"
	"github.com/SAP-F-2025/skill-assessment-service/internal/repositories"
)

type AssessmentPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewAssessmentPostgreSQL(db *gorm.DB, cacheManager *cache.CacheManager) repositories.AssessmentRepository {
	return &AssessmentPostgreSQL{
		db:           db,
		cacheManager: cacheManager,
	}
}

// Create stores an assessment together with its proctoring settings
func (a *AssessmentPostgreSQL) Create(ctx context.Context, assessment *models.Assessment) error {
	if err := a.db.WithContext(ctx).Create(assessment).Error; err != nil {
		return fmt.Errorf("failed to create assessment: %w", err)
	}
	cache.InvalidateAssessmentCache(ctx, a.cacheManager, assessment.ID)
	return nil
}

// GetByID retrieves an assessment by ID with caching
func (a *AssessmentPostgreSQL) GetByID(ctx context.Context, id uint) (*models.Assessment, error) {
	var assessment models.Assessment

	err := a.cacheManager.Assessment.CacheOrExecute(ctx, cache.AssessmentKey(id), &assessment, cache.AssessmentCacheConfig.TTL, func() (interface{}, error) {
		var dbAssessment models.Assessment
		err := a.db.WithContext(ctx).
			Preload("Settings").
			First(&dbAssessment, id).Error
		if err != nil {
			return nil, notFoundOr(err, "assessment")
		}
		return &dbAssessment, nil
	})
	if err != nil {
		return nil, err
	}
	return &assessment, nil
}
