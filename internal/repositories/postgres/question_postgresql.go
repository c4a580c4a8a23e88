package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/skill-assessment-service/internal/cache"
	"github.com/SAP-F-2025/skill-assessment-service/internal/models"
	"github.com/SAP-F-2025/skill-assessment-service/internal/repositories"
)

type QuestionPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewQuestionPostgreSQL(db *gorm.DB, cacheManager *cache.CacheManager) repositories.QuestionRepository {
	return &QuestionPostgreSQL{
		db:           db,
		cacheManager: cacheManager,
	}
}

func (q *QuestionPostgreSQL) CreateBatch(ctx context.Context, questions []models.Question) error {
	if len(questions) == 0 {
		return nil
	}
	if err := q.db.WithContext(ctx).CreateInBatches(questions, 100).Error; err != nil {
		return fmt.Errorf("failed to create questions: %w", err)
	}

	seen := make(map[uint]bool)
	for _, question := range questions {
		if !seen[question.AssessmentID] {
			seen[question.AssessmentID] = true
			cache.SafeDelete(ctx, q.cacheManager.Pool, cache.PoolKey(question.AssessmentID))
		}
	}
	return nil
}

// ListByAssessment loads the whole pool; sampling happens in memory
func (q *QuestionPostgreSQL) ListByAssessment(ctx context.Context, assessmentID uint) ([]models.Question, error) {
	var pool []models.Question

	err := q.cacheManager.Pool.CacheOrExecute(ctx, cache.PoolKey(assessmentID), &pool, cache.QuestionPoolCacheConfig.TTL, func() (interface{}, error) {
		var dbPool []models.Question
		err := q.db.WithContext(ctx).
			Where("assessment_id = ?", assessmentID).
			Order("id ASC").
			Find(&dbPool).Error
		if err != nil {
			return nil, fmt.Errorf("failed to list questions: %w", err)
		}
		return dbPool, nil
	})
	if err != nil {
		return nil, err
	}
	return pool, nil
}

func (q *QuestionPostgreSQL) GetByIDs(ctx context.Context, ids []uint) ([]models.Question, error) {
	if len(ids) == 0 {
		return []models.Question{}, nil
	}

	var found []models.Question
	if err := q.db.WithContext(ctx).Where("id IN ?", ids).Find(&found).Error; err != nil {
		return nil, fmt.Errorf("failed to get questions: %w", err)
	}

	byID := make(map[uint]models.Question, len(found))
	for _, question := range found {
		byID[question.ID] = question
	}
	ordered := make([]models.Question, 0, len(ids))
	for _, id := range ids {
		if question, ok := byID[id]; ok {
			ordered = append(ordered, question)
		}
	}
	return ordered, nil
}
