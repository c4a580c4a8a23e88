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

type SessionPostgreSQL struct {
	db *gorm.DB
}

func NewSessionPostgreSQL(db *gorm.DB) repositories.SessionRepository {
	return &SessionPostgreSQL{db: db}
}

func (s *SessionPostgreSQL) Create(ctx context.Context, session *models.AssessmentSession) error {
	if err := s.db.WithContext(ctx).Create(session).Error; err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

func (s *SessionPostgreSQL) GetByID(ctx context.Context, id string) (*models.AssessmentSession, error) {
	var session models.AssessmentSession
	if err := s.db.WithContext(ctx).First(&session, "id = ?", id).Error; err != nil {
		return nil, notFoundOr(err, "session")
	}
	return &session, nil
}

func (s *SessionPostgreSQL) GetForUpdate(ctx context.Context, id string) (*models.AssessmentSession, error) {
	var session models.AssessmentSession
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&session, "id = ?", id).Error
	if err != nil {
		return nil, notFoundOr(err, "session")
	}
	return &session, nil
}

func (s *SessionPostgreSQL) LatestOpen(ctx context.Context, userID string, assessmentID uint) (*models.AssessmentSession, error) {
	var session models.AssessmentSession
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND assessment_id = ? AND status = ?", userID, assessmentID, models.SessionInProgress).
		Order("started_at DESC").
		First(&session).Error
	if err != nil {
		return nil, notFoundOr(err, "open session")
	}
	return &session, nil
}

func (s *SessionPostgreSQL) Close(ctx context.Context, id string, resultID *uint, closedAt time.Time) error {
	result := s.db.WithContext(ctx).
		Model(&models.AssessmentSession{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     models.SessionClosed,
			"result_id":  resultID,
			"closed_at":  closedAt,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to close session: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("session %s: %w", id, repositories.ErrNotFound)
	}
	return nil
}
