package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/SAP-F-2025/skill-assessment-service/internal/events"
	"github.com/SAP-F-2025/skill-assessment-service/internal/models"
	"github.com/SAP-F-2025/skill-assessment-service/internal/proctor"
	"github.com/SAP-F-2025/skill-assessment-service/internal/repositories"
	"github.com/SAP-F-2025/skill-assessment-service/internal/validator"
)

type violationService struct {
	repo      repositories.Repository
	publisher events.EventPublisher
	logger    *slog.Logger
	validator *validator.Validator
	now       func() time.Time
}

func NewViolationService(repo repositories.Repository, publisher events.EventPublisher, logger *slog.Logger, validator *validator.Validator) ViolationService {
	return &violationService{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
		validator: validator,
		now:       time.Now,
	}
}

// Record appends one violation to the log. The log is append-only; the count is the
// client's running total and is stored as reported.
func (s *violationService) Record(ctx context.Context, assessmentID uint, userID string, req *ViolationReportRequest) error {
	if err := s.validator.Validate(req); err != nil {
		return err
	}

	var sessionID *string
	if req.SessionID != "" {
		session, err := s.repo.Session().GetByID(ctx, req.SessionID)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return ErrSessionNotFound
			}
			return fmt.Errorf("failed to get session: %w", err)
		}
		if session.UserID != userID || session.AssessmentID != assessmentID {
			return ErrSessionNotFound
		}
		sessionID = &session.ID
	}

	occurredAt := req.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = s.now()
	}
	code := proctor.ViolationCode(req.Code)
	message := req.Message
	if message == "" {
		message = code.Message()
	}

	record := &models.ViolationRecord{
		SessionID:    sessionID,
		UserID:       userID,
		AssessmentID: assessmentID,
		Code:         string(code),
		Message:      message,
		OccurredAt:   occurredAt.UTC(),
		Count:        req.Count,
	}
	if err := s.repo.Violation().Create(ctx, record); err != nil {
		return fmt.Errorf("failed to record violation: %w", err)
	}

	s.logger.Info("Violation recorded",
		"assessment_id", assessmentID,
		"user_id", userID,
		"code", code,
		"count", req.Count)

	if s.publisher != nil {
		event := events.NewEvent(events.EventViolationLogged, events.ViolationLoggedData{
			SessionID:    derefString(sessionID),
			UserID:       userID,
			AssessmentID: assessmentID,
			Code:         string(code),
			Count:        req.Count,
			OccurredAt:   record.OccurredAt,
		})
		if err := s.publisher.Publish(ctx, events.TopicViolations, event); err != nil {
			s.logger.Warn("Failed to publish event", "topic", events.TopicViolations, "error", err)
		}
	}
	return nil
}

func (s *violationService) ListBySession(ctx context.Context, sessionID, userID string) ([]*models.ViolationRecord, error) {
	session, err := s.repo.Session().GetByID(ctx, sessionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if session.UserID != userID {
		return nil, NewPermissionError(userID, "session", "read", "session belongs to another user")
	}
	return s.repo.Violation().ListBySession(ctx, sessionID)
}

func derefString(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
