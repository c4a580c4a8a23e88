package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/SAP-F-2025/skill-assessment-service/internal/cache"
	"github.com/SAP-F-2025/skill-assessment-service/internal/events"
	"github.com/SAP-F-2025/skill-assessment-service/internal/models"
	"github.com/SAP-F-2025/skill-assessment-service/internal/repositories"
	"github.com/SAP-F-2025/skill-assessment-service/internal/sampler"
)

// PaymentChecker answers "has this user paid for this assessment"
type PaymentChecker interface {
	HasPaid(ctx context.Context, userID string, assessmentID uint) (bool, error)
}

type admissionService struct {
	repo      repositories.Repository
	payments  PaymentChecker
	sampler   *sampler.Sampler
	limiter   *cache.RateLimiter
	publisher events.EventPublisher
	logger    *slog.Logger
	config    ServiceManagerConfig
	now       func() time.Time
}

func NewAdmissionService(
	repo repositories.Repository,
	payments PaymentChecker,
	sampler *sampler.Sampler,
	limiter *cache.RateLimiter,
	publisher events.EventPublisher,
	logger *slog.Logger,
	config ServiceManagerConfig,
) AdmissionService {
	return &admissionService{
		repo:      repo,
		payments:  payments,
		sampler:   sampler,
		limiter:   limiter,
		publisher: publisher,
		logger:    logger,
		config:    config,
		now:       time.Now,
	}
}

// ===== ADMISSION GATE =====

func (s *admissionService) Admit(ctx context.Context, assessmentID uint, userID string) (*AdmissionResponse, error) {
	s.logger.Info("Admitting user", "assessment_id", assessmentID, "user_id", userID)

	if err := s.checkRate(ctx, userID); err != nil {
		return nil, err
	}

	assessment, err := s.getAssessment(ctx, assessmentID)
	if err != nil {
		return nil, err
	}

	var grant *models.AttemptGrant
	if assessment.IsPremium {
		grant, err = s.checkQuota(ctx, assessment, userID)
		if err != nil {
			return nil, err
		}
	}

	pool, err := s.repo.Question().ListByAssessment(ctx, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load question pool: %w", err)
	}
	questions := s.sampler.Sample(pool, assessment.NumQuestions)
	if len(questions) == 0 {
		return nil, ErrNoQuestionsAvailable
	}

	startedAt := s.now().UTC()
	limit := assessment.TimeLimitSeconds()
	session := &models.AssessmentSession{
		ID:               uuid.New().String(),
		UserID:           userID,
		AssessmentID:     assessmentID,
		QuestionIDs:      questionIDs(questions),
		TimeLimitSeconds: limit,
		Status:           models.SessionInProgress,
		StartedAt:        startedAt,
		DeadlineAt:       startedAt.Add(time.Duration(limit) * time.Second),
	}

	// The reservation and the session row commit together, so a failed insert keeps the attempt
	attemptsUsed := 0
	err = s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		if grant != nil {
			used, reserved, err := tx.Grant().Reserve(ctx, grant.ID)
			if err != nil {
				return err
			}
			if !reserved {
				return &QuotaExhaustedError{Remaining: 0}
			}
			attemptsUsed = used
		}
		return tx.Session().Create(ctx, session)
	})
	if err != nil {
		return nil, err
	}

	var remaining *int
	if grant != nil {
		r := grant.MaxAttempts - attemptsUsed
		if r < 0 {
			r = 0
		}
		remaining = &r
	}

	s.logger.Info("User admitted",
		"assessment_id", assessmentID,
		"user_id", userID,
		"session_id", session.ID,
		"questions", len(questions),
		"premium", assessment.IsPremium)

	s.publish(ctx, events.TopicSessionAdmitted, events.NewEvent(events.EventSessionAdmitted, events.SessionAdmittedData{
		SessionID:         session.ID,
		UserID:            userID,
		AssessmentID:      assessmentID,
		QuestionCount:     len(questions),
		AttemptsUsed:      attemptsUsed,
		RemainingAttempts: derefOr(remaining, -1),
		StartedAt:         startedAt,
	}))

	views := make([]models.QuestionView, len(questions))
	for i := range questions {
		views[i] = questions[i].View()
	}

	return &AdmissionResponse{
		SessionID:         session.ID,
		Assessment:        snapshotOf(assessment),
		Questions:         views,
		TimeLimitSeconds:  limit,
		StartedAt:         startedAt,
		DeadlineAt:        session.DeadlineAt,
		RemainingAttempts: remaining,
		Proctoring:        s.proctoringFor(assessment),
	}, nil
}

func (s *admissionService) Quota(ctx context.Context, assessmentID uint, userID string) (*QuotaResponse, error) {
	assessment, err := s.getAssessment(ctx, assessmentID)
	if err != nil {
		return nil, err
	}

	resp := &QuotaResponse{AssessmentID: assessmentID, IsPremium: assessment.IsPremium}
	if !assessment.IsPremium {
		resp.HasAccess = true
		resp.Unlimited = true
		return resp, nil
	}

	grant, err := s.repo.Grant().GetActive(ctx, userID, assessmentID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return resp, nil
		}
		return nil, fmt.Errorf("failed to get attempt grant: %w", err)
	}

	resp.HasAccess = grant.HasAccess
	resp.AttemptsUsed = grant.AttemptsUsed
	resp.MaxAttempts = grant.MaxAttempts
	resp.Remaining = grant.Remaining()
	return resp, nil
}

// ===== HELPERS =====

func (s *admissionService) checkRate(ctx context.Context, userID string) error {
	if s.limiter == nil {
		return nil
	}
	decision, err := s.limiter.Allow(ctx, "admit:"+userID)
	if err != nil {
		s.logger.Warn("Admission rate limiter unavailable", "user_id", userID, "error", err)
		return nil
	}
	if !decision.Allowed {
		return &RateLimitError{RetryAfter: decision.RetryAfter}
	}
	return nil
}

func (s *admissionService) getAssessment(ctx context.Context, assessmentID uint) (*models.Assessment, error) {
	assessment, err := s.repo.Assessment().GetByID(ctx, assessmentID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAssessmentNotFound
		}
		return nil, fmt.Errorf("failed to get assessment: %w", err)
	}
	if assessment.Status != models.StatusActive {
		return nil, ErrAssessmentNotFound
	}
	return assessment, nil
}

// checkQuota runs the read-only part of the gate. The authoritative check is Reserve.
func (s *admissionService) checkQuota(ctx context.Context, assessment *models.Assessment, userID string) (*models.AttemptGrant, error) {
	paid, err := s.payments.HasPaid(ctx, userID, assessment.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check payment: %w", err)
	}
	if !paid {
		return nil, ErrPaymentRequired
	}

	grant, err := s.repo.Grant().GetActive(ctx, userID, assessment.ID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrPurchaseRequired
		}
		return nil, fmt.Errorf("failed to get attempt grant: %w", err)
	}
	if grant.Exhausted() {
		return nil, &QuotaExhaustedError{Remaining: 0}
	}
	return grant, nil
}

func (s *admissionService) proctoringFor(a *models.Assessment) ProctoringView {
	view := ProctoringView{
		MaxViolations:    s.config.MaxViolations,
		MinViewportWidth: s.config.MinViewportWidth,
	}
	if a.Settings.MaxViolations > 0 {
		view.MaxViolations = a.Settings.MaxViolations
	}
	if a.Settings.MinViewportWidth > 0 {
		view.MinViewportWidth = a.Settings.MinViewportWidth
	}
	return view
}

func (s *admissionService) publish(ctx context.Context, topic string, event *events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, topic, event); err != nil {
		s.logger.Warn("Failed to publish event", "topic", topic, "event_type", event.Type, "error", err)
	}
}

func snapshotOf(a *models.Assessment) AssessmentSnapshot {
	return AssessmentSnapshot{
		ID:           a.ID,
		Title:        a.Title,
		Description:  a.Description,
		IsPremium:    a.IsPremium,
		NumQuestions: a.NumQuestions,
		TimeLimit:    a.TimeLimit,
	}
}

func questionIDs(qs []models.Question) []uint {
	ids := make([]uint, len(qs))
	for i, q := range qs {
		ids[i] = q.ID
	}
	return ids
}

func derefOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}
