package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/SAP-F-2025/skill-assessment-service/internal/events"
	"github.com/SAP-F-2025/skill-assessment-service/internal/models"
	"github.com/SAP-F-2025/skill-assessment-service/internal/repositories"
	"github.com/SAP-F-2025/skill-assessment-service/internal/scoring"
	"github.com/SAP-F-2025/skill-assessment-service/internal/validator"
)

type submissionService struct {
	repo         repositories.Repository
	certificates CertificateService
	publisher    events.EventPublisher
	logger       *slog.Logger
	validator    *validator.Validator
	config       ServiceManagerConfig
	now          func() time.Time
}

func NewSubmissionService(
	repo repositories.Repository,
	certificates CertificateService,
	publisher events.EventPublisher,
	logger *slog.Logger,
	validator *validator.Validator,
	config ServiceManagerConfig,
) SubmissionService {
	return &submissionService{
		repo:         repo,
		certificates: certificates,
		publisher:    publisher,
		logger:       logger,
		validator:    validator,
		config:       config,
		now:          time.Now,
	}
}

// ===== SUBMISSION =====

func (s *submissionService) Submit(ctx context.Context, assessmentID uint, userID string, req *SubmitRequest) (*SubmissionResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	sessionID, err := s.resolveSessionID(ctx, assessmentID, userID, req.SessionID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Submitting session",
		"assessment_id", assessmentID,
		"user_id", userID,
		"session_id", sessionID,
		"answers", len(req.Answers))

	var (
		result    *models.Result
		duplicate bool
	)
	err = s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		session, err := tx.Session().GetForUpdate(ctx, sessionID)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return ErrSessionNotFound
			}
			return fmt.Errorf("failed to lock session: %w", err)
		}
		if session.UserID != userID || session.AssessmentID != assessmentID {
			return ErrSessionNotFound
		}

		if session.IsClosed() {
			existing, err := tx.Result().GetBySessionID(ctx, sessionID)
			if err != nil {
				if repositories.IsNotFoundError(err) {
					return ErrSessionClosed
				}
				return fmt.Errorf("failed to get result: %w", err)
			}
			result, duplicate = existing, true
			return nil
		}

		result, err = s.grade(ctx, tx, session, req)
		if err != nil {
			return err
		}
		if err := tx.Result().Create(ctx, result); err != nil {
			return err
		}
		return tx.Session().Close(ctx, sessionID, &result.ID, result.CompletedAt)
	})
	if err != nil && repositories.IsUniqueViolation(err) {
		// another submission committed first
		existing, getErr := s.repo.Result().GetBySessionID(ctx, sessionID)
		if getErr != nil {
			return nil, fmt.Errorf("failed to get result: %w", getErr)
		}
		result, duplicate, err = existing, true, nil
	}
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) || errors.Is(err, ErrSessionClosed) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to submit session: %w", err)
	}

	if duplicate {
		s.logger.Info("Session already submitted, returning stored result", "session_id", sessionID, "result_id", result.ID)
		resp := toSubmissionResponse(result)
		resp.AlreadySubmitted = true
		return resp, nil
	}

	if result.SubmittedLate {
		s.logger.Warn("Late submission accepted",
			"session_id", sessionID,
			"user_id", userID,
			"completed_at", result.CompletedAt)
	}

	if result.Passed() {
		s.issueCertificate(ctx, result)
	}

	s.logger.Info("Session submitted",
		"session_id", sessionID,
		"result_id", result.ID,
		"score", result.Score,
		"total", result.TotalQuestions,
		"status", result.Status,
		"reason", result.SubmitReason)

	s.publish(ctx, events.TopicResultSubmitted, events.NewEvent(events.EventResultSubmitted, events.ResultSubmittedData{
		ResultID:      result.ID,
		SessionID:     sessionID,
		UserID:        userID,
		AssessmentID:  assessmentID,
		Score:         result.Score,
		Total:         result.TotalQuestions,
		Percentage:    result.Percentage,
		Status:        string(result.Status),
		AttemptNumber: result.AttemptNumber,
		Reason:        result.SubmitReason,
		Late:          result.SubmittedLate,
	}))

	return toSubmissionResponse(result), nil
}

func (s *submissionService) grade(ctx context.Context, tx repositories.Repository, session *models.AssessmentSession, req *SubmitRequest) (*models.Result, error) {
	questions, err := tx.Question().GetByIDs(ctx, session.QuestionIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load session questions: %w", err)
	}

	answers := make([]scoring.Answer, len(req.Answers))
	for i, a := range req.Answers {
		answers[i] = scoring.Answer{QuestionID: a.QuestionID, Selected: a.SelectedIndex}
	}
	outcome := scoring.Grade(questions, answers)

	prior, err := tx.Result().CountByUserAndAssessment(ctx, session.UserID, session.AssessmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to count prior results: %w", err)
	}

	completedAt := s.now().UTC().Truncate(time.Second)
	timeTaken := req.ElapsedSeconds
	if timeTaken <= 0 {
		timeTaken = int(completedAt.Sub(session.StartedAt).Seconds())
	}
	if timeTaken > session.TimeLimitSeconds {
		timeTaken = session.TimeLimitSeconds
	}

	reason := req.Reason
	if reason == "" {
		reason = "manual"
	}

	sessionID := session.ID
	result := &models.Result{
		SessionID:      &sessionID,
		UserID:         session.UserID,
		AssessmentID:   session.AssessmentID,
		Score:          outcome.Score,
		TotalQuestions: outcome.TotalQuestions,
		TimeTaken:      timeTaken,
		Status:         outcome.Status,
		Percentage:     outcome.Percentage,
		AttemptNumber:  int(prior) + 1,
		Feedback:       outcome.Feedback,
		SubmittedLate:  completedAt.After(session.DeadlineAt.Add(s.config.LateGrace)),
		SubmitReason:   reason,
		Breakdown:      outcome.Breakdown,
		CompletedAt:    completedAt,
	}
	if result.Passed() {
		// the certificate identity is fixed here and reused by every later issuance
		result.CertificateIssuedAt = &completedAt
	}
	return result, nil
}

// issueCertificate never fails the submission; a failure leaves the certificate pending
func (s *submissionService) issueCertificate(ctx context.Context, result *models.Result) {
	if s.certificates == nil {
		return
	}
	cert, err := s.certificates.IssueForResult(ctx, result, "")
	if err != nil {
		s.logger.Error("Certificate issuance failed, leaving it pending",
			"result_id", result.ID,
			"user_id", result.UserID,
			"error", err)
		return
	}
	result.CertificateURL = &cert.URL
	result.CertificateSerial = &cert.Serial
}

func (s *submissionService) resolveSessionID(ctx context.Context, assessmentID uint, userID, sessionID string) (string, error) {
	if sessionID != "" {
		return sessionID, nil
	}
	session, err := s.repo.Session().LatestOpen(ctx, userID, assessmentID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return "", ErrSessionNotFound
		}
		return "", fmt.Errorf("failed to find open session: %w", err)
	}
	return session.ID, nil
}

// ===== RESULT QUERIES =====

func (s *submissionService) GetResult(ctx context.Context, resultID uint, userID string) (*SubmissionResponse, error) {
	result, err := s.repo.Result().GetByID(ctx, resultID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrResultNotFound
		}
		return nil, fmt.Errorf("failed to get result: %w", err)
	}
	if result.UserID != userID {
		return nil, NewPermissionError(userID, "result", "read", "result belongs to another user")
	}
	return toSubmissionResponse(result), nil
}

func (s *submissionService) ListMyResults(ctx context.Context, assessmentID uint, userID string) ([]*SubmissionResponse, error) {
	results, err := s.repo.Result().ListByUserAndAssessment(ctx, userID, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}
	out := make([]*SubmissionResponse, 0, len(results))
	for _, r := range results {
		out = append(out, toSubmissionResponse(r))
	}
	return out, nil
}

func (s *submissionService) publish(ctx context.Context, topic string, event *events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, topic, event); err != nil {
		s.logger.Warn("Failed to publish event", "topic", topic, "event_type", event.Type, "error", err)
	}
}

func toSubmissionResponse(r *models.Result) *SubmissionResponse {
	resp := &SubmissionResponse{
		ResultID:       r.ID,
		Score:          r.Score,
		TotalQuestions: r.TotalQuestions,
		Percentage:     r.Percentage,
		Status:         r.Status,
		AttemptNumber:  r.AttemptNumber,
		Feedback:       r.Feedback,
		TimeTaken:      r.TimeTaken,
		CertificateURL: r.CertificateURL,
		SubmittedLate:  r.SubmittedLate,
		Breakdown:      r.Breakdown,
	}
	if r.SessionID != nil {
		resp.SessionID = *r.SessionID
	}
	if resp.Breakdown == nil {
		resp.Breakdown = []models.AnswerBreakdown{}
	}
	resp.CertificatePending = r.Passed() && r.CertificateURL == nil
	return resp
}
