package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"

	"github.com/robfig/cron/v3"

	"github.com/SAP-F-2025/skill-assessment-service/internal/certificate"
	"github.com/SAP-F-2025/skill-assessment-service/internal/events"
	"github.com/SAP-F-2025/skill-assessment-service/internal/models"
	"github.com/SAP-F-2025/skill-assessment-service/internal/repositories"
)

type certificateService struct {
	repo      repositories.Repository
	issuer    *certificate.Issuer
	publisher events.EventPublisher
	logger    *slog.Logger
}

func NewCertificateService(repo repositories.Repository, issuer *certificate.Issuer, publisher events.EventPublisher, logger *slog.Logger) CertificateService {
	return &certificateService{
		repo:      repo,
		issuer:    issuer,
		publisher: publisher,
		logger:    logger,
	}
}

// ===== ISSUANCE =====

func (s *certificateService) IssueForResult(ctx context.Context, result *models.Result, existingURL string) (*CertificateResponse, error) {
	if !result.Passed() {
		return nil, ErrCertificateNotEligible
	}
	if existingURL == "" && result.CertificateURL != nil {
		existingURL = *result.CertificateURL
	}

	req := s.buildRequest(ctx, result, existingURL)
	issued, err := s.issuer.Issue(ctx, req)
	if err != nil {
		return nil, err
	}

	if err := s.persist(ctx, result, issued); err != nil {
		return nil, err
	}

	if issued.Rendered {
		s.publish(ctx, result, issued)
	}

	return &CertificateResponse{
		ResultID: result.ID,
		URL:      issued.URL,
		Serial:   issued.Serial,
		IssuedAt: issued.Identity.IssuedAt,
		Rendered: issued.Rendered,
	}, nil
}

// Regenerate is the idempotent repair path used after a missing artifact or a failed render
func (s *certificateService) Regenerate(ctx context.Context, resultID uint, userID, existingURL string) (*CertificateResponse, error) {
	result, err := s.ownedResult(ctx, resultID, userID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Regenerating certificate", "result_id", resultID, "user_id", userID)
	if !result.Passed() {
		return nil, ErrCertificateNotEligible
	}
	if existingURL == "" && result.CertificateURL != nil {
		existingURL = *result.CertificateURL
	}

	// Issue treats a corrupt artifact as present, so replace it in place
	req := s.buildRequest(ctx, result, existingURL)
	if _, _, err := s.issuer.Fetch(ctx, certificate.ResolveIdentity(req)); errors.Is(err, certificate.ErrCorrupt) {
		issued, err := s.issuer.Replace(ctx, req)
		if err != nil {
			return nil, err
		}
		if err := s.persist(ctx, result, issued); err != nil {
			return nil, err
		}
		return &CertificateResponse{
			ResultID: result.ID,
			URL:      issued.URL,
			Serial:   issued.Serial,
			IssuedAt: issued.Identity.IssuedAt,
			Rendered: true,
		}, nil
	}

	return s.IssueForResult(ctx, result, existingURL)
}

// ===== RETRIEVAL =====

func (s *certificateService) Get(ctx context.Context, resultID uint, userID string) (*CertificateFile, error) {
	result, err := s.ownedResult(ctx, resultID, userID)
	if err != nil {
		return nil, err
	}
	if !result.Passed() {
		return nil, ErrCertificateNotEligible
	}
	if result.CertificateURL == nil {
		return nil, ErrCertificatePending
	}

	id := certificate.ResolveIdentity(certificate.Request{
		UserID:       result.UserID,
		AssessmentID: result.AssessmentID,
		CompletedAt:  result.CompletedAt,
		IssuedAt:     result.CertificateIssuedAt,
		ExistingURL:  *result.CertificateURL,
	})

	body, contentType, err := s.issuer.Fetch(ctx, id)
	if err != nil {
		if errors.Is(err, certificate.ErrNotFound) || errors.Is(err, certificate.ErrCorrupt) {
			s.logger.Warn("Certificate artifact unavailable", "result_id", resultID, "key", id.Key(), "error", err)
			return nil, fmt.Errorf("%w: %v", ErrCertificateMissing, err)
		}
		return nil, fmt.Errorf("failed to fetch certificate: %w", err)
	}

	return &CertificateFile{
		Body:        body,
		ContentType: contentType,
		FileName:    path.Base(id.Key()),
	}, nil
}

// ===== REPAIR =====

// RepairMissing issues certificates for passing results whose issuance failed earlier
func (s *certificateService) RepairMissing(ctx context.Context, limit int) (int, error) {
	results, err := s.repo.Result().ListMissingCertificates(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to list results missing certificates: %w", err)
	}

	repaired := 0
	for _, result := range results {
		if ctx.Err() != nil {
			return repaired, ctx.Err()
		}
		if _, err := s.IssueForResult(ctx, result, ""); err != nil {
			s.logger.Error("Certificate repair failed", "result_id", result.ID, "error", err)
			continue
		}
		repaired++
	}

	if len(results) > 0 {
		s.logger.Info("Certificate repair sweep finished", "candidates", len(results), "repaired", repaired)
	}
	return repaired, nil
}

// CertificateRepairJob runs RepairMissing on a cron schedule
type CertificateRepairJob struct {
	cron    *cron.Cron
	service CertificateService
	batch   int
	logger  *slog.Logger
}

func NewCertificateRepairJob(service CertificateService, schedule string, batch int, logger *slog.Logger) (*CertificateRepairJob, error) {
	job := &CertificateRepairJob{
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger))),
		service: service,
		batch:   batch,
		logger:  logger,
	}
	if _, err := job.cron.AddFunc(schedule, job.run); err != nil {
		return nil, fmt.Errorf("invalid certificate repair schedule %q: %w", schedule, err)
	}
	return job, nil
}

func (j *CertificateRepairJob) run() {
	if _, err := j.service.RepairMissing(context.Background(), j.batch); err != nil {
		j.logger.Error("Certificate repair sweep failed", "error", err)
	}
}

func (j *CertificateRepairJob) Start() {
	j.cron.Start()
	j.logger.Info("Certificate repair job started")
}

// Stop waits for a running sweep to finish or ctx to expire
func (j *CertificateRepairJob) Stop(ctx context.Context) {
	select {
	case <-j.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// ===== HELPERS =====

func (s *certificateService) ownedResult(ctx context.Context, resultID uint, userID string) (*models.Result, error) {
	result, err := s.repo.Result().GetByID(ctx, resultID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrResultNotFound
		}
		return nil, fmt.Errorf("failed to get result: %w", err)
	}
	if result.UserID != userID {
		return nil, NewPermissionError(userID, "certificate", "read", "result belongs to another user")
	}
	return result, nil
}

func (s *certificateService) buildRequest(ctx context.Context, result *models.Result, existingURL string) certificate.Request {
	name := result.UserID
	if user, err := s.repo.User().GetByID(ctx, result.UserID); err != nil {
		s.logger.Warn("Certificate recipient lookup failed, using user id", "user_id", result.UserID, "error", err)
	} else {
		name = user.DisplayName()
	}

	title := fmt.Sprintf("Assessment #%d", result.AssessmentID)
	if assessment, err := s.repo.Assessment().GetByID(ctx, result.AssessmentID); err == nil {
		title = assessment.Title
	}

	return certificate.Request{
		UserID:       result.UserID,
		AssessmentID: result.AssessmentID,
		CompletedAt:  result.CompletedAt,
		IssuedAt:     result.CertificateIssuedAt,
		ExistingURL:  existingURL,
		Data: certificate.Data{
			RecipientName:   name,
			AssessmentTitle: title,
			Score:           result.Score,
			TotalQuestions:  result.TotalQuestions,
			Percentage:      result.Percentage,
			CompletedAt:     result.CompletedAt,
		},
	}
}

func (s *certificateService) persist(ctx context.Context, result *models.Result, issued *certificate.Issued) error {
	if result.CertificateURL != nil && *result.CertificateURL == issued.URL &&
		result.CertificateIssuedAt != nil && result.CertificateIssuedAt.Equal(issued.Identity.IssuedAt) {
		return nil
	}
	if err := s.repo.Result().SetCertificate(ctx, result.ID, issued.URL, issued.Serial, issued.Identity.IssuedAt); err != nil {
		return fmt.Errorf("failed to store certificate reference: %w", err)
	}

	url, serial, issuedAt := issued.URL, issued.Serial, issued.Identity.IssuedAt
	result.CertificateURL = &url
	result.CertificateSerial = &serial
	result.CertificateIssuedAt = &issuedAt
	return nil
}

func (s *certificateService) publish(ctx context.Context, result *models.Result, issued *certificate.Issued) {
	if s.publisher == nil {
		return
	}
	event := events.NewEvent(events.EventCertificateIssued, events.CertificateIssuedData{
		ResultID:     result.ID,
		UserID:       result.UserID,
		AssessmentID: result.AssessmentID,
		URL:          issued.URL,
		Serial:       issued.Serial,
	})
	if err := s.publisher.Publish(ctx, events.TopicCertificateIssued, event); err != nil {
		s.logger.Warn("Failed to publish event", "topic", events.TopicCertificateIssued, "error", err)
	}
}
