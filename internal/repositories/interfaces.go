package repositories

import (
	"context"
	"time"

	"github.com/SAP-F-2025/skill-assessment-service/internal/models"
)

// ===== ASSESSMENT DOMAIN =====

type AssessmentRepository interface {
	Create(ctx context.Context, assessment *models.Assessment) error
	// GetByID returns the assessment with its proctoring settings, served from cache when possible
	GetByID(ctx context.Context, id uint) (*models.Assessment, error)
}

type QuestionRepository interface {
	CreateBatch(ctx context.Context, questions []models.Question) error
	// ListByAssessment returns the full pool of an assessment, correct answers included
	ListByAssessment(ctx context.Context, assessmentID uint) ([]models.Question, error)
	// GetByIDs returns questions in the order of ids; unknown ids are skipped
	GetByIDs(ctx context.Context, ids []uint) ([]models.Question, error)
}

// ===== QUOTA LEDGER =====

type GrantRepository interface {
	Create(ctx context.Context, grant *models.AttemptGrant) error
	Get(ctx context.Context, userID string, assessmentID uint) (*models.AttemptGrant, error)
	// GetActive returns the most recent grant with has_access = true
	GetActive(ctx context.Context, userID string, assessmentID uint) (*models.AttemptGrant, error)
	// Reserve consumes one attempt if and only if the grant is still below its cap and
	// returns attempts_used as written by that update. It reports false when the cap was
	// already reached.
	Reserve(ctx context.Context, grantID uint) (attemptsUsed int, reserved bool, err error)
	// Reset restores full access after a repurchase.
	Reset(ctx context.Context, grantID uint, maxAttempts int, purchasedAt time.Time) error
	// ClaimOrder records orderID as applied. It reports false when the order was seen before.
	ClaimOrder(ctx context.Context, order *models.GrantOrder) (bool, error)
}

type PaymentOrderRepository interface {
	ListByUserAndAssessment(ctx context.Context, userID string, assessmentID uint) ([]*models.PaymentOrder, error)
	GetByOrderID(ctx context.Context, orderID string) (*models.PaymentOrder, error)
	UpdateStatus(ctx context.Context, orderID string, status models.PaymentStatus, paidAt *time.Time) error
}

// ===== SESSION LIFECYCLE =====

type SessionRepository interface {
	Create(ctx context.Context, session *models.AssessmentSession) error
	GetByID(ctx context.Context, id string) (*models.AssessmentSession, error)
	// GetForUpdate reads and row-locks the session; call it inside WithTransaction
	GetForUpdate(ctx context.Context, id string) (*models.AssessmentSession, error)
	LatestOpen(ctx context.Context, userID string, assessmentID uint) (*models.AssessmentSession, error)
	Close(ctx context.Context, id string, resultID *uint, closedAt time.Time) error
}

type ResultRepository interface {
	Create(ctx context.Context, result *models.Result) error
	GetByID(ctx context.Context, id uint) (*models.Result, error)
	GetBySessionID(ctx context.Context, sessionID string) (*models.Result, error)
	CountByUserAndAssessment(ctx context.Context, userID string, assessmentID uint) (int64, error)
	ListByUserAndAssessment(ctx context.Context, userID string, assessmentID uint) ([]*models.Result, error)
	ListByAssessment(ctx context.Context, assessmentID uint) ([]*models.Result, error)
	// ListMissingCertificates returns passing results whose certificate was never stored
	ListMissingCertificates(ctx context.Context, limit int) ([]*models.Result, error)
	SetCertificate(ctx context.Context, id uint, url, serial string, issuedAt time.Time) error
}

type ViolationRepository interface {
	Create(ctx context.Context, violation *models.ViolationRecord) error
	ListBySession(ctx context.Context, sessionID string) ([]*models.ViolationRecord, error)
	ListByAssessment(ctx context.Context, assessmentID uint) ([]*models.ViolationRecord, error)
}
