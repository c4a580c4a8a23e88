package services

import (
	"context"
	"io"
	"time"

	"github.com/SAP-F-2025/skill-assessment-service/internal/models"
	"github.com/SAP-F-2025/skill-assessment-service/internal/validator"
)

// ===== REQUEST DTOs =====

type SubmitRequest = validator.SubmitRequest
type AnswerInput = validator.AnswerInput
type ViolationReportRequest = validator.ViolationReportRequest
type GrantAccessRequest = validator.GrantAccessRequest
type RegenerateCertificateRequest = validator.RegenerateCertificateRequest

// ===== RESPONSE DTOs =====

// AssessmentSnapshot is the read-only view of an assessment handed out at admission
type AssessmentSnapshot struct {
	ID           uint    `json:"id"`
	Title        string  `json:"title"`
	Description  *string `json:"description,omitempty"`
	IsPremium    bool    `json:"is_premium"`
	NumQuestions int     `json:"num_questions"`
	TimeLimit    int     `json:"time_limit"`
}

type ProctoringView struct {
	MaxViolations    int `json:"max_violations"`
	MinViewportWidth int `json:"min_viewport_width"`
}

type AdmissionResponse struct {
	SessionID         string                `json:"session_id"`
	Assessment        AssessmentSnapshot    `json:"assessment"`
	Questions         []models.QuestionView `json:"questions"`
	TimeLimitSeconds  int                   `json:"time_limit_seconds"`
	StartedAt         time.Time             `json:"started_at"`
	DeadlineAt        time.Time             `json:"deadline_at"`
	RemainingAttempts *int                  `json:"remaining_attempts,omitempty"`
	Proctoring        ProctoringView        `json:"proctoring"`
}

// QuestionIDs lists the admitted questions in the order they were handed out
func (r *AdmissionResponse) QuestionIDs() []uint {
	ids := make([]uint, len(r.Questions))
	for i, q := range r.Questions {
		ids[i] = q.ID
	}
	return ids
}

type QuotaResponse struct {
	AssessmentID uint `json:"assessment_id"`
	IsPremium    bool `json:"is_premium"`
	HasAccess    bool `json:"has_access"`
	AttemptsUsed int  `json:"attempts_used"`
	MaxAttempts  int  `json:"max_attempts"`
	Remaining    int  `json:"remaining"`
	Unlimited    bool `json:"unlimited"`
}

type SubmissionResponse struct {
	ResultID           uint                     `json:"result_id"`
	SessionID          string                   `json:"session_id"`
	Score              int                      `json:"score"`
	TotalQuestions     int                      `json:"total_questions"`
	Percentage         int                      `json:"percentage"`
	Status             models.ResultStatus      `json:"status"`
	AttemptNumber      int                      `json:"attempt_number"`
	Feedback           string                   `json:"feedback"`
	TimeTaken          int                      `json:"time_taken"`
	CertificateURL     *string                  `json:"certificate_url"`
	CertificatePending bool                     `json:"certificate_pending"`
	SubmittedLate      bool                     `json:"submitted_late"`
	AlreadySubmitted   bool                     `json:"already_submitted"`
	Breakdown          []models.AnswerBreakdown `json:"breakdown"`
}

type CertificateResponse struct {
	ResultID uint      `json:"result_id"`
	URL      string    `json:"url"`
	Serial   string    `json:"serial"`
	IssuedAt time.Time `json:"issued_at"`
	Rendered bool      `json:"rendered"`
}

// CertificateFile is the artifact returned by certificate retrieval
type CertificateFile struct {
	Body        []byte
	ContentType string
	FileName    string
}

// ===== SERVICE INTERFACES =====

type AdmissionService interface {
	// Admit runs the admission gate and, on success, opens a session
	Admit(ctx context.Context, assessmentID uint, userID string) (*AdmissionResponse, error)
	Quota(ctx context.Context, assessmentID uint, userID string) (*QuotaResponse, error)
}

type SubmissionService interface {
	// Submit closes a session exactly once; later calls return the stored result
	Submit(ctx context.Context, assessmentID uint, userID string, req *SubmitRequest) (*SubmissionResponse, error)
	GetResult(ctx context.Context, resultID uint, userID string) (*SubmissionResponse, error)
	ListMyResults(ctx context.Context, assessmentID uint, userID string) ([]*SubmissionResponse, error)
}

type GrantService interface {
	GrantAccess(ctx context.Context, req *GrantAccessRequest) (*models.AttemptGrant, error)
	// HandlePaymentCompleted is the payment.completed consumer
	HandlePaymentCompleted(ctx context.Context, orderID, userID string, assessmentID uint, paidAt time.Time) error
}

type ViolationService interface {
	Record(ctx context.Context, assessmentID uint, userID string, req *ViolationReportRequest) error
	ListBySession(ctx context.Context, sessionID, userID string) ([]*models.ViolationRecord, error)
}

type CertificateService interface {
	// IssueForResult never mutates the identity of an already issued certificate
	IssueForResult(ctx context.Context, result *models.Result, existingURL string) (*CertificateResponse, error)
	Regenerate(ctx context.Context, resultID uint, userID, existingURL string) (*CertificateResponse, error)
	Get(ctx context.Context, resultID uint, userID string) (*CertificateFile, error)
	RepairMissing(ctx context.Context, limit int) (int, error)
}

type ExportService interface {
	ExportResults(ctx context.Context, assessmentID uint, w io.Writer) error
	ExportViolations(ctx context.Context, assessmentID uint, w io.Writer) error
}

type ServiceManager interface {
	Admission() AdmissionService
	Submission() SubmissionService
	Grant() GrantService
	Violation() ViolationService
	Certificate() CertificateService
	Export() ExportService

	Initialize(ctx context.Context) error
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
