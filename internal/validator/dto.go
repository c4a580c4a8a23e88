package validator

import "time"

// AnswerInput is one line of a submitted answer sheet
type AnswerInput struct {
	QuestionID    uint `json:"question_id" validate:"required"`
	SelectedIndex int  `json:"selected_index" validate:"answer_index"`
}

// SubmitRequest submits a session. SessionID may be omitted, in which case the latest
// open session of the caller for the assessment is used.
type SubmitRequest struct {
	SessionID      string        `json:"session_id" validate:"omitempty,uuid"`
	Answers        []AnswerInput `json:"answers" validate:"dive"`
	ElapsedSeconds int           `json:"elapsed_seconds" validate:"min=0"`
	Reason         string        `json:"reason" validate:"omitempty,oneof=manual timeout violations"`
}

// ViolationReportRequest is the fire-and-forget report a browser sends per violation
type ViolationReportRequest struct {
	SessionID  string    `json:"session_id" validate:"omitempty,uuid"`
	Code       string    `json:"code" validate:"required,violation_code"`
	Message    string    `json:"message" validate:"max=500"`
	OccurredAt time.Time `json:"timestamp"`
	Count      int       `json:"count" validate:"min=1"`
}

// GrantAccessRequest creates or refreshes an attempt grant after a purchase. Every grant
// carries models.DefaultMaxAttempts. OrderID makes the grant idempotent per payment order.
type GrantAccessRequest struct {
	UserID       string     `json:"user_id" validate:"required,max=255"`
	AssessmentID uint       `json:"assessment_id" validate:"required"`
	OrderID      string     `json:"order_id" validate:"omitempty,max=64"`
	PurchasedAt  *time.Time `json:"purchased_at"`
}

// RegenerateCertificateRequest optionally carries a previously issued URL
type RegenerateCertificateRequest struct {
	ExistingURL string `json:"existing_url" validate:"omitempty,max=1024"`
}
