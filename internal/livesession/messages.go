package livesession

import (
	"github.com/SAP-F-2025/skill-assessment-service/internal/proctor"
	"github.com/SAP-F-2025/skill-assessment-service/internal/services"
)

// Client message types
const (
	MsgFullscreen = "fullscreen"
	MsgState      = "state"
	MsgSignal     = "signal"
	MsgAnswer     = "answer"
	MsgSubmit     = "submit"
)

// Server message types
const (
	MsgRequestFullscreen = "request_fullscreen"
	MsgExitFullscreen    = "exit_fullscreen"
	MsgAdmitted          = "admitted"
	MsgDenied            = "denied"
	MsgWarning           = "warning"
	MsgTick              = "tick"
	MsgProbe             = "probe"
	MsgSubmitted         = "submitted"
	MsgError             = "error"
)

// Denial reasons sent with MsgDenied
const (
	DenyNotFound         = "not_found"
	DenyPaymentRequired  = "payment_required"
	DenyPurchaseRequired = "purchase_required"
	DenyQuotaExhausted   = "quota_exhausted"
	DenyNoQuestions      = "no_questions"
	DenyRateLimited      = "rate_limited"
	DenyFullscreen       = "fullscreen_denied"
)

// ClientMessage is the union of every message the browser sends. Only the fields of the
// given Type are meaningful.
type ClientMessage struct {
	Type string `json:"type"`

	// fullscreen
	OK bool `json:"ok,omitempty"`

	// state
	Fullscreen    *bool `json:"fullscreen,omitempty"`
	ViewportWidth int   `json:"viewport_width,omitempty"`

	// signal
	Kind proctor.SignalKind `json:"kind,omitempty"`
	Key  *proctor.KeyCombo  `json:"key,omitempty"`

	// answer
	QuestionID uint `json:"question_id,omitempty"`
	Selected   int  `json:"selected"`
}

// ServerMessage is the union of every message the server sends.
type ServerMessage struct {
	Type string `json:"type"`

	Session           *services.AdmissionResponse  `json:"session,omitempty"`
	Reason            string                       `json:"reason,omitempty"`
	RemainingAttempts *int                         `json:"remaining_attempts,omitempty"`
	Violation         *proctor.Violation           `json:"violation,omitempty"`
	Remaining         *int                         `json:"remaining,omitempty"`
	Result            *services.SubmissionResponse `json:"result,omitempty"`
	Message           string                       `json:"message,omitempty"`
}
