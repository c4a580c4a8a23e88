package models

import (
	"time"

	"gorm.io/datatypes"
)

type ResultStatus string

const (
	ResultPass ResultStatus = "pass"
	ResultFail ResultStatus = "fail"
)

// PassThreshold is the minimum percentage for a passing result.
const PassThreshold = 60

type Result struct {
	ID             uint         `json:"id" gorm:"primaryKey"`
	SessionID      *string      `json:"session_id" gorm:"size:36;uniqueIndex"`
	UserID         string       `json:"user_id" gorm:"not null;size:255;index:idx_result_user_assessment"`
	AssessmentID   uint         `json:"assessment_id" gorm:"not null;index:idx_result_user_assessment"`
	Score          int          `json:"score" gorm:"not null"`
	TotalQuestions int          `json:"total_questions" gorm:"not null"`
	TimeTaken      int          `json:"time_taken" gorm:"not null"` // seconds
	Status         ResultStatus `json:"status" gorm:"not null;index"`
	Percentage     int          `json:"percentage" gorm:"not null"`
	AttemptNumber  int          `json:"attempt_number" gorm:"not null"`
	Feedback       string       `json:"feedback" gorm:"type:text"`
	SubmittedLate  bool         `json:"submitted_late" gorm:"not null;default:false"`
	SubmitReason   string       `json:"submit_reason" gorm:"size:32"`

	Breakdown datatypes.JSONSlice[AnswerBreakdown] `json:"breakdown" gorm:"type:jsonb"`

	// Certificate identity is fixed at completion and reused by every issuance.
	CertificateURL      *string    `json:"certificate_url" gorm:"size:1024"`
	CertificateIssuedAt *time.Time `json:"certificate_issued_at"`
	CertificateSerial   *string    `json:"certificate_serial" gorm:"size:64"`

	CompletedAt time.Time `json:"completed_at" gorm:"not null"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Result) TableName() string {
	return "results"
}

func (r *Result) Passed() bool {
	return r.Status == ResultPass
}

// AnswerBreakdown is the per-question line of a submission response.
// CorrectOption is only populated when the answer was wrong.
type AnswerBreakdown struct {
	QuestionID     uint   `json:"question_id"`
	QuestionText   string `json:"question_text"`
	SelectedIndex  int    `json:"selected_index"`
	SelectedOption string `json:"selected_option,omitempty"`
	CorrectOption  string `json:"correct_option,omitempty"`
	IsCorrect      bool   `json:"is_correct"`
}
