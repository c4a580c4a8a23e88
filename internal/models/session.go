package models

import (
	"time"

	"gorm.io/datatypes"
)

type SessionStatus string

const (
	SessionInProgress SessionStatus = "in_progress"
	SessionClosed     SessionStatus = "closed"
)

// AssessmentSession is created at admission and closed by the first submission.
type AssessmentSession struct {
	ID               string                    `json:"id" gorm:"primaryKey;size:36"`
	UserID           string                    `json:"user_id" gorm:"not null;size:255;index:idx_session_user_assessment"`
	AssessmentID     uint                      `json:"assessment_id" gorm:"not null;index:idx_session_user_assessment"`
	QuestionIDs      datatypes.JSONSlice[uint] `json:"question_ids" gorm:"type:jsonb;not null"`
	TimeLimitSeconds int                       `json:"time_limit_seconds" gorm:"not null"`
	Status           SessionStatus             `json:"status" gorm:"not null;default:in_progress;index"`
	StartedAt        time.Time                 `json:"started_at" gorm:"not null"`
	DeadlineAt       time.Time                 `json:"deadline_at" gorm:"not null"`
	ClosedAt         *time.Time                `json:"closed_at"`
	ResultID         *uint                     `json:"result_id"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (AssessmentSession) TableName() string {
	return "assessment_sessions"
}

func (s *AssessmentSession) IsClosed() bool {
	return s.Status == SessionClosed
}
