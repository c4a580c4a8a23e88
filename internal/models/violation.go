package models

import "time"

// ViolationRecord is an append-only proctoring log line flushed from a live session.
type ViolationRecord struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	SessionID    *string   `json:"session_id" gorm:"size:36;index"`
	UserID       string    `json:"user_id" gorm:"not null;size:255;index"`
	AssessmentID uint      `json:"assessment_id" gorm:"not null;index"`
	Code         string    `json:"code" gorm:"not null;size:32;index"`
	Message      string    `json:"message" gorm:"type:text"`
	OccurredAt   time.Time `json:"occurred_at" gorm:"not null"`
	Count        int       `json:"count" gorm:"not null"`
	CreatedAt    time.Time `json:"created_at"`
}

func (ViolationRecord) TableName() string {
	return "violation_records"
}
