package models

import (
	"time"

	"gorm.io/gorm"
)

type AssessmentStatus string

const (
	StatusDraft    AssessmentStatus = "Draft"
	StatusActive   AssessmentStatus = "Active"
	StatusArchived AssessmentStatus = "Archived"
)

// Assessment is authored outside this service and read-only here.
type Assessment struct {
	ID           uint             `json:"id" gorm:"primaryKey"`
	Title        string           `json:"title" gorm:"not null;size:200;index"`
	Description  *string          `json:"description" gorm:"type:text"`
	Status       AssessmentStatus `json:"status" gorm:"default:Active;index"`
	IsPremium    bool             `json:"is_premium" gorm:"not null;default:false"`
	Price        int64            `json:"price" gorm:"not null;default:0"`
	NumQuestions int              `json:"num_questions" gorm:"not null;default:10"`
	TimeLimit    int              `json:"time_limit" gorm:"not null;default:30"` // minutes

	CreatedBy string         `json:"created_by" gorm:"not null;index;size:255"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	Settings ProctoringSettings `json:"settings" gorm:"foreignKey:AssessmentID"`
}

// TimeLimitSeconds converts the authored limit in minutes.
func (a *Assessment) TimeLimitSeconds() int {
	return a.TimeLimit * 60
}

// ProctoringSettings overrides the service-wide proctoring defaults per assessment.
// Zero values fall back to the configured defaults.
type ProctoringSettings struct {
	AssessmentID     uint      `json:"assessment_id" gorm:"primaryKey;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	MaxViolations    int       `json:"max_violations" gorm:"not null;default:0"`
	MinViewportWidth int       `json:"min_viewport_width" gorm:"not null;default:0"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (Assessment) TableName() string {
	return "assessments"
}

func (ProctoringSettings) TableName() string {
	return "assessment_proctoring_settings"
}
