package models

import (
	"time"

	"gorm.io/datatypes"
)

type DifficultyLevel int

const (
	DifficultyEasy   DifficultyLevel = 1
	DifficultyMedium DifficultyLevel = 2
	DifficultyHard   DifficultyLevel = 3
)

func (d DifficultyLevel) Valid() bool {
	return d >= DifficultyEasy && d <= DifficultyHard
}

// Question holds the correct option index, so it must never be serialized to a test-taker.
// Use QuestionView for anything client-facing.
type Question struct {
	ID           uint                        `json:"id" gorm:"primaryKey"`
	AssessmentID uint                        `json:"assessment_id" gorm:"not null;index"`
	Text         string                      `json:"text" gorm:"type:text;not null"`
	Options      datatypes.JSONSlice[string] `json:"options" gorm:"type:jsonb;not null"`
	CorrectIndex int                         `json:"correct_index" gorm:"not null"`
	Difficulty   DifficultyLevel             `json:"difficulty_level" gorm:"column:difficulty_level;not null;default:2;index"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Question) TableName() string {
	return "questions"
}

// OptionText returns the option at index i, or "" when i is out of range.
func (q *Question) OptionText(i int) string {
	if i < 0 || i >= len(q.Options) {
		return ""
	}
	return q.Options[i]
}

// QuestionView is the client-visible projection of a Question.
type QuestionView struct {
	ID         uint            `json:"id"`
	Text       string          `json:"text"`
	Options    []string        `json:"options"`
	Difficulty DifficultyLevel `json:"difficulty_level"`
}

func (q *Question) View() QuestionView {
	opts := make([]string, len(q.Options))
	copy(opts, q.Options)
	return QuestionView{
		ID:         q.ID,
		Text:       q.Text,
		Options:    opts,
		Difficulty: q.Difficulty,
	}
}
