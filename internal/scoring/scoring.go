// Package scoring grades a submitted answer sheet against the authoritative question records.
// Every function here is pure: identical input always yields identical output.
package scoring

import (
	"math"

	"github.com/SAP-F-2025/skill-assessment-service/internal/models"
)

// Unanswered is the sentinel selected index for a question the test-taker never answered.
const Unanswered = -1

type Answer struct {
	QuestionID uint `json:"question_id"`
	Selected   int  `json:"selected"`
}

type Outcome struct {
	Score          int
	TotalQuestions int
	Percentage     int
	Status         models.ResultStatus
	Feedback       string
	Breakdown      []models.AnswerBreakdown
}

// Grade scores answers against the session's questions, in session order. The total is always
// len(questions): answers for questions outside the session are ignored, and a question with no
// answer counts as Unanswered. When a question is answered twice the last answer wins.
func Grade(questions []models.Question, answers []Answer) Outcome {
	selected := make(map[uint]int, len(answers))
	for _, a := range answers {
		selected[a.QuestionID] = a.Selected
	}

	out := Outcome{
		TotalQuestions: len(questions),
		Breakdown:      make([]models.AnswerBreakdown, 0, len(questions)),
	}

	for i := range questions {
		q := &questions[i]
		idx, ok := selected[q.ID]
		if !ok || idx < 0 || idx >= len(q.Options) {
			idx = Unanswered
		}

		line := models.AnswerBreakdown{
			QuestionID:     q.ID,
			QuestionText:   q.Text,
			SelectedIndex:  idx,
			SelectedOption: q.OptionText(idx),
			IsCorrect:      idx != Unanswered && idx == q.CorrectIndex,
		}
		if line.IsCorrect {
			out.Score++
		} else {
			line.CorrectOption = q.OptionText(q.CorrectIndex)
		}
		out.Breakdown = append(out.Breakdown, line)
	}

	out.Percentage = Percentage(out.Score, out.TotalQuestions)
	out.Status = StatusFor(out.Percentage)
	out.Feedback = Feedback(out.Percentage)
	return out
}

// Percentage is round(score/total*100), and 0 for an empty session.
func Percentage(score, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(score) / float64(total) * 100))
}

func StatusFor(percentage int) models.ResultStatus {
	if percentage >= models.PassThreshold {
		return models.ResultPass
	}
	return models.ResultFail
}

func Feedback(percentage int) string {
	switch {
	case percentage >= 90:
		return "Excellent work. You have mastered this skill."
	case percentage >= 75:
		return "Great job. You have a strong command of this skill."
	case percentage >= models.PassThreshold:
		return "Well done. You passed this assessment."
	case percentage >= 40:
		return "Almost there. Review the questions you missed and try again."
	default:
		return "Keep practicing. Study the material and retake the assessment."
	}
}

// FillUnanswered returns one answer per question id, in order, using Unanswered for any
// question without a selection.
func FillUnanswered(questionIDs []uint, selections map[uint]int) []Answer {
	out := make([]Answer, len(questionIDs))
	for i, id := range questionIDs {
		sel, ok := selections[id]
		if !ok {
			sel = Unanswered
		}
		out[i] = Answer{QuestionID: id, Selected: sel}
	}
	return out
}
