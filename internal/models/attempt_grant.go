package models

import "time"

// DefaultMaxAttempts is the attempt quota bought by one purchase of a premium assessment.
const DefaultMaxAttempts = 3

// AttemptGrant is the quota ledger row for one (user, assessment) pair.
type AttemptGrant struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	UserID       string    `json:"user_id" gorm:"not null;size:255;uniqueIndex:idx_grant_user_assessment"`
	AssessmentID uint      `json:"assessment_id" gorm:"not null;uniqueIndex:idx_grant_user_assessment"`
	HasAccess    bool      `json:"has_access" gorm:"not null"`
	AttemptsUsed int       `json:"attempts_used" gorm:"not null;default:0"`
	MaxAttempts  int       `json:"max_attempts" gorm:"not null;default:3"`
	PurchasedAt  time.Time `json:"purchased_at" gorm:"not null"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (AttemptGrant) TableName() string {
	return "attempt_grants"
}

func (g *AttemptGrant) Remaining() int {
	if r := g.MaxAttempts - g.AttemptsUsed; r > 0 {
		return r
	}
	return 0
}

func (g *AttemptGrant) Exhausted() bool {
	return g.AttemptsUsed >= g.MaxAttempts
}

// GrantOrder records a payment order already applied to a grant. A redelivered
// payment.completed event for the same order must not reset the quota again.
type GrantOrder struct {
	OrderID      string    `json:"order_id" gorm:"primaryKey;size:64"`
	UserID       string    `json:"user_id" gorm:"not null;size:255;index"`
	AssessmentID uint      `json:"assessment_id" gorm:"not null"`
	AppliedAt    time.Time `json:"applied_at" gorm:"not null"`
}

func (GrantOrder) TableName() string {
	return "attempt_grant_orders"
}
