package models

import "time"

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentExpired  PaymentStatus = "expired"
	PaymentCanceled PaymentStatus = "canceled"
	PaymentRefunded PaymentStatus = "refunded"
)

// Settled reports whether the status is final.
func (s PaymentStatus) Settled() bool {
	return s != PaymentPending
}

// PaymentOrder is owned by the checkout subsystem. This service only reads it,
// and flips a pending order to paid after a gateway status check confirms settlement.
type PaymentOrder struct {
	ID           uint          `json:"id" gorm:"primaryKey"`
	OrderID      string        `json:"order_id" gorm:"not null;size:64;uniqueIndex"`
	UserID       string        `json:"user_id" gorm:"not null;size:255;index:idx_payment_user_assessment"`
	AssessmentID uint          `json:"assessment_id" gorm:"not null;index:idx_payment_user_assessment"`
	Amount       int64         `json:"amount" gorm:"not null"`
	Status       PaymentStatus `json:"status" gorm:"not null;default:pending;index"`
	PaidAt       *time.Time    `json:"paid_at"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

func (PaymentOrder) TableName() string {
	return "payment_orders"
}
