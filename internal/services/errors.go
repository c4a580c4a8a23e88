package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/SAP-F-2025/skill-assessment-service/internal/validator"
)

// ===== ADMISSION ERRORS =====

var (
	ErrAssessmentNotFound   = errors.New("assessment not found")
	ErrPaymentRequired      = errors.New("payment required")
	ErrPurchaseRequired     = errors.New("purchase required")
	ErrQuotaExhausted       = errors.New("attempt quota exhausted")
	ErrNoQuestionsAvailable = errors.New("no questions available")
	ErrRateLimited          = errors.New("too many admission requests")
)

// ===== SESSION / RESULT ERRORS =====

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionClosed   = errors.New("session already closed")
	ErrResultNotFound  = errors.New("result not found")
)

// ===== CERTIFICATE ERRORS =====

var (
	ErrCertificateNotEligible = errors.New("result is not eligible for a certificate")
	ErrCertificatePending     = errors.New("certificate pending")
	ErrCertificateMissing     = errors.New("certificate artifact missing")
)

// ValidationErrors is re-exported so handlers only depend on services
type ValidationErrors = validator.ValidationErrors

// QuotaExhaustedError carries the remaining attempt count; it matches ErrQuotaExhausted.
type QuotaExhaustedError struct {
	Remaining int
}

func (e *QuotaExhaustedError) Error() string {
	return fmt.Sprintf("%s: %d remaining", ErrQuotaExhausted.Error(), e.Remaining)
}

func (e *QuotaExhaustedError) Is(target error) bool {
	return target == ErrQuotaExhausted
}

// RateLimitError matches ErrRateLimited
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s, retry after %s", ErrRateLimited.Error(), e.RetryAfter)
}

func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}

type BusinessRuleError struct {
	Rule    string
	Message string
	Context map[string]interface{}
}

func (e *BusinessRuleError) Error() string {
	return fmt.Sprintf("business rule %s violated: %s", e.Rule, e.Message)
}

func NewBusinessRuleError(rule, message string, context map[string]interface{}) *BusinessRuleError {
	return &BusinessRuleError{Rule: rule, Message: message, Context: context}
}

type PermissionError struct {
	Resource string
	Action   string
	UserID   string
	Reason   string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("user %s cannot %s %s: %s", e.UserID, e.Action, e.Resource, e.Reason)
}

func NewPermissionError(userID, resource, action, reason string) *PermissionError {
	return &PermissionError{Resource: resource, Action: action, UserID: userID, Reason: reason}
}
