package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
)

const (
	EventSource  = "skill-assessment-service"
	EventVersion = "1.0"
)

// Topics
const (
	TopicSessionAdmitted   = "session.admitted"
	TopicResultSubmitted   = "result.submitted"
	TopicViolations        = "proctoring.violations"
	TopicCertificateIssued = "certificate.issued"
	TopicPaymentCompleted  = "payment.completed"
)

// Event types
const (
	EventSessionAdmitted   = "session.admitted"
	EventResultSubmitted   = "result.submitted"
	EventViolationLogged   = "proctoring.violation_logged"
	EventCertificateIssued = "certificate.issued"
	EventPaymentCompleted  = "payment.completed"
)

// Event is the envelope every message on the bus carries.
type Event struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Source    string      `json:"source"`
	Version   string      `json:"version"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

func NewEvent(eventType string, data interface{}) *Event {
	return &Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Source:    EventSource,
		Version:   EventVersion,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

type SessionAdmittedData struct {
	SessionID         string    `json:"session_id"`
	UserID            string    `json:"user_id"`
	AssessmentID      uint      `json:"assessment_id"`
	QuestionCount     int       `json:"question_count"`
	AttemptsUsed      int       `json:"attempts_used"`
	RemainingAttempts int       `json:"remaining_attempts"`
	StartedAt         time.Time `json:"started_at"`
}

type ResultSubmittedData struct {
	ResultID      uint   `json:"result_id"`
	SessionID     string `json:"session_id"`
	UserID        string `json:"user_id"`
	AssessmentID  uint   `json:"assessment_id"`
	Score         int    `json:"score"`
	Total         int    `json:"total"`
	Percentage    int    `json:"percentage"`
	Status        string `json:"status"`
	AttemptNumber int    `json:"attempt_number"`
	Reason        string `json:"reason"`
	Late          bool   `json:"late"`
}

type ViolationLoggedData struct {
	SessionID    string    `json:"session_id,omitempty"`
	UserID       string    `json:"user_id"`
	AssessmentID uint      `json:"assessment_id"`
	Code         string    `json:"code"`
	Count        int       `json:"count"`
	OccurredAt   time.Time `json:"occurred_at"`
}

type CertificateIssuedData struct {
	ResultID     uint   `json:"result_id"`
	UserID       string `json:"user_id"`
	AssessmentID uint   `json:"assessment_id"`
	URL          string `json:"url"`
	Serial       string `json:"serial"`
}

// PaymentCompletedData is published by the checkout subsystem when an order settles.
type PaymentCompletedData struct {
	OrderID      string    `json:"order_id"`
	UserID       string    `json:"user_id"`
	AssessmentID uint      `json:"assessment_id"`
	Amount       int64     `json:"amount"`
	PaidAt       time.Time `json:"paid_at"`
}

// ToMessage encodes an event as a watermill message keyed by the event id.
func ToMessage(e *Event) (*message.Message, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event %s: %w", e.Type, err)
	}
	msg := message.NewMessage(e.ID, payload)
	msg.Metadata.Set("event_type", e.Type)
	msg.Metadata.Set("source", e.Source)
	return msg, nil
}

// Decode unpacks a message into its envelope and decodes the data section into data.
func Decode(msg *message.Message, data interface{}) (*Event, error) {
	var raw struct {
		Event
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(msg.Payload, &raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	e := raw.Event
	if data != nil && len(raw.Data) > 0 {
		if err := json.Unmarshal(raw.Data, data); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s data: %w", e.Type, err)
		}
		e.Data = data
	}
	return &e, nil
}
