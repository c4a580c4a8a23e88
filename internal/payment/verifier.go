// Package payment answers whether a user has paid for a premium assessment.
package payment

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"

	"github.com/SAP-F-2025/skill-assessment-service/internal/models"
)

// OrderStore is the subset of the payment order repository the verifier needs.
type OrderStore interface {
	ListByUserAndAssessment(ctx context.Context, userID string, assessmentID uint) ([]*models.PaymentOrder, error)
	UpdateStatus(ctx context.Context, orderID string, status models.PaymentStatus, paidAt *time.Time) error
}

// StatusChecker asks the payment gateway for the current state of an order.
type StatusChecker interface {
	Status(ctx context.Context, orderID string) (models.PaymentStatus, error)
}

// MapGatewayStatus converts a Midtrans transaction/fraud status pair to an order status.
func MapGatewayStatus(transactionStatus, fraudStatus string) models.PaymentStatus {
	switch strings.ToLower(transactionStatus) {
	case "capture":
		switch strings.ToLower(fraudStatus) {
		case "accept", "":
			return models.PaymentPaid
		case "challenge":
			return models.PaymentPending
		}
		return models.PaymentFailed
	case "settlement":
		return models.PaymentPaid
	case "pending", "authorize":
		return models.PaymentPending
	case "deny", "failure":
		return models.PaymentFailed
	case "cancel":
		return models.PaymentCanceled
	case "expire":
		return models.PaymentExpired
	case "refund", "partial_refund", "chargeback", "partial_chargeback":
		return models.PaymentRefunded
	}
	return models.PaymentPending
}

type MidtransChecker struct {
	client coreapi.Client
}

func NewMidtransChecker(serverKey string, production bool) *MidtransChecker {
	c := &MidtransChecker{}
	if production {
		c.client.New(serverKey, midtrans.Production)
	} else {
		c.client.New(serverKey, midtrans.Sandbox)
	}
	return c
}

func (c *MidtransChecker) Status(ctx context.Context, orderID string) (models.PaymentStatus, error) {
	resp, merr := c.client.CheckTransaction(orderID)
	if merr != nil {
		return "", fmt.Errorf("midtrans status check for %s: %s", orderID, merr.Message)
	}
	return MapGatewayStatus(resp.TransactionStatus, resp.FraudStatus), nil
}

// Verifier implements hasPaid. Settled orders in the database are authoritative; pending ones are
// reconciled against the gateway when a checker is configured.
type Verifier struct {
	orders  OrderStore
	gateway StatusChecker
	logger  *slog.Logger
	now     func() time.Time
}

func NewVerifier(orders OrderStore, gateway StatusChecker, logger *slog.Logger) *Verifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Verifier{orders: orders, gateway: gateway, logger: logger, now: time.Now}
}

func (v *Verifier) HasPaid(ctx context.Context, userID string, assessmentID uint) (bool, error) {
	orders, err := v.orders.ListByUserAndAssessment(ctx, userID, assessmentID)
	if err != nil {
		return false, fmt.Errorf("failed to list payment orders: %w", err)
	}

	var pending []*models.PaymentOrder
	for _, o := range orders {
		switch o.Status {
		case models.PaymentPaid:
			return true, nil
		case models.PaymentPending:
			pending = append(pending, o)
		}
	}
	if v.gateway == nil {
		return false, nil
	}

	for _, o := range pending {
		status, err := v.gateway.Status(ctx, o.OrderID)
		if err != nil {
			v.logger.Warn("Payment status check failed", "order_id", o.OrderID, "error", err)
			continue
		}
		if !status.Settled() {
			continue
		}

		var paidAt *time.Time
		if status == models.PaymentPaid {
			now := v.now()
			paidAt = &now
		}
		if err := v.orders.UpdateStatus(ctx, o.OrderID, status, paidAt); err != nil {
			v.logger.Error("Failed to update payment order", "order_id", o.OrderID, "status", status, "error", err)
		} else {
			v.logger.Info("Payment order reconciled", "order_id", o.OrderID, "status", status)
		}
		if status == models.PaymentPaid {
			return true, nil
		}
	}
	return false, nil
}
