package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/SAP-F-2025/skill-assessment-service/internal/events"
	"github.com/SAP-F-2025/skill-assessment-service/internal/models"
	"github.com/SAP-F-2025/skill-assessment-service/internal/repositories"
	"github.com/SAP-F-2025/skill-assessment-service/internal/validator"
)

type grantService struct {
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
	now       func() time.Time
}

func NewGrantService(repo repositories.Repository, logger *slog.Logger, validator *validator.Validator) GrantService {
	return &grantService{
		repo:      repo,
		logger:    logger,
		validator: validator,
		now:       time.Now,
	}
}

// GrantAccess creates the grant on first purchase. A repurchase resets an exhausted grant;
// a grant that still has attempts left is returned unchanged. An order id already applied
// leaves the grant untouched, so redelivered payment events cannot add attempts.
func (s *grantService) GrantAccess(ctx context.Context, req *GrantAccessRequest) (*models.AttemptGrant, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	purchasedAt := s.now().UTC()
	if req.PurchasedAt != nil {
		purchasedAt = req.PurchasedAt.UTC()
	}

	s.logger.Info("Granting assessment access",
		"user_id", req.UserID,
		"assessment_id", req.AssessmentID,
		"order_id", req.OrderID)

	var grant *models.AttemptGrant
	err := s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		assessment, err := tx.Assessment().GetByID(ctx, req.AssessmentID)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return ErrAssessmentNotFound
			}
			return fmt.Errorf("failed to get assessment: %w", err)
		}
		if !assessment.IsPremium {
			return NewBusinessRuleError("premium_only", "Access grants apply to premium assessments only",
				map[string]interface{}{"assessment_id": req.AssessmentID})
		}

		existing, err := tx.Grant().Get(ctx, req.UserID, req.AssessmentID)
		if err != nil && !repositories.IsNotFoundError(err) {
			return fmt.Errorf("failed to get attempt grant: %w", err)
		}

		if req.OrderID != "" {
			claimed, err := tx.Grant().ClaimOrder(ctx, &models.GrantOrder{
				OrderID:      req.OrderID,
				UserID:       req.UserID,
				AssessmentID: req.AssessmentID,
				AppliedAt:    s.now().UTC(),
			})
			if err != nil {
				return err
			}
			if !claimed && existing != nil {
				s.logger.Info("Payment order already applied", "order_id", req.OrderID, "grant_id", existing.ID)
				grant = existing
				return nil
			}
		}

		if existing == nil {
			grant = &models.AttemptGrant{
				UserID:       req.UserID,
				AssessmentID: req.AssessmentID,
				HasAccess:    true,
				AttemptsUsed: 0,
				MaxAttempts:  models.DefaultMaxAttempts,
				PurchasedAt:  purchasedAt,
			}
			return tx.Grant().Create(ctx, grant)
		}

		if existing.HasAccess && !existing.Exhausted() {
			grant = existing
			return nil
		}

		if err := tx.Grant().Reset(ctx, existing.ID, models.DefaultMaxAttempts, purchasedAt); err != nil {
			return err
		}
		existing.HasAccess = true
		existing.AttemptsUsed = 0
		existing.MaxAttempts = models.DefaultMaxAttempts
		existing.PurchasedAt = purchasedAt
		grant = existing
		return nil
	})
	if err != nil {
		if repositories.IsUniqueViolation(err) {
			// a concurrent purchase created the row first
			return s.repo.Grant().Get(ctx, req.UserID, req.AssessmentID)
		}
		return nil, err
	}

	return grant, nil
}

func (s *grantService) HandlePaymentCompleted(ctx context.Context, orderID, userID string, assessmentID uint, paidAt time.Time) error {
	s.logger.Info("Payment completed", "order_id", orderID, "user_id", userID, "assessment_id", assessmentID)

	req := &GrantAccessRequest{UserID: userID, AssessmentID: assessmentID, OrderID: orderID}
	if !paidAt.IsZero() {
		req.PurchasedAt = &paidAt
	}
	_, err := s.GrantAccess(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to grant access for order %s: %w", orderID, err)
	}
	return nil
}

// PaymentCompletedHandler adapts the grant service to the payment.completed topic. Messages
// for unknown or free assessments are acked and dropped.
func PaymentCompletedHandler(grants GrantService, logger *slog.Logger) events.HandlerFunc {
	return func(ctx context.Context, msg *message.Message) error {
		var data events.PaymentCompletedData
		if _, err := events.Decode(msg, &data); err != nil {
			logger.Error("Dropping malformed payment event", "message_id", msg.UUID, "error", err)
			return nil
		}

		err := grants.HandlePaymentCompleted(ctx, data.OrderID, data.UserID, data.AssessmentID, data.PaidAt)
		if err != nil && isPermanent(err) {
			logger.Error("Dropping payment event", "order_id", data.OrderID, "error", err)
			return nil
		}
		return err
	}
}

func isPermanent(err error) bool {
	var verrs ValidationErrors
	var ruleErr *BusinessRuleError
	return errors.Is(err, ErrAssessmentNotFound) || errors.As(err, &verrs) || errors.As(err, &ruleErr)
}
