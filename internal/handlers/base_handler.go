package handlers

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/skill-assessment-service/internal/services"
	"github.com/SAP-F-2025/skill-assessment-service/internal/utils"
)

type ErrorResponse struct {
	Message string      `json:"message"`
	Code    string      `json:"code,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type BaseHandler struct {
	logger utils.Logger
}

func NewBaseHandler(logger utils.Logger) BaseHandler {
	return BaseHandler{logger: logger}
}

func (h *BaseHandler) log(c *gin.Context) utils.Logger {
	return utils.FromGin(c, h.logger)
}

func (h *BaseHandler) LogRequest(c *gin.Context, msg string, args ...any) {
	args = append(args, "method", c.Request.Method, "path", c.FullPath())
	h.log(c).Info(msg, args...)
}

func (h *BaseHandler) LogError(c *gin.Context, err error, msg string, args ...any) {
	args = append(args, "error", err)
	h.log(c).Error(msg, args...)
}

// parseIDParam writes a 400 and returns 0 when the parameter is not a positive id
func (h *BaseHandler) parseIDParam(c *gin.Context, name string) uint {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 || id > math.MaxUint32 {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: fmt.Sprintf("Invalid %s", name),
			Details: raw,
		})
		return 0
	}
	return uint(id)
}

// currentUserID writes a 401 when the request carries no authenticated user
func (h *BaseHandler) currentUserID(c *gin.Context) (string, bool) {
	userID, err := GetUserIDFromContext(c)
	if err != nil || userID == "" {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "User not authenticated",
		})
		return "", false
	}
	return userID, true
}

func (h *BaseHandler) handleServiceError(c *gin.Context, err error) {
	var (
		validationErrs services.ValidationErrors
		quotaErr       *services.QuotaExhaustedError
		rateErr        *services.RateLimitError
		permErr        *services.PermissionError
		ruleErr        *services.BusinessRuleError
	)

	switch {
	case errors.As(err, &validationErrs):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Code:    "validation_failed",
			Details: validationErrs,
		})
	case errors.As(err, &quotaErr):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Attempt quota exhausted",
			Code:    "quota_exhausted",
			Details: gin.H{"remaining_attempts": quotaErr.Remaining},
		})
	case errors.Is(err, services.ErrQuotaExhausted):
		c.JSON(http.StatusConflict, ErrorResponse{Message: "Attempt quota exhausted", Code: "quota_exhausted"})
	case errors.As(err, &rateErr):
		seconds := int(math.Ceil(rateErr.RetryAfter.Seconds()))
		if seconds < 1 {
			seconds = 1
		}
		c.Header("Retry-After", strconv.Itoa(seconds))
		c.JSON(http.StatusTooManyRequests, ErrorResponse{Message: "Too many admission requests", Code: "rate_limited"})
	case errors.Is(err, services.ErrRateLimited):
		c.JSON(http.StatusTooManyRequests, ErrorResponse{Message: "Too many admission requests", Code: "rate_limited"})
	case errors.Is(err, services.ErrAssessmentNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Message: "Assessment not found", Code: "not_found"})
	case errors.Is(err, services.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Message: "Session not found", Code: "session_not_found"})
	case errors.Is(err, services.ErrResultNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Message: "Result not found", Code: "result_not_found"})
	case errors.Is(err, services.ErrPaymentRequired):
		c.JSON(http.StatusPaymentRequired, ErrorResponse{Message: "Payment required", Code: "payment_required"})
	case errors.Is(err, services.ErrPurchaseRequired):
		c.JSON(http.StatusForbidden, ErrorResponse{Message: "Purchase required", Code: "purchase_required"})
	case errors.Is(err, services.ErrNoQuestionsAvailable):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Message: "No questions available", Code: "no_questions"})
	case errors.Is(err, services.ErrSessionClosed):
		c.JSON(http.StatusConflict, ErrorResponse{Message: "Session already closed", Code: "session_closed"})
	case errors.Is(err, services.ErrCertificatePending):
		c.JSON(http.StatusAccepted, ErrorResponse{Message: "Certificate is being issued", Code: "certificate_pending"})
	case errors.Is(err, services.ErrCertificateMissing):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Certificate artifact missing",
			Code:    "certificate_missing",
			Details: "POST to the same path to regenerate it",
		})
	case errors.Is(err, services.ErrCertificateNotEligible):
		c.JSON(http.StatusConflict, ErrorResponse{Message: "Result is not eligible for a certificate", Code: "not_eligible"})
	case errors.As(err, &permErr):
		c.JSON(http.StatusForbidden, ErrorResponse{Message: "Access denied", Code: "forbidden", Details: permErr.Reason})
	case errors.As(err, &ruleErr):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Message: ruleErr.Message, Code: ruleErr.Rule, Details: ruleErr.Context})
	default:
		h.LogError(c, err, "Unhandled service error")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Message: "Internal server error"})
	}
}
