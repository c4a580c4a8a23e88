package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/skill-assessment-service/internal/services"
	"github.com/SAP-F-2025/skill-assessment-service/internal/utils"
)

// LiveBridge serves a proctored session over a websocket
type LiveBridge interface {
	Handle(w http.ResponseWriter, r *http.Request, assessmentID uint, userID string) error
}

// SessionHandler covers the test-taker side of an assessment: admission, submission,
// violation reports and results.
type SessionHandler struct {
	BaseHandler
	admission  services.AdmissionService
	submission services.SubmissionService
	violations services.ViolationService
	live       LiveBridge
}

func NewSessionHandler(
	admission services.AdmissionService,
	submission services.SubmissionService,
	violations services.ViolationService,
	live LiveBridge,
	logger utils.Logger,
) *SessionHandler {
	return &SessionHandler{
		BaseHandler: NewBaseHandler(logger),
		admission:   admission,
		submission:  submission,
		violations:  violations,
		live:        live,
	}
}

// Admit runs the admission gate and opens a session
// @Summary Start an assessment session
// @Tags sessions
// @Produce json
// @Param id path uint true "Assessment ID"
// @Success 201 {object} services.AdmissionResponse
// @Failure 402 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Failure 429 {object} ErrorResponse
// @Router /assessments/{id}/sessions [post]
func (h *SessionHandler) Admit(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Admitting user", "assessment_id", id, "user_id", userID)

	resp, err := h.admission.Admit(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// Quota reports the caller's attempt quota for an assessment
// @Summary Get attempt quota
// @Tags sessions
// @Produce json
// @Param id path uint true "Assessment ID"
// @Success 200 {object} services.QuotaResponse
// @Failure 404 {object} ErrorResponse
// @Router /assessments/{id}/quota [get]
func (h *SessionHandler) Quota(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	resp, err := h.admission.Quota(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Submit grades and closes a session. Repeated submissions return the stored result.
// @Summary Submit a session
// @Tags sessions
// @Accept json
// @Produce json
// @Param id path uint true "Assessment ID"
// @Param submission body services.SubmitRequest true "Answers"
// @Success 200 {object} services.SubmissionResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /assessments/{id}/submit [post]
func (h *SessionHandler) Submit(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	var req services.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	h.LogRequest(c, "Submitting session", "assessment_id", id, "session_id", req.SessionID, "reason", req.Reason)

	resp, err := h.submission.Submit(c.Request.Context(), id, userID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ReportViolation is the fire-and-forget violation report of the browser monitor
// @Summary Report an integrity violation
// @Tags sessions
// @Accept json
// @Param id path uint true "Assessment ID"
// @Param violation body services.ViolationReportRequest true "Violation"
// @Success 202
// @Failure 400 {object} ErrorResponse
// @Router /assessments/{id}/violations [post]
func (h *SessionHandler) ReportViolation(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	var req services.ViolationReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	if err := h.violations.Record(c.Request.Context(), id, userID, &req); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Status(http.StatusAccepted)
}

func (h *SessionHandler) ListSessionViolations(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	records, err := h.violations.ListBySession(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"violations": records, "total": len(records)})
}

func (h *SessionHandler) ListMyResults(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	results, err := h.submission.ListMyResults(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"results": results, "total": len(results)})
}

func (h *SessionHandler) GetResult(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	result, err := h.submission.GetResult(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// Live upgrades to the proctored websocket session. The response is owned by the bridge
// from here on.
func (h *SessionHandler) Live(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Opening live session", "assessment_id", id, "user_id", userID)

	if err := h.live.Handle(c.Writer, c.Request, id, userID); err != nil {
		h.log(c).Warn("Live session upgrade failed", "assessment_id", id, "error", err)
	}
}
