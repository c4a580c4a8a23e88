package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/skill-assessment-service/internal/services"
	"github.com/SAP-F-2025/skill-assessment-service/internal/utils"
)

type GrantHandler struct {
	BaseHandler
	grants services.GrantService
}

func NewGrantHandler(grants services.GrantService, logger utils.Logger) *GrantHandler {
	return &GrantHandler{
		BaseHandler: NewBaseHandler(logger),
		grants:      grants,
	}
}

// GrantAccess creates a grant or resets an exhausted one
// @Summary Grant premium access
// @Tags grants
// @Accept json
// @Produce json
// @Param grant body services.GrantAccessRequest true "Grant"
// @Success 200 {object} models.AttemptGrant
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /grants [post]
func (h *GrantHandler) GrantAccess(c *gin.Context) {
	var req services.GrantAccessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	h.LogRequest(c, "Granting access", "user_id", req.UserID, "assessment_id", req.AssessmentID)

	grant, err := h.grants.GrantAccess(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, grant)
}
