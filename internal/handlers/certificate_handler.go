package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/skill-assessment-service/internal/services"
	"github.com/SAP-F-2025/skill-assessment-service/internal/utils"
)

type CertificateHandler struct {
	BaseHandler
	certificates services.CertificateService
}

func NewCertificateHandler(certificates services.CertificateService, logger utils.Logger) *CertificateHandler {
	return &CertificateHandler{
		BaseHandler:  NewBaseHandler(logger),
		certificates: certificates,
	}
}

// GetCertificate streams the certificate artifact of a passing result
// @Summary Download certificate
// @Tags certificates
// @Produce png
// @Param id path uint true "Result ID"
// @Success 200 {file} binary
// @Success 202 {object} ErrorResponse "Issuance pending"
// @Failure 404 {object} ErrorResponse "Artifact missing; regenerate with POST"
// @Router /results/{id}/certificate [get]
func (h *CertificateHandler) GetCertificate(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	file, err := h.certificates.Get(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", file.FileName))
	c.Data(http.StatusOK, file.ContentType, file.Body)
}

// RegenerateCertificate re-issues the certificate under its original identity
// @Summary Regenerate certificate
// @Tags certificates
// @Accept json
// @Produce json
// @Param id path uint true "Result ID"
// @Param body body services.RegenerateCertificateRequest false "Previously issued URL"
// @Success 200 {object} services.CertificateResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /results/{id}/certificate [post]
func (h *CertificateHandler) RegenerateCertificate(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	// the body is optional
	var req services.RegenerateCertificateRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	h.LogRequest(c, "Regenerating certificate", "result_id", id)

	resp, err := h.certificates.Regenerate(c.Request.Context(), id, userID, req.ExistingURL)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
