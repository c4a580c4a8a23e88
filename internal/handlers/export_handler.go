package handlers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/skill-assessment-service/internal/services"
	"github.com/SAP-F-2025/skill-assessment-service/internal/utils"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type ExportHandler struct {
	BaseHandler
	exports services.ExportService
}

func NewExportHandler(exports services.ExportService, logger utils.Logger) *ExportHandler {
	return &ExportHandler{
		BaseHandler: NewBaseHandler(logger),
		exports:     exports,
	}
}

// ExportResults downloads every result of an assessment as a spreadsheet
// @Summary Export results
// @Tags exports
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param id path uint true "Assessment ID"
// @Success 200 {file} binary
// @Failure 404 {object} ErrorResponse
// @Router /assessments/{id}/results/export [get]
func (h *ExportHandler) ExportResults(c *gin.Context) {
	h.export(c, "results", h.exports.ExportResults)
}

// ExportViolations downloads the violation log of an assessment as a spreadsheet
// @Summary Export violations
// @Tags exports
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param id path uint true "Assessment ID"
// @Success 200 {file} binary
// @Failure 404 {object} ErrorResponse
// @Router /assessments/{id}/violations/export [get]
func (h *ExportHandler) ExportViolations(c *gin.Context) {
	h.export(c, "violations", h.exports.ExportViolations)
}

// export buffers the workbook so a failure can still produce a JSON error
func (h *ExportHandler) export(c *gin.Context, kind string, write func(ctx context.Context, assessmentID uint, w io.Writer) error) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Exporting "+kind, "assessment_id", id)

	var buf bytes.Buffer
	if err := write(c.Request.Context(), id, &buf); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fmt.Sprintf("assessment-%d-%s.xlsx", id, kind)))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
