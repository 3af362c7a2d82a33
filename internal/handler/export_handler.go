package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mundodelosninos/mundo-de-los-ninos-sub001/internal/models"
	"github.com/mundodelosninos/mundo-de-los-ninos-sub001/internal/service"
	appErrors "github.com/mundodelosninos/mundo-de-los-ninos-sub001/pkg/errors"
	"github.com/mundodelosninos/mundo-de-los-ninos-sub001/pkg/response"
)

// ExportHandler wires HTTP endpoints to the export service.
type ExportHandler struct {
	service *service.ExportService
}

// NewExportHandler creates a new handler.
func NewExportHandler(svc *service.ExportService) *ExportHandler {
	return &ExportHandler{service: svc}
}

// AttendanceReport godoc
// @Summary Export attendance report
// @Description Render an attendance report as CSV or PDF, scoped like the list endpoint
// @Tags Exports
// @Produce octet-stream
// @Param format query string false "Output format (csv or pdf)" default(csv)
// @Param student_id query string false "Filter by student"
// @Param group_id query string false "Filter by group"
// @Param date_from query string false "Start date (YYYY-MM-DD)"
// @Param date_to query string false "End date (YYYY-MM-DD)"
// @Success 200 {file} binary
// @Failure 400 {object} response.Envelope
// @Router /exports/attendance [get]
func (h *ExportHandler) AttendanceReport(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var filter models.AttendanceFilter
	filter.StudentID = c.Query("student_id")
	filter.GroupID = c.Query("group_id")
	filter.DateFrom = parseDateQuery(c, "date_from")
	filter.DateTo = parseDateQuery(c, "date_to")
	if v := c.Query("status"); v != "" {
		status := models.AttendanceStatus(v)
		filter.Status = &status
	}

	format := service.ExportFormat(c.DefaultQuery("format", string(service.ExportCSV)))

	result, err := h.service.AttendanceReport(c.Request.Context(), principal, filter, format)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	c.Data(http.StatusOK, result.ContentType, result.Data)
}
