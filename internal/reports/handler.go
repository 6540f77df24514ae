package reports

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"carbonmrv/mrv-backend/internal/auth"
	"carbonmrv/mrv-backend/internal/reports/export"
)

// Handler handles HTTP requests for reporting operations
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a new reports handler
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers reporting routes. Reports are limited to verifiers and admins.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	reports := router.Group("/reports", auth.RequireRole(auth.RoleVerifier, auth.RoleAdmin))
	{
		reports.GET("/export", h.exportReport)
		reports.POST("", h.generateReport)
		reports.GET("", h.listReports)
		reports.GET("/:id/download", h.downloadReport)
	}
}

// exportReport handles GET /api/v1/reports/export
func (h *Handler) exportReport(c *gin.Context) {
	format := c.DefaultQuery("format", export.FormatCSV)
	exporter, err := export.ForFormat(format)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	filter, ok := parseRowFilter(c)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := h.service.Export(c.Request.Context(), format, filter, &buf); err != nil {
		h.logger.Error("Failed to export report", zap.String("format", format), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to export report"})
		return
	}

	filename := fmt.Sprintf("carbonmrv-report-%s.%s", time.Now().Format("2006-01-02"), exporter.Extension())
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, exporter.ContentType(), buf.Bytes())
}

// generateReport handles POST /api/v1/reports
func (h *Handler) generateReport(c *gin.Context) {
	principal, _ := auth.CurrentPrincipal(c)

	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	generated, err := h.service.Generate(c.Request.Context(), principal, req)
	if err != nil {
		if errors.Is(err, export.ErrUnsupportedFormat) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("Failed to generate report", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate report"})
		return
	}
	c.JSON(http.StatusCreated, generated)
}

// listReports handles GET /api/v1/reports
func (h *Handler) listReports(c *gin.Context) {
	reports, err := h.service.ListReports(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list reports", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list reports"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reports": reports})
}

// downloadReport handles GET /api/v1/reports/:id/download
func (h *Handler) downloadReport(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid report ID"})
		return
	}

	generated, err := h.service.DownloadURL(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("Failed to presign report", zap.String("report_id", id.String()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create download link"})
		return
	}
	c.JSON(http.StatusOK, generated)
}

func parseRowFilter(c *gin.Context) (RowFilter, bool) {
	filter := RowFilter{Status: c.Query("status")}

	if value := c.Query("farmer_id"); value != "" {
		id, err := uuid.Parse(value)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid farmer_id"})
			return filter, false
		}
		filter.FarmerID = &id
	}
	for _, value := range c.QueryArray("submission_id") {
		id, err := uuid.Parse(value)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid submission_id"})
			return filter, false
		}
		filter.SubmissionIDs = append(filter.SubmissionIDs, id)
	}
	for param, target := range map[string]**time.Time{"from": &filter.From, "to": &filter.To} {
		if value := c.Query(param); value != "" {
			t, err := time.Parse("2006-01-02", value)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + param + " date, expected YYYY-MM-DD"})
				return filter, false
			}
			if param == "to" {
				// inclusive of the whole day
				t = t.AddDate(0, 0, 1)
			}
			*target = &t
		}
	}
	return filter, true
}
