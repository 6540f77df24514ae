package submissions

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"carbonmrv/mrv-backend/internal/auth"
	"carbonmrv/mrv-backend/internal/estimation"
	"carbonmrv/mrv-backend/internal/farms"
)

type Handler struct {
	service *Service
	logger  *zap.Logger
}

func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes registers submission routes. The group must be behind auth.Middleware.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	submissions := rg.Group("/submissions", auth.RequireRole())
	{
		submissions.POST("", h.Submit)
		submissions.GET("", h.ListSubmissions)
		submissions.GET("/map", auth.RequireRole(auth.RoleVerifier, auth.RoleAdmin), h.Map)
		submissions.GET("/:id", h.GetSubmission)
		submissions.GET("/:id/history", h.History)
		submissions.POST("/:id/review", auth.RequireRole(auth.RoleVerifier, auth.RoleAdmin), h.Review)
		submissions.POST("/:id/reestimate", h.Reestimate)
	}
}

func (h *Handler) Submit(c *gin.Context) {
	principal, _ := auth.CurrentPrincipal(c)

	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	submission, err := h.service.Submit(c.Request.Context(), principal, req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, submission)
}

func (h *Handler) ListSubmissions(c *gin.Context) {
	principal, _ := auth.CurrentPrincipal(c)

	filter, ok := parseFilter(c)
	if !ok {
		return
	}

	list, err := h.service.ListSubmissions(c.Request.Context(), principal, filter)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) Map(c *gin.Context) {
	principal, _ := auth.CurrentPrincipal(c)

	filter, ok := parseFilter(c)
	if !ok {
		return
	}

	fc, err := h.service.Map(c.Request.Context(), principal, filter)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, fc)
}

func (h *Handler) GetSubmission(c *gin.Context) {
	principal, _ := auth.CurrentPrincipal(c)

	id, ok := parseID(c)
	if !ok {
		return
	}

	submission, err := h.service.GetSubmission(c.Request.Context(), principal, id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, submission)
}

func (h *Handler) History(c *gin.Context) {
	principal, _ := auth.CurrentPrincipal(c)

	id, ok := parseID(c)
	if !ok {
		return
	}

	changes, err := h.service.History(c.Request.Context(), principal, id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": changes})
}

func (h *Handler) Review(c *gin.Context) {
	principal, _ := auth.CurrentPrincipal(c)

	id, ok := parseID(c)
	if !ok {
		return
	}

	var req ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	submission, err := h.service.Review(c.Request.Context(), principal, id, req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, submission)
}

func (h *Handler) Reestimate(c *gin.Context) {
	principal, _ := auth.CurrentPrincipal(c)

	id, ok := parseID(c)
	if !ok {
		return
	}

	submission, err := h.service.Reestimate(c.Request.Context(), principal, id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, submission)
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid submission ID"})
		return uuid.Nil, false
	}
	return id, true
}

func parseFilter(c *gin.Context) (SubmissionFilter, bool) {
	filter := SubmissionFilter{Status: Status(c.Query("status"))}

	for param, target := range map[string]**uuid.UUID{"farm_id": &filter.FarmID, "farmer_id": &filter.FarmerID} {
		if value := c.Query(param); value != "" {
			id, err := uuid.Parse(value)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + param})
				return filter, false
			}
			*target = &id
		}
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

	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "20"))
	return filter, true
}

func (h *Handler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, farms.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, ErrForbidden), errors.Is(err, farms.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, ErrInvalidDecision):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, estimation.ErrInvalidInput):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		h.logger.Error("Submission request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
