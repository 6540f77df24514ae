package farms

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"carbonmrv/mrv-backend/internal/auth"
)

type Handler struct {
	service *Service
	logger  *zap.Logger
}

func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes registers farm routes. Every route requires a registered profile.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	farms := rg.Group("/farms", auth.RequireRole())
	{
		farms.POST("", h.CreateFarm)
		farms.GET("", h.ListFarms)
		farms.GET("/:id", h.GetFarm)
		farms.PUT("/:id", h.UpdateFarm)
		farms.DELETE("/:id", h.DeleteFarm)
	}
}

func (h *Handler) CreateFarm(c *gin.Context) {
	principal, _ := auth.CurrentPrincipal(c)

	var req CreateFarmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	farm, err := h.service.CreateFarm(c.Request.Context(), principal, req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, farm)
}

func (h *Handler) ListFarms(c *gin.Context) {
	principal, _ := auth.CurrentPrincipal(c)

	filter := FarmFilter{CropType: c.Query("crop_type")}
	if farmerID := c.Query("farmer_id"); farmerID != "" {
		id, err := uuid.Parse(farmerID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid farmer_id"})
			return
		}
		filter.FarmerID = &id
	}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "20"))

	list, err := h.service.ListFarms(c.Request.Context(), principal, filter)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) GetFarm(c *gin.Context) {
	principal, _ := auth.CurrentPrincipal(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid farm ID"})
		return
	}

	farm, err := h.service.GetFarm(c.Request.Context(), principal, id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, farm)
}

func (h *Handler) UpdateFarm(c *gin.Context) {
	principal, _ := auth.CurrentPrincipal(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid farm ID"})
		return
	}

	var req UpdateFarmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	farm, err := h.service.UpdateFarm(c.Request.Context(), principal, id, req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, farm)
}

func (h *Handler) DeleteFarm(c *gin.Context) {
	principal, _ := auth.CurrentPrincipal(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid farm ID"})
		return
	}

	if err := h.service.DeleteFarm(c.Request.Context(), principal, id); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, ErrInvalidFarm):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		h.logger.Error("Farm request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
