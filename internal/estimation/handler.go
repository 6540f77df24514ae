package estimation

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler exposes the estimator as a stateless preview endpoint
type Handler struct {
	estimator *Estimator
	logger    *zap.Logger
}

// NewHandler creates a new estimation handler
func NewHandler(estimator *Estimator, logger *zap.Logger) *Handler {
	return &Handler{
		estimator: estimator,
		logger:    logger,
	}
}

// RegisterRoutes registers the estimate route
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/estimate", h.estimate)
}

// estimate handles POST /api/v1/estimate
func (h *Handler) estimate(c *gin.Context) {
	var input EstimationInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.estimator.Estimate(input)
	if err != nil {
		if errors.Is(err, ErrInvalidInput) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("Failed to estimate", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to estimate"})
		return
	}

	c.JSON(http.StatusOK, result)
}
