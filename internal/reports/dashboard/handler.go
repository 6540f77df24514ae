package dashboard

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"carbonmrv/mrv-backend/internal/auth"
)

type Handler struct {
	aggregator *Aggregator
	logger     *zap.Logger
}

func NewHandler(aggregator *Aggregator, logger *zap.Logger) *Handler {
	return &Handler{aggregator: aggregator, logger: logger}
}

// RegisterRoutes registers dashboard routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/dashboard/stats", auth.RequireRole(), h.GetStats)
}

// GetStats returns the caller's dashboard. Verifiers and admins get platform-wide
// figures unless they ask for scope=mine.
func (h *Handler) GetStats(c *gin.Context) {
	principal, _ := auth.CurrentPrincipal(c)

	var (
		stats *Stats
		err   error
	)
	if principal.Role.CanReview() && c.Query("scope") != "mine" {
		stats, err = h.aggregator.OverallStats(c.Request.Context())
	} else {
		stats, err = h.aggregator.FarmerStats(c.Request.Context(), principal.FarmerID)
	}
	if err != nil {
		h.logger.Error("Failed to compute dashboard stats", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute stats"})
		return
	}
	c.JSON(http.StatusOK, stats)
}
