package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/autodock-deploy/services"
)

// StatsHandler exposes dashboard summary counts
type StatsHandler struct {
	stats *services.StatsService
}

func NewStatsHandler(stats *services.StatsService) *StatsHandler {
	return &StatsHandler{stats: stats}
}

// Summary returns system-wide deployment, instance, and application counts
func (h *StatsHandler) Summary(c *gin.Context) {
	summary, err := h.stats.Summary()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  "error",
			"message": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, summary)
}
