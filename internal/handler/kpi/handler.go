package kpi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/booking-api/internal/handler"
	"github.com/jwalitptl/booking-api/internal/service/kpi"
)

type Handler struct {
	service *kpi.Service
}

func NewHandler(service *kpi.Service) *Handler {
	return &Handler{service: service}
}

// Snapshot serves the dashboard aggregate, cached within the refresh
// interval.
func (h *Handler) Snapshot(c *gin.Context) {
	snapshot, err := h.service.Snapshot(c.Request.Context())
	if err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "data": snapshot})
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/kpis", h.Snapshot)
}
