package appointment

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/booking-api/internal/handler"
	"github.com/jwalitptl/booking-api/internal/middleware"
	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/service/appointment"
)

const (
	defaultQRSize = 256
	maxQRSize     = 1024
)

type Handler struct {
	service *appointment.Service
}

func NewHandler(service *appointment.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Book(c *gin.Context) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"status": "error", "message": "authentication required"})
		return
	}

	var req model.BookAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
		return
	}

	appt, err := h.service.Book(c.Request.Context(), actor, &req)
	if err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"status": "success", "data": appt})
}

func (h *Handler) ListOwn(c *gin.Context) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"status": "error", "message": "authentication required"})
		return
	}

	appts, err := h.service.ListOwn(c.Request.Context(), actor)
	if err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "data": appts})
}

func (h *Handler) Get(c *gin.Context) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"status": "error", "message": "authentication required"})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid appointment ID"})
		return
	}

	appt, err := h.service.Get(c.Request.Context(), actor, id)
	if err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "data": appt})
}

func (h *Handler) Cancel(c *gin.Context) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"status": "error", "message": "authentication required"})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid appointment ID"})
		return
	}

	if err := h.service.Cancel(c.Request.Context(), actor, id); err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "appointment cancelled"})
}

// QRCode streams the check-in QR as a PNG.
func (h *Handler) QRCode(c *gin.Context) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"status": "error", "message": "authentication required"})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid appointment ID"})
		return
	}

	size := defaultQRSize
	if raw := c.Query("size"); raw != "" {
		size, err = strconv.Atoi(raw)
		if err != nil || size < 64 || size > maxQRSize {
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid size"})
			return
		}
	}

	png, err := h.service.QRCode(c.Request.Context(), actor, id, size)
	if err != nil {
		handler.Error(c, err)
		return
	}

	c.Data(http.StatusOK, "image/png", png)
}

func (h *Handler) AvailableDates(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "success", "data": h.service.AvailableDates()})
}

func (h *Handler) AvailableTimes(c *gin.Context) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"status": "error", "message": "authentication required"})
		return
	}

	date := c.Query("date")
	if date == "" {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "date is required"})
		return
	}

	availability, err := h.service.Availability(c.Request.Context(), actor, date)
	if err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "data": availability})
}

// Schedule returns one day's appointments with per-status totals.
func (h *Handler) Schedule(c *gin.Context) {
	date := c.Query("date")
	if date == "" {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "date is required"})
		return
	}

	appts, stats, err := h.service.Schedule(c.Request.Context(), date)
	if err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "data": gin.H{
		"appointments": appts,
		"stats":        stats,
	}})
}

func (h *Handler) Receive(c *gin.Context) {
	h.transition(c, h.service.MarkReceived, "patient received")
}

func (h *Handler) NoShow(c *gin.Context) {
	h.transition(c, h.service.MarkNoShow, "appointment marked as no-show")
}

func (h *Handler) transition(c *gin.Context, fn func(ctx context.Context, actor model.Actor, id uuid.UUID) error, message string) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"status": "error", "message": "authentication required"})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid appointment ID"})
		return
	}

	if err := fn(c.Request.Context(), actor, id); err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "message": message})
}

func (h *Handler) CheckIn(c *gin.Context) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"status": "error", "message": "authentication required"})
		return
	}

	var req model.CheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
		return
	}

	appt, err := h.service.CheckIn(c.Request.Context(), actor, &req)
	if err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "data": appt})
}

// RegisterRoutes mounts the patient-facing endpoints.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/availability/dates", h.AvailableDates)
	r.GET("/availability/times", h.AvailableTimes)

	appts := r.Group("/appointments")
	{
		appts.POST("", h.Book)
		appts.GET("", h.ListOwn)
		appts.GET("/:id", h.Get)
		appts.POST("/:id/cancel", h.Cancel)
		appts.GET("/:id/qr", h.QRCode)
	}
}

// RegisterAdminRoutes mounts the staff endpoints.
func (h *Handler) RegisterAdminRoutes(r *gin.RouterGroup) {
	r.GET("/schedule", h.Schedule)
	r.POST("/checkin", h.CheckIn)

	appts := r.Group("/appointments")
	{
		appts.POST("", h.Book)
		appts.POST("/:id/receive", h.Receive)
		appts.POST("/:id/no-show", h.NoShow)
		appts.POST("/:id/cancel", h.Cancel)
	}
}
