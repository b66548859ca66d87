package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"order-workflow/internal/lifecycle"
	"order-workflow/internal/models"
	"order-workflow/internal/util"
	"order-workflow/internal/workflow"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler contains HTTP handlers
type Handler struct {
	flow *workflow.Orchestrator
}

// NewHandler creates a new HTTP handler
func NewHandler(flow *workflow.Orchestrator) *Handler {
	return &Handler{flow: flow}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/orders", h.placeOrder)
		v1.GET("/orders", h.listOrders)
		v1.GET("/orders/:id", h.getOrder)
		v1.POST("/orders/:id/confirm", h.confirmOrder)
		v1.POST("/orders/:id/pricing", h.setPricing)
		v1.POST("/orders/:id/assign", h.assignDriver)
		v1.POST("/orders/:id/delivered", h.markDelivered)
		v1.POST("/orders/:id/receipt", h.confirmReceipt)
		v1.POST("/orders/:id/cancel", h.cancelOrder)
		v1.GET("/worksheet", h.getWorksheet)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

func (h *Handler) placeOrder(c *gin.Context) {
	var req workflow.PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	order, err := h.flow.PlaceOrder(c.Request.Context(), credential(c), req)
	if err != nil {
		writeRejection(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"order": order})
}

func (h *Handler) listOrders(c *gin.Context) {
	orders, err := h.flow.ListClientOrders(c.Request.Context(), credential(c))
	if err != nil {
		writeRejection(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (h *Handler) getOrder(c *gin.Context) {
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}

	view, err := h.flow.GetOrder(c.Request.Context(), credential(c), orderID)
	if err != nil {
		writeRejection(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) confirmOrder(c *gin.Context) {
	h.transition(c, h.flow.ConfirmOrder)
}

func (h *Handler) setPricing(c *gin.Context) {
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}

	var req workflow.SetPricingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	order, warnings, err := h.flow.SetPricing(c.Request.Context(), credential(c), orderID, req)
	if err != nil {
		writeRejection(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order, "warnings": warnings})
}

func (h *Handler) assignDriver(c *gin.Context) {
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}

	var req struct {
		DriverID uuid.UUID `json:"driver_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	order, err := h.flow.AssignDriver(c.Request.Context(), credential(c), orderID, req.DriverID)
	if err != nil {
		writeRejection(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}

func (h *Handler) markDelivered(c *gin.Context) {
	h.transition(c, h.flow.MarkDelivered)
}

func (h *Handler) confirmReceipt(c *gin.Context) {
	h.transition(c, h.flow.ConfirmReceipt)
}

func (h *Handler) cancelOrder(c *gin.Context) {
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}

	var req struct {
		Reason string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	order, err := h.flow.CancelOrder(c.Request.Context(), credential(c), orderID, req.Reason)
	if err != nil {
		writeRejection(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}

func (h *Handler) getWorksheet(c *gin.Context) {
	entries, err := h.flow.GetWorksheet(c.Request.Context(), credential(c))
	if err != nil {
		writeRejection(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"worksheet": entries})
}

// transition handles the body-less single-order commands, which all share the
// same request/response shape.
func (h *Handler) transition(c *gin.Context, cmd func(ctx context.Context, credential string, orderID uuid.UUID) (*models.Order, error)) {
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}

	order, err := cmd(c.Request.Context(), credential(c), orderID)
	if err != nil {
		writeRejection(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}

func credential(c *gin.Context) string {
	return c.GetHeader("Authorization")
}

func orderIDParam(c *gin.Context) (uuid.UUID, bool) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return uuid.Nil, false
	}
	return orderID, true
}

// writeRejection maps the rejection taxonomy onto HTTP statuses, always
// echoing the kind and the order's current state so the UI can explain what
// actually happened.
func writeRejection(c *gin.Context, err error) {
	var rej *lifecycle.Rejection
	if !errors.As(err, &rej) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	status := http.StatusInternalServerError
	switch rej.Kind {
	case lifecycle.RejectUnauthenticated:
		status = http.StatusUnauthorized
	case lifecycle.RejectForbidden:
		status = http.StatusForbidden
	case lifecycle.RejectNotFound:
		status = http.StatusNotFound
	case lifecycle.RejectInvalidTransition, lifecycle.RejectConflict:
		status = http.StatusConflict
	case lifecycle.RejectPreconditionFailed, lifecycle.RejectInvalidPricing:
		status = http.StatusUnprocessableEntity
	case lifecycle.RejectRepository:
		status = http.StatusInternalServerError
	}

	body := gin.H{"kind": rej.Kind, "error": rej.Reason}
	if rej.State != "" {
		body["state"] = rej.State
	}
	c.JSON(status, body)
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
