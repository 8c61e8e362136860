package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"reservation-service/internal/models"
	"reservation-service/internal/service"
	"reservation-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler contains HTTP handlers
type Handler struct {
	coordinator *service.OrderCoordinator
	inventory   *service.InventoryService
}

// NewHandler creates a new HTTP handler
func NewHandler(coordinator *service.OrderCoordinator, inventory *service.InventoryService) *Handler {
	return &Handler{
		coordinator: coordinator,
		inventory:   inventory,
	}
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
		orders := v1.Group("/orders")
		orders.Use(userIdentity())
		{
			orders.POST("", h.createOrder)
			orders.GET("", h.listOrders)
			orders.GET("/:id", h.getOrder)
			orders.POST("/:id/cancel", h.cancelOrder)
		}

		v1.POST("/inventory", h.createInventory)
		v1.GET("/inventory", h.listInventory)
		v1.GET("/inventory/:productId", h.getInventory)
		v1.GET("/inventory/:productId/availability", h.checkAvailability)
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

// createOrder handles order creation
func (h *Handler) createOrder(c *gin.Context) {
	var req service.CreateOrderRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	resp, err := h.coordinator.CreateOrder(c.Request.Context(), callerID(c), &req)
	if err != nil {
		status, msg := orderErrorStatus(err)
		c.JSON(status, gin.H{"error": msg, "details": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// cancelOrder requests asynchronous cancellation of a pending order
func (h *Handler) cancelOrder(c *gin.Context) {
	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}

	if err := h.coordinator.CancelOrder(c.Request.Context(), callerID(c), orderID); err != nil {
		status, msg := orderErrorStatus(err)
		c.JSON(status, gin.H{"error": msg, "details": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"order_id": orderID, "status": "cancellation requested"})
}

// getOrder handles get order by ID
func (h *Handler) getOrder(c *gin.Context) {
	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}

	order, err := h.coordinator.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		status, msg := orderErrorStatus(err)
		c.JSON(status, gin.H{"error": msg, "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, order)
}

// listOrders lists the caller's orders
func (h *Handler) listOrders(c *gin.Context) {
	orders, err := h.coordinator.ListUserOrders(c.Request.Context(), callerID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list orders", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

type createInventoryRequest struct {
	ProductID int64  `json:"product_id" binding:"required"`
	Name      string `json:"name" binding:"required"`
	Quantity  int    `json:"quantity" binding:"min=0"`
}

// createInventory seeds the stock record for a product
func (h *Handler) createInventory(c *gin.Context) {
	var req createInventoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	inv := &models.Inventory{
		ProductID: req.ProductID,
		Name:      req.Name,
		Quantity:  req.Quantity,
	}

	if err := h.inventory.CreateInventory(c.Request.Context(), inv); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create inventory", "details": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, inv)
}

// getInventory retrieves stock counters for a product
func (h *Handler) getInventory(c *gin.Context) {
	productID, err := strconv.ParseInt(c.Param("productId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product ID"})
		return
	}

	inv, err := h.inventory.GetInventory(c.Request.Context(), productID)
	if err != nil {
		if errors.Is(err, models.ErrProductNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get inventory", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"product_id": inv.ProductID,
		"name":       inv.Name,
		"quantity":   inv.Quantity,
		"reserved":   inv.Reserved,
		"available":  inv.Available(),
	})
}

// checkAvailability reports whether the requested quantity is available
func (h *Handler) checkAvailability(c *gin.Context) {
	productID, err := strconv.ParseInt(c.Param("productId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product ID"})
		return
	}

	qty, err := strconv.Atoi(c.DefaultQuery("quantity", "1"))
	if err != nil || qty < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid quantity"})
		return
	}

	available, err := h.inventory.CheckAvailability(c.Request.Context(), productID, qty)
	if err != nil {
		if errors.Is(err, models.ErrProductNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check availability", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"product_id": productID,
		"quantity":   qty,
		"available":  available,
	})
}

// listInventory lists all stock records
func (h *Handler) listInventory(c *gin.Context) {
	invs, err := h.inventory.ListInventory(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list inventory", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"inventory": invs})
}

// orderErrorStatus maps coordinator errors onto HTTP statuses, keeping
// business rejections distinguishable from transient infrastructure
// failures so clients know whether a retry is meaningful.
func orderErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, models.ErrInsufficientStock):
		return http.StatusConflict, "Insufficient stock"
	case errors.Is(err, models.ErrLockTimeout):
		return http.StatusServiceUnavailable, "Product busy, please retry"
	case errors.Is(err, models.ErrOrderNotFound):
		return http.StatusNotFound, "Order not found"
	case errors.Is(err, models.ErrProductNotFound):
		return http.StatusNotFound, "Product not found"
	case errors.Is(err, models.ErrOrderNotCancellable):
		return http.StatusConflict, "Order is not cancellable"
	default:
		return http.StatusInternalServerError, "Internal error"
	}
}

// userIdentity requires the caller identity resolved upstream by the
// gateway. Identity travels as an explicit value, never ambient state.
func userIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := strconv.ParseInt(c.GetHeader("X-User-ID"), 10, 64)
		if err != nil || userID <= 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing or invalid X-User-ID header"})
			return
		}
		c.Set("user_id", userID)
		c.Next()
	}
}

func callerID(c *gin.Context) int64 {
	return c.GetInt64("user_id")
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
