// Package router assembles the HTTP API.
package router

import (
	"log/slog"
	"net/http"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"

	"storefront-orders/internal/controller"
	"storefront-orders/internal/middleware"
	"storefront-orders/internal/model"
)

type Handlers struct {
	Orders   *controller.OrderController
	Tracking *controller.TrackingController
	Audit    *controller.AuditController
}

// New registers every route under /api plus the health probe.
func New(h Handlers, auth middleware.TokenValidator, logger *slog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.RequestLogger(logger),
		gzip.Gzip(gzip.DefaultCompression),
	)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")

	// public lookups
	api.GET("/orders/number/:orderNumber", h.Orders.ByNumber)
	api.GET("/tracking/:trackingNumber", h.Tracking.ByTrackingNumber)

	secured := api.Group("/")
	secured.Use(middleware.Auth(auth))

	orders := secured.Group("/orders")
	orders.POST("", h.Orders.Create)
	orders.GET("", middleware.AdminOnly(), h.Orders.List)
	orders.GET("/mine", h.Orders.Mine)
	orders.GET("/:id", h.Orders.Get)
	orders.PATCH("/:id/status", middleware.RequireRole(model.RoleSeller), h.Orders.UpdateStatus)
	orders.POST("/:id/cancel", h.Orders.Cancel)
	orders.POST("/:id/refund", h.Orders.RequestRefund)
	orders.PATCH("/:id/refunds/:refundId", middleware.AdminOnly(), h.Orders.ResolveRefund)

	tracking := secured.Group("/tracking")
	tracking.GET("/order/:orderId", h.Tracking.TrackOrder)
	tracking.GET("/order/:orderId/simulate", h.Tracking.Simulate)
	tracking.GET("/dashboard", middleware.RequireRole(model.RoleSeller), h.Tracking.Dashboard)
	tracking.GET("/metrics", middleware.RequireRole(model.RoleSeller), h.Tracking.Metrics)
	tracking.GET("/pending-updates", middleware.RequireRole(model.RoleSeller), h.Tracking.PendingUpdates)
	tracking.PATCH("/orders/bulk-status", middleware.RequireRole(model.RoleSeller), h.Tracking.BulkStatus)
	tracking.POST("/automated-updates", middleware.AdminOnly(), h.Tracking.AutomatedUpdates)

	audit := secured.Group("/audit")
	audit.Use(middleware.AdminOnly())
	audit.GET("/orders/:id", h.Audit.ListByOrder)

	return r
}
