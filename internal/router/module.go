package router

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"

	"storefront-orders/internal/audit"
	"storefront-orders/internal/controller"
	"storefront-orders/internal/service"
)

// Module provides the controllers and the gin engine.
var Module = fx.Options(
	fx.Provide(
		func(o *service.OrderService, s *service.StatusService, r *service.RefundService) *controller.OrderController {
			return controller.NewOrderController(o, s, r)
		},
		func(s *service.StatusService, d *service.DashboardService, a *service.AutomationService) *controller.TrackingController {
			return controller.NewTrackingController(s, d, a)
		},
		func(r audit.Reader) *controller.AuditController {
			return controller.NewAuditController(r)
		},
		newEngine,
	),
)

type engineParams struct {
	fx.In

	Orders   *controller.OrderController
	Tracking *controller.TrackingController
	Audit    *controller.AuditController
	Auth     *service.AuthService
	Logger   *slog.Logger
}

func newEngine(p engineParams) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	return New(Handlers{Orders: p.Orders, Tracking: p.Tracking, Audit: p.Audit}, p.Auth, p.Logger)
}
