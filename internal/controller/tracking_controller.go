package controller

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront-orders/internal/dto"
	"storefront-orders/internal/middleware"
	"storefront-orders/internal/model"
	"storefront-orders/internal/service"
)

type Dashboards interface {
	Dashboard(ctx context.Context, actor model.Actor) (*service.Dashboard, error)
	Metrics(ctx context.Context, actor model.Actor, days int) (*service.Metrics, error)
	PendingUpdates(ctx context.Context, actor model.Actor, hours int) (*service.PendingUpdates, error)
}

type Automation interface {
	RunAutomatedUpdates(ctx context.Context, actor model.Actor) (*service.SweepResult, error)
	SimulateTracking(ctx context.Context, actor model.Actor, orderID string) (*service.Simulation, error)
}

type TrackingController struct {
	status     Statuses
	dashboard  Dashboards
	automation Automation
}

func NewTrackingController(status Statuses, dashboard Dashboards, automation Automation) *TrackingController {
	return &TrackingController{status: status, dashboard: dashboard, automation: automation}
}

// GET /api/tracking/order/:orderId
func (ctl *TrackingController) TrackOrder(c *gin.Context) {
	v, err := ctl.status.TrackOrder(c.Request.Context(), middleware.ActorFrom(c), c.Param("orderId"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, v)
}

// GET /api/tracking/:trackingNumber (public)
func (ctl *TrackingController) ByTrackingNumber(c *gin.Context) {
	v, err := ctl.status.TrackByNumber(c.Request.Context(), c.Param("trackingNumber"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, v)
}

// GET /api/tracking/dashboard
func (ctl *TrackingController) Dashboard(c *gin.Context) {
	d, err := ctl.dashboard.Dashboard(c.Request.Context(), middleware.ActorFrom(c))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, d)
}

// GET /api/tracking/metrics?days=
func (ctl *TrackingController) Metrics(c *gin.Context) {
	days, err := intQuery(c, "days")
	if err != nil {
		fail(c, err)
		return
	}
	m, err := ctl.dashboard.Metrics(c.Request.Context(), middleware.ActorFrom(c), days)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, m)
}

// GET /api/tracking/pending-updates?hours=
func (ctl *TrackingController) PendingUpdates(c *gin.Context) {
	hours, err := intQuery(c, "hours")
	if err != nil {
		fail(c, err)
		return
	}
	p, err := ctl.dashboard.PendingUpdates(c.Request.Context(), middleware.ActorFrom(c), hours)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, p)
}

// PATCH /api/tracking/orders/bulk-status
func (ctl *TrackingController) BulkStatus(c *gin.Context) {
	var req dto.BulkStatusRequest
	if !bind(c, &req) {
		return
	}
	res, err := ctl.status.BulkUpdateStatus(c.Request.Context(), middleware.ActorFrom(c), req.OrderIDs, req.Update())
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, res)
}

// POST /api/tracking/automated-updates (admin)
func (ctl *TrackingController) AutomatedUpdates(c *gin.Context) {
	res, err := ctl.automation.RunAutomatedUpdates(c.Request.Context(), middleware.ActorFrom(c))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, res)
}

// GET /api/tracking/order/:orderId/simulate
func (ctl *TrackingController) Simulate(c *gin.Context) {
	sim, err := ctl.automation.SimulateTracking(c.Request.Context(), middleware.ActorFrom(c), c.Param("orderId"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, sim)
}
