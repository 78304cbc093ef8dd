package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"storefront-orders/internal/apperr"
	"storefront-orders/internal/dto"
	"storefront-orders/internal/middleware"
	"storefront-orders/internal/model"
	"storefront-orders/internal/service"
)

type Checkout interface {
	CreateOrder(ctx context.Context, actor model.Actor, in service.CreateOrderInput) (*model.Order, error)
}

type Statuses interface {
	UpdateStatus(ctx context.Context, actor model.Actor, orderID string, upd service.StatusUpdate) (*model.Order, error)
	BulkUpdateStatus(ctx context.Context, actor model.Actor, orderIDs []string, upd service.StatusUpdate) (*service.BulkResult, error)
	CancelOrder(ctx context.Context, actor model.Actor, orderID, reason string) (*model.Order, error)
	GetOrder(ctx context.Context, actor model.Actor, orderID string) (*model.Order, error)
	ListOrders(ctx context.Context, actor model.Actor, q service.ListQuery) (*service.OrderPage, error)
	MyOrders(ctx context.Context, actor model.Actor, page, limit int) (*service.OrderPage, error)
	TrackOrder(ctx context.Context, actor model.Actor, orderID string) (*service.TrackingView, error)
	TrackByNumber(ctx context.Context, trackingNumber string) (*service.PublicOrder, error)
	GetByOrderNumber(ctx context.Context, orderNumber string) (*service.PublicOrder, error)
}

type Refunds interface {
	RequestRefund(ctx context.Context, actor model.Actor, orderID string, amount float64, reason string) (*model.Order, error)
	ResolveRefund(ctx context.Context, actor model.Actor, orderID, refundID string, approve bool, note string) (*model.Order, error)
}

type OrderController struct {
	checkout Checkout
	status   Statuses
	refunds  Refunds
}

func NewOrderController(checkout Checkout, status Statuses, refunds Refunds) *OrderController {
	return &OrderController{checkout: checkout, status: status, refunds: refunds}
}

// POST /api/orders
func (ctl *OrderController) Create(c *gin.Context) {
	var req dto.CreateOrderRequest
	if !bind(c, &req) {
		return
	}
	o, err := ctl.checkout.CreateOrder(c.Request.Context(), middleware.ActorFrom(c), req.Input())
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusCreated, o)
}

// GET /api/orders (admin)
func (ctl *OrderController) List(c *gin.Context) {
	q := service.ListQuery{Status: model.Status(c.Query("status"))}
	var err error
	if q.Page, err = intQuery(c, "page"); err != nil {
		fail(c, err)
		return
	}
	if q.Limit, err = intQuery(c, "limit"); err != nil {
		fail(c, err)
		return
	}
	if q.From, err = dateQuery(c, "from", false); err != nil {
		fail(c, err)
		return
	}
	if q.To, err = dateQuery(c, "to", true); err != nil {
		fail(c, err)
		return
	}

	page, err := ctl.status.ListOrders(c.Request.Context(), middleware.ActorFrom(c), q)
	if err != nil {
		fail(c, err)
		return
	}
	okPage(c, page)
}

// GET /api/orders/mine
func (ctl *OrderController) Mine(c *gin.Context) {
	page, err := intQuery(c, "page")
	if err != nil {
		fail(c, err)
		return
	}
	limit, err := intQuery(c, "limit")
	if err != nil {
		fail(c, err)
		return
	}
	res, err := ctl.status.MyOrders(c.Request.Context(), middleware.ActorFrom(c), page, limit)
	if err != nil {
		fail(c, err)
		return
	}
	okPage(c, res)
}

// GET /api/orders/:id
func (ctl *OrderController) Get(c *gin.Context) {
	o, err := ctl.status.GetOrder(c.Request.Context(), middleware.ActorFrom(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, o)
}

// PATCH /api/orders/:id/status
func (ctl *OrderController) UpdateStatus(c *gin.Context) {
	var req dto.UpdateStatusRequest
	if !bind(c, &req) {
		return
	}
	o, err := ctl.status.UpdateStatus(c.Request.Context(), middleware.ActorFrom(c), c.Param("id"), req.Update())
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, o)
}

// POST /api/orders/:id/cancel
func (ctl *OrderController) Cancel(c *gin.Context) {
	var req dto.CancelRequest
	// the body is optional
	if c.Request.ContentLength != 0 && !bind(c, &req) {
		return
	}
	o, err := ctl.status.CancelOrder(c.Request.Context(), middleware.ActorFrom(c), c.Param("id"), req.Reason)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, o)
}

// POST /api/orders/:id/refund
func (ctl *OrderController) RequestRefund(c *gin.Context) {
	var req dto.RefundRequest
	if !bind(c, &req) {
		return
	}
	o, err := ctl.refunds.RequestRefund(c.Request.Context(), middleware.ActorFrom(c), c.Param("id"), req.Amount, req.Reason)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusCreated, o)
}

// PATCH /api/orders/:id/refunds/:refundId (admin)
func (ctl *OrderController) ResolveRefund(c *gin.Context) {
	var req dto.ResolveRefundRequest
	if !bind(c, &req) {
		return
	}
	o, err := ctl.refunds.ResolveRefund(c.Request.Context(), middleware.ActorFrom(c), c.Param("id"), c.Param("refundId"), *req.Approve, req.Note)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, o)
}

// GET /api/orders/number/:orderNumber (public)
func (ctl *OrderController) ByNumber(c *gin.Context) {
	v, err := ctl.status.GetByOrderNumber(c.Request.Context(), c.Param("orderNumber"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, v)
}

// dateQuery accepts RFC 3339 timestamps or plain dates. A plain date used
// as an exclusive upper bound is moved to the following midnight so the
// whole day is included.
func dateQuery(c *gin.Context, name string, upper bool) (time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, apperr.Validation("%s must be a date (YYYY-MM-DD) or RFC 3339 timestamp", name)
	}
	if upper {
		t = t.AddDate(0, 0, 1)
	}
	return t, nil
}
