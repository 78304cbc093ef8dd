package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"storefront-orders/internal/apperr"
	"storefront-orders/internal/audit"
	"storefront-orders/internal/model"
)

const (
	maxBulkOrders = 100
	defaultLimit  = 20
	maxLimit      = 100

	defaultCarrier  = "Storefront Express"
	trackingURLBase = "https://track.storefront.co.ke/"
)

// deliveryWindow is the promised transit time per shipping method.
var deliveryWindow = map[model.ShippingMethod]time.Duration{
	model.ShippingStandard:  5 * 24 * time.Hour,
	model.ShippingExpress:   2 * 24 * time.Hour,
	model.ShippingOvernight: 24 * time.Hour,
}

type TrackingInput struct {
	Carrier           string
	TrackingNumber    string
	TrackingURL       string
	EstimatedDelivery *time.Time
}

type StatusUpdate struct {
	Status   model.Status
	Note     string
	Tracking *TrackingInput
}

type BulkItemResult struct {
	OrderID string       `json:"orderId"`
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Status  model.Status `json:"status,omitempty"`
}

type BulkSummary struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

type BulkResult struct {
	Results []BulkItemResult `json:"results"`
	Summary BulkSummary      `json:"summary"`
}

type ListQuery struct {
	Status model.Status
	From   time.Time
	To     time.Time
	Page   int
	Limit  int
}

type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int64 `json:"pages"`
}

type OrderPage struct {
	Orders     []*model.Order
	Pagination Pagination
}

type StatusService struct {
	Deps
}

func NewStatusService(d Deps) *StatusService {
	return &StatusService{Deps: d}
}

// UpdateStatus moves an order to a new status on behalf of an admin or a
// seller owning one of its items.
func (s *StatusService) UpdateStatus(ctx context.Context, actor model.Actor, orderID string, upd StatusUpdate) (*model.Order, error) {
	if !upd.Status.Valid() {
		return nil, apperr.Validation("invalid status %q", upd.Status)
	}
	o, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !canManage(actor, o) {
		return nil, apperr.Forbidden("not allowed to update this order")
	}
	return s.transition(ctx, actor, o, upd)
}

// BulkUpdateStatus applies upd to every order independently. Per-order
// failures are reported, never returned. Shipped orders each get their own
// generated tracking number.
func (s *StatusService) BulkUpdateStatus(ctx context.Context, actor model.Actor, orderIDs []string, upd StatusUpdate) (*BulkResult, error) {
	if len(orderIDs) == 0 {
		return nil, apperr.Validation("orderIds must not be empty")
	}
	if len(orderIDs) > maxBulkOrders {
		return nil, apperr.Validation("at most %d orders can be updated at once", maxBulkOrders)
	}
	if t := upd.Tracking; t != nil && (t.TrackingNumber != "" || t.TrackingURL != "") {
		return nil, apperr.Validation("tracking numbers are per order and cannot be set in bulk")
	}

	res := &BulkResult{Results: make([]BulkItemResult, 0, len(orderIDs))}
	for _, id := range orderIDs {
		o, err := s.UpdateStatus(ctx, actor, id, upd)
		item := BulkItemResult{OrderID: id}
		if err != nil {
			item.Message = apperr.Message(err)
			res.Summary.Failed++
		} else {
			item.Success = true
			item.Message = "status updated"
			item.Status = o.Status
			res.Summary.Successful++
		}
		res.Results = append(res.Results, item)
	}
	res.Summary.Total = len(orderIDs)

	s.Logger.Info("bulk status update",
		"status", upd.Status,
		"total", res.Summary.Total,
		"successful", res.Summary.Successful,
		"failed", res.Summary.Failed,
	)
	return res, nil
}

// CancelOrder lets the owner cancel an order that has not been processed
// yet. Admins and sellers follow the regular transition rules.
func (s *StatusService) CancelOrder(ctx context.Context, actor model.Actor, orderID, reason string) (*model.Order, error) {
	o, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	switch {
	case canManage(actor, o):
	case actor.ID != "" && o.UserID == actor.ID:
		if !customerCancellable[o.Status] {
			return nil, apperr.Conflict("order in status %s can no longer be cancelled", o.Status)
		}
	default:
		return nil, apperr.Forbidden("not allowed to cancel this order")
	}

	if strings.TrimSpace(reason) == "" {
		reason = "Cancelled by " + string(actor.Role)
	}
	return s.transition(ctx, actor, o, StatusUpdate{Status: model.StatusCancelled, Note: reason})
}

// transition applies upd to o. Setting the current status again is a no-op.
func (s *StatusService) transition(ctx context.Context, actor model.Actor, o *model.Order, upd StatusUpdate) (*model.Order, error) {
	from := o.Status
	if from == upd.Status {
		return o, nil
	}
	if upd.Status == model.StatusRefunded {
		return nil, apperr.Conflict("orders are refunded by approving a refund request")
	}
	if !canTransition(from, upd.Status) {
		return nil, apperr.Conflict("cannot change status from %s to %s", from, upd.Status)
	}

	now := s.now()
	ch := model.StatusChange{
		To: upd.Status,
		At: now,
		Record: model.StatusRecord{
			Status:    upd.Status,
			Timestamp: now,
			Note:      upd.Note,
			UpdatedBy: actor.ID,
		},
	}

	switch upd.Status {
	case model.StatusShipped:
		ch.Tracking = shipmentTracking(o, upd.Tracking, now)
	case model.StatusDelivered:
		t := model.Tracking{}
		if o.Tracking != nil {
			t = *o.Tracking
		}
		if t.ActualDelivery == nil {
			delivered := now
			t.ActualDelivery = &delivered
		}
		ch.Tracking = &t
		if o.Payment.Method == model.PaymentCashOnDelivery && o.Payment.Status == model.PaymentPending {
			ch.PaymentStatus = model.PaymentCompleted
		}
	}

	updated, err := s.Orders.ApplyStatusChange(ctx, o.ID, from, ch)
	if err != nil {
		return nil, orderErr(err)
	}

	if upd.Status == model.StatusCancelled {
		s.restock(ctx, updated)
	}

	s.invalidate(ctx, updated)
	eventType := audit.TypeStatusChanged
	if upd.Status == model.StatusCancelled {
		eventType = audit.TypeOrderCancelled
	}
	s.emit(ctx, eventType, updated, actor, map[string]any{
		"from": string(from),
		"to":   string(upd.Status),
		"note": upd.Note,
	})
	s.Logger.Info("order status changed",
		"order_number", updated.OrderNumber,
		"from", from,
		"to", upd.Status,
		"actor_id", actor.ID,
	)
	return updated, nil
}

// restock returns the units of a cancelled order to the catalog.
func (s *StatusService) restock(ctx context.Context, o *model.Order) {
	for _, item := range o.Items {
		if err := s.Products.Release(ctx, item.Product, item.Variant, item.Quantity); err != nil {
			s.Logger.Warn("restock failed",
				"order_number", o.OrderNumber,
				"product", item.Product.Hex(),
				"quantity", item.Quantity,
				"error", err,
			)
		}
	}
}

func shipmentTracking(o *model.Order, in *TrackingInput, now time.Time) *model.Tracking {
	t := model.Tracking{}
	if o.Tracking != nil {
		t = *o.Tracking
	}
	if in != nil {
		if in.Carrier != "" {
			t.Carrier = in.Carrier
		}
		if in.TrackingNumber != "" {
			t.TrackingNumber = in.TrackingNumber
		}
		if in.TrackingURL != "" {
			t.TrackingURL = in.TrackingURL
		}
		if in.EstimatedDelivery != nil {
			eta := *in.EstimatedDelivery
			t.EstimatedDelivery = &eta
		}
	}
	if t.Carrier == "" {
		t.Carrier = defaultCarrier
	}
	if t.TrackingNumber == "" {
		t.TrackingNumber = newTrackingNumber()
	}
	if t.TrackingURL == "" {
		t.TrackingURL = trackingURLBase + t.TrackingNumber
	}
	if t.EstimatedDelivery == nil {
		eta := now.Add(windowFor(o.ShippingMethod))
		t.EstimatedDelivery = &eta
	}
	return &t
}

func windowFor(m model.ShippingMethod) time.Duration {
	if w, ok := deliveryWindow[m]; ok {
		return w
	}
	return deliveryWindow[model.ShippingStandard]
}

// newTrackingNumber returns "TRK" followed by ten upper-case hex characters.
func newTrackingNumber() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "TRK" + strings.ToUpper(raw[:10])
}

// GetOrder returns the full order to its owner, an admin or a seller of one
// of its items.
func (s *StatusService) GetOrder(ctx context.Context, actor model.Actor, orderID string) (*model.Order, error) {
	o, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !canView(actor, o) {
		return nil, apperr.Forbidden("not allowed to view this order")
	}
	return o, nil
}

// ListOrders pages through all orders. Admin only.
func (s *StatusService) ListOrders(ctx context.Context, actor model.Actor, q ListQuery) (*OrderPage, error) {
	if !actor.IsAdmin() {
		return nil, apperr.Forbidden("admin privileges required")
	}
	f := model.OrderFilter{CreatedFrom: q.From, CreatedTo: q.To}
	if q.Status != "" {
		if !q.Status.Valid() {
			return nil, apperr.Validation("invalid status %q", q.Status)
		}
		f.Statuses = []model.Status{q.Status}
	}
	if !q.From.IsZero() && !q.To.IsZero() && q.To.Before(q.From) {
		return nil, apperr.Validation("date range end precedes its start")
	}
	return s.page(ctx, f, q.Page, q.Limit)
}

// MyOrders pages through the caller's own orders.
func (s *StatusService) MyOrders(ctx context.Context, actor model.Actor, page, limit int) (*OrderPage, error) {
	if actor.ID == "" {
		return nil, apperr.Unauthorized("authentication required")
	}
	return s.page(ctx, model.OrderFilter{UserID: actor.ID}, page, limit)
}

func (s *StatusService) page(ctx context.Context, f model.OrderFilter, page, limit int) (*OrderPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	f.Page, f.Limit = page, limit

	orders, total, err := s.Orders.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	pages := total / int64(limit)
	if total%int64(limit) != 0 {
		pages++
	}
	return &OrderPage{
		Orders:     orders,
		Pagination: Pagination{Page: page, Limit: limit, Total: total, Pages: pages},
	}, nil
}
