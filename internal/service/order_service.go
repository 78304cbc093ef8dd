package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront-orders/internal/apperr"
	"storefront-orders/internal/audit"
	"storefront-orders/internal/model"
	"storefront-orders/internal/pricing"
	"storefront-orders/internal/repository"
)

const orderSequence = "orders"

type OrderItemInput struct {
	ProductID string
	Quantity  int
	Variant   *model.VariantSpec
}

type CreateOrderInput struct {
	Items                []OrderItemInput
	ShippingAddress      model.Address
	BillingAddress       *model.Address
	PaymentMethod        model.PaymentMethod
	TransactionID        string
	ShippingMethod       model.ShippingMethod
	CouponCode           string
	DeliveryInstructions string
	Notes                string
	Priority             model.Priority
	Source               model.Source
}

type OrderService struct {
	Deps
}

func NewOrderService(d Deps) *OrderService {
	return &OrderService{Deps: d}
}

// line is a validated cart line ready for reservation.
type line struct {
	item    model.LineItem
	variant *model.VariantSpec
}

// CreateOrder validates the cart against the catalog, prices it, reserves
// stock and persists the order. Either every line is reserved and the order
// stored, or nothing changes.
func (s *OrderService) CreateOrder(ctx context.Context, actor model.Actor, in CreateOrderInput) (*model.Order, error) {
	if actor.ID == "" {
		return nil, apperr.Unauthorized("authentication required")
	}
	if err := validateCreate(&in); err != nil {
		return nil, err
	}

	lines := make([]line, 0, len(in.Items))
	subtotal := decimal.Zero
	for _, it := range in.Items {
		l, unit, err := s.resolveLine(ctx, it)
		if err != nil {
			return nil, err
		}
		subtotal = subtotal.Add(pricing.LineTotal(unit, it.Quantity))
		lines = append(lines, l)
	}

	quote, err := pricing.Calculate(subtotal, in.ShippingMethod, in.CouponCode)
	if err != nil {
		return nil, err
	}

	seq, err := s.Counters.Next(ctx, orderSequence)
	if err != nil {
		return nil, fmt.Errorf("order number: %w", err)
	}

	now := s.now()
	order := &model.Order{
		ID:                   primitive.NewObjectID(),
		OrderNumber:          fmt.Sprintf("ORD-%s-%06d", now.Format("060102150405"), seq),
		UserID:               actor.ID,
		Items:                make([]model.LineItem, 0, len(lines)),
		Subtotal:             quote.Subtotal,
		TaxAmount:            quote.Tax,
		ShippingAmount:       quote.Shipping,
		DiscountAmount:       quote.Discount,
		TotalAmount:          quote.Total,
		Currency:             pricing.Currency,
		CouponCode:           pricing.NormalizeCoupon(in.CouponCode),
		Payment:              newPayment(in, now),
		ShippingAddress:      in.ShippingAddress,
		BillingAddress:       in.BillingAddress,
		ShippingMethod:       in.ShippingMethod,
		DeliveryInstructions: in.DeliveryInstructions,
		Notes:                in.Notes,
		Priority:             in.Priority,
		Source:               in.Source,
		Status:               model.StatusPending,
		StatusChangedAt:      now,
		StatusHistory: []model.StatusRecord{
			{Status: model.StatusPending, Timestamp: now, Note: "Order placed", UpdatedBy: actor.ID},
		},
		Refunds:   []model.Refund{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, l := range lines {
		order.Items = append(order.Items, l.item)
	}

	err = s.Tx.WithTransaction(ctx, func(ctx context.Context) error {
		return s.persist(ctx, order, lines)
	})
	if err != nil {
		return nil, err
	}

	if err := s.Carts.Clear(ctx, actor.ID); err != nil {
		s.Logger.Warn("cart not cleared after checkout", "user_id", actor.ID, "order_number", order.OrderNumber, "error", err)
	}

	s.emit(ctx, audit.TypeOrderCreated, order, actor, map[string]any{
		"items": len(order.Items),
		"total": order.TotalAmount,
	})
	s.Logger.Info("order created", "order_number", order.OrderNumber, "user_id", actor.ID, "total", order.TotalAmount)
	return order, nil
}

// persist reserves stock line by line and inserts the order. Every step
// registers its undo; a failure runs them newest first.
func (s *OrderService) persist(ctx context.Context, order *model.Order, lines []line) error {
	var undo []func(context.Context) error

	rollback := func(cause error) error {
		cctx := context.WithoutCancel(ctx)
		for i := len(undo) - 1; i >= 0; i-- {
			if err := undo[i](cctx); err != nil {
				s.Logger.Error("stock release failed", "order_number", order.OrderNumber, "error", err)
			}
		}
		return cause
	}

	for _, l := range lines {
		err := s.Products.Reserve(ctx, l.item.Product, l.variant, l.item.Quantity)
		if errors.Is(err, repository.ErrInsufficientStock) {
			return rollback(apperr.Conflict("insufficient stock for %q", l.item.Name))
		}
		if err != nil {
			return rollback(fmt.Errorf("reserve %s: %w", l.item.Product.Hex(), err))
		}
		undo = append(undo, func(ctx context.Context) error {
			return s.Products.Release(ctx, l.item.Product, l.variant, l.item.Quantity)
		})
	}

	if err := s.Orders.Insert(ctx, order); err != nil {
		return rollback(fmt.Errorf("insert order: %w", err))
	}
	return nil
}

// resolveLine loads the product of one cart line, checks availability and
// returns the snapshot and unit price.
func (s *OrderService) resolveLine(ctx context.Context, it OrderItemInput) (line, decimal.Decimal, error) {
	pid, err := parseID(it.ProductID, "product")
	if err != nil {
		return line{}, decimal.Zero, err
	}
	p, err := s.Products.FindByID(ctx, pid)
	if errors.Is(err, repository.ErrNotFound) {
		return line{}, decimal.Zero, apperr.NotFound("product %s not found", it.ProductID)
	}
	if err != nil {
		return line{}, decimal.Zero, fmt.Errorf("load product %s: %w", it.ProductID, err)
	}
	if !p.Active() {
		return line{}, decimal.Zero, apperr.Conflict("product %q is unavailable", p.Name)
	}

	var v *model.Variant
	if it.Variant != nil {
		v, _ = p.FindVariant(*it.Variant)
	}

	available := p.Stock
	if v != nil {
		available = v.Stock
	}
	if it.Quantity > available {
		return line{}, decimal.Zero, apperr.Conflict("insufficient stock for %q: %d requested, %d available", p.Name, it.Quantity, available)
	}

	unit := pricing.UnitPrice(p, v)
	l := line{
		item: model.LineItem{
			Product:  p.ID,
			Name:     p.Name,
			SKU:      p.SKU,
			Price:    unit.InexactFloat64(),
			Quantity: it.Quantity,
			Image:    p.Image(),
			Seller:   p.Seller,
		},
	}
	if v != nil {
		spec := v.VariantSpec
		l.variant = &spec
		l.item.Variant = &spec
		if v.SKU != "" {
			l.item.SKU = v.SKU
		}
	}
	return l, unit, nil
}

func newPayment(in CreateOrderInput, now time.Time) model.Payment {
	p := model.Payment{Method: in.PaymentMethod, Status: model.PaymentPending}
	if in.TransactionID != "" && in.PaymentMethod != model.PaymentCashOnDelivery {
		p.Status = model.PaymentCompleted
		p.TransactionID = in.TransactionID
		paid := now
		p.PaidAt = &paid
	}
	return p
}

func validateCreate(in *CreateOrderInput) error {
	if len(in.Items) == 0 {
		return apperr.Validation("order must contain at least one item")
	}
	for i, it := range in.Items {
		if strings.TrimSpace(it.ProductID) == "" {
			return apperr.Validation("item %d: product is required", i+1)
		}
		if it.Quantity < 1 {
			return apperr.Validation("item %d: quantity must be at least 1", i+1)
		}
	}

	addr := in.ShippingAddress
	if strings.TrimSpace(addr.Street) == "" || strings.TrimSpace(addr.City) == "" || strings.TrimSpace(addr.Country) == "" {
		return apperr.Validation("shipping address requires street, city and country")
	}
	if !in.PaymentMethod.Valid() {
		return apperr.Validation("unsupported payment method %q", in.PaymentMethod)
	}

	if in.ShippingMethod == "" {
		in.ShippingMethod = model.ShippingStandard
	}
	switch in.ShippingMethod {
	case model.ShippingStandard, model.ShippingExpress, model.ShippingOvernight:
	default:
		return apperr.Validation("unsupported shipping method %q", in.ShippingMethod)
	}

	if in.Priority == "" {
		in.Priority = model.PriorityNormal
	}
	switch in.Priority {
	case model.PriorityLow, model.PriorityNormal, model.PriorityHigh, model.PriorityUrgent:
	default:
		return apperr.Validation("unsupported priority %q", in.Priority)
	}

	if in.Source == "" {
		in.Source = model.SourceWeb
	}
	switch in.Source {
	case model.SourceWeb, model.SourceMobile, model.SourceAdmin, model.SourceAPI:
	default:
		return apperr.Validation("unsupported source %q", in.Source)
	}
	return nil
}
