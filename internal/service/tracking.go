package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront-orders/internal/apperr"
	"storefront-orders/internal/cache"
	"storefront-orders/internal/model"
	"storefront-orders/internal/repository"
)

const (
	keyOrderNumber = "order-number"
	keyTracking    = "tracking"
)

// TrackingView is the tracking page of one order.
type TrackingView struct {
	OrderID           string               `json:"orderId"`
	OrderNumber       string               `json:"orderNumber"`
	Status            model.Status         `json:"status"`
	Progress          int                  `json:"progress"`
	StatusHistory     []model.StatusRecord `json:"statusHistory"`
	Tracking          *model.Tracking      `json:"tracking,omitempty"`
	EstimatedDelivery *time.Time           `json:"estimatedDelivery,omitempty"`
	ShippingMethod    model.ShippingMethod `json:"shippingMethod"`
	ItemCount         int                  `json:"itemCount"`
	CreatedAt         time.Time            `json:"createdAt"`
}

// PublicItem is a line item without seller or pricing internals.
type PublicItem struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Image    string `json:"image,omitempty"`
}

// PublicOrder is what anonymous lookups by order or tracking number see.
// Addresses and payment details are left out.
type PublicOrder struct {
	OrderNumber   string               `json:"orderNumber"`
	Status        model.Status         `json:"status"`
	Progress      int                  `json:"progress"`
	StatusHistory []PublicStatus       `json:"statusHistory"`
	Tracking      *model.Tracking      `json:"tracking,omitempty"`
	Items         []PublicItem         `json:"items"`
	TotalAmount   float64              `json:"totalAmount"`
	Currency      string               `json:"currency"`
	ShippingCity  string               `json:"shippingCity,omitempty"`
	Method        model.ShippingMethod `json:"shippingMethod"`
	CreatedAt     time.Time            `json:"createdAt"`
}

type PublicStatus struct {
	Status    model.Status `json:"status"`
	Timestamp time.Time    `json:"timestamp"`
	Note      string       `json:"note,omitempty"`
}

// TrackOrder returns the tracking view to anyone allowed to see the order.
func (s *StatusService) TrackOrder(ctx context.Context, actor model.Actor, orderID string) (*TrackingView, error) {
	o, err := s.GetOrder(ctx, actor, orderID)
	if err != nil {
		return nil, err
	}
	v := &TrackingView{
		OrderID:        o.ID.Hex(),
		OrderNumber:    o.OrderNumber,
		Status:         o.Status,
		Progress:       progress[o.Status],
		StatusHistory:  o.StatusHistory,
		Tracking:       o.Tracking,
		ShippingMethod: o.ShippingMethod,
		ItemCount:      o.ItemCount(),
		CreatedAt:      o.CreatedAt,
	}
	if o.Tracking != nil {
		v.EstimatedDelivery = o.Tracking.EstimatedDelivery
	}
	return v, nil
}

// TrackByNumber is the public lookup by carrier tracking number.
func (s *StatusService) TrackByNumber(ctx context.Context, trackingNumber string) (*PublicOrder, error) {
	trackingNumber = strings.TrimSpace(trackingNumber)
	if trackingNumber == "" {
		return nil, apperr.Validation("tracking number is required")
	}
	return s.lookup(ctx, keyTracking, trackingNumber, s.Orders.FindByTrackingNumber)
}

// GetByOrderNumber is the public lookup by order number.
func (s *StatusService) GetByOrderNumber(ctx context.Context, orderNumber string) (*PublicOrder, error) {
	orderNumber = strings.TrimSpace(orderNumber)
	if orderNumber == "" {
		return nil, apperr.Validation("order number is required")
	}
	return s.lookup(ctx, keyOrderNumber, orderNumber, s.Orders.FindByNumber)
}

func (s *StatusService) lookup(ctx context.Context, kind, value string, find func(context.Context, string) (*model.Order, error)) (*PublicOrder, error) {
	var key string
	if s.Cache != nil {
		key = s.Cache.GenerateKey(kind, value)
		var cached PublicOrder
		hit, err := cache.GetJSON(ctx, s.Cache, key, &cached)
		if err != nil {
			s.Logger.Warn("cache read failed", "key", key, "error", err)
		}
		if hit {
			return &cached, nil
		}
	}

	o, err := find(ctx, value)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound("order not found")
	}
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", kind, err)
	}

	view := publicView(o)
	if s.Cache != nil {
		if err := cache.SetJSON(ctx, s.Cache, key, view, s.CacheTTL); err != nil {
			s.Logger.Warn("cache write failed", "key", key, "error", err)
		}
	}
	return view, nil
}

func publicView(o *model.Order) *PublicOrder {
	v := &PublicOrder{
		OrderNumber:   o.OrderNumber,
		Status:        o.Status,
		Progress:      progress[o.Status],
		StatusHistory: make([]PublicStatus, 0, len(o.StatusHistory)),
		Tracking:      o.Tracking,
		Items:         make([]PublicItem, 0, len(o.Items)),
		TotalAmount:   o.TotalAmount,
		Currency:      o.Currency,
		ShippingCity:  o.ShippingAddress.City,
		Method:        o.ShippingMethod,
		CreatedAt:     o.CreatedAt,
	}
	for _, h := range o.StatusHistory {
		v.StatusHistory = append(v.StatusHistory, PublicStatus{Status: h.Status, Timestamp: h.Timestamp, Note: h.Note})
	}
	for _, it := range o.Items {
		v.Items = append(v.Items, PublicItem{Name: it.Name, Quantity: it.Quantity, Image: it.Image})
	}
	return v
}
