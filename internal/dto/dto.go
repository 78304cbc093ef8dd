// Package dto holds the JSON shapes of the HTTP API.
package dto

import (
	"time"

	"storefront-orders/internal/model"
	"storefront-orders/internal/service"
)

// Response is the envelope of every API reply.
type Response struct {
	Success    bool                `json:"success"`
	Data       any                 `json:"data,omitempty"`
	Message    string              `json:"message,omitempty"`
	Pagination *service.Pagination `json:"pagination,omitempty"`
}

type VariantDTO struct {
	SKU      string `json:"sku"`
	Size     string `json:"size"`
	Color    string `json:"color"`
	Material string `json:"material"`
}

type OrderItemDTO struct {
	ProductID string      `json:"productId" binding:"required"`
	Quantity  int         `json:"quantity" binding:"required,min=1"`
	Variant   *VariantDTO `json:"variant"`
}

type AddressDTO struct {
	FullName   string `json:"fullName"`
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
	Phone      string `json:"phone"`
}

type CreateOrderRequest struct {
	Items                []OrderItemDTO `json:"items" binding:"required,min=1,dive"`
	ShippingAddress      AddressDTO     `json:"shippingAddress" binding:"required"`
	BillingAddress       *AddressDTO    `json:"billingAddress"`
	PaymentMethod        string         `json:"paymentMethod" binding:"required"`
	TransactionID        string         `json:"transactionId"`
	ShippingMethod       string         `json:"shippingMethod"`
	CouponCode           string         `json:"couponCode"`
	DeliveryInstructions string         `json:"deliveryInstructions"`
	Notes                string         `json:"notes"`
	Priority             string         `json:"priority"`
	Source               string         `json:"source"`
}

type TrackingDTO struct {
	Carrier           string     `json:"carrier"`
	TrackingNumber    string     `json:"trackingNumber"`
	TrackingURL       string     `json:"trackingUrl"`
	EstimatedDelivery *time.Time `json:"estimatedDelivery"`
}

type UpdateStatusRequest struct {
	Status   string       `json:"status" binding:"required"`
	Note     string       `json:"note"`
	Tracking *TrackingDTO `json:"tracking"`
}

type BulkStatusRequest struct {
	OrderIDs []string     `json:"orderIds"`
	Status   string       `json:"status" binding:"required"`
	Note     string       `json:"note"`
	Tracking *TrackingDTO `json:"tracking"`
}

type CancelRequest struct {
	Reason string `json:"reason"`
}

type RefundRequest struct {
	Amount float64 `json:"amount"`
	Reason string  `json:"reason"`
}

type ResolveRefundRequest struct {
	Approve *bool  `json:"approve" binding:"required"`
	Note    string `json:"note"`
}

func (v *VariantDTO) spec() *model.VariantSpec {
	if v == nil {
		return nil
	}
	return &model.VariantSpec{SKU: v.SKU, Size: v.Size, Color: v.Color, Material: v.Material}
}

func (a AddressDTO) model() model.Address {
	return model.Address{
		FullName:   a.FullName,
		Street:     a.Street,
		City:       a.City,
		State:      a.State,
		PostalCode: a.PostalCode,
		Country:    a.Country,
		Phone:      a.Phone,
	}
}

// Input converts the request to the checkout input.
func (r CreateOrderRequest) Input() service.CreateOrderInput {
	in := service.CreateOrderInput{
		Items:                make([]service.OrderItemInput, 0, len(r.Items)),
		ShippingAddress:      r.ShippingAddress.model(),
		PaymentMethod:        model.PaymentMethod(r.PaymentMethod),
		TransactionID:        r.TransactionID,
		ShippingMethod:       model.ShippingMethod(r.ShippingMethod),
		CouponCode:           r.CouponCode,
		DeliveryInstructions: r.DeliveryInstructions,
		Notes:                r.Notes,
		Priority:             model.Priority(r.Priority),
		Source:               model.Source(r.Source),
	}
	if r.BillingAddress != nil {
		b := r.BillingAddress.model()
		in.BillingAddress = &b
	}
	for _, it := range r.Items {
		in.Items = append(in.Items, service.OrderItemInput{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Variant:   it.Variant.spec(),
		})
	}
	return in
}

func (t *TrackingDTO) input() *service.TrackingInput {
	if t == nil {
		return nil
	}
	return &service.TrackingInput{
		Carrier:           t.Carrier,
		TrackingNumber:    t.TrackingNumber,
		TrackingURL:       t.TrackingURL,
		EstimatedDelivery: t.EstimatedDelivery,
	}
}

func (r UpdateStatusRequest) Update() service.StatusUpdate {
	return service.StatusUpdate{Status: model.Status(r.Status), Note: r.Note, Tracking: r.Tracking.input()}
}

func (r BulkStatusRequest) Update() service.StatusUpdate {
	return service.StatusUpdate{Status: model.Status(r.Status), Note: r.Note, Tracking: r.Tracking.input()}
}
