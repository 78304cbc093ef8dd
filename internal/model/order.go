package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ShippingMethod string

const (
	ShippingStandard  ShippingMethod = "standard"
	ShippingExpress   ShippingMethod = "express"
	ShippingOvernight ShippingMethod = "overnight"
)

type PaymentMethod string

const (
	PaymentCard           PaymentMethod = "card"
	PaymentMpesa          PaymentMethod = "mpesa"
	PaymentPaypal         PaymentMethod = "paypal"
	PaymentCashOnDelivery PaymentMethod = "cash_on_delivery"
	PaymentBankTransfer   PaymentMethod = "bank_transfer"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCard, PaymentMpesa, PaymentPaypal, PaymentCashOnDelivery, PaymentBankTransfer:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentPending           PaymentStatus = "pending"
	PaymentCompleted         PaymentStatus = "completed"
	PaymentFailed            PaymentStatus = "failed"
	PaymentRefunded          PaymentStatus = "refunded"
	PaymentPartiallyRefunded PaymentStatus = "partially_refunded"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

type Source string

const (
	SourceWeb    Source = "web"
	SourceMobile Source = "mobile"
	SourceAdmin  Source = "admin"
	SourceAPI    Source = "api"
)

// Order is the persisted checkout record. Line items are snapshots taken at
// creation time and never follow later catalog edits.
type Order struct {
	ID                   primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OrderNumber          string             `bson:"order_number" json:"orderNumber"`
	UserID               string             `bson:"user_id" json:"userId"`
	Items                []LineItem         `bson:"items" json:"items"`
	Subtotal             float64            `bson:"subtotal" json:"subtotal"`
	TaxAmount            float64            `bson:"tax_amount" json:"taxAmount"`
	ShippingAmount       float64            `bson:"shipping_amount" json:"shippingAmount"`
	DiscountAmount       float64            `bson:"discount_amount" json:"discountAmount"`
	TotalAmount          float64            `bson:"total_amount" json:"totalAmount"`
	Currency             string             `bson:"currency" json:"currency"`
	CouponCode           string             `bson:"coupon_code,omitempty" json:"couponCode,omitempty"`
	Payment              Payment            `bson:"payment" json:"payment"`
	ShippingAddress      Address            `bson:"shipping_address" json:"shippingAddress"`
	BillingAddress       *Address           `bson:"billing_address,omitempty" json:"billingAddress,omitempty"`
	ShippingMethod       ShippingMethod     `bson:"shipping_method" json:"shippingMethod"`
	DeliveryInstructions string             `bson:"delivery_instructions,omitempty" json:"deliveryInstructions,omitempty"`
	Notes                string             `bson:"notes,omitempty" json:"notes,omitempty"`
	Priority             Priority           `bson:"priority" json:"priority"`
	Source               Source             `bson:"source" json:"source"`
	Status               Status             `bson:"status" json:"status"`
	StatusChangedAt      time.Time          `bson:"status_changed_at" json:"statusChangedAt"`
	StatusHistory        []StatusRecord     `bson:"status_history" json:"statusHistory"`
	Tracking             *Tracking          `bson:"tracking,omitempty" json:"tracking,omitempty"`
	Refunds              []Refund           `bson:"refunds" json:"refunds"`
	CreatedAt            time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt            time.Time          `bson:"updated_at" json:"updatedAt"`
}

// LineItem captures product display data and price at order time.
type LineItem struct {
	Product  primitive.ObjectID `bson:"product" json:"product"`
	Name     string             `bson:"name" json:"name"`
	SKU      string             `bson:"sku,omitempty" json:"sku,omitempty"`
	Variant  *VariantSpec       `bson:"variant,omitempty" json:"variant,omitempty"`
	Price    float64            `bson:"price" json:"price"`
	Quantity int                `bson:"quantity" json:"quantity"`
	Image    string             `bson:"image,omitempty" json:"image,omitempty"`
	Seller   string             `bson:"seller,omitempty" json:"seller,omitempty"`
}

type Payment struct {
	Method        PaymentMethod `bson:"method" json:"method"`
	Status        PaymentStatus `bson:"status" json:"status"`
	TransactionID string        `bson:"transaction_id,omitempty" json:"transactionId,omitempty"`
	PaidAt        *time.Time    `bson:"paid_at,omitempty" json:"paidAt,omitempty"`
}

type Address struct {
	FullName   string `bson:"full_name,omitempty" json:"fullName,omitempty"`
	Street     string `bson:"street" json:"street"`
	City       string `bson:"city" json:"city"`
	State      string `bson:"state,omitempty" json:"state,omitempty"`
	PostalCode string `bson:"postal_code,omitempty" json:"postalCode,omitempty"`
	Country    string `bson:"country" json:"country"`
	Phone      string `bson:"phone,omitempty" json:"phone,omitempty"`
}

// StatusRecord is one entry of the append-only status history.
type StatusRecord struct {
	Status    Status    `bson:"status" json:"status"`
	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
	Note      string    `bson:"note,omitempty" json:"note,omitempty"`
	UpdatedBy string    `bson:"updated_by,omitempty" json:"updatedBy,omitempty"`
}

type Tracking struct {
	Carrier           string     `bson:"carrier" json:"carrier"`
	TrackingNumber    string     `bson:"tracking_number" json:"trackingNumber"`
	TrackingURL       string     `bson:"tracking_url,omitempty" json:"trackingUrl,omitempty"`
	EstimatedDelivery *time.Time `bson:"estimated_delivery,omitempty" json:"estimatedDelivery,omitempty"`
	ActualDelivery    *time.Time `bson:"actual_delivery,omitempty" json:"actualDelivery,omitempty"`
}

// HasSeller reports whether at least one line item belongs to sellerID.
func (o *Order) HasSeller(sellerID string) bool {
	if sellerID == "" {
		return false
	}
	for _, item := range o.Items {
		if item.Seller == sellerID {
			return true
		}
	}
	return false
}

// ItemCount sums the quantities of all line items.
func (o *Order) ItemCount() int {
	n := 0
	for _, item := range o.Items {
		n += item.Quantity
	}
	return n
}

// RefundTotal sums refunds in the given state.
func (o *Order) RefundTotal(status RefundStatus) float64 {
	var sum float64
	for _, r := range o.Refunds {
		if r.Status == status {
			sum += r.Amount
		}
	}
	return sum
}

// RefundCount is the number of refunds in status.
func (o *Order) RefundCount(status RefundStatus) int {
	n := 0
	for _, r := range o.Refunds {
		if r.Status == status {
			n++
		}
	}
	return n
}

// FindRefund returns the refund with the given id, or nil.
func (o *Order) FindRefund(id string) *Refund {
	for i := range o.Refunds {
		if o.Refunds[i].ID == id {
			return &o.Refunds[i]
		}
	}
	return nil
}
