package model

import "time"

type RefundStatus string

const (
	RefundPending  RefundStatus = "pending"
	RefundApproved RefundStatus = "approved"
	RefundRejected RefundStatus = "rejected"
)

// Refund is a request against an order. Only approved refunds count toward
// the refunded amount.
type Refund struct {
	ID          string       `bson:"id" json:"id"`
	Amount      float64      `bson:"amount" json:"amount"`
	Reason      string       `bson:"reason" json:"reason"`
	Status      RefundStatus `bson:"status" json:"status"`
	RequestedBy string       `bson:"requested_by" json:"requestedBy"`
	RequestedAt time.Time    `bson:"requested_at" json:"requestedAt"`
	ProcessedBy string       `bson:"processed_by,omitempty" json:"processedBy,omitempty"`
	ProcessedAt *time.Time   `bson:"processed_at,omitempty" json:"processedAt,omitempty"`
	Note        string       `bson:"note,omitempty" json:"note,omitempty"`
}
