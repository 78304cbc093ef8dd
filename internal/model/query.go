package model

import "time"

// OrderFilter selects orders. Zero fields do not constrain the result.
type OrderFilter struct {
	UserID                  string
	Seller                  string
	Statuses                []Status
	CreatedFrom             time.Time
	CreatedTo               time.Time
	StatusChangedBefore     time.Time
	EstimatedDeliveryBefore time.Time
	Page                    int
	Limit                   int
}

// Matches evaluates the filter against an order in memory. It mirrors the
// MongoDB query built by the order repository.
func (f OrderFilter) Matches(o *Order) bool {
	if f.UserID != "" && o.UserID != f.UserID {
		return false
	}
	if f.Seller != "" && !o.HasSeller(f.Seller) {
		return false
	}
	if len(f.Statuses) > 0 {
		found := false
		for _, s := range f.Statuses {
			if o.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if !f.CreatedFrom.IsZero() && o.CreatedAt.Before(f.CreatedFrom) {
		return false
	}
	if !f.CreatedTo.IsZero() && !o.CreatedAt.Before(f.CreatedTo) {
		return false
	}
	if !f.StatusChangedBefore.IsZero() && !o.StatusChangedAt.Before(f.StatusChangedBefore) {
		return false
	}
	if !f.EstimatedDeliveryBefore.IsZero() {
		if o.Tracking == nil || o.Tracking.EstimatedDelivery == nil || !o.Tracking.EstimatedDelivery.Before(f.EstimatedDeliveryBefore) {
			return false
		}
	}
	return true
}

// StatusChange is one guarded status transition as written to storage.
type StatusChange struct {
	To            Status
	At            time.Time
	Record        StatusRecord
	Tracking      *Tracking
	PaymentStatus PaymentStatus
}

// RefundResolution describes how a pending refund was decided and what the
// order looks like afterwards.
type RefundResolution struct {
	Status        RefundStatus
	ProcessedBy   string
	ProcessedAt   time.Time
	Note          string
	PaymentStatus PaymentStatus
	// OrderStatus is set when the approval fully refunds the order.
	OrderStatus Status
	Record      *StatusRecord
	// ApprovedSeen is the number of approved refunds the decision was
	// computed from. The write is refused if another approval landed first.
	ApprovedSeen int
}
