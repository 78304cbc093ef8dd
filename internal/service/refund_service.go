package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"storefront-orders/internal/apperr"
	"storefront-orders/internal/audit"
	"storefront-orders/internal/model"
	"storefront-orders/internal/repository"
)

type RefundService struct {
	Deps
}

func NewRefundService(d Deps) *RefundService {
	return &RefundService{Deps: d}
}

// RequestRefund records a pending refund against a delivered, paid order.
// Pending and approved refunds together never exceed the order total.
func (s *RefundService) RequestRefund(ctx context.Context, actor model.Actor, orderID string, amount float64, reason string) (*model.Order, error) {
	if amount <= 0 {
		return nil, apperr.Validation("refund amount must be positive")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperr.Validation("refund reason is required")
	}

	o, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && o.UserID != actor.ID {
		return nil, apperr.Forbidden("not allowed to request a refund for this order")
	}
	if o.Status != model.StatusDelivered {
		return nil, apperr.Conflict("only delivered orders can be refunded")
	}
	if o.Payment.Status != model.PaymentCompleted && o.Payment.Status != model.PaymentPartiallyRefunded {
		return nil, apperr.Conflict("payment must be completed before a refund")
	}

	amt := decimal.NewFromFloat(amount).Round(2)
	remaining := refundable(o)
	if amt.GreaterThan(remaining) {
		return nil, apperr.Conflict("refund amount exceeds the refundable balance of %s", remaining.StringFixed(2))
	}

	refund := model.Refund{
		ID:          uuid.NewString(),
		Amount:      amt.InexactFloat64(),
		Reason:      reason,
		Status:      model.RefundPending,
		RequestedBy: actor.ID,
		RequestedAt: s.now(),
	}
	updated, err := s.Orders.AppendRefund(ctx, o.ID, len(o.Refunds), refund)
	if err != nil {
		return nil, orderErr(err)
	}

	s.emit(ctx, audit.TypeRefundRequested, updated, actor, map[string]any{
		"refundId": refund.ID,
		"amount":   refund.Amount,
		"reason":   refund.Reason,
	})
	s.Logger.Info("refund requested", "order_number", updated.OrderNumber, "refund_id", refund.ID, "amount", refund.Amount)
	return updated, nil
}

// resolveAttempts bounds how often a resolution is recomputed after a
// concurrent approval changed the approved total.
const resolveAttempts = 3

// ResolveRefund approves or rejects a pending refund. Admin only. An
// approval that brings the approved total to the order total refunds the
// order.
func (s *RefundService) ResolveRefund(ctx context.Context, actor model.Actor, orderID, refundID string, approve bool, note string) (*model.Order, error) {
	if !actor.IsAdmin() {
		return nil, apperr.Forbidden("admin privileges required")
	}

	for attempt := 1; ; attempt++ {
		o, err := s.loadOrder(ctx, orderID)
		if err != nil {
			return nil, err
		}
		r := o.FindRefund(refundID)
		if r == nil {
			return nil, apperr.NotFound("refund not found")
		}
		if r.Status != model.RefundPending {
			return nil, apperr.Conflict("refund is already %s", r.Status)
		}

		res := s.resolution(actor, o, r, approve, note)
		updated, err := s.Orders.ResolveRefund(ctx, o.ID, refundID, res)
		if errors.Is(err, repository.ErrStale) && attempt < resolveAttempts {
			continue
		}
		if err != nil {
			return nil, orderErr(err)
		}
		if res.OrderStatus != "" {
			s.invalidate(ctx, updated)
		}

		s.emit(ctx, audit.TypeRefundResolved, updated, actor, map[string]any{
			"refundId":      refundID,
			"decision":      string(res.Status),
			"amount":        r.Amount,
			"paymentStatus": string(updated.Payment.Status),
			"orderStatus":   string(updated.Status),
		})
		s.Logger.Info("refund resolved", "order_number", updated.OrderNumber, "refund_id", refundID, "decision", res.Status)
		return updated, nil
	}
}

// resolution decides r against the refunds of o as loaded.
func (s *RefundService) resolution(actor model.Actor, o *model.Order, r *model.Refund, approve bool, note string) model.RefundResolution {
	now := s.now()
	res := model.RefundResolution{
		Status:       model.RefundRejected,
		ProcessedBy:  actor.ID,
		ProcessedAt:  now,
		Note:         strings.TrimSpace(note),
		ApprovedSeen: o.RefundCount(model.RefundApproved),
	}
	if !approve {
		return res
	}

	res.Status = model.RefundApproved
	approved := decimal.NewFromFloat(o.RefundTotal(model.RefundApproved)).Add(decimal.NewFromFloat(r.Amount))
	if approved.LessThan(decimal.NewFromFloat(o.TotalAmount)) {
		res.PaymentStatus = model.PaymentPartiallyRefunded
		return res
	}

	res.PaymentStatus = model.PaymentRefunded
	if o.Status == model.StatusDelivered {
		historyNote := res.Note
		if historyNote == "" {
			historyNote = "Refund approved"
		}
		res.OrderStatus = model.StatusRefunded
		res.Record = &model.StatusRecord{
			Status:    model.StatusRefunded,
			Timestamp: now,
			Note:      historyNote,
			UpdatedBy: actor.ID,
		}
	}
	return res
}

// refundable is the order total less approved and pending refunds.
func refundable(o *model.Order) decimal.Decimal {
	total := decimal.NewFromFloat(o.TotalAmount)
	taken := decimal.NewFromFloat(o.RefundTotal(model.RefundApproved)).
		Add(decimal.NewFromFloat(o.RefundTotal(model.RefundPending)))
	rem := total.Sub(taken).Round(2)
	if rem.IsNegative() {
		return decimal.Zero
	}
	return rem
}
