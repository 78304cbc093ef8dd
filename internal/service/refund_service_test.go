package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront-orders/internal/apperr"
	"storefront-orders/internal/audit"
	"storefront-orders/internal/model"
	"storefront-orders/internal/repository"
	"storefront-orders/internal/test"
)

func TestRequestRefundValidation(t *testing.T) {
	f := newFixture(t)
	svc := NewRefundService(f.deps)
	ctx := context.Background()
	o := f.seedOrder(model.StatusDelivered)

	_, err := svc.RequestRefund(ctx, customer, o.ID.Hex(), 0, "broken")
	assertKind(t, err, apperr.ErrValidation)
	_, err = svc.RequestRefund(ctx, customer, o.ID.Hex(), 100, "  ")
	assertKind(t, err, apperr.ErrValidation)
	_, err = svc.RequestRefund(ctx, stranger, o.ID.Hex(), 100, "broken")
	assertKind(t, err, apperr.ErrForbidden)
	_, err = svc.RequestRefund(ctx, customer, o.ID.Hex(), 1460.01, "broken")
	assertKind(t, err, apperr.ErrConflict)

	shipped := f.seedOrder(model.StatusShipped)
	_, err = svc.RequestRefund(ctx, customer, shipped.ID.Hex(), 100, "late")
	assertKind(t, err, apperr.ErrConflict)

	unpaid := f.seedOrder(model.StatusDelivered, func(o *model.Order) { o.Payment.Status = model.PaymentPending })
	_, err = svc.RequestRefund(ctx, customer, unpaid.ID.Hex(), 100, "broken")
	assertKind(t, err, apperr.ErrConflict)
}

func TestPendingRefundsReserveBalance(t *testing.T) {
	f := newFixture(t)
	svc := NewRefundService(f.deps)
	ctx := context.Background()
	o := f.seedOrder(model.StatusDelivered)

	got, err := svc.RequestRefund(ctx, customer, o.ID.Hex(), 1000, "one part broken")
	if err != nil {
		t.Fatalf("RequestRefund: %v", err)
	}
	if len(got.Refunds) != 1 || got.Refunds[0].Status != model.RefundPending || got.Refunds[0].RequestedBy != customer.ID {
		t.Fatalf("unexpected refunds %+v", got.Refunds)
	}

	_, err = svc.RequestRefund(ctx, customer, o.ID.Hex(), 500, "second part")
	assertKind(t, err, apperr.ErrConflict)

	if _, err := svc.RequestRefund(ctx, customer, o.ID.Hex(), 460, "second part"); err != nil {
		t.Fatalf("exact remaining balance must be accepted: %v", err)
	}
	if types := f.events.Types(); len(types) != 2 || types[0] != audit.TypeRefundRequested {
		t.Fatalf("unexpected events %v", types)
	}
}

func TestResolveRefund(t *testing.T) {
	f := newFixture(t)
	svc := NewRefundService(f.deps)
	ctx := context.Background()
	o := f.seedOrder(model.StatusDelivered)

	first, err := svc.RequestRefund(ctx, customer, o.ID.Hex(), 460, "scratched")
	if err != nil {
		t.Fatalf("RequestRefund: %v", err)
	}
	firstID := first.Refunds[0].ID

	_, err = svc.ResolveRefund(ctx, seller, o.ID.Hex(), firstID, true, "")
	assertKind(t, err, apperr.ErrForbidden)
	_, err = svc.ResolveRefund(ctx, admin, o.ID.Hex(), "missing", true, "")
	assertKind(t, err, apperr.ErrNotFound)

	f.advance(1)
	partial, err := svc.ResolveRefund(ctx, admin, o.ID.Hex(), firstID, true, "ok")
	if err != nil {
		t.Fatalf("ResolveRefund: %v", err)
	}
	r := partial.FindRefund(firstID)
	if r.Status != model.RefundApproved || r.ProcessedBy != admin.ID || r.ProcessedAt == nil || r.Note != "ok" {
		t.Fatalf("unexpected refund %+v", r)
	}
	if partial.Payment.Status != model.PaymentPartiallyRefunded || partial.Status != model.StatusDelivered {
		t.Fatalf("expected partial refund on delivered order, got %s/%s", partial.Payment.Status, partial.Status)
	}

	_, err = svc.ResolveRefund(ctx, admin, o.ID.Hex(), firstID, false, "")
	assertKind(t, err, apperr.ErrConflict)

	// a rejected request frees its reservation
	rejected, err := svc.RequestRefund(ctx, customer, o.ID.Hex(), 1000, "rest")
	if err != nil {
		t.Fatalf("RequestRefund: %v", err)
	}
	rejectedID := rejected.Refunds[1].ID
	if _, err := svc.ResolveRefund(ctx, admin, o.ID.Hex(), rejectedID, false, "no evidence"); err != nil {
		t.Fatalf("ResolveRefund: %v", err)
	}

	last, err := svc.RequestRefund(ctx, customer, o.ID.Hex(), 1000, "rest again")
	if err != nil {
		t.Fatalf("RequestRefund after rejection: %v", err)
	}
	lastID := last.Refunds[2].ID
	full, err := svc.ResolveRefund(ctx, admin, o.ID.Hex(), lastID, true, "")
	if err != nil {
		t.Fatalf("ResolveRefund: %v", err)
	}
	if full.Payment.Status != model.PaymentRefunded || full.Status != model.StatusRefunded {
		t.Fatalf("expected refunded order, got %s/%s", full.Payment.Status, full.Status)
	}
	h := full.StatusHistory[len(full.StatusHistory)-1]
	if h.Status != model.StatusRefunded || h.Note != "Refund approved" || h.UpdatedBy != admin.ID {
		t.Fatalf("unexpected history entry %+v", h)
	}
	if full.RefundTotal(model.RefundApproved) != full.TotalAmount {
		t.Fatalf("approved refunds %v must equal total %v", full.RefundTotal(model.RefundApproved), full.TotalAmount)
	}

	_, err = svc.RequestRefund(ctx, customer, o.ID.Hex(), 1, "more")
	assertKind(t, err, apperr.ErrConflict)
}

// approvalRace holds the first two refund resolutions until both have
// loaded the order, so each decides on the same approved total.
type approvalRace struct {
	*test.MemoryStore
	arrived sync.WaitGroup
	calls   atomic.Int32
}

func (a *approvalRace) ResolveRefund(ctx context.Context, id primitive.ObjectID, refundID string, res model.RefundResolution) (*model.Order, error) {
	if a.calls.Add(1) <= 2 {
		a.arrived.Done()
		a.arrived.Wait()
	}
	return a.MemoryStore.ResolveRefund(ctx, id, refundID, res)
}

func TestConcurrentApprovalsRefundOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.seedOrder(model.StatusDelivered)

	requests := NewRefundService(f.deps)
	var ids []string
	for _, reason := range []string{"kettle dented", "lid missing"} {
		got, err := requests.RequestRefund(ctx, customer, o.ID.Hex(), 730, reason)
		if err != nil {
			t.Fatalf("RequestRefund: %v", err)
		}
		ids = append(ids, got.Refunds[len(got.Refunds)-1].ID)
	}

	race := &approvalRace{MemoryStore: f.store}
	race.arrived.Add(2)
	deps := f.deps
	deps.Orders = race
	svc := NewRefundService(deps)

	var wg sync.WaitGroup
	errs := make([]error, len(ids))
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, errs[i] = svc.ResolveRefund(ctx, admin, o.ID.Hex(), id, true, "")
		}(i, id)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("approval %d: %v", i, err)
		}
	}
	if race.calls.Load() != 3 {
		t.Fatalf("expected one recomputed approval, got %d writes", race.calls.Load())
	}

	got := f.store.Order(o.ID)
	if got.RefundTotal(model.RefundApproved) != got.TotalAmount {
		t.Fatalf("approved %v, total %v", got.RefundTotal(model.RefundApproved), got.TotalAmount)
	}
	if got.Status != model.StatusRefunded || got.Payment.Status != model.PaymentRefunded {
		t.Fatalf("fully approved order must be refunded, got %s/%s", got.Status, got.Payment.Status)
	}
	if h := got.StatusHistory[len(got.StatusHistory)-1]; h.Status != model.StatusRefunded {
		t.Fatalf("expected refunded history entry, got %+v", h)
	}
}

func TestResolveRefundGivesUpAfterRepeatedConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.seedOrder(model.StatusDelivered)

	got, err := NewRefundService(f.deps).RequestRefund(ctx, customer, o.ID.Hex(), 730, "dented")
	if err != nil {
		t.Fatalf("RequestRefund: %v", err)
	}
	deps := f.deps
	deps.Orders = staleResolver{MemoryStore: f.store}

	_, err = NewRefundService(deps).ResolveRefund(ctx, admin, o.ID.Hex(), got.Refunds[0].ID, true, "")
	assertKind(t, err, apperr.ErrConflict)
	if r := f.store.Order(o.ID).Refunds[0]; r.Status != model.RefundPending {
		t.Fatalf("refund must stay pending, got %s", r.Status)
	}
}

type staleResolver struct {
	*test.MemoryStore
}

func (staleResolver) ResolveRefund(context.Context, primitive.ObjectID, string, model.RefundResolution) (*model.Order, error) {
	return nil, repository.ErrStale
}
