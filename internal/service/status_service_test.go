package service

import (
	"context"
	"regexp"
	"strings"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront-orders/internal/apperr"
	"storefront-orders/internal/audit"
	"storefront-orders/internal/model"
)

func TestUpdateStatusAppendsOneHistoryEntryPerChange(t *testing.T) {
	f := newFixture(t)
	o := f.seedOrder(model.StatusPending)
	svc := NewStatusService(f.deps)
	ctx := context.Background()

	path := []model.Status{model.StatusConfirmed, model.StatusProcessing, model.StatusShipped, model.StatusDelivered}
	for i, st := range path {
		f.advance(time.Hour)
		got, err := svc.UpdateStatus(ctx, admin, o.ID.Hex(), StatusUpdate{Status: st, Note: "step"})
		if err != nil {
			t.Fatalf("UpdateStatus(%s): %v", st, err)
		}
		if got.Status != st {
			t.Fatalf("expected %s, got %s", st, got.Status)
		}
		if len(got.StatusHistory) != i+2 {
			t.Fatalf("expected %d history entries, got %d", i+2, len(got.StatusHistory))
		}
		last := got.StatusHistory[len(got.StatusHistory)-1]
		if last.Status != st || last.UpdatedBy != admin.ID || last.Note != "step" || !last.Timestamp.Equal(f.now) {
			t.Fatalf("unexpected history entry %+v", last)
		}
		if !got.StatusChangedAt.Equal(f.now) {
			t.Fatalf("status_changed_at not updated")
		}
	}

	events := f.events.Types()
	if len(events) != len(path) {
		t.Fatalf("expected %d events, got %v", len(path), events)
	}
}

func TestUpdateStatusDuplicateIsNoop(t *testing.T) {
	f := newFixture(t)
	o := f.seedOrder(model.StatusConfirmed)
	svc := NewStatusService(f.deps)

	got, err := svc.UpdateStatus(context.Background(), admin, o.ID.Hex(), StatusUpdate{Status: model.StatusConfirmed})
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if len(got.StatusHistory) != 1 || len(f.store.Order(o.ID).StatusHistory) != 1 {
		t.Fatal("duplicate status must not grow history")
	}
	if len(f.events.Events()) != 0 {
		t.Fatal("duplicate status must not emit events")
	}
}

func TestUpdateStatusRejectsIllegalAndUnknown(t *testing.T) {
	f := newFixture(t)
	svc := NewStatusService(f.deps)
	ctx := context.Background()

	illegal := map[model.Status]model.Status{
		model.StatusDelivered: model.StatusPending,
		model.StatusPending:   model.StatusShipped,
		model.StatusShipped:   model.StatusCancelled,
		model.StatusCancelled: model.StatusConfirmed,
		model.StatusRefunded:  model.StatusDelivered,
	}
	for from, to := range illegal {
		o := f.seedOrder(from)
		_, err := svc.UpdateStatus(ctx, admin, o.ID.Hex(), StatusUpdate{Status: to})
		assertKind(t, err, apperr.ErrConflict)
		if f.store.Order(o.ID).Status != from {
			t.Fatalf("status changed on illegal transition %s -> %s", from, to)
		}
	}

	o := f.seedOrder(model.StatusPending)
	_, err := svc.UpdateStatus(ctx, admin, o.ID.Hex(), StatusUpdate{Status: "lost"})
	assertKind(t, err, apperr.ErrValidation)

	_, err = svc.UpdateStatus(ctx, admin, "not-an-id", StatusUpdate{Status: model.StatusConfirmed})
	assertKind(t, err, apperr.ErrValidation)

	_, err = svc.UpdateStatus(ctx, admin, primitive.NewObjectID().Hex(), StatusUpdate{Status: model.StatusConfirmed})
	assertKind(t, err, apperr.ErrNotFound)
}

func TestUpdateStatusCannotRefund(t *testing.T) {
	f := newFixture(t)
	svc := NewStatusService(f.deps)
	ctx := context.Background()

	for _, from := range []model.Status{model.StatusConfirmed, model.StatusProcessing, model.StatusDelivered} {
		o := f.seedOrder(from)
		_, err := svc.UpdateStatus(ctx, admin, o.ID.Hex(), StatusUpdate{Status: model.StatusRefunded})
		assertKind(t, err, apperr.ErrConflict)

		got := f.store.Order(o.ID)
		if got.Status != from || got.Payment.Status != model.PaymentCompleted || len(got.StatusHistory) != 1 {
			t.Fatalf("refund by status update changed the order: %s/%s", got.Status, got.Payment.Status)
		}
	}

	o := f.seedOrder(model.StatusDelivered)
	res, err := svc.BulkUpdateStatus(ctx, admin, []string{o.ID.Hex()}, StatusUpdate{Status: model.StatusRefunded})
	if err != nil {
		t.Fatalf("BulkUpdateStatus: %v", err)
	}
	if res.Summary.Failed != 1 || f.store.Order(o.ID).Status != model.StatusDelivered {
		t.Fatalf("bulk refund must fail, got %+v", res.Summary)
	}
}

func TestUpdateStatusAuthorization(t *testing.T) {
	f := newFixture(t)
	svc := NewStatusService(f.deps)
	ctx := context.Background()

	o := f.seedOrder(model.StatusPending)
	_, err := svc.UpdateStatus(ctx, customer, o.ID.Hex(), StatusUpdate{Status: model.StatusConfirmed})
	assertKind(t, err, apperr.ErrForbidden)

	_, err = svc.UpdateStatus(ctx, other, o.ID.Hex(), StatusUpdate{Status: model.StatusConfirmed})
	assertKind(t, err, apperr.ErrForbidden)

	if _, err := svc.UpdateStatus(ctx, seller, o.ID.Hex(), StatusUpdate{Status: model.StatusConfirmed}); err != nil {
		t.Fatalf("owning seller must be allowed: %v", err)
	}
}

func TestShippingGeneratesTracking(t *testing.T) {
	f := newFixture(t)
	o := f.seedOrder(model.StatusProcessing, func(o *model.Order) { o.ShippingMethod = model.ShippingExpress })
	svc := NewStatusService(f.deps)

	got, err := svc.UpdateStatus(context.Background(), admin, o.ID.Hex(), StatusUpdate{Status: model.StatusShipped})
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	tr := got.Tracking
	if tr == nil {
		t.Fatal("expected tracking")
	}
	if !regexp.MustCompile(`^TRK[0-9A-F]{10}$`).MatchString(tr.TrackingNumber) {
		t.Fatalf("unexpected tracking number %q", tr.TrackingNumber)
	}
	if tr.Carrier != "Storefront Express" || !strings.HasSuffix(tr.TrackingURL, tr.TrackingNumber) {
		t.Fatalf("unexpected tracking %+v", tr)
	}
	if !tr.EstimatedDelivery.Equal(f.now.Add(48 * time.Hour)) {
		t.Fatalf("expected express ETA +2d, got %v", tr.EstimatedDelivery)
	}

	// caller-provided tracking wins
	o2 := f.seedOrder(model.StatusProcessing)
	eta := f.now.Add(72 * time.Hour)
	got, err = svc.UpdateStatus(context.Background(), admin, o2.ID.Hex(), StatusUpdate{
		Status:   model.StatusShipped,
		Tracking: &TrackingInput{Carrier: "G4S", TrackingNumber: "G4S-1", EstimatedDelivery: &eta},
	})
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if got.Tracking.Carrier != "G4S" || got.Tracking.TrackingNumber != "G4S-1" || !got.Tracking.EstimatedDelivery.Equal(eta) {
		t.Fatalf("unexpected tracking %+v", got.Tracking)
	}
}

func TestDeliveredSetsActualDeliveryOnceAndCompletesCashOnDelivery(t *testing.T) {
	f := newFixture(t)
	earlier := f.now.Add(-time.Hour)
	o := f.seedOrder(model.StatusShipped, func(o *model.Order) {
		o.Payment = model.Payment{Method: model.PaymentCashOnDelivery, Status: model.PaymentPending}
		o.Tracking = &model.Tracking{Carrier: "X", TrackingNumber: "TRK1", ActualDelivery: &earlier}
	})
	svc := NewStatusService(f.deps)

	got, err := svc.UpdateStatus(context.Background(), admin, o.ID.Hex(), StatusUpdate{Status: model.StatusDelivered})
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if !got.Tracking.ActualDelivery.Equal(earlier) {
		t.Fatalf("actual delivery overwritten: %v", got.Tracking.ActualDelivery)
	}
	if got.Payment.Status != model.PaymentCompleted {
		t.Fatalf("expected COD payment completed, got %s", got.Payment.Status)
	}

	o2 := f.seedOrder(model.StatusShipped)
	got, err = svc.UpdateStatus(context.Background(), admin, o2.ID.Hex(), StatusUpdate{Status: model.StatusDelivered})
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if got.Tracking == nil || got.Tracking.ActualDelivery == nil || !got.Tracking.ActualDelivery.Equal(f.now) {
		t.Fatalf("expected actual delivery now, got %+v", got.Tracking)
	}
}

func TestConcurrentStatusChangeIsConflict(t *testing.T) {
	f := newFixture(t)
	o := f.seedOrder(model.StatusConfirmed)
	svc := NewStatusService(f.deps)

	// another writer moves the order between our read and our write
	f.store.BeforeApply = func(id primitive.ObjectID) {
		f.store.BeforeApply = nil
		cur := f.store.Order(id)
		cur.Status = model.StatusCancelled
		f.store.PutOrder(*cur)
	}

	_, err := svc.UpdateStatus(context.Background(), admin, o.ID.Hex(), StatusUpdate{Status: model.StatusProcessing})
	assertKind(t, err, apperr.ErrConflict)
	if got := f.store.Order(o.ID); got.Status != model.StatusCancelled || len(got.StatusHistory) != 1 {
		t.Fatalf("lost update: %+v", got)
	}
}

func TestCancelOrder(t *testing.T) {
	f := newFixture(t)
	svc := NewStatusService(f.deps)
	ctx := context.Background()

	p := f.store.PutProduct(model.Product{Name: "Kettle", Price: 1000, Stock: 4})
	o := f.seedOrder(model.StatusConfirmed, func(o *model.Order) {
		o.Items[0].Product = p.ID
		o.Items[0].Quantity = 2
	})

	_, err := svc.CancelOrder(ctx, stranger, o.ID.Hex(), "")
	assertKind(t, err, apperr.ErrForbidden)

	got, err := svc.CancelOrder(ctx, customer, o.ID.Hex(), "changed my mind")
	if err != nil {
		t.Fatalf("CancelOrder: %v", err)
	}
	if got.Status != model.StatusCancelled || got.StatusHistory[len(got.StatusHistory)-1].Note != "changed my mind" {
		t.Fatalf("unexpected cancelled order %+v", got)
	}
	if stock := f.store.Product(p.ID).Stock; stock != 6 {
		t.Fatalf("expected stock restored to 6, got %d", stock)
	}
	if types := f.events.Types(); types[len(types)-1] != audit.TypeOrderCancelled {
		t.Fatalf("expected cancel event, got %v", types)
	}

	processing := f.seedOrder(model.StatusProcessing)
	_, err = svc.CancelOrder(ctx, customer, processing.ID.Hex(), "")
	assertKind(t, err, apperr.ErrConflict)

	if _, err := svc.CancelOrder(ctx, admin, processing.ID.Hex(), ""); err != nil {
		t.Fatalf("admin may cancel processing orders: %v", err)
	}
}

func TestBulkUpdateStatus(t *testing.T) {
	f := newFixture(t)
	svc := NewStatusService(f.deps)
	ctx := context.Background()
	o := f.seedOrder(model.StatusPending)

	res, err := svc.BulkUpdateStatus(ctx, admin, []string{o.ID.Hex(), primitive.NewObjectID().Hex()}, StatusUpdate{Status: model.StatusConfirmed})
	if err != nil {
		t.Fatalf("BulkUpdateStatus: %v", err)
	}
	if res.Summary.Total != 2 || res.Summary.Successful != 1 || res.Summary.Failed != 1 {
		t.Fatalf("unexpected summary %+v", res.Summary)
	}
	if !res.Results[0].Success || res.Results[0].Status != model.StatusConfirmed {
		t.Fatalf("unexpected first result %+v", res.Results[0])
	}
	if res.Results[1].Success || res.Results[1].Message != "order not found" {
		t.Fatalf("unexpected second result %+v", res.Results[1])
	}

	_, err = svc.BulkUpdateStatus(ctx, admin, nil, StatusUpdate{Status: model.StatusConfirmed})
	assertKind(t, err, apperr.ErrValidation)

	ids := make([]string, 101)
	for i := range ids {
		ids[i] = primitive.NewObjectID().Hex()
	}
	_, err = svc.BulkUpdateStatus(ctx, admin, ids, StatusUpdate{Status: model.StatusConfirmed})
	assertKind(t, err, apperr.ErrValidation)

	// a seller only succeeds on orders carrying their items
	foreign := f.seedOrder(model.StatusPending, func(o *model.Order) { o.Items[0].Seller = other.ID })
	mine := f.seedOrder(model.StatusPending)
	res, err = svc.BulkUpdateStatus(ctx, seller, []string{foreign.ID.Hex(), mine.ID.Hex(), "bad"}, StatusUpdate{Status: model.StatusConfirmed})
	if err != nil {
		t.Fatalf("BulkUpdateStatus: %v", err)
	}
	if res.Summary.Successful != 1 || res.Summary.Failed != 2 {
		t.Fatalf("unexpected seller summary %+v", res.Summary)
	}
}

func TestBulkShipGeneratesTrackingPerOrder(t *testing.T) {
	f := newFixture(t)
	svc := NewStatusService(f.deps)
	ctx := context.Background()

	ids := make([]string, 3)
	for i := range ids {
		ids[i] = f.seedOrder(model.StatusProcessing).ID.Hex()
	}

	for _, in := range []*TrackingInput{{TrackingNumber: "TRKSHARED01"}, {TrackingURL: "https://track.example/x"}} {
		_, err := svc.BulkUpdateStatus(ctx, admin, ids, StatusUpdate{Status: model.StatusShipped, Tracking: in})
		assertKind(t, err, apperr.ErrValidation)
	}

	res, err := svc.BulkUpdateStatus(ctx, admin, ids, StatusUpdate{
		Status:   model.StatusShipped,
		Tracking: &TrackingInput{Carrier: "G4S"},
	})
	if err != nil {
		t.Fatalf("BulkUpdateStatus: %v", err)
	}
	if res.Summary.Successful != len(ids) {
		t.Fatalf("unexpected summary %+v", res.Summary)
	}

	seen := make(map[string]bool)
	for _, id := range ids {
		oid, _ := primitive.ObjectIDFromHex(id)
		tr := f.store.Order(oid).Tracking
		if tr == nil || tr.Carrier != "G4S" {
			t.Fatalf("unexpected tracking %+v", tr)
		}
		if seen[tr.TrackingNumber] {
			t.Fatalf("tracking number %s shared between orders", tr.TrackingNumber)
		}
		seen[tr.TrackingNumber] = true

		found, err := svc.TrackByNumber(ctx, tr.TrackingNumber)
		if err != nil {
			t.Fatalf("TrackByNumber: %v", err)
		}
		if found.OrderNumber != f.store.Order(oid).OrderNumber {
			t.Fatalf("tracking %s resolved to %s", tr.TrackingNumber, found.OrderNumber)
		}
	}
}

func TestListAndMyOrders(t *testing.T) {
	f := newFixture(t)
	svc := NewStatusService(f.deps)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		f.advance(time.Minute)
		f.seedOrder(model.StatusPending)
	}
	f.seedOrder(model.StatusShipped, func(o *model.Order) { o.UserID = stranger.ID })

	_, err := svc.ListOrders(ctx, customer, ListQuery{})
	assertKind(t, err, apperr.ErrForbidden)

	page, err := svc.ListOrders(ctx, admin, ListQuery{Status: model.StatusPending, Page: 2, Limit: 2})
	if err != nil {
		t.Fatalf("ListOrders: %v", err)
	}
	if len(page.Orders) != 2 || page.Pagination.Total != 5 || page.Pagination.Pages != 3 || page.Pagination.Page != 2 {
		t.Fatalf("unexpected page %+v", page.Pagination)
	}

	_, err = svc.ListOrders(ctx, admin, ListQuery{Status: "bogus"})
	assertKind(t, err, apperr.ErrValidation)
	_, err = svc.ListOrders(ctx, admin, ListQuery{From: f.now, To: f.now.Add(-time.Hour)})
	assertKind(t, err, apperr.ErrValidation)

	mine, err := svc.MyOrders(ctx, stranger, 0, 0)
	if err != nil {
		t.Fatalf("MyOrders: %v", err)
	}
	if len(mine.Orders) != 1 || mine.Pagination.Limit != defaultLimit {
		t.Fatalf("unexpected own orders %+v", mine.Pagination)
	}

	capped, err := svc.ListOrders(ctx, admin, ListQuery{Limit: 1000})
	if err != nil {
		t.Fatalf("ListOrders: %v", err)
	}
	if capped.Pagination.Limit != maxLimit {
		t.Fatalf("expected limit capped at %d, got %d", maxLimit, capped.Pagination.Limit)
	}
}

func TestGetOrderVisibility(t *testing.T) {
	f := newFixture(t)
	svc := NewStatusService(f.deps)
	o := f.seedOrder(model.StatusPending)
	ctx := context.Background()

	for _, a := range []model.Actor{admin, seller, customer} {
		if _, err := svc.GetOrder(ctx, a, o.ID.Hex()); err != nil {
			t.Fatalf("%s should see the order: %v", a.ID, err)
		}
	}
	for _, a := range []model.Actor{stranger, other} {
		_, err := svc.GetOrder(ctx, a, o.ID.Hex())
		assertKind(t, err, apperr.ErrForbidden)
	}
}

func TestTrackOrder(t *testing.T) {
	f := newFixture(t)
	svc := NewStatusService(f.deps)
	eta := f.now.Add(24 * time.Hour)
	o := f.seedOrder(model.StatusShipped, func(o *model.Order) {
		o.Tracking = &model.Tracking{Carrier: "X", TrackingNumber: "TRK1", EstimatedDelivery: &eta}
	})

	v, err := svc.TrackOrder(context.Background(), customer, o.ID.Hex())
	if err != nil {
		t.Fatalf("TrackOrder: %v", err)
	}
	if v.Progress != 75 || v.EstimatedDelivery == nil || !v.EstimatedDelivery.Equal(eta) || v.ItemCount != 1 {
		t.Fatalf("unexpected view %+v", v)
	}
}

func TestPublicLookupsAreCachedAndInvalidated(t *testing.T) {
	f := newFixture(t)
	svc := NewStatusService(f.deps)
	ctx := context.Background()
	o := f.seedOrder(model.StatusConfirmed)

	v, err := svc.GetByOrderNumber(ctx, o.OrderNumber)
	if err != nil {
		t.Fatalf("GetByOrderNumber: %v", err)
	}
	if v.Status != model.StatusConfirmed || v.ShippingCity != "Mombasa" || len(v.Items) != 1 {
		t.Fatalf("unexpected public view %+v", v)
	}
	key := f.cache.GenerateKey(keyOrderNumber, o.OrderNumber)
	if !f.cache.Has(key) {
		t.Fatal("expected view cached")
	}

	// served from cache even if storage changes behind our back
	stale := f.store.Order(o.ID)
	stale.ShippingAddress.City = "Kisumu"
	f.store.PutOrder(*stale)
	v, _ = svc.GetByOrderNumber(ctx, o.OrderNumber)
	if v.ShippingCity != "Mombasa" {
		t.Fatalf("expected cached view, got %+v", v)
	}

	if _, err := svc.UpdateStatus(ctx, admin, o.ID.Hex(), StatusUpdate{Status: model.StatusProcessing}); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if f.cache.Has(key) {
		t.Fatal("expected cache invalidated by status change")
	}
	v, _ = svc.GetByOrderNumber(ctx, o.OrderNumber)
	if v.Status != model.StatusProcessing {
		t.Fatalf("expected fresh status, got %s", v.Status)
	}

	shipped, err := svc.UpdateStatus(ctx, admin, o.ID.Hex(), StatusUpdate{Status: model.StatusShipped})
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	byTracking, err := svc.TrackByNumber(ctx, shipped.Tracking.TrackingNumber)
	if err != nil {
		t.Fatalf("TrackByNumber: %v", err)
	}
	if byTracking.OrderNumber != o.OrderNumber {
		t.Fatalf("unexpected order %q", byTracking.OrderNumber)
	}

	_, err = svc.TrackByNumber(ctx, "TRKMISSING00")
	assertKind(t, err, apperr.ErrNotFound)
	_, err = svc.GetByOrderNumber(ctx, "  ")
	assertKind(t, err, apperr.ErrValidation)
}
