package service

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront-orders/internal/model"
	"storefront-orders/internal/test"
)

var (
	admin    = model.Actor{ID: "admin-1", Name: "Admin", Role: model.RoleAdmin}
	seller   = model.Actor{ID: "seller-1", Name: "Seller", Role: model.RoleSeller}
	other    = model.Actor{ID: "seller-2", Name: "Other seller", Role: model.RoleSeller}
	customer = model.Actor{ID: "user-1", Name: "Jane", Role: model.RoleCustomer}
	stranger = model.Actor{ID: "user-2", Name: "John", Role: model.RoleCustomer}
)

type fixture struct {
	deps   Deps
	store  *test.MemoryStore
	events *test.EmitterStub
	cache  *test.CacheStub
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:  test.NewMemoryStore(),
		events: &test.EmitterStub{},
		cache:  test.NewCacheStub(),
		now:    time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC),
	}
	f.deps = Deps{
		Orders:   f.store,
		Products: f.store.Products(),
		Carts:    f.store,
		Counters: f.store,
		Tx:       f.store,
		Events:   f.events,
		Cache:    f.cache,
		CacheTTL: time.Minute,
		Logger:   slog.New(slog.NewJSONHandler(io.Discard, nil)),
		Clock:    func() time.Time { return f.now },
	}
	return f
}

func (f *fixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

// seedOrder stores an order in status st whose only item belongs to
// seller and which customer owns.
func (f *fixture) seedOrder(st model.Status, mutate ...func(*model.Order)) *model.Order {
	o := model.Order{
		ID:          primitive.NewObjectID(),
		OrderNumber: "ORD-" + primitive.NewObjectID().Hex(),
		UserID:      customer.ID,
		Items: []model.LineItem{
			{Product: primitive.NewObjectID(), Name: "Kettle", Price: 1000, Quantity: 1, Seller: seller.ID},
		},
		Subtotal:        1000,
		TaxAmount:       160,
		ShippingAmount:  300,
		TotalAmount:     1460,
		Currency:        "KES",
		Payment:         model.Payment{Method: model.PaymentCard, Status: model.PaymentCompleted},
		ShippingAddress: model.Address{Street: "1 Moi Ave", City: "Mombasa", Country: "KE"},
		ShippingMethod:  model.ShippingStandard,
		Status:          st,
		StatusChangedAt: f.now,
		StatusHistory:   []model.StatusRecord{{Status: st, Timestamp: f.now}},
		Refunds:         []model.Refund{},
		CreatedAt:       f.now,
		UpdatedAt:       f.now,
	}
	for _, m := range mutate {
		m(&o)
	}
	return f.store.PutOrder(o)
}

func assertKind(t *testing.T, err, kind error) {
	t.Helper()
	if !errors.Is(err, kind) {
		t.Fatalf("expected %v, got %v", kind, err)
	}
}
