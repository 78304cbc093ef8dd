// Package service implements the order lifecycle: checkout, status
// transitions, refunds, dashboards and the automated sweep.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront-orders/internal/apperr"
	"storefront-orders/internal/audit"
	"storefront-orders/internal/cache"
	"storefront-orders/internal/model"
	"storefront-orders/internal/repository"
)

// OrderStore is implemented by repository.OrderRepository.
type OrderStore interface {
	Insert(ctx context.Context, o *model.Order) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*model.Order, error)
	FindByNumber(ctx context.Context, number string) (*model.Order, error)
	FindByTrackingNumber(ctx context.Context, trackingNumber string) (*model.Order, error)
	List(ctx context.Context, f model.OrderFilter) ([]*model.Order, int64, error)
	CountByStatus(ctx context.Context, f model.OrderFilter) (map[model.Status]int64, error)
	ApplyStatusChange(ctx context.Context, id primitive.ObjectID, from model.Status, ch model.StatusChange) (*model.Order, error)
	AppendRefund(ctx context.Context, id primitive.ObjectID, seen int, refund model.Refund) (*model.Order, error)
	ResolveRefund(ctx context.Context, id primitive.ObjectID, refundID string, res model.RefundResolution) (*model.Order, error)
}

type ProductStore interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*model.Product, error)
	Reserve(ctx context.Context, id primitive.ObjectID, variant *model.VariantSpec, qty int) error
	Release(ctx context.Context, id primitive.ObjectID, variant *model.VariantSpec, qty int) error
}

type CartStore interface {
	Clear(ctx context.Context, userID string) error
}

type Sequencer interface {
	Next(ctx context.Context, name string) (int64, error)
}

type Transactor interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Clock returns the current time. Tests pin it.
type Clock func() time.Time

func systemClock() time.Time { return time.Now().UTC() }

// Deps groups the collaborators shared by the services of this package.
type Deps struct {
	Orders   OrderStore
	Products ProductStore
	Carts    CartStore
	Counters Sequencer
	Tx       Transactor
	Events   audit.Emitter
	Cache    cache.Cache
	CacheTTL time.Duration
	Logger   *slog.Logger
	Clock    Clock
}

func (d Deps) now() time.Time {
	if d.Clock == nil {
		return systemClock()
	}
	return d.Clock()
}

func (d Deps) emit(ctx context.Context, eventType string, o *model.Order, actor model.Actor, data map[string]any) {
	if d.Events == nil {
		return
	}
	d.Events.Emit(ctx, audit.NewEvent(eventType, o, actor, data))
}

// invalidate drops the cached public views of o.
func (d Deps) invalidate(ctx context.Context, o *model.Order) {
	if d.Cache == nil || o == nil {
		return
	}
	keys := []string{d.Cache.GenerateKey(keyOrderNumber, o.OrderNumber)}
	if o.Tracking != nil && o.Tracking.TrackingNumber != "" {
		keys = append(keys, d.Cache.GenerateKey(keyTracking, o.Tracking.TrackingNumber))
	}
	if err := d.Cache.Delete(ctx, keys...); err != nil {
		d.Logger.Warn("cache invalidation failed", "order_number", o.OrderNumber, "error", err)
	}
}

func parseID(raw, what string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return primitive.NilObjectID, apperr.Validation("invalid %s id %q", what, raw)
	}
	return id, nil
}

// orderErr classifies a storage error of the order collection.
func orderErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return apperr.NotFound("order not found")
	case errors.Is(err, repository.ErrStale):
		return apperr.Conflict("order was modified concurrently, retry the request")
	default:
		return fmt.Errorf("order store: %w", err)
	}
}

func (d Deps) loadOrder(ctx context.Context, rawID string) (*model.Order, error) {
	id, err := parseID(rawID, "order")
	if err != nil {
		return nil, err
	}
	o, err := d.Orders.FindByID(ctx, id)
	if err != nil {
		return nil, orderErr(err)
	}
	return o, nil
}

// canManage reports whether actor may change the status of o.
func canManage(actor model.Actor, o *model.Order) bool {
	return actor.IsAdmin() || (actor.IsSeller() && o.HasSeller(actor.ID))
}

// canView adds the owning customer to canManage.
func canView(actor model.Actor, o *model.Order) bool {
	return canManage(actor, o) || (actor.ID != "" && o.UserID == actor.ID)
}
