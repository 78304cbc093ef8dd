// Package repository persists orders and reads the catalog and carts in
// MongoDB.
package repository

import (
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront-orders/internal/model"
)

var (
	ErrNotFound          = errors.New("document not found")
	ErrStale             = errors.New("document changed concurrently")
	ErrInsufficientStock = errors.New("insufficient stock")
)

const (
	ordersCollection   = "orders"
	productsCollection = "products"
	cartsCollection    = "carts"
	countersCollection = "counters"
)

// orderQuery translates f into a MongoDB filter.
func orderQuery(f model.OrderFilter) bson.M {
	q := bson.M{}
	if f.UserID != "" {
		q["user_id"] = f.UserID
	}
	if f.Seller != "" {
		q["items.seller"] = f.Seller
	}
	if len(f.Statuses) == 1 {
		q["status"] = f.Statuses[0]
	} else if len(f.Statuses) > 1 {
		q["status"] = bson.M{"$in": f.Statuses}
	}

	created := bson.M{}
	if !f.CreatedFrom.IsZero() {
		created["$gte"] = f.CreatedFrom
	}
	if !f.CreatedTo.IsZero() {
		created["$lt"] = f.CreatedTo
	}
	if len(created) > 0 {
		q["created_at"] = created
	}
	if !f.StatusChangedBefore.IsZero() {
		q["status_changed_at"] = bson.M{"$lt": f.StatusChangedBefore}
	}
	if !f.EstimatedDeliveryBefore.IsZero() {
		q["tracking.estimated_delivery"] = bson.M{"$lt": f.EstimatedDeliveryBefore}
	}
	return q
}

func findOptions(f model.OrderFilter) *options.FindOptions {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if f.Limit > 0 {
		page := f.Page
		if page < 1 {
			page = 1
		}
		opts.SetSkip(int64((page - 1) * f.Limit)).SetLimit(int64(f.Limit))
	}
	return opts
}
