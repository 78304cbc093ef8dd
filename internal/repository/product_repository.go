package repository

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"storefront-orders/internal/model"
)

type ProductRepository struct {
	col *mongo.Collection
}

func NewProductRepository(db *mongo.Database) *ProductRepository {
	return &ProductRepository{col: db.Collection(productsCollection)}
}

func (r *ProductRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*model.Product, error) {
	var p model.Product
	err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find product: %w", err)
	}
	return &p, nil
}

// Reserve decrements stock by qty only if at least qty units remain. When
// variant is non-nil the matching variant's stock is decremented instead.
func (r *ProductRepository) Reserve(ctx context.Context, id primitive.ObjectID, variant *model.VariantSpec, qty int) error {
	filter := bson.M{"_id": id, "status": model.ProductActive}
	field := "stock"
	if variant != nil {
		match := variantMatch(*variant)
		match["stock"] = bson.M{"$gte": qty}
		filter["variants"] = bson.M{"$elemMatch": match}
		field = "variants.$.stock"
	} else {
		filter["stock"] = bson.M{"$gte": qty}
	}

	res, err := r.col.UpdateOne(ctx, filter, bson.M{"$inc": bson.M{field: -qty}})
	if err != nil {
		return fmt.Errorf("reserve stock: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrInsufficientStock
	}
	return nil
}

// Release returns qty units to stock.
func (r *ProductRepository) Release(ctx context.Context, id primitive.ObjectID, variant *model.VariantSpec, qty int) error {
	filter := bson.M{"_id": id}
	field := "stock"
	if variant != nil {
		filter["variants"] = bson.M{"$elemMatch": variantMatch(*variant)}
		field = "variants.$.stock"
	}

	res, err := r.col.UpdateOne(ctx, filter, bson.M{"$inc": bson.M{field: qty}})
	if err != nil {
		return fmt.Errorf("release stock: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func variantMatch(v model.VariantSpec) bson.M {
	if v.SKU != "" {
		return bson.M{"sku": v.SKU}
	}
	m := bson.M{}
	if v.Size != "" {
		m["size"] = v.Size
	}
	if v.Color != "" {
		m["color"] = v.Color
	}
	if v.Material != "" {
		m["material"] = v.Material
	}
	return m
}
