package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type CartRepository struct {
	col *mongo.Collection
}

func NewCartRepository(db *mongo.Database) *CartRepository {
	return &CartRepository{col: db.Collection(cartsCollection)}
}

// Clear empties the user's cart. A missing cart is not an error.
func (r *CartRepository) Clear(ctx context.Context, userID string) error {
	update := bson.M{"$set": bson.M{"items": bson.A{}, "updated_at": time.Now().UTC()}}
	if _, err := r.col.UpdateOne(ctx, bson.M{"user_id": userID}, update); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}
