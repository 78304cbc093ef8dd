package repository

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront-orders/internal/model"
)

type OrderRepository struct {
	col *mongo.Collection
}

func NewOrderRepository(db *mongo.Database) *OrderRepository {
	return &OrderRepository{col: db.Collection(ordersCollection)}
}

// EnsureIndexes creates the lookup indexes used by the order queries.
func (r *OrderRepository) EnsureIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "order_number", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "tracking.tracking_number", Value: 1}}, Options: options.Index().SetSparse(true)},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "items.seller", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "status_changed_at", Value: 1}}},
	}
	if _, err := r.col.Indexes().CreateMany(ctx, models); err != nil {
		return fmt.Errorf("create order indexes: %w", err)
	}
	return nil
}

func (r *OrderRepository) Insert(ctx context.Context, o *model.Order) error {
	if o.ID.IsZero() {
		o.ID = primitive.NewObjectID()
	}
	if _, err := r.col.InsertOne(ctx, o); err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (r *OrderRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*model.Order, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *OrderRepository) FindByNumber(ctx context.Context, number string) (*model.Order, error) {
	return r.findOne(ctx, bson.M{"order_number": number})
}

func (r *OrderRepository) FindByTrackingNumber(ctx context.Context, trackingNumber string) (*model.Order, error) {
	return r.findOne(ctx, bson.M{"tracking.tracking_number": trackingNumber})
}

func (r *OrderRepository) findOne(ctx context.Context, filter bson.M) (*model.Order, error) {
	var res model.Order
	err := r.col.FindOne(ctx, filter).Decode(&res)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find order: %w", err)
	}
	return &res, nil
}

// List returns one page of matching orders, newest first, and the total
// number of matches.
func (r *OrderRepository) List(ctx context.Context, f model.OrderFilter) ([]*model.Order, int64, error) {
	q := orderQuery(f)

	total, err := r.col.CountDocuments(ctx, q)
	if err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	cur, err := r.col.Find(ctx, q, findOptions(f))
	if err != nil {
		return nil, 0, fmt.Errorf("find orders: %w", err)
	}
	defer cur.Close(ctx)

	out := make([]*model.Order, 0)
	for cur.Next(ctx) {
		var o model.Order
		if err := cur.Decode(&o); err != nil {
			return nil, 0, fmt.Errorf("decode order: %w", err)
		}
		out = append(out, &o)
	}
	if err := cur.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate orders: %w", err)
	}
	return out, total, nil
}

// CountByStatus groups the matching orders by status.
func (r *OrderRepository) CountByStatus(ctx context.Context, f model.OrderFilter) (map[model.Status]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: orderQuery(f)}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$status"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}

	cur, err := r.col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate status counts: %w", err)
	}
	defer cur.Close(ctx)

	counts := make(map[model.Status]int64)
	for cur.Next(ctx) {
		var row struct {
			Status model.Status `bson:"_id"`
			Count  int64        `bson:"count"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, fmt.Errorf("decode status count: %w", err)
		}
		counts[row.Status] = row.Count
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("iterate status counts: %w", err)
	}
	return counts, nil
}

// ApplyStatusChange moves the order from status from to ch.To and appends
// the history record in one update. ErrStale means the order is no longer
// in status from.
func (r *OrderRepository) ApplyStatusChange(ctx context.Context, id primitive.ObjectID, from model.Status, ch model.StatusChange) (*model.Order, error) {
	set := bson.M{
		"status":            ch.To,
		"status_changed_at": ch.At,
		"updated_at":        ch.At,
	}
	if ch.Tracking != nil {
		set["tracking"] = ch.Tracking
	}
	if ch.PaymentStatus != "" {
		set["payment.status"] = ch.PaymentStatus
	}

	filter := bson.M{"_id": id, "status": from}
	update := bson.M{
		"$set":  set,
		"$push": bson.M{"status_history": ch.Record},
	}
	return r.findOneAndUpdate(ctx, id, filter, update)
}

// AppendRefund adds a refund request. seen is the number of refunds the
// caller validated against; a different count yields ErrStale.
func (r *OrderRepository) AppendRefund(ctx context.Context, id primitive.ObjectID, seen int, refund model.Refund) (*model.Order, error) {
	filter := bson.M{"_id": id, "refunds": bson.M{"$size": seen}}
	if seen == 0 {
		// orders created before refunds existed may lack the array
		filter = bson.M{"_id": id, "$or": bson.A{
			bson.M{"refunds": bson.M{"$size": 0}},
			bson.M{"refunds": bson.M{"$exists": false}},
			bson.M{"refunds": nil},
		}}
	}
	update := bson.M{
		"$push": bson.M{"refunds": refund},
		"$set":  bson.M{"updated_at": refund.RequestedAt},
	}
	return r.findOneAndUpdate(ctx, id, filter, update)
}

// ResolveRefund decides a pending refund. ErrStale means the refund is no
// longer pending or the number of approved refunds differs from
// res.ApprovedSeen.
func (r *OrderRepository) ResolveRefund(ctx context.Context, id primitive.ObjectID, refundID string, res model.RefundResolution) (*model.Order, error) {
	set := bson.M{
		"refunds.$.status":       res.Status,
		"refunds.$.processed_by": res.ProcessedBy,
		"refunds.$.processed_at": res.ProcessedAt,
		"updated_at":             res.ProcessedAt,
	}
	if res.Note != "" {
		set["refunds.$.note"] = res.Note
	}
	if res.PaymentStatus != "" {
		set["payment.status"] = res.PaymentStatus
	}
	update := bson.M{"$set": set}
	if res.OrderStatus != "" {
		set["status"] = res.OrderStatus
		set["status_changed_at"] = res.ProcessedAt
		if res.Record != nil {
			update["$push"] = bson.M{"status_history": res.Record}
		}
	}

	filter := bson.M{
		"_id":     id,
		"refunds": bson.M{"$elemMatch": bson.M{"id": refundID, "status": model.RefundPending}},
		"$expr":   bson.M{"$eq": bson.A{approvedCount, res.ApprovedSeen}},
	}
	return r.findOneAndUpdate(ctx, id, filter, update)
}

// approvedCount counts the approved entries of the refunds array.
var approvedCount = bson.M{"$size": bson.M{"$filter": bson.M{
	"input": bson.M{"$ifNull": bson.A{"$refunds", bson.A{}}},
	"cond":  bson.M{"$eq": bson.A{"$$this.status", model.RefundApproved}},
}}}

func (r *OrderRepository) findOneAndUpdate(ctx context.Context, id primitive.ObjectID, filter, update bson.M) (*model.Order, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var res model.Order
	err := r.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&res)
	if errors.Is(err, mongo.ErrNoDocuments) {
		if _, findErr := r.FindByID(ctx, id); findErr != nil {
			return nil, findErr
		}
		return nil, ErrStale
	}
	if err != nil {
		return nil, fmt.Errorf("update order: %w", err)
	}
	return &res, nil
}
