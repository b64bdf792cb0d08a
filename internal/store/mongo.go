package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/capitalize-ai/flight-concierge/internal/apperr"
	"github.com/capitalize-ai/flight-concierge/internal/model"
)

const (
	bookingsCollection = "bookings"
	mongoOpTimeout     = 5 * time.Second
)

// MongoBookingRepository stores bookings in the bookings collection.
type MongoBookingRepository struct {
	coll *mongo.Collection
}

// NewMongoBookingRepository creates the repository and ensures its indexes.
func NewMongoBookingRepository(ctx context.Context, db *mongo.Database) (*MongoBookingRepository, error) {
	r := &MongoBookingRepository{coll: db.Collection(bookingsCollection)}
	if err := r.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *MongoBookingRepository) ensureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	indexModels := []mongo.IndexModel{
		{Keys: bson.D{{Key: "order_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "session_id", Value: 1}}},
	}
	if _, err := r.coll.Indexes().CreateMany(ctx, indexModels); err != nil {
		return fmt.Errorf("failed to create booking indexes: %w", err)
	}
	return nil
}

// Create inserts a booking document.
func (r *MongoBookingRepository) Create(ctx context.Context, b *model.Booking) error {
	ctx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()

	if _, err := r.coll.InsertOne(ctx, b); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperr.Conflictf("booking for order %s already exists", b.OrderID)
		}
		return fmt.Errorf("failed to create booking for order %s: %w", b.OrderID, err)
	}
	return nil
}

// GetByOrderID finds the booking of a provider order.
func (r *MongoBookingRepository) GetByOrderID(ctx context.Context, orderID string) (*model.Booking, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()

	var b model.Booking
	err := r.coll.FindOne(ctx, bson.M{"order_id": orderID}).Decode(&b)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, &apperr.NotFoundError{Resource: "booking", ID: orderID}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking for order %s: %w", orderID, err)
	}
	return &b, nil
}

// ListByUser returns a user's bookings, newest first.
func (r *MongoBookingRepository) ListByUser(ctx context.Context, userID string) ([]model.Booking, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.coll.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings for user %s: %w", userID, err)
	}
	defer cursor.Close(ctx)

	bookings := []model.Booking{}
	if err := cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("failed to decode bookings for user %s: %w", userID, err)
	}
	return bookings, nil
}

// Update replaces the mutable fields of a booking.
func (r *MongoBookingRepository) Update(ctx context.Context, b *model.Booking) error {
	ctx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()

	update := bson.M{"$set": bson.M{
		"status":       b.Status,
		"user_id":      b.UserID,
		"payment":      b.Payment,
		"cancellation": b.Cancellation,
		"updated_at":   b.UpdatedAt,
	}}
	result, err := r.coll.UpdateOne(ctx, bson.M{"order_id": b.OrderID}, update)
	if err != nil {
		return fmt.Errorf("failed to update booking for order %s: %w", b.OrderID, err)
	}
	if result.MatchedCount == 0 {
		return &apperr.NotFoundError{Resource: "booking", ID: b.OrderID}
	}
	return nil
}
