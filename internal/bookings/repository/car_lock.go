package repository

import (
	"context"
	"fmt"
	bookingserrors "movez/internal/bookings/errors"
	"movez/pkg/config"
	mongotx "movez/pkg/db/mongo"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const CarLockCollectionName = "Car_locks"

// CarLockRepository serializes booking creation per car. Touch must run inside the
// creating transaction: two transactions touching the same car conflict on the lock
// document and only one commits.
type CarLockRepository interface {
	Touch(ctx context.Context, carID string) error
}

type mongoCarLockRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewCarLockRepository(cfg *config.Config) CarLockRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoCarLockRepository{
		cfg:        cfg,
		collection: db.Collection(CarLockCollectionName),
	}
}

func (r *mongoCarLockRepository) Touch(ctx context.Context, carID string) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	update := bson.M{
		"$inc": bson.M{"version": 1},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	}
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": carID}, update, options.Update().SetUpsert(true))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return bookingserrors.ErrCarLockContention
		}
		return fmt.Errorf("failed to lock car: %w", err)
	}
	return nil
}
