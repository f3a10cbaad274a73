package repository

import (
	"context"
	"errors"
	"fmt"
	driverserrors "movez/internal/drivers/errors"
	"movez/pkg/config"
	mongotx "movez/pkg/db/mongo"
	"movez/pkg/model"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Drivers"
)

type DriverRepository interface {
	Create(ctx context.Context, driver *model.Driver) error
	FindByID(ctx context.Context, id string) (*model.Driver, error)
	FindByUserID(ctx context.Context, userID string) (*model.Driver, error)
	FindAll(ctx context.Context, limit int, offset int64) ([]*model.Driver, error)
	Count(ctx context.Context) (int64, error)
	FindByStatus(ctx context.Context, status model.DriverStatus) ([]*model.Driver, error)
	SetOnDuty(ctx context.Context, id, bookingID string) error
	SetStatus(ctx context.Context, id string, status model.DriverStatus) error
	Release(ctx context.Context, id, bookingID string) (bool, error)
	ReleaseIfUnchanged(ctx context.Context, id string, version int64) error
}

type mongoDriverRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoDriverRepository(cfg *config.Config) DriverRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoDriverRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

func validID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: %s", driverserrors.ErrInvalidID, id)
	}
	return nil
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

func (r *mongoDriverRepository) Create(ctx context.Context, driver *model.Driver) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	at := now()
	if driver.ID == "" {
		driver.ID = uuid.NewString()
	}
	driver.CreatedAt = at
	driver.StatusUpdatedAt = at

	if _, err := r.collection.InsertOne(ctx, driver); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s", driverserrors.ErrDuplicateUser, driver.UserID)
		}
		return fmt.Errorf("failed to create driver: %w", err)
	}
	return nil
}

func (r *mongoDriverRepository) findOne(ctx context.Context, filter bson.M) (*model.Driver, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var driver model.Driver
	if err := r.collection.FindOne(ctx, filter).Decode(&driver); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, driverserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find driver: %w", err)
	}
	return &driver, nil
}

func (r *mongoDriverRepository) FindByID(ctx context.Context, id string) (*model.Driver, error) {
	if err := validID(id); err != nil {
		return nil, err
	}
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *mongoDriverRepository) FindByUserID(ctx context.Context, userID string) (*model.Driver, error) {
	return r.findOne(ctx, bson.M{"user_id": userID})
}

func (r *mongoDriverRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*model.Driver, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find drivers: %w", err)
	}
	defer cursor.Close(ctx)

	drivers := make([]*model.Driver, 0)
	if err = cursor.All(ctx, &drivers); err != nil {
		return nil, fmt.Errorf("failed to decode drivers: %w", err)
	}
	return drivers, nil
}

func (r *mongoDriverRepository) FindAll(ctx context.Context, limit int, offset int64) ([]*model.Driver, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)
	return r.find(ctx, bson.M{}, opts)
}

func (r *mongoDriverRepository) Count(ctx context.Context) (int64, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count drivers: %w", err)
	}
	return count, nil
}

func (r *mongoDriverRepository) FindByStatus(ctx context.Context, status model.DriverStatus) ([]*model.Driver, error) {
	return r.find(ctx, bson.M{"status": status}, options.Find().SetSort(bson.D{{Key: "status_updated_at", Value: 1}}))
}

// SetOnDuty attaches the driver to bookingID in one conditional write. It matches a driver that
// is not OnDuty, or is already OnDuty for the same booking.
func (r *mongoDriverRepository) SetOnDuty(ctx context.Context, id, bookingID string) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if err := validID(id); err != nil {
		return err
	}

	filter := bson.M{
		"_id": id,
		"$or": []bson.M{
			{"status": bson.M{"$ne": model.DriverOnDuty}},
			{"current_booking_id": bookingID},
		},
	}
	update := bson.M{
		"$set": bson.M{
			"status":             model.DriverOnDuty,
			"current_booking_id": bookingID,
			"status_updated_at":  now(),
		},
		"$inc": bson.M{"status_version": 1},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to set driver on duty: %w", err)
	}
	if result.MatchedCount == 0 {
		if _, err := r.FindByID(ctx, id); err != nil {
			return err
		}
		return driverserrors.ErrOnDutyElsewhere
	}
	return nil
}

// SetStatus writes status unconditionally and detaches the driver from any booking.
func (r *mongoDriverRepository) SetStatus(ctx context.Context, id string, status model.DriverStatus) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if err := validID(id); err != nil {
		return err
	}

	update := bson.M{
		"$set":   bson.M{"status": status, "status_updated_at": now()},
		"$unset": bson.M{"current_booking_id": ""},
		"$inc":   bson.M{"status_version": 1},
	}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to set driver status: %w", err)
	}
	if result.MatchedCount == 0 {
		return driverserrors.ErrNotFound
	}
	return nil
}

func (r *mongoDriverRepository) release(ctx context.Context, filter bson.M) (bool, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	update := bson.M{
		"$set":   bson.M{"status": model.DriverFreeStatus, "status_updated_at": now()},
		"$unset": bson.M{"current_booking_id": ""},
		"$inc":   bson.M{"status_version": 1},
	}
	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("failed to release driver: %w", err)
	}
	return result.ModifiedCount > 0, nil
}

// Release frees the driver only while it is still OnDuty for bookingID. It reports whether
// the driver was released.
func (r *mongoDriverRepository) Release(ctx context.Context, id, bookingID string) (bool, error) {
	if err := validID(id); err != nil {
		return false, err
	}
	return r.release(ctx, bson.M{"_id": id, "status": model.DriverOnDuty, "current_booking_id": bookingID})
}

// ReleaseIfUnchanged frees an OnDuty driver whose status_version still equals version.
func (r *mongoDriverRepository) ReleaseIfUnchanged(ctx context.Context, id string, version int64) error {
	if err := validID(id); err != nil {
		return err
	}
	released, err := r.release(ctx, bson.M{"_id": id, "status": model.DriverOnDuty, "status_version": version})
	if err != nil {
		return err
	}
	if !released {
		return driverserrors.ErrVersionChanged
	}
	return nil
}
