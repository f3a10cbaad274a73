package repository

import (
	"context"
	"errors"
	"fmt"
	bookingserrors "movez/internal/bookings/errors"
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
	CollectionName = "Bookings"
)

// StatusChange is a conditional transition: it applies only while the stored booking
// still has FromStatus and FromDriverID. ClearDriver moves the driver to released_driver_id.
type StatusChange struct {
	BookingID    string
	FromStatus   model.BookingStatus
	FromDriverID string
	ToStatus     model.BookingStatus
	DriverID     string
	ClearDriver  bool
	At           time.Time
}

type BookingRepository interface {
	Create(ctx context.Context, booking *model.Booking) error
	FindByID(ctx context.Context, id string) (*model.Booking, error)
	FindAll(ctx context.Context, limit int, offset int64) ([]*model.Booking, error)
	Count(ctx context.Context) (int64, error)
	FindActiveOverlapping(ctx context.Context, carID string, start, end time.Time, excludeID string) ([]*model.Booking, error)
	FindActiveByCar(ctx context.Context, carID string) ([]*model.Booking, error)
	FindByCar(ctx context.Context, carID string) ([]*model.Booking, error)
	FindByCustomer(ctx context.Context, customerID string) ([]*model.Booking, error)
	FindAssignedByDriver(ctx context.Context, driverID string) ([]*model.Booking, error)
	FindLatestByDriver(ctx context.Context, driverID string) (*model.Booking, error)
	FindRecent(ctx context.Context, n int) ([]*model.Booking, error)
	FindRecentAssignedByCustomer(ctx context.Context, customerID string, n int) ([]*model.Booking, error)
	UpdateStatus(ctx context.Context, change StatusChange) error
	MarkPaid(ctx context.Context, id string) error
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

type mongoBookingRepository struct {
	cfg        *config.Config
	db         *mongo.Database
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

func NewMongoBookingRepository(cfg *config.Config) BookingRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoBookingRepository{
		cfg:        cfg,
		db:         db,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

func validID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}
	return nil
}

func activeStatuses() bson.M {
	return bson.M{"$in": model.ActiveBookingStatuses}
}

func (r *mongoBookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}
	booking.CreatedAt = now
	booking.StatusUpdatedAt = now

	if _, err := r.collection.InsertOne(ctx, booking); err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}
	return nil
}

func (r *mongoBookingRepository) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	if err := validID(id); err != nil {
		return nil, err
	}

	var booking model.Booking
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&booking)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, bookingserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find booking: %w", err)
	}

	return &booking, nil
}

func (r *mongoBookingRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*model.Booking, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find bookings: %w", err)
	}
	defer cursor.Close(ctx)

	bookings := make([]*model.Booking, 0)
	if err = cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("failed to decode bookings: %w", err)
	}

	return bookings, nil
}

func (r *mongoBookingRepository) FindAll(ctx context.Context, limit int, offset int64) ([]*model.Booking, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	return r.find(ctx, bson.M{}, opts)
}

func (r *mongoBookingRepository) Count(ctx context.Context) (int64, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count bookings: %w", err)
	}

	return count, nil
}

// FindActiveOverlapping returns Pending/Assigned bookings of carID whose [start_date, end_date)
// intersects [start, end).
func (r *mongoBookingRepository) FindActiveOverlapping(ctx context.Context, carID string, start, end time.Time, excludeID string) ([]*model.Booking, error) {
	filter := bson.M{
		"car_id":     carID,
		"status":     activeStatuses(),
		"start_date": bson.M{"$lt": end},
		"end_date":   bson.M{"$gt": start},
	}
	if excludeID != "" {
		filter["_id"] = bson.M{"$ne": excludeID}
	}

	return r.find(ctx, filter, options.Find().SetSort(bson.D{{Key: "start_date", Value: 1}}))
}

func (r *mongoBookingRepository) FindActiveByCar(ctx context.Context, carID string) ([]*model.Booking, error) {
	filter := bson.M{"car_id": carID, "status": activeStatuses()}
	return r.find(ctx, filter, options.Find().SetSort(bson.D{{Key: "start_date", Value: 1}}))
}

func (r *mongoBookingRepository) FindByCar(ctx context.Context, carID string) ([]*model.Booking, error) {
	return r.find(ctx, bson.M{"car_id": carID}, options.Find().SetSort(bson.D{{Key: "start_date", Value: 1}}))
}

func (r *mongoBookingRepository) FindByCustomer(ctx context.Context, customerID string) ([]*model.Booking, error) {
	return r.find(ctx, bson.M{"customer_id": customerID}, options.Find().SetSort(bson.D{{Key: "start_date", Value: -1}}))
}

func (r *mongoBookingRepository) FindAssignedByDriver(ctx context.Context, driverID string) ([]*model.Booking, error) {
	filter := bson.M{"driver_id": driverID, "status": model.BookingAssigned}
	return r.find(ctx, filter, options.Find().SetSort(bson.D{{Key: "start_date", Value: 1}}))
}

// FindLatestByDriver returns the newest booking by status_updated_at that the driver is or was
// attached to, including cancelled assignments.
func (r *mongoBookingRepository) FindLatestByDriver(ctx context.Context, driverID string) (*model.Booking, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.FindOne().SetSort(bson.D{{Key: "status_updated_at", Value: -1}, {Key: "_id", Value: -1}})

	var booking model.Booking
	filter := bson.M{"$or": []bson.M{{"driver_id": driverID}, {"released_driver_id": driverID}}}
	err := r.collection.FindOne(ctx, filter, opts).Decode(&booking)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, bookingserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find latest booking for driver: %w", err)
	}

	return &booking, nil
}

func (r *mongoBookingRepository) FindRecent(ctx context.Context, n int) ([]*model.Booking, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(int64(n))
	return r.find(ctx, bson.M{}, opts)
}

func (r *mongoBookingRepository) FindRecentAssignedByCustomer(ctx context.Context, customerID string, n int) ([]*model.Booking, error) {
	filter := bson.M{"customer_id": customerID, "status": model.BookingAssigned}
	opts := options.Find().SetSort(bson.D{{Key: "status_updated_at", Value: -1}}).SetLimit(int64(n))
	return r.find(ctx, filter, opts)
}

func (r *mongoBookingRepository) UpdateStatus(ctx context.Context, change StatusChange) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if err := validID(change.BookingID); err != nil {
		return err
	}

	filter := bson.M{"_id": change.BookingID, "status": change.FromStatus}
	if change.FromDriverID == "" {
		filter["driver_id"] = bson.M{"$exists": false}
	} else {
		filter["driver_id"] = change.FromDriverID
	}

	set := bson.M{
		"status":            change.ToStatus,
		"status_updated_at": change.At.UTC().Truncate(time.Millisecond),
	}
	update := bson.M{"$set": set}
	switch {
	case change.DriverID != "":
		set["driver_id"] = change.DriverID
	case change.ClearDriver && change.FromDriverID != "":
		set["released_driver_id"] = change.FromDriverID
		update["$unset"] = bson.M{"driver_id": ""}
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update booking status: %w", err)
	}
	if result.MatchedCount == 0 {
		if _, err := r.FindByID(ctx, change.BookingID); err != nil {
			return err
		}
		return bookingserrors.ErrStatusChanged
	}

	return nil
}

func (r *mongoBookingRepository) MarkPaid(ctx context.Context, id string) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if err := validID(id); err != nil {
		return err
	}

	filter := bson.M{"_id": id, "is_paid": false}
	update := bson.M{"$set": bson.M{"payment_status": model.Paid, "is_paid": true}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to mark booking paid: %w", err)
	}
	if result.MatchedCount == 0 {
		if _, err := r.FindByID(ctx, id); err != nil {
			return err
		}
		return bookingserrors.ErrAlreadyPaid
	}

	return nil
}

func (r *mongoBookingRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
