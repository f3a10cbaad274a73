package repository

import (
	"context"
	"fmt"
	paymentserrors "movez/internal/payments/errors"
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
	CollectionName = "Payments"
)

// PaymentRepository is append-only: payments are inserted and read, never updated.
type PaymentRepository interface {
	Create(ctx context.Context, payment *model.Payment) error
	FindByCustomer(ctx context.Context, customerID string) ([]*model.Payment, error)
	FindByBooking(ctx context.Context, bookingID string) ([]*model.Payment, error)
	FindRecentPaid(ctx context.Context, n int) ([]*model.Payment, error)
	FindRecentCashByCustomer(ctx context.Context, customerID string, n int) ([]*model.Payment, error)
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

type mongoPaymentRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

func NewMongoPaymentRepository(cfg *config.Config) PaymentRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoPaymentRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

// Create inserts a payment. The unique partial index on booking_id for Paid payments turns a
// second settlement into ErrAlreadyRecorded.
func (r *mongoPaymentRepository) Create(ctx context.Context, payment *model.Payment) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	payment.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)

	if _, err := r.collection.InsertOne(ctx, payment); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s", paymentserrors.ErrAlreadyRecorded, payment.BookingID)
		}
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

func (r *mongoPaymentRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*model.Payment, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find payments: %w", err)
	}
	defer cursor.Close(ctx)

	payments := make([]*model.Payment, 0)
	if err = cursor.All(ctx, &payments); err != nil {
		return nil, fmt.Errorf("failed to decode payments: %w", err)
	}
	return payments, nil
}

func newestFirst() bson.D {
	return bson.D{{Key: "payment_date", Value: -1}, {Key: "_id", Value: 1}}
}

func (r *mongoPaymentRepository) FindByCustomer(ctx context.Context, customerID string) ([]*model.Payment, error) {
	return r.find(ctx, bson.M{"customer_id": customerID}, options.Find().SetSort(newestFirst()))
}

func (r *mongoPaymentRepository) FindByBooking(ctx context.Context, bookingID string) ([]*model.Payment, error) {
	return r.find(ctx, bson.M{"booking_id": bookingID}, options.Find().SetSort(newestFirst()))
}

func (r *mongoPaymentRepository) FindRecentPaid(ctx context.Context, n int) ([]*model.Payment, error) {
	filter := bson.M{"status": model.PaymentPaid}
	return r.find(ctx, filter, options.Find().SetSort(newestFirst()).SetLimit(int64(n)))
}

func (r *mongoPaymentRepository) FindRecentCashByCustomer(ctx context.Context, customerID string, n int) ([]*model.Payment, error) {
	filter := bson.M{"customer_id": customerID, "method": model.PaymentCash}
	return r.find(ctx, filter, options.Find().SetSort(newestFirst()).SetLimit(int64(n)))
}

func (r *mongoPaymentRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
