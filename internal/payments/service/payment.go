package service

import (
	"context"
	"errors"
	bookingserrors "movez/internal/bookings/errors"
	paymentserrors "movez/internal/payments/errors"
	"movez/internal/payments/repository"
	"movez/internal/payments/validator"
	"movez/pkg/auth"
	"movez/pkg/config"
	apperrors "movez/pkg/errors"
	"movez/pkg/events"
	"movez/pkg/model"
	"movez/pkg/sanitizer"
	"movez/pkg/validation"
	"time"
)

// BookingLedger is the slice of booking storage the ledger needs: reading a booking and
// mirroring a settled payment onto it.
type BookingLedger interface {
	FindByID(ctx context.Context, id string) (*model.Booking, error)
	MarkPaid(ctx context.Context, id string) error
}

type PaymentService interface {
	RecordPayment(ctx context.Context, caller auth.Caller, in *model.PaymentRequest) (*model.Payment, error)
	ConfirmCashPayment(ctx context.Context, caller auth.Caller, in *model.CashConfirmation) (*model.Payment, error)
	GetPaymentsByCustomer(ctx context.Context, customerID string) ([]*model.Payment, error)
	GetPaymentsByBooking(ctx context.Context, caller auth.Caller, bookingID string) ([]*model.Payment, error)
	GetRecentPayments(ctx context.Context, n int) ([]*model.Payment, error)
	GetRecentCashPayments(ctx context.Context, customerID string, n int) ([]*model.Payment, error)
}

type paymentService struct {
	repo      repository.PaymentRepository
	bookings  BookingLedger
	publisher events.Publisher
	validator *validator.PaymentValidator
	cfg       *config.Config
	now       func() time.Time
}

func NewPaymentService(
	repo repository.PaymentRepository,
	bookings BookingLedger,
	publisher events.Publisher,
	validator *validator.PaymentValidator,
	cfg *config.Config,
) PaymentService {
	if publisher == nil {
		publisher = events.Nop()
	}
	return &paymentService{
		repo:      repo,
		bookings:  bookings,
		publisher: publisher,
		validator: validator,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *paymentService) RecordPayment(ctx context.Context, caller auth.Caller, in *model.PaymentRequest) (*model.Payment, error) {
	in.BookingID = sanitizer.NormalizeID(in.BookingID)
	in.Method = model.PaymentMethod(sanitizer.NormalizeEnum(string(in.Method), string(model.PaymentCash), string(model.PaymentOnline)))

	if err := s.validator.ValidatePayment(in); err != nil {
		s.cfg.Log.Warn("Payment validation failed", "error", err)
		return nil, validation.AppError("Payment validation failed", err)
	}
	if !caller.IsStaff() && caller.Role != auth.RoleCustomer {
		return nil, apperrors.Forbidden("Only customers and staff can record payments")
	}

	payment, err := s.settle(ctx, caller, in)
	if err != nil {
		s.logFailure("Failed to record payment", err, "booking_id", in.BookingID, "method", in.Method)
		return nil, err
	}

	s.cfg.Log.Info("Payment recorded successfully",
		"id", payment.ID,
		"booking_id", payment.BookingID,
		"customer_id", payment.CustomerID,
		"amount", payment.Amount,
		"method", payment.Method,
	)
	_ = s.publisher.Publish(ctx, events.New(events.PaymentConfirmed, payment.BookingID, payment))
	return payment, nil
}

func (s *paymentService) ConfirmCashPayment(ctx context.Context, caller auth.Caller, in *model.CashConfirmation) (*model.Payment, error) {
	if !caller.IsStaff() {
		return nil, apperrors.Forbidden("Only staff can confirm cash payments")
	}
	return s.RecordPayment(ctx, caller, &model.PaymentRequest{
		BookingID: in.BookingID,
		Amount:    in.Amount,
		Method:    model.PaymentCash,
	})
}

// settle writes the payment and the booking's payment mirror in one transaction.
func (s *paymentService) settle(ctx context.Context, caller auth.Caller, in *model.PaymentRequest) (*model.Payment, error) {
	var payment *model.Payment
	err := s.repo.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		booking, err := s.bookings.FindByID(txCtx, in.BookingID)
		if err != nil {
			return mapBookingError(err, in.BookingID)
		}
		if !caller.CanActOn(booking.CustomerID) {
			return apperrors.Forbidden("Only the booking owner or staff can pay for this booking")
		}
		if booking.Status == model.BookingCancelled {
			return apperrors.InvalidState("Cannot pay for a cancelled booking", map[string]any{
				"rule":   "payment_booking_state",
				"id":     booking.ID,
				"status": booking.Status,
			})
		}
		if booking.IsPaid {
			return alreadyPaid(booking.ID)
		}
		if in.Amount != booking.Amount {
			return apperrors.Validation("Payment amount does not match the booking amount", map[string]any{
				"rule":            "amount_matches_booking",
				"booking_id":      booking.ID,
				"expected_amount": booking.Amount,
				"amount":          in.Amount,
			})
		}

		if err := s.bookings.MarkPaid(txCtx, booking.ID); err != nil {
			return mapBookingError(err, booking.ID)
		}

		p := &model.Payment{
			BookingID:   booking.ID,
			CustomerID:  booking.CustomerID,
			Amount:      in.Amount,
			Currency:    booking.Currency,
			Method:      in.Method,
			Status:      model.PaymentPaid,
			PaymentDate: s.now(),
		}
		if err := s.repo.Create(txCtx, p); err != nil {
			if errors.Is(err, paymentserrors.ErrAlreadyRecorded) {
				return alreadyPaid(booking.ID)
			}
			return apperrors.Internal("Failed to record payment", err)
		}
		payment = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

func (s *paymentService) GetPaymentsByCustomer(ctx context.Context, customerID string) ([]*model.Payment, error) {
	if customerID == "" {
		return nil, apperrors.InvalidInput("Customer ID cannot be empty")
	}
	return s.list(s.repo.FindByCustomer(ctx, customerID))
}

func (s *paymentService) GetPaymentsByBooking(ctx context.Context, caller auth.Caller, bookingID string) ([]*model.Payment, error) {
	bookingID = sanitizer.NormalizeID(bookingID)
	booking, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, mapBookingError(err, bookingID)
	}
	if !caller.CanActOn(booking.CustomerID) {
		return nil, apperrors.Forbidden("Only the booking owner or staff can view its payments")
	}
	return s.list(s.repo.FindByBooking(ctx, bookingID))
}

func (s *paymentService) GetRecentPayments(ctx context.Context, n int) ([]*model.Payment, error) {
	return s.list(s.repo.FindRecentPaid(ctx, s.feedLimit(n)))
}

func (s *paymentService) GetRecentCashPayments(ctx context.Context, customerID string, n int) ([]*model.Payment, error) {
	if customerID == "" {
		return nil, apperrors.InvalidInput("Customer ID cannot be empty")
	}
	return s.list(s.repo.FindRecentCashByCustomer(ctx, customerID, s.feedLimit(n)))
}

func (s *paymentService) list(payments []*model.Payment, err error) ([]*model.Payment, error) {
	if err != nil {
		s.cfg.Log.Error("Failed to list payments", "error", err)
		return nil, apperrors.Internal("Failed to retrieve payments", err)
	}
	return payments, nil
}

func (s *paymentService) feedLimit(n int) int {
	if n <= 0 {
		return s.cfg.RecentFeedLimit
	}
	return min(n, config.MaxPaginationLimit)
}

func (s *paymentService) logFailure(msg string, err error, args ...any) {
	args = append(args, "error", err)
	if appErr := apperrors.AsAppError(err); appErr != nil && appErr.HTTPStatus < 500 {
		s.cfg.Log.Warn(msg, args...)
		return
	}
	s.cfg.Log.Error(msg, args...)
}

func mapBookingError(err error, id string) error {
	switch {
	case errors.Is(err, bookingserrors.ErrNotFound):
		return apperrors.NotFoundWithID("Booking", id)
	case errors.Is(err, bookingserrors.ErrInvalidID):
		return apperrors.InvalidInput("Invalid booking ID format")
	case errors.Is(err, bookingserrors.ErrAlreadyPaid):
		return alreadyPaid(id)
	case apperrors.IsAppError(err):
		return err
	default:
		return apperrors.Internal("Failed to retrieve booking", err)
	}
}

func alreadyPaid(bookingID string) error {
	return apperrors.ConflictWithDetails("Booking is already paid", map[string]any{
		"rule":       "single_settlement",
		"booking_id": bookingID,
	})
}
