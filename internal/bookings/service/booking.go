package service

import (
	"context"
	"errors"
	"fmt"
	bookingserrors "movez/internal/bookings/errors"
	"movez/internal/bookings/repository"
	"movez/internal/bookings/validator"
	"movez/pkg/auth"
	"movez/pkg/config"
	apperrors "movez/pkg/errors"
	"movez/pkg/events"
	"movez/pkg/model"
	"movez/pkg/sanitizer"
	"movez/pkg/validation"
	"sync"
	"time"
)

// DriverDispatcher is the driver side of a booking transition. Calls made with a
// transaction context join that transaction.
type DriverDispatcher interface {
	SetOnDuty(ctx context.Context, driverID, bookingID string) error
	Release(ctx context.Context, driverID, bookingID string) error
	GetAvailableDrivers(ctx context.Context) ([]*model.Driver, error)
	GetDriverByUser(ctx context.Context, userID string) (*model.Driver, error)
}

type BookingService interface {
	CreateBooking(ctx context.Context, caller auth.Caller, in *model.BookingCreate) (*model.Booking, error)
	AssignDriver(ctx context.Context, bookingID, driverID string) (*model.Booking, error)
	CompleteBooking(ctx context.Context, bookingID string) (*model.Booking, error)
	CancelBooking(ctx context.Context, caller auth.Caller, bookingID string) (*model.Booking, error)
	GetBooking(ctx context.Context, caller auth.Caller, bookingID string) (*model.BookingDetails, error)
	GetAllBookings(ctx context.Context, limit int, offset int64) ([]*model.Booking, int64, error)
	GetBookingsForCar(ctx context.Context, carID string) ([]*model.Booking, error)
	GetBookingsByCustomer(ctx context.Context, customerID string) ([]*model.Booking, error)
	GetBookedRanges(ctx context.Context, carID string) ([]model.DateRange, error)
	GetDriverAssignedBookings(ctx context.Context, driverID string) ([]*model.Booking, error)
	GetAssignedBookingsForUser(ctx context.Context, userID string) ([]*model.Booking, error)
	GetRecentBookings(ctx context.Context, n int) ([]*model.Booking, error)
	GetRecentAssignedBookings(ctx context.Context, customerID string, n int) ([]*model.Booking, error)
}

type bookingService struct {
	repo       repository.BookingRepository
	carLocks   repository.CarLockRepository
	checker    *ConflictChecker
	dispatcher DriverDispatcher
	publisher  events.Publisher
	validator  *validator.BookingValidator
	cfg        *config.Config
	now        func() time.Time
}

func NewBookingService(
	repo repository.BookingRepository,
	carLocks repository.CarLockRepository,
	dispatcher DriverDispatcher,
	publisher events.Publisher,
	validator *validator.BookingValidator,
	cfg *config.Config,
) BookingService {
	if publisher == nil {
		publisher = events.Nop()
	}
	return &bookingService{
		repo:       repo,
		carLocks:   carLocks,
		checker:    NewConflictChecker(repo),
		dispatcher: dispatcher,
		publisher:  publisher,
		validator:  validator,
		cfg:        cfg,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *bookingService) CreateBooking(ctx context.Context, caller auth.Caller, in *model.BookingCreate) (*model.Booking, error) {
	s.sanitize(in)
	if err := s.applyOwnership(caller, in); err != nil {
		return nil, err
	}
	if err := s.validator.ValidateCreate(in); err != nil {
		s.cfg.Log.Warn("Booking validation failed", "error", err)
		return nil, validation.AppError("Booking validation failed", err)
	}

	booking := &model.Booking{
		CarID:         in.CarID,
		CustomerID:    in.CustomerID,
		StartDate:     in.StartDate.UTC(),
		EndDate:       in.EndDate.UTC(),
		Amount:        in.Amount,
		Currency:      s.cfg.Currency,
		Status:        model.BookingPending,
		PaymentStatus: model.Unpaid,
	}

	err := s.repo.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		if err := s.carLocks.Touch(txCtx, booking.CarID); err != nil {
			if errors.Is(err, bookingserrors.ErrCarLockContention) {
				return apperrors.ConflictWithDetails("Car is being booked by another request, try again", map[string]any{
					"rule":   "car_lock",
					"car_id": booking.CarID,
				})
			}
			return apperrors.Internal("Failed to lock car", err)
		}

		existing, err := s.checker.FirstConflict(txCtx, booking.CarID, booking.StartDate, booking.EndDate, "")
		if err != nil {
			return err
		}
		if existing != nil {
			return apperrors.ConflictWithDetails("Car is already booked for an overlapping period", map[string]any{
				"rule":                   "car_date_overlap",
				"car_id":                 booking.CarID,
				"conflicting_booking_id": existing.ID,
				"conflicting_start_date": existing.StartDate,
				"conflicting_end_date":   existing.EndDate,
			})
		}

		booking.ID = ""
		if err := s.repo.Create(txCtx, booking); err != nil {
			return apperrors.Internal("Failed to create booking", err)
		}
		return nil
	})
	if err != nil {
		s.logFailure("Failed to create booking", err, "car_id", booking.CarID, "customer_id", booking.CustomerID)
		return nil, err
	}

	s.cfg.Log.Info("Booking created successfully",
		"id", booking.ID,
		"car_id", booking.CarID,
		"customer_id", booking.CustomerID,
		"start_date", booking.StartDate,
		"end_date", booking.EndDate,
	)
	s.emit(ctx, events.BookingCreated, booking)
	return booking, nil
}

func (s *bookingService) AssignDriver(ctx context.Context, bookingID, driverID string) (*model.Booking, error) {
	bookingID = sanitizer.NormalizeID(bookingID)
	assignment := &model.DriverAssignment{DriverID: sanitizer.NormalizeID(driverID)}
	if err := s.validator.ValidateAssignment(assignment); err != nil {
		return nil, validation.AppError("Invalid driver assignment", err)
	}
	driverID = assignment.DriverID

	var (
		booking  *model.Booking
		previous string
		noop     bool
	)
	err := s.repo.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		current, err := s.load(txCtx, bookingID)
		if err != nil {
			return err
		}
		if !current.Status.CanTransitionTo(model.BookingAssigned) {
			return invalidState(current, "assign a driver to", "booking must be pending or assigned")
		}
		if current.Status == model.BookingAssigned && current.DriverID == driverID {
			booking, noop = current, true
			return nil
		}

		if err := s.dispatcher.SetOnDuty(txCtx, driverID, current.ID); err != nil {
			return err
		}
		previous = current.DriverID
		if previous != "" {
			if err := s.dispatcher.Release(txCtx, previous, current.ID); err != nil {
				return err
			}
		}

		next, err := s.transition(txCtx, current, model.BookingAssigned, driverID)
		if err != nil {
			return err
		}
		booking = next
		return nil
	})
	if err != nil {
		s.logFailure("Failed to assign driver", err, "id", bookingID, "driver_id", driverID)
		return nil, err
	}
	if noop {
		return booking, nil
	}

	s.cfg.Log.Info("Driver assigned to booking",
		"id", booking.ID,
		"driver_id", driverID,
		"previous_driver_id", previous,
	)
	s.emit(ctx, events.BookingAssigned, booking)
	if previous != "" {
		s.emitDriverReleased(ctx, previous, booking.ID)
	}
	return booking, nil
}

func (s *bookingService) CompleteBooking(ctx context.Context, bookingID string) (*model.Booking, error) {
	booking, err := s.finish(ctx, bookingID, model.BookingCompleted, func(b *model.Booking) error {
		if b.Status != model.BookingAssigned {
			return invalidState(b, "complete", "booking must be assigned before it can be completed")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, events.BookingCompleted, booking)
	return booking, nil
}

func (s *bookingService) CancelBooking(ctx context.Context, caller auth.Caller, bookingID string) (*model.Booking, error) {
	booking, err := s.finish(ctx, bookingID, model.BookingCancelled, func(b *model.Booking) error {
		if !caller.CanActOn(b.CustomerID) {
			return apperrors.Forbidden("Only the booking owner or staff can cancel this booking")
		}
		if !b.Status.CanTransitionTo(model.BookingCancelled) {
			return invalidState(b, "cancel", "booking is already "+string(b.Status))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if booking.IsPaid {
		s.cfg.Log.Warn("Paid booking cancelled, payment left untouched for operator review",
			"id", booking.ID,
			"customer_id", booking.CustomerID,
			"amount", booking.Amount,
		)
	}
	s.emit(ctx, events.BookingCancelled, booking)
	return booking, nil
}

// finish moves a booking into a terminal status and releases its driver in one transaction.
func (s *bookingService) finish(ctx context.Context, bookingID string, to model.BookingStatus, check func(*model.Booking) error) (*model.Booking, error) {
	bookingID = sanitizer.NormalizeID(bookingID)

	var (
		booking  *model.Booking
		released string
	)
	err := s.repo.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		current, err := s.load(txCtx, bookingID)
		if err != nil {
			return err
		}
		if err := check(current); err != nil {
			return err
		}

		next, err := s.transition(txCtx, current, to, "")
		if err != nil {
			return err
		}
		released = current.DriverID
		if released != "" {
			if err := s.dispatcher.Release(txCtx, released, current.ID); err != nil {
				return err
			}
		}
		booking = next
		return nil
	})
	if err != nil {
		s.logFailure("Failed to change booking status", err, "id", bookingID, "to", to)
		return nil, err
	}

	s.cfg.Log.Info("Booking status changed",
		"id", booking.ID,
		"status", booking.Status,
		"released_driver_id", released,
	)
	if released != "" {
		s.emitDriverReleased(ctx, released, booking.ID)
	}
	return booking, nil
}

func (s *bookingService) transition(ctx context.Context, current *model.Booking, to model.BookingStatus, driverID string) (*model.Booking, error) {
	at := s.now()
	clearDriver := to == model.BookingCancelled
	err := s.repo.UpdateStatus(ctx, repository.StatusChange{
		BookingID:    current.ID,
		FromStatus:   current.Status,
		FromDriverID: current.DriverID,
		ToStatus:     to,
		DriverID:     driverID,
		ClearDriver:  clearDriver,
		At:           at,
	})
	if err != nil {
		if errors.Is(err, bookingserrors.ErrStatusChanged) {
			return nil, apperrors.ConflictWithDetails("Booking was modified concurrently, reload and retry", map[string]any{
				"rule": "concurrent_modification",
				"id":   current.ID,
			})
		}
		return nil, s.mapRepoError(err, current.ID, "Failed to update booking status")
	}

	next := *current
	next.Status = to
	next.StatusUpdatedAt = at
	switch {
	case driverID != "":
		next.DriverID = driverID
	case clearDriver && current.DriverID != "":
		next.ReleasedDriverID = current.DriverID
		next.DriverID = ""
	}
	return &next, nil
}

func (s *bookingService) GetBooking(ctx context.Context, caller auth.Caller, bookingID string) (*model.BookingDetails, error) {
	booking, err := s.load(ctx, sanitizer.NormalizeID(bookingID))
	if err != nil {
		return nil, err
	}
	if !caller.CanActOn(booking.CustomerID) {
		return nil, apperrors.Forbidden("Only the booking owner or staff can view this booking")
	}

	details := &model.BookingDetails{Booking: booking}
	if caller.IsStaff() && booking.Status.CanTransitionTo(model.BookingAssigned) {
		drivers, err := s.dispatcher.GetAvailableDrivers(ctx)
		if err != nil {
			return nil, err
		}
		details.AvailableDrivers = drivers
	}
	return details, nil
}

func (s *bookingService) GetAllBookings(ctx context.Context, limit int, offset int64) ([]*model.Booking, int64, error) {
	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	var count int64
	var bookings []*model.Booking
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.Count(ctx)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count bookings", "error", errCount)
			errCount = apperrors.Internal("Failed to count bookings", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		bookings, errFind = s.repo.FindAll(ctx, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list bookings", "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve bookings", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return bookings, count, nil
}

func (s *bookingService) GetBookingsForCar(ctx context.Context, carID string) ([]*model.Booking, error) {
	carID = sanitizer.NormalizeID(carID)
	if carID == "" {
		return nil, apperrors.InvalidInput("Car ID cannot be empty")
	}
	return s.list(s.repo.FindByCar(ctx, carID))
}

func (s *bookingService) GetBookingsByCustomer(ctx context.Context, customerID string) ([]*model.Booking, error) {
	if customerID == "" {
		return nil, apperrors.InvalidInput("Customer ID cannot be empty")
	}
	return s.list(s.repo.FindByCustomer(ctx, customerID))
}

func (s *bookingService) GetBookedRanges(ctx context.Context, carID string) ([]model.DateRange, error) {
	carID = sanitizer.NormalizeID(carID)
	if carID == "" {
		return nil, apperrors.InvalidInput("Car ID cannot be empty")
	}

	bookings, err := s.list(s.repo.FindActiveByCar(ctx, carID))
	if err != nil {
		return nil, err
	}

	ranges := make([]model.DateRange, 0, len(bookings))
	for _, b := range bookings {
		ranges = append(ranges, model.DateRange{BookingID: b.ID, Start: b.StartDate, End: b.EndDate})
	}
	return ranges, nil
}

func (s *bookingService) GetDriverAssignedBookings(ctx context.Context, driverID string) ([]*model.Booking, error) {
	driverID = sanitizer.NormalizeID(driverID)
	if driverID == "" {
		return nil, apperrors.InvalidInput("Driver ID cannot be empty")
	}
	return s.list(s.repo.FindAssignedByDriver(ctx, driverID))
}

func (s *bookingService) GetAssignedBookingsForUser(ctx context.Context, userID string) ([]*model.Booking, error) {
	driver, err := s.dispatcher.GetDriverByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.GetDriverAssignedBookings(ctx, driver.ID)
}

func (s *bookingService) GetRecentBookings(ctx context.Context, n int) ([]*model.Booking, error) {
	return s.list(s.repo.FindRecent(ctx, s.feedLimit(n)))
}

func (s *bookingService) GetRecentAssignedBookings(ctx context.Context, customerID string, n int) ([]*model.Booking, error) {
	if customerID == "" {
		return nil, apperrors.InvalidInput("Customer ID cannot be empty")
	}
	return s.list(s.repo.FindRecentAssignedByCustomer(ctx, customerID, s.feedLimit(n)))
}

// --- Helpers ---

func (s *bookingService) sanitize(in *model.BookingCreate) {
	in.CarID = sanitizer.NormalizeID(in.CarID)
	in.CustomerID = sanitizer.NormalizeID(in.CustomerID)
}

// applyOwnership binds customer-created bookings to the caller. Staff book on behalf of a customer.
func (s *bookingService) applyOwnership(caller auth.Caller, in *model.BookingCreate) error {
	if caller.IsStaff() {
		return nil
	}
	if caller.Role != auth.RoleCustomer {
		return apperrors.Forbidden("Only customers and staff can create bookings")
	}
	if in.CustomerID != "" && in.CustomerID != caller.UserID {
		return apperrors.Forbidden("Customers can only create bookings for themselves")
	}
	in.CustomerID = caller.UserID
	return nil
}

func (s *bookingService) load(ctx context.Context, id string) (*model.Booking, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}
	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapRepoError(err, id, "Failed to retrieve booking")
	}
	return booking, nil
}

func (s *bookingService) mapRepoError(err error, id, message string) error {
	switch {
	case errors.Is(err, bookingserrors.ErrNotFound):
		return apperrors.NotFoundWithID("Booking", id)
	case errors.Is(err, bookingserrors.ErrInvalidID):
		return apperrors.InvalidInput("Invalid booking ID format")
	case apperrors.IsAppError(err):
		return err
	default:
		return apperrors.Internal(message, err)
	}
}

func (s *bookingService) list(bookings []*model.Booking, err error) ([]*model.Booking, error) {
	if err != nil {
		s.cfg.Log.Error("Failed to list bookings", "error", err)
		return nil, apperrors.Internal("Failed to retrieve bookings", err)
	}
	return bookings, nil
}

func (s *bookingService) feedLimit(n int) int {
	if n <= 0 {
		return s.cfg.RecentFeedLimit
	}
	return min(n, config.MaxPaginationLimit)
}

func (s *bookingService) logFailure(msg string, err error, args ...any) {
	args = append(args, "error", err)
	if appErr := apperrors.AsAppError(err); appErr != nil && appErr.HTTPStatus < 500 {
		s.cfg.Log.Warn(msg, args...)
		return
	}
	s.cfg.Log.Error(msg, args...)
}

func (s *bookingService) emit(ctx context.Context, t events.Type, b *model.Booking) {
	_ = s.publisher.Publish(ctx, events.New(t, b.ID, b))
}

func (s *bookingService) emitDriverReleased(ctx context.Context, driverID, bookingID string) {
	_ = s.publisher.Publish(ctx, events.New(events.DriverReleased, driverID, map[string]string{
		"driver_id":  driverID,
		"booking_id": bookingID,
	}))
}

func invalidState(b *model.Booking, action, reason string) error {
	return apperrors.InvalidState(fmt.Sprintf("Cannot %s booking in status %s: %s", action, b.Status, reason), map[string]any{
		"rule":   "booking_transition",
		"id":     b.ID,
		"status": b.Status,
	})
}
