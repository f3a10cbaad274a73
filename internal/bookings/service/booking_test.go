package service

import (
	"context"
	"errors"
	"movez/internal/bookings/validator"
	"movez/pkg/auth"
	"movez/pkg/config"
	apperrors "movez/pkg/errors"
	"movez/pkg/events"
	"movez/pkg/logger"
	"movez/pkg/model"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

var (
	staff    = auth.Caller{UserID: "staff-1", Role: auth.RoleStaff}
	customer = auth.Caller{UserID: "cust-1", Role: auth.RoleCustomer}
)

func june(day int) time.Time {
	return time.Date(2024, time.June, day, 0, 0, 0, 0, time.UTC)
}

type fixture struct {
	store     *fakeStore
	publisher *recordingPublisher
	svc       BookingService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logger.Discard()
	cfg := &config.Config{Log: log, Currency: "USD", RecentFeedLimit: 5}
	store := newFakeStore()
	pub := &recordingPublisher{}
	svc := NewBookingService(store, store, fakeDispatcher{store: store}, pub, validator.NewBookingValidator(log), cfg)
	return &fixture{store: store, publisher: pub, svc: svc}
}

func (f *fixture) book(t *testing.T, carID string, start, end time.Time) *model.Booking {
	t.Helper()
	b, err := f.svc.CreateBooking(context.Background(), customer, &model.BookingCreate{
		CarID:     carID,
		StartDate: start,
		EndDate:   end,
		Amount:    12000,
	})
	if err != nil {
		t.Fatalf("CreateBooking(%s, %s-%s) failed: %v", carID, start.Format(time.DateOnly), end.Format(time.DateOnly), err)
	}
	return b
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	if !apperrors.HasCode(err, code) {
		t.Fatalf("expected %s error, got %v", code, err)
	}
}

func TestCreateBooking_OverlapRules(t *testing.T) {
	f := newFixture(t)
	first := f.book(t, "car-1", june(1), june(5))

	if first.Status != model.BookingPending || first.PaymentStatus != model.Unpaid || first.IsPaid {
		t.Errorf("new booking should be Pending and Unpaid, got %s/%s paid=%v", first.Status, first.PaymentStatus, first.IsPaid)
	}
	if first.CustomerID != customer.UserID {
		t.Errorf("CustomerID = %q, want caller %q", first.CustomerID, customer.UserID)
	}
	if first.Currency != "USD" {
		t.Errorf("Currency = %q, want USD", first.Currency)
	}

	tests := []struct {
		name      string
		carID     string
		start     time.Time
		end       time.Time
		wantCode  string
		wantClash string
	}{
		{name: "overlapping tail", carID: "car-1", start: june(4), end: june(8), wantCode: apperrors.CodeConflict, wantClash: first.ID},
		{name: "enclosing range", carID: "car-1", start: time.Date(2024, time.May, 30, 0, 0, 0, 0, time.UTC), end: june(10), wantCode: apperrors.CodeConflict, wantClash: first.ID},
		{name: "inside range", carID: "car-1", start: june(2), end: june(3), wantCode: apperrors.CodeConflict, wantClash: first.ID},
		{name: "end before start", carID: "car-1", start: june(20), end: june(18), wantCode: apperrors.CodeValidation},
		{name: "empty range", carID: "car-1", start: june(20), end: june(20), wantCode: apperrors.CodeValidation},
		{name: "other car same dates", carID: "car-2", start: june(1), end: june(5)},
		{name: "touching end boundary", carID: "car-1", start: june(5), end: june(8)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := f.svc.CreateBooking(context.Background(), customer, &model.BookingCreate{
				CarID:     tt.carID,
				StartDate: tt.start,
				EndDate:   tt.end,
			})
			if tt.wantCode == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if b.ID == "" {
					t.Fatal("created booking has no ID")
				}
				return
			}
			assertCode(t, err, tt.wantCode)
			if tt.wantClash != "" {
				if got := apperrors.AsAppError(err).Details["conflicting_booking_id"]; got != tt.wantClash {
					t.Errorf("conflicting_booking_id = %v, want %s", got, tt.wantClash)
				}
			}
		})
	}
}

func TestCreateBooking_CancelFreesRange(t *testing.T) {
	f := newFixture(t)
	first := f.book(t, "car-1", june(1), june(5))

	if _, err := f.svc.CancelBooking(context.Background(), customer, first.ID); err != nil {
		t.Fatalf("CancelBooking failed: %v", err)
	}
	f.book(t, "car-1", june(2), june(4))

	ranges, err := f.svc.GetBookedRanges(context.Background(), "car-1")
	if err != nil {
		t.Fatalf("GetBookedRanges failed: %v", err)
	}
	if len(ranges) != 1 || !ranges[0].Start.Equal(june(2)) {
		t.Errorf("booked ranges = %+v, want only the replacement booking", ranges)
	}
}

func TestCreateBooking_Ownership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateBooking(ctx, customer, &model.BookingCreate{
		CarID: "car-1", CustomerID: "someone-else", StartDate: june(1), EndDate: june(2),
	})
	assertCode(t, err, apperrors.CodeForbidden)

	_, err = f.svc.CreateBooking(ctx, auth.Caller{UserID: "drv", Role: auth.RoleDriver}, &model.BookingCreate{
		CarID: "car-1", StartDate: june(1), EndDate: june(2),
	})
	assertCode(t, err, apperrors.CodeForbidden)

	_, err = f.svc.CreateBooking(ctx, staff, &model.BookingCreate{CarID: "car-1", StartDate: june(1), EndDate: june(2)})
	assertCode(t, err, apperrors.CodeValidation)

	b, err := f.svc.CreateBooking(ctx, staff, &model.BookingCreate{
		CarID: "car-1", CustomerID: "cust-9", StartDate: june(1), EndDate: june(2),
	})
	if err != nil {
		t.Fatalf("staff booking on behalf of a customer failed: %v", err)
	}
	if b.CustomerID != "cust-9" {
		t.Errorf("CustomerID = %q, want cust-9", b.CustomerID)
	}
}

func TestCreateBooking_ConcurrentSingleWinner(t *testing.T) {
	f := newFixture(t)
	const workers = 16

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		created   int
		conflicts int
	)
	start := make(chan struct{})
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := f.svc.CreateBooking(context.Background(), customer, &model.BookingCreate{
				CarID:     "car-1",
				StartDate: june(1).Add(time.Duration(i) * time.Hour),
				EndDate:   june(5),
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case apperrors.HasCode(err, apperrors.CodeConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	if created != 1 || conflicts != workers-1 {
		t.Errorf("created=%d conflicts=%d, want exactly one winner", created, conflicts)
	}
}

func TestBookingLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	drv := f.store.addDriver(model.DriverAvailable)
	b := f.book(t, "car-1", june(1), june(5))

	assigned, err := f.svc.AssignDriver(ctx, b.ID, drv.ID)
	if err != nil {
		t.Fatalf("AssignDriver failed: %v", err)
	}
	if assigned.Status != model.BookingAssigned || assigned.DriverID != drv.ID {
		t.Fatalf("after assign got status=%s driver=%s", assigned.Status, assigned.DriverID)
	}
	if d := f.store.driver(drv.ID); d.Status != model.DriverOnDuty || d.CurrentBookingID != b.ID {
		t.Fatalf("driver should be on duty for %s, got %s/%s", b.ID, d.Status, d.CurrentBookingID)
	}

	completed, err := f.svc.CompleteBooking(ctx, b.ID)
	if err != nil {
		t.Fatalf("CompleteBooking failed: %v", err)
	}
	if completed.Status != model.BookingCompleted || completed.DriverID != drv.ID {
		t.Errorf("completed booking should keep its driver, got status=%s driver=%q", completed.Status, completed.DriverID)
	}
	if d := f.store.driver(drv.ID); d.Status != model.DriverFreeStatus || d.CurrentBookingID != "" {
		t.Errorf("driver should be released, got %s/%s", d.Status, d.CurrentBookingID)
	}

	_, err = f.svc.CompleteBooking(ctx, b.ID)
	assertCode(t, err, apperrors.CodeInvalidState)

	_, err = f.svc.CancelBooking(ctx, staff, b.ID)
	assertCode(t, err, apperrors.CodeInvalidState)

	_, err = f.svc.AssignDriver(ctx, b.ID, drv.ID)
	assertCode(t, err, apperrors.CodeInvalidState)

	want := []events.Type{events.BookingCreated, events.BookingAssigned, events.BookingCompleted, events.DriverReleased}
	got := f.publisher.types()
	for _, typ := range want {
		if !slices.Contains(got, typ) {
			t.Errorf("missing %s event in %v", typ, got)
		}
	}
}

func TestCompleteBooking_RequiresAssigned(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, "car-1", june(1), june(5))

	_, err := f.svc.CompleteBooking(context.Background(), b.ID)
	assertCode(t, err, apperrors.CodeInvalidState)

	if got := f.store.booking(b.ID).Status; got != model.BookingPending {
		t.Errorf("status = %s, want Pending", got)
	}
}

func TestCancelBooking(t *testing.T) {
	t.Run("assigned booking releases driver and records it", func(t *testing.T) {
		f := newFixture(t)
		ctx := context.Background()
		drv := f.store.addDriver(model.DriverAvailable)
		b := f.book(t, "car-1", june(1), june(5))
		if _, err := f.svc.AssignDriver(ctx, b.ID, drv.ID); err != nil {
			t.Fatalf("AssignDriver failed: %v", err)
		}

		cancelled, err := f.svc.CancelBooking(ctx, customer, b.ID)
		if err != nil {
			t.Fatalf("CancelBooking failed: %v", err)
		}
		if cancelled.Status != model.BookingCancelled || cancelled.DriverID != "" || cancelled.ReleasedDriverID != drv.ID {
			t.Errorf("cancelled = status %s driver %q released %q", cancelled.Status, cancelled.DriverID, cancelled.ReleasedDriverID)
		}
		if d := f.store.driver(drv.ID); d.Status != model.DriverFreeStatus {
			t.Errorf("driver status = %s, want %s", d.Status, model.DriverFreeStatus)
		}

		_, err = f.svc.CancelBooking(ctx, customer, b.ID)
		assertCode(t, err, apperrors.CodeInvalidState)
	})

	t.Run("other customer is forbidden", func(t *testing.T) {
		f := newFixture(t)
		b := f.book(t, "car-1", june(1), june(5))

		_, err := f.svc.CancelBooking(context.Background(), auth.Caller{UserID: "cust-2", Role: auth.RoleCustomer}, b.ID)
		assertCode(t, err, apperrors.CodeForbidden)

		if got := f.store.booking(b.ID).Status; got != model.BookingPending {
			t.Errorf("status = %s, want Pending", got)
		}
	})

	t.Run("unknown booking", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.CancelBooking(context.Background(), staff, uuid.NewString())
		assertCode(t, err, apperrors.CodeNotFound)
	})

	t.Run("malformed id", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.CancelBooking(context.Background(), staff, "not-a-uuid")
		assertCode(t, err, apperrors.CodeInvalidInput)
	})
}

func TestAssignDriver(t *testing.T) {
	t.Run("driver busy on another booking", func(t *testing.T) {
		f := newFixture(t)
		ctx := context.Background()
		drv := f.store.addDriver(model.DriverAvailable)
		first := f.book(t, "car-1", june(1), june(5))
		second := f.book(t, "car-2", june(1), june(5))

		if _, err := f.svc.AssignDriver(ctx, first.ID, drv.ID); err != nil {
			t.Fatalf("first AssignDriver failed: %v", err)
		}
		_, err := f.svc.AssignDriver(ctx, second.ID, drv.ID)
		assertCode(t, err, apperrors.CodeConflict)

		if got := f.store.booking(second.ID); got.Status != model.BookingPending || got.DriverID != "" {
			t.Errorf("second booking changed: %s/%q", got.Status, got.DriverID)
		}
	})

	t.Run("reassignment releases previous driver", func(t *testing.T) {
		f := newFixture(t)
		ctx := context.Background()
		d1 := f.store.addDriver(model.DriverAvailable)
		d2 := f.store.addDriver(model.DriverAvailable)
		b := f.book(t, "car-1", june(1), june(5))

		if _, err := f.svc.AssignDriver(ctx, b.ID, d1.ID); err != nil {
			t.Fatalf("AssignDriver d1 failed: %v", err)
		}
		got, err := f.svc.AssignDriver(ctx, b.ID, d2.ID)
		if err != nil {
			t.Fatalf("AssignDriver d2 failed: %v", err)
		}
		if got.DriverID != d2.ID {
			t.Errorf("DriverID = %s, want %s", got.DriverID, d2.ID)
		}
		if d := f.store.driver(d1.ID); d.Status != model.DriverFreeStatus || d.CurrentBookingID != "" {
			t.Errorf("previous driver not released: %s/%s", d.Status, d.CurrentBookingID)
		}
		if d := f.store.driver(d2.ID); d.Status != model.DriverOnDuty || d.CurrentBookingID != b.ID {
			t.Errorf("new driver not on duty: %s/%s", d.Status, d.CurrentBookingID)
		}
	})

	t.Run("same driver again is a no-op", func(t *testing.T) {
		f := newFixture(t)
		ctx := context.Background()
		drv := f.store.addDriver(model.DriverAvailable)
		b := f.book(t, "car-1", june(1), june(5))

		if _, err := f.svc.AssignDriver(ctx, b.ID, drv.ID); err != nil {
			t.Fatalf("AssignDriver failed: %v", err)
		}
		version := f.store.driver(drv.ID).StatusVersion
		if _, err := f.svc.AssignDriver(ctx, b.ID, drv.ID); err != nil {
			t.Fatalf("repeated AssignDriver failed: %v", err)
		}
		if got := f.store.driver(drv.ID).StatusVersion; got != version {
			t.Errorf("StatusVersion moved from %d to %d on a no-op assignment", version, got)
		}
	})

	t.Run("unknown driver leaves booking pending", func(t *testing.T) {
		f := newFixture(t)
		b := f.book(t, "car-1", june(1), june(5))

		_, err := f.svc.AssignDriver(context.Background(), b.ID, uuid.NewString())
		assertCode(t, err, apperrors.CodeNotFound)
		if got := f.store.booking(b.ID).Status; got != model.BookingPending {
			t.Errorf("status = %s, want Pending", got)
		}
	})

	t.Run("invalid driver id", func(t *testing.T) {
		f := newFixture(t)
		b := f.book(t, "car-1", june(1), june(5))

		_, err := f.svc.AssignDriver(context.Background(), b.ID, "driver-7")
		assertCode(t, err, apperrors.CodeValidation)
	})

	t.Run("concurrent assignments of one driver", func(t *testing.T) {
		f := newFixture(t)
		drv := f.store.addDriver(model.DriverAvailable)
		bookings := []*model.Booking{
			f.book(t, "car-1", june(1), june(5)),
			f.book(t, "car-2", june(1), june(5)),
			f.book(t, "car-3", june(1), june(5)),
		}

		var wg sync.WaitGroup
		errs := make([]error, len(bookings))
		for i, b := range bookings {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, errs[i] = f.svc.AssignDriver(context.Background(), b.ID, drv.ID)
			}()
		}
		wg.Wait()

		winners := 0
		for _, err := range errs {
			if err == nil {
				winners++
				continue
			}
			assertCode(t, err, apperrors.CodeConflict)
		}
		if winners != 1 {
			t.Errorf("winners = %d, want 1", winners)
		}
	})
}

func TestGetBooking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.addDriver(model.DriverAvailable)
	f.store.addDriver(model.DriverOffDuty)
	b := f.book(t, "car-1", june(1), june(5))

	details, err := f.svc.GetBooking(ctx, staff, b.ID)
	if err != nil {
		t.Fatalf("GetBooking as staff failed: %v", err)
	}
	if len(details.AvailableDrivers) != 1 {
		t.Errorf("staff should see 1 available driver, got %d", len(details.AvailableDrivers))
	}

	details, err = f.svc.GetBooking(ctx, customer, b.ID)
	if err != nil {
		t.Fatalf("GetBooking as owner failed: %v", err)
	}
	if details.AvailableDrivers != nil {
		t.Error("customers should not see available drivers")
	}

	_, err = f.svc.GetBooking(ctx, auth.Caller{UserID: "cust-2", Role: auth.RoleCustomer}, b.ID)
	assertCode(t, err, apperrors.CodeForbidden)
}

func TestGetAllBookings(t *testing.T) {
	f := newFixture(t)
	for day := 1; day <= 25; day += 3 {
		f.book(t, "car-1", june(day), june(day+1))
	}

	bookings, total, err := f.svc.GetAllBookings(context.Background(), 4, 2)
	if err != nil {
		t.Fatalf("GetAllBookings failed: %v", err)
	}
	if total != 9 || len(bookings) != 4 {
		t.Errorf("got %d bookings of %d, want 4 of 9", len(bookings), total)
	}

	bookings, _, err = f.svc.GetAllBookings(context.Background(), 0, -5)
	if err != nil {
		t.Fatalf("GetAllBookings with defaults failed: %v", err)
	}
	if len(bookings) != 9 {
		t.Errorf("default page returned %d bookings, want 9", len(bookings))
	}
}

func TestListQueries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	drv := f.store.addDriver(model.DriverAvailable)
	a := f.book(t, "car-1", june(1), june(5))
	f.book(t, "car-1", june(10), june(12))
	if _, err := f.svc.AssignDriver(ctx, a.ID, drv.ID); err != nil {
		t.Fatalf("AssignDriver failed: %v", err)
	}

	forCar, err := f.svc.GetBookingsForCar(ctx, "car-1")
	if err != nil || len(forCar) != 2 {
		t.Errorf("GetBookingsForCar = %d, %v; want 2", len(forCar), err)
	}
	mine, err := f.svc.GetBookingsByCustomer(ctx, customer.UserID)
	if err != nil || len(mine) != 2 {
		t.Errorf("GetBookingsByCustomer = %d, %v; want 2", len(mine), err)
	}
	assigned, err := f.svc.GetAssignedBookingsForUser(ctx, drv.UserID)
	if err != nil || len(assigned) != 1 || assigned[0].ID != a.ID {
		t.Errorf("GetAssignedBookingsForUser = %v, %v; want [%s]", assigned, err, a.ID)
	}
	recent, err := f.svc.GetRecentAssignedBookings(ctx, customer.UserID, 0)
	if err != nil || len(recent) != 1 {
		t.Errorf("GetRecentAssignedBookings = %d, %v; want 1", len(recent), err)
	}

	_, err = f.svc.GetBookingsForCar(ctx, "  ")
	assertCode(t, err, apperrors.CodeInvalidInput)

	f.store.findErr = errors.New("connection reset")
	_, err = f.svc.GetRecentBookings(ctx, 3)
	assertCode(t, err, apperrors.CodeInternal)
}
