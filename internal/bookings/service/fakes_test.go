package service

import (
	"context"
	"maps"
	bookingserrors "movez/internal/bookings/errors"
	"movez/internal/bookings/repository"
	mongotx "movez/pkg/db/mongo"
	apperrors "movez/pkg/errors"
	"movez/pkg/events"
	"movez/pkg/model"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// fakeStore keeps bookings and drivers in memory. ExecuteTransaction serializes callers and
// restores both maps when fn fails, which is what the Mongo transaction gives the service.
type fakeStore struct {
	txMu     sync.Mutex
	mu       sync.Mutex
	bookings map[string]model.Booking
	drivers  map[string]model.Driver
	locks    map[string]int64

	findErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		bookings: map[string]model.Booking{},
		drivers:  map[string]model.Driver{},
		locks:    map[string]int64{},
	}
}

func (f *fakeStore) addDriver(status model.DriverStatus) model.Driver {
	f.mu.Lock()
	defer f.mu.Unlock()
	d := model.Driver{ID: uuid.NewString(), UserID: uuid.NewString(), Name: "driver", Status: status}
	f.drivers[d.ID] = d
	return d
}

func (f *fakeStore) driver(id string) model.Driver {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.drivers[id]
}

func (f *fakeStore) booking(id string) model.Booking {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bookings[id]
}

func (f *fakeStore) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	f.txMu.Lock()
	defer f.txMu.Unlock()

	f.mu.Lock()
	bookings, drivers, locks := maps.Clone(f.bookings), maps.Clone(f.drivers), maps.Clone(f.locks)
	f.mu.Unlock()

	if err := fn(ctx); err != nil {
		f.mu.Lock()
		f.bookings, f.drivers, f.locks = bookings, drivers, locks
		f.mu.Unlock()
		return err
	}
	return nil
}

func (f *fakeStore) Touch(_ context.Context, carID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.locks[carID]++
	return nil
}

func (f *fakeStore) Create(_ context.Context, b *model.Booking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	b.CreatedAt, b.StatusUpdatedAt = now, now
	f.bookings[b.ID] = *b
	return nil
}

func (f *fakeStore) FindByID(_ context.Context, id string) (*model.Booking, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, bookingserrors.ErrInvalidID
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return nil, bookingserrors.ErrNotFound
	}
	return &b, nil
}

func (f *fakeStore) filter(keep func(model.Booking) bool) ([]*model.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	out := make([]*model.Booking, 0)
	for _, b := range f.bookings {
		if keep(b) {
			out = append(out, &b)
		}
	}
	slices.SortFunc(out, func(a, b *model.Booking) int { return a.StartDate.Compare(b.StartDate) })
	return out, nil
}

func (f *fakeStore) FindAll(_ context.Context, limit int, offset int64) ([]*model.Booking, error) {
	all, err := f.filter(func(model.Booking) bool { return true })
	if err != nil {
		return nil, err
	}
	if int(offset) >= len(all) {
		return []*model.Booking{}, nil
	}
	all = all[offset:]
	return all[:min(limit, len(all))], nil
}

func (f *fakeStore) Count(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.bookings)), nil
}

func (f *fakeStore) FindActiveOverlapping(_ context.Context, carID string, start, end time.Time, excludeID string) ([]*model.Booking, error) {
	return f.filter(func(b model.Booking) bool {
		return b.CarID == carID && b.ID != excludeID && b.Status.IsActive() && b.StartDate.Before(end) && b.EndDate.After(start)
	})
}

func (f *fakeStore) FindActiveByCar(_ context.Context, carID string) ([]*model.Booking, error) {
	return f.filter(func(b model.Booking) bool { return b.CarID == carID && b.Status.IsActive() })
}

func (f *fakeStore) FindByCar(_ context.Context, carID string) ([]*model.Booking, error) {
	return f.filter(func(b model.Booking) bool { return b.CarID == carID })
}

func (f *fakeStore) FindByCustomer(_ context.Context, customerID string) ([]*model.Booking, error) {
	return f.filter(func(b model.Booking) bool { return b.CustomerID == customerID })
}

func (f *fakeStore) FindAssignedByDriver(_ context.Context, driverID string) ([]*model.Booking, error) {
	return f.filter(func(b model.Booking) bool { return b.DriverID == driverID && b.Status == model.BookingAssigned })
}

func (f *fakeStore) FindLatestByDriver(_ context.Context, driverID string) (*model.Booking, error) {
	all, err := f.filter(func(b model.Booking) bool { return b.DriverID == driverID || b.ReleasedDriverID == driverID })
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, bookingserrors.ErrNotFound
	}
	return slices.MaxFunc(all, func(a, b *model.Booking) int { return a.StatusUpdatedAt.Compare(b.StatusUpdatedAt) }), nil
}

func (f *fakeStore) FindRecent(_ context.Context, n int) ([]*model.Booking, error) {
	all, err := f.filter(func(model.Booking) bool { return true })
	if err != nil {
		return nil, err
	}
	return all[:min(n, len(all))], nil
}

func (f *fakeStore) FindRecentAssignedByCustomer(_ context.Context, customerID string, n int) ([]*model.Booking, error) {
	all, err := f.filter(func(b model.Booking) bool { return b.CustomerID == customerID && b.Status == model.BookingAssigned })
	if err != nil {
		return nil, err
	}
	return all[:min(n, len(all))], nil
}

func (f *fakeStore) UpdateStatus(_ context.Context, c repository.StatusChange) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[c.BookingID]
	if !ok {
		return bookingserrors.ErrNotFound
	}
	if b.Status != c.FromStatus || b.DriverID != c.FromDriverID {
		return bookingserrors.ErrStatusChanged
	}
	b.Status = c.ToStatus
	b.StatusUpdatedAt = c.At
	switch {
	case c.DriverID != "":
		b.DriverID = c.DriverID
	case c.ClearDriver && c.FromDriverID != "":
		b.ReleasedDriverID = c.FromDriverID
		b.DriverID = ""
	}
	f.bookings[b.ID] = b
	return nil
}

func (f *fakeStore) MarkPaid(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return bookingserrors.ErrNotFound
	}
	if b.IsPaid {
		return bookingserrors.ErrAlreadyPaid
	}
	b.IsPaid, b.PaymentStatus = true, model.Paid
	f.bookings[id] = b
	return nil
}

// fakeDispatcher applies driver transitions to the store's drivers with the same rules as the
// drivers service.
type fakeDispatcher struct {
	store *fakeStore
}

func (d fakeDispatcher) SetOnDuty(_ context.Context, driverID, bookingID string) error {
	d.store.mu.Lock()
	defer d.store.mu.Unlock()
	drv, ok := d.store.drivers[driverID]
	if !ok {
		return apperrors.NotFoundWithID("Driver", driverID)
	}
	if drv.Status == model.DriverOnDuty && drv.CurrentBookingID != bookingID {
		return apperrors.Conflict("driver is on duty for another booking")
	}
	drv.Status, drv.CurrentBookingID = model.DriverOnDuty, bookingID
	drv.StatusVersion++
	d.store.drivers[driverID] = drv
	return nil
}

func (d fakeDispatcher) Release(_ context.Context, driverID, bookingID string) error {
	d.store.mu.Lock()
	defer d.store.mu.Unlock()
	drv, ok := d.store.drivers[driverID]
	if !ok || drv.CurrentBookingID != bookingID {
		return nil
	}
	drv.Status, drv.CurrentBookingID = model.DriverFreeStatus, ""
	drv.StatusVersion++
	d.store.drivers[driverID] = drv
	return nil
}

func (d fakeDispatcher) GetAvailableDrivers(context.Context) ([]*model.Driver, error) {
	d.store.mu.Lock()
	defer d.store.mu.Unlock()
	out := make([]*model.Driver, 0)
	for _, drv := range d.store.drivers {
		if drv.Status == model.DriverAvailable {
			out = append(out, &drv)
		}
	}
	return out, nil
}

func (d fakeDispatcher) GetDriverByUser(_ context.Context, userID string) (*model.Driver, error) {
	d.store.mu.Lock()
	defer d.store.mu.Unlock()
	for _, drv := range d.store.drivers {
		if drv.UserID == userID {
			return &drv, nil
		}
	}
	return nil, apperrors.NotFound("Driver")
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, evt events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return nil
}

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}
