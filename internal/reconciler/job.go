package reconciler

import (
	"context"
	"errors"
	"fmt"
	bookingserrors "movez/internal/bookings/errors"
	driverserrors "movez/internal/drivers/errors"
	"movez/pkg/config"
	"movez/pkg/events"
	"movez/pkg/logger"
	"movez/pkg/model"
	"sync"
	"time"
)

var (
	ErrAlreadyStarted = errors.New("reconciler already started")

	// ErrSweepInProgress is returned by RunOnce while another sweep is running.
	ErrSweepInProgress = errors.New("reconcile sweep already in progress")
)

type DriverStore interface {
	FindByStatus(ctx context.Context, status model.DriverStatus) ([]*model.Driver, error)
	ReleaseIfUnchanged(ctx context.Context, id string, version int64) error
}

type BookingHistory interface {
	FindLatestByDriver(ctx context.Context, driverID string) (*model.Booking, error)
	FindByID(ctx context.Context, id string) (*model.Booking, error)
}

// Lease grants one replica the right to sweep for the current interval.
type Lease interface {
	Acquire(ctx context.Context) (bool, error)
}

type Report struct {
	Checked  int
	Released int
	Skipped  int
	Failed   int
}

// Job frees drivers left OnDuty after their latest booking ended. It writes driver status
// directly with a compare-and-set on status_version, so a driver assigned between the read
// and the write is never touched.
type Job struct {
	drivers   DriverStore
	bookings  BookingHistory
	lease     Lease
	publisher events.Publisher
	log       *logger.Logger

	interval     time.Duration
	sweepTimeout time.Duration

	now       func() time.Time
	newTicker func(d time.Duration) (<-chan time.Time, func())

	sweepMu sync.Mutex

	mu     sync.Mutex
	stopCh chan struct{}
	done   chan struct{}
}

// NewJob builds a job from the reconcile settings in cfg. lease and publisher may be nil.
func NewJob(drivers DriverStore, bookings BookingHistory, lease Lease, publisher events.Publisher, cfg *config.Config) *Job {
	if publisher == nil {
		publisher = events.Nop()
	}
	return &Job{
		drivers:      drivers,
		bookings:     bookings,
		lease:        lease,
		publisher:    publisher,
		log:          cfg.Log.Component("reconciler"),
		interval:     cfg.ReconcileInterval,
		sweepTimeout: cfg.ReconcileSweepTimeout,
		now:          func() time.Time { return time.Now().UTC() },
		newTicker: func(d time.Duration) (<-chan time.Time, func()) {
			t := time.NewTicker(d)
			return t.C, t.Stop
		},
	}
}

// Start sweeps once right away, then every interval until ctx is done or Stop is called.
func (j *Job) Start(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.stopCh != nil {
		return ErrAlreadyStarted
	}
	j.stopCh = make(chan struct{})
	j.done = make(chan struct{})

	ticks, stopTicker := j.newTicker(j.interval)
	go func(stopCh <-chan struct{}, done chan<- struct{}) {
		defer close(done)
		defer stopTicker()

		j.tick(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-stopCh:
				return
			case <-ticks:
				j.tick(ctx)
			}
		}
	}(j.stopCh, j.done)

	j.log.Info("Driver reconciler started", "interval", j.interval, "sweep_timeout", j.sweepTimeout, "lease", j.lease != nil)
	return nil
}

// Stop halts the schedule and waits for a running sweep to return.
func (j *Job) Stop() {
	j.mu.Lock()
	stopCh, done := j.stopCh, j.done
	j.stopCh, j.done = nil, nil
	j.mu.Unlock()

	if stopCh == nil {
		return
	}
	close(stopCh)
	<-done
	j.log.Info("Driver reconciler stopped")
}

func (j *Job) tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			j.log.Error("Reconcile sweep panicked", "panic", r)
		}
	}()

	if j.lease != nil {
		acquired, err := j.lease.Acquire(ctx)
		switch {
		case err != nil:
			j.log.Warn("Reconcile lease unavailable, sweeping without it", "error", err)
		case !acquired:
			j.log.Debug("Reconcile lease held by another replica, skipping tick")
			return
		}
	}

	sweepCtx, cancel := context.WithTimeout(ctx, j.sweepTimeout)
	defer cancel()

	report, err := j.RunOnce(sweepCtx)
	if err != nil {
		if errors.Is(err, ErrSweepInProgress) {
			j.log.Debug("Previous sweep still running, skipping tick")
			return
		}
		j.log.Error("Reconcile sweep failed", "error", err, "checked", report.Checked, "released", report.Released)
	}
}

// RunOnce performs one sweep. Per-driver failures are counted and logged; only a failure to
// list OnDuty drivers or an expired context ends the sweep early.
func (j *Job) RunOnce(ctx context.Context) (Report, error) {
	var report Report
	if !j.sweepMu.TryLock() {
		return report, ErrSweepInProgress
	}
	defer j.sweepMu.Unlock()

	started := j.now()
	onDuty, err := j.drivers.FindByStatus(ctx, model.DriverOnDuty)
	if err != nil {
		return report, fmt.Errorf("failed to list on-duty drivers: %w", err)
	}

	for _, driver := range onDuty {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("sweep interrupted after %d drivers: %w", report.Checked, err)
		}
		report.Checked++

		switch j.reconcile(ctx, driver) {
		case outcomeReleased:
			report.Released++
		case outcomeFailed:
			report.Failed++
		default:
			report.Skipped++
		}
	}

	j.log.Info("Reconcile sweep finished",
		"checked", report.Checked,
		"released", report.Released,
		"skipped", report.Skipped,
		"failed", report.Failed,
		"duration", j.now().Sub(started),
	)
	return report, nil
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeReleased
	outcomeFailed
)

func (j *Job) reconcile(ctx context.Context, driver *model.Driver) outcome {
	latest, err := j.bookings.FindLatestByDriver(ctx, driver.ID)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrNotFound) {
			j.log.Warn("On-duty driver has no booking history", "driver_id", driver.ID)
			return outcomeSkipped
		}
		j.log.Error("Failed to load latest booking for driver", "driver_id", driver.ID, "error", err)
		return outcomeFailed
	}
	if !latest.Status.IsTerminal() {
		return outcomeSkipped
	}
	if active, err := j.holdsActiveBooking(ctx, driver, latest); err != nil {
		j.log.Error("Failed to load current booking for driver", "driver_id", driver.ID, "booking_id", driver.CurrentBookingID, "error", err)
		return outcomeFailed
	} else if active {
		j.log.Warn("On-duty driver still holds an active booking, leaving it",
			"driver_id", driver.ID,
			"booking_id", driver.CurrentBookingID,
			"latest_booking_id", latest.ID,
		)
		return outcomeSkipped
	}

	if err := j.drivers.ReleaseIfUnchanged(ctx, driver.ID, driver.StatusVersion); err != nil {
		if errors.Is(err, driverserrors.ErrVersionChanged) {
			j.log.Info("Driver changed during sweep, leaving it", "driver_id", driver.ID)
			return outcomeSkipped
		}
		j.log.Error("Failed to release driver", "driver_id", driver.ID, "error", err)
		return outcomeFailed
	}

	j.log.Info("Released stale on-duty driver",
		"driver_id", driver.ID,
		"booking_id", latest.ID,
		"booking_status", latest.Status,
	)
	_ = j.publisher.Publish(ctx, events.New(events.DriverReleased, driver.ID, map[string]string{
		"driver_id":  driver.ID,
		"booking_id": latest.ID,
		"source":     "reconciler",
	}))
	return outcomeReleased
}

// holdsActiveBooking checks the booking the driver record points at when it differs from the
// latest one. A driver made Available mid-trip and reassigned can see the older trip finish
// after the newer one started, leaving a terminal latest booking while the current one runs.
func (j *Job) holdsActiveBooking(ctx context.Context, driver *model.Driver, latest *model.Booking) (bool, error) {
	if driver.CurrentBookingID == "" || driver.CurrentBookingID == latest.ID {
		return false, nil
	}
	current, err := j.bookings.FindByID(ctx, driver.CurrentBookingID)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrNotFound) || errors.Is(err, bookingserrors.ErrInvalidID) {
			return false, nil
		}
		return false, err
	}
	return !current.Status.IsTerminal(), nil
}
