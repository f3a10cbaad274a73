package service

import (
	"context"
	"errors"
	driverserrors "movez/internal/drivers/errors"
	"movez/internal/drivers/repository"
	"movez/internal/drivers/validator"
	"movez/pkg/config"
	apperrors "movez/pkg/errors"
	"movez/pkg/model"
	"movez/pkg/sanitizer"
	"movez/pkg/validation"
	"sync"
)

// DriverService tracks driver availability. SetOnDuty and Release are the dispatch side of
// booking transitions and join the caller's transaction when given its context.
type DriverService interface {
	RegisterDriver(ctx context.Context, in *model.DriverRegistration) (*model.Driver, error)
	GetDriver(ctx context.Context, id string) (*model.Driver, error)
	GetDriverByUser(ctx context.Context, userID string) (*model.Driver, error)
	GetAllDrivers(ctx context.Context, limit int, offset int64) ([]*model.Driver, int64, error)
	GetAvailableDrivers(ctx context.Context) ([]*model.Driver, error)
	SetOnDuty(ctx context.Context, driverID, bookingID string) error
	Release(ctx context.Context, driverID, bookingID string) error
	SetOffDuty(ctx context.Context, driverID string) (*model.Driver, error)
	SetAvailable(ctx context.Context, driverID string) (*model.Driver, error)
}

type driverService struct {
	repo      repository.DriverRepository
	validator *validator.DriverValidator
	cfg       *config.Config
}

func NewDriverService(repo repository.DriverRepository, validator *validator.DriverValidator, cfg *config.Config) DriverService {
	return &driverService{
		repo:      repo,
		validator: validator,
		cfg:       cfg,
	}
}

func (s *driverService) RegisterDriver(ctx context.Context, in *model.DriverRegistration) (*model.Driver, error) {
	in.UserID = sanitizer.NormalizeID(in.UserID)
	in.Name = sanitizer.NormalizeName(in.Name)

	if err := s.validator.ValidateRegistration(in); err != nil {
		s.cfg.Log.Warn("Driver validation failed", "error", err)
		return nil, validation.AppError("Driver validation failed", err)
	}

	driver := &model.Driver{
		UserID: in.UserID,
		Name:   in.Name,
		Status: model.DriverAvailable,
	}
	if err := s.repo.Create(ctx, driver); err != nil {
		if errors.Is(err, driverserrors.ErrDuplicateUser) {
			return nil, apperrors.ConflictWithDetails("A driver is already registered for this user", map[string]any{
				"rule":    "unique_driver_user",
				"user_id": in.UserID,
			})
		}
		s.cfg.Log.Error("Failed to create driver", "user_id", in.UserID, "error", err)
		return nil, apperrors.Internal("Failed to create driver", err)
	}

	s.cfg.Log.Info("Driver registered successfully",
		"id", driver.ID,
		"user_id", driver.UserID,
	)
	return driver, nil
}

func (s *driverService) GetDriver(ctx context.Context, id string) (*model.Driver, error) {
	id = sanitizer.NormalizeID(id)
	if id == "" {
		return nil, apperrors.InvalidInput("Driver ID cannot be empty")
	}

	driver, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapRepoError(err, id, "Failed to retrieve driver")
	}
	return driver, nil
}

func (s *driverService) GetDriverByUser(ctx context.Context, userID string) (*model.Driver, error) {
	userID = sanitizer.NormalizeID(userID)
	if userID == "" {
		return nil, apperrors.InvalidInput("User ID cannot be empty")
	}

	driver, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, driverserrors.ErrNotFound) {
			return nil, apperrors.NotFound("Driver profile")
		}
		return nil, s.mapRepoError(err, userID, "Failed to retrieve driver")
	}
	return driver, nil
}

func (s *driverService) GetAllDrivers(ctx context.Context, limit int, offset int64) ([]*model.Driver, int64, error) {
	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	var count int64
	var drivers []*model.Driver
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.Count(ctx)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count drivers", "error", errCount)
			errCount = apperrors.Internal("Failed to count drivers", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		drivers, errFind = s.repo.FindAll(ctx, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list drivers", "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve drivers", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return drivers, count, nil
}

func (s *driverService) GetAvailableDrivers(ctx context.Context) ([]*model.Driver, error) {
	drivers, err := s.repo.FindByStatus(ctx, model.DriverAvailable)
	if err != nil {
		s.cfg.Log.Error("Failed to list available drivers", "error", err)
		return nil, apperrors.Internal("Failed to retrieve available drivers", err)
	}
	return drivers, nil
}

func (s *driverService) SetOnDuty(ctx context.Context, driverID, bookingID string) error {
	driverID = sanitizer.NormalizeID(driverID)
	if driverID == "" || bookingID == "" {
		return apperrors.InvalidInput("Driver ID and booking ID are required")
	}

	if err := s.repo.SetOnDuty(ctx, driverID, bookingID); err != nil {
		if errors.Is(err, driverserrors.ErrOnDutyElsewhere) {
			return apperrors.ConflictWithDetails("Driver is already on duty for another booking", map[string]any{
				"rule":      "driver_on_duty",
				"driver_id": driverID,
			})
		}
		return s.mapRepoError(err, driverID, "Failed to set driver on duty")
	}

	s.cfg.Log.Info("Driver set on duty", "id", driverID, "booking_id", bookingID)
	return nil
}

func (s *driverService) Release(ctx context.Context, driverID, bookingID string) error {
	released, err := s.repo.Release(ctx, driverID, bookingID)
	if err != nil {
		return s.mapRepoError(err, driverID, "Failed to release driver")
	}

	if released {
		s.cfg.Log.Info("Driver released", "id", driverID, "booking_id", bookingID)
	} else {
		s.cfg.Log.Debug("Driver not attached to booking, nothing to release", "id", driverID, "booking_id", bookingID)
	}
	return nil
}

func (s *driverService) SetOffDuty(ctx context.Context, driverID string) (*model.Driver, error) {
	return s.setStatus(ctx, driverID, model.DriverOffDuty)
}

func (s *driverService) SetAvailable(ctx context.Context, driverID string) (*model.Driver, error) {
	return s.setStatus(ctx, driverID, model.DriverAvailable)
}

func (s *driverService) setStatus(ctx context.Context, driverID string, status model.DriverStatus) (*model.Driver, error) {
	driverID = sanitizer.NormalizeID(driverID)
	if driverID == "" {
		return nil, apperrors.InvalidInput("Driver ID cannot be empty")
	}

	if err := s.repo.SetStatus(ctx, driverID, status); err != nil {
		return nil, s.mapRepoError(err, driverID, "Failed to update driver status")
	}
	s.cfg.Log.Info("Driver status updated", "id", driverID, "status", status)

	return s.GetDriver(ctx, driverID)
}

func (s *driverService) mapRepoError(err error, id, message string) error {
	switch {
	case errors.Is(err, driverserrors.ErrNotFound):
		return apperrors.NotFoundWithID("Driver", id)
	case errors.Is(err, driverserrors.ErrInvalidID):
		return apperrors.InvalidInput("Invalid driver ID format")
	default:
		s.cfg.Log.Error(message, "id", id, "error", err)
		return apperrors.Internal(message, err)
	}
}
