package validator

import (
	"movez/pkg/logger"
	"movez/pkg/model"
	"movez/pkg/validation"

	"github.com/go-playground/validator/v10"
)

type BookingValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewBookingValidator(log *logger.Logger) *BookingValidator {
	log.Info("Booking validator initialized successfully")

	return &BookingValidator{
		validate: validation.New(),
		logger:   log,
	}
}

// ValidateCreate checks the creation input. Date ordering is checked again by the
// conflict checker, so an unordered range is rejected however the booking is created.
func (v *BookingValidator) ValidateCreate(in *model.BookingCreate) error {
	if err := validation.Struct(v.validate, in); err != nil {
		return err
	}
	if in.CustomerID == "" {
		return validation.ValidationErrors{{
			Field:   "customer_id",
			Message: "customer_id is required",
		}}
	}
	return nil
}

func (v *BookingValidator) ValidateAssignment(in *model.DriverAssignment) error {
	return validation.Struct(v.validate, in)
}
