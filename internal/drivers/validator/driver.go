package validator

import (
	"movez/pkg/logger"
	"movez/pkg/model"
	"movez/pkg/validation"

	"github.com/go-playground/validator/v10"
)

type DriverValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewDriverValidator(log *logger.Logger) *DriverValidator {
	log.Info("Driver validator initialized successfully")

	return &DriverValidator{
		validate: validation.New(),
		logger:   log,
	}
}

func (v *DriverValidator) ValidateRegistration(in *model.DriverRegistration) error {
	return validation.Struct(v.validate, in)
}
