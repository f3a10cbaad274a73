package validator

import (
	"movez/pkg/logger"
	"movez/pkg/model"
	"movez/pkg/validation"

	"github.com/go-playground/validator/v10"
)

type PaymentValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewPaymentValidator(log *logger.Logger) *PaymentValidator {
	log.Info("Payment validator initialized successfully")

	return &PaymentValidator{
		validate: validation.New(),
		logger:   log,
	}
}

func (v *PaymentValidator) ValidatePayment(in *model.PaymentRequest) error {
	return validation.Struct(v.validate, in)
}
