package model

import "time"

type PaymentMethod string

const (
	PaymentCash   PaymentMethod = "Cash"
	PaymentOnline PaymentMethod = "Online"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "Pending"
	PaymentPaid    PaymentStatus = "Paid"
)

// Payment is an append-only ledger entry. It is never modified once Status is Paid.
type Payment struct {
	ID          string        `json:"id" bson:"_id"`
	BookingID   string        `json:"booking_id" bson:"booking_id"`
	CustomerID  string        `json:"customer_id" bson:"customer_id"`
	Amount      int64         `json:"amount" bson:"amount"`
	Currency    string        `json:"currency" bson:"currency"`
	Method      PaymentMethod `json:"method" bson:"method"`
	Status      PaymentStatus `json:"status" bson:"status"`
	PaymentDate time.Time     `json:"payment_date" bson:"payment_date"`
	CreatedAt   time.Time     `json:"created_at" bson:"created_at"`
}

type PaymentRequest struct {
	BookingID string        `json:"booking_id" validate:"required,uuid"`
	Amount    int64         `json:"amount" validate:"gte=0"`
	Method    PaymentMethod `json:"method" validate:"required,oneof=Cash Online"`
}

type CashConfirmation struct {
	BookingID string `json:"booking_id" validate:"required,uuid"`
	Amount    int64  `json:"amount" validate:"gte=0"`
}
