package handler

import (
	"context"
	"net/http"

	"movez/pkg/auth"
	httputil "movez/pkg/http"
	"movez/pkg/logger"
	"movez/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type BookingFeed interface {
	GetRecentBookings(ctx context.Context, n int) ([]*model.Booking, error)
	GetRecentAssignedBookings(ctx context.Context, customerID string, n int) ([]*model.Booking, error)
}

type PaymentFeed interface {
	GetRecentPayments(ctx context.Context, n int) ([]*model.Payment, error)
	GetRecentCashPayments(ctx context.Context, customerID string, n int) ([]*model.Payment, error)
}

// Feed is the pull view of recent activity. Staff see new bookings and settled payments;
// customers see their assigned bookings and cash payments.
type Feed struct {
	Bookings []*model.Booking `json:"bookings"`
	Payments []*model.Payment `json:"payments"`
}

type NotificationHandler struct {
	bookings     BookingFeed
	payments     PaymentFeed
	log          *logger.Logger
	defaultLimit int
}

func NewNotificationHandler(bookings BookingFeed, payments PaymentFeed, log *logger.Logger, defaultLimit int) *NotificationHandler {
	return &NotificationHandler{
		bookings:     bookings,
		payments:     payments,
		log:          log,
		defaultLimit: defaultLimit,
	}
}

func (h *NotificationHandler) Get(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	caller, err := auth.Require(r.Context(), auth.RoleCustomer, auth.RoleStaff)
	if err != nil {
		h.writeError(w, err)
		return
	}

	limit, err := httputil.ExtractLimit(r, h.defaultLimit)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var feed Feed
	if caller.IsStaff() {
		feed, err = h.staffFeed(r.Context(), limit)
	} else {
		feed, err = h.customerFeed(r.Context(), caller.UserID, limit)
	}
	if err != nil {
		h.writeError(w, err)
		return
	}

	if err := httputil.WriteSuccess(w, feed); err != nil {
		h.log.Error("failed to write success response", "handler", "Get", "operation", "WriteSuccess", "error", err)
	}
}

func (h *NotificationHandler) staffFeed(ctx context.Context, limit int) (Feed, error) {
	bookings, err := h.bookings.GetRecentBookings(ctx, limit)
	if err != nil {
		return Feed{}, err
	}
	payments, err := h.payments.GetRecentPayments(ctx, limit)
	if err != nil {
		return Feed{}, err
	}
	return Feed{Bookings: bookings, Payments: payments}, nil
}

func (h *NotificationHandler) customerFeed(ctx context.Context, customerID string, limit int) (Feed, error) {
	bookings, err := h.bookings.GetRecentAssignedBookings(ctx, customerID, limit)
	if err != nil {
		return Feed{}, err
	}
	payments, err := h.payments.GetRecentCashPayments(ctx, customerID, limit)
	if err != nil {
		return Feed{}, err
	}
	return Feed{Bookings: bookings, Payments: payments}, nil
}

func (h *NotificationHandler) writeError(w http.ResponseWriter, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", "Get", "operation", "WriteError", "error", writeErr)
	}
}

func (h *NotificationHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/notifications", h.Get)
}
