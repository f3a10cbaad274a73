package handler

import (
	"net/http"

	"movez/internal/payments/service"
	"movez/pkg/auth"
	httputil "movez/pkg/http"
	"movez/pkg/logger"
	"movez/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type PaymentHandler struct {
	service         service.PaymentService
	log             *logger.Logger
	recentFeedLimit int
}

func NewPaymentHandler(service service.PaymentService, log *logger.Logger, recentFeedLimit int) *PaymentHandler {
	return &PaymentHandler{
		service:         service,
		log:             log,
		recentFeedLimit: recentFeedLimit,
	}
}

func (h *PaymentHandler) Record(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	caller, err := auth.Require(r.Context(), auth.RoleCustomer, auth.RoleStaff)
	if err != nil {
		h.writeError(w, "Record", err)
		return
	}

	var in model.PaymentRequest
	if err := httputil.DecodeJSON(r, &in); err != nil {
		h.writeError(w, "Record", err)
		return
	}

	payment, err := h.service.RecordPayment(r.Context(), caller, &in)
	if err != nil {
		h.writeError(w, "Record", err)
		return
	}

	h.writeCreated(w, "Record", payment)
}

func (h *PaymentHandler) ConfirmCash(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	caller, err := auth.RequireStaff(r.Context())
	if err != nil {
		h.writeError(w, "ConfirmCash", err)
		return
	}

	var in model.CashConfirmation
	if err := httputil.DecodeJSON(r, &in); err != nil {
		h.writeError(w, "ConfirmCash", err)
		return
	}

	payment, err := h.service.ConfirmCashPayment(r.Context(), caller, &in)
	if err != nil {
		h.writeError(w, "ConfirmCash", err)
		return
	}

	h.writeCreated(w, "ConfirmCash", payment)
}

func (h *PaymentHandler) GetRecent(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if _, err := auth.RequireStaff(r.Context()); err != nil {
		h.writeError(w, "GetRecent", err)
		return
	}

	limit, err := httputil.ExtractLimit(r, h.recentFeedLimit)
	if err != nil {
		h.writeError(w, "GetRecent", err)
		return
	}

	payments, err := h.service.GetRecentPayments(r.Context(), limit)
	if err != nil {
		h.writeError(w, "GetRecent", err)
		return
	}

	h.writeSuccess(w, "GetRecent", payments)
}

func (h *PaymentHandler) GetMine(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	caller, err := auth.Require(r.Context(), auth.RoleCustomer)
	if err != nil {
		h.writeError(w, "GetMine", err)
		return
	}

	payments, err := h.service.GetPaymentsByCustomer(r.Context(), caller.UserID)
	if err != nil {
		h.writeError(w, "GetMine", err)
		return
	}

	h.writeSuccess(w, "GetMine", payments)
}

func (h *PaymentHandler) GetForBooking(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	caller, err := auth.Require(r.Context(), auth.RoleCustomer, auth.RoleStaff)
	if err != nil {
		h.writeError(w, "GetForBooking", err)
		return
	}

	payments, err := h.service.GetPaymentsByBooking(r.Context(), caller, ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetForBooking", err)
		return
	}

	h.writeSuccess(w, "GetForBooking", payments)
}

func (h *PaymentHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *PaymentHandler) writeSuccess(w http.ResponseWriter, handler string, data any) {
	if err := httputil.WriteSuccess(w, data); err != nil {
		h.log.Error("failed to write success response", "handler", handler, "operation", "WriteSuccess", "error", err)
	}
}

func (h *PaymentHandler) writeCreated(w http.ResponseWriter, handler string, data any) {
	if err := httputil.WriteCreated(w, data); err != nil {
		h.log.Error("failed to write created response", "handler", handler, "operation", "WriteCreated", "error", err)
	}
}

func (h *PaymentHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/payments", h.Record)
	router.POST("/api/v1/payments/cash", h.ConfirmCash)
	router.GET("/api/v1/payments", h.GetRecent)
	router.GET("/api/v1/payments/mine", h.GetMine)
	router.GET("/api/v1/bookings/id/:id/payments", h.GetForBooking)
}
