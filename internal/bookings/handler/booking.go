package handler

import (
	"net/http"

	"movez/internal/bookings/service"
	"movez/pkg/auth"
	httputil "movez/pkg/http"
	"movez/pkg/logger"
	"movez/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type BookingHandler struct {
	service service.BookingService
	log     *logger.Logger
}

func NewBookingHandler(service service.BookingService, log *logger.Logger) *BookingHandler {
	return &BookingHandler{
		service: service,
		log:     log,
	}
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	caller, err := auth.Require(r.Context(), auth.RoleCustomer, auth.RoleStaff)
	if err != nil {
		h.writeError(w, "Create", err)
		return
	}

	var in model.BookingCreate
	if err := httputil.DecodeJSON(r, &in); err != nil {
		h.writeError(w, "Create", err)
		return
	}

	booking, err := h.service.CreateBooking(r.Context(), caller, &in)
	if err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, booking); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *BookingHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	caller, err := auth.Require(r.Context())
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	details, err := h.service.GetBooking(r.Context(), caller, ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	h.writeSuccess(w, "GetByID", details)
}

func (h *BookingHandler) GetAll(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if _, err := auth.RequireStaff(r.Context()); err != nil {
		h.writeError(w, "GetAll", err)
		return
	}

	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "GetAll", err)
		return
	}

	bookings, total, err := h.service.GetAllBookings(r.Context(), limit, offset)
	if err != nil {
		h.writeError(w, "GetAll", err)
		return
	}

	if err := httputil.WritePaginated(w, bookings, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "GetAll", "operation", "WritePaginated", "error", err)
	}
}

func (h *BookingHandler) GetMine(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	caller, err := auth.Require(r.Context(), auth.RoleCustomer)
	if err != nil {
		h.writeError(w, "GetMine", err)
		return
	}

	bookings, err := h.service.GetBookingsByCustomer(r.Context(), caller.UserID)
	if err != nil {
		h.writeError(w, "GetMine", err)
		return
	}

	h.writeSuccess(w, "GetMine", bookings)
}

func (h *BookingHandler) GetAssigned(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	caller, err := auth.Require(r.Context(), auth.RoleDriver)
	if err != nil {
		h.writeError(w, "GetAssigned", err)
		return
	}

	bookings, err := h.service.GetAssignedBookingsForUser(r.Context(), caller.UserID)
	if err != nil {
		h.writeError(w, "GetAssigned", err)
		return
	}

	h.writeSuccess(w, "GetAssigned", bookings)
}

func (h *BookingHandler) Assign(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if _, err := auth.RequireStaff(r.Context()); err != nil {
		h.writeError(w, "Assign", err)
		return
	}

	var in model.DriverAssignment
	if err := httputil.DecodeJSON(r, &in); err != nil {
		h.writeError(w, "Assign", err)
		return
	}

	booking, err := h.service.AssignDriver(r.Context(), ps.ByName("id"), in.DriverID)
	if err != nil {
		h.writeError(w, "Assign", err)
		return
	}

	h.writeSuccess(w, "Assign", booking)
}

func (h *BookingHandler) Complete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if _, err := auth.RequireStaff(r.Context()); err != nil {
		h.writeError(w, "Complete", err)
		return
	}

	booking, err := h.service.CompleteBooking(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "Complete", err)
		return
	}

	h.writeSuccess(w, "Complete", booking)
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	caller, err := auth.Require(r.Context(), auth.RoleCustomer, auth.RoleStaff)
	if err != nil {
		h.writeError(w, "Cancel", err)
		return
	}

	booking, err := h.service.CancelBooking(r.Context(), caller, ps.ByName("id"))
	if err != nil {
		h.writeError(w, "Cancel", err)
		return
	}

	h.writeSuccess(w, "Cancel", booking)
}

func (h *BookingHandler) GetForCar(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if _, err := auth.RequireStaff(r.Context()); err != nil {
		h.writeError(w, "GetForCar", err)
		return
	}

	bookings, err := h.service.GetBookingsForCar(r.Context(), ps.ByName("carId"))
	if err != nil {
		h.writeError(w, "GetForCar", err)
		return
	}

	h.writeSuccess(w, "GetForCar", bookings)
}

func (h *BookingHandler) GetBookedRanges(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if _, err := auth.Require(r.Context()); err != nil {
		h.writeError(w, "GetBookedRanges", err)
		return
	}

	ranges, err := h.service.GetBookedRanges(r.Context(), ps.ByName("carId"))
	if err != nil {
		h.writeError(w, "GetBookedRanges", err)
		return
	}

	h.writeSuccess(w, "GetBookedRanges", ranges)
}

func (h *BookingHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *BookingHandler) writeSuccess(w http.ResponseWriter, handler string, data any) {
	if err := httputil.WriteSuccess(w, data); err != nil {
		h.log.Error("failed to write success response", "handler", handler, "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/bookings", h.Create)
	router.GET("/api/v1/bookings", h.GetAll)
	router.GET("/api/v1/bookings/mine", h.GetMine)
	router.GET("/api/v1/bookings/assigned", h.GetAssigned)
	router.GET("/api/v1/bookings/id/:id", h.GetByID)
	router.POST("/api/v1/bookings/id/:id/assign", h.Assign)
	router.POST("/api/v1/bookings/id/:id/complete", h.Complete)
	router.POST("/api/v1/bookings/id/:id/cancel", h.Cancel)
	router.GET("/api/v1/cars/:carId/bookings", h.GetForCar)
	router.GET("/api/v1/cars/:carId/booked-ranges", h.GetBookedRanges)
}
