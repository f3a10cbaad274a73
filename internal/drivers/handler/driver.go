package handler

import (
	"net/http"

	"movez/internal/drivers/service"
	"movez/pkg/auth"
	httputil "movez/pkg/http"
	"movez/pkg/logger"
	"movez/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type DriverHandler struct {
	service service.DriverService
	log     *logger.Logger
}

func NewDriverHandler(service service.DriverService, log *logger.Logger) *DriverHandler {
	return &DriverHandler{
		service: service,
		log:     log,
	}
}

func (h *DriverHandler) Register(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if _, err := auth.RequireStaff(r.Context()); err != nil {
		h.writeError(w, "Register", err)
		return
	}

	var in model.DriverRegistration
	if err := httputil.DecodeJSON(r, &in); err != nil {
		h.writeError(w, "Register", err)
		return
	}

	driver, err := h.service.RegisterDriver(r.Context(), &in)
	if err != nil {
		h.writeError(w, "Register", err)
		return
	}

	if err := httputil.WriteCreated(w, driver); err != nil {
		h.log.Error("failed to write created response", "handler", "Register", "operation", "WriteCreated", "error", err)
	}
}

func (h *DriverHandler) GetAll(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if _, err := auth.RequireStaff(r.Context()); err != nil {
		h.writeError(w, "GetAll", err)
		return
	}

	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "GetAll", err)
		return
	}

	drivers, total, err := h.service.GetAllDrivers(r.Context(), limit, offset)
	if err != nil {
		h.writeError(w, "GetAll", err)
		return
	}

	if err := httputil.WritePaginated(w, drivers, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "GetAll", "operation", "WritePaginated", "error", err)
	}
}

func (h *DriverHandler) GetAvailable(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if _, err := auth.RequireStaff(r.Context()); err != nil {
		h.writeError(w, "GetAvailable", err)
		return
	}

	drivers, err := h.service.GetAvailableDrivers(r.Context())
	if err != nil {
		h.writeError(w, "GetAvailable", err)
		return
	}

	h.writeSuccess(w, "GetAvailable", drivers)
}

func (h *DriverHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if _, err := auth.RequireStaff(r.Context()); err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	driver, err := h.service.GetDriver(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	h.writeSuccess(w, "GetByID", driver)
}

// GetMe returns the driver profile of the calling driver.
func (h *DriverHandler) GetMe(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	caller, err := auth.Require(r.Context(), auth.RoleDriver)
	if err != nil {
		h.writeError(w, "GetMe", err)
		return
	}

	driver, err := h.service.GetDriverByUser(r.Context(), caller.UserID)
	if err != nil {
		h.writeError(w, "GetMe", err)
		return
	}

	h.writeSuccess(w, "GetMe", driver)
}

func (h *DriverHandler) SetOffDuty(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if _, err := auth.RequireStaff(r.Context()); err != nil {
		h.writeError(w, "SetOffDuty", err)
		return
	}

	driver, err := h.service.SetOffDuty(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "SetOffDuty", err)
		return
	}

	h.writeSuccess(w, "SetOffDuty", driver)
}

func (h *DriverHandler) SetAvailable(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if _, err := auth.RequireStaff(r.Context()); err != nil {
		h.writeError(w, "SetAvailable", err)
		return
	}

	driver, err := h.service.SetAvailable(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "SetAvailable", err)
		return
	}

	h.writeSuccess(w, "SetAvailable", driver)
}

func (h *DriverHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *DriverHandler) writeSuccess(w http.ResponseWriter, handler string, data any) {
	if err := httputil.WriteSuccess(w, data); err != nil {
		h.log.Error("failed to write success response", "handler", handler, "operation", "WriteSuccess", "error", err)
	}
}

func (h *DriverHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/drivers", h.Register)
	router.GET("/api/v1/drivers", h.GetAll)
	router.GET("/api/v1/drivers/available", h.GetAvailable)
	router.GET("/api/v1/drivers/me", h.GetMe)
	router.GET("/api/v1/drivers/id/:id", h.GetByID)
	router.POST("/api/v1/drivers/id/:id/off-duty", h.SetOffDuty)
	router.POST("/api/v1/drivers/id/:id/available", h.SetAvailable)
}
