package booking

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/booking-api/internal/handler"
	"github.com/jwalitptl/booking-api/internal/middleware"
	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/service/booking"
	"github.com/jwalitptl/booking-api/pkg/auth"
	apperrors "github.com/jwalitptl/booking-api/pkg/errors"
	"github.com/jwalitptl/booking-api/pkg/httputil"
	"github.com/jwalitptl/booking-api/pkg/timerange"
)

type Handler struct {
	service booking.BookingServicer
	auth    *middleware.AuthMiddleware
}

func NewHandler(service booking.BookingServicer, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{service: service, auth: auth}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/doctors/:doctor_id/slots", h.ListBookableSlots)

	bookings := r.Group("/bookings")
	{
		bookings.POST("", h.auth.RequireRole(auth.RolePatient, auth.RoleService), h.Reserve)
		bookings.GET("", h.ListBookings)
		bookings.GET("/:id", h.GetBooking)
		bookings.POST("/:id/cancel", h.Cancel)
		bookings.POST("/:id/confirm", h.auth.RequireRole(auth.RoleService), h.Confirm)
		bookings.POST("/:id/complete", h.auth.RequireRole(auth.RoleService), h.Complete)
	}
}

// SlotsResponse is the payload of a bookable slot listing.
type SlotsResponse struct {
	DoctorID string            `json:"doctor_id"`
	Date     timerange.Date    `json:"date"`
	Slots    []timerange.Range `json:"slots"`
}

func (h *Handler) ListBookableSlots(c *gin.Context) {
	doctorID, err := handler.UUIDParam(c, "doctor_id")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	date, err := handler.ParseDate("date", c.Query("date"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	slots, err := h.service.ListBookableSlots(c.Request.Context(), doctorID, date)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, SlotsResponse{
		DoctorID: doctorID.String(),
		Date:     date,
		Slots:    slots,
	})
}

// Reserve books a slot for a patient. Only the payment service may mark the
// payment as captured.
func (h *Handler) Reserve(c *gin.Context) {
	var req model.ReserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err).SetType(gin.ErrorTypeBind)
		return
	}
	params, err := reserveParams(&req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	if err := middleware.AuthorizeOwner(c, params.PatientID); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	if p, ok := middleware.CurrentPrincipal(c); ok && p.Role == auth.RolePatient {
		params.PaymentCaptured = false
	}

	b, err := h.service.Reserve(c.Request.Context(), params)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusCreated, b)
}

func (h *Handler) GetBooking(c *gin.Context) {
	b, ok := h.ownedBooking(c)
	if !ok {
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, b)
}

// ListBookings filters by doctor_id, patient_id, date and status. Doctors and
// patients only ever see their own bookings.
func (h *Handler) ListBookings(c *gin.Context) {
	filters := &model.BookingFilters{Status: model.BookingStatus(c.Query("status"))}

	var err error
	if filters.DoctorID, err = handler.OptionalUUIDQuery(c, "doctor_id"); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	if filters.PatientID, err = handler.OptionalUUIDQuery(c, "patient_id"); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	date, err := handler.OptionalDateQuery(c, "date")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	if !date.IsZero() {
		filters.Date = &date
	}

	if p, ok := middleware.CurrentPrincipal(c); ok {
		switch p.Role {
		case auth.RoleDoctor:
			filters.DoctorID = p.ID
		case auth.RolePatient:
			filters.PatientID = p.ID
		}
	}

	bookings, err := h.service.ListBookings(c.Request.Context(), filters)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, bookings)
}

func (h *Handler) Cancel(c *gin.Context) {
	var req model.CancelRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		_ = c.Error(err).SetType(gin.ErrorTypeBind)
		return
	}
	b, ok := h.ownedBooking(c)
	if !ok {
		return
	}

	cancelled, err := h.service.Cancel(c.Request.Context(), b.ID, req.Reason)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, cancelled)
}

func (h *Handler) Confirm(c *gin.Context) {
	id, err := handler.UUIDParam(c, "id")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	b, err := h.service.Confirm(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, b)
}

func (h *Handler) Complete(c *gin.Context) {
	id, err := handler.UUIDParam(c, "id")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	b, err := h.service.Complete(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, b)
}

// ownedBooking loads :id and checks the caller is its patient or doctor.
func (h *Handler) ownedBooking(c *gin.Context) (*model.Booking, bool) {
	id, err := handler.UUIDParam(c, "id")
	if err != nil {
		httputil.RespondWithError(c, err)
		return nil, false
	}
	b, err := h.service.GetBooking(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return nil, false
	}
	if err := middleware.AuthorizeOwner(c, b.PatientID, b.DoctorID); err != nil {
		httputil.RespondWithError(c, err)
		return nil, false
	}
	return b, true
}

func reserveParams(req *model.ReserveRequest) (booking.ReserveParams, error) {
	var params booking.ReserveParams
	var err error

	if params.DoctorID, err = parseUUID("doctor_id", req.DoctorID); err != nil {
		return params, err
	}
	if params.PatientID, err = parseUUID("patient_id", req.PatientID); err != nil {
		return params, err
	}
	if params.Date, err = handler.ParseDate("date", req.Date); err != nil {
		return params, err
	}
	from, err := timerange.ParseClock(req.From)
	if err != nil {
		return params, apperrors.BadRequest("invalid from, expected HH:MM", err)
	}
	to, err := timerange.ParseClock(req.To)
	if err != nil {
		return params, apperrors.BadRequest("invalid to, expected HH:MM", err)
	}
	params.Slot = timerange.Range{Start: from, End: to}
	params.PaymentCaptured = req.PaymentCaptured
	return params, nil
}
