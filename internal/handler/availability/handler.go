package availability

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/booking-api/internal/handler"
	"github.com/jwalitptl/booking-api/internal/middleware"
	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/service/availability"
	"github.com/jwalitptl/booking-api/pkg/auth"
	"github.com/jwalitptl/booking-api/pkg/httputil"
)

type Handler struct {
	service availability.AvailabilityServicer
	auth    *middleware.AuthMiddleware
}

func NewHandler(service availability.AvailabilityServicer, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{service: service, auth: auth}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	doctors := r.Group("/doctors/:doctor_id")
	{
		doctors.GET("/rules", h.ListRules)
		doctors.GET("/exceptions", h.ListExceptions)
		doctors.GET("/availability/:date", h.GetEffectivePattern)
	}

	owner := doctors.Group("", h.auth.RequireRole(auth.RoleDoctor))
	{
		owner.POST("/rules", h.AddRule)
		owner.PUT("/rules/:day", h.EditRule)
		owner.DELETE("/rules/:day", h.DeleteRule)
		owner.POST("/exceptions", h.AddException)
		owner.DELETE("/exceptions/:date", h.DeleteException)
	}
}

// ownedDoctor parses the doctor id and checks the caller may manage it.
func (h *Handler) ownedDoctor(c *gin.Context) (uuid.UUID, bool) {
	doctorID, err := handler.UUIDParam(c, "doctor_id")
	if err != nil {
		httputil.RespondWithError(c, err)
		return uuid.Nil, false
	}
	if err := middleware.AuthorizeOwner(c, doctorID); err != nil {
		httputil.RespondWithError(c, err)
		return uuid.Nil, false
	}
	return doctorID, true
}

func (h *Handler) AddRule(c *gin.Context) {
	doctorID, ok := h.ownedDoctor(c)
	if !ok {
		return
	}

	var req model.RuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err).SetType(gin.ErrorTypeBind)
		return
	}
	rule, err := ruleFromRequest(doctorID, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	if err := h.service.AddRule(c.Request.Context(), rule); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusCreated, rule)
}

// EditRule replaces the rule stored for :day with the body, which may move it
// to another day.
func (h *Handler) EditRule(c *gin.Context) {
	doctorID, ok := h.ownedDoctor(c)
	if !ok {
		return
	}
	oldDay, err := handler.ParseWeekday(c.Param("day"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	var req model.RuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err).SetType(gin.ErrorTypeBind)
		return
	}
	rule, err := ruleFromRequest(doctorID, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	if err := h.service.EditRule(c.Request.Context(), doctorID, oldDay, rule); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, rule)
}

func (h *Handler) DeleteRule(c *gin.Context) {
	doctorID, ok := h.ownedDoctor(c)
	if !ok {
		return
	}
	day, err := handler.ParseWeekday(c.Param("day"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	if err := h.service.DeleteRule(c.Request.Context(), doctorID, day); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) ListRules(c *gin.Context) {
	doctorID, err := handler.UUIDParam(c, "doctor_id")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	rules, err := h.service.ListRules(c.Request.Context(), doctorID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, rules)
}

func (h *Handler) AddException(c *gin.Context) {
	doctorID, ok := h.ownedDoctor(c)
	if !ok {
		return
	}

	var req model.ExceptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err).SetType(gin.ErrorTypeBind)
		return
	}
	exc, err := exceptionFromRequest(doctorID, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	if err := h.service.AddException(c.Request.Context(), exc); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusCreated, exc)
}

func (h *Handler) DeleteException(c *gin.Context) {
	doctorID, ok := h.ownedDoctor(c)
	if !ok {
		return
	}
	date, err := handler.ParseDate("date", c.Param("date"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	if err := h.service.DeleteException(c.Request.Context(), doctorID, date); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListExceptions accepts optional from and to query dates.
func (h *Handler) ListExceptions(c *gin.Context) {
	doctorID, err := handler.UUIDParam(c, "doctor_id")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	from, err := handler.OptionalDateQuery(c, "from")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	to, err := handler.OptionalDateQuery(c, "to")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	exceptions, err := h.service.ListExceptions(c.Request.Context(), doctorID, from, to)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, exceptions)
}

func (h *Handler) GetEffectivePattern(c *gin.Context) {
	doctorID, err := handler.UUIDParam(c, "doctor_id")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	date, err := handler.ParseDate("date", c.Param("date"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	pattern, err := h.service.EffectivePattern(c.Request.Context(), doctorID, date)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, pattern)
}

func ruleFromRequest(doctorID uuid.UUID, req *model.RuleRequest) (*model.AvailabilityRule, error) {
	window, err := parseWindow(req.StartTime, req.EndTime)
	if err != nil {
		return nil, err
	}
	return &model.AvailabilityRule{
		DoctorID:            doctorID,
		DayOfWeek:           time.Weekday(*req.DayOfWeek),
		StartTime:           window.Start,
		EndTime:             window.End,
		SlotDurationMinutes: req.SlotDurationMinutes,
	}, nil
}

func exceptionFromRequest(doctorID uuid.UUID, req *model.ExceptionRequest) (*model.AvailabilityException, error) {
	date, err := handler.ParseDate("date", req.Date)
	if err != nil {
		return nil, err
	}
	exc := &model.AvailabilityException{
		DoctorID:            doctorID,
		Date:                date,
		IsAvailable:         *req.IsAvailable,
		SlotDurationMinutes: req.SlotDurationMinutes,
	}
	if req.StartTime != nil {
		start, err := parseClock("start_time", *req.StartTime)
		if err != nil {
			return nil, err
		}
		exc.StartTime = &start
	}
	if req.EndTime != nil {
		end, err := parseClock("end_time", *req.EndTime)
		if err != nil {
			return nil, err
		}
		exc.EndTime = &end
	}
	return exc, nil
}
