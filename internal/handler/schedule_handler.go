package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-adp-allotment/internal/dto"
	"github.com/noah-isme/sma-adp-allotment/internal/middleware"
	"github.com/noah-isme/sma-adp-allotment/internal/models"
	"github.com/noah-isme/sma-adp-allotment/internal/service"
	appErrors "github.com/noah-isme/sma-adp-allotment/pkg/errors"
	"github.com/noah-isme/sma-adp-allotment/pkg/response"
)

type scheduleViewService interface {
	ParseRange(q dto.ScheduleRangeQuery) (models.DateRange, error)
	ScheduleFor(ctx context.Context, resourceID string, dates models.DateRange) ([]models.Booking, error)
	DaySchedule(ctx context.Context, resourceID string, date models.Date) (*models.DaySchedule, error)
	WeekSchedule(ctx context.Context, resourceID string, date models.Date) (*models.WeekSchedule, error)
	Utilization(ctx context.Context, resourceID string, dates models.DateRange) (*models.Utilization, error)
	Export(ctx context.Context, resourceID string, dates models.DateRange, format string) (*service.ScheduleExport, error)
}

// ScheduleHandler serves read-only schedule projections.
type ScheduleHandler struct {
	service scheduleViewService
}

// NewScheduleHandler constructs handler.
func NewScheduleHandler(svc scheduleViewService) *ScheduleHandler {
	return &ScheduleHandler{service: svc}
}

func (h *ScheduleHandler) dateRange(c *gin.Context) (models.DateRange, bool) {
	dates, err := h.service.ParseRange(dto.ScheduleRangeQuery{From: c.Query("from"), To: c.Query("to")})
	if err != nil {
		response.Error(c, err)
		return models.DateRange{}, false
	}
	return dates, true
}

func singleDate(c *gin.Context) (models.Date, bool) {
	date, err := models.ParseDate(c.Query("date"))
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "date query parameter must be YYYY-MM-DD"))
		return models.Date{}, false
	}
	return date, true
}

// Schedule godoc
// @Summary Resource schedule over a date range
// @Tags Schedules
// @Produce json
// @Param id path string true "Resource ID"
// @Param from query string true "First day (YYYY-MM-DD)"
// @Param to query string false "Last day, inclusive"
// @Success 200 {object} response.Envelope
// @Router /resources/{id}/schedule [get]
func (h *ScheduleHandler) Schedule(c *gin.Context) {
	dates, ok := h.dateRange(c)
	if !ok {
		return
	}
	bookings, err := h.service.ScheduleFor(c.Request.Context(), c.Param("id"), dates)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetMeta(c, "days", dates.Days())
	response.JSON(c, http.StatusOK, bookings, nil, middleware.ExtractMeta(c))
}

// Day godoc
// @Summary Resource schedule for one day
// @Tags Schedules
// @Produce json
// @Param id path string true "Resource ID"
// @Param date query string true "Day (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /resources/{id}/schedule/day [get]
func (h *ScheduleHandler) Day(c *gin.Context) {
	date, ok := singleDate(c)
	if !ok {
		return
	}
	day, err := h.service.DaySchedule(c.Request.Context(), c.Param("id"), date)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, day, nil, middleware.ExtractMeta(c))
}

// Week godoc
// @Summary Resource schedule for the Monday-to-Sunday week containing a day
// @Tags Schedules
// @Produce json
// @Param id path string true "Resource ID"
// @Param date query string true "Any day in the week (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /resources/{id}/schedule/week [get]
func (h *ScheduleHandler) Week(c *gin.Context) {
	date, ok := singleDate(c)
	if !ok {
		return
	}
	week, err := h.service.WeekSchedule(c.Request.Context(), c.Param("id"), date)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, week, nil, middleware.ExtractMeta(c))
}

// Utilization godoc
// @Summary Booked versus available minutes
// @Tags Schedules
// @Produce json
// @Param id path string true "Resource ID"
// @Param from query string true "First day (YYYY-MM-DD)"
// @Param to query string false "Last day, inclusive"
// @Success 200 {object} response.Envelope
// @Router /resources/{id}/utilization [get]
func (h *ScheduleHandler) Utilization(c *gin.Context) {
	dates, ok := h.dateRange(c)
	if !ok {
		return
	}
	util, err := h.service.Utilization(c.Request.Context(), c.Param("id"), dates)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, util, nil, middleware.ExtractMeta(c))
}

// Export godoc
// @Summary Download a resource schedule
// @Tags Schedules
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Resource ID"
// @Param from query string true "First day (YYYY-MM-DD)"
// @Param to query string false "Last day, inclusive"
// @Param format query string false "csv (default) or pdf"
// @Success 200 {file} file
// @Router /resources/{id}/schedule/export [get]
func (h *ScheduleHandler) Export(c *gin.Context) {
	dates, ok := h.dateRange(c)
	if !ok {
		return
	}
	out, err := h.service.Export(c.Request.Context(), c.Param("id"), dates, c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, out.Filename, out.ContentType, out.Content)
}
