package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-adp-allotment/internal/dto"
	"github.com/noah-isme/sma-adp-allotment/internal/models"
	"github.com/noah-isme/sma-adp-allotment/pkg/logger"
	"github.com/noah-isme/sma-adp-allotment/pkg/response"
)

type allotmentService interface {
	Request(ctx context.Context, req dto.AllotmentRequest) (*models.Booking, error)
	GetAllotment(ctx context.Context, bookingID string) (*models.Booking, error)
	CancelAllotment(ctx context.Context, bookingID string) (*models.Booking, error)
	Reschedule(ctx context.Context, bookingID string, req dto.RescheduleRequest) (*models.Booking, error)
}

// AllotmentHandler exposes booking request, cancel and reschedule.
type AllotmentHandler struct {
	service allotmentService
}

// NewAllotmentHandler constructs handler.
func NewAllotmentHandler(svc allotmentService) *AllotmentHandler {
	return &AllotmentHandler{service: svc}
}

// Create godoc
// @Summary Request an allotment
// @Description Books every listed resource for the interval. The first id is the primary resource.
// @Tags Allotments
// @Accept json
// @Produce json
// @Param payload body dto.AllotmentRequest true "Allotment request"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope "ALLOTMENT_CONFLICT or RACE_EXHAUSTED, data.conflicts lists blocking bookings"
// @Failure 422 {object} response.Envelope "UNKNOWN_RESOURCE"
// @Router /allotments [post]
func (h *AllotmentHandler) Create(c *gin.Context) {
	var req dto.AllotmentRequest
	if !bindJSON(c, &req) {
		return
	}
	booking, err := h.service.Request(c.Request.Context(), req)
	if err != nil {
		allotmentError(c, err)
		return
	}
	logger.FromContext(c).Info("allotment created", zap.String("booking_id", booking.ID), zap.String("actor", actorID(c)))
	response.Created(c, booking)
}

// Get godoc
// @Summary Get allotment
// @Tags Allotments
// @Produce json
// @Param id path string true "Booking ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /allotments/{id} [get]
func (h *AllotmentHandler) Get(c *gin.Context) {
	booking, err := h.service.GetAllotment(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, booking, nil)
}

// Cancel godoc
// @Summary Cancel allotment
// @Description Idempotent; the slot is free once this returns.
// @Tags Allotments
// @Param id path string true "Booking ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /allotments/{id} [delete]
func (h *AllotmentHandler) Cancel(c *gin.Context) {
	if _, err := h.service.CancelAllotment(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Reschedule godoc
// @Summary Reschedule allotment
// @Description Moves the booking keeping resources and purpose. On failure the original booking is unchanged.
// @Tags Allotments
// @Accept json
// @Produce json
// @Param id path string true "Booking ID"
// @Param payload body dto.RescheduleRequest true "New interval"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /allotments/{id}/reschedule [put]
func (h *AllotmentHandler) Reschedule(c *gin.Context) {
	var req dto.RescheduleRequest
	if !bindJSON(c, &req) {
		return
	}
	booking, err := h.service.Reschedule(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		allotmentError(c, err)
		return
	}
	response.JSON(c, http.StatusOK, booking, nil, map[string]interface{}{"previous_booking_id": c.Param("id")})
}
