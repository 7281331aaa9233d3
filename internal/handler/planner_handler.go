package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-adp-allotment/internal/dto"
	"github.com/noah-isme/sma-adp-allotment/internal/models"
	"github.com/noah-isme/sma-adp-allotment/pkg/response"
)

type plannerService interface {
	AllocateTeacher(ctx context.Context, req dto.TeacherAllocationRequest) (*models.Booking, error)
	SchedulePTM(ctx context.Context, req dto.PTMRequest) (*models.Booking, error)
	PlanActivity(ctx context.Context, req dto.ActivityRequest) (*dto.ActivityPlanResponse, error)
}

// PlannerHandler serves the teacher allocation, PTM and activity planner forms.
type PlannerHandler struct {
	service plannerService
}

// NewPlannerHandler constructs handler.
func NewPlannerHandler(svc plannerService) *PlannerHandler {
	return &PlannerHandler{service: svc}
}

// AllocateTeacher godoc
// @Summary Allocate a teacher to a class session
// @Tags Planner
// @Accept json
// @Produce json
// @Param payload body dto.TeacherAllocationRequest true "Class session"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /planner/teacher-allocations [post]
func (h *PlannerHandler) AllocateTeacher(c *gin.Context) {
	var req dto.TeacherAllocationRequest
	if !bindJSON(c, &req) {
		return
	}
	booking, err := h.service.AllocateTeacher(c.Request.Context(), req)
	if err != nil {
		allotmentError(c, err)
		return
	}
	response.Created(c, booking)
}

// SchedulePTM godoc
// @Summary Schedule a parent-teacher meeting
// @Tags Planner
// @Accept json
// @Produce json
// @Param payload body dto.PTMRequest true "Meeting"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /planner/ptms [post]
func (h *PlannerHandler) SchedulePTM(c *gin.Context) {
	var req dto.PTMRequest
	if !bindJSON(c, &req) {
		return
	}
	booking, err := h.service.SchedulePTM(c.Request.Context(), req)
	if err != nil {
		allotmentError(c, err)
		return
	}
	response.Created(c, booking)
}

// PlanActivity godoc
// @Summary Plan a single or multi-day activity
// @Description All days are booked or none are.
// @Tags Planner
// @Accept json
// @Produce json
// @Param payload body dto.ActivityRequest true "Activity"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /planner/activities [post]
func (h *PlannerHandler) PlanActivity(c *gin.Context) {
	var req dto.ActivityRequest
	if !bindJSON(c, &req) {
		return
	}
	plan, err := h.service.PlanActivity(c.Request.Context(), req)
	if err != nil {
		allotmentError(c, err)
		return
	}
	response.Created(c, plan)
}
