package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-adp-allotment/internal/dto"
	"github.com/noah-isme/sma-adp-allotment/internal/models"
	appErrors "github.com/noah-isme/sma-adp-allotment/pkg/errors"
)

type plannerServiceMock struct {
	booking      *models.Booking
	plan         *dto.ActivityPlanResponse
	err          error
	lastPTM      dto.PTMRequest
	lastActivity dto.ActivityRequest
}

func (m *plannerServiceMock) AllocateTeacher(ctx context.Context, req dto.TeacherAllocationRequest) (*models.Booking, error) {
	return m.booking, m.err
}

func (m *plannerServiceMock) SchedulePTM(ctx context.Context, req dto.PTMRequest) (*models.Booking, error) {
	m.lastPTM = req
	return m.booking, m.err
}

func (m *plannerServiceMock) PlanActivity(ctx context.Context, req dto.ActivityRequest) (*dto.ActivityPlanResponse, error) {
	m.lastActivity = req
	return m.plan, m.err
}

func TestPlannerHandlerSchedulePTM(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &plannerServiceMock{booking: sampleBooking("ptm-1")}
	handler := NewPlannerHandler(mockSvc)

	payload, _ := json.Marshal(dto.PTMRequest{
		VenueID: "HALL", TeacherIDs: []string{"T1"}, Date: "2024-07-05",
		Start: "13:00", End: "14:00", Title: "Term 1 PTM", Invitees: []string{"parent-1"},
	})
	c, w := newGinContext(http.MethodPost, "/planner/ptms", payload)
	handler.SchedulePTM(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, []string{"parent-1"}, mockSvc.lastPTM.Invitees)
}

func TestPlannerHandlerPlanActivityConflict(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rejection := &models.AllotmentRejection{
		Reason:    models.RejectionConflict,
		Message:   "HALL already booked",
		Conflicts: []models.Booking{*sampleBooking("b-hall")},
	}
	mockSvc := &plannerServiceMock{err: appErrors.WrapAs(rejection, appErrors.ErrAllotmentConflict, rejection.Message)}
	handler := NewPlannerHandler(mockSvc)

	payload, _ := json.Marshal(dto.ActivityRequest{
		VenueID: "HALL", ClassSectionIDs: []string{"8A"}, StartDate: "2024-07-01", EndDate: "2024-07-03",
		Start: "08:00", End: "12:00", Title: "Science fair",
	})
	c, w := newGinContext(http.MethodPost, "/planner/activities", payload)
	handler.PlanActivity(c)

	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "2024-07-03", mockSvc.lastActivity.EndDate)
	var data struct {
		Conflicts []models.Booking `json:"conflicts"`
	}
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &data))
	require.Len(t, data.Conflicts, 1)
	assert.Equal(t, "b-hall", data.Conflicts[0].ID)
}

func TestPlannerHandlerAllocateInvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewPlannerHandler(&plannerServiceMock{})

	c, w := newGinContext(http.MethodPost, "/planner/teacher-allocations", []byte(`[1,2]`))
	handler.AllocateTeacher(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
