package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-adp-allotment/internal/dto"
	"github.com/noah-isme/sma-adp-allotment/internal/models"
	appErrors "github.com/noah-isme/sma-adp-allotment/pkg/errors"
)

func newPlannerFixture(t *testing.T) (*PlannerService, allotmentFixture) {
	t.Helper()
	f := newAllotmentFixture(t)
	_, err := f.registry.Register(context.Background(), dto.RegisterResourceRequest{ID: "HALL", Kind: "VENUE", DisplayName: "Main Hall"})
	require.NoError(t, err)
	_, err = f.registry.Register(context.Background(), dto.RegisterResourceRequest{ID: "8B", Kind: "CLASS_SECTION", DisplayName: "Class 8B"})
	require.NoError(t, err)
	return NewPlannerService(f.svc, f.registry, nil, zap.NewNop()), f
}

func TestPlannerAllocateTeacher(t *testing.T) {
	planner, _ := newPlannerFixture(t)
	ctx := context.Background()

	booking, err := planner.AllocateTeacher(ctx, dto.TeacherAllocationRequest{
		TeacherID: "T1", RoomID: "R1", ClassSectionID: "8A",
		Date: "2024-07-01", Start: "10:00", End: "11:00", Subject: "Math",
	})
	require.NoError(t, err)
	assert.Equal(t, models.CategoryClassSession, booking.Category)
	assert.Equal(t, []string{"T1", "R1", "8A"}, booking.ResourceIDs())

	_, err = planner.AllocateTeacher(ctx, dto.TeacherAllocationRequest{
		TeacherID: "R1", RoomID: "T1", ClassSectionID: "8A",
		Date: "2024-07-01", Start: "12:00", End: "13:00", Subject: "Swapped",
	})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = planner.AllocateTeacher(ctx, dto.TeacherAllocationRequest{
		TeacherID: "T1", RoomID: "R1", ClassSectionID: "8A",
		Date: "2024-07-01", Start: "11:00", End: "10:00", Subject: "Backwards",
	})
	assert.True(t, errors.Is(err, appErrors.ErrInvalidInterval))
}

func TestPlannerPTMSharesConflictDomainWithClasses(t *testing.T) {
	planner, _ := newPlannerFixture(t)
	ctx := context.Background()

	_, err := planner.AllocateTeacher(ctx, dto.TeacherAllocationRequest{
		TeacherID: "T1", RoomID: "R1", ClassSectionID: "8A",
		Date: "2024-07-01", Start: "10:00", End: "11:00", Subject: "Math",
	})
	require.NoError(t, err)

	_, err = planner.SchedulePTM(ctx, dto.PTMRequest{
		VenueID: "HALL", TeacherIDs: []string{"T1"},
		Date: "2024-07-01", Start: "10:30", End: "11:30", Title: "Term 1 PTM",
	})
	assert.True(t, errors.Is(err, appErrors.ErrAllotmentConflict))

	ptm, err := planner.SchedulePTM(ctx, dto.PTMRequest{
		VenueID: "HALL", TeacherIDs: []string{"T2"},
		Date: "2024-07-01", Start: "10:30", End: "11:30", Title: "Term 1 PTM",
		Invitees: []string{"parent-7", "parent-9"},
	})
	require.NoError(t, err)
	assert.Equal(t, models.CategoryPTM, ptm.Category)
	assert.Equal(t, []string{"parent-7", "parent-9"}, ptm.Attendees)
}

func TestPlannerActivityIsAllOrNothing(t *testing.T) {
	planner, f := newPlannerFixture(t)
	ctx := context.Background()

	// blocks the third day of the activity
	blocker := at(480, 540)
	blocker.Date = schoolDay.AddDays(2)
	_, err := f.svc.RequestAllotment(ctx, AllotmentInput{ResourceIDs: []string{"8B"}, Interval: blocker, Purpose: "Exam"})
	require.NoError(t, err)

	_, err = planner.PlanActivity(ctx, dto.ActivityRequest{
		VenueID: "HALL", ClassSectionIDs: []string{"8A", "8B"},
		StartDate: "2024-07-01", EndDate: "2024-07-03", Start: "08:00", End: "12:00", Title: "Sports week",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrAllotmentConflict))

	for i := 0; i < 2; i++ {
		snap, err := f.ledger.BookingsFor(ctx, "HALL", schoolDay.AddDays(i))
		require.NoError(t, err)
		assert.Empty(t, snap.Bookings, "day %d rolled back", i)
	}

	plan, err := planner.PlanActivity(ctx, dto.ActivityRequest{
		VenueID: "HALL", ClassSectionIDs: []string{"8A"},
		StartDate: "2024-07-05", EndDate: "2024-07-08", Start: "08:00", End: "12:00", Title: "Camp",
		SkipWeekends: true,
	})
	require.NoError(t, err)
	require.Len(t, plan.Bookings, 2, "friday and monday only")
	for _, b := range plan.Bookings {
		assert.Equal(t, models.CategoryActivity, b.Category)
	}
}

func TestPlannerActivityRejectsLongSpans(t *testing.T) {
	planner, _ := newPlannerFixture(t)
	_, err := planner.PlanActivity(context.Background(), dto.ActivityRequest{
		VenueID: "HALL", StartDate: "2024-07-01", EndDate: "2024-09-01", Start: "08:00", End: "12:00", Title: "Too long",
	})
	assert.True(t, errors.Is(err, appErrors.ErrInvalidInterval))
}
