package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-adp-allotment/internal/dto"
	"github.com/noah-isme/sma-adp-allotment/internal/models"
	appErrors "github.com/noah-isme/sma-adp-allotment/pkg/errors"
)

// MaxActivityDays bounds how many days one activity request may span.
const MaxActivityDays = 31

type allotmentBooker interface {
	RequestAllotment(ctx context.Context, in AllotmentInput) (*models.Booking, error)
	CancelAllotment(ctx context.Context, bookingID string) (*models.Booking, error)
}

type kindResolver interface {
	Resolve(ctx context.Context, ids []string) (map[string]models.Resource, error)
}

// PlannerService maps teacher allocation, PTM scheduling and the activity planner onto allotments.
// Class sessions, meetings and activities share one conflict domain.
type PlannerService struct {
	allotments allotmentBooker
	registry   kindResolver
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewPlannerService constructs the planner.
func NewPlannerService(allotments allotmentBooker, registry kindResolver, validate *validator.Validate, logger *zap.Logger) *PlannerService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PlannerService{allotments: allotments, registry: registry, validator: validate, logger: logger}
}

// AllocateTeacher books a class session across teacher, room and class section.
func (s *PlannerService) AllocateTeacher(ctx context.Context, req dto.TeacherAllocationRequest) (*models.Booking, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid teacher allocation payload")
	}
	interval, err := req.Interval()
	if err != nil {
		return nil, appErrors.WrapAs(err, appErrors.ErrInvalidInterval, err.Error())
	}
	if err := s.expectKinds(ctx, map[string]models.ResourceKind{
		req.TeacherID:      models.ResourceTeacher,
		req.RoomID:         models.ResourceRoom,
		req.ClassSectionID: models.ResourceClassSection,
	}); err != nil {
		return nil, err
	}
	return s.allotments.RequestAllotment(ctx, AllotmentInput{
		ResourceIDs: []string{req.TeacherID, req.RoomID, req.ClassSectionID},
		Interval:    interval,
		Purpose:     req.Subject,
		Category:    models.CategoryClassSession,
	})
}

// SchedulePTM books the venue (and any listed teachers) for a parent-teacher meeting.
// Invitees travel on the booking; they are not bookable resources.
func (s *PlannerService) SchedulePTM(ctx context.Context, req dto.PTMRequest) (*models.Booking, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid PTM payload")
	}
	interval, err := req.Interval()
	if err != nil {
		return nil, appErrors.WrapAs(err, appErrors.ErrInvalidInterval, err.Error())
	}
	kinds := map[string]models.ResourceKind{req.VenueID: models.ResourceRoom}
	for _, id := range req.TeacherIDs {
		kinds[id] = models.ResourceTeacher
	}
	if err := s.expectKinds(ctx, kinds); err != nil {
		return nil, err
	}
	return s.allotments.RequestAllotment(ctx, AllotmentInput{
		ResourceIDs: append([]string{req.VenueID}, req.TeacherIDs...),
		Interval:    interval,
		Purpose:     req.Title,
		Category:    models.CategoryPTM,
		Attendees:   req.Invitees,
	})
}

// PlanActivity books the venue and class sections on every day of the activity. Either every day
// is booked or none: when a day is rejected, days already confirmed are cancelled again.
func (s *PlannerService) PlanActivity(ctx context.Context, req dto.ActivityRequest) (*dto.ActivityPlanResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid activity payload")
	}
	intervals, err := req.Intervals(MaxActivityDays)
	if err != nil {
		return nil, appErrors.WrapAs(err, appErrors.ErrInvalidInterval, err.Error())
	}
	kinds := map[string]models.ResourceKind{req.VenueID: models.ResourceRoom}
	for _, id := range req.ClassSectionIDs {
		kinds[id] = models.ResourceClassSection
	}
	if err := s.expectKinds(ctx, kinds); err != nil {
		return nil, err
	}

	resourceIDs := append([]string{req.VenueID}, req.ClassSectionIDs...)
	booked := make([]models.Booking, 0, len(intervals))
	for _, interval := range intervals {
		booking, err := s.allotments.RequestAllotment(ctx, AllotmentInput{
			ResourceIDs: resourceIDs,
			Interval:    interval,
			Purpose:     req.Title,
			Category:    models.CategoryActivity,
		})
		if err != nil {
			if rollbackErr := s.rollback(ctx, booked); rollbackErr != nil {
				s.logger.Error("activity rollback incomplete", zap.String("title", req.Title), zap.Error(rollbackErr))
			}
			return nil, err
		}
		booked = append(booked, *booking)
	}
	return &dto.ActivityPlanResponse{Title: req.Title, Bookings: booked}, nil
}

func (s *PlannerService) rollback(ctx context.Context, booked []models.Booking) error {
	var result *multierror.Error
	for i := len(booked) - 1; i >= 0; i-- {
		if _, err := s.allotments.CancelAllotment(ctx, booked[i].ID); err != nil {
			result = multierror.Append(result, fmt.Errorf("cancel %s: %w", booked[i].ID, err))
		}
	}
	return result.ErrorOrNil()
}

// expectKinds checks every id is registered with the kind its role in the request needs.
func (s *PlannerService) expectKinds(ctx context.Context, expected map[string]models.ResourceKind) error {
	ids := make([]string, 0, len(expected))
	for id := range expected {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	resources, err := s.registry.Resolve(ctx, ids)
	if err != nil {
		return err
	}
	for _, id := range ids {
		kind := expected[id]
		if got := resources[id].Kind; got != kind {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("resource %s is a %s, expected %s", id, got, kind))
		}
	}
	return nil
}
