package dto

import (
	"fmt"
	"time"

	"github.com/noah-isme/sma-adp-allotment/internal/models"
)

// RegisterResourceRequest registers a bookable teacher, room/venue or class section.
type RegisterResourceRequest struct {
	ID          string `json:"id" validate:"required,max=64"`
	Kind        string `json:"kind" validate:"required"`
	DisplayName string `json:"displayName" validate:"required,max=200"`
}

// RenameResourceRequest updates the only mutable resource field.
type RenameResourceRequest struct {
	DisplayName string `json:"displayName" validate:"required,max=200"`
}

// IntervalInput is the form representation of a time span: a date plus HH:MM bounds.
type IntervalInput struct {
	Date  string `json:"date" validate:"required"`
	Start string `json:"start" validate:"required"`
	End   string `json:"end" validate:"required"`
}

// ToInterval parses and validates the interval.
func (in IntervalInput) ToInterval() (models.TimeInterval, error) {
	date, err := models.ParseDate(in.Date)
	if err != nil {
		return models.TimeInterval{}, err
	}
	return in.onDate(date)
}

func (in IntervalInput) onDate(date models.Date) (models.TimeInterval, error) {
	start, err := models.ParseClock(in.Start)
	if err != nil {
		return models.TimeInterval{}, fmt.Errorf("start: %w", err)
	}
	end, err := models.ParseClock(in.End)
	if err != nil {
		return models.TimeInterval{}, fmt.Errorf("end: %w", err)
	}
	return models.NewTimeInterval(date, start, end)
}

// AllotmentRequest asks for a set of resources over one interval.
type AllotmentRequest struct {
	ResourceIDs []string      `json:"resourceIds" validate:"required,min=1,dive,required"`
	Interval    IntervalInput `json:"interval"`
	Purpose     string        `json:"purpose" validate:"required,max=200"`
	Category    string        `json:"category" validate:"omitempty,oneof=GENERAL CLASS_SESSION PTM ACTIVITY"`
	Attendees   []string      `json:"attendees" validate:"omitempty,dive,required"`
}

// RescheduleRequest moves a booking to a new interval keeping its resources and purpose.
type RescheduleRequest struct {
	Interval IntervalInput `json:"interval"`
}

// TeacherAllocationRequest books a class session for a teacher, a room and a class section.
type TeacherAllocationRequest struct {
	TeacherID      string `json:"teacherId" validate:"required"`
	RoomID         string `json:"roomId" validate:"required"`
	ClassSectionID string `json:"classSectionId" validate:"required"`
	Date           string `json:"date" validate:"required"`
	Start          string `json:"start" validate:"required"`
	End            string `json:"end" validate:"required"`
	Subject        string `json:"subject" validate:"required,max=200"`
}

// Interval converts the flat form fields into an interval.
func (r TeacherAllocationRequest) Interval() (models.TimeInterval, error) {
	return IntervalInput{Date: r.Date, Start: r.Start, End: r.End}.ToInterval()
}

// PTMRequest schedules a parent-teacher meeting in a venue.
type PTMRequest struct {
	VenueID    string   `json:"venueId" validate:"required"`
	TeacherIDs []string `json:"teacherIds" validate:"omitempty,dive,required"`
	Date       string   `json:"date" validate:"required"`
	Start      string   `json:"start" validate:"required"`
	End        string   `json:"end" validate:"required"`
	Title      string   `json:"title" validate:"required,max=200"`
	Invitees   []string `json:"invitees" validate:"omitempty,dive,required"`
}

// Interval converts the flat form fields into an interval.
func (r PTMRequest) Interval() (models.TimeInterval, error) {
	return IntervalInput{Date: r.Date, Start: r.Start, End: r.End}.ToInterval()
}

// ActivityRequest plans an activity over one or more consecutive days.
type ActivityRequest struct {
	VenueID         string   `json:"venueId" validate:"required"`
	ClassSectionIDs []string `json:"classSectionIds" validate:"omitempty,dive,required"`
	StartDate       string   `json:"startDate" validate:"required"`
	EndDate         string   `json:"endDate"`
	Start           string   `json:"start" validate:"required"`
	End             string   `json:"end" validate:"required"`
	Title           string   `json:"title" validate:"required,max=200"`
	SkipWeekends    bool     `json:"skipWeekends"`
}

// Intervals expands the request into one interval per planned day.
func (r ActivityRequest) Intervals(maxDays int) ([]models.TimeInterval, error) {
	from, err := models.ParseDate(r.StartDate)
	if err != nil {
		return nil, err
	}
	to := from
	if r.EndDate != "" {
		if to, err = models.ParseDate(r.EndDate); err != nil {
			return nil, err
		}
	}
	span := models.DateRange{From: from, To: to}
	if span.Days() == 0 {
		return nil, fmt.Errorf("end date %s is before start date %s", to, from)
	}
	if maxDays > 0 && span.Days() > maxDays {
		return nil, fmt.Errorf("activity spans %d days, at most %d allowed", span.Days(), maxDays)
	}

	slot := IntervalInput{Start: r.Start, End: r.End}
	out := make([]models.TimeInterval, 0, span.Days())
	for d := from; !to.Before(d); d = d.AddDays(1) {
		if r.SkipWeekends && isWeekend(d) {
			continue
		}
		interval, err := slot.onDate(d)
		if err != nil {
			return nil, err
		}
		out = append(out, interval)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("activity has no schedulable days")
	}
	return out, nil
}

func isWeekend(d models.Date) bool {
	wd := d.Weekday()
	return wd == time.Sunday || wd == time.Saturday
}

// ActivityPlanResponse lists the per-day bookings of a planned activity.
type ActivityPlanResponse struct {
	Title    string           `json:"title"`
	Bookings []models.Booking `json:"bookings"`
}

// ConflictResponse is the data payload returned alongside a rejection.
type ConflictResponse struct {
	Reason    string           `json:"reason"`
	Conflicts []models.Booking `json:"conflicts"`
}

// ScheduleRangeQuery selects an inclusive day range. An empty To means a single day.
type ScheduleRangeQuery struct {
	From string `form:"from" validate:"required"`
	To   string `form:"to"`
}

// Range parses the query into a date range.
func (q ScheduleRangeQuery) Range() (models.DateRange, error) {
	from, err := models.ParseDate(q.From)
	if err != nil {
		return models.DateRange{}, fmt.Errorf("from: %w", err)
	}
	to := from
	if q.To != "" {
		if to, err = models.ParseDate(q.To); err != nil {
			return models.DateRange{}, fmt.Errorf("to: %w", err)
		}
	}
	if to.Before(from) {
		return models.DateRange{}, fmt.Errorf("to %s is before from %s", to, from)
	}
	return models.DateRange{From: from, To: to}, nil
}
