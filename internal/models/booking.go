package models

import (
	"fmt"
	"sort"
	"time"
)

// BookingStatus tracks the booking lifecycle.
type BookingStatus string

const (
	BookingPending   BookingStatus = "PENDING"
	BookingConfirmed BookingStatus = "CONFIRMED"
	BookingCancelled BookingStatus = "CANCELLED"
)

// BookingCategory labels which product feature produced a booking. It never affects conflict decisions.
type BookingCategory string

const (
	CategoryGeneral      BookingCategory = "GENERAL"
	CategoryClassSession BookingCategory = "CLASS_SESSION"
	CategoryPTM          BookingCategory = "PTM"
	CategoryActivity     BookingCategory = "ACTIVITY"
)

// Booking is an allotment of one primary resource plus optional secondary resources to an interval.
type Booking struct {
	ID                   string          `json:"id"`
	ResourceID           string          `json:"resource_id"`
	SecondaryResourceIDs []string        `json:"secondary_resource_ids,omitempty"`
	Interval             TimeInterval    `json:"interval"`
	Purpose              string          `json:"purpose"`
	Category             BookingCategory `json:"category"`
	Attendees            []string        `json:"attendees,omitempty"`
	Status               BookingStatus   `json:"status"`
	CreatedAt            time.Time       `json:"created_at"`
	LastModifiedAt       time.Time       `json:"last_modified_at"`
}

// ResourceIDs returns the primary followed by secondary resources, without duplicates.
func (b Booking) ResourceIDs() []string {
	ids := make([]string, 0, 1+len(b.SecondaryResourceIDs))
	seen := make(map[string]struct{}, 1+len(b.SecondaryResourceIDs))
	for _, id := range append([]string{b.ResourceID}, b.SecondaryResourceIDs...) {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

// Involves reports whether the booking holds the resource.
func (b Booking) Involves(resourceID string) bool {
	for _, id := range b.ResourceIDs() {
		if id == resourceID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers never share slices with the ledger.
func (b Booking) Clone() Booking {
	cp := b
	if b.SecondaryResourceIDs != nil {
		cp.SecondaryResourceIDs = append([]string(nil), b.SecondaryResourceIDs...)
	}
	if b.Attendees != nil {
		cp.Attendees = append([]string(nil), b.Attendees...)
	}
	return cp
}

// SortBookings orders by date then start minute then id.
func SortBookings(items []Booking) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i].Interval, items[j].Interval
		if a.Date != b.Date {
			return a.Date.Before(b.Date)
		}
		if a.StartMinute != b.StartMinute {
			return a.StartMinute < b.StartMinute
		}
		return items[i].ID < items[j].ID
	})
}

// LedgerSnapshot is a consistent read of one resource's confirmed bookings on one day.
type LedgerSnapshot struct {
	ResourceID string    `json:"resource_id"`
	Date       Date      `json:"date"`
	Version    int64     `json:"version"`
	Bookings   []Booking `json:"bookings"`
}

// ConflictResult is the outcome of a conflict check. An empty Conflicts slice means no conflict.
// Versions records the per-resource ledger versions observed during the check.
type ConflictResult struct {
	Conflicts []Booking        `json:"conflicts,omitempty"`
	Versions  map[string]int64 `json:"-"`
}

// HasConflict reports whether any involved resource is already booked.
func (r ConflictResult) HasConflict() bool {
	return len(r.Conflicts) > 0
}

// RejectionReason enumerates why an allotment was not granted.
type RejectionReason string

const (
	RejectionConflict      RejectionReason = "CONFLICT"
	RejectionRaceExhausted RejectionReason = "RACE_EXHAUSTED"
)

// AllotmentRejection carries the details of a refused allotment for display.
type AllotmentRejection struct {
	Reason    RejectionReason `json:"reason"`
	Message   string          `json:"message"`
	Conflicts []Booking       `json:"conflicts,omitempty"`
}

// Error implements the error interface.
func (r *AllotmentRejection) Error() string {
	if r == nil {
		return "<nil>"
	}
	return r.Message
}

// UnknownResourcesError lists resource ids that are not registered.
type UnknownResourcesError struct {
	Missing []string `json:"missing"`
}

// Error implements the error interface.
func (e *UnknownResourcesError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("unknown resources: %v", e.Missing)
}

// Utilization summarises how much of a resource's working window is booked.
type Utilization struct {
	ResourceID            string    `json:"resource_id"`
	Range                 DateRange `json:"range"`
	BookedMinutes         int       `json:"booked_minutes"`
	TotalAvailableMinutes int       `json:"total_available_minutes"`
	Ratio                 float64   `json:"ratio"`
	BookingCount          int       `json:"booking_count"`
}

// DaySchedule groups bookings of one resource on one day.
type DaySchedule struct {
	Date     Date      `json:"date"`
	Weekday  string    `json:"weekday"`
	Bookings []Booking `json:"bookings"`
}

// WeekSchedule is a Monday-to-Sunday view of one resource.
type WeekSchedule struct {
	ResourceID string        `json:"resource_id"`
	WeekStart  Date          `json:"week_start"`
	Days       []DaySchedule `json:"days"`
}

// AllotmentEventType names lifecycle notifications.
type AllotmentEventType string

const (
	EventAllotmentConfirmed   AllotmentEventType = "allotment.confirmed"
	EventAllotmentCancelled   AllotmentEventType = "allotment.cancelled"
	EventAllotmentRescheduled AllotmentEventType = "allotment.rescheduled"
)

// AllotmentEvent is published after a ledger mutation.
type AllotmentEvent struct {
	Type       AllotmentEventType `json:"type"`
	Booking    Booking            `json:"booking"`
	Previous   *Booking           `json:"previous,omitempty"`
	OccurredAt time.Time          `json:"occurred_at"`
}
