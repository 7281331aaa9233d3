package service

import (
	"context"

	"github.com/noah-isme/sma-adp-allotment/internal/models"
)

type ledgerReader interface {
	BookingsFor(ctx context.Context, resourceID string, date models.Date) (*models.LedgerSnapshot, error)
}

// ConflictChecker scans the ledger for confirmed bookings overlapping a candidate on any of its
// resources. An earlier confirmed booking always blocks; there is no preemption by purpose.
type ConflictChecker struct {
	ledger ledgerReader
}

// NewConflictChecker constructs a checker over the ledger.
func NewConflictChecker(ledger ledgerReader) *ConflictChecker {
	return &ConflictChecker{ledger: ledger}
}

// Check returns every overlapping booking (deduplicated, sorted) plus the versions observed per resource.
// Bookings whose id is in ignore are skipped, which lets a reschedule overlap its own old slot.
func (c *ConflictChecker) Check(ctx context.Context, candidate models.Booking, ignore ...string) (*models.ConflictResult, error) {
	skip := make(map[string]struct{}, len(ignore))
	for _, id := range ignore {
		skip[id] = struct{}{}
	}

	result := &models.ConflictResult{Versions: make(map[string]int64)}
	seen := make(map[string]struct{})
	for _, resourceID := range candidate.ResourceIDs() {
		snapshot, err := c.ledger.BookingsFor(ctx, resourceID, candidate.Interval.Date)
		if err != nil {
			return nil, err
		}
		result.Versions[resourceID] = snapshot.Version
		for _, existing := range snapshot.Bookings {
			if _, ignored := skip[existing.ID]; ignored {
				continue
			}
			if _, dup := seen[existing.ID]; dup {
				continue
			}
			// bookings are sorted by start; nothing later can overlap
			if existing.Interval.StartMinute >= candidate.Interval.EndMinute {
				break
			}
			if models.Overlaps(existing.Interval, candidate.Interval) {
				seen[existing.ID] = struct{}{}
				result.Conflicts = append(result.Conflicts, existing)
			}
		}
	}
	models.SortBookings(result.Conflicts)
	return result, nil
}
