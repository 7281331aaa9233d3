package repository

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/sma-adp-allotment/internal/models"
	appErrors "github.com/noah-isme/sma-adp-allotment/pkg/errors"
)

// ledgerBucket is an immutable view of one resource's confirmed bookings. Writers publish a
// fresh bucket instead of mutating, so readers holding an old pointer keep a consistent snapshot.
type ledgerBucket struct {
	version int64
	byDate  map[models.Date][]models.Booking
}

type resourceSlot struct {
	mu     sync.Mutex
	bucket atomic.Pointer[ledgerBucket]
}

// MemoryLedgerRepository is the in-process allotment ledger. Writes serialise per resource;
// reads load the published bucket without taking the resource lock.
type MemoryLedgerRepository struct {
	slotsMu sync.RWMutex
	slots   map[string]*resourceSlot

	indexMu  sync.RWMutex
	bookings map[string]models.Booking

	now   func() time.Time
	newID func() string
}

// NewMemoryLedgerRepository builds an empty ledger.
func NewMemoryLedgerRepository() *MemoryLedgerRepository {
	return &MemoryLedgerRepository{
		slots:    make(map[string]*resourceSlot),
		bookings: make(map[string]models.Booking),
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
}

func (r *MemoryLedgerRepository) slot(resourceID string) *resourceSlot {
	r.slotsMu.RLock()
	s, ok := r.slots[resourceID]
	r.slotsMu.RUnlock()
	if ok {
		return s
	}

	r.slotsMu.Lock()
	defer r.slotsMu.Unlock()
	if s, ok = r.slots[resourceID]; ok {
		return s
	}
	s = &resourceSlot{}
	s.bucket.Store(&ledgerBucket{byDate: map[models.Date][]models.Booking{}})
	r.slots[resourceID] = s
	return s
}

// lockResources acquires resource locks in sorted order so multi-resource writers never deadlock.
func (r *MemoryLedgerRepository) lockResources(ids []string) (map[string]*resourceSlot, func()) {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)

	held := make(map[string]*resourceSlot, len(sorted))
	order := make([]*resourceSlot, 0, len(sorted))
	for _, id := range sorted {
		if _, dup := held[id]; dup {
			continue
		}
		s := r.slot(id)
		s.mu.Lock()
		held[id] = s
		order = append(order, s)
	}
	return held, func() {
		for i := len(order) - 1; i >= 0; i-- {
			order[i].mu.Unlock()
		}
	}
}

// BookingsFor returns the confirmed bookings of a resource on a day, sorted by start minute.
func (r *MemoryLedgerRepository) BookingsFor(ctx context.Context, resourceID string, date models.Date) (*models.LedgerSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b := r.slot(resourceID).bucket.Load()
	day := b.byDate[date]
	out := make([]models.Booking, len(day))
	for i := range day {
		out[i] = day[i].Clone()
	}
	return &models.LedgerSnapshot{ResourceID: resourceID, Date: date, Version: b.version, Bookings: out}, nil
}

// Range returns confirmed bookings of a resource between two days inclusive.
func (r *MemoryLedgerRepository) Range(ctx context.Context, resourceID string, dates models.DateRange) ([]models.Booking, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b := r.slot(resourceID).bucket.Load()
	out := make([]models.Booking, 0)
	for date, day := range b.byDate {
		if !dates.Contains(date) {
			continue
		}
		for i := range day {
			out = append(out, day[i].Clone())
		}
	}
	models.SortBookings(out)
	return out, nil
}

// Version reports the resource's ledger version. It moves on every commit or cancel touching the resource.
func (r *MemoryLedgerRepository) Version(ctx context.Context, resourceID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return r.slot(resourceID).bucket.Load().version, nil
}

// Find loads a booking in any status.
func (r *MemoryLedgerRepository) Find(ctx context.Context, bookingID string) (*models.Booking, error) {
	r.indexMu.RLock()
	defer r.indexMu.RUnlock()
	b, ok := r.bookings[bookingID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := b.Clone()
	return &cp, nil
}

// Commit confirms a booking. When a resource's version moved past the caller's snapshot the bucket
// is rescanned and an overlapping newcomer yields ErrLedgerWriteConflict.
func (r *MemoryLedgerRepository) Commit(ctx context.Context, booking models.Booking, expected map[string]int64) (*models.Booking, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ids := booking.ResourceIDs()
	held, unlock := r.lockResources(ids)
	defer unlock()

	if err := r.verify(held, booking.Interval, expected, nil); err != nil {
		return nil, err
	}

	confirmed := r.stamp(booking)
	r.publishInsert(held, confirmed)

	r.indexMu.Lock()
	r.bookings[confirmed.ID] = confirmed.Clone()
	r.indexMu.Unlock()

	return &confirmed, nil
}

// Cancel marks a booking cancelled and frees its slot. Cancelling twice is a no-op.
func (r *MemoryLedgerRepository) Cancel(ctx context.Context, bookingID string) (*models.Booking, error) {
	current, err := r.Find(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	held, unlock := r.lockResources(current.ResourceIDs())
	defer unlock()

	// re-read under the resource locks; a concurrent cancel or replace may have won
	r.indexMu.RLock()
	latest := r.bookings[bookingID]
	r.indexMu.RUnlock()
	if latest.Status == models.BookingCancelled {
		cp := latest.Clone()
		return &cp, nil
	}

	cancelled := r.retire(held, latest)
	return &cancelled, nil
}

// Replace atomically cancels oldID and confirms the replacement. On any error the old booking is untouched.
func (r *MemoryLedgerRepository) Replace(ctx context.Context, oldID string, replacement models.Booking, expected map[string]int64) (*models.Booking, *models.Booking, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	old, err := r.Find(ctx, oldID)
	if err != nil {
		return nil, nil, err
	}
	ids := append(old.ResourceIDs(), replacement.ResourceIDs()...)
	held, unlock := r.lockResources(ids)
	defer unlock()

	r.indexMu.RLock()
	latest := r.bookings[oldID]
	r.indexMu.RUnlock()
	if latest.Status != models.BookingConfirmed {
		return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "booking is no longer active")
	}

	newHeld := make(map[string]*resourceSlot)
	for _, id := range replacement.ResourceIDs() {
		newHeld[id] = held[id]
	}
	if err := r.verify(newHeld, replacement.Interval, expected, map[string]struct{}{oldID: {}}); err != nil {
		return nil, nil, err
	}

	cancelled := r.retire(held, latest)
	confirmed := r.stamp(replacement)
	r.publishInsert(newHeld, confirmed)

	r.indexMu.Lock()
	r.bookings[confirmed.ID] = confirmed.Clone()
	r.indexMu.Unlock()

	return &confirmed, &cancelled, nil
}

func (r *MemoryLedgerRepository) verify(held map[string]*resourceSlot, interval models.TimeInterval, expected map[string]int64, ignore map[string]struct{}) error {
	for id, s := range held {
		b := s.bucket.Load()
		if v, ok := expected[id]; ok && v == b.version {
			continue
		}
		for _, existing := range b.byDate[interval.Date] {
			if _, skip := ignore[existing.ID]; skip {
				continue
			}
			if models.Overlaps(existing.Interval, interval) {
				return appErrors.ErrLedgerWriteConflict
			}
		}
	}
	return nil
}

func (r *MemoryLedgerRepository) stamp(booking models.Booking) models.Booking {
	confirmed := booking.Clone()
	if confirmed.ID == "" {
		confirmed.ID = r.newID()
	}
	now := r.now()
	if confirmed.CreatedAt.IsZero() {
		confirmed.CreatedAt = now
	}
	confirmed.LastModifiedAt = now
	confirmed.Status = models.BookingConfirmed
	return confirmed
}

// publishInsert must run with every slot in held locked.
func (r *MemoryLedgerRepository) publishInsert(held map[string]*resourceSlot, booking models.Booking) {
	for _, s := range held {
		prev := s.bucket.Load()
		next := &ledgerBucket{version: prev.version + 1, byDate: copyDays(prev.byDate)}
		day := append(append([]models.Booking(nil), prev.byDate[booking.Interval.Date]...), booking.Clone())
		models.SortBookings(day)
		next.byDate[booking.Interval.Date] = day
		s.bucket.Store(next)
	}
}

// retire removes a booking from the buckets it occupies and marks it cancelled in the index.
func (r *MemoryLedgerRepository) retire(held map[string]*resourceSlot, booking models.Booking) models.Booking {
	for _, id := range booking.ResourceIDs() {
		s := held[id]
		prev := s.bucket.Load()
		next := &ledgerBucket{version: prev.version + 1, byDate: copyDays(prev.byDate)}
		day := make([]models.Booking, 0, len(prev.byDate[booking.Interval.Date]))
		for _, existing := range prev.byDate[booking.Interval.Date] {
			if existing.ID != booking.ID {
				day = append(day, existing)
			}
		}
		if len(day) == 0 {
			delete(next.byDate, booking.Interval.Date)
		} else {
			next.byDate[booking.Interval.Date] = day
		}
		s.bucket.Store(next)
	}

	cancelled := booking.Clone()
	cancelled.Status = models.BookingCancelled
	cancelled.LastModifiedAt = r.now()

	r.indexMu.Lock()
	r.bookings[cancelled.ID] = cancelled.Clone()
	r.indexMu.Unlock()
	return cancelled
}

func copyDays(src map[models.Date][]models.Booking) map[models.Date][]models.Booking {
	dst := make(map[models.Date][]models.Booking, len(src)+1)
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
