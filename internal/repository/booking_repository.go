package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-adp-allotment/internal/models"
	appErrors "github.com/noah-isme/sma-adp-allotment/pkg/errors"
)

const bookingColumns = `id, resource_id, secondary_resource_ids, booking_date, start_minute, end_minute, purpose, category, attendees, status, created_at, updated_at`

type bookingRow struct {
	ID                   string         `db:"id"`
	ResourceID           string         `db:"resource_id"`
	SecondaryResourceIDs pq.StringArray `db:"secondary_resource_ids"`
	BookingDate          time.Time      `db:"booking_date"`
	StartMinute          int            `db:"start_minute"`
	EndMinute            int            `db:"end_minute"`
	Purpose              string         `db:"purpose"`
	Category             string         `db:"category"`
	Attendees            pq.StringArray `db:"attendees"`
	Status               string         `db:"status"`
	CreatedAt            time.Time      `db:"created_at"`
	UpdatedAt            time.Time      `db:"updated_at"`
}

func newBookingRow(b models.Booking) bookingRow {
	return bookingRow{
		ID:                   b.ID,
		ResourceID:           b.ResourceID,
		SecondaryResourceIDs: pq.StringArray(nonNil(b.SecondaryResourceIDs)),
		BookingDate:          b.Interval.Date.Time(),
		StartMinute:          b.Interval.StartMinute,
		EndMinute:            b.Interval.EndMinute,
		Purpose:              b.Purpose,
		Category:             string(b.Category),
		Attendees:            pq.StringArray(nonNil(b.Attendees)),
		Status:               string(b.Status),
		CreatedAt:            b.CreatedAt,
		UpdatedAt:            b.LastModifiedAt,
	}
}

func (row bookingRow) toModel() models.Booking {
	b := models.Booking{
		ID:         row.ID,
		ResourceID: row.ResourceID,
		Interval: models.TimeInterval{
			Date:        models.DateOf(row.BookingDate.UTC()),
			StartMinute: row.StartMinute,
			EndMinute:   row.EndMinute,
		},
		Purpose:        row.Purpose,
		Category:       models.BookingCategory(row.Category),
		Status:         models.BookingStatus(row.Status),
		CreatedAt:      row.CreatedAt,
		LastModifiedAt: row.UpdatedAt,
	}
	if len(row.SecondaryResourceIDs) > 0 {
		b.SecondaryResourceIDs = []string(row.SecondaryResourceIDs)
	}
	if len(row.Attendees) > 0 {
		b.Attendees = []string(row.Attendees)
	}
	return b
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}

// BookingRepository is the PostgreSQL-backed allotment ledger. The resources.version column is the
// per-resource optimistic lock; writers take row locks on it so the no-overlap invariant holds
// across every API instance sharing the database.
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository creates a new booking ledger repository.
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// BookingsFor reads a resource's confirmed bookings for a day together with its version.
func (r *BookingRepository) BookingsFor(ctx context.Context, resourceID string, date models.Date) (*models.LedgerSnapshot, error) {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("begin ledger snapshot: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var version int64
	if err := tx.GetContext(ctx, &version, `SELECT version FROM resources WHERE id = $1`, resourceID); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("load resource version: %w", err)
		}
	}

	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE status = 'CONFIRMED' AND booking_date = $2 AND (resource_id = $1 OR $1 = ANY(secondary_resource_ids)) ORDER BY start_minute ASC, id ASC`
	var rows []bookingRow
	if err := tx.SelectContext(ctx, &rows, query, resourceID, date.Time()); err != nil {
		return nil, fmt.Errorf("list bookings for resource: %w", err)
	}

	snapshot := &models.LedgerSnapshot{ResourceID: resourceID, Date: date, Version: version, Bookings: make([]models.Booking, 0, len(rows))}
	for _, row := range rows {
		snapshot.Bookings = append(snapshot.Bookings, row.toModel())
	}
	return snapshot, nil
}

// Range returns confirmed bookings of a resource within the date range.
func (r *BookingRepository) Range(ctx context.Context, resourceID string, dates models.DateRange) ([]models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE status = 'CONFIRMED' AND booking_date BETWEEN $2 AND $3 AND (resource_id = $1 OR $1 = ANY(secondary_resource_ids)) ORDER BY booking_date ASC, start_minute ASC, id ASC`
	var rows []bookingRow
	if err := r.db.SelectContext(ctx, &rows, query, resourceID, dates.From.Time(), dates.To.Time()); err != nil {
		return nil, fmt.Errorf("range bookings: %w", err)
	}
	out := make([]models.Booking, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toModel())
	}
	return out, nil
}

// Version reads the resource's current version column. Unknown resources report 0.
func (r *BookingRepository) Version(ctx context.Context, resourceID string) (int64, error) {
	var version int64
	if err := r.db.GetContext(ctx, &version, `SELECT version FROM resources WHERE id = $1`, resourceID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("load resource version: %w", err)
	}
	return version, nil
}

// Find loads a booking in any status.
func (r *BookingRepository) Find(ctx context.Context, bookingID string) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	var row bookingRow
	if err := r.db.GetContext(ctx, &row, query, bookingID); err != nil {
		return nil, err
	}
	b := row.toModel()
	return &b, nil
}

// Commit confirms a booking inside a transaction holding row locks on every involved resource.
func (r *BookingRepository) Commit(ctx context.Context, booking models.Booking, expected map[string]int64) (result *models.Booking, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin commit booking: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	ids := booking.ResourceIDs()
	versions, err := lockResourceVersions(ctx, tx, ids)
	if err != nil {
		return nil, err
	}
	if err = verifyUnchanged(ctx, tx, ids, versions, expected, booking.Interval, nil); err != nil {
		return nil, err
	}

	confirmed := stampConfirmed(booking)
	if err = insertBooking(ctx, tx, confirmed); err != nil {
		return nil, err
	}
	if err = bumpVersions(ctx, tx, ids, confirmed.LastModifiedAt); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit booking: %w", err)
	}
	return &confirmed, nil
}

// Cancel marks a booking cancelled; a second call returns the cancelled booking unchanged.
func (r *BookingRepository) Cancel(ctx context.Context, bookingID string) (result *models.Booking, err error) {
	current, err := r.Find(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if current.Status == models.BookingCancelled {
		return current, nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin cancel booking: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	ids := current.ResourceIDs()
	if _, err = lockResourceVersions(ctx, tx, ids); err != nil {
		return nil, err
	}
	latest, err := lockBooking(ctx, tx, bookingID)
	if err != nil {
		return nil, err
	}
	if latest.Status == models.BookingCancelled {
		err = tx.Commit()
		return latest, err
	}

	now := time.Now().UTC()
	if err = markCancelled(ctx, tx, bookingID, now); err != nil {
		return nil, err
	}
	if err = bumpVersions(ctx, tx, ids, now); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit cancel booking: %w", err)
	}
	latest.Status = models.BookingCancelled
	latest.LastModifiedAt = now
	return latest, nil
}

// Replace cancels oldID and confirms replacement in one transaction.
func (r *BookingRepository) Replace(ctx context.Context, oldID string, replacement models.Booking, expected map[string]int64) (confirmedOut *models.Booking, cancelledOut *models.Booking, err error) {
	old, err := r.Find(ctx, oldID)
	if err != nil {
		return nil, nil, err
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin replace booking: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	newIDs := replacement.ResourceIDs()
	versions, err := lockResourceVersions(ctx, tx, append(old.ResourceIDs(), newIDs...))
	if err != nil {
		return nil, nil, err
	}
	latest, err := lockBooking(ctx, tx, oldID)
	if err != nil {
		return nil, nil, err
	}
	if latest.Status != models.BookingConfirmed {
		err = appErrors.Clone(appErrors.ErrNotFound, "booking is no longer active")
		return nil, nil, err
	}
	if err = verifyUnchanged(ctx, tx, newIDs, versions, expected, replacement.Interval, []string{oldID}); err != nil {
		return nil, nil, err
	}

	confirmed := stampConfirmed(replacement)
	if err = markCancelled(ctx, tx, oldID, confirmed.LastModifiedAt); err != nil {
		return nil, nil, err
	}
	if err = insertBooking(ctx, tx, confirmed); err != nil {
		return nil, nil, err
	}
	if err = bumpVersions(ctx, tx, append(old.ResourceIDs(), newIDs...), confirmed.LastModifiedAt); err != nil {
		return nil, nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit replace booking: %w", err)
	}
	latest.Status = models.BookingCancelled
	latest.LastModifiedAt = confirmed.LastModifiedAt
	return &confirmed, latest, nil
}

func stampConfirmed(b models.Booking) models.Booking {
	confirmed := b.Clone()
	if confirmed.ID == "" {
		confirmed.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if confirmed.CreatedAt.IsZero() {
		confirmed.CreatedAt = now
	}
	confirmed.LastModifiedAt = now
	confirmed.Status = models.BookingConfirmed
	return confirmed
}

type resourceVersion struct {
	ID      string `db:"id"`
	Version int64  `db:"version"`
}

// lockResourceVersions takes FOR UPDATE locks in id order, which keeps concurrent writers deadlock free.
func lockResourceVersions(ctx context.Context, tx *sqlx.Tx, ids []string) (map[string]int64, error) {
	unique := uniqueSorted(ids)
	var rows []resourceVersion
	if err := tx.SelectContext(ctx, &rows, `SELECT id, version FROM resources WHERE id = ANY($1) ORDER BY id FOR UPDATE`, pq.Array(unique)); err != nil {
		return nil, fmt.Errorf("lock resources: %w", err)
	}
	versions := make(map[string]int64, len(rows))
	for _, row := range rows {
		versions[row.ID] = row.Version
	}
	if len(versions) != len(unique) {
		missing := make([]string, 0)
		for _, id := range unique {
			if _, ok := versions[id]; !ok {
				missing = append(missing, id)
			}
		}
		return nil, appErrors.WrapAs(&models.UnknownResourcesError{Missing: missing}, appErrors.ErrUnknownResource, "")
	}
	return versions, nil
}

func verifyUnchanged(ctx context.Context, tx *sqlx.Tx, ids []string, versions, expected map[string]int64, interval models.TimeInterval, ignore []string) error {
	for _, id := range uniqueSorted(ids) {
		if v, ok := expected[id]; ok && v == versions[id] {
			continue
		}
		const query = `SELECT COUNT(*) FROM bookings WHERE status = 'CONFIRMED' AND booking_date = $2 AND (resource_id = $1 OR $1 = ANY(secondary_resource_ids)) AND start_minute < $4 AND end_minute > $3 AND NOT (id = ANY($5))`
		var count int
		if err := tx.GetContext(ctx, &count, query, id, interval.Date.Time(), interval.StartMinute, interval.EndMinute, pq.Array(nonNil(ignore))); err != nil {
			return fmt.Errorf("recheck overlaps: %w", err)
		}
		if count > 0 {
			return appErrors.ErrLedgerWriteConflict
		}
	}
	return nil
}

func lockBooking(ctx context.Context, tx *sqlx.Tx, bookingID string) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1 FOR UPDATE`
	var row bookingRow
	if err := tx.GetContext(ctx, &row, query, bookingID); err != nil {
		return nil, err
	}
	b := row.toModel()
	return &b, nil
}

func insertBooking(ctx context.Context, tx *sqlx.Tx, b models.Booking) error {
	const query = `INSERT INTO bookings (id, resource_id, secondary_resource_ids, booking_date, start_minute, end_minute, purpose, category, attendees, status, created_at, updated_at) VALUES (:id, :resource_id, :secondary_resource_ids, :booking_date, :start_minute, :end_minute, :purpose, :category, :attendees, :status, :created_at, :updated_at)`
	row := newBookingRow(b)
	if _, err := tx.NamedExecContext(ctx, query, &row); err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}
	return nil
}

func markCancelled(ctx context.Context, tx *sqlx.Tx, bookingID string, at time.Time) error {
	if _, err := tx.ExecContext(ctx, `UPDATE bookings SET status = 'CANCELLED', updated_at = $2 WHERE id = $1`, bookingID, at); err != nil {
		return fmt.Errorf("cancel booking: %w", err)
	}
	return nil
}

func bumpVersions(ctx context.Context, tx *sqlx.Tx, ids []string, at time.Time) error {
	if _, err := tx.ExecContext(ctx, `UPDATE resources SET version = version + 1, updated_at = $2 WHERE id = ANY($1)`, pq.Array(uniqueSorted(ids)), at); err != nil {
		return fmt.Errorf("bump resource versions: %w", err)
	}
	return nil
}

func uniqueSorted(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
