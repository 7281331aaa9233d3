package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-adp-allotment/internal/dto"
	"github.com/noah-isme/sma-adp-allotment/internal/models"
	appErrors "github.com/noah-isme/sma-adp-allotment/pkg/errors"
)

// DefaultMaxCommitRetries bounds how often a commit is retried after a concurrent write.
const DefaultMaxCommitRetries = 3

type ledgerStore interface {
	ledgerReader
	Find(ctx context.Context, bookingID string) (*models.Booking, error)
	Commit(ctx context.Context, booking models.Booking, expected map[string]int64) (*models.Booking, error)
	Cancel(ctx context.Context, bookingID string) (*models.Booking, error)
	Replace(ctx context.Context, oldID string, replacement models.Booking, expected map[string]int64) (*models.Booking, *models.Booking, error)
}

// Ledger is a booking store able to serve both allotments and schedule views.
type Ledger interface {
	ledgerStore
	scheduleLedger
}

type resourceResolver interface {
	Resolve(ctx context.Context, ids []string) (map[string]models.Resource, error)
}

type eventPublisher interface {
	Publish(ctx context.Context, event models.AllotmentEvent)
}

type scheduleInvalidator interface {
	InvalidateResources(ctx context.Context, resourceIDs ...string) error
}

// AllotmentInput is a parsed allotment request. The first resource is the booking's primary.
type AllotmentInput struct {
	ResourceIDs []string
	Interval    models.TimeInterval
	Purpose     string
	Category    models.BookingCategory
	Attendees   []string
}

// AllotmentOptions carries the optional collaborators of AllotmentService.
type AllotmentOptions struct {
	MaxCommitRetries int
	Notifier         eventPublisher
	Cache            scheduleInvalidator
	Metrics          *MetricsService
}

// AllotmentService runs validate, check, commit and notify for every booking mutation.
type AllotmentService struct {
	ledger     ledgerStore
	registry   resourceResolver
	checker    *ConflictChecker
	notifier   eventPublisher
	cache      scheduleInvalidator
	metrics    *MetricsService
	maxRetries int
	validator  *validator.Validate
	logger     *zap.Logger
	now        func() time.Time
}

// NewAllotmentService wires the allotment service.
func NewAllotmentService(ledger ledgerStore, registry resourceResolver, opts AllotmentOptions, validate *validator.Validate, logger *zap.Logger) *AllotmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxCommitRetries <= 0 {
		opts.MaxCommitRetries = DefaultMaxCommitRetries
	}
	return &AllotmentService{
		ledger:     ledger,
		registry:   registry,
		checker:    NewConflictChecker(ledger),
		notifier:   opts.Notifier,
		cache:      opts.Cache,
		metrics:    opts.Metrics,
		maxRetries: opts.MaxCommitRetries,
		validator:  validate,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Request validates an HTTP payload and books it.
func (s *AllotmentService) Request(ctx context.Context, req dto.AllotmentRequest) (*models.Booking, error) {
	if err := s.validator.Struct(req); err != nil {
		s.metrics.RecordAllotment(OutcomeInvalid)
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid allotment payload")
	}
	interval, err := req.Interval.ToInterval()
	if err != nil {
		s.metrics.RecordAllotment(OutcomeInvalid)
		return nil, appErrors.WrapAs(err, appErrors.ErrInvalidInterval, err.Error())
	}
	return s.RequestAllotment(ctx, AllotmentInput{
		ResourceIDs: req.ResourceIDs,
		Interval:    interval,
		Purpose:     req.Purpose,
		Category:    models.BookingCategory(req.Category),
		Attendees:   req.Attendees,
	})
}

// RequestAllotment books every listed resource for the interval or explains why it cannot.
// Conflicts come back as ALLOTMENT_CONFLICT wrapping a *models.AllotmentRejection; losing the
// commit race more than the retry budget allows yields RACE_EXHAUSTED.
func (s *AllotmentService) RequestAllotment(ctx context.Context, in AllotmentInput) (booking *models.Booking, err error) {
	defer func() { s.metrics.RecordAllotment(outcomeOf(err)) }()

	if err := in.Interval.Validate(); err != nil {
		return nil, appErrors.WrapAs(err, appErrors.ErrInvalidInterval, err.Error())
	}
	ids := normalizeIDs(in.ResourceIDs)
	if len(ids) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "at least one resource is required")
	}
	purpose := strings.TrimSpace(in.Purpose)
	if purpose == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "purpose is required")
	}
	if _, err := s.registry.Resolve(ctx, ids); err != nil {
		return nil, err
	}

	category := in.Category
	if category == "" {
		category = models.CategoryGeneral
	}
	candidate := models.Booking{
		ResourceID:           ids[0],
		SecondaryResourceIDs: ids[1:],
		Interval:             in.Interval,
		Purpose:              purpose,
		Category:             category,
		Attendees:            normalizeIDs(in.Attendees),
		Status:               models.BookingPending,
	}

	confirmed, err := s.commitWithRetry(ctx, candidate, nil, func(expected map[string]int64) (*models.Booking, error) {
		return s.ledger.Commit(ctx, candidate, expected)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("allotment confirmed",
		zap.String("booking_id", confirmed.ID),
		zap.Strings("resources", confirmed.ResourceIDs()),
		zap.String("slot", confirmed.Interval.String()))
	s.afterMutation(ctx, models.AllotmentEvent{Type: models.EventAllotmentConfirmed, Booking: *confirmed}, confirmed.ResourceIDs())
	return confirmed, nil
}

// GetAllotment loads a booking in any status.
func (s *AllotmentService) GetAllotment(ctx context.Context, bookingID string) (*models.Booking, error) {
	booking, err := s.ledger.Find(ctx, bookingID)
	if err != nil {
		return nil, s.mapLedgerError(err, "failed to load allotment")
	}
	return booking, nil
}

// CancelAllotment frees the booking's slot before returning. Cancelling twice is a no-op.
func (s *AllotmentService) CancelAllotment(ctx context.Context, bookingID string) (*models.Booking, error) {
	current, err := s.ledger.Find(ctx, bookingID)
	if err != nil {
		return nil, s.mapLedgerError(err, "failed to load allotment")
	}
	if current.Status == models.BookingCancelled {
		return current, nil
	}

	start := time.Now()
	cancelled, err := s.ledger.Cancel(ctx, bookingID)
	s.metrics.ObserveLedgerOp("cancel", time.Since(start))
	if err != nil {
		return nil, s.mapLedgerError(err, "failed to cancel allotment")
	}

	s.metrics.RecordCancellation()
	s.logger.Info("allotment cancelled", zap.String("booking_id", bookingID))
	s.afterMutation(ctx, models.AllotmentEvent{Type: models.EventAllotmentCancelled, Booking: *cancelled}, cancelled.ResourceIDs())
	return cancelled, nil
}

// Reschedule validates an HTTP payload and moves the booking.
func (s *AllotmentService) Reschedule(ctx context.Context, bookingID string, req dto.RescheduleRequest) (*models.Booking, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reschedule payload")
	}
	interval, err := req.Interval.ToInterval()
	if err != nil {
		return nil, appErrors.WrapAs(err, appErrors.ErrInvalidInterval, err.Error())
	}
	return s.RescheduleAllotment(ctx, bookingID, interval)
}

// RescheduleAllotment moves a confirmed booking to a new interval with the same resources and purpose.
// The old booking is cancelled and the new one confirmed in a single ledger step, so any failure
// leaves the original booking confirmed and unchanged.
func (s *AllotmentService) RescheduleAllotment(ctx context.Context, bookingID string, interval models.TimeInterval) (*models.Booking, error) {
	if err := interval.Validate(); err != nil {
		return nil, appErrors.WrapAs(err, appErrors.ErrInvalidInterval, err.Error())
	}
	old, err := s.ledger.Find(ctx, bookingID)
	if err != nil {
		return nil, s.mapLedgerError(err, "failed to load allotment")
	}
	if old.Status != models.BookingConfirmed {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "allotment is cancelled")
	}

	candidate := old.Clone()
	candidate.ID = ""
	candidate.Interval = interval
	candidate.Status = models.BookingPending
	candidate.CreatedAt = time.Time{}
	candidate.LastModifiedAt = time.Time{}

	var previous *models.Booking
	confirmed, err := s.commitWithRetry(ctx, candidate, []string{old.ID}, func(expected map[string]int64) (*models.Booking, error) {
		next, cancelled, err := s.ledger.Replace(ctx, old.ID, candidate, expected)
		previous = cancelled
		return next, err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("allotment rescheduled",
		zap.String("from_booking_id", old.ID),
		zap.String("booking_id", confirmed.ID),
		zap.String("slot", confirmed.Interval.String()))
	s.afterMutation(ctx, models.AllotmentEvent{Type: models.EventAllotmentRescheduled, Booking: *confirmed, Previous: previous}, confirmed.ResourceIDs())
	return confirmed, nil
}

// commitWithRetry runs check then commit, repeating both when the ledger reports a concurrent write.
func (s *AllotmentService) commitWithRetry(ctx context.Context, candidate models.Booking, ignore []string, commit func(expected map[string]int64) (*models.Booking, error)) (*models.Booking, error) {
	for attempt := 0; ; attempt++ {
		result, err := s.checker.Check(ctx, candidate, ignore...)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read ledger")
		}
		if result.HasConflict() {
			return nil, rejectConflict(candidate, result.Conflicts)
		}

		start := time.Now()
		booking, err := commit(result.Versions)
		s.metrics.ObserveLedgerOp("commit", time.Since(start))
		if err == nil {
			return booking, nil
		}
		if !errors.Is(err, appErrors.ErrLedgerWriteConflict) {
			return nil, s.mapLedgerError(err, "failed to commit allotment")
		}
		if attempt >= s.maxRetries {
			break
		}
		s.metrics.RecordCommitRetry()
		s.logger.Debug("ledger moved during commit, retrying",
			zap.Strings("resources", candidate.ResourceIDs()),
			zap.Int("attempt", attempt+1))
	}

	rejection := &models.AllotmentRejection{
		Reason:  models.RejectionRaceExhausted,
		Message: fmt.Sprintf("gave up after %d concurrent writes on %s, please resubmit", s.maxRetries+1, strings.Join(candidate.ResourceIDs(), ", ")),
	}
	return nil, appErrors.WrapAs(rejection, appErrors.ErrRaceExhausted, rejection.Message)
}

func (s *AllotmentService) afterMutation(ctx context.Context, event models.AllotmentEvent, resourceIDs []string) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.now()
	}
	if event.Previous != nil {
		resourceIDs = append(resourceIDs, event.Previous.ResourceIDs()...)
	}
	if s.cache != nil {
		ids := normalizeIDs(resourceIDs)
		if err := s.cache.InvalidateResources(ctx, ids...); err != nil {
			s.logger.Warn("schedule cache invalidation failed", zap.Strings("resource_ids", ids), zap.String("booking_id", event.Booking.ID), zap.Error(err))
		}
	}
	if s.notifier != nil {
		s.notifier.Publish(ctx, event)
	}
}

func (s *AllotmentService) mapLedgerError(err error, message string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "allotment not found")
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	s.logger.Error(message, zap.Error(err))
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func rejectConflict(candidate models.Booking, conflicts []models.Booking) error {
	parts := make([]string, 0, len(conflicts))
	for _, existing := range conflicts {
		var shared []string
		for _, id := range candidate.ResourceIDs() {
			if existing.Involves(id) {
				shared = append(shared, id)
			}
		}
		parts = append(parts, fmt.Sprintf("%s already booked %s for %s", strings.Join(shared, ", "), existing.Interval, existing.Purpose))
	}
	rejection := &models.AllotmentRejection{
		Reason:    models.RejectionConflict,
		Message:   strings.Join(parts, "; "),
		Conflicts: conflicts,
	}
	return appErrors.WrapAs(rejection, appErrors.ErrAllotmentConflict, rejection.Message)
}

// RejectionOf extracts the rejection details from an allotment error, if any.
func RejectionOf(err error) (*models.AllotmentRejection, bool) {
	var rejection *models.AllotmentRejection
	if errors.As(err, &rejection) {
		return rejection, true
	}
	return nil, false
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeConfirmed
	case errors.Is(err, appErrors.ErrAllotmentConflict):
		return OutcomeConflict
	case errors.Is(err, appErrors.ErrRaceExhausted):
		return OutcomeRaceExhausted
	case errors.Is(err, appErrors.ErrInvalidInterval), errors.Is(err, appErrors.ErrValidation):
		return OutcomeInvalid
	case errors.Is(err, appErrors.ErrUnknownResource):
		return OutcomeUnknown
	default:
		return OutcomeError
	}
}

// normalizeIDs trims, drops blanks and removes duplicates keeping first occurrence order.
func normalizeIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
