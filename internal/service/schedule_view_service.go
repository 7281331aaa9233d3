package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-adp-allotment/internal/dto"
	"github.com/noah-isme/sma-adp-allotment/internal/models"
	appErrors "github.com/noah-isme/sma-adp-allotment/pkg/errors"
	"github.com/noah-isme/sma-adp-allotment/pkg/export"
)

// DefaultMaxScheduleDays caps the span of a single schedule query.
const DefaultMaxScheduleDays = 366

// ExportFormat names a schedule rendering.
type ExportFormat string

const (
	ExportCSV ExportFormat = "csv"
	ExportPDF ExportFormat = "pdf"
)

type scheduleLedger interface {
	Range(ctx context.Context, resourceID string, dates models.DateRange) ([]models.Booking, error)
	Version(ctx context.Context, resourceID string) (int64, error)
}

type resourceLookup interface {
	Lookup(ctx context.Context, id string) (*models.Resource, error)
}

type scheduleCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
	ContentType() string
}

type pdfRenderer interface {
	Render(data export.Dataset) ([]byte, error)
	ContentType() string
}

// ScheduleViewConfig sets the working window used for utilization.
type ScheduleViewConfig struct {
	DayStartMinute int
	DayEndMinute   int
	MaxRangeDays   int
	CacheTTL       time.Duration
}

// ScheduleExport is a rendered schedule ready to stream.
type ScheduleExport struct {
	Filename    string
	ContentType string
	Content     []byte
}

// ScheduleViewService builds read-only projections over the ledger. It never writes.
type ScheduleViewService struct {
	ledger   scheduleLedger
	registry resourceLookup
	cache    scheduleCache
	csv      csvRenderer
	pdf      pdfRenderer
	cfg      ScheduleViewConfig
	logger   *zap.Logger
}

// NewScheduleViewService constructs the reporting view. cache may be nil.
func NewScheduleViewService(ledger scheduleLedger, registry resourceLookup, cache scheduleCache, cfg ScheduleViewConfig, logger *zap.Logger) *ScheduleViewService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DayEndMinute <= cfg.DayStartMinute {
		cfg.DayStartMinute, cfg.DayEndMinute = 7*60, 17*60
	}
	if cfg.MaxRangeDays <= 0 {
		cfg.MaxRangeDays = DefaultMaxScheduleDays
	}
	return &ScheduleViewService{
		ledger:   ledger,
		registry: registry,
		cache:    cache,
		csv:      export.NewCSVExporter(),
		pdf:      export.NewPDFExporter(),
		cfg:      cfg,
		logger:   logger,
	}
}

// ParseRange converts a query into a date range, reporting a validation error on bad input.
func (s *ScheduleViewService) ParseRange(q dto.ScheduleRangeQuery) (models.DateRange, error) {
	dates, err := q.Range()
	if err != nil {
		return models.DateRange{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	return dates, nil
}

// ScheduleFor returns the confirmed bookings of a resource over a day range, ordered by date then start.
func (s *ScheduleViewService) ScheduleFor(ctx context.Context, resourceID string, dates models.DateRange) ([]models.Booking, error) {
	if err := s.checkRange(dates); err != nil {
		return nil, err
	}
	if _, err := s.registry.Lookup(ctx, resourceID); err != nil {
		return nil, err
	}

	if s.cache == nil {
		return s.loadRange(ctx, resourceID, dates)
	}

	// The version is read before the bookings, so a read racing a commit caches under
	// a key that no later reader asks for.
	version, err := s.ledger.Version(ctx, resourceID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule")
	}
	key := ScheduleKey(resourceID, "range", fmt.Sprintf("v%d", version), dates.From, dates.To)
	var cached []models.Booking
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return cached, nil
	}

	bookings, err := s.loadRange(ctx, resourceID, dates)
	if err != nil {
		return nil, err
	}
	_ = s.cache.Set(ctx, key, bookings, s.cfg.CacheTTL)
	return bookings, nil
}

func (s *ScheduleViewService) loadRange(ctx context.Context, resourceID string, dates models.DateRange) ([]models.Booking, error) {
	bookings, err := s.ledger.Range(ctx, resourceID, dates)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule")
	}
	return bookings, nil
}

// DaySchedule returns one day of a resource's schedule.
func (s *ScheduleViewService) DaySchedule(ctx context.Context, resourceID string, date models.Date) (*models.DaySchedule, error) {
	bookings, err := s.ScheduleFor(ctx, resourceID, models.DateRange{From: date, To: date})
	if err != nil {
		return nil, err
	}
	return &models.DaySchedule{Date: date, Weekday: date.Weekday().String(), Bookings: bookings}, nil
}

// WeekSchedule returns the Monday-to-Sunday week containing date, one entry per day.
func (s *ScheduleViewService) WeekSchedule(ctx context.Context, resourceID string, date models.Date) (*models.WeekSchedule, error) {
	offset := (int(date.Weekday()) + 6) % 7
	monday := date.AddDays(-offset)
	dates := models.DateRange{From: monday, To: monday.AddDays(6)}

	bookings, err := s.ScheduleFor(ctx, resourceID, dates)
	if err != nil {
		return nil, err
	}

	week := &models.WeekSchedule{ResourceID: resourceID, WeekStart: monday, Days: make([]models.DaySchedule, 7)}
	for i := range week.Days {
		d := monday.AddDays(i)
		week.Days[i] = models.DaySchedule{Date: d, Weekday: d.Weekday().String(), Bookings: []models.Booking{}}
	}
	for _, b := range bookings {
		idx := models.DateRange{From: monday, To: b.Interval.Date}.Days() - 1
		if idx >= 0 && idx < 7 {
			week.Days[idx].Bookings = append(week.Days[idx].Bookings, b)
		}
	}
	return week, nil
}

// Utilization reports booked minutes against the working window for every day in range.
// Bookings outside the window only count for the part that falls inside it.
func (s *ScheduleViewService) Utilization(ctx context.Context, resourceID string, dates models.DateRange) (*models.Utilization, error) {
	bookings, err := s.ScheduleFor(ctx, resourceID, dates)
	if err != nil {
		return nil, err
	}
	window := s.cfg.DayEndMinute - s.cfg.DayStartMinute
	util := &models.Utilization{
		ResourceID:            resourceID,
		Range:                 dates,
		TotalAvailableMinutes: dates.Days() * window,
		BookingCount:          len(bookings),
	}
	for _, b := range bookings {
		start := max(b.Interval.StartMinute, s.cfg.DayStartMinute)
		end := min(b.Interval.EndMinute, s.cfg.DayEndMinute)
		if end > start {
			util.BookedMinutes += end - start
		}
	}
	if util.TotalAvailableMinutes > 0 {
		util.Ratio = float64(util.BookedMinutes) / float64(util.TotalAvailableMinutes)
	}
	return util, nil
}

// Export renders a resource schedule as CSV or PDF.
func (s *ScheduleViewService) Export(ctx context.Context, resourceID string, dates models.DateRange, format string) (*ScheduleExport, error) {
	f := ExportFormat(strings.ToLower(strings.TrimSpace(format)))
	if f == "" {
		f = ExportCSV
	}
	if f != ExportCSV && f != ExportPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}

	resource, err := s.registry.Lookup(ctx, resourceID)
	if err != nil {
		return nil, err
	}
	bookings, err := s.ScheduleFor(ctx, resourceID, dates)
	if err != nil {
		return nil, err
	}

	data := scheduleDataset(resource, dates, bookings)
	var (
		content     []byte
		contentType string
	)
	switch f {
	case ExportPDF:
		content, err = s.pdf.Render(data)
		contentType = s.pdf.ContentType()
	default:
		content, err = s.csv.Render(data)
		contentType = s.csv.ContentType()
	}
	if err != nil {
		s.logger.Error("render schedule export", zap.String("resource_id", resourceID), zap.String("format", string(f)), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render schedule")
	}
	return &ScheduleExport{
		Filename:    fmt.Sprintf("schedule_%s_%s_%s.%s", resourceID, dates.From, dates.To, f),
		ContentType: contentType,
		Content:     content,
	}, nil
}

func (s *ScheduleViewService) checkRange(dates models.DateRange) error {
	if !dates.From.Valid() || !dates.To.Valid() {
		return appErrors.Clone(appErrors.ErrValidation, "date range requires valid from and to dates")
	}
	days := dates.Days()
	if days == 0 {
		return appErrors.Clone(appErrors.ErrValidation, "to must not be before from")
	}
	if days > s.cfg.MaxRangeDays {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("date range spans %d days, at most %d allowed", days, s.cfg.MaxRangeDays))
	}
	return nil
}

func scheduleDataset(resource *models.Resource, dates models.DateRange, bookings []models.Booking) export.Dataset {
	rows := make([][]string, 0, len(bookings))
	for _, b := range bookings {
		rows = append(rows, []string{
			b.Interval.Date.String(),
			b.Interval.Date.Weekday().String(),
			models.FormatClock(b.Interval.StartMinute),
			models.FormatClock(b.Interval.EndMinute),
			b.Purpose,
			string(b.Category),
			strings.Join(b.ResourceIDs(), " "),
		})
	}
	return export.Dataset{
		Title:    fmt.Sprintf("%s (%s)", resource.DisplayName, resource.ID),
		Subtitle: fmt.Sprintf("%s schedule %s to %s", strings.ToLower(string(resource.Kind)), dates.From, dates.To),
		Headers:  []string{"Date", "Day", "Start", "End", "Purpose", "Category", "Resources"},
		Rows:     rows,
		Widths:   []float64{2, 2, 1, 1, 5, 2, 4},
	}
}
