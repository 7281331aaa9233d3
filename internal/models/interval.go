package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the wire and storage format for calendar dates.
const DateLayout = "2006-01-02"

// Minute bounds within a single day.
const (
	MinMinute = 0
	MaxMinute = 24*60 - 1
)

// Date is a calendar day without time-of-day or zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(raw string) (Date, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Date{}, fmt.Errorf("date is required")
	}
	t, err := time.Parse(DateLayout, raw)
	if err != nil {
		return Date{}, fmt.Errorf("malformed date %q: %w", raw, err)
	}
	return DateOf(t), nil
}

// DateOf truncates a timestamp to its calendar day in the timestamp's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// IsZero reports whether the date is unset.
func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// Valid reports whether the date names a real calendar day.
func (d Date) Valid() bool {
	if d.IsZero() || d.Month < time.January || d.Month > time.December || d.Day < 1 {
		return false
	}
	return DateOf(d.Time()) == d
}

// Time returns midnight UTC of the date.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// AddDays returns the date shifted by n days.
func (d Date) AddDays(n int) Date {
	return DateOf(d.Time().AddDate(0, 0, n))
}

// Before reports whether d is strictly earlier than other.
func (d Date) Before(other Date) bool {
	return d.Time().Before(other.Time())
}

// Weekday returns the day of the week.
func (d Date) Weekday() time.Weekday {
	return d.Time().Weekday()
}

// String formats as YYYY-MM-DD.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Time().Format(DateLayout)
}

// MarshalText implements encoding.TextMarshaler.
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Date) UnmarshalText(text []byte) error {
	parsed, err := ParseDate(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// DateRange is an inclusive span of calendar days.
type DateRange struct {
	From Date `json:"from"`
	To   Date `json:"to"`
}

// Days returns the number of calendar days covered by the range.
func (r DateRange) Days() int {
	if r.To.Before(r.From) {
		return 0
	}
	return int(r.To.Time().Sub(r.From.Time()).Hours()/24) + 1
}

// Contains reports whether the day lies within the range.
func (r DateRange) Contains(d Date) bool {
	return !d.Before(r.From) && !r.To.Before(d)
}

// TimeInterval is a half-open [StartMinute, EndMinute) span within one calendar day.
type TimeInterval struct {
	Date        Date `json:"date"`
	StartMinute int  `json:"start_minute"`
	EndMinute   int  `json:"end_minute"`
}

// NewTimeInterval validates and builds an interval.
func NewTimeInterval(date Date, startMinute, endMinute int) (TimeInterval, error) {
	if date.IsZero() {
		return TimeInterval{}, fmt.Errorf("date is required")
	}
	if !date.Valid() {
		return TimeInterval{}, fmt.Errorf("date %04d-%02d-%02d is not a calendar day", date.Year, int(date.Month), date.Day)
	}
	if startMinute < MinMinute || startMinute > MaxMinute {
		return TimeInterval{}, fmt.Errorf("start minute %d out of range [%d,%d]", startMinute, MinMinute, MaxMinute)
	}
	if endMinute < MinMinute || endMinute > MaxMinute {
		return TimeInterval{}, fmt.Errorf("end minute %d out of range [%d,%d]", endMinute, MinMinute, MaxMinute)
	}
	if startMinute >= endMinute {
		return TimeInterval{}, fmt.Errorf("start minute %d must be before end minute %d", startMinute, endMinute)
	}
	return TimeInterval{Date: date, StartMinute: startMinute, EndMinute: endMinute}, nil
}

// Validate re-checks an interval that was built without the constructor (e.g. decoded from JSON).
func (i TimeInterval) Validate() error {
	_, err := NewTimeInterval(i.Date, i.StartMinute, i.EndMinute)
	return err
}

// Overlaps applies the half-open rule: touching endpoints do not overlap.
func Overlaps(a, b TimeInterval) bool {
	return a.Date == b.Date && a.StartMinute < b.EndMinute && b.StartMinute < a.EndMinute
}

// Overlaps is the method form of the package-level Overlaps.
func (i TimeInterval) Overlaps(other TimeInterval) bool {
	return Overlaps(i, other)
}

// Duration returns the interval length in minutes.
func (i TimeInterval) Duration() int {
	return i.EndMinute - i.StartMinute
}

// String renders e.g. "2024-07-01 10:00-11:00".
func (i TimeInterval) String() string {
	return fmt.Sprintf("%s %s-%s", i.Date, FormatClock(i.StartMinute), FormatClock(i.EndMinute))
}

// ParseClock converts "HH:MM" into minutes since midnight.
func ParseClock(raw string) (int, error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("malformed time %q, expected HH:MM", raw)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("malformed hour in %q", raw)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 || len(parts[1]) != 2 {
		return 0, fmt.Errorf("malformed minute in %q", raw)
	}
	return h*60 + m, nil
}

// FormatClock renders minutes since midnight as "HH:MM".
func FormatClock(minute int) string {
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}
