package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDate(t *testing.T, raw string) Date {
	t.Helper()
	d, err := ParseDate(raw)
	require.NoError(t, err)
	return d
}

func TestNewTimeIntervalValidation(t *testing.T) {
	day := mustDate(t, "2024-07-01")

	cases := []struct {
		name       string
		date       Date
		start, end int
		ok         bool
	}{
		{"valid", day, 600, 660, true},
		{"whole day", day, 0, 1439, true},
		{"start equals end", day, 600, 600, false},
		{"start after end", day, 700, 600, false},
		{"negative start", day, -1, 60, false},
		{"end past midnight", day, 600, 1440, false},
		{"missing date", Date{}, 600, 660, false},
		{"impossible date", Date{Year: 2024, Month: time.February, Day: 30}, 600, 660, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewTimeInterval(tc.date, tc.start, tc.end)
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestOverlapsHalfOpen(t *testing.T) {
	day := mustDate(t, "2024-07-01")
	other := mustDate(t, "2024-07-02")
	math := TimeInterval{Date: day, StartMinute: 600, EndMinute: 660}

	assert.True(t, Overlaps(math, TimeInterval{Date: day, StartMinute: 630, EndMinute: 690}))
	assert.True(t, Overlaps(math, TimeInterval{Date: day, StartMinute: 610, EndMinute: 620}))
	assert.False(t, Overlaps(math, TimeInterval{Date: day, StartMinute: 660, EndMinute: 720}), "touching end")
	assert.False(t, Overlaps(math, TimeInterval{Date: day, StartMinute: 540, EndMinute: 600}), "touching start")
	assert.False(t, Overlaps(math, TimeInterval{Date: other, StartMinute: 600, EndMinute: 660}), "different day")
}

func TestOverlapsIsSymmetric(t *testing.T) {
	day := mustDate(t, "2024-07-01")
	for a := 0; a < 5; a++ {
		for b := 0; b < 5; b++ {
			x := TimeInterval{Date: day, StartMinute: a * 30, EndMinute: a*30 + 45}
			y := TimeInterval{Date: day, StartMinute: b * 30, EndMinute: b*30 + 45}
			assert.Equal(t, Overlaps(x, y), Overlaps(y, x))
		}
	}
}

func TestDurationAndClock(t *testing.T) {
	i, err := NewTimeInterval(mustDate(t, "2024-07-01"), 600, 690)
	require.NoError(t, err)
	assert.Equal(t, 90, i.Duration())
	assert.Equal(t, "2024-07-01 10:00-11:30", i.String())

	m, err := ParseClock("07:05")
	require.NoError(t, err)
	assert.Equal(t, 425, m)

	for _, bad := range []string{"", "7", "24:00", "10:60", "10:5", "aa:bb"} {
		_, err := ParseClock(bad)
		assert.Error(t, err, bad)
	}
}

func TestDateJSONAndRange(t *testing.T) {
	var payload struct {
		Date Date `json:"date"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"date":"2024-02-29"}`), &payload))
	assert.Equal(t, Date{Year: 2024, Month: time.February, Day: 29}, payload.Date)

	out, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"date":"2024-02-29"}`, string(out))

	assert.Error(t, json.Unmarshal([]byte(`{"date":"2024-13-01"}`), &payload))

	r := DateRange{From: mustDate(t, "2024-02-27"), To: mustDate(t, "2024-03-01")}
	assert.Equal(t, 4, r.Days())
	assert.True(t, r.Contains(mustDate(t, "2024-02-29")))
	assert.False(t, r.Contains(mustDate(t, "2024-03-02")))
}
