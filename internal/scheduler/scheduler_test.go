package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseIntervalDuration(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
		ok   bool
	}{
		{"15m", 15 * time.Minute, true},
		{"1h", time.Hour, true},
		{"4h", 4 * time.Hour, true},
		{"1d", 24 * time.Hour, true},
		{"1w", 7 * 24 * time.Hour, true},
		{" 30M ", 30 * time.Minute, true},
		{"", 0, false},
		{"h", 0, false},
		{"0m", 0, false},
		{"-1h", 0, false},
		{"10x", 0, false},
	}
	for _, c := range cases {
		t.Run(c.in, func(t *testing.T) {
			got, ok := ParseIntervalDuration(c.in)
			assert.Equal(t, c.ok, ok)
			assert.Equal(t, c.want, got)
		})
	}
}

func TestAlignedNextTimes(t *testing.T) {
	s := &AlignedScheduler{Interval: 15 * time.Minute, Offset: 30 * time.Second}
	now := time.Date(2024, 3, 1, 9, 7, 10, 0, time.UTC)

	boundary, wakeAt, wait := s.nextTimes(now)
	assert.Equal(t, time.Date(2024, 3, 1, 9, 15, 0, 0, time.UTC), boundary)
	assert.Equal(t, time.Date(2024, 3, 1, 9, 15, 30, 0, time.UTC), wakeAt)
	assert.Equal(t, 8*time.Minute+20*time.Second, wait)
}

func TestDailyNextRun(t *testing.T) {
	s := &DailyScheduler{Hour: 7}
	assert.Equal(t,
		time.Date(2024, 3, 1, 7, 0, 0, 0, time.UTC),
		s.nextRun(time.Date(2024, 3, 1, 5, 30, 0, 0, time.UTC)))
	// already past 07:00 today
	assert.Equal(t,
		time.Date(2024, 3, 2, 7, 0, 0, 0, time.UTC),
		s.nextRun(time.Date(2024, 3, 1, 7, 0, 0, 0, time.UTC)))
}

func TestDailyNextRunWeekday(t *testing.T) {
	monday := time.Monday
	s := &DailyScheduler{Hour: 7, Weekday: &monday}
	// 2024-03-01 is a Friday; next Monday 07:00 is 2024-03-04.
	assert.Equal(t,
		time.Date(2024, 3, 4, 7, 0, 0, 0, time.UTC),
		s.nextRun(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)))
}
