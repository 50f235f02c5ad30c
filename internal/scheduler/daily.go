package scheduler

import (
	"context"
	"time"

	"fxledger/internal/logger"
)

// DailyScheduler fires once per day at a fixed UTC hour. Weekday can
// restrict it to one day of the week for weekly reports.
type DailyScheduler struct {
	Name    string
	Hour    int
	Weekday *time.Weekday

	ctx   context.Context
	nowFn func() time.Time
}

func NewDailyScheduler(ctx context.Context, name string, hour int) *DailyScheduler {
	if ctx == nil {
		ctx = context.Background()
	}
	return &DailyScheduler{Name: name, Hour: hour, ctx: ctx, nowFn: time.Now}
}

func (s *DailyScheduler) Start(task func()) {
	if s == nil || task == nil {
		return
	}
	if s.Hour < 0 || s.Hour > 23 {
		logger.Warnf("scheduler[%s]: invalid hour=%d, exit", s.Name, s.Hour)
		return
	}
	if s.nowFn == nil {
		s.nowFn = time.Now
	}
	logger.Infof("scheduler[%s]: daily at %02d:00 UTC weekday=%v", s.Name, s.Hour, s.Weekday)

	for {
		now := s.nowFn().UTC()
		next := s.nextRun(now)
		timer := time.NewTimer(next.Sub(now))
		select {
		case <-s.ctx.Done():
			timer.Stop()
			logger.Infof("scheduler[%s]: ctx done, exit", s.Name)
			return
		case <-timer.C:
		}
		task()
	}
}

func (s *DailyScheduler) nextRun(now time.Time) time.Time {
	now = now.UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(), s.Hour, 0, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	if s.Weekday != nil {
		for next.Weekday() != *s.Weekday {
			next = next.AddDate(0, 0, 1)
		}
	}
	return next
}
