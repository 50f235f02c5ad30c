// Package app wires the stores, jobs, schedulers and transport into a
// runnable service.
package app

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"fxledger/internal/config"
	"fxledger/internal/importer"
	"fxledger/internal/jobs"
	"fxledger/internal/ledger"
	"fxledger/internal/logger"
	"fxledger/internal/ratehist"
	"fxledger/internal/report"
	"fxledger/internal/scheduler"
	httpapi "fxledger/internal/transport/http"
)

type App struct {
	cfg     *config.Config
	store   *ledger.Store
	history *ratehist.Store
	server  *httpapi.Server

	importer     *importer.Importer
	valuationJob *jobs.ValuationJob
	linkJob      *jobs.LinkJob
	indicatorJob *jobs.IndicatorJob
	reportJob    *jobs.ReportJob

	summary *StartupSummary
}

// Run starts the HTTP server and all schedulers and blocks until ctx
// is canceled or a component fails fatally. Job errors are logged and
// absorbed; the next tick retries from scratch.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	defer a.Close()

	if a.summary != nil {
		a.summary.Print()
	}

	if a.importer != nil {
		if res, err := a.importer.ImportFile(ctx); err != nil {
			logger.Warnf("app: initial trade import failed: %v", err)
		} else {
			logger.Infof("app: initial import seen=%d imported=%d skipped=%d rejected=%d",
				res.Seen, res.Imported, res.Skipped, len(res.Rejected))
		}
	}

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if err := a.server.Start(ctx); err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})

	a.startJob(group, ctx, "valuation", a.cfg.Jobs.ValuationInterval, 15*time.Minute, a.valuationJob.Run)
	a.startJob(group, ctx, "linker", a.cfg.Jobs.LinkInterval, time.Hour, a.linkJob.Run)
	a.startJob(group, ctx, "indicator", a.cfg.Jobs.IndicatorInterval, time.Hour, a.indicatorJob.Run)

	group.Go(func() error {
		s := scheduler.NewDailyScheduler(ctx, "daily-report", a.cfg.Jobs.DailyReportHour)
		s.Start(func() {
			if err := a.reportJob.Run(ctx, report.PeriodDaily); err != nil {
				logger.Errorf("scheduler[daily-report]: %v", err)
			}
		})
		return nil
	})
	group.Go(func() error {
		weekday := time.Weekday(a.cfg.Jobs.WeeklyReportWeekday)
		s := scheduler.NewDailyScheduler(ctx, "weekly-report", a.cfg.Jobs.DailyReportHour)
		s.Weekday = &weekday
		s.Start(func() {
			if err := a.reportJob.Run(ctx, report.PeriodWeekly); err != nil {
				logger.Errorf("scheduler[weekly-report]: %v", err)
			}
		})
		return nil
	})

	if a.importer != nil && a.cfg.Importer.Watch {
		group.Go(func() error {
			err := a.importer.Watch(ctx)
			if err != nil && ctx.Err() == nil {
				return fmt.Errorf("trade log watcher error: %w", err)
			}
			return nil
		})
	}

	return group.Wait()
}

func (a *App) startJob(group *errgroup.Group, ctx context.Context, name, interval string, fallback time.Duration, run func(context.Context) error) {
	dur, ok := scheduler.ParseIntervalDuration(interval)
	if !ok {
		logger.Warnf("app: invalid %s interval %q, using %s", name, interval, fallback)
		dur = fallback
	}
	group.Go(func() error {
		s := scheduler.NewAlignedScheduler(ctx, name, dur, 0)
		s.RunImmediately = a.cfg.Jobs.RunImmediately
		s.Start(func() {
			if err := run(ctx); err != nil {
				logger.Errorf("scheduler[%s]: %v", name, err)
			}
		})
		return nil
	})
}

// Close releases the stores. Safe to call more than once.
func (a *App) Close() {
	if a == nil {
		return
	}
	if a.history != nil {
		_ = a.history.Close()
	}
	if a.store != nil {
		_ = a.store.Close()
	}
}

// Valuation exposes the valuation job, for test and replay harnesses.
func (a *App) Valuation() *jobs.ValuationJob {
	if a == nil {
		return nil
	}
	return a.valuationJob
}
