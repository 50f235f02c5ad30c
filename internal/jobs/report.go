package jobs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"fxledger/internal/ledger"
	"fxledger/internal/logger"
	"fxledger/internal/notify"
	"fxledger/internal/report"
	"fxledger/internal/valuation"
)

// ReportLedger is the ledger slice the report job needs.
type ReportLedger interface {
	ListClosedTradesBetween(ctx context.Context, from, to time.Time) ([]ledger.Trade, error)
}

// ValuationSource exposes the latest mark-to-market snapshot.
type ValuationSource interface {
	Latest() *valuation.Valuation
}

// ReportJob builds and delivers a period performance summary, and
// renders the equity curve chart next to the data files.
type ReportJob struct {
	Store     ReportLedger
	Valuation ValuationSource
	Notifier  notify.TextNotifier
	// ChartDir is where equity-curve HTML files land; empty disables
	// chart rendering.
	ChartDir       string
	InitialCapital float64

	nowFn func() time.Time
}

// WithClock fixes the clock, for tests.
func (j *ReportJob) WithClock(nowFn func() time.Time) *ReportJob {
	j.nowFn = nowFn
	return j
}

func (j *ReportJob) Run(ctx context.Context, period report.Period) error {
	now := time.Now().UTC()
	if j.nowFn != nil {
		now = j.nowFn().UTC()
	}
	from, to := period.Window(now)

	var closed []ledger.Trade
	err := withRetry(ctx, "report: load closed trades", func() error {
		var err error
		closed, err = j.Store.ListClosedTradesBetween(ctx, from, to)
		return err
	})
	if err != nil {
		return err
	}

	sum := report.BuildSummary(period, from, to, closed)
	var val *valuation.Valuation
	if j.Valuation != nil {
		val = j.Valuation.Latest()
	}

	if j.ChartDir != "" {
		if err := j.renderChart(period, closed, now); err != nil {
			logger.Warnf("report: rendering equity chart failed: %v", err)
		}
	}

	if j.Notifier == nil {
		return nil
	}
	msg := report.BuildMessage(sum, val)
	if err := j.Notifier.SendText(msg.RenderMarkdown()); err != nil {
		return fmt.Errorf("report: delivering %s summary failed: %w", period, err)
	}
	logger.Infof("report: %s summary delivered, trades=%d pnl=%s", period, sum.TotalTrades, sum.TotalPnL)
	return nil
}

func (j *ReportJob) renderChart(period report.Period, closed []ledger.Trade, now time.Time) error {
	points := report.BuildEquityCurve(j.InitialCapital, closed)
	if len(points) == 0 {
		return nil
	}
	if err := os.MkdirAll(j.ChartDir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(j.ChartDir, fmt.Sprintf("equity_%s.html", period))
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := report.WriteEquityChart(f, fmt.Sprintf("Equity curve (%s)", period), points, now); err != nil {
		return err
	}
	logger.Infof("report: equity chart written to %s", path)
	return nil
}
