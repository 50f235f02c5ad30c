package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"fxledger/internal/alert"
	"fxledger/internal/ledger"
	"fxledger/internal/logger"
	"fxledger/internal/notify"
	"fxledger/internal/pkg/fxmath"
	"fxledger/internal/pkg/fxpair"
	"fxledger/internal/position"
	"fxledger/internal/ratehist"
	"fxledger/internal/report"
	"fxledger/internal/valuation"
)

// ValuationLedger is the ledger slice the valuation job reads and
// writes.
type ValuationLedger interface {
	ListTradesOrdered(ctx context.Context) ([]ledger.Trade, error)
	ListAlertStates(ctx context.Context) ([]ledger.AlertState, error)
	SaveAlertState(ctx context.Context, st ledger.AlertState) error
}

// RateRecorder receives the rates observed during a tick.
type RateRecorder interface {
	Append(ctx context.Context, obs ratehist.Observation) error
}

// ValuationJob runs one full tick: replay the ledger into holdings,
// mark them to market, evaluate thresholds, persist alert state, and
// push newly fired alerts.
type ValuationJob struct {
	Store     ValuationLedger
	Valuator  *valuation.Valuator
	Evaluator *alert.Evaluator
	Notifier  notify.TextNotifier
	Rates     RateRecorder

	Initial   map[string]float64
	Reporting string

	mu   sync.RWMutex
	last *valuation.Valuation
}

// Latest returns the valuation of the most recent successful tick, or
// nil before the first one.
func (j *ValuationJob) Latest() *valuation.Valuation {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.last
}

func (j *ValuationJob) Run(ctx context.Context) error {
	var trades []ledger.Trade
	err := withRetry(ctx, "valuation: load trades", func() error {
		var err error
		trades, err = j.Store.ListTradesOrdered(ctx)
		return err
	})
	if err != nil {
		return err
	}

	snap, err := position.Reconstruct(j.Initial, j.Reporting, trades)
	if err != nil {
		// A ledger that fails integrity checks cannot be valued; this
		// is not transient, so no retry.
		return err
	}

	val := j.Valuator.Value(ctx, snap)
	j.mu.Lock()
	j.last = &val
	j.mu.Unlock()
	j.recordRates(ctx, val)

	logger.Infof("valuation: total=%s %s unrealized=%s realized=%s degraded=%d",
		val.Reporting, val.TotalAssets.StringFixed(fxmath.ReportScale),
		val.TotalUnrealized.StringFixed(fxmath.ReportScale),
		val.TotalRealized.StringFixed(fxmath.ReportScale), len(val.Degraded))

	states, err := j.Store.ListAlertStates(ctx)
	if err != nil {
		return err
	}
	prior := make(map[string]ledger.AlertState, len(states))
	for _, st := range states {
		prior[st.Key] = st
	}

	for _, upd := range j.Evaluator.Evaluate(val, prior) {
		if err := j.Store.SaveAlertState(ctx, upd.State); err != nil {
			if errors.Is(err, ledger.ErrVersionConflict) {
				// A concurrent tick already advanced this state; it
				// owns the notification too.
				logger.Infof("valuation: alert %s lost version race, skipping", upd.State.Key)
				continue
			}
			logger.Errorf("valuation: saving alert state %s failed: %v", upd.State.Key, err)
			continue
		}
		if upd.Fired == nil {
			continue
		}
		j.deliver(*upd.Fired, val)
	}
	return nil
}

func (j *ValuationJob) deliver(a alert.Alert, val valuation.Valuation) {
	logger.Warnf("valuation: alert fired key=%s metric=%s value=%s threshold=%s",
		a.Key, a.Metric, a.Value.StringFixed(fxmath.ReportScale), a.Threshold.StringFixed(fxmath.ReportScale))
	if j.Notifier == nil {
		return
	}
	msg := report.AlertMessage(a.Key, a.Metric, a.Direction, a.Threshold, a.Value, val)
	if err := j.Notifier.SendText(msg.RenderMarkdown()); err != nil {
		// Delivery failure must not roll back the state transition:
		// the crossing was observed and recorded.
		logger.Errorf("valuation: notifying alert %s failed: %v", a.Key, err)
	}
}

func (j *ValuationJob) recordRates(ctx context.Context, val valuation.Valuation) {
	if j.Rates == nil {
		return
	}
	for ccy, cv := range val.Currencies {
		if cv.Unavailable || !cv.MarketRate.IsPositive() {
			continue
		}
		pair, err := fxpair.ForBase(ccy, val.Reporting)
		if err != nil {
			continue
		}
		obs := ratehist.Observation{
			Timestamp: cv.RateFetchedAt,
			Pair:      pair,
			Rate:      fxmath.ToFloat(cv.MarketRate),
			Source:    cv.RateSource,
			Stale:     cv.Stale,
		}
		if obs.Timestamp.IsZero() {
			obs.Timestamp = time.Now()
		}
		if err := j.Rates.Append(ctx, obs); err != nil {
			logger.Warnf("valuation: recording rate %s failed: %v", pair, err)
		}
	}
}
