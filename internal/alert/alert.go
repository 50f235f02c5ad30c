// Package alert turns valuation metrics into threshold-crossing
// events. Firing is transition-detecting, not condition-detecting: the
// last observed side of every threshold is recorded each tick whether
// or not anything fired, and an alert is emitted only when a metric
// moves from inside the band to the triggering side. Re-firing requires
// first observing the metric back inside, so a metric parked beyond its
// threshold produces exactly one alert per genuine crossing.
package alert

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"fxledger/internal/config"
	"fxledger/internal/ledger"
	"fxledger/internal/valuation"
)

// Alert is a structured crossing event. It carries what the notifier
// needs to format a message; no text lives here.
type Alert struct {
	EventID   string          `json:"event_id"`
	Key       string          `json:"key"`
	Metric    string          `json:"metric"`
	Direction string          `json:"direction"`
	Threshold decimal.Decimal `json:"threshold"`
	Value     decimal.Decimal `json:"value"`
	FiredAt   time.Time       `json:"fired_at"`
}

// StateUpdate pairs the state to persist with the alert (if any) that
// must only be delivered once the optimistic write wins.
type StateUpdate struct {
	State ledger.AlertState
	Fired *Alert
}

// Evaluator compares valuations against configured thresholds.
type Evaluator struct {
	thresholds []config.Threshold
	nowFn      func() time.Time
}

func NewEvaluator(thresholds []config.Threshold) *Evaluator {
	return &Evaluator{thresholds: thresholds, nowFn: time.Now}
}

// WithClock fixes the clock, for tests.
func (e *Evaluator) WithClock(nowFn func() time.Time) *Evaluator {
	e.nowFn = nowFn
	return e
}

// Evaluate computes the current side of every threshold and returns one
// StateUpdate per evaluated threshold. Thresholds whose metric is
// unavailable this tick (currency excluded, or no ratio baseline) are
// skipped entirely, leaving their persisted side untouched; a stale but
// usable metric is still evaluated.
func (e *Evaluator) Evaluate(val valuation.Valuation, prior map[string]ledger.AlertState) []StateUpdate {
	now := e.nowFn().UTC()
	updates := make([]StateUpdate, 0, len(e.thresholds))

	for _, th := range e.thresholds {
		value, ok := e.metricValue(th.Metric, val)
		if !ok {
			continue
		}
		side := evalSide(th, value)

		prev, had := prior[th.Key]
		prevSide := ledger.SideInside
		if had && prev.LastSide == ledger.SideTriggered {
			prevSide = ledger.SideTriggered
		}

		st := ledger.AlertState{
			Key:                th.Key,
			LastSide:           side,
			LastFiredAt:        prev.LastFiredAt,
			LastFiredDirection: prev.LastFiredDirection,
			LastValue:          value.InexactFloat64(),
			Version:            prev.Version,
		}
		update := StateUpdate{State: st}

		if side == ledger.SideTriggered && prevSide == ledger.SideInside {
			fired := now
			update.State.LastFiredAt = &fired
			update.State.LastFiredDirection = th.Direction
			update.Fired = &Alert{
				EventID:   uuid.NewString(),
				Key:       th.Key,
				Metric:    th.Metric,
				Direction: th.Direction,
				Threshold: decimal.NewFromFloat(th.Value),
				Value:     value,
				FiredAt:   now,
			}
		}
		updates = append(updates, update)
	}
	return updates
}

func (e *Evaluator) metricValue(metric string, val valuation.Valuation) (decimal.Decimal, bool) {
	if metric == "total_assets_ratio" {
		if val.RatioToInitial.IsZero() {
			return decimal.Zero, false
		}
		return val.RatioToInitial, true
	}
	ccy, ok := strings.CutPrefix(metric, "unrealized_pnl:")
	if !ok {
		return decimal.Zero, false
	}
	cv, ok := val.Currencies[ccy]
	if !ok || cv.Unavailable {
		return decimal.Zero, false
	}
	return cv.UnrealizedPnL, true
}

func evalSide(th config.Threshold, value decimal.Decimal) ledger.Side {
	limit := decimal.NewFromFloat(th.Value)
	switch th.Direction {
	case "above":
		if value.GreaterThan(limit) {
			return ledger.SideTriggered
		}
	case "below":
		if value.LessThan(limit) {
			return ledger.SideTriggered
		}
	}
	return ledger.SideInside
}
