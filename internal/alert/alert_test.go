package alert

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fxledger/internal/config"
	"fxledger/internal/ledger"
	"fxledger/internal/valuation"
)

var tick = time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)

func ratioValuation(ratio float64) valuation.Valuation {
	return valuation.Valuation{
		Timestamp:      tick,
		Reporting:      "JPY",
		Currencies:     map[string]valuation.CurrencyValuation{},
		RatioToInitial: decimal.NewFromFloat(ratio),
	}
}

func lowerThreshold() []config.Threshold {
	return []config.Threshold{{
		Key:       "total_assets_loss",
		Metric:    "total_assets_ratio",
		Direction: "below",
		Value:     0.94,
	}}
}

// applyUpdates simulates the persistence the job does between ticks.
func applyUpdates(prior map[string]ledger.AlertState, updates []StateUpdate) map[string]ledger.AlertState {
	next := make(map[string]ledger.AlertState, len(prior))
	for k, v := range prior {
		next[k] = v
	}
	for _, u := range updates {
		st := u.State
		st.Version++
		next[st.Key] = st
	}
	return next
}

func TestHysteresisOscillation(t *testing.T) {
	// 0.95 -> 0.93 -> 0.95 -> 0.93 around a 0.94 lower threshold:
	// exactly one alert per genuine crossing, two in total.
	ev := NewEvaluator(lowerThreshold()).WithClock(func() time.Time { return tick })
	state := map[string]ledger.AlertState{}
	fired := 0

	for _, ratio := range []float64{0.95, 0.93, 0.95, 0.93} {
		updates := ev.Evaluate(ratioValuation(ratio), state)
		require.Len(t, updates, 1)
		if updates[0].Fired != nil {
			fired++
		}
		state = applyUpdates(state, updates)
	}
	assert.Equal(t, 2, fired)
}

func TestNoRefireWhileTriggered(t *testing.T) {
	ev := NewEvaluator([]config.Threshold{{
		Key:       "total_assets_loss",
		Metric:    "total_assets_ratio",
		Direction: "below",
		Value:     0.925,
	}}).WithClock(func() time.Time { return tick })
	state := map[string]ledger.AlertState{}

	updates := ev.Evaluate(ratioValuation(0.92), state)
	require.Len(t, updates, 1)
	require.NotNil(t, updates[0].Fired)
	assert.Equal(t, "total_assets_loss", updates[0].Fired.Key)
	state = applyUpdates(state, updates)

	// Still at 0.92 next tick: no second alert.
	updates = ev.Evaluate(ratioValuation(0.92), state)
	require.Len(t, updates, 1)
	assert.Nil(t, updates[0].Fired)
	assert.Equal(t, ledger.SideTriggered, updates[0].State.LastSide)
	// The fired timestamp survives non-firing ticks.
	assert.NotNil(t, updates[0].State.LastFiredAt)
}

func TestUpperThreshold(t *testing.T) {
	ev := NewEvaluator([]config.Threshold{{
		Key:       "total_assets_profit",
		Metric:    "total_assets_ratio",
		Direction: "above",
		Value:     1.05,
	}}).WithClock(func() time.Time { return tick })
	state := map[string]ledger.AlertState{}

	updates := ev.Evaluate(ratioValuation(1.02), state)
	assert.Nil(t, updates[0].Fired)
	state = applyUpdates(state, updates)

	updates = ev.Evaluate(ratioValuation(1.07), state)
	require.NotNil(t, updates[0].Fired)
	assert.Equal(t, "above", updates[0].Fired.Direction)
}

func TestExactBoundaryIsInside(t *testing.T) {
	ev := NewEvaluator(lowerThreshold()).WithClock(func() time.Time { return tick })
	updates := ev.Evaluate(ratioValuation(0.94), map[string]ledger.AlertState{})
	require.Len(t, updates, 1)
	assert.Nil(t, updates[0].Fired)
	assert.Equal(t, ledger.SideInside, updates[0].State.LastSide)
}

func TestPerCurrencyPnLThreshold(t *testing.T) {
	ev := NewEvaluator([]config.Threshold{{
		Key:       "usd_pnl_loss",
		Metric:    "unrealized_pnl:USD",
		Direction: "below",
		Value:     -5000,
	}}).WithClock(func() time.Time { return tick })

	val := ratioValuation(1.0)
	val.Currencies["USD"] = valuation.CurrencyValuation{
		Currency:      "USD",
		UnrealizedPnL: decimal.NewFromInt(-6000),
	}
	updates := ev.Evaluate(val, map[string]ledger.AlertState{})
	require.Len(t, updates, 1)
	require.NotNil(t, updates[0].Fired)
	assert.Equal(t, "unrealized_pnl:USD", updates[0].Fired.Metric)
}

func TestUnavailableMetricSkipped(t *testing.T) {
	ev := NewEvaluator([]config.Threshold{{
		Key:       "usd_pnl_loss",
		Metric:    "unrealized_pnl:USD",
		Direction: "below",
		Value:     -5000,
	}}).WithClock(func() time.Time { return tick })

	val := ratioValuation(1.0)
	val.Currencies["USD"] = valuation.CurrencyValuation{Currency: "USD", Unavailable: true}

	updates := ev.Evaluate(val, map[string]ledger.AlertState{})
	// Skipped entirely: prior side must not be overwritten by a tick
	// that could not observe the metric.
	assert.Empty(t, updates)
}
