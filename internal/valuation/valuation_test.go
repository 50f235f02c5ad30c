package valuation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fxledger/internal/ledger"
	"fxledger/internal/pkg/fxpair"
	"fxledger/internal/position"
	"fxledger/internal/rates"
)

var now = time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)

type stubRates struct {
	quotes map[fxpair.Pair]rates.Quote
	errs   map[fxpair.Pair]error
}

func (s *stubRates) GetRate(_ context.Context, pair fxpair.Pair) (rates.Quote, error) {
	if err, ok := s.errs[pair]; ok {
		return s.quotes[pair], err
	}
	q, ok := s.quotes[pair]
	if !ok {
		return rates.Quote{}, rates.ErrUnavailable
	}
	return q, nil
}

func snapshotFromTrades(t *testing.T, initial map[string]float64, trades []ledger.Trade) position.Snapshot {
	t.Helper()
	snap, err := position.Reconstruct(initial, "JPY", trades)
	require.NoError(t, err)
	return snap
}

func TestValueMarksToMarket(t *testing.T) {
	// Spec scenario: buy 100@110 fee 10, sell 50@115 fee 5, rate 112.
	trades := []ledger.Trade{
		{ID: 1, ExternalID: "t1", Timestamp: now.Add(-2 * time.Hour), Pair: fxpair.MustParse("USDJPY"), Action: ledger.ActionBuy, Quantity: 100, Price: 110, Fee: 10},
		{ID: 2, ExternalID: "t2", Timestamp: now.Add(-time.Hour), Pair: fxpair.MustParse("USDJPY"), Action: ledger.ActionSell, Quantity: 50, Price: 115, Fee: 5},
	}
	snap := snapshotFromTrades(t, map[string]float64{"JPY": 10000}, trades)

	provider := &stubRates{quotes: map[fxpair.Pair]rates.Quote{
		fxpair.MustParse("USDJPY"): {Pair: fxpair.MustParse("USDJPY"), Rate: 112, FetchedAt: now, Source: "quote_api"},
	}}
	v := New(provider, "JPY", 10000, 30*time.Minute, WithClock(func() time.Time { return now }))

	val := v.Value(context.Background(), snap)

	usd := val.Currencies["USD"]
	require.False(t, usd.Unavailable)
	// (112-110)*50 = 100
	assert.True(t, usd.UnrealizedPnL.Equal(decimal.NewFromInt(100)), "unrealized=%s", usd.UnrealizedPnL)
	assert.True(t, usd.CurrentValue.Equal(decimal.NewFromInt(5600)))
	// realized stays (115-110)*50-5 = 245
	assert.True(t, val.TotalRealized.Equal(decimal.NewFromInt(245)))

	// cash: 10000 - 11010 + 5745 = 4735; total = 4735 + 5600 = 10335
	assert.True(t, val.Cash.Equal(decimal.NewFromInt(4735)), "cash=%s", val.Cash)
	assert.True(t, val.TotalAssets.Equal(decimal.NewFromInt(10335)), "total=%s", val.TotalAssets)
	assert.True(t, val.RatioToInitial.Equal(decimal.NewFromFloat(1.0335)), "ratio=%s", val.RatioToInitial)
	assert.Empty(t, val.Degraded)
}

func TestValuePartialFailureIsolation(t *testing.T) {
	trades := []ledger.Trade{
		{ID: 1, ExternalID: "t1", Timestamp: now.Add(-2 * time.Hour), Pair: fxpair.MustParse("USDJPY"), Action: ledger.ActionBuy, Quantity: 100, Price: 110, Fee: 0},
		{ID: 2, ExternalID: "t2", Timestamp: now.Add(-time.Hour), Pair: fxpair.MustParse("EURJPY"), Action: ledger.ActionBuy, Quantity: 50, Price: 160, Fee: 0},
	}
	snap := snapshotFromTrades(t, map[string]float64{"JPY": 100000}, trades)

	provider := &stubRates{
		quotes: map[fxpair.Pair]rates.Quote{
			fxpair.MustParse("USDJPY"): {Pair: fxpair.MustParse("USDJPY"), Rate: 112, FetchedAt: now, Source: "quote_api"},
		},
		errs: map[fxpair.Pair]error{
			fxpair.MustParse("EURJPY"): errors.New("fetch failed"),
		},
	}
	v := New(provider, "JPY", 100000, 30*time.Minute, WithClock(func() time.Time { return now }))

	val := v.Value(context.Background(), snap)

	assert.False(t, val.Currencies["USD"].Unavailable)
	assert.True(t, val.Currencies["EUR"].Unavailable)
	assert.Equal(t, []string{"EUR"}, val.Degraded)

	// Total excludes EUR: 100000 - 11000 - 8000 + 112*100 = 92200
	assert.True(t, val.TotalAssets.Equal(decimal.NewFromInt(92200)), "total=%s", val.TotalAssets)
}

func TestValueStaleReuseWithinCeiling(t *testing.T) {
	trades := []ledger.Trade{
		{ID: 1, ExternalID: "t1", Timestamp: now.Add(-2 * time.Hour), Pair: fxpair.MustParse("USDJPY"), Action: ledger.ActionBuy, Quantity: 10, Price: 110, Fee: 0},
	}
	snap := snapshotFromTrades(t, map[string]float64{"JPY": 10000}, trades)
	pair := fxpair.MustParse("USDJPY")

	t.Run("inside ceiling: stale quote used", func(t *testing.T) {
		provider := &stubRates{
			quotes: map[fxpair.Pair]rates.Quote{
				pair: {Pair: pair, Rate: 111, FetchedAt: now.Add(-10 * time.Minute), Source: "quote_api", Stale: true},
			},
			errs: map[fxpair.Pair]error{pair: errors.New("fetch failed")},
		}
		v := New(provider, "JPY", 10000, 30*time.Minute, WithClock(func() time.Time { return now }))
		val := v.Value(context.Background(), snap)

		usd := val.Currencies["USD"]
		assert.True(t, usd.Stale)
		assert.False(t, usd.Unavailable)
		assert.True(t, usd.MarketRate.Equal(decimal.NewFromInt(111)))
		assert.Equal(t, []string{"USD"}, val.Degraded)
	})

	t.Run("beyond ceiling: zero-weight", func(t *testing.T) {
		provider := &stubRates{
			quotes: map[fxpair.Pair]rates.Quote{
				pair: {Pair: pair, Rate: 111, FetchedAt: now.Add(-2 * time.Hour), Source: "quote_api", Stale: true},
			},
			errs: map[fxpair.Pair]error{pair: errors.New("fetch failed")},
		}
		v := New(provider, "JPY", 10000, 30*time.Minute, WithClock(func() time.Time { return now }))
		val := v.Value(context.Background(), snap)

		usd := val.Currencies["USD"]
		assert.True(t, usd.Unavailable)
		// cash only: 10000 - 1100
		assert.True(t, val.TotalAssets.Equal(decimal.NewFromInt(8900)), "total=%s", val.TotalAssets)
	})
}

func TestValueAppliesSpread(t *testing.T) {
	trades := []ledger.Trade{
		{ID: 1, ExternalID: "t1", Timestamp: now.Add(-time.Hour), Pair: fxpair.MustParse("USDJPY"), Action: ledger.ActionBuy, Quantity: 100, Price: 110, Fee: 0},
	}
	snap := snapshotFromTrades(t, map[string]float64{"JPY": 20000}, trades)
	pair := fxpair.MustParse("USDJPY")

	provider := &stubRates{quotes: map[fxpair.Pair]rates.Quote{
		pair: {Pair: pair, Rate: 112, FetchedAt: now, Source: "quote_api"},
	}}
	v := New(provider, "JPY", 0, 30*time.Minute,
		WithClock(func() time.Time { return now }),
		WithSpreads(map[string]float64{"USDJPY": 0.15}),
	)
	val := v.Value(context.Background(), snap)

	usd := val.Currencies["USD"]
	assert.True(t, usd.MarketRate.Equal(decimal.NewFromFloat(111.85)), "rate=%s", usd.MarketRate)
}
