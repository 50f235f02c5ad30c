package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fxledger/internal/ledger"
	"fxledger/internal/valuation"
)

func closedTrade(ts time.Time, pnl float64) ledger.Trade {
	return ledger.Trade{Timestamp: ts, RealizedPnL: &pnl}
}

func TestBuildSummary(t *testing.T) {
	now := time.Date(2024, 3, 8, 7, 0, 0, 0, time.UTC)
	from, to := PeriodWeekly.Window(now)
	closed := []ledger.Trade{
		closedTrade(now.Add(-6*24*time.Hour), 300),
		closedTrade(now.Add(-5*24*time.Hour), -100),
		closedTrade(now.Add(-4*24*time.Hour), 100),
		closedTrade(now.Add(-2*24*time.Hour), -50),
		closedTrade(now.Add(-1*24*time.Hour), 0),
	}

	sum := BuildSummary(PeriodWeekly, from, to, closed)
	assert.Equal(t, 5, sum.TotalTrades)
	assert.Equal(t, 2, sum.WinningTrades)
	assert.Equal(t, 2, sum.LosingTrades)
	assert.Equal(t, "40.00", sum.WinRate.StringFixed(2))
	assert.Equal(t, "250.0000", sum.TotalPnL.StringFixed(4))
	assert.Equal(t, "200.0000", sum.AvgProfit.StringFixed(4))
	assert.Equal(t, "75.0000", sum.AvgLoss.StringFixed(4))
	// gross profit 400 / gross loss 150
	assert.Equal(t, "2.67", sum.ProfitFactor.StringFixed(2))
}

func TestBuildSummaryNoLosses(t *testing.T) {
	now := time.Now().UTC()
	sum := BuildSummary(PeriodDaily, now.AddDate(0, 0, -1), now, []ledger.Trade{
		closedTrade(now.Add(-time.Hour), 50),
	})
	assert.Equal(t, 1, sum.TotalTrades)
	assert.Equal(t, "100.00", sum.WinRate.StringFixed(2))
	assert.True(t, sum.ProfitFactor.IsZero())
	assert.True(t, sum.AvgLoss.IsZero())
}

func TestBuildSummaryEmpty(t *testing.T) {
	now := time.Now().UTC()
	sum := BuildSummary(PeriodWeekly, now.AddDate(0, 0, -7), now, nil)
	assert.Equal(t, 0, sum.TotalTrades)
	assert.True(t, sum.WinRate.IsZero())
	assert.True(t, sum.TotalPnL.IsZero())
}

func TestParsePeriod(t *testing.T) {
	assert.Equal(t, PeriodDaily, ParsePeriod("daily"))
	assert.Equal(t, PeriodMonthly, ParsePeriod(" Monthly "))
	assert.Equal(t, PeriodAll, ParsePeriod("all"))
	assert.Equal(t, PeriodWeekly, ParsePeriod(""))
	assert.Equal(t, PeriodWeekly, ParsePeriod("fortnight"))
}

func TestBuildMessageIncludesDegraded(t *testing.T) {
	now := time.Date(2024, 3, 8, 7, 0, 0, 0, time.UTC)
	sum := BuildSummary(PeriodWeekly, now.AddDate(0, 0, -7), now, []ledger.Trade{
		closedTrade(now.Add(-time.Hour), 120),
	})
	val := &valuation.Valuation{
		Timestamp:   now,
		Reporting:   "JPY",
		TotalAssets: decimal.NewFromInt(103350),
		Cash:        decimal.NewFromInt(94740),
		Degraded:    []string{"EUR"},
		Currencies: map[string]valuation.CurrencyValuation{
			"EUR": {Currency: "EUR", Unavailable: true},
		},
	}

	out := BuildMessage(sum, val).RenderMarkdown()
	assert.Contains(t, out, "Performance report (weekly)")
	assert.Contains(t, out, "win rate 100.00%")
	assert.Contains(t, out, "total assets JPY 103350.0000")
	assert.Contains(t, out, "EUR: rate unavailable, excluded")
	assert.Contains(t, out, "degraded rates: EUR")
}

func TestAlertMessage(t *testing.T) {
	val := valuation.Valuation{
		Timestamp:      time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
		Reporting:      "JPY",
		TotalAssets:    decimal.NewFromInt(93120),
		RatioToInitial: decimal.NewFromFloat(0.9312),
	}
	out := AlertMessage("drawdown", "total_assets_ratio", "below",
		decimal.NewFromFloat(0.94), decimal.NewFromFloat(0.9312), val).RenderMarkdown()

	assert.Contains(t, out, "Threshold alert: drawdown")
	assert.Contains(t, out, "total_assets_ratio 0.9312 below 0.9400")
	assert.Contains(t, out, "ratio to initial 0.9312")
}

func TestBuildEquityCurveBucketsByDay(t *testing.T) {
	day1 := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	day2 := time.Date(2024, 3, 4, 15, 0, 0, 0, time.UTC)
	points := BuildEquityCurve(100000, []ledger.Trade{
		closedTrade(day1, 200),
		closedTrade(day1.Add(2*time.Hour), -50),
		closedTrade(day2, 300),
	})
	require.Len(t, points, 2)
	assert.Equal(t, EquityPoint{Date: "2024-03-01", Value: 100150}, points[0])
	assert.Equal(t, EquityPoint{Date: "2024-03-04", Value: 100450}, points[1])
}

func TestWriteEquityChart(t *testing.T) {
	var buf bytes.Buffer
	points := []EquityPoint{{Date: "2024-03-01", Value: 100150}, {Date: "2024-03-04", Value: 100450}}
	err := WriteEquityChart(&buf, "Equity curve", points, time.Now())
	require.NoError(t, err)
	html := buf.String()
	assert.True(t, strings.Contains(html, "echarts"))
	assert.Contains(t, html, "2024-03-01")
}
