// Package report aggregates closed trades and valuation snapshots into
// period performance summaries and notification messages.
package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"fxledger/internal/ledger"
	"fxledger/internal/notify"
	"fxledger/internal/pkg/fxmath"
	"fxledger/internal/valuation"
)

// Period selects the lookback window for a summary.
type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
	PeriodAll     Period = "all"
)

// ParsePeriod maps user input onto a known period, defaulting to weekly.
func ParsePeriod(raw string) Period {
	switch Period(strings.ToLower(strings.TrimSpace(raw))) {
	case PeriodDaily:
		return PeriodDaily
	case PeriodMonthly:
		return PeriodMonthly
	case PeriodAll:
		return PeriodAll
	case PeriodWeekly, "":
		return PeriodWeekly
	default:
		return PeriodWeekly
	}
}

// Window returns the [from, to) range the period covers, ending at now.
func (p Period) Window(now time.Time) (time.Time, time.Time) {
	switch p {
	case PeriodDaily:
		return now.AddDate(0, 0, -1), now
	case PeriodMonthly:
		return now.AddDate(0, -1, 0), now
	case PeriodAll:
		return time.Unix(0, 0).UTC(), now
	default:
		return now.AddDate(0, 0, -7), now
	}
}

// Summary is the performance roll-up over closed trades in a window.
type Summary struct {
	Period        Period          `json:"period"`
	From          time.Time       `json:"from"`
	To            time.Time       `json:"to"`
	TotalTrades   int             `json:"total_trades"`
	WinningTrades int             `json:"winning_trades"`
	LosingTrades  int             `json:"losing_trades"`
	WinRate       decimal.Decimal `json:"win_rate"`
	TotalPnL      decimal.Decimal `json:"total_pnl"`
	AvgProfit     decimal.Decimal `json:"avg_profit"`
	AvgLoss       decimal.Decimal `json:"avg_loss"`
	// ProfitFactor is gross profit over gross loss; zero when there are
	// no losing trades.
	ProfitFactor decimal.Decimal `json:"profit_factor"`
}

// BuildSummary computes the roll-up from closed trades. Trades without
// a recorded profit figure are ignored.
func BuildSummary(period Period, from, to time.Time, closed []ledger.Trade) Summary {
	sum := Summary{Period: period, From: from, To: to}
	grossProfit := decimal.Zero
	grossLoss := decimal.Zero
	for _, t := range closed {
		if t.RealizedPnL == nil {
			continue
		}
		pnl := fxmath.FromFloat(*t.RealizedPnL)
		sum.TotalTrades++
		sum.TotalPnL = sum.TotalPnL.Add(pnl)
		if pnl.IsPositive() {
			sum.WinningTrades++
			grossProfit = grossProfit.Add(pnl)
		} else if pnl.IsNegative() {
			sum.LosingTrades++
			grossLoss = grossLoss.Add(pnl.Neg())
		}
	}
	if sum.TotalTrades > 0 {
		sum.WinRate = fxmath.Report(decimal.NewFromInt(int64(sum.WinningTrades)).
			Div(decimal.NewFromInt(int64(sum.TotalTrades))).
			Mul(decimal.NewFromInt(100)))
	}
	if sum.WinningTrades > 0 {
		sum.AvgProfit = fxmath.Report(grossProfit.Div(decimal.NewFromInt(int64(sum.WinningTrades))))
	}
	if sum.LosingTrades > 0 {
		sum.AvgLoss = fxmath.Report(grossLoss.Div(decimal.NewFromInt(int64(sum.LosingTrades))))
	}
	if grossLoss.IsPositive() {
		sum.ProfitFactor = fxmath.Report(grossProfit.Div(grossLoss))
	}
	sum.TotalPnL = fxmath.Report(sum.TotalPnL)
	return sum
}

// BuildMessage renders a summary plus the latest valuation into the
// shared notification format.
func BuildMessage(sum Summary, val *valuation.Valuation) notify.StructuredMessage {
	msg := notify.StructuredMessage{
		Icon:      "📊",
		Title:     fmt.Sprintf("Performance report (%s)", sum.Period),
		Timestamp: sum.To,
	}
	perf := notify.MessageSection{Title: "Closed trades"}
	if sum.TotalTrades == 0 {
		perf.Lines = append(perf.Lines, "no closed trades in period")
	} else {
		perf.Lines = append(perf.Lines,
			fmt.Sprintf("trades %d (win %d / loss %d)", sum.TotalTrades, sum.WinningTrades, sum.LosingTrades),
			fmt.Sprintf("win rate %s%%", sum.WinRate.StringFixed(2)),
			fmt.Sprintf("total pnl %s", sum.TotalPnL.StringFixed(fxmath.ReportScale)),
		)
		if sum.WinningTrades > 0 {
			perf.Lines = append(perf.Lines, fmt.Sprintf("avg profit %s", sum.AvgProfit.StringFixed(fxmath.ReportScale)))
		}
		if sum.LosingTrades > 0 {
			perf.Lines = append(perf.Lines, fmt.Sprintf("avg loss %s", sum.AvgLoss.StringFixed(fxmath.ReportScale)))
		}
		if sum.ProfitFactor.IsPositive() {
			perf.Lines = append(perf.Lines, fmt.Sprintf("profit factor %s", sum.ProfitFactor.StringFixed(2)))
		}
	}
	msg.Sections = append(msg.Sections, perf)

	if val != nil {
		msg.Sections = append(msg.Sections, valuationSection(*val))
		if len(val.Degraded) > 0 {
			msg.Footer = "degraded rates: " + strings.Join(val.Degraded, ", ")
		}
	}
	return msg
}

// AlertMessage formats one fired threshold alert.
func AlertMessage(key, metric, direction string, threshold, value decimal.Decimal, val valuation.Valuation) notify.StructuredMessage {
	msg := notify.StructuredMessage{
		Icon:      "🚨",
		Title:     fmt.Sprintf("Threshold alert: %s", key),
		Timestamp: val.Timestamp,
		Sections: []notify.MessageSection{
			{
				Title: "Trigger",
				Lines: []string{fmt.Sprintf("%s %s %s %s",
					metric, value.StringFixed(fxmath.ReportScale), direction, threshold.StringFixed(fxmath.ReportScale))},
			},
			valuationSection(val),
		},
	}
	if len(val.Degraded) > 0 {
		msg.Footer = "degraded rates: " + strings.Join(val.Degraded, ", ")
	}
	return msg
}

func valuationSection(val valuation.Valuation) notify.MessageSection {
	sec := notify.MessageSection{Title: "Portfolio"}
	sec.Lines = append(sec.Lines,
		fmt.Sprintf("total assets %s %s", val.Reporting, val.TotalAssets.StringFixed(fxmath.ReportScale)),
		fmt.Sprintf("cash %s %s", val.Reporting, val.Cash.StringFixed(fxmath.ReportScale)),
		fmt.Sprintf("unrealized pnl %s", val.TotalUnrealized.StringFixed(fxmath.ReportScale)),
		fmt.Sprintf("realized pnl %s", val.TotalRealized.StringFixed(fxmath.ReportScale)),
	)
	if val.RatioToInitial.IsPositive() {
		sec.Lines = append(sec.Lines, fmt.Sprintf("ratio to initial %s", val.RatioToInitial.StringFixed(fxmath.ReportScale)))
	}
	currencies := make([]string, 0, len(val.Currencies))
	for c := range val.Currencies {
		currencies = append(currencies, c)
	}
	sort.Strings(currencies)
	for _, c := range currencies {
		cv := val.Currencies[c]
		switch {
		case cv.Unavailable:
			sec.Lines = append(sec.Lines, fmt.Sprintf("%s: rate unavailable, excluded", c))
		case cv.NetQuantity.IsZero():
			// flat currencies add no information
		default:
			line := fmt.Sprintf("%s: qty %s @ %s, upl %s",
				c, cv.NetQuantity.StringFixed(fxmath.ReportScale),
				cv.MarketRate.StringFixed(fxmath.ReportScale),
				cv.UnrealizedPnL.StringFixed(fxmath.ReportScale))
			if cv.Stale {
				line += " (stale)"
			}
			sec.Lines = append(sec.Lines, line)
		}
	}
	return sec
}
