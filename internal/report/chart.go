package report

import (
	"io"
	"sort"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"

	"fxledger/internal/ledger"
	"fxledger/internal/pkg/fxmath"
)

// EquityPoint is one day on the equity curve.
type EquityPoint struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// BuildEquityCurve folds closed-trade profits day by day onto the
// starting capital. Trades are bucketed by UTC date so multiple closes
// on one day collapse into a single point.
func BuildEquityCurve(initial float64, closed []ledger.Trade) []EquityPoint {
	if len(closed) == 0 {
		return nil
	}
	byDay := make(map[string]float64)
	for _, t := range closed {
		if t.RealizedPnL == nil {
			continue
		}
		day := t.Timestamp.UTC().Format("2006-01-02")
		byDay[day] += *t.RealizedPnL
	}
	days := make([]string, 0, len(byDay))
	for d := range byDay {
		days = append(days, d)
	}
	sort.Strings(days)

	equity := fxmath.FromFloat(initial)
	points := make([]EquityPoint, 0, len(days))
	for _, d := range days {
		equity = equity.Add(fxmath.FromFloat(byDay[d]))
		points = append(points, EquityPoint{Date: d, Value: fxmath.ToFloat(fxmath.Report(equity))})
	}
	return points
}

// WriteEquityChart renders the equity curve as a standalone HTML page.
func WriteEquityChart(w io.Writer, title string, points []EquityPoint, generatedAt time.Time) error {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme:  types.ThemeWesteros,
			Width:  "1200px",
			Height: "520px",
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    title,
			Subtitle: "generated " + generatedAt.UTC().Format("2006-01-02 15:04 MST"),
			Left:     "left",
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(false)}),
	)

	xAxis := make([]string, 0, len(points))
	data := make([]opts.LineData, 0, len(points))
	for _, p := range points {
		xAxis = append(xAxis, p.Date)
		data = append(data, opts.LineData{Value: p.Value})
	}
	line.SetXAxis(xAxis)
	line.AddSeries("Equity", data,
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false), Smooth: opts.Bool(true)}))
	return line.Render(w)
}
