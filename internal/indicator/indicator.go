// Package indicator derives technical indicators from the fetched rate
// history. The rate stream has closes only, so bar extremes are
// synthesized from adjacent observations where an indicator needs
// high/low series.
package indicator

import (
	"math"
	"time"

	talib "github.com/markcheno/go-talib"

	"fxledger/internal/pkg/fxpair"
	"fxledger/internal/ratehist"
)

const (
	rsiPeriod   = 14
	smaPeriod   = 20
	emaPeriod   = 50
	bbPeriod    = 20
	bbDeviation = 2.0
	adxPeriod   = 14

	macdFast   = 12
	macdSlow   = 26
	macdSignal = 9
)

// MinSamples is the history length at which every indicator in the
// snapshot becomes computable.
const MinSamples = emaPeriod + 1

// Compute builds an indicator snapshot from a close series ordered
// oldest first. Indicators whose period exceeds the available history
// are left nil.
func Compute(pair fxpair.Pair, ts time.Time, closes []float64) ratehist.IndicatorSnapshot {
	snap := ratehist.IndicatorSnapshot{Pair: pair, Timestamp: ts}
	if len(closes) > rsiPeriod {
		snap.RSI14 = lastValid(talib.Rsi(closes, rsiPeriod))
	}
	if len(closes) > macdSlow+macdSignal {
		macd, signal, hist := talib.Macd(closes, macdFast, macdSlow, macdSignal)
		snap.MACD = lastValid(macd)
		snap.MACDSignal = lastValid(signal)
		snap.MACDHist = lastValid(hist)
	}
	if len(closes) >= smaPeriod {
		snap.SMA20 = lastValid(talib.Sma(closes, smaPeriod))
	}
	if len(closes) >= emaPeriod {
		snap.EMA50 = lastValid(talib.Ema(closes, emaPeriod))
	}
	if len(closes) >= bbPeriod {
		upper, middle, lower := talib.BBands(closes, bbPeriod, bbDeviation, bbDeviation, talib.SMA)
		snap.BBUpper = lastValid(upper)
		snap.BBMiddle = lastValid(middle)
		snap.BBLower = lastValid(lower)
	}
	if len(closes) > 2*adxPeriod {
		highs, lows := syntheticExtremes(closes)
		snap.ADX14 = lastValid(talib.Adx(highs, lows, closes, adxPeriod))
	}
	return snap
}

// syntheticExtremes treats each step between consecutive closes as the
// bar's range.
func syntheticExtremes(closes []float64) (highs, lows []float64) {
	highs = make([]float64, len(closes))
	lows = make([]float64, len(closes))
	highs[0] = closes[0]
	lows[0] = closes[0]
	for i := 1; i < len(closes); i++ {
		highs[i] = math.Max(closes[i-1], closes[i])
		lows[i] = math.Min(closes[i-1], closes[i])
	}
	return highs, lows
}

func lastValid(series []float64) *float64 {
	for i := len(series) - 1; i >= 0; i-- {
		v := series[i]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		return &v
	}
	return nil
}
