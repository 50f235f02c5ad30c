package fxmath

import (
	"math"

	"github.com/shopspring/decimal"
)

// ReportScale is the number of decimal places used when presenting
// reporting-currency amounts. Internal arithmetic keeps full precision;
// rounding happens once at the presentation boundary.
const ReportScale = 4

var (
	Zero = decimal.Zero
	One  = decimal.NewFromInt(1)
)

// FromFloat converts a float into a decimal, mapping NaN/Inf to zero so
// corrupt upstream values cannot poison an accumulation.
func FromFloat(v float64) decimal.Decimal {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(v)
}

func ToFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

// Report rounds to the reporting presentation scale.
func Report(d decimal.Decimal) decimal.Decimal {
	return d.Round(ReportScale)
}

func IsPositive(d decimal.Decimal) bool { return d.Sign() > 0 }
func IsNegative(d decimal.Decimal) bool { return d.Sign() < 0 }

// Ratio returns a/b, or zero when b is zero.
func Ratio(a, b decimal.Decimal) decimal.Decimal {
	if b.IsZero() {
		return decimal.Zero
	}
	return a.Div(b)
}
