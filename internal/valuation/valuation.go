// Package valuation marks reconstructed holdings to market. A rate
// failure for one currency degrades that currency only; the rest of the
// tick proceeds and the degradation is visible in the result.
package valuation

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"fxledger/internal/logger"
	"fxledger/internal/pkg/fxmath"
	"fxledger/internal/pkg/fxpair"
	"fxledger/internal/position"
	"fxledger/internal/rates"
)

// RateGetter is the slice of the rates provider the valuator needs.
type RateGetter interface {
	GetRate(ctx context.Context, pair fxpair.Pair) (rates.Quote, error)
}

// CurrencyValuation is the mark-to-market view of one open position.
type CurrencyValuation struct {
	Currency      string          `json:"currency"`
	NetQuantity   decimal.Decimal `json:"net_quantity"`
	AverageCost   decimal.Decimal `json:"average_cost"`
	MarketRate    decimal.Decimal `json:"market_rate"`
	CurrentValue  decimal.Decimal `json:"current_value"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
	RealizedPnL   decimal.Decimal `json:"realized_pnl"`
	RateSource    string          `json:"rate_source,omitempty"`
	RateFetchedAt time.Time       `json:"rate_fetched_at"`
	// Stale means the rate came from cache after a failed fetch but is
	// still inside the staleness ceiling.
	Stale bool `json:"stale"`
	// Unavailable means no usable rate existed; the currency is
	// excluded from totals.
	Unavailable bool `json:"unavailable"`
}

// Valuation is the portfolio snapshot produced each tick.
type Valuation struct {
	Timestamp       time.Time                    `json:"timestamp"`
	Reporting       string                       `json:"reporting_currency"`
	Currencies      map[string]CurrencyValuation `json:"currencies"`
	Cash            decimal.Decimal              `json:"cash"`
	TotalAssets     decimal.Decimal              `json:"total_assets"`
	TotalUnrealized decimal.Decimal              `json:"total_unrealized_pnl"`
	TotalRealized   decimal.Decimal              `json:"total_realized_pnl"`
	// RatioToInitial is TotalAssets over the configured baseline; zero
	// when no baseline is configured.
	RatioToInitial decimal.Decimal `json:"total_assets_ratio_to_initial"`
	// Degraded lists currencies that were stale or unavailable this
	// tick, for the notifier to call out.
	Degraded []string `json:"degraded,omitempty"`
}

// Valuator combines holdings with live rates.
type Valuator struct {
	provider         RateGetter
	reporting        string
	initialTotal     decimal.Decimal
	stalenessCeiling time.Duration
	spreads          map[fxpair.Pair]decimal.Decimal
	nowFn            func() time.Time
}

type Option func(*Valuator)

// WithSpreads subtracts a one-way spread from the mid rate when valuing
// a holding, approximating liquidation value.
func WithSpreads(spreads map[string]float64) Option {
	return func(v *Valuator) {
		for raw, pts := range spreads {
			pair, err := fxpair.Parse(raw)
			if err != nil {
				continue
			}
			v.spreads[pair] = fxmath.FromFloat(pts)
		}
	}
}

func WithClock(nowFn func() time.Time) Option {
	return func(v *Valuator) { v.nowFn = nowFn }
}

func New(provider RateGetter, reporting string, initialTotal float64, stalenessCeiling time.Duration, opts ...Option) *Valuator {
	v := &Valuator{
		provider:         provider,
		reporting:        reporting,
		initialTotal:     fxmath.FromFloat(initialTotal),
		stalenessCeiling: stalenessCeiling,
		spreads:          make(map[fxpair.Pair]decimal.Decimal),
		nowFn:            time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Value marks every non-zero holding to market. Rates are fetched
// concurrently per currency; a failed fetch degrades that currency to
// its cached quote (flagged stale) while the ceiling allows, then to
// unavailable. Value never fails the whole tick for rate trouble.
func (v *Valuator) Value(ctx context.Context, snap position.Snapshot) Valuation {
	now := v.nowFn().UTC()
	out := Valuation{
		Timestamp:  now,
		Reporting:  v.reporting,
		Currencies: make(map[string]CurrencyValuation, len(snap.Positions)),
		Cash:       snap.Cash().NetQuantity,
	}

	type fetchResult struct {
		ccy   string
		quote rates.Quote
		err   error
	}

	var mu sync.Mutex
	results := make(map[string]fetchResult)
	group, groupCtx := errgroup.WithContext(ctx)
	for ccy, pos := range snap.Positions {
		if ccy == v.reporting || pos.NetQuantity.IsZero() {
			continue
		}
		ccy := ccy
		group.Go(func() error {
			pair, err := fxpair.ForBase(ccy, v.reporting)
			if err != nil {
				mu.Lock()
				results[ccy] = fetchResult{ccy: ccy, err: err}
				mu.Unlock()
				return nil
			}
			quote, err := v.provider.GetRate(groupCtx, pair)
			mu.Lock()
			results[ccy] = fetchResult{ccy: ccy, quote: quote, err: err}
			mu.Unlock()
			// Fetch errors degrade a single currency, never the group.
			return nil
		})
	}
	group.Wait()

	total := out.Cash
	for ccy, pos := range snap.Positions {
		out.TotalRealized = out.TotalRealized.Add(pos.RealizedPnL)
		if ccy == v.reporting || pos.NetQuantity.IsZero() {
			continue
		}
		cv := CurrencyValuation{
			Currency:    ccy,
			NetQuantity: pos.NetQuantity,
			AverageCost: pos.AverageCost,
			RealizedPnL: pos.RealizedPnL,
		}
		res := results[ccy]
		usable := res.err == nil || (res.quote.Rate > 0 && res.quote.Age(now) <= v.stalenessCeiling)
		if !usable || res.quote.Rate <= 0 {
			cv.Unavailable = true
			out.Degraded = append(out.Degraded, ccy)
			if res.err != nil {
				logger.Warnf("valuation: no usable rate for %s: %v", ccy, res.err)
			}
			out.Currencies[ccy] = cv
			continue
		}
		cv.Stale = res.err != nil
		if cv.Stale {
			out.Degraded = append(out.Degraded, ccy)
		}
		cv.RateSource = res.quote.Source
		cv.RateFetchedAt = res.quote.FetchedAt

		rate := fxmath.FromFloat(res.quote.Rate)
		if spread, ok := v.spreads[res.quote.Pair]; ok {
			rate = rate.Sub(spread)
		}
		cv.MarketRate = rate
		cv.CurrentValue = pos.NetQuantity.Mul(rate)
		cv.UnrealizedPnL = rate.Sub(pos.AverageCost).Mul(pos.NetQuantity)

		total = total.Add(cv.CurrentValue)
		out.TotalUnrealized = out.TotalUnrealized.Add(cv.UnrealizedPnL)
		out.Currencies[ccy] = cv
	}

	sort.Strings(out.Degraded)
	out.TotalAssets = total
	if v.initialTotal.Sign() > 0 {
		out.RatioToInitial = fxmath.Ratio(total, v.initialTotal)
	}
	return out
}
