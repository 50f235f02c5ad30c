// Package position reconstructs per-currency holdings from the
// immutable trade ledger. Reconstruct is a pure fold: identical input
// always yields identical output, so a tick retried after a downstream
// failure can safely replay from scratch.
package position

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"fxledger/internal/ledger"
	"fxledger/internal/pkg/fxmath"
)

// Position is the derived holding for one currency. It is recomputable
// state, never the source of truth.
type Position struct {
	Currency    string
	NetQuantity decimal.Decimal
	// AverageCost is the quantity-weighted cost in the pricing (quote)
	// currency. Zero for the reporting-currency cash position.
	AverageCost decimal.Decimal
	// RealizedPnL accumulates profit locked in by reductions, net of
	// fees.
	RealizedPnL decimal.Decimal
}

// Snapshot is the result of folding the full trade history over the
// initial capital baseline.
type Snapshot struct {
	// Positions is keyed by currency code and always contains an entry
	// for the reporting currency (the cash book).
	Positions map[string]Position
	Reporting string
}

// Cash returns the reporting-currency position.
func (s Snapshot) Cash() Position {
	return s.Positions[s.Reporting]
}

// RealizedTotal sums realized PnL across all currencies.
func (s Snapshot) RealizedTotal() decimal.Decimal {
	total := decimal.Zero
	for _, p := range s.Positions {
		total = total.Add(p.RealizedPnL)
	}
	return total
}

// InsufficientPositionError reports a reduction exceeding the held
// quantity. It signals corrupt imported history, not a normal
// condition, and aborts the fold.
type InsufficientPositionError struct {
	Currency string
	TradeID  string
	Held     decimal.Decimal
	Reduced  decimal.Decimal
}

func (e *InsufficientPositionError) Error() string {
	return fmt.Sprintf("position: trade %s reduces %s by %s but only %s held",
		e.TradeID, e.Currency, e.Reduced, e.Held)
}

// IntegrityError reports a malformed trade record that slipped past
// import validation.
type IntegrityError struct {
	TradeID string
	Reason  string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("position: trade %s: %s", e.TradeID, e.Reason)
}

// Reconstruct folds initial capital plus the complete ordered trade
// history into current holdings. Trades are re-sorted by
// (timestamp, id) internally so the result cannot depend on the
// caller's ordering.
//
// Accounting rules: a buy moves price*qty+fee out of the quote-currency
// cash book and recomputes the base currency's average cost as a
// quantity-weighted mean of trade prices (fees stay out of the cost
// basis). A sell or close credits price*qty-fee to cash and realizes
// (price - average_cost) * qty - fee; the average cost is unchanged by
// reductions. The reporting-currency cash book may go negative (the
// original account trades on funding), but a base-currency reduction
// below zero is a data-integrity failure.
func Reconstruct(initial map[string]float64, reporting string, trades []ledger.Trade) (Snapshot, error) {
	snap := Snapshot{
		Positions: make(map[string]Position, len(initial)+1),
		Reporting: reporting,
	}
	for ccy, qty := range initial {
		snap.Positions[ccy] = Position{Currency: ccy, NetQuantity: fxmath.FromFloat(qty)}
	}
	if _, ok := snap.Positions[reporting]; !ok {
		snap.Positions[reporting] = Position{Currency: reporting}
	}

	ordered := make([]ledger.Trade, len(trades))
	copy(ordered, trades)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].Timestamp.Equal(ordered[j].Timestamp) {
			return ordered[i].Timestamp.Before(ordered[j].Timestamp)
		}
		return ordered[i].ID < ordered[j].ID
	})

	seen := make(map[string]struct{}, len(ordered))
	for _, t := range ordered {
		if t.ExternalID != "" {
			if _, dup := seen[t.ExternalID]; dup {
				return Snapshot{}, &IntegrityError{TradeID: t.ExternalID, Reason: "duplicate trade id"}
			}
			seen[t.ExternalID] = struct{}{}
		}
		if err := applyTrade(&snap, t); err != nil {
			return Snapshot{}, err
		}
	}
	return snap, nil
}

func applyTrade(snap *Snapshot, t ledger.Trade) error {
	qty := fxmath.FromFloat(t.Quantity)
	price := fxmath.FromFloat(t.Price)
	fee := fxmath.FromFloat(t.Fee)
	if qty.Sign() <= 0 {
		return &IntegrityError{TradeID: t.ExternalID, Reason: "non-positive quantity"}
	}
	if price.Sign() <= 0 {
		return &IntegrityError{TradeID: t.ExternalID, Reason: "non-positive price"}
	}
	if fee.Sign() < 0 {
		return &IntegrityError{TradeID: t.ExternalID, Reason: "negative fee"}
	}

	base := snap.Positions[t.Pair.Base()]
	base.Currency = t.Pair.Base()
	cash := snap.Positions[t.Pair.Quote()]
	cash.Currency = t.Pair.Quote()

	gross := price.Mul(qty)
	if t.Action.IncreasesExposure() {
		newQty := base.NetQuantity.Add(qty)
		if newQty.Sign() > 0 {
			weighted := base.AverageCost.Mul(base.NetQuantity).Add(gross)
			base.AverageCost = weighted.Div(newQty)
		}
		base.NetQuantity = newQty
		cash.NetQuantity = cash.NetQuantity.Sub(gross).Sub(fee)
	} else {
		if qty.GreaterThan(base.NetQuantity) {
			return &InsufficientPositionError{
				Currency: base.Currency,
				TradeID:  t.ExternalID,
				Held:     base.NetQuantity,
				Reduced:  qty,
			}
		}
		realized := price.Sub(base.AverageCost).Mul(qty).Sub(fee)
		base.RealizedPnL = base.RealizedPnL.Add(realized)
		base.NetQuantity = base.NetQuantity.Sub(qty)
		cash.NetQuantity = cash.NetQuantity.Add(gross).Sub(fee)
	}

	snap.Positions[base.Currency] = base
	snap.Positions[cash.Currency] = cash
	return nil
}
