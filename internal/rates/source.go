// Package rates fetches current market rates for FX currency pairs.
// Sources may fail or go stale; callers get partial-failure isolation
// through the caching provider rather than whole-tick aborts.
package rates

import (
	"context"
	"time"

	"fxledger/internal/pkg/fxpair"
)

// Quote is one observed market rate.
type Quote struct {
	Pair      fxpair.Pair
	Rate      float64
	FetchedAt time.Time
	Source    string
	// Stale marks a quote served from cache after a fresh fetch failed.
	Stale bool
}

// Age returns how old the quote is at the given instant.
func (q Quote) Age(now time.Time) time.Duration {
	return now.Sub(q.FetchedAt)
}

// Source fetches the current rate for one pair. Implementations block
// with a bounded timeout and return an error on failure or an
// unparsable response; they never invent rates.
type Source interface {
	Name() string
	GetRate(ctx context.Context, pair fxpair.Pair) (Quote, error)
}
