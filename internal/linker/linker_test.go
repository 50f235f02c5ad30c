package linker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fxledger/internal/ledger"
)

var base = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

func tr(id int64, offset time.Duration) ledger.Trade {
	return ledger.Trade{ID: id, Timestamp: base.Add(offset)}
}

func inf(id int64, offset time.Duration) ledger.Inference {
	return ledger.Inference{ID: id, Timestamp: base.Add(offset)}
}

func TestLinkNearest(t *testing.T) {
	links := Link(
		[]ledger.Trade{tr(1, 0)},
		[]ledger.Inference{inf(10, -30*time.Minute), inf(11, 5*time.Minute)},
		2*time.Hour,
	)
	require.Len(t, links, 1)
	assert.Equal(t, int64(11), links[0].InferenceID)
	assert.InDelta(t, 300, links[0].DistanceSeconds, 1e-9)
}

func TestLinkMaxDistance(t *testing.T) {
	links := Link(
		[]ledger.Trade{tr(1, 0)},
		[]ledger.Inference{inf(10, 3*time.Hour)},
		2*time.Hour,
	)
	assert.Empty(t, links)
}

func TestLinkInferenceUsedOncePerRun(t *testing.T) {
	// Both trades want inference 10; the closer trade wins, the other
	// falls back to inference 11.
	links := Link(
		[]ledger.Trade{tr(1, 10*time.Minute), tr(2, 25*time.Minute)},
		[]ledger.Inference{inf(10, 0), inf(11, time.Hour)},
		2*time.Hour,
	)
	require.Len(t, links, 2)
	byTrade := map[int64]int64{}
	for _, l := range links {
		byTrade[l.TradeID] = l.InferenceID
	}
	assert.Equal(t, int64(10), byTrade[1])
	assert.Equal(t, int64(11), byTrade[2])
}

func TestLinkTieBreakEarliestInference(t *testing.T) {
	// Equidistant inferences either side of the trade: the earlier one
	// is chosen.
	links := Link(
		[]ledger.Trade{tr(1, 0)},
		[]ledger.Inference{inf(11, 10*time.Minute), inf(10, -10*time.Minute)},
		2*time.Hour,
	)
	require.Len(t, links, 1)
	assert.Equal(t, int64(10), links[0].InferenceID)
}

func TestLinkDeterministic(t *testing.T) {
	trades := []ledger.Trade{tr(3, 40*time.Minute), tr(1, 5*time.Minute), tr(2, 20*time.Minute)}
	inferences := []ledger.Inference{inf(12, 45*time.Minute), inf(10, 0), inf(11, 22*time.Minute)}

	first := Link(trades, inferences, 2*time.Hour)
	second := Link(trades, inferences, 2*time.Hour)
	assert.Equal(t, first, second)
}

func TestLinkEmptyInputs(t *testing.T) {
	assert.Nil(t, Link(nil, []ledger.Inference{inf(1, 0)}, time.Hour))
	assert.Nil(t, Link([]ledger.Trade{tr(1, 0)}, nil, time.Hour))
}
