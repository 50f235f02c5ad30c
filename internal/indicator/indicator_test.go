package indicator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fxledger/internal/pkg/fxpair"
)

func linearCloses(n int) []float64 {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = float64(i + 1)
	}
	return closes
}

func TestComputeFullHistory(t *testing.T) {
	pair := fxpair.MustParse("USDJPY")
	ts := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	snap := Compute(pair, ts, linearCloses(80))

	assert.Equal(t, pair, snap.Pair)
	assert.Equal(t, ts, snap.Timestamp)

	// Monotonically rising closes: RSI saturates at 100.
	require.NotNil(t, snap.RSI14)
	assert.InDelta(t, 100.0, *snap.RSI14, 1e-6)

	// SMA20 over 61..80 is their mean.
	require.NotNil(t, snap.SMA20)
	assert.InDelta(t, 70.5, *snap.SMA20, 1e-9)

	require.NotNil(t, snap.EMA50)
	assert.Less(t, *snap.EMA50, 80.0)
	assert.Greater(t, *snap.EMA50, 50.0)

	require.NotNil(t, snap.MACD)
	require.NotNil(t, snap.MACDSignal)
	require.NotNil(t, snap.MACDHist)
	assert.Greater(t, *snap.MACD, 0.0)

	require.NotNil(t, snap.BBUpper)
	require.NotNil(t, snap.BBMiddle)
	require.NotNil(t, snap.BBLower)
	assert.InDelta(t, 70.5, *snap.BBMiddle, 1e-9)
	assert.Greater(t, *snap.BBUpper, *snap.BBMiddle)
	assert.Less(t, *snap.BBLower, *snap.BBMiddle)

	require.NotNil(t, snap.ADX14)
	assert.Greater(t, *snap.ADX14, 50.0)
}

func TestComputeShortHistoryLeavesGaps(t *testing.T) {
	snap := Compute(fxpair.MustParse("USDJPY"), time.Now(), linearCloses(25))

	assert.NotNil(t, snap.RSI14)
	assert.NotNil(t, snap.SMA20)
	assert.NotNil(t, snap.BBMiddle)
	assert.Nil(t, snap.EMA50)
	assert.Nil(t, snap.MACD)
}

func TestComputeTinyHistoryIsEmpty(t *testing.T) {
	snap := Compute(fxpair.MustParse("USDJPY"), time.Now(), linearCloses(5))

	assert.Nil(t, snap.RSI14)
	assert.Nil(t, snap.SMA20)
	assert.Nil(t, snap.EMA50)
	assert.Nil(t, snap.MACD)
	assert.Nil(t, snap.BBUpper)
	assert.Nil(t, snap.ADX14)
}
