// Package linker matches executed trades to the temporally nearest
// inference record. The assignment is a greedy nearest-neighbor pass,
// not an optimal bipartite matching: candidate pairs are taken in
// ascending distance order and each trade and inference is used at most
// once per run. Trade and inference volumes are small and collisions
// rare, so the simpler assignment wins over Hungarian-style matching.
package linker

import (
	"math"
	"sort"
	"time"

	"fxledger/internal/ledger"
)

// candidate is one admissible trade/inference pairing.
type candidate struct {
	tradeID     int64
	inferenceID int64
	distance    float64
	inferenceTS time.Time
}

// Link assigns each unlinked trade to its nearest inference within
// maxDistance. Ties on distance prefer the earlier inference timestamp,
// then the lower trade id. Trades with no inference in range stay
// unlinked and are retried on the next run. The function is pure; the
// caller persists the result behind the trade_id uniqueness constraint,
// which makes re-running over already-linked history a no-op.
func Link(unlinked []ledger.Trade, inferences []ledger.Inference, maxDistance time.Duration) []ledger.Link {
	if len(unlinked) == 0 || len(inferences) == 0 {
		return nil
	}

	maxSec := maxDistance.Seconds()
	candidates := make([]candidate, 0, len(unlinked))
	for _, t := range unlinked {
		for _, in := range inferences {
			d := math.Abs(t.Timestamp.Sub(in.Timestamp).Seconds())
			if d > maxSec {
				continue
			}
			candidates = append(candidates, candidate{
				tradeID:     t.ID,
				inferenceID: in.ID,
				distance:    d,
				inferenceTS: in.Timestamp,
			})
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.distance != b.distance {
			return a.distance < b.distance
		}
		if !a.inferenceTS.Equal(b.inferenceTS) {
			return a.inferenceTS.Before(b.inferenceTS)
		}
		return a.tradeID < b.tradeID
	})

	usedTrade := make(map[int64]struct{}, len(unlinked))
	usedInference := make(map[int64]struct{}, len(inferences))
	links := make([]ledger.Link, 0, len(unlinked))
	for _, c := range candidates {
		if _, taken := usedTrade[c.tradeID]; taken {
			continue
		}
		if _, taken := usedInference[c.inferenceID]; taken {
			continue
		}
		usedTrade[c.tradeID] = struct{}{}
		usedInference[c.inferenceID] = struct{}{}
		links = append(links, ledger.Link{
			TradeID:         c.tradeID,
			InferenceID:     c.inferenceID,
			DistanceSeconds: c.distance,
		})
	}
	return links
}
