package jobs

import (
	"context"
	"time"

	"fxledger/internal/indicator"
	"fxledger/internal/logger"
	"fxledger/internal/pkg/fxpair"
	"fxledger/internal/ratehist"
)

const indicatorHistoryWindow = 200

// IndicatorHistory is the rate-history slice the indicator job needs.
type IndicatorHistory interface {
	RecentRates(ctx context.Context, pair fxpair.Pair, limit int) ([]float64, error)
	SaveSnapshot(ctx context.Context, snap ratehist.IndicatorSnapshot) error
}

// IndicatorJob computes technical snapshots from accumulated rate
// history, one per tracked pair.
type IndicatorJob struct {
	History    IndicatorHistory
	Currencies []string
	Reporting  string

	nowFn func() time.Time
}

// WithClock fixes the clock, for tests.
func (j *IndicatorJob) WithClock(nowFn func() time.Time) *IndicatorJob {
	j.nowFn = nowFn
	return j
}

func (j *IndicatorJob) Run(ctx context.Context) error {
	now := time.Now
	if j.nowFn != nil {
		now = j.nowFn
	}
	var lastErr error
	for _, ccy := range j.Currencies {
		if ccy == j.Reporting {
			continue
		}
		pair, err := fxpair.ForBase(ccy, j.Reporting)
		if err != nil {
			continue
		}
		closes, err := j.History.RecentRates(ctx, pair, indicatorHistoryWindow)
		if err != nil {
			logger.Errorf("indicator: loading history for %s failed: %v", pair, err)
			lastErr = err
			continue
		}
		if len(closes) < indicator.MinSamples {
			logger.Debugf("indicator: %s has %d samples, need %d", pair, len(closes), indicator.MinSamples)
			continue
		}
		snap := indicator.Compute(pair, now().UTC().Truncate(time.Minute), closes)
		if err := j.History.SaveSnapshot(ctx, snap); err != nil {
			logger.Errorf("indicator: saving snapshot for %s failed: %v", pair, err)
			lastErr = err
			continue
		}
		logger.Debugf("indicator: snapshot saved for %s over %d samples", pair, len(closes))
	}
	return lastErr
}
