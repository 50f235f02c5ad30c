package jobs

import (
	"context"
	"time"

	"fxledger/internal/ledger"
	"fxledger/internal/linker"
	"fxledger/internal/logger"
)

// LinkLedger is the ledger slice the link job needs.
type LinkLedger interface {
	UnlinkedTrades(ctx context.Context) ([]ledger.Trade, error)
	ListInferencesBetween(ctx context.Context, from, to time.Time) ([]ledger.Inference, error)
	CreateLinks(ctx context.Context, links []ledger.Link) (int, error)
}

// LinkJob attaches unlinked trades to the nearest recorded inference.
type LinkJob struct {
	Store       LinkLedger
	MaxDistance time.Duration
	// Window pads the inference candidate query around the unlinked
	// trades' time range.
	Window time.Duration
}

func (j *LinkJob) Run(ctx context.Context) error {
	unlinked, err := j.Store.UnlinkedTrades(ctx)
	if err != nil {
		return err
	}
	if len(unlinked) == 0 {
		logger.Debugf("linker: nothing to link")
		return nil
	}

	from := unlinked[0].Timestamp
	to := unlinked[0].Timestamp
	for _, t := range unlinked[1:] {
		if t.Timestamp.Before(from) {
			from = t.Timestamp
		}
		if t.Timestamp.After(to) {
			to = t.Timestamp
		}
	}
	window := j.Window
	if window <= 0 {
		window = j.MaxDistance
	}
	inferences, err := j.Store.ListInferencesBetween(ctx, from.Add(-window), to.Add(window))
	if err != nil {
		return err
	}

	links := linker.Link(unlinked, inferences, j.MaxDistance)
	if len(links) == 0 {
		logger.Infof("linker: %d unlinked trades, no candidates within %s", len(unlinked), j.MaxDistance)
		return nil
	}
	created, err := j.Store.CreateLinks(ctx, links)
	if err != nil {
		return err
	}
	logger.Infof("linker: created %d/%d links (%d trades unlinked)", created, len(links), len(unlinked)-created)
	return nil
}
