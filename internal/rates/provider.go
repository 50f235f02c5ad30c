package rates

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"fxledger/internal/logger"
	"fxledger/internal/pkg/circuit"
	"fxledger/internal/pkg/fxpair"
)

// ErrUnavailable indicates no source produced a rate and nothing usable
// is cached.
var ErrUnavailable = errors.New("rates: unavailable")

const (
	breakerThreshold = 3
	breakerTimeout   = 2 * time.Minute
)

// Provider chains sources with per-source circuit breakers and caches
// the last good quote per pair. A fetch failure degrades to the cached
// quote flagged stale; the caller applies its own staleness ceiling.
type Provider struct {
	sources  []Source
	breakers []*circuit.Breaker
	nowFn    func() time.Time

	mu    sync.RWMutex
	cache map[fxpair.Pair]Quote
}

// NewProvider builds a provider trying sources in order; the first is
// primary, the rest fall back.
func NewProvider(sources ...Source) *Provider {
	breakers := make([]*circuit.Breaker, len(sources))
	for i, src := range sources {
		breakers[i] = circuit.NewBreaker("rates/"+src.Name(), breakerThreshold, breakerTimeout)
	}
	return &Provider{
		sources:  sources,
		breakers: breakers,
		nowFn:    time.Now,
		cache:    make(map[fxpair.Pair]Quote),
	}
}

// GetRate returns a fresh quote, falling back through sources. When all
// sources fail it returns the cached quote flagged stale if one exists,
// otherwise ErrUnavailable. The error is non-nil whenever the quote is
// not fresh so callers can count the degradation.
func (p *Provider) GetRate(ctx context.Context, pair fxpair.Pair) (Quote, error) {
	var lastErr error
	for i, src := range p.sources {
		if !p.breakers[i].Allow() {
			continue
		}
		q, err := src.GetRate(ctx, pair)
		if err != nil {
			p.breakers[i].RecordFailure()
			lastErr = err
			logger.Warnf("rates: source %s failed for %s: %v", src.Name(), pair, err)
			continue
		}
		p.breakers[i].RecordSuccess()
		p.remember(q)
		return q, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("%w: all sources tripped for %s", ErrUnavailable, pair)
	}
	if cached, ok := p.Cached(pair); ok {
		cached.Stale = true
		return cached, lastErr
	}
	return Quote{}, lastErr
}

// Cached returns the last good quote for the pair, if any.
func (p *Provider) Cached(pair fxpair.Pair) (Quote, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	q, ok := p.cache[pair]
	return q, ok
}

func (p *Provider) remember(q Quote) {
	p.mu.Lock()
	p.cache[q.Pair] = q
	p.mu.Unlock()
}
