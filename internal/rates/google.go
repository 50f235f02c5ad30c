package rates

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"fxledger/internal/pkg/fxpair"
)

// GoogleSource scrapes the Google Finance quote page with a headless
// browser. The page renders the price client-side, so a plain HTTP GET
// is not enough; the rate lives in the data-last-price attribute once
// the page settles.
type GoogleSource struct {
	timeout time.Duration
	nowFn   func() time.Time
}

func NewGoogleSource(timeout time.Duration) *GoogleSource {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &GoogleSource{timeout: timeout, nowFn: time.Now}
}

func (s *GoogleSource) Name() string { return "google_finance" }

func (s *GoogleSource) GetRate(ctx context.Context, pair fxpair.Pair) (Quote, error) {
	url := fmt.Sprintf("https://www.google.com/finance/quote/%s-%s", pair.Base(), pair.Quote())

	parent, cancel := chromedp.NewContext(ctx)
	defer cancel()
	timeoutCtx, cancelTimeout := context.WithTimeout(parent, s.timeout)
	defer cancelTimeout()

	var raw string
	var ok bool
	tasks := chromedp.Tasks{
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.AttributeValue(`div[data-last-price]`, "data-last-price", &raw, &ok, chromedp.ByQuery),
	}
	if err := chromedp.Run(timeoutCtx, tasks...); err != nil {
		return Quote{}, fmt.Errorf("rates: google finance fetch for %s failed: %w", pair, err)
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return Quote{}, fmt.Errorf("rates: google finance has no price element for %s", pair)
	}
	rate, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(raw), ",", ""), 64)
	if err != nil || rate <= 0 {
		return Quote{}, fmt.Errorf("rates: google finance price %q unusable for %s", raw, pair)
	}
	return Quote{
		Pair:      pair,
		Rate:      rate,
		FetchedAt: s.nowFn().UTC(),
		Source:    s.Name(),
	}, nil
}
