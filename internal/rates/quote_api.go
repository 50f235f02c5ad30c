package rates

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"fxledger/internal/pkg/fxpair"
)

// APISource fetches rates from a JSON quote API. The endpoint is
// GET {base}/v1/rates/{PAIR} and the response carries the rate under
// "price" (preferred) or "rate".
type APISource struct {
	baseURL string
	client  *http.Client
	nowFn   func() time.Time
}

func NewAPISource(baseURL string, timeout time.Duration) *APISource {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &APISource{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		client:  &http.Client{Timeout: timeout},
		nowFn:   time.Now,
	}
}

func (s *APISource) Name() string { return "quote_api" }

func (s *APISource) GetRate(ctx context.Context, pair fxpair.Pair) (Quote, error) {
	url := fmt.Sprintf("%s/v1/rates/%s", s.baseURL, pair)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Quote{}, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return Quote{}, fmt.Errorf("rates: fetching %s failed: %w", pair, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		io.Copy(io.Discard, resp.Body)
		return Quote{}, fmt.Errorf("rates: quote api status=%d for %s", resp.StatusCode, pair)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return Quote{}, err
	}
	if !gjson.ValidBytes(body) {
		return Quote{}, fmt.Errorf("rates: invalid json for %s", pair)
	}
	parsed := gjson.ParseBytes(body)
	val := parsed.Get("price")
	if !val.Exists() {
		val = parsed.Get("rate")
	}
	if !val.Exists() || val.Float() <= 0 {
		return Quote{}, fmt.Errorf("rates: no usable price for %s", pair)
	}
	return Quote{
		Pair:      pair,
		Rate:      val.Float(),
		FetchedAt: s.nowFn().UTC(),
		Source:    s.Name(),
	}, nil
}
