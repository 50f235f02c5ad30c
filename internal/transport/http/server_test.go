package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fxledger/internal/importer"
	"fxledger/internal/ledger"
	"fxledger/internal/valuation"
)

type fakeLedger struct {
	trades     []ledger.Trade
	states     []ledger.AlertState
	links      []ledger.Link
	inferences []ledger.Inference
}

func (f *fakeLedger) ListTradesOrdered(context.Context) ([]ledger.Trade, error) {
	return f.trades, nil
}

func (f *fakeLedger) ListClosedTradesBetween(context.Context, time.Time, time.Time) ([]ledger.Trade, error) {
	var out []ledger.Trade
	for _, t := range f.trades {
		if t.RealizedPnL != nil {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeLedger) ListAlertStates(context.Context) ([]ledger.AlertState, error) {
	return f.states, nil
}

func (f *fakeLedger) ListLinks(_ context.Context, limit int) ([]ledger.Link, error) {
	if len(f.links) > limit {
		return f.links[:limit], nil
	}
	return f.links, nil
}

func (f *fakeLedger) CountLinks(context.Context) (int64, error) {
	return int64(len(f.links)), nil
}

func (f *fakeLedger) CountUnlinked(context.Context) (int64, error) {
	return int64(len(f.trades) - len(f.links)), nil
}

func (f *fakeLedger) InsertInferences(_ context.Context, ins []ledger.Inference) (int, error) {
	inserted := 0
	for _, in := range ins {
		dup := false
		for _, have := range f.inferences {
			if have.SourceRef == in.SourceRef {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		f.inferences = append(f.inferences, in)
		inserted++
	}
	return inserted, nil
}

type fakeValuation struct{ val *valuation.Valuation }

func (f *fakeValuation) Latest() *valuation.Valuation { return f.val }

type fakeImporter struct {
	res importer.Result
	err error
}

func (f *fakeImporter) ImportFile(context.Context) (importer.Result, error) {
	return f.res, f.err
}

func newTestServer(t *testing.T, cfg ServerConfig) *httptest.Server {
	t.Helper()
	if cfg.Ledger == nil {
		cfg.Ledger = &fakeLedger{}
	}
	srv, err := NewServer(cfg)
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, ServerConfig{})
	var body map[string]string
	code := getJSON(t, ts.URL+"/healthz", &body)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
}

func TestValuationEndpoint(t *testing.T) {
	t.Run("before first tick", func(t *testing.T) {
		ts := newTestServer(t, ServerConfig{Valuation: &fakeValuation{}})
		code := getJSON(t, ts.URL+"/api/valuation", nil)
		assert.Equal(t, http.StatusServiceUnavailable, code)
	})

	t.Run("after tick", func(t *testing.T) {
		val := &valuation.Valuation{
			Reporting:   "JPY",
			TotalAssets: decimal.NewFromInt(103350),
			Degraded:    []string{"EUR"},
		}
		ts := newTestServer(t, ServerConfig{Valuation: &fakeValuation{val: val}})
		var body struct {
			Reporting string   `json:"reporting_currency"`
			Degraded  []string `json:"degraded"`
		}
		code := getJSON(t, ts.URL+"/api/valuation", &body)
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "JPY", body.Reporting)
		assert.Equal(t, []string{"EUR"}, body.Degraded)
	})
}

func TestLinksEndpoint(t *testing.T) {
	store := &fakeLedger{
		trades: []ledger.Trade{{ID: 1}, {ID: 2}, {ID: 3}},
		links:  []ledger.Link{{TradeID: 1, InferenceID: 10}},
	}
	ts := newTestServer(t, ServerConfig{Ledger: store})

	var body struct {
		Links    []ledger.Link `json:"links"`
		Linked   int64         `json:"linked_count"`
		Unlinked int64         `json:"unlinked_count"`
	}
	code := getJSON(t, ts.URL+"/api/links", &body)
	assert.Equal(t, http.StatusOK, code)
	require.Len(t, body.Links, 1)
	assert.Equal(t, int64(1), body.Linked)
	assert.Equal(t, int64(2), body.Unlinked)
}

func TestTradesLimit(t *testing.T) {
	store := &fakeLedger{}
	for i := 1; i <= 5; i++ {
		store.trades = append(store.trades, ledger.Trade{ID: int64(i)})
	}
	ts := newTestServer(t, ServerConfig{Ledger: store})

	var body struct {
		Trades []ledger.Trade `json:"trades"`
		Count  int            `json:"count"`
	}
	code := getJSON(t, ts.URL+"/api/trades?limit=2", &body)
	assert.Equal(t, http.StatusOK, code)
	require.Equal(t, 2, body.Count)
	// keeps the most recent tail
	assert.Equal(t, int64(4), body.Trades[0].ID)
	assert.Equal(t, int64(5), body.Trades[1].ID)
}

func TestSummaryEndpoint(t *testing.T) {
	pnl := 120.0
	store := &fakeLedger{trades: []ledger.Trade{
		{ID: 1, Timestamp: time.Now().Add(-time.Hour), RealizedPnL: &pnl},
		{ID: 2, Timestamp: time.Now().Add(-2 * time.Hour)},
	}}
	ts := newTestServer(t, ServerConfig{Ledger: store})

	var body struct {
		Period      string `json:"period"`
		TotalTrades int    `json:"total_trades"`
	}
	code := getJSON(t, ts.URL+"/api/summary?period=daily", &body)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "daily", body.Period)
	assert.Equal(t, 1, body.TotalTrades)
}

func TestImportEndpoint(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		ts := newTestServer(t, ServerConfig{})
		resp, err := http.Post(ts.URL+"/api/import", "application/json", nil)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("runs import", func(t *testing.T) {
		ts := newTestServer(t, ServerConfig{
			Importer: &fakeImporter{res: importer.Result{Seen: 3, Imported: 2, Skipped: 1}},
		})
		resp, err := http.Post(ts.URL+"/api/import", "application/json", nil)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		var res importer.Result
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
		assert.Equal(t, 2, res.Imported)
	})
}

func TestSubmitInferences(t *testing.T) {
	store := &fakeLedger{}
	ts := newTestServer(t, ServerConfig{Ledger: store})

	payload := `[
		{"source_ref": "inf-1", "timestamp": "2024-03-01T09:00:00Z", "raw_content": "buy usd", "actions": [{"pair": "USD/JPY", "action": "buy"}]},
		{"source_ref": "inf-2", "timestamp": "2024-03-01T10:00:00Z"}
	]`
	post := func() map[string]int {
		resp, err := http.Post(ts.URL+"/api/inferences", "application/json", strings.NewReader(payload))
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var body map[string]int
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		return body
	}

	body := post()
	assert.Equal(t, 2, body["received"])
	assert.Equal(t, 2, body["inserted"])
	require.Len(t, store.inferences, 2)
	assert.Equal(t, "inf-1", store.inferences[0].SourceRef)

	// re-posting the batch inserts nothing
	body = post()
	assert.Equal(t, 0, body["inserted"])
	require.Len(t, store.inferences, 2)

	t.Run("rejects missing source_ref", func(t *testing.T) {
		resp, err := http.Post(ts.URL+"/api/inferences", "application/json",
			strings.NewReader(`[{"timestamp": "2024-03-01T09:00:00Z"}]`))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}
