// Package importer loads executed trades from the external transaction
// log into the ledger. The file is a cumulative export, so import is
// idempotent: records whose external id already exists are skipped and
// the remainder lands in one atomic batch.
package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"fxledger/internal/ledger"
	"fxledger/internal/logger"
	"fxledger/internal/pkg/fxpair"
)

// Ledger is the slice of the store the importer writes through.
type Ledger interface {
	HasTrade(ctx context.Context, externalID string) (bool, error)
	ImportTrades(ctx context.Context, trades []ledger.Trade) (int, error)
}

// RecordError reports one rejected record. Rejections are fatal for the
// record and surfaced, never silently corrected.
type RecordError struct {
	ExternalID string `json:"external_id"`
	Reason     string `json:"reason"`
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("importer: record %q rejected: %s", e.ExternalID, e.Reason)
}

// Result summarizes one import run.
type Result struct {
	Seen     int           `json:"seen"`
	Imported int           `json:"imported"`
	Skipped  int           `json:"skipped"`
	Rejected []RecordError `json:"rejected,omitempty"`
}

// Importer reads, validates and normalizes the trade log.
type Importer struct {
	path      string
	store     Ledger
	schema    *jsonschema.Schema
	allowedCy map[string]struct{}
	nowFn     func() time.Time
}

// New builds an importer. allowedCurrencies is the set of tracked
// currency codes; a record whose pair mentions anything else is
// rejected as unknown.
func New(path string, store Ledger, allowedCurrencies []string) *Importer {
	allowed := make(map[string]struct{}, len(allowedCurrencies))
	for _, c := range allowedCurrencies {
		allowed[strings.ToUpper(c)] = struct{}{}
	}
	return &Importer{
		path:      path,
		store:     store,
		schema:    compileSchema(),
		allowedCy: allowed,
		nowFn:     time.Now,
	}
}

// ImportFile runs one full import pass over the configured file.
// Schema or normalization failures reject the individual record; the
// accepted remainder is inserted all-or-nothing.
func (im *Importer) ImportFile(ctx context.Context) (Result, error) {
	body, err := os.ReadFile(im.path)
	if err != nil {
		return Result{}, fmt.Errorf("importer: reading %s failed: %w", im.path, err)
	}
	return im.importBytes(ctx, body)
}

func (im *Importer) importBytes(ctx context.Context, body []byte) (Result, error) {
	records, err := decodeRecords(body)
	if err != nil {
		return Result{}, err
	}

	var res Result
	res.Seen = len(records)
	fresh := make([]ledger.Trade, 0, len(records))
	for _, raw := range records {
		trade, rejectErr := im.normalize(raw)
		if rejectErr != nil {
			logger.Errorf("%v", rejectErr)
			res.Rejected = append(res.Rejected, *rejectErr)
			continue
		}
		exists, err := im.store.HasTrade(ctx, trade.ExternalID)
		if err != nil {
			return Result{}, err
		}
		if exists {
			res.Skipped++
			continue
		}
		fresh = append(fresh, trade)
	}

	if len(fresh) > 0 {
		n, err := im.store.ImportTrades(ctx, fresh)
		if err != nil {
			return Result{}, err
		}
		res.Imported = n
	}
	logger.Infof("importer: seen=%d imported=%d skipped=%d rejected=%d",
		res.Seen, res.Imported, res.Skipped, len(res.Rejected))
	return res, nil
}

// decodeRecords accepts either a bare array or the exporter's
// {"transactions": [...]} wrapper.
func decodeRecords(body []byte) ([]map[string]any, error) {
	var wrapper struct {
		Transactions []map[string]any `json:"transactions"`
	}
	if err := json.Unmarshal(body, &wrapper); err == nil && wrapper.Transactions != nil {
		return wrapper.Transactions, nil
	}
	var records []map[string]any
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("importer: trade log is neither an array nor a transactions wrapper: %w", err)
	}
	return records, nil
}

func (im *Importer) normalize(raw map[string]any) (ledger.Trade, *RecordError) {
	externalID := stringField(raw, "id")
	if err := im.schema.Validate(raw); err != nil {
		return ledger.Trade{}, &RecordError{ExternalID: externalID, Reason: err.Error()}
	}

	ts, err := parseTimestamp(firstOf(raw, "timestamp", "time", "date"))
	if err != nil {
		return ledger.Trade{}, &RecordError{ExternalID: externalID, Reason: err.Error()}
	}

	pairRaw := stringField(raw, "pair", "symbol", "currency_pair")
	pair, err := fxpair.Parse(pairRaw)
	if err != nil {
		return ledger.Trade{}, &RecordError{ExternalID: externalID, Reason: fmt.Sprintf("unparsable pair %q", pairRaw)}
	}
	if len(im.allowedCy) > 0 {
		if _, ok := im.allowedCy[pair.Base()]; !ok {
			return ledger.Trade{}, &RecordError{ExternalID: externalID, Reason: fmt.Sprintf("unknown currency %s", pair.Base())}
		}
		if _, ok := im.allowedCy[pair.Quote()]; !ok {
			return ledger.Trade{}, &RecordError{ExternalID: externalID, Reason: fmt.Sprintf("unknown currency %s", pair.Quote())}
		}
	}

	action, err := parseAction(stringField(raw, "action", "side", "type"))
	if err != nil {
		return ledger.Trade{}, &RecordError{ExternalID: externalID, Reason: err.Error()}
	}

	qty := floatField(raw, "amount", "volume", "size")
	if qty <= 0 {
		return ledger.Trade{}, &RecordError{ExternalID: externalID, Reason: "missing or non-positive quantity"}
	}
	price := floatField(raw, "price", "rate", "entry_price")
	if price <= 0 {
		return ledger.Trade{}, &RecordError{ExternalID: externalID, Reason: "missing or non-positive price"}
	}
	fee := floatField(raw, "fee")
	if fee < 0 {
		return ledger.Trade{}, &RecordError{ExternalID: externalID, Reason: "negative fee"}
	}

	trade := ledger.Trade{
		ExternalID: externalID,
		Timestamp:  ts,
		Pair:       pair,
		Action:     action,
		Quantity:   qty,
		Price:      price,
		Fee:        fee,
	}
	if pl, ok := numberIn(raw, "profit_loss", "pnl"); ok {
		trade.RealizedPnL = &pl
	}
	return trade, nil
}

var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999",
	"2006/01/02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999",
	time.RFC3339,
	"2006-01-02",
}

func parseTimestamp(v any) (time.Time, error) {
	switch val := v.(type) {
	case nil:
		return time.Time{}, fmt.Errorf("missing timestamp")
	case float64:
		return time.Unix(int64(val), 0).UTC(), nil
	case string:
		s := strings.TrimSpace(val)
		for _, layout := range timestampLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts.UTC(), nil
			}
		}
		if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.Unix(unix, 0).UTC(), nil
		}
		return time.Time{}, fmt.Errorf("unparsable timestamp %q", s)
	default:
		return time.Time{}, fmt.Errorf("unsupported timestamp type %T", v)
	}
}

func parseAction(raw string) (ledger.Action, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "buy", "long":
		return ledger.ActionBuy, nil
	case "sell", "short":
		return ledger.ActionSell, nil
	case "close":
		return ledger.ActionClose, nil
	default:
		return "", fmt.Errorf("unknown action %q", raw)
	}
}

func firstOf(raw map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := raw[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func stringField(raw map[string]any, keys ...string) string {
	switch v := firstOf(raw, keys...).(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

func floatField(raw map[string]any, keys ...string) float64 {
	v, _ := numberIn(raw, keys...)
	return v
}

func numberIn(raw map[string]any, keys ...string) (float64, bool) {
	if v, ok := firstOf(raw, keys...).(float64); ok {
		return v, true
	}
	return 0, false
}
