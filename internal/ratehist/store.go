// Package ratehist persists the stream of fetched exchange rates and
// the indicator snapshots derived from it. It runs on a plain SQLite
// connection, separate from the gorm-backed trade ledger, so the
// high-churn observation table never contends with bookkeeping writes.
package ratehist

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"fxledger/internal/pkg/fxpair"
)

// Observation is one fetched rate.
type Observation struct {
	ID        int64       `json:"id"`
	Timestamp time.Time   `json:"ts"`
	Pair      fxpair.Pair `json:"pair"`
	Rate      float64     `json:"rate"`
	Source    string      `json:"source"`
	Stale     bool        `json:"stale"`
}

// IndicatorSnapshot holds one computed set of technical indicators for
// a pair. Values that could not be computed (not enough history) stay
// nil and are stored as NULL.
type IndicatorSnapshot struct {
	Pair       fxpair.Pair `json:"pair"`
	Timestamp  time.Time   `json:"ts"`
	RSI14      *float64    `json:"rsi_14,omitempty"`
	MACD       *float64    `json:"macd,omitempty"`
	MACDSignal *float64    `json:"macd_signal,omitempty"`
	MACDHist   *float64    `json:"macd_hist,omitempty"`
	SMA20      *float64    `json:"sma_20,omitempty"`
	EMA50      *float64    `json:"ema_50,omitempty"`
	BBUpper    *float64    `json:"bb_upper,omitempty"`
	BBMiddle   *float64    `json:"bb_middle,omitempty"`
	BBLower    *float64    `json:"bb_lower,omitempty"`
	ADX14      *float64    `json:"adx_14,omitempty"`
}

// Store owns the rate-history SQLite database.
type Store struct {
	mu     sync.Mutex
	db     *sql.DB
	path   string
	ownsDB bool
}

// Open initializes the store at path, creating the schema if needed.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("rate history path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)
	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, path: path, ownsDB: true}, nil
}

// UseExternalDB reuses an already-open SQLite connection.
func (s *Store) UseExternalDB(db *sql.DB) error {
	if db == nil {
		return fmt.Errorf("external db is nil")
	}
	if err := ensureSchema(db); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ownsDB && s.db != nil && s.db != db {
		_ = s.db.Close()
	}
	s.db = db
	s.ownsDB = false
	return nil
}

// Close closes the underlying DB if the store owns it.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	if !s.ownsDB {
		s.db = nil
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func ensureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS rate_observations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts INTEGER NOT NULL,
			pair TEXT NOT NULL,
			rate REAL NOT NULL,
			source TEXT,
			stale INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE INDEX IF NOT EXISTS idx_rate_observations_pair_ts ON rate_observations(pair, ts);`,
		`CREATE TABLE IF NOT EXISTS indicator_snapshots (
			pair TEXT NOT NULL,
			ts INTEGER NOT NULL,
			rsi_14 REAL,
			macd REAL,
			macd_signal REAL,
			macd_hist REAL,
			sma_20 REAL,
			ema_50 REAL,
			bb_upper REAL,
			bb_middle REAL,
			bb_lower REAL,
			adx_14 REAL,
			created_at INTEGER NOT NULL,
			PRIMARY KEY (pair, ts)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_indicator_snapshots_pair_ts ON indicator_snapshots(pair, ts DESC);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) conn() (*sql.DB, error) {
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()
	if db == nil {
		return nil, fmt.Errorf("rate history store is closed")
	}
	return db, nil
}

// Append records one observation.
func (s *Store) Append(ctx context.Context, obs Observation) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	ts := obs.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err = db.ExecContext(ctx,
		`INSERT INTO rate_observations (ts, pair, rate, source, stale) VALUES (?, ?, ?, ?, ?)`,
		ts.UnixMilli(), string(obs.Pair), obs.Rate, obs.Source, boolToInt(obs.Stale))
	return err
}

// RecentRates returns up to limit most recent non-stale rates for a
// pair, ordered oldest first so indicator functions can consume them
// directly.
func (s *Store) RecentRates(ctx context.Context, pair fxpair.Pair, limit int) ([]float64, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 5000 {
		limit = 500
	}
	rows, err := db.QueryContext(ctx, `SELECT rate FROM (
			SELECT id, rate FROM rate_observations
			WHERE pair = ? AND stale = 0
			ORDER BY ts DESC, id DESC LIMIT ?
		) ORDER BY id ASC`, string(pair), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var rates []float64
	for rows.Next() {
		var r float64
		if err := rows.Scan(&r); err != nil {
			return nil, err
		}
		rates = append(rates, r)
	}
	return rates, rows.Err()
}

// ListBetween returns observations for a pair inside [from, to),
// ordered oldest first.
func (s *Store) ListBetween(ctx context.Context, pair fxpair.Pair, from, to time.Time) ([]Observation, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `SELECT id, ts, pair, rate, source, stale
		FROM rate_observations
		WHERE pair = ? AND ts >= ? AND ts < ?
		ORDER BY ts ASC, id ASC`,
		string(pair), from.UnixMilli(), to.UnixMilli())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Observation
	for rows.Next() {
		obs, err := scanObservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, obs)
	}
	return out, rows.Err()
}

// PruneBefore drops observations older than cutoff and returns the
// number removed.
func (s *Store) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	db, err := s.conn()
	if err != nil {
		return 0, err
	}
	res, err := db.ExecContext(ctx,
		`DELETE FROM rate_observations WHERE ts < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// SaveSnapshot upserts one indicator snapshot keyed by (pair, ts).
func (s *Store) SaveSnapshot(ctx context.Context, snap IndicatorSnapshot) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	ts := snap.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err = db.ExecContext(ctx, `INSERT INTO indicator_snapshots
			(pair, ts, rsi_14, macd, macd_signal, macd_hist, sma_20, ema_50, bb_upper, bb_middle, bb_lower, adx_14, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(pair, ts) DO UPDATE SET
			rsi_14=excluded.rsi_14, macd=excluded.macd, macd_signal=excluded.macd_signal,
			macd_hist=excluded.macd_hist, sma_20=excluded.sma_20, ema_50=excluded.ema_50,
			bb_upper=excluded.bb_upper, bb_middle=excluded.bb_middle, bb_lower=excluded.bb_lower,
			adx_14=excluded.adx_14`,
		string(snap.Pair), ts.UnixMilli(),
		nullFloat(snap.RSI14), nullFloat(snap.MACD), nullFloat(snap.MACDSignal), nullFloat(snap.MACDHist),
		nullFloat(snap.SMA20), nullFloat(snap.EMA50),
		nullFloat(snap.BBUpper), nullFloat(snap.BBMiddle), nullFloat(snap.BBLower),
		nullFloat(snap.ADX14), time.Now().UnixMilli())
	return err
}

// LatestSnapshot returns the most recent indicator snapshot for a pair.
func (s *Store) LatestSnapshot(ctx context.Context, pair fxpair.Pair) (IndicatorSnapshot, error) {
	db, err := s.conn()
	if err != nil {
		return IndicatorSnapshot{}, err
	}
	row := db.QueryRowContext(ctx, `SELECT pair, ts, rsi_14, macd, macd_signal, macd_hist,
			sma_20, ema_50, bb_upper, bb_middle, bb_lower, adx_14
		FROM indicator_snapshots WHERE pair = ?
		ORDER BY ts DESC LIMIT 1`, string(pair))
	return scanSnapshot(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanObservation(scanner rowScanner) (Observation, error) {
	var (
		obs    Observation
		ts     int64
		pair   string
		source sql.NullString
		stale  int
	)
	if err := scanner.Scan(&obs.ID, &ts, &pair, &obs.Rate, &source, &stale); err != nil {
		return obs, err
	}
	obs.Timestamp = time.UnixMilli(ts).UTC()
	obs.Pair = fxpair.Pair(pair)
	obs.Source = source.String
	obs.Stale = stale != 0
	return obs, nil
}

func scanSnapshot(scanner rowScanner) (IndicatorSnapshot, error) {
	var (
		snap IndicatorSnapshot
		pair string
		ts   int64
		vals [10]sql.NullFloat64
	)
	err := scanner.Scan(&pair, &ts,
		&vals[0], &vals[1], &vals[2], &vals[3], &vals[4],
		&vals[5], &vals[6], &vals[7], &vals[8], &vals[9])
	if err != nil {
		return snap, err
	}
	snap.Pair = fxpair.Pair(pair)
	snap.Timestamp = time.UnixMilli(ts).UTC()
	fields := []**float64{
		&snap.RSI14, &snap.MACD, &snap.MACDSignal, &snap.MACDHist, &snap.SMA20,
		&snap.EMA50, &snap.BBUpper, &snap.BBMiddle, &snap.BBLower, &snap.ADX14,
	}
	for i, f := range fields {
		if vals[i].Valid {
			v := vals[i].Float64
			*f = &v
		}
	}
	return snap, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullFloat(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}
