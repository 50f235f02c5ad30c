package ledger

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Store owns the durable trade ledger: trades, inference records, links
// and alert states. Trades and links are append-only; alert states are
// the only mutable rows and are guarded by an optimistic version.
type Store struct {
	db *gorm.DB
}

// Open initializes the SQLite-backed store at path, creating the parent
// directory and migrating the schema.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("ledger: store path cannot be empty")
	}
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(
		&tradeModel{},
		&inferenceModel{},
		&linkModel{},
		&alertStateModel{},
	); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite + WAL: a couple of connections keeps concurrent job ticks
	// and HTTP reads from serializing on a single handle while staying
	// below the write-lock contention point.
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &Store{db: db}, nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// --------------------- Trades -------------------------

// ImportTrades inserts a batch of trades in one transaction. The batch
// is all-or-nothing: a duplicate external id fails the whole import so
// a concurrent reconstruction never observes a half-applied file.
func (s *Store) ImportTrades(ctx context.Context, trades []Trade) (int, error) {
	if len(trades) == 0 {
		return 0, nil
	}
	now := time.Now()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, t := range trades {
			m := newTradeModel(t, now)
			m.ID = 0
			if err := tx.Create(&m).Error; err != nil {
				if isUniqueViolation(err) {
					return fmt.Errorf("%w: %s", ErrDuplicateTrade, t.ExternalID)
				}
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(trades), nil
}

// ListTradesOrdered returns the full trade history ordered by
// (timestamp, id) ascending, the canonical replay order.
func (s *Store) ListTradesOrdered(ctx context.Context) ([]Trade, error) {
	var models []tradeModel
	if err := s.db.WithContext(ctx).
		Order("timestamp ASC, id ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]Trade, 0, len(models))
	for _, m := range models {
		out = append(out, m.toTrade())
	}
	return out, nil
}

// ListClosedTradesBetween returns trades with a recorded realized PnL
// inside [from, to), for performance reporting.
func (s *Store) ListClosedTradesBetween(ctx context.Context, from, to time.Time) ([]Trade, error) {
	var models []tradeModel
	if err := s.db.WithContext(ctx).
		Where("realized_pnl IS NOT NULL AND timestamp >= ? AND timestamp < ?", from.Unix(), to.Unix()).
		Order("timestamp ASC, id ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]Trade, 0, len(models))
	for _, m := range models {
		out = append(out, m.toTrade())
	}
	return out, nil
}

func (s *Store) CountTrades(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&tradeModel{}).Count(&n).Error
	return n, err
}

// HasTrade reports whether a trade with the given external id exists.
func (s *Store) HasTrade(ctx context.Context, externalID string) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&tradeModel{}).
		Where("external_id = ?", externalID).Count(&n).Error
	return n > 0, err
}

// --------------------- Inferences -------------------------

// InsertInferences appends inference records, silently skipping source
// refs already present (the collector re-reads overlapping windows).
func (s *Store) InsertInferences(ctx context.Context, ins []Inference) (int, error) {
	if len(ins) == 0 {
		return 0, nil
	}
	now := time.Now()
	inserted := 0
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, in := range ins {
			m := newInferenceModel(in, now)
			m.ID = 0
			res := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "source_ref"}},
				DoNothing: true,
			}).Create(&m)
			if res.Error != nil {
				return res.Error
			}
			inserted += int(res.RowsAffected)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// ListInferencesBetween returns inference records inside [from, to]
// ordered by timestamp then id.
func (s *Store) ListInferencesBetween(ctx context.Context, from, to time.Time) ([]Inference, error) {
	var models []inferenceModel
	if err := s.db.WithContext(ctx).
		Where("timestamp >= ? AND timestamp <= ?", from.Unix(), to.Unix()).
		Order("timestamp ASC, id ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]Inference, 0, len(models))
	for _, m := range models {
		out = append(out, m.toInference())
	}
	return out, nil
}

// --------------------- Links -------------------------

// UnlinkedTrades returns trades without a link row, oldest first.
func (s *Store) UnlinkedTrades(ctx context.Context) ([]Trade, error) {
	var models []tradeModel
	if err := s.db.WithContext(ctx).
		Where("id NOT IN (?)", s.db.Model(&linkModel{}).Select("trade_id")).
		Order("timestamp ASC, id ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]Trade, 0, len(models))
	for _, m := range models {
		out = append(out, m.toTrade())
	}
	return out, nil
}

// CreateLinks persists links, ignoring trades already linked by an
// overlapping run. The unique index on trade_id is the at-most-once
// guarantee; the insert is conflict-tolerant by construction.
func (s *Store) CreateLinks(ctx context.Context, links []Link) (int, error) {
	if len(links) == 0 {
		return 0, nil
	}
	now := time.Now().Unix()
	created := 0
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, l := range links {
			m := linkModel{
				TradeID:         l.TradeID,
				InferenceID:     l.InferenceID,
				DistanceSeconds: l.DistanceSeconds,
				CreatedAtUnix:   now,
			}
			res := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "trade_id"}},
				DoNothing: true,
			}).Create(&m)
			if res.Error != nil {
				return res.Error
			}
			created += int(res.RowsAffected)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return created, nil
}

// ListLinks returns all links, newest first.
func (s *Store) ListLinks(ctx context.Context, limit int) ([]Link, error) {
	q := s.db.WithContext(ctx).Order("created_at DESC, trade_id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var models []linkModel
	if err := q.Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]Link, 0, len(models))
	for _, m := range models {
		out = append(out, m.toLink())
	}
	return out, nil
}

func (s *Store) CountLinks(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&linkModel{}).Count(&n).Error
	return n, err
}

func (s *Store) CountUnlinked(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&tradeModel{}).
		Where("id NOT IN (?)", s.db.Model(&linkModel{}).Select("trade_id")).
		Count(&n).Error
	return n, err
}

// --------------------- Alert state -------------------------

func (s *Store) GetAlertState(ctx context.Context, key string) (AlertState, error) {
	var m alertStateModel
	err := s.db.WithContext(ctx).Where("key = ?", key).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return AlertState{}, ErrNotFound
	}
	if err != nil {
		return AlertState{}, err
	}
	return m.toState(), nil
}

func (s *Store) ListAlertStates(ctx context.Context) ([]AlertState, error) {
	var models []alertStateModel
	if err := s.db.WithContext(ctx).Order("key ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]AlertState, 0, len(models))
	for _, m := range models {
		out = append(out, m.toState())
	}
	return out, nil
}

// SaveAlertState persists an alert state with an optimistic version
// check. st.Version must be the version that was read (zero for a row
// that did not exist); the row is written with Version+1. A concurrent
// tick that read the same version loses with ErrVersionConflict and
// must treat its pending alert as already handled.
func (s *Store) SaveAlertState(ctx context.Context, st AlertState) error {
	now := time.Now()
	m := newAlertStateModel(st, now)
	m.Version = st.Version + 1
	if st.Version == 0 {
		res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoNothing: true,
		}).Create(&m)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrVersionConflict
		}
		return nil
	}
	res := s.db.WithContext(ctx).Model(&alertStateModel{}).
		Where("key = ? AND version = ?", st.Key, st.Version).
		Updates(map[string]any{
			"last_side":            m.LastSide,
			"last_fired_at":        m.LastFiredAtUnix,
			"last_fired_direction": m.LastFiredDirection,
			"last_value":           m.LastValue,
			"version":              m.Version,
			"updated_at":           m.UpdatedAtUnix,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrVersionConflict
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "constraint failed")
}
