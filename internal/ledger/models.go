package ledger

import (
	"time"

	"gorm.io/datatypes"

	"fxledger/internal/pkg/fxpair"
)

type tradeModel struct {
	ID            int64    `gorm:"column:id;primaryKey"`
	ExternalID    string   `gorm:"column:external_id;uniqueIndex"`
	TimestampUnix int64    `gorm:"column:timestamp;index"`
	Pair          string   `gorm:"column:pair"`
	Action        string   `gorm:"column:action"`
	Quantity      float64  `gorm:"column:quantity"`
	Price         float64  `gorm:"column:price"`
	Fee           float64  `gorm:"column:fee"`
	RealizedPnL   *float64 `gorm:"column:realized_pnl"`
	CreatedAtUnix int64    `gorm:"column:created_at"`
}

func (tradeModel) TableName() string { return "trades" }

func newTradeModel(t Trade, now time.Time) tradeModel {
	return tradeModel{
		ID:            t.ID,
		ExternalID:    t.ExternalID,
		TimestampUnix: t.Timestamp.UTC().Unix(),
		Pair:          t.Pair.String(),
		Action:        string(t.Action),
		Quantity:      t.Quantity,
		Price:         t.Price,
		Fee:           t.Fee,
		RealizedPnL:   t.RealizedPnL,
		CreatedAtUnix: now.Unix(),
	}
}

func (m tradeModel) toTrade() Trade {
	return Trade{
		ID:          m.ID,
		ExternalID:  m.ExternalID,
		Timestamp:   time.Unix(m.TimestampUnix, 0).UTC(),
		Pair:        fxpair.Pair(m.Pair),
		Action:      Action(m.Action),
		Quantity:    m.Quantity,
		Price:       m.Price,
		Fee:         m.Fee,
		RealizedPnL: m.RealizedPnL,
	}
}

type inferenceModel struct {
	ID            int64          `gorm:"column:id;primaryKey"`
	SourceRef     string         `gorm:"column:source_ref;uniqueIndex"`
	TimestampUnix int64          `gorm:"column:timestamp;index"`
	RawContent    string         `gorm:"column:raw_content;type:TEXT"`
	Actions       datatypes.JSON `gorm:"column:actions;type:TEXT"`
	CreatedAtUnix int64          `gorm:"column:created_at"`
}

func (inferenceModel) TableName() string { return "inferences" }

func newInferenceModel(in Inference, now time.Time) inferenceModel {
	return inferenceModel{
		ID:            in.ID,
		SourceRef:     in.SourceRef,
		TimestampUnix: in.Timestamp.UTC().Unix(),
		RawContent:    in.RawContent,
		Actions:       in.Actions,
		CreatedAtUnix: now.Unix(),
	}
}

func (m inferenceModel) toInference() Inference {
	return Inference{
		ID:         m.ID,
		SourceRef:  m.SourceRef,
		Timestamp:  time.Unix(m.TimestampUnix, 0).UTC(),
		RawContent: m.RawContent,
		Actions:    m.Actions,
	}
}

type linkModel struct {
	ID              int64   `gorm:"column:id;primaryKey"`
	TradeID         int64   `gorm:"column:trade_id;uniqueIndex"`
	InferenceID     int64   `gorm:"column:inference_id;index"`
	DistanceSeconds float64 `gorm:"column:distance_seconds"`
	CreatedAtUnix   int64   `gorm:"column:created_at"`
}

func (linkModel) TableName() string { return "trade_links" }

func (m linkModel) toLink() Link {
	return Link{
		TradeID:         m.TradeID,
		InferenceID:     m.InferenceID,
		DistanceSeconds: m.DistanceSeconds,
		CreatedAt:       time.Unix(m.CreatedAtUnix, 0).UTC(),
	}
}

type alertStateModel struct {
	Key                string  `gorm:"column:key;primaryKey"`
	LastSide           string  `gorm:"column:last_side"`
	LastFiredAtUnix    *int64  `gorm:"column:last_fired_at"`
	LastFiredDirection string  `gorm:"column:last_fired_direction"`
	LastValue          float64 `gorm:"column:last_value"`
	Version            int64   `gorm:"column:version"`
	UpdatedAtUnix      int64   `gorm:"column:updated_at"`
}

func (alertStateModel) TableName() string { return "alert_states" }

func (m alertStateModel) toState() AlertState {
	st := AlertState{
		Key:                m.Key,
		LastSide:           Side(m.LastSide),
		LastFiredDirection: m.LastFiredDirection,
		LastValue:          m.LastValue,
		Version:            m.Version,
		UpdatedAt:          time.Unix(m.UpdatedAtUnix, 0).UTC(),
	}
	if m.LastFiredAtUnix != nil {
		t := time.Unix(*m.LastFiredAtUnix, 0).UTC()
		st.LastFiredAt = &t
	}
	return st
}

func newAlertStateModel(st AlertState, now time.Time) alertStateModel {
	m := alertStateModel{
		Key:                st.Key,
		LastSide:           string(st.LastSide),
		LastFiredDirection: st.LastFiredDirection,
		LastValue:          st.LastValue,
		Version:            st.Version,
		UpdatedAtUnix:      now.Unix(),
	}
	if st.LastFiredAt != nil {
		u := st.LastFiredAt.UTC().Unix()
		m.LastFiredAtUnix = &u
	}
	return m
}
