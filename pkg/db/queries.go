// Package db persists the decision journal: executed deals, per-day instance
// summaries, and the risk/dedup state each instance restores on startup.
package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFound is returned when no row matches.
var ErrNotFound = errors.New("record not found")

// Store provides the journal queries.
type Store struct {
	db *sql.DB
}

// NewStore creates a Store over an opened database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// ----------------------------------------
// Deal journal
// ----------------------------------------

// InsertDeal journals one execution event. Replays of the same deal id and
// kind are ignored, matching the engine's at-most-once semantics.
func (s *Store) InsertDeal(ctx context.Context, d DealRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO deals (deal_id, instance_id, kind, symbol, side, volume, price, profit, reason, executed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(deal_id, kind) DO NOTHING
	`, d.DealID, d.InstanceID, d.Kind, d.Symbol, d.Side, d.Volume, d.Price, d.Profit, d.Reason, d.ExecutedAt)
	if err != nil {
		return fmt.Errorf("insert deal: %w", err)
	}
	return nil
}

// RecentDeals returns the latest journaled deals for an instance.
func (s *Store) RecentDeals(ctx context.Context, instanceID string, limit int) ([]DealRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT deal_id, instance_id, kind, symbol, side, volume, price, profit, reason, executed_at
		FROM deals
		WHERE instance_id = ?
		ORDER BY executed_at DESC
		LIMIT ?
	`, instanceID, limit)
	if err != nil {
		return nil, fmt.Errorf("query deals: %w", err)
	}
	defer rows.Close()

	var deals []DealRecord
	for rows.Next() {
		var d DealRecord
		if err := rows.Scan(&d.DealID, &d.InstanceID, &d.Kind, &d.Symbol, &d.Side,
			&d.Volume, &d.Price, &d.Profit, &d.Reason, &d.ExecutedAt); err != nil {
			return nil, fmt.Errorf("scan deal: %w", err)
		}
		deals = append(deals, d)
	}
	return deals, rows.Err()
}

// ----------------------------------------
// Daily summaries
// ----------------------------------------

// UpsertDailySummary stores one instance-day of statistics, replacing any
// earlier snapshot for the same day.
func (s *Store) UpsertDailySummary(ctx context.Context, rec SummaryRecord) error {
	blocks, err := json.Marshal(rec.Blocks)
	if err != nil {
		return fmt.Errorf("marshal blocks: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO daily_summaries (instance_id, day, bars_evaluated, signals_found, trades_sent, blocks, equity)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(instance_id, day) DO UPDATE SET
			bars_evaluated = excluded.bars_evaluated,
			signals_found = excluded.signals_found,
			trades_sent = excluded.trades_sent,
			blocks = excluded.blocks,
			equity = excluded.equity
	`, rec.InstanceID, rec.Day, rec.BarsEvaluated, rec.SignalsFound, rec.TradesSent, string(blocks), rec.Equity)
	if err != nil {
		return fmt.Errorf("upsert daily summary: %w", err)
	}
	return nil
}

// RecentSummaries returns the latest daily summaries for an instance.
func (s *Store) RecentSummaries(ctx context.Context, instanceID string, limit int) ([]SummaryRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT instance_id, day, bars_evaluated, signals_found, trades_sent, blocks, equity
		FROM daily_summaries
		WHERE instance_id = ?
		ORDER BY day DESC
		LIMIT ?
	`, instanceID, limit)
	if err != nil {
		return nil, fmt.Errorf("query summaries: %w", err)
	}
	defer rows.Close()

	var out []SummaryRecord
	for rows.Next() {
		var rec SummaryRecord
		var blocks string
		if err := rows.Scan(&rec.InstanceID, &rec.Day, &rec.BarsEvaluated,
			&rec.SignalsFound, &rec.TradesSent, &blocks, &rec.Equity); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		if err := json.Unmarshal([]byte(blocks), &rec.Blocks); err != nil {
			return nil, fmt.Errorf("unmarshal blocks: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ----------------------------------------
// Instance state
// ----------------------------------------

// SaveInstanceState persists the instance's risk and dedup state.
func (s *Store) SaveInstanceState(ctx context.Context, st InstanceState) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO instance_state (instance_id, risk_state, dedup_state, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(instance_id) DO UPDATE SET
			risk_state = excluded.risk_state,
			dedup_state = excluded.dedup_state,
			updated_at = CURRENT_TIMESTAMP
	`, st.InstanceID, string(st.RiskState), string(st.DedupState))
	if err != nil {
		return fmt.Errorf("save instance state: %w", err)
	}
	return nil
}

// LoadInstanceState restores the instance's persisted state, or ErrNotFound
// on a cold start.
func (s *Store) LoadInstanceState(ctx context.Context, instanceID string) (InstanceState, error) {
	var st InstanceState
	var risk, dedup string
	err := s.db.QueryRowContext(ctx, `
		SELECT instance_id, risk_state, dedup_state, updated_at
		FROM instance_state
		WHERE instance_id = ?
	`, instanceID).Scan(&st.InstanceID, &risk, &dedup, &st.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return InstanceState{}, ErrNotFound
	}
	if err != nil {
		return InstanceState{}, fmt.Errorf("load instance state: %w", err)
	}
	st.RiskState = []byte(risk)
	st.DedupState = []byte(dedup)
	return st, nil
}
