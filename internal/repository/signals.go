package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"alphaspike/internal/domain/models"
)

// SaveSignals replaces one feature's signal set for a scan date. The
// whole replacement runs in a transaction so a reread sees either the
// old set or the new one, never a mix. Detector metrics are stored both
// as the signal's JSON payload and flattened into feature_metrics for
// downstream research queries.
func (s *Store) SaveSignals(ctx context.Context, feature, date string, signals []models.FeatureSignal) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM feature_signals WHERE feature = ? AND date = ?", feature, date); err != nil {
		return fmt.Errorf("clear signals: %w", err)
	}

	for _, sig := range signals {
		metrics := sig.Metrics
		if metrics == nil {
			metrics = map[string]float64{}
		}
		payload, err := json.Marshal(metrics)
		if err != nil {
			return fmt.Errorf("marshal metrics: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT OR REPLACE INTO feature_signals (feature, symbol, date, metrics) VALUES (?, ?, ?, ?)",
			feature, sig.Symbol, date, string(payload)); err != nil {
			return fmt.Errorf("insert signal %s: %w", sig.Symbol, err)
		}
		for name, value := range metrics {
			if _, err := tx.ExecContext(ctx,
				"INSERT OR REPLACE INTO feature_metrics (feature, symbol, date, name, value) VALUES (?, ?, ?, ?, ?)",
				feature, sig.Symbol, date, name, value); err != nil {
				return fmt.Errorf("insert metric %s %s: %w", sig.Symbol, name, err)
			}
		}
	}

	if len(signals) == 0 {
		// Sentinel row with an empty symbol: "scanned, nothing fired".
		// Without it a zero-hit scan would never become a cache hit.
		if _, err := tx.ExecContext(ctx,
			"INSERT OR REPLACE INTO feature_signals (feature, symbol, date, metrics) VALUES (?, '', ?, '{}')",
			feature, date); err != nil {
			return fmt.Errorf("mark scanned: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// GetSignalSet reads one feature's signal set for a scan date.
// ErrNotFound means the scan has not been persisted.
func (s *Store) GetSignalSet(ctx context.Context, feature, date string) (models.SignalSet, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT symbol FROM feature_signals WHERE feature = ? AND date = ? AND symbol != '' ORDER BY symbol",
		feature, date)
	if err != nil {
		return models.SignalSet{}, fmt.Errorf("get signal set: %w", err)
	}
	defer rows.Close()

	set := models.SignalSet{Feature: feature, Date: date}
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return models.SignalSet{}, fmt.Errorf("scan symbol: %w", err)
		}
		set.Symbols = append(set.Symbols, sym)
	}
	if err := rows.Err(); err != nil {
		return models.SignalSet{}, fmt.Errorf("rows: %w", err)
	}
	if len(set.Symbols) == 0 {
		// Distinguish "scanned, nothing fired" from "never scanned".
		var n int
		if err := s.db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM feature_signals WHERE feature = ? AND date = ?",
			feature, date).Scan(&n); err != nil {
			return models.SignalSet{}, fmt.Errorf("count signals: %w", err)
		}
		if n == 0 {
			return models.SignalSet{}, ErrNotFound
		}
	}
	return set, nil
}

// ListSignals returns persisted signals filtered by feature and date
// range; empty arguments widen the filter. Sentinel rows are excluded.
func (s *Store) ListSignals(ctx context.Context, feature, from, to string) ([]models.FeatureSignal, error) {
	query := "SELECT feature, symbol, date, metrics FROM feature_signals WHERE symbol != ''"
	args := []interface{}{}
	if feature != "" {
		query += " AND feature = ?"
		args = append(args, feature)
	}
	if from != "" {
		query += " AND date >= ?"
		args = append(args, from)
	}
	if to != "" {
		query += " AND date <= ?"
		args = append(args, to)
	}
	query += " ORDER BY feature, date, symbol"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list signals: %w", err)
	}
	defer rows.Close()

	var out []models.FeatureSignal
	for rows.Next() {
		var sig models.FeatureSignal
		var metrics string
		if err := rows.Scan(&sig.Feature, &sig.Symbol, &sig.Date, &metrics); err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		if err := json.Unmarshal([]byte(metrics), &sig.Metrics); err != nil {
			return nil, fmt.Errorf("unmarshal metrics: %w", err)
		}
		out = append(out, sig)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

// DeleteFeatureData clears persisted scan results. An empty feature
// clears every feature. Bars and sync_status are primary data, never
// touched here.
func (s *Store) DeleteFeatureData(ctx context.Context, feature string) (int, error) {
	var (
		res sql.Result
		err error
	)
	if feature == "" {
		res, err = s.db.ExecContext(ctx, "DELETE FROM feature_signals")
		if err == nil {
			_, err = s.db.ExecContext(ctx, "DELETE FROM feature_metrics")
		}
	} else {
		res, err = s.db.ExecContext(ctx, "DELETE FROM feature_signals WHERE feature = ?", feature)
		if err == nil {
			_, err = s.db.ExecContext(ctx, "DELETE FROM feature_metrics WHERE feature = ?", feature)
		}
	}
	if err != nil {
		return 0, fmt.Errorf("delete feature data: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}

// DistinctFeatures lists feature names with persisted signals.
func (s *Store) DistinctFeatures(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT DISTINCT feature FROM feature_signals ORDER BY feature")
	if err != nil {
		return nil, fmt.Errorf("distinct features: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var f string
		if err := rows.Scan(&f); err != nil {
			return nil, fmt.Errorf("scan feature: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}
