package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"alphaspike/internal/domain/models"
)

// AppendBars inserts a fetched window of bars for one symbol and, in
// the same transaction, advances sync_status to the last bar's date.
// Deriving the watermark from the rows keeps last_synced <= MAX(date)
// even when the vendor returns fewer days than requested; the unserved
// tail stays inside the next run's window. Bars are written before
// status so a crash between the two leaves a replayable state:
// re-running the window re-inserts rows that the (symbol, date) key
// de-duplicates. Returns the number of rows actually added.
func (s *Store) AppendBars(ctx context.Context, symbol string, bars models.BarSeries) (int, error) {
	if err := checkOrdering(bars); err != nil {
		return 0, err
	}
	if len(bars) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
        INSERT OR IGNORE INTO bars
        (symbol, date, open, high, low, close, pre_close, change, pct_chg, vol, amount)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	added := 0
	for _, b := range bars {
		res, err := stmt.ExecContext(ctx, symbol, b.Date,
			b.Open, b.High, b.Low, b.Close, b.PreClose, b.Change, b.PctChg, b.Volume, b.Amount)
		if err != nil {
			return 0, fmt.Errorf("insert bar %s %s: %w", symbol, b.Date, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			added += int(n)
		}
	}

	// Status after rows, never before. last_synced only moves forward.
	_, err = tx.ExecContext(ctx, `
        INSERT INTO sync_status (symbol, last_synced) VALUES (?, ?)
        ON CONFLICT(symbol) DO UPDATE SET last_synced = excluded.last_synced
        WHERE excluded.last_synced > sync_status.last_synced
    `, symbol, bars[len(bars)-1].Date)
	if err != nil {
		return 0, fmt.Errorf("update sync status %s: %w", symbol, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return added, nil
}

func checkOrdering(bars models.BarSeries) error {
	for i := 1; i < len(bars); i++ {
		if bars[i].Date <= bars[i-1].Date {
			return fmt.Errorf("%w: %s after %s", ErrIntegrity, bars[i].Date, bars[i-1].Date)
		}
	}
	return nil
}

// GetSyncStatus reads one instrument's sync state. ErrNotFound means
// the instrument has never been synced.
func (s *Store) GetSyncStatus(ctx context.Context, symbol string) (models.SyncStatus, error) {
	var st models.SyncStatus
	err := s.db.QueryRowContext(ctx,
		"SELECT symbol, last_synced FROM sync_status WHERE symbol = ?", symbol,
	).Scan(&st.Symbol, &st.LastSynced)
	if errors.Is(err, sql.ErrNoRows) {
		return models.SyncStatus{}, ErrNotFound
	}
	if err != nil {
		return models.SyncStatus{}, fmt.Errorf("get sync status: %w", err)
	}
	return st, nil
}

// MaxBarDate returns the latest stored bar date for a symbol, or
// ErrNotFound when no bars exist.
func (s *Store) MaxBarDate(ctx context.Context, symbol string) (string, error) {
	var max sql.NullString
	err := s.db.QueryRowContext(ctx,
		"SELECT MAX(date) FROM bars WHERE symbol = ?", symbol,
	).Scan(&max)
	if err != nil {
		return "", fmt.Errorf("max bar date: %w", err)
	}
	if !max.Valid {
		return "", ErrNotFound
	}
	return max.String, nil
}

// CountBars returns the number of stored bars for a symbol.
func (s *Store) CountBars(ctx context.Context, symbol string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM bars WHERE symbol = ?", symbol,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("count bars: %w", err)
	}
	return n, nil
}

// LoadBars materializes bar series for many symbols in one bulk query.
// Symbols with no rows in range are present in the result as empty
// series; only an unreachable store is an error.
func (s *Store) LoadBars(ctx context.Context, symbols []string, start, end string) (map[string]models.BarSeries, error) {
	out := make(map[string]models.BarSeries, len(symbols))
	if len(symbols) == 0 {
		return out, nil
	}
	for _, sym := range symbols {
		out[sym] = models.BarSeries{}
	}

	var sb strings.Builder
	sb.WriteString(`
        SELECT symbol, date, open, high, low, close, pre_close, change, pct_chg, vol, amount
        FROM bars WHERE symbol IN (?` + strings.Repeat(",?", len(symbols)-1) + `)`)
	args := make([]interface{}, 0, len(symbols)+2)
	for _, sym := range symbols {
		args = append(args, sym)
	}
	if start != "" {
		sb.WriteString(" AND date >= ?")
		args = append(args, start)
	}
	if end != "" {
		sb.WriteString(" AND date <= ?")
		args = append(args, end)
	}
	sb.WriteString(" ORDER BY symbol, date")

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("load bars: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var b models.Bar
		if err := rows.Scan(&b.Symbol, &b.Date,
			&b.Open, &b.High, &b.Low, &b.Close, &b.PreClose, &b.Change, &b.PctChg, &b.Volume, &b.Amount); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		out[b.Symbol] = append(out[b.Symbol], b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}
