package recorder

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"QuoteHarvest/internal/config"
	"QuoteHarvest/internal/dataset"
	"QuoteHarvest/internal/model"
)

// SQLiteRecorder persists bars to the historical_data table.
type SQLiteRecorder struct {
	db     *sqlx.DB
	policy string
	logger *zap.Logger
	dbPath string
}

type barRow struct {
	Date   string          `db:"Date"`
	Open   sql.NullFloat64 `db:"Open"`
	High   sql.NullFloat64 `db:"High"`
	Low    sql.NullFloat64 `db:"Low"`
	Close  sql.NullFloat64 `db:"Close"`
	Volume sql.NullFloat64 `db:"Volume"`
}

// NewSQLiteRecorder opens (or creates) the SQLite database and creates the
// table if absent. policy is config.PolicySkip or config.PolicyReplace.
func NewSQLiteRecorder(dbPath, policy string, logger *zap.Logger) (*SQLiteRecorder, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer, one process; a single connection keeps the file lock simple.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout=3000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	r := &SQLiteRecorder{db: db, policy: policy, logger: logger.With(zap.String("component", "SQLiteRecorder")), dbPath: dbPath}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	r.logger.Info("sqlite recorder opened", zap.String("path", dbPath), zap.String("policy", policy))
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	_, err := r.db.Exec(`CREATE TABLE IF NOT EXISTS historical_data (
		Date   TEXT PRIMARY KEY,
		Open   REAL,
		High   REAL,
		Low    REAL,
		Close  REAL,
		Volume REAL
	)`)
	return err
}

// existingDates maps each normalised date key to the raw keys stored for it.
// Dates written by older tools with a time component still match on the
// calendar day.
func (r *SQLiteRecorder) existingDates(ctx context.Context, q sqlx.QueryerContext) (map[string][]string, error) {
	var raw []string
	if err := sqlx.SelectContext(ctx, q, &raw, "SELECT Date FROM historical_data"); err != nil {
		return nil, err
	}
	dates := make(map[string][]string, len(raw))
	for _, s := range raw {
		key := s
		if d, ok := dataset.ParseDate(s); ok {
			key = d.Format(model.DateLayout)
		}
		dates[key] = append(dates[key], s)
	}
	return dates, nil
}

// Save writes bars in one transaction. Under the skip policy dates that
// already exist are left untouched. Under replace every stored row for the
// calendar day is removed and the bar is written under the canonical key, so
// a day never appears twice.
func (r *SQLiteRecorder) Save(ctx context.Context, bars []model.Bar) (SaveResult, error) {
	var res SaveResult

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	existing, err := r.existingDates(ctx, tx)
	if err != nil {
		return res, fmt.Errorf("load existing dates: %w", err)
	}

	insert, err := tx.PreparexContext(ctx, `INSERT INTO historical_data (Date, Open, High, Low, Close, Volume) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return res, fmt.Errorf("prepare insert: %w", err)
	}
	defer insert.Close()
	remove, err := tx.PreparexContext(ctx, `DELETE FROM historical_data WHERE Date = ?`)
	if err != nil {
		return res, fmt.Errorf("prepare delete: %w", err)
	}
	defer remove.Close()

	for _, b := range bars {
		key := b.DateKey()
		stored, exists := existing[key]
		if exists && r.policy != config.PolicyReplace {
			res.Skipped++
			continue
		}
		for _, raw := range stored {
			if _, err := remove.ExecContext(ctx, raw); err != nil {
				return SaveResult{}, fmt.Errorf("replace %s: %w", raw, err)
			}
		}
		if _, err := insert.ExecContext(ctx, key, b.Open, b.High, b.Low, b.Close, b.Volume); err != nil {
			return SaveResult{}, fmt.Errorf("insert %s: %w", key, err)
		}
		if exists {
			res.Updated++
		} else {
			res.Inserted++
		}
		existing[key] = []string{key}
	}

	if err := tx.Commit(); err != nil {
		return SaveResult{}, fmt.Errorf("commit: %w", err)
	}
	return res, nil
}

// Bars returns every stored bar ordered by date.
func (r *SQLiteRecorder) Bars(ctx context.Context) ([]model.Bar, error) {
	var rows []barRow
	if err := r.db.SelectContext(ctx, &rows, "SELECT Date, Open, High, Low, Close, Volume FROM historical_data ORDER BY Date"); err != nil {
		return nil, err
	}
	bars := make([]model.Bar, 0, len(rows))
	for _, row := range rows {
		d, ok := dataset.ParseDate(row.Date)
		if !ok {
			r.logger.Warn("skipping stored row with unparseable date", zap.String("date", row.Date))
			continue
		}
		bars = append(bars, model.Bar{
			Date:   d,
			Open:   row.Open.Float64,
			High:   row.High.Float64,
			Low:    row.Low.Float64,
			Close:  row.Close.Float64,
			Volume: row.Volume.Float64,
		})
	}
	return bars, nil
}

func (r *SQLiteRecorder) Close() error {
	r.logger.Info("closing sqlite recorder", zap.String("path", r.dbPath))
	return r.db.Close()
}
