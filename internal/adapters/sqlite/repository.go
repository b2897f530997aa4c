package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"intradayBot/internal/domain"
	"intradayBot/internal/ports"

	"github.com/mattn/go-sqlite3"
)

// Repository implements ports.TradeJournal using SQLite. It is an append-only
// sink; engine state is never read back from it.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
	runID  string
}

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	RunID  string // Tags every recorded trade; empty means untagged
	Logger ports.Logger
}

// NewRepository creates a new SQLite repository instance.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/journal.db"
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		err = fmt.Errorf("%w: failed to open database at '%s': %w", ports.ErrDBConnection, dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("%w: failed to ping database at '%s': %w", ports.ErrDBConnection, dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cfg.Logger.Info(context.Background(), "SQLite database connection established", map[string]interface{}{"path": dbPath})

	repo := &Repository{db: db, logger: cfg.Logger, runID: cfg.RunID}
	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	cfg.Logger.Info(context.Background(), "Database schema initialized/verified")
	return repo, nil
}

func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS trades (
		id TEXT PRIMARY KEY,
		run_id TEXT NOT NULL DEFAULT '',
		symbol TEXT NOT NULL,
		strategy_tag TEXT NOT NULL,
		side TEXT NOT NULL,
		entry_time TIMESTAMP NOT NULL,
		exit_time TIMESTAMP NOT NULL,
		entry_price REAL NOT NULL,
		exit_price REAL NOT NULL,
		quantity REAL NOT NULL,
		pnl REAL NOT NULL,
		pnl_percent REAL NOT NULL,
		stop_loss REAL NULL,
		target REAL NULL,
		exit_reason TEXT NOT NULL,
		regime TEXT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_trades_symbol_exit_time ON trades (symbol, exit_time);
	CREATE INDEX IF NOT EXISTS idx_trades_run_id ON trades (run_id);
	`
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("%w: failed to execute schema initialization: %w", ports.ErrQueryFailed, err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Info(context.Background(), "Closing SQLite database connection")
		return r.db.Close()
	}
	return nil
}

// RecordTrade implements ports.TradeJournal.
func (r *Repository) RecordTrade(ctx context.Context, trade *domain.Trade) error {
	const query = `
	INSERT INTO trades (id, run_id, symbol, strategy_tag, side, entry_time, exit_time, entry_price,
	                    exit_price, quantity, pnl, pnl_percent, stop_loss, target, exit_reason, regime)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	id := trade.ID
	if r.runID != "" {
		id = r.runID + "/" + trade.ID
	}
	var regime sql.NullString
	if trade.Regime != nil {
		regime = sql.NullString{String: string(*trade.Regime), Valid: true}
	}

	_, err := r.db.ExecContext(ctx, query,
		id, r.runID, trade.Symbol, trade.StrategyTag, string(trade.Side),
		trade.EntryTime.UTC(), trade.ExitTime.UTC(), trade.EntryPrice, trade.ExitPrice, trade.Quantity,
		trade.PnL, trade.PnLPercent, nullFloat(trade.StopLoss), nullFloat(trade.Target),
		string(trade.ExitReason), regime)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && (sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey || sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique) {
			return fmt.Errorf("trade %s already recorded: %w", id, ports.ErrDuplicateEntry)
		}
		return fmt.Errorf("%w: failed to insert trade for symbol %s: %w", ports.ErrQueryFailed, trade.Symbol, err)
	}
	r.logger.Debug(ctx, "Trade recorded", map[string]interface{}{"tradeID": id, "symbol": trade.Symbol, "pnl": trade.PnL})
	return nil
}

const selectTrades = `
	SELECT id, symbol, strategy_tag, side, entry_time, exit_time, entry_price, exit_price,
	       quantity, pnl, pnl_percent, stop_loss, target, exit_reason, regime
	FROM trades`

// FindBySymbol implements ports.TradeJournal. Most recent exits come first.
func (r *Repository) FindBySymbol(ctx context.Context, symbol string, limit int) ([]*domain.Trade, error) {
	return r.query(ctx, "FindBySymbol", selectTrades+` WHERE symbol = ? ORDER BY exit_time DESC LIMIT ?`, symbol, limit)
}

// FindBetween implements ports.TradeJournal.
func (r *Repository) FindBetween(ctx context.Context, from, to time.Time) ([]*domain.Trade, error) {
	return r.query(ctx, "FindBetween", selectTrades+` WHERE exit_time >= ? AND exit_time < ? ORDER BY exit_time, id`, from.UTC(), to.UTC())
}

// FindByRun returns every trade recorded under runID in exit order.
func (r *Repository) FindByRun(ctx context.Context, runID string) ([]*domain.Trade, error) {
	return r.query(ctx, "FindByRun", selectTrades+` WHERE run_id = ? ORDER BY exit_time, id`, runID)
}

// Runs lists the distinct run ids in the journal.
func (r *Repository) Runs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT run_id FROM trades ORDER BY run_id`)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list runs: %w", ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	var runs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: failed to scan run id: %w", ports.ErrQueryFailed, err)
		}
		runs = append(runs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: error iterating run rows: %w", ports.ErrQueryFailed, err)
	}
	return runs, nil
}

// CountOnDay implements ports.TradeJournal. day is interpreted in its own location.
func (r *Repository) CountOnDay(ctx context.Context, symbol string, day time.Time) (int, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.AddDate(0, 0, 1)
	const query = `SELECT COUNT(*) FROM trades WHERE symbol = ? AND exit_time >= ? AND exit_time < ?`
	var count int
	if err := r.db.QueryRowContext(ctx, query, symbol, start.UTC(), end.UTC()).Scan(&count); err != nil {
		return 0, fmt.Errorf("%w: failed to count trades for symbol %s: %w", ports.ErrQueryFailed, symbol, err)
	}
	return count, nil
}

func (r *Repository) query(ctx context.Context, op, query string, args ...interface{}) ([]*domain.Trade, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s query failed: %w", ports.ErrQueryFailed, op, err)
	}
	defer rows.Close()

	trades := make([]*domain.Trade, 0)
	for rows.Next() {
		trade, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to scan trade during %s: %w", ports.ErrQueryFailed, op, err)
		}
		trades = append(trades, trade)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: error iterating trade rows: %w", ports.ErrQueryFailed, err)
	}
	return trades, nil
}

// --- Helper Scan Functions ---

// scanner defines an interface compatible with *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTrade(s scanner) (*domain.Trade, error) {
	t := &domain.Trade{}
	var side, reason string
	var stop, target sql.NullFloat64
	var regime sql.NullString
	err := s.Scan(
		&t.ID, &t.Symbol, &t.StrategyTag, &side, &t.EntryTime, &t.ExitTime, &t.EntryPrice, &t.ExitPrice,
		&t.Quantity, &t.PnL, &t.PnLPercent, &stop, &target, &reason, &regime)
	if err != nil {
		return nil, err
	}
	t.Side = domain.PositionSide(side)
	t.ExitReason = domain.ExitReason(reason)
	if stop.Valid {
		t.StopLoss = domain.Float(stop.Float64)
	}
	if target.Valid {
		t.Target = domain.Float(target.Float64)
	}
	if regime.Valid {
		rg := domain.Regime(regime.String)
		t.Regime = &rg
	}
	return t, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
