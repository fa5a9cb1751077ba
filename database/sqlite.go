package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dnldd/orb/shared"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// SQLiteConfig is the configuration of the sqlite trade journal.
type SQLiteConfig struct {
	// Path is the journal database file.
	Path string
	// Logger is the database logger.
	Logger *zerolog.Logger
}

// Validate asserts the config sane inputs.
func (cfg *SQLiteConfig) Validate() error {
	var errs error

	if cfg.Path == "" {
		errs = errors.Join(errs, fmt.Errorf("database path cannot be an empty string"))
	}
	if cfg.Logger == nil {
		errs = errors.Join(errs, fmt.Errorf("logger cannot be nil"))
	}

	return errs
}

// SQLite is a local trade journal and risk state store.
type SQLite struct {
	cfg *SQLiteConfig
	db  *sql.DB
}

// Ensure the sqlite store implements the TradeStorer interface.
var _ shared.TradeStorer = (*SQLite)(nil)

// NewSQLite opens or creates the journal at the configured path.
func NewSQLite(ctx context.Context, cfg *SQLiteConfig) (*SQLite, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", cfg.Path+"?_journal=WAL&_sync=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening journal %s: %w", cfg.Path, err)
	}
	db.SetMaxOpenConns(1)

	store := &SQLite{cfg: cfg, db: db}
	err = store.bootstrap(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("bootstrapping journal: %w", err)
	}

	cfg.Logger.Info().Msgf("opened trade journal at %s", cfg.Path)

	return store, nil
}

// bootstrap initializes the journal schema.
func (s *SQLite) bootstrap(ctx context.Context) error {
	for _, stmt := range []string{createTradeTableSQL, createTradeIndexSQL, createRiskStateTableSQL} {
		_, err := s.db.ExecContext(ctx, stmt)
		if err != nil {
			return err
		}
	}

	return nil
}

// PersistTrade stores the provided completed trade.
func (s *SQLite) PersistTrade(ctx context.Context, trade *shared.Trade) error {
	_, err := s.db.ExecContext(ctx, persistTradeSQL, tradeParams(trade)...)
	if err != nil {
		return fmt.Errorf("persisting trade %s: %w", trade.ID, err)
	}

	return nil
}

// PersistRiskState stores the provided daily risk state, replacing the day's previous state.
func (s *SQLite) PersistRiskState(ctx context.Context, state *shared.DailyRiskState) error {
	_, err := s.db.ExecContext(ctx, persistRiskStateSQL, riskStateParams(state, time.Now())...)
	if err != nil {
		return fmt.Errorf("persisting risk state for %s: %w", state.Day, err)
	}

	return nil
}

// FetchRiskState returns the stored risk state of the provided day, nil if none exists.
func (s *SQLite) FetchRiskState(ctx context.Context, day string) (*shared.DailyRiskState, error) {
	row := make([]any, 6)
	ptrs := make([]any, len(row))
	for idx := range row {
		ptrs[idx] = &row[idx]
	}

	err := s.db.QueryRowContext(ctx, findRiskStateSQL, day).Scan(ptrs...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetching risk state for %s: %w", day, err)
	}

	return riskStateFromRow(row)
}

// FetchTrades returns the trades exited since the provided time, oldest first.
func (s *SQLite) FetchTrades(ctx context.Context, since time.Time) ([]*shared.Trade, error) {
	rows, err := s.db.QueryContext(ctx, findTradesSQL, since.Unix())
	if err != nil {
		return nil, fmt.Errorf("fetching trades: %w", err)
	}
	defer rows.Close()

	var trades []*shared.Trade
	for rows.Next() {
		row := make([]any, 11)
		ptrs := make([]any, len(row))
		for idx := range row {
			ptrs[idx] = &row[idx]
		}
		err := rows.Scan(ptrs...)
		if err != nil {
			return nil, fmt.Errorf("scanning trade: %w", err)
		}

		trade, err := tradeFromRow(row)
		if err != nil {
			return nil, err
		}
		trades = append(trades, trade)
	}

	return trades, rows.Err()
}

// Close closes the journal.
func (s *SQLite) Close() error {
	return s.db.Close()
}
