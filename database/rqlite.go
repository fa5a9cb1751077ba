package database

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/dnldd/orb/shared"
	rqlitehttp "github.com/rqlite/rqlite-go-http"
	"github.com/rs/zerolog"
)

// RQLiteConfig is the configuration of the rqlite store.
type RQLiteConfig struct {
	// Endpoint represents the database connection endpoint.
	Endpoint string
	// User is the database user.
	User string
	// Pass is the database user pass.
	Pass string
	// Logger is the database logger.
	Logger *zerolog.Logger
}

// Validate asserts the config sane inputs.
func (cfg *RQLiteConfig) Validate() error {
	var errs error

	if cfg.Endpoint == "" {
		errs = errors.Join(errs, fmt.Errorf("endpoint cannot be an empty string"))
	}
	if cfg.Logger == nil {
		errs = errors.Join(errs, fmt.Errorf("logger cannot be nil"))
	}

	return errs
}

// RQLite is a trade journal and risk state store backed by an rqlite cluster.
type RQLite struct {
	cfg    *RQLiteConfig
	client *rqlitehttp.Client
}

// Ensure the rqlite store implements the TradeStorer interface.
var _ shared.TradeStorer = (*RQLite)(nil)

// NewRQLite initializes a new rqlite store connection.
func NewRQLite(ctx context.Context, cfg *RQLiteConfig) (*RQLite, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	httpc := &http.Client{Timeout: time.Second * 5}
	client, err := rqlitehttp.NewClient(cfg.Endpoint, httpc)
	if err != nil {
		return nil, fmt.Errorf("creating database client: %w", err)
	}

	if cfg.User != "" {
		client.SetBasicAuth(cfg.User, cfg.Pass)
	}

	db := &RQLite{
		cfg:    cfg,
		client: client,
	}

	err = db.bootstrap(ctx)
	if err != nil {
		return nil, fmt.Errorf("bootstrapping database: %w", err)
	}

	return db, nil
}

// bootstrap initializes the database.
func (db *RQLite) bootstrap(ctx context.Context) error {
	return db.execute(ctx, "bootstrapping schema", rqlitehttp.SQLStatements{
		{SQL: createTradeTableSQL},
		{SQL: createTradeIndexSQL},
		{SQL: createRiskStateTableSQL},
	})
}

// execute runs the provided statements in a transaction.
func (db *RQLite) execute(ctx context.Context, action string, stmts rqlitehttp.SQLStatements) error {
	resp, err := db.client.Execute(ctx, stmts, &rqlitehttp.ExecuteOptions{
		Transaction: true,
		Timings:     true,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", action, err)
	}

	has, idx, errStr := resp.HasError()
	if has {
		return fmt.Errorf("%s: %d -> %s", action, idx, errStr)
	}

	return nil
}

// query runs the provided query and returns its rows.
func (db *RQLite) query(ctx context.Context, action string, stmt string, args ...any) ([][]any, error) {
	resp, err := db.client.QuerySingle(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", action, err)
	}

	has, idx, errStr := resp.HasError()
	if has {
		return nil, fmt.Errorf("%s: %d -> %s", action, idx, errStr)
	}

	results := resp.GetQueryResults()
	if len(results) == 0 {
		return nil, nil
	}

	return results[0].Values, nil
}

// PersistTrade stores the provided completed trade.
func (db *RQLite) PersistTrade(ctx context.Context, trade *shared.Trade) error {
	return db.execute(ctx, fmt.Sprintf("persisting trade %s", trade.ID), rqlitehttp.SQLStatements{
		{SQL: persistTradeSQL, PositionalParams: tradeParams(trade)},
	})
}

// PersistRiskState stores the provided daily risk state, replacing the day's previous state.
func (db *RQLite) PersistRiskState(ctx context.Context, state *shared.DailyRiskState) error {
	return db.execute(ctx, fmt.Sprintf("persisting risk state for %s", state.Day), rqlitehttp.SQLStatements{
		{SQL: persistRiskStateSQL, PositionalParams: riskStateParams(state, time.Now())},
	})
}

// FetchRiskState returns the stored risk state of the provided day, nil if none exists.
func (db *RQLite) FetchRiskState(ctx context.Context, day string) (*shared.DailyRiskState, error) {
	rows, err := db.query(ctx, fmt.Sprintf("fetching risk state for %s", day), findRiskStateSQL, day)
	if err != nil {
		return nil, err
	}

	switch len(rows) {
	case 0:
		return nil, nil
	case 1:
		return riskStateFromRow(rows[0])
	default:
		db.cfg.Logger.Error().Msgf("unexpected risk state rows for %s: %s", day, spew.Sdump(rows))
		return nil, fmt.Errorf("found %d risk states for %s", len(rows), day)
	}
}

// FetchTrades returns the trades exited since the provided time, oldest first.
func (db *RQLite) FetchTrades(ctx context.Context, since time.Time) ([]*shared.Trade, error) {
	rows, err := db.query(ctx, "fetching trades", findTradesSQL, since.Unix())
	if err != nil {
		return nil, err
	}

	trades := make([]*shared.Trade, 0, len(rows))
	for idx := range rows {
		trade, err := tradeFromRow(rows[idx])
		if err != nil {
			return nil, err
		}
		trades = append(trades, trade)
	}

	return trades, nil
}
