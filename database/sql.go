package database

import (
	"fmt"
	"time"

	"github.com/dnldd/orb/shared"
)

const (
	// SQL statements.
	createTradeTableSQL     = "CREATE TABLE IF NOT EXISTS trade (id TEXT PRIMARY KEY, market TEXT NOT NULL, quantity INTEGER NOT NULL, entryprice REAL NOT NULL, exitprice REAL NOT NULL, stoploss REAL NOT NULL, target REAL NOT NULL, entrytime INTEGER NOT NULL, exittime INTEGER NOT NULL, exitreason INTEGER NOT NULL, pnl REAL NOT NULL)"
	createTradeIndexSQL     = "CREATE INDEX IF NOT EXISTS idx_trade_exittime ON trade(exittime)"
	createRiskStateTableSQL = "CREATE TABLE IF NOT EXISTS riskstate (day TEXT PRIMARY KEY, realizedpnl REAL NOT NULL, unrealizedpnl REAL NOT NULL, halted INTEGER NOT NULL, haltreason INTEGER NOT NULL, trades INTEGER NOT NULL, updatedon INTEGER NOT NULL)"
	persistTradeSQL         = "INSERT OR REPLACE INTO trade(id, market, quantity, entryprice, exitprice, stoploss, target, entrytime, exittime, exitreason, pnl) VALUES(?,?,?,?,?,?,?,?,?,?,?)"
	persistRiskStateSQL     = "INSERT INTO riskstate(day, realizedpnl, unrealizedpnl, halted, haltreason, trades, updatedon) VALUES(?,?,?,?,?,?,?) ON CONFLICT(day) DO UPDATE SET realizedpnl = excluded.realizedpnl, unrealizedpnl = excluded.unrealizedpnl, halted = excluded.halted, haltreason = excluded.haltreason, trades = excluded.trades, updatedon = excluded.updatedon"
	findRiskStateSQL        = "SELECT day, realizedpnl, unrealizedpnl, halted, haltreason, trades FROM riskstate WHERE day = ?"
	findTradesSQL           = "SELECT id, market, quantity, entryprice, exitprice, stoploss, target, entrytime, exittime, exitreason, pnl FROM trade WHERE exittime >= ? ORDER BY exittime ASC"
)

// tradeParams returns the positional parameters persisting the provided trade.
func tradeParams(trade *shared.Trade) []any {
	return []any{trade.ID, trade.Market, trade.Quantity, trade.EntryPrice, trade.ExitPrice,
		trade.StopLoss, trade.Target, trade.EntryTime.Unix(), trade.ExitTime.Unix(),
		int(trade.ExitReason), trade.PNL}
}

// riskStateParams returns the positional parameters persisting the provided risk state.
func riskStateParams(state *shared.DailyRiskState, now time.Time) []any {
	var halted int
	if state.Halted {
		halted = 1
	}

	return []any{state.Day, state.RealizedPNL, state.UnrealizedPNL, halted,
		int(state.HaltReason), state.Trades, now.Unix()}
}

// asFloat converts a decoded column value to a float.
func asFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int64:
		return float64(n), nil
	case int:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("unexpected numeric column type %T", v)
	}
}

// asInt converts a decoded column value to an integer.
func asInt(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case float64:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("unexpected integer column type %T", v)
	}
}

// asString converts a decoded column value to a string.
func asString(v any) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case []byte:
		return string(s), nil
	default:
		return "", fmt.Errorf("unexpected text column type %T", v)
	}
}

// tradeFromRow builds a trade from the provided column values, ordered as findTradesSQL
// selects them.
func tradeFromRow(row []any) (*shared.Trade, error) {
	if len(row) != 11 {
		return nil, fmt.Errorf("expected 11 trade columns, got %d", len(row))
	}

	var trade shared.Trade
	var err error
	var qty, entry, exit, reason int64

	if trade.ID, err = asString(row[0]); err != nil {
		return nil, err
	}
	if trade.Market, err = asString(row[1]); err != nil {
		return nil, err
	}
	if qty, err = asInt(row[2]); err != nil {
		return nil, err
	}
	if trade.EntryPrice, err = asFloat(row[3]); err != nil {
		return nil, err
	}
	if trade.ExitPrice, err = asFloat(row[4]); err != nil {
		return nil, err
	}
	if trade.StopLoss, err = asFloat(row[5]); err != nil {
		return nil, err
	}
	if trade.Target, err = asFloat(row[6]); err != nil {
		return nil, err
	}
	if entry, err = asInt(row[7]); err != nil {
		return nil, err
	}
	if exit, err = asInt(row[8]); err != nil {
		return nil, err
	}
	if reason, err = asInt(row[9]); err != nil {
		return nil, err
	}
	if trade.PNL, err = asFloat(row[10]); err != nil {
		return nil, err
	}

	trade.Quantity = qty
	trade.EntryTime = time.Unix(entry, 0).In(shared.IST)
	trade.ExitTime = time.Unix(exit, 0).In(shared.IST)
	trade.ExitReason = shared.ExitReason(reason)

	return &trade, nil
}

// riskStateFromRow builds a risk state from the provided column values, ordered as
// findRiskStateSQL selects them.
func riskStateFromRow(row []any) (*shared.DailyRiskState, error) {
	if len(row) != 6 {
		return nil, fmt.Errorf("expected 6 risk state columns, got %d", len(row))
	}

	var state shared.DailyRiskState
	var err error
	var halted, reason, trades int64

	if state.Day, err = asString(row[0]); err != nil {
		return nil, err
	}
	if state.RealizedPNL, err = asFloat(row[1]); err != nil {
		return nil, err
	}
	if state.UnrealizedPNL, err = asFloat(row[2]); err != nil {
		return nil, err
	}
	if halted, err = asInt(row[3]); err != nil {
		return nil, err
	}
	if reason, err = asInt(row[4]); err != nil {
		return nil, err
	}
	if trades, err = asInt(row[5]); err != nil {
		return nil, err
	}

	state.Halted = halted == 1
	state.HaltReason = shared.HaltReason(reason)
	state.Trades = int(trades)

	return &state, nil
}
