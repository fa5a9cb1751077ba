package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/dnldd/orb/shared"
	"github.com/google/go-cmp/cmp"
	"github.com/peterldowns/testy/assert"
	"github.com/rs/zerolog/log"
)

func setupSQLite(t *testing.T) *SQLite {
	store, err := NewSQLite(context.Background(), &SQLiteConfig{
		Path:   filepath.Join(t.TempDir(), "journal.db"),
		Logger: &log.Logger,
	})
	assert.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func newTrade(id string, exit time.Time, pnl float64) *shared.Trade {
	return &shared.Trade{
		ID:         id,
		Market:     "SBIN",
		Quantity:   10,
		EntryPrice: 100,
		ExitPrice:  100 + pnl/10,
		StopLoss:   95,
		Target:     105,
		EntryTime:  exit.Add(-time.Minute * 30),
		ExitTime:   exit,
		ExitReason: shared.Target,
		PNL:        pnl,
	}
}

func TestSQLiteConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     SQLiteConfig
		wantErr bool
	}{
		{name: "valid config", cfg: SQLiteConfig{Path: "journal.db", Logger: &log.Logger}},
		{name: "missing path", cfg: SQLiteConfig{Logger: &log.Logger}, wantErr: true},
		{name: "missing logger", cfg: SQLiteConfig{Path: "journal.db"}, wantErr: true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := test.cfg.Validate()
			if test.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestSQLiteTrades(t *testing.T) {
	store := setupSQLite(t)
	ctx := context.Background()

	day := time.Date(2025, time.March, 3, 9, 15, 0, 0, shared.IST)
	first := newTrade("a", day.Add(time.Hour*2), 50)
	second := newTrade("b", day.Add(time.Hour*24+time.Hour*3), -25)
	second.ExitReason = shared.StopLoss

	assert.NoError(t, store.PersistTrade(ctx, second))
	assert.NoError(t, store.PersistTrade(ctx, first))

	// Ensure trades are returned oldest first.
	trades, err := store.FetchTrades(ctx, day)
	assert.NoError(t, err)
	assert.Equal(t, len(trades), 2)
	assert.Equal(t, cmp.Diff(trades[0], first), "")
	assert.Equal(t, cmp.Diff(trades[1], second), "")

	// Ensure trades exited before the provided time are excluded.
	trades, err = store.FetchTrades(ctx, day.Add(time.Hour*24))
	assert.NoError(t, err)
	assert.Equal(t, len(trades), 1)
	assert.Equal(t, trades[0].ID, "b")

	// Ensure persisting a trade again replaces it.
	first.PNL = 40
	assert.NoError(t, store.PersistTrade(ctx, first))
	trades, err = store.FetchTrades(ctx, day)
	assert.NoError(t, err)
	assert.Equal(t, len(trades), 2)
	assert.Equal(t, trades[0].PNL, float64(40))
}

func TestSQLiteRiskState(t *testing.T) {
	store := setupSQLite(t)
	ctx := context.Background()

	// Ensure an unknown day has no risk state.
	state, err := store.FetchRiskState(ctx, "2025-03-03")
	assert.NoError(t, err)
	assert.Nil(t, state)

	want := &shared.DailyRiskState{Day: "2025-03-03", UnrealizedPNL: 12.5, Trades: 1}
	assert.NoError(t, store.PersistRiskState(ctx, want))

	state, err = store.FetchRiskState(ctx, "2025-03-03")
	assert.NoError(t, err)
	assert.Equal(t, cmp.Diff(state, want), "")

	// Ensure persisting the day again replaces its state.
	want = &shared.DailyRiskState{Day: "2025-03-03", RealizedPNL: -50, Halted: true,
		HaltReason: shared.MaxLossReached, Trades: 1}
	assert.NoError(t, store.PersistRiskState(ctx, want))

	state, err = store.FetchRiskState(ctx, "2025-03-03")
	assert.NoError(t, err)
	assert.Equal(t, cmp.Diff(state, want), "")
}
