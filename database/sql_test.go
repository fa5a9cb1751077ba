package database

import (
	"testing"
	"time"

	"github.com/dnldd/orb/shared"
	"github.com/peterldowns/testy/assert"
	"github.com/rs/zerolog/log"
)

func TestRowDecoding(t *testing.T) {
	exit := time.Date(2025, time.March, 3, 11, 45, 0, 0, shared.IST)

	// Ensure json decoded rows, where every number is a float, are understood.
	trade, err := tradeFromRow([]any{"a", "SBIN", float64(10), float64(100), float64(105),
		float64(95), float64(105), float64(exit.Add(-time.Minute * 30).Unix()),
		float64(exit.Unix()), float64(shared.Target), float64(50)})
	assert.NoError(t, err)
	assert.Equal(t, trade.Quantity, int64(10))
	assert.Equal(t, trade.ExitReason, shared.Target)
	assert.True(t, trade.ExitTime.Equal(exit))

	// Ensure driver decoded rows are understood.
	state, err := riskStateFromRow([]any{[]byte("2025-03-03"), float64(50), float64(0), int64(1),
		int64(shared.ProfitTargetReached), int64(1)})
	assert.NoError(t, err)
	assert.Equal(t, state.Day, "2025-03-03")
	assert.True(t, state.Halted)
	assert.Equal(t, state.HaltReason, shared.ProfitTargetReached)

	// Ensure malformed rows are rejected.
	_, err = tradeFromRow([]any{"a"})
	assert.Error(t, err)
	_, err = riskStateFromRow([]any{int64(1), float64(0), float64(0), int64(0), int64(0), int64(0)})
	assert.Error(t, err)
	_, err = riskStateFromRow([]any{"2025-03-03", "x", float64(0), int64(0), int64(0), int64(0)})
	assert.Error(t, err)
}

func TestRQLiteConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     RQLiteConfig
		wantErr bool
	}{
		{name: "valid config", cfg: RQLiteConfig{Endpoint: "http://localhost:4001", Logger: &log.Logger}},
		{name: "missing endpoint", cfg: RQLiteConfig{Logger: &log.Logger}, wantErr: true},
		{name: "missing logger", cfg: RQLiteConfig{Endpoint: "http://localhost:4001"}, wantErr: true},
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
