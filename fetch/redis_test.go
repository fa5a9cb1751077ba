package fetch

import (
	"testing"
	"time"

	"github.com/dnldd/orb/shared"
	"github.com/go-redis/redis/v8"
	"github.com/peterldowns/testy/assert"
	"github.com/rs/zerolog/log"
)

func TestParseStreamCandle(t *testing.T) {
	tests := []struct {
		name    string
		values  map[string]any
		wantErr bool
	}{
		{
			name: "valid entry",
			values: map[string]any{"data": `{"ts":"2025-03-03T09:15:00+05:30","open":100,` +
				`"high":102,"low":99,"close":101,"volume":1500}`},
		},
		{
			name:    "missing data",
			values:  map[string]any{"candle": "{}"},
			wantErr: true,
		},
		{
			name:    "invalid json",
			values:  map[string]any{"data": `{"ts":`},
			wantErr: true,
		},
		{
			name:    "invalid time",
			values:  map[string]any{"data": `{"ts":"09:15","open":100}`},
			wantErr: true,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			candle, err := ParseStreamCandle(test.values, "SBIN")
			if test.wantErr {
				assert.Error(t, err)
				return
			}

			assert.NoError(t, err)
			assert.Equal(t, candle.Market, "SBIN")
			assert.Equal(t, candle.Close, float64(101))
			assert.Equal(t, candle.Volume, float64(1500))
			assert.True(t, candle.Date.Equal(time.Date(2025, time.March, 3, 9, 15, 0, 0, shared.IST)))
		})
	}
}

func TestNewRedisFeed(t *testing.T) {
	// Ensure a feed requires its dependencies.
	_, err := NewRedisFeed(&RedisFeedConfig{Stream: "candles:5m", Market: "SBIN", Logger: &log.Logger})
	assert.Error(t, err)

	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer client.Close()

	feed, err := NewRedisFeed(&RedisFeedConfig{
		Client:     client,
		Stream:     "candles:5m",
		Market:     "SBIN",
		SendCandle: func(candle shared.Candle) {},
		Logger:     &log.Logger,
	})
	assert.NoError(t, err)
	assert.Equal(t, feed.lastID, "$")
}
