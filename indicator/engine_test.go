package indicator

import (
	"errors"
	"testing"
	"time"

	"github.com/dnldd/orb/shared"
	"github.com/google/go-cmp/cmp"
	"github.com/peterldowns/testy/assert"
)

// generateCandles creates a deterministic sawtooth uptrend session.
func generateCandles(n int) []shared.Candle {
	open := time.Date(2025, time.March, 3, 9, 15, 0, 0, shared.IST)
	candles := make([]shared.Candle, 0, n)
	price := float64(100)
	for idx := range n {
		prev := price
		if idx%2 == 0 {
			price += 0.6
		} else {
			price -= 0.4
		}
		candles = append(candles, shared.Candle{
			Market: "SBIN",
			Open:   prev,
			High:   max(prev, price) + 0.5,
			Low:    min(prev, price) - 0.5,
			Close:  price,
			Volume: float64(1000 + idx*10),
			Date:   open.Add(shared.CandlePeriod * time.Duration(idx)),
		})
	}

	return candles
}

func TestEngineReadiness(t *testing.T) {
	engine, err := NewEngine()
	assert.NoError(t, err)

	candles := generateCandles(25)
	for idx := range candles {
		snapshot := engine.Update(&candles[idx])
		count := idx + 1

		assert.Equal(t, snapshot.Candles, count)
		assert.Equal(t, snapshot.Date, candles[idx].Date)
		assert.Equal(t, snapshot.EMA9.Ready, count >= FastPeriod)
		assert.Equal(t, snapshot.EMA21.Ready, count >= SlowPeriod)
		assert.Equal(t, snapshot.RSI14.Ready, count > RSIPeriod)
		assert.Equal(t, snapshot.AvgVolume20.Ready, count > MinVolumeSamples)

		notReady := snapshot.NotReady()
		if count < SlowPeriod {
			var indicatorErr *shared.IndicatorNotReadyError
			assert.True(t, errors.As(notReady, &indicatorErr))
			continue
		}
		assert.NoError(t, notReady)
	}

	// Ensure the volume average covers the preceding candles only.
	last := engine.Last()
	var sum float64
	for idx := len(candles) - 1 - VolumePeriod; idx < len(candles)-1; idx++ {
		sum += candles[idx].Volume
	}
	assert.Equal(t, last.AvgVolume20.Value, sum/VolumePeriod)

	// Ensure an uptrend keeps the fast average above the slow one.
	assert.GreaterThan(t, last.EMA9.Value, last.EMA21.Value)
	assert.True(t, last.RSI14.Value > 45 && last.RSI14.Value < 70)
}

func TestEngineReplayStable(t *testing.T) {
	candles := generateCandles(30)

	replay := func() []Snapshot {
		engine, err := NewEngine()
		assert.NoError(t, err)

		snapshots := make([]Snapshot, 0, len(candles))
		for idx := range candles {
			snapshots = append(snapshots, engine.Update(&candles[idx]))
		}
		return snapshots
	}

	// Ensure replaying the same candles yields identical snapshots.
	first := replay()
	second := replay()
	assert.Equal(t, cmp.Diff(first, second), "")
}
