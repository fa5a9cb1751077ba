package fetch

import (
	"testing"
	"time"

	"github.com/dnldd/orb/shared"
	"github.com/peterldowns/testy/assert"
)

var sessionOpen = time.Date(2025, time.March, 3, 9, 15, 0, 0, shared.IST)

// generateMinutes creates n consecutive 1-minute candles from the session open, newest
// first as the broker returns them.
func generateMinutes(n int) []shared.Candle {
	minutes := make([]shared.Candle, 0, n)
	for idx := n - 1; idx >= 0; idx-- {
		price := 100 + float64(idx)
		minutes = append(minutes, shared.Candle{
			Open:   price,
			High:   price + 2,
			Low:    price - 1,
			Close:  price + 1,
			Volume: 10,
			Date:   sessionOpen.Add(time.Minute * time.Duration(idx)),
		})
	}
	return minutes
}

func TestResample(t *testing.T) {
	// Ensure an empty set resamples to nothing.
	assert.Equal(t, len(Resample(nil, sessionOpen)), 0)

	minutes := generateMinutes(12)

	// Ensure only closed buckets are returned.
	now := sessionOpen.Add(time.Minute*10 + time.Second*5)
	buckets := Resample(minutes, now)
	assert.Equal(t, len(buckets), 2)

	first := buckets[0]
	assert.Equal(t, first.Date, sessionOpen)
	assert.Equal(t, first.Open, float64(100))
	assert.Equal(t, first.Close, float64(105))
	assert.Equal(t, first.High, float64(106))
	assert.Equal(t, first.Low, float64(99))
	assert.Equal(t, first.Volume, float64(50))

	second := buckets[1]
	assert.Equal(t, second.Date, sessionOpen.Add(shared.CandlePeriod))
	assert.Equal(t, second.Open, float64(105))
	assert.Equal(t, second.Close, float64(110))

	// Ensure the forming bucket is excluded until it closes.
	buckets = Resample(minutes, sessionOpen.Add(time.Minute*14))
	assert.Equal(t, len(buckets), 2)
}

func TestResampleSettle(t *testing.T) {
	// The broker has not published the 09:29 minute yet.
	minutes := generateMinutes(14)

	// Ensure a closed bucket missing its final minute is held back.
	buckets := Resample(minutes, sessionOpen.Add(time.Minute*15+time.Second*5))
	assert.Equal(t, len(buckets), 2)

	// Ensure the bucket is complete once its final minute is published.
	buckets = Resample(generateMinutes(15), sessionOpen.Add(time.Minute*15+time.Second*5))
	assert.Equal(t, len(buckets), 3)
	assert.Equal(t, buckets[2].Volume, float64(50))
	assert.Equal(t, buckets[2].Close, float64(115))

	// Ensure a bucket without its final minute is relayed after the settle margin.
	buckets = Resample(minutes, sessionOpen.Add(time.Minute*16))
	assert.Equal(t, len(buckets), 3)
	assert.Equal(t, buckets[2].Volume, float64(40))
}

func TestResampleDuplicates(t *testing.T) {
	minutes := generateMinutes(5)
	duplicate := minutes[0]
	duplicate.Close = 200
	duplicate.High = 201
	minutes = append(minutes, duplicate)

	// Ensure duplicated minutes are counted once.
	buckets := Resample(minutes, sessionOpen.Add(shared.CandlePeriod))
	assert.Equal(t, len(buckets), 1)
	assert.Equal(t, buckets[0].Volume, float64(50))
	assert.Equal(t, buckets[0].Close, float64(200))
}
