package fetch

import (
	"sort"
	"time"

	"github.com/dnldd/orb/shared"
)

// settleMargin is how long a closed bucket missing its final minute is held back.
const settleMargin = time.Minute

// Resample aggregates intraday 1-minute candles into 5-minute candles aligned to 5-minute
// boundaries. Only buckets that have closed by now are returned, oldest first. A closed bucket
// is returned once its final minute is present or the settle margin has passed. Duplicate
// minutes keep the latest occurrence.
func Resample(minutes []shared.Candle, now time.Time) []shared.Candle {
	if len(minutes) == 0 {
		return nil
	}

	unique := make(map[int64]shared.Candle, len(minutes))
	for idx := range minutes {
		unique[minutes[idx].Date.Unix()] = minutes[idx]
	}

	sorted := make([]shared.Candle, 0, len(unique))
	for _, candle := range unique {
		sorted = append(sorted, candle)
	}
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	buckets := make([]shared.Candle, 0, len(sorted)/5+1)
	final := make([]bool, 0, len(sorted)/5+1)
	for idx := range sorted {
		minute := sorted[idx]
		start := minute.Date.Truncate(shared.CandlePeriod)
		isFinal := minute.Date.Equal(start.Add(shared.CandlePeriod - time.Minute))

		last := len(buckets) - 1
		if last >= 0 && buckets[last].Date.Equal(start) {
			bucket := &buckets[last]
			bucket.High = max(bucket.High, minute.High)
			bucket.Low = min(bucket.Low, minute.Low)
			bucket.Close = minute.Close
			bucket.Volume += minute.Volume
			final[last] = final[last] || isFinal
			continue
		}

		buckets = append(buckets, shared.Candle{
			Market: minute.Market,
			Open:   minute.Open,
			High:   minute.High,
			Low:    minute.Low,
			Close:  minute.Close,
			Volume: minute.Volume,
			Date:   start.In(shared.IST),
		})
		final = append(final, isFinal)
	}

	closed := buckets[:0]
	for idx := range buckets {
		end := buckets[idx].End()
		if end.After(now) {
			break
		}
		if !final[idx] && end.Add(settleMargin).After(now) {
			break
		}
		closed = append(closed, buckets[idx])
	}

	return closed
}
