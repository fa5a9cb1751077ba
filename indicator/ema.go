package indicator

import "fmt"

// EMA is an incremental exponential moving average seeded with the simple average of the
// first period closes.
type EMA struct {
	period int
	k      float64
	value  float64
	sum    float64
	count  int
}

// NewEMA initializes a new exponential moving average.
func NewEMA(period int) (*EMA, error) {
	if period < 1 {
		return nil, fmt.Errorf("ema period must be positive, got %d", period)
	}

	return &EMA{
		period: period,
		k:      2 / float64(period+1),
	}, nil
}

// Update folds the provided close into the average.
func (e *EMA) Update(price float64) {
	e.count++
	if e.count <= e.period {
		e.sum += price
		e.value = e.sum / float64(e.count)
		return
	}

	e.value = price*e.k + e.value*(1-e.k)
}

// Value returns the current average and whether it is defined.
func (e *EMA) Value() (float64, bool) {
	return e.value, e.count >= e.period
}
