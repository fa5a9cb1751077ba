package indicator

import "fmt"

const (
	// neutralRSI is reported when there has been no average loss over the period.
	neutralRSI = 50.0
)

// RSI is an incremental relative strength index using Wilder smoothing, seeded with the
// simple average of the first period price changes.
type RSI struct {
	period    int
	prevClose float64
	avgGain   float64
	avgLoss   float64
	count     int
}

// NewRSI initializes a new relative strength index.
func NewRSI(period int) (*RSI, error) {
	if period < 1 {
		return nil, fmt.Errorf("rsi period must be positive, got %d", period)
	}

	return &RSI{period: period}, nil
}

// Update folds the provided close into the index.
func (r *RSI) Update(price float64) {
	r.count++
	if r.count == 1 {
		r.prevClose = price
		return
	}

	change := price - r.prevClose
	r.prevClose = price

	var gain, loss float64
	if change > 0 {
		gain = change
	} else {
		loss = -change
	}

	changes := r.count - 1
	period := float64(r.period)
	switch {
	case changes < r.period:
		r.avgGain += gain
		r.avgLoss += loss
	case changes == r.period:
		r.avgGain = (r.avgGain + gain) / period
		r.avgLoss = (r.avgLoss + loss) / period
	default:
		r.avgGain = (r.avgGain*(period-1) + gain) / period
		r.avgLoss = (r.avgLoss*(period-1) + loss) / period
	}
}

// Value returns the current index and whether it is defined.
func (r *RSI) Value() (float64, bool) {
	if r.count <= r.period {
		return 0, false
	}

	if r.avgLoss == 0 {
		return neutralRSI, true
	}

	rs := r.avgGain / r.avgLoss
	return 100 - 100/(1+rs), true
}
