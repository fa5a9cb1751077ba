package market

import (
	"fmt"
	"math"
	"time"

	"github.com/dnldd/orb/shared"
)

// RangeState represents the state of the opening range tracker.
type RangeState int

const (
	RangeUninitialized RangeState = iota
	RangeBuilding
	RangeEstablished
)

// String stringifies the provided range state.
func (s RangeState) String() string {
	switch s {
	case RangeUninitialized:
		return "uninitialized"
	case RangeBuilding:
		return "building"
	case RangeEstablished:
		return "established"
	default:
		return "unknown"
	}
}

// OpeningRange is the high/low envelope of the first candles of the session.
type OpeningRange struct {
	High          float64
	Low           float64
	EstablishedAt time.Time
}

// OpeningRangeTracker builds the opening range from the first N candles of the session.
// Once established the range is immutable for the rest of the session.
type OpeningRangeTracker struct {
	needed  int
	candles int
	state   RangeState
	high    float64
	low     float64
	rng     *OpeningRange
}

// NewOpeningRangeTracker initializes a tracker that establishes after the provided number of
// candles.
func NewOpeningRangeTracker(candles int) (*OpeningRangeTracker, error) {
	if candles < 1 {
		return nil, fmt.Errorf("opening range needs at least one candle, got %d", candles)
	}

	return &OpeningRangeTracker{
		needed: candles,
		high:   math.Inf(-1),
		low:    math.Inf(1),
	}, nil
}

// Update folds the provided session candle into the range. Candles after the range is
// established are ignored.
func (t *OpeningRangeTracker) Update(candle *shared.Candle) RangeState {
	if t.state == RangeEstablished {
		return t.state
	}

	t.candles++
	t.high = math.Max(t.high, candle.High)
	t.low = math.Min(t.low, candle.Low)
	t.state = RangeBuilding

	if t.candles == t.needed {
		t.state = RangeEstablished
		t.rng = &OpeningRange{
			High:          t.high,
			Low:           t.low,
			EstablishedAt: candle.End(),
		}
	}

	return t.state
}

// State returns the current tracker state.
func (t *OpeningRangeTracker) State() RangeState {
	return t.state
}

// Range returns the established opening range.
func (t *OpeningRangeTracker) Range() (*OpeningRange, error) {
	if t.state != RangeEstablished {
		return nil, &shared.RangeNotEstablishedError{Candles: t.candles}
	}

	rng := *t.rng
	return &rng, nil
}
