package indicator

import (
	"fmt"
	"time"

	"github.com/dnldd/orb/shared"
)

const (
	// FastPeriod is the fast exponential moving average period.
	FastPeriod = 9
	// SlowPeriod is the slow exponential moving average period.
	SlowPeriod = 21
	// RSIPeriod is the relative strength index period.
	RSIPeriod = 14
	// VolumePeriod is the number of preceding candles averaged for volume.
	VolumePeriod = 20
	// MinVolumeSamples is the fewest preceding candles the volume average is defined on.
	MinVolumeSamples = 5
)

// Reading represents a single indicator value. Value is meaningless unless Ready is set.
type Reading struct {
	Value float64
	Ready bool
}

// Snapshot represents the indicator values after a candle closed.
type Snapshot struct {
	Date        time.Time
	Candles     int
	EMA9        Reading
	EMA21       Reading
	RSI14       Reading
	AvgVolume20 Reading
}

// NotReady returns an error naming the first undefined indicator, nil when every indicator
// is defined.
func (s *Snapshot) NotReady() error {
	switch {
	case !s.EMA9.Ready:
		return &shared.IndicatorNotReadyError{Indicator: "ema9"}
	case !s.EMA21.Ready:
		return &shared.IndicatorNotReadyError{Indicator: "ema21"}
	case !s.RSI14.Ready:
		return &shared.IndicatorNotReadyError{Indicator: "rsi14"}
	case !s.AvgVolume20.Ready:
		return &shared.IndicatorNotReadyError{Indicator: "avgvolume20"}
	default:
		return nil
	}
}

// Engine derives indicator snapshots from the session's candle stream. It is a pure function
// of the candles fed to it: replaying the same candles yields the same snapshots.
type Engine struct {
	fast    *EMA
	slow    *EMA
	rsi     *RSI
	volumes *shared.CandleSnapshot
	count   int
	last    Snapshot
}

// NewEngine initializes a new indicator engine.
func NewEngine() (*Engine, error) {
	fast, err := NewEMA(FastPeriod)
	if err != nil {
		return nil, fmt.Errorf("creating fast ema: %w", err)
	}
	slow, err := NewEMA(SlowPeriod)
	if err != nil {
		return nil, fmt.Errorf("creating slow ema: %w", err)
	}
	rsi, err := NewRSI(RSIPeriod)
	if err != nil {
		return nil, fmt.Errorf("creating rsi: %w", err)
	}
	volumes, err := shared.NewCandleSnapshot(VolumePeriod + 1)
	if err != nil {
		return nil, fmt.Errorf("creating volume snapshot: %w", err)
	}

	return &Engine{
		fast:    fast,
		slow:    slow,
		rsi:     rsi,
		volumes: volumes,
	}, nil
}

// Update folds the provided closed candle into every indicator and returns the resulting
// snapshot.
func (e *Engine) Update(candle *shared.Candle) Snapshot {
	e.count++
	e.fast.Update(candle.Close)
	e.slow.Update(candle.Close)
	e.rsi.Update(candle.Close)
	e.volumes.Update(candle)

	snapshot := Snapshot{
		Date:    candle.Date,
		Candles: e.count,
	}

	snapshot.EMA9.Value, snapshot.EMA9.Ready = e.fast.Value()
	snapshot.EMA21.Value, snapshot.EMA21.Ready = e.slow.Value()
	snapshot.RSI14.Value, snapshot.RSI14.Ready = e.rsi.Value()

	avg, samples := e.volumes.AverageVolumeN(VolumePeriod)
	snapshot.AvgVolume20 = Reading{Value: avg, Ready: samples >= MinVolumeSamples}

	e.last = snapshot
	return snapshot
}

// Last returns the most recent snapshot.
func (e *Engine) Last() Snapshot {
	return e.last
}
