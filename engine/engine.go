package engine

import (
	"errors"
	"time"

	"github.com/dnldd/orb/indicator"
	"github.com/dnldd/orb/market"
	"github.com/dnldd/orb/shared"
)

const (
	// minEntryRSI is the lowest momentum reading an entry is taken at.
	minEntryRSI = 45.0
	// maxEntryRSI is the highest momentum reading an entry is taken at.
	maxEntryRSI = 70.0
	// volumeMultiplier is how far above the average volume a breakout candle must trade.
	volumeMultiplier = 1.5
)

var (
	// ErrHalted is reported when entry is suppressed by the daily risk halt.
	ErrHalted = errors.New("trading halted for the day")
	// ErrPastCutoff is reported when entry is suppressed by the entry cutoff.
	ErrPastCutoff = errors.New("past entry cutoff")
)

// Input represents everything a single evaluation depends on.
type Input struct {
	// Now is the decision time.
	Now time.Time
	// EntryCutoff is the time after which no new entries are taken.
	EntryCutoff time.Time
	// ForceExit is the time at which any open position is closed.
	ForceExit time.Time
	// Halted is the daily risk halt.
	Halted bool
	// Candle is the just-closed candle, nil for deadline-only evaluations.
	Candle *shared.Candle
	// Indicators is the snapshot including the candle.
	Indicators indicator.Snapshot
	// Previous is the snapshot before the candle.
	Previous indicator.Snapshot
	// Range is the established opening range, nil before it is established.
	Range *market.OpeningRange
	// Position is the open position, nil when flat.
	Position *shared.Position
}

// Conditions records which entry conditions held for a candle.
type Conditions struct {
	Breakout bool
	Trend    bool
	Momentum bool
	Volume   bool
}

// All returns whether every entry condition held.
func (c Conditions) All() bool {
	return c.Breakout && c.Trend && c.Momentum && c.Volume
}

// Signal represents the outcome of an evaluation.
type Signal struct {
	Entry      bool
	Exit       bool
	ExitReason shared.ExitReason
	Conditions Conditions
	// Skipped is why entry conditions were not evaluated, nil when they were or when a
	// position is open.
	Skipped error
}

// evaluateExit returns the exit reason for the open position, highest precedence first.
func evaluateExit(in *Input) shared.ExitReason {
	if !in.Now.Before(in.ForceExit) {
		return shared.ForceExit
	}

	if in.Candle == nil {
		return shared.NoExit
	}

	pos := in.Position
	switch {
	case in.Candle.Close <= pos.StopLoss:
		return shared.StopLoss
	case in.Candle.Close >= pos.Target:
		return shared.Target
	case crossedDown(in.Previous, in.Indicators):
		return shared.TrendReversal
	default:
		return shared.NoExit
	}
}

// crossedDown returns whether the fast average moved from at or above the slow average to
// strictly below it. A touch without crossing is not a reversal.
func crossedDown(prev indicator.Snapshot, cur indicator.Snapshot) bool {
	if !prev.EMA9.Ready || !prev.EMA21.Ready || !cur.EMA9.Ready || !cur.EMA21.Ready {
		return false
	}

	return prev.EMA9.Value >= prev.EMA21.Value && cur.EMA9.Value < cur.EMA21.Value
}

// evaluateEntry returns the entry conditions for the candle, or why they could not be
// evaluated.
func evaluateEntry(in *Input) (Conditions, error) {
	var conditions Conditions

	switch {
	case in.Halted:
		return conditions, ErrHalted
	case !in.Now.Before(in.EntryCutoff):
		return conditions, ErrPastCutoff
	case in.Candle == nil:
		return conditions, nil
	case in.Range == nil:
		return conditions, &shared.RangeNotEstablishedError{Candles: in.Indicators.Candles}
	}

	err := in.Indicators.NotReady()
	if err != nil {
		return conditions, err
	}

	snap := in.Indicators
	conditions.Breakout = in.Candle.Close > in.Range.High
	conditions.Trend = snap.EMA9.Value > snap.EMA21.Value
	conditions.Momentum = snap.RSI14.Value >= minEntryRSI && snap.RSI14.Value <= maxEntryRSI
	conditions.Volume = in.Candle.Volume > volumeMultiplier*snap.AvgVolume20.Value

	return conditions, nil
}

// Evaluate computes the entry and exit signals for the provided input. It is a pure function
// of its input.
func Evaluate(in *Input) Signal {
	var signal Signal

	if in.Position != nil {
		signal.ExitReason = evaluateExit(in)
		signal.Exit = signal.ExitReason != shared.NoExit
		return signal
	}

	signal.Conditions, signal.Skipped = evaluateEntry(in)
	signal.Entry = signal.Skipped == nil && signal.Conditions.All()

	return signal
}
