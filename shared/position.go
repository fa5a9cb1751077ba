package shared

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Position represents an open long holding in the traded instrument. It exists only between
// a confirmed entry fill and a confirmed exit fill.
type Position struct {
	ID         string
	Market     string
	EntryPrice float64
	Quantity   int64
	EntryTime  time.Time
	StopLoss   float64
	Target     float64
}

// NewPosition initializes a position from the provided entry fill and its risk levels.
func NewPosition(market string, fill *Fill, stopLoss float64, target float64) (*Position, error) {
	if fill == nil {
		return nil, fmt.Errorf("entry fill cannot be nil")
	}
	if fill.Side != Buy {
		return nil, fmt.Errorf("expected a %s entry fill, got %s", Buy, fill.Side)
	}
	if fill.Quantity < 1 {
		return nil, fmt.Errorf("entry fill quantity must be positive, got %d", fill.Quantity)
	}

	pos := &Position{
		ID:         uuid.New().String(),
		Market:     market,
		EntryPrice: fill.Price,
		Quantity:   fill.Quantity,
		EntryTime:  fill.Time,
		StopLoss:   stopLoss,
		Target:     target,
	}

	return pos, nil
}

// Close builds the completed trade for the position using the provided exit fill.
func (p *Position) Close(fill *Fill, reason ExitReason, pnl float64) (*Trade, error) {
	if fill == nil {
		return nil, fmt.Errorf("exit fill cannot be nil")
	}
	if fill.Side != Sell {
		return nil, fmt.Errorf("expected a %s exit fill, got %s", Sell, fill.Side)
	}

	trade := &Trade{
		ID:         p.ID,
		Market:     p.Market,
		Quantity:   p.Quantity,
		EntryPrice: p.EntryPrice,
		ExitPrice:  fill.Price,
		StopLoss:   p.StopLoss,
		Target:     p.Target,
		EntryTime:  p.EntryTime,
		ExitTime:   fill.Time,
		ExitReason: reason,
		PNL:        pnl,
	}

	return trade, nil
}

// Trade represents a completed entry and exit round trip.
type Trade struct {
	ID         string
	Market     string
	Quantity   int64
	EntryPrice float64
	ExitPrice  float64
	StopLoss   float64
	Target     float64
	EntryTime  time.Time
	ExitTime   time.Time
	ExitReason ExitReason
	PNL        float64
}

// DailyRiskState represents the session-scoped risk accounting of the trader.
type DailyRiskState struct {
	// Day is the trading day the state belongs to, formatted with DayLayout.
	Day           string
	RealizedPNL   float64
	UnrealizedPNL float64
	Halted        bool
	HaltReason    HaltReason
	Trades        int
}
