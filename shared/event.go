package shared

import (
	"fmt"
	"time"
)

// EventKind represents the kind of trader event.
type EventKind int

const (
	EventEntryPlaced EventKind = iota
	EventEntryFilled
	EventExitPlaced
	EventExitFilled
	EventHalted
	EventForceExit
	EventError
	EventSummary
)

// String stringifies the provided event kind.
func (k EventKind) String() string {
	switch k {
	case EventEntryPlaced:
		return "entry placed"
	case EventEntryFilled:
		return "entry filled"
	case EventExitPlaced:
		return "exit placed"
	case EventExitFilled:
		return "exit filled"
	case EventHalted:
		return "halted"
	case EventForceExit:
		return "force exit"
	case EventError:
		return "error"
	case EventSummary:
		return "summary"
	default:
		return "unknown"
	}
}

// Event represents a notable trader state transition, delivered to operator sinks.
type Event struct {
	Kind     EventKind `json:"-"`
	Name     string    `json:"kind"`
	Market   string    `json:"market"`
	Time     time.Time `json:"time"`
	Message  string    `json:"message"`
	Price    float64   `json:"price,omitempty"`
	Quantity int64     `json:"quantity,omitempty"`
	PNL      float64   `json:"pnl,omitempty"`
}

// NewEvent initializes a new event.
func NewEvent(kind EventKind, market string, now time.Time, format string, args ...any) Event {
	return Event{
		Kind:    kind,
		Name:    kind.String(),
		Market:  market,
		Time:    now,
		Message: fmt.Sprintf(format, args...),
	}
}
