package shared

import "time"

// Side represents the side of an order.
type Side int

const (
	Buy Side = iota
	Sell
)

// String stringifies the provided side.
func (s Side) String() string {
	switch s {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	default:
		return "unknown"
	}
}

// OrderIntent represents an instruction to the execution gateway. Intents are always market
// orders for the configured instrument.
type OrderIntent struct {
	Market   string
	Side     Side
	Quantity int64
	Reason   string
	// Price is the reference price at signal time. It does not bound the fill.
	Price float64
}

// Fill represents a confirmed order execution.
type Fill struct {
	OrderID  string
	Side     Side
	Price    float64
	Quantity int64
	Time     time.Time
}
