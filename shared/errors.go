package shared

import (
	"fmt"
	"time"
)

// DataGapError is returned when a candle is missing, duplicated or out of order relative to
// the expected 5-minute cadence.
type DataGapError struct {
	Market   string
	Expected time.Time
	Got      time.Time
}

// Error implements the error interface.
func (e *DataGapError) Error() string {
	return fmt.Sprintf("data gap for %s: expected candle at %s, got %s", e.Market,
		e.Expected.Format(DateLayout), e.Got.Format(DateLayout))
}

// IndicatorNotReadyError is returned when an indicator has not seen enough candles to be
// defined. It suppresses entry and is not a failure.
type IndicatorNotReadyError struct {
	Indicator string
}

// Error implements the error interface.
func (e *IndicatorNotReadyError) Error() string {
	return fmt.Sprintf("indicator %s not ready", e.Indicator)
}

// RangeNotEstablishedError is returned when entry is evaluated before the opening range is
// established.
type RangeNotEstablishedError struct {
	Candles int
}

// Error implements the error interface.
func (e *RangeNotEstablishedError) Error() string {
	return fmt.Sprintf("opening range not established after %d candles", e.Candles)
}

// OrderTimeoutError is returned when an order is not confirmed within the fill timeout.
type OrderTimeoutError struct {
	OrderID string
	Side    Side
	Timeout time.Duration
}

// Error implements the error interface.
func (e *OrderTimeoutError) Error() string {
	return fmt.Sprintf("%s order %s not filled within %s", e.Side, e.OrderID, e.Timeout)
}

// OrderRejectedError is returned when the broker rejects or cancels an order.
type OrderRejectedError struct {
	OrderID string
	Side    Side
	Reason  string
}

// Error implements the error interface.
func (e *OrderRejectedError) Error() string {
	if e.OrderID == "" {
		return fmt.Sprintf("%s order rejected: %s", e.Side, e.Reason)
	}
	return fmt.Sprintf("%s order %s rejected: %s", e.Side, e.OrderID, e.Reason)
}

// ConfigInvalidError is returned when trader configuration is missing or inconsistent.
type ConfigInvalidError struct {
	Err error
}

// Error implements the error interface.
func (e *ConfigInvalidError) Error() string {
	return fmt.Sprintf("invalid config: %v", e.Err)
}

// Unwrap returns the underlying validation errors.
func (e *ConfigInvalidError) Unwrap() error {
	return e.Err
}
