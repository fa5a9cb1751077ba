package shared

import (
	"errors"
	"fmt"
	"time"
)

// Candle represents a completed 5-minute OHLCV bar for an instrument. Date is the start of
// the bar in IST.
type Candle struct {
	Market string
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
	Date   time.Time
}

// End returns the time the candle closed.
func (c *Candle) End() time.Time {
	return c.Date.Add(CandlePeriod)
}

// Validate asserts the candle is a sane OHLCV bar.
func (c *Candle) Validate() error {
	var errs error

	if c.Date.IsZero() {
		errs = errors.Join(errs, fmt.Errorf("candle date cannot be zero"))
	}
	if c.Low > c.High {
		errs = errors.Join(errs, fmt.Errorf("candle low %f above high %f", c.Low, c.High))
	}
	if c.Open > c.High || c.Open < c.Low {
		errs = errors.Join(errs, fmt.Errorf("candle open %f outside range [%f, %f]", c.Open, c.Low, c.High))
	}
	if c.Close > c.High || c.Close < c.Low {
		errs = errors.Join(errs, fmt.Errorf("candle close %f outside range [%f, %f]", c.Close, c.Low, c.High))
	}
	if c.Volume < 0 {
		errs = errors.Join(errs, fmt.Errorf("candle volume cannot be negative"))
	}

	return errs
}
