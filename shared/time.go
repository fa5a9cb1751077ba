package shared

import (
	"fmt"
	"time"
)

const (
	// SessionTimeLayout is the layout for session times of day.
	SessionTimeLayout = "15:04"
	// DateLayout is the layout for full timestamps.
	DateLayout = "2006-01-02 15:04:05"
	// DayLayout is the layout for trading day keys.
	DayLayout = "2006-01-02"

	// CandlePeriod is the decision candle period.
	CandlePeriod = time.Minute * 5
)

// IST is the Indian Standard Time zone exchange sessions are expressed in.
var IST = time.FixedZone("IST", 5*3600+30*60)

// TimeOfDay returns the provided session time ("15:04") on the day of now, in IST.
func TimeOfDay(now time.Time, clock string) (time.Time, error) {
	parsed, err := time.Parse(SessionTimeLayout, clock)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing session time %q: %w", clock, err)
	}

	now = now.In(IST)
	return time.Date(now.Year(), now.Month(), now.Day(), parsed.Hour(), parsed.Minute(), 0, 0, IST), nil
}

// DayKey returns the trading day identifier for the provided time.
func DayKey(t time.Time) string {
	return t.In(IST).Format(DayLayout)
}
