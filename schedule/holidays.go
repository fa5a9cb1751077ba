package schedule

import (
	"time"

	"github.com/dnldd/orb/shared"
)

// nseHolidays are the NSE equity trading holidays.
var nseHolidays = map[string]struct{}{
	// 2025
	"2025-01-26": {}, // Republic Day
	"2025-02-26": {}, // Mahashivratri
	"2025-03-14": {}, // Holi
	"2025-03-31": {}, // Id-Ul-Fitr
	"2025-04-10": {}, // Shri Mahavir Jayanti
	"2025-04-14": {}, // Dr. Baba Saheb Ambedkar Jayanti
	"2025-04-18": {}, // Good Friday
	"2025-05-01": {}, // Maharashtra Day
	"2025-08-15": {}, // Independence Day
	"2025-08-27": {}, // Ganesh Chaturthi
	"2025-10-02": {}, // Gandhi Jayanti
	"2025-10-21": {}, // Diwali Laxmi Pujan, muhurat session only
	"2025-10-22": {}, // Diwali Balipratipada
	"2025-11-05": {}, // Guru Nanak Jayanti
	"2025-12-25": {}, // Christmas
	// 2026
	"2026-01-26": {}, // Republic Day
	"2026-03-20": {}, // Holi
	"2026-04-02": {}, // Id-Ul-Fitr
	"2026-04-03": {}, // Good Friday
	"2026-04-14": {}, // Dr. Baba Saheb Ambedkar Jayanti
	"2026-05-01": {}, // Maharashtra Day
	"2026-08-15": {}, // Independence Day
	"2026-09-17": {}, // Ganesh Chaturthi
	"2026-10-02": {}, // Gandhi Jayanti
	"2026-11-11": {}, // Diwali
	"2026-12-25": {}, // Christmas
}

// IsHoliday returns whether the provided time falls on an NSE holiday.
func IsHoliday(t time.Time) bool {
	_, ok := nseHolidays[shared.DayKey(t)]
	return ok
}

// IsTradingDay returns whether the exchange is open on the day of the provided time.
func IsTradingDay(t time.Time) bool {
	t = t.In(shared.IST)
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	default:
		return !IsHoliday(t)
	}
}
