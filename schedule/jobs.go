package schedule

import (
	"fmt"
	"time"

	"github.com/dnldd/orb/shared"
	"github.com/go-co-op/gocron"
)

// NewJobScheduler initializes a job scheduler running in IST. Jobs never overlap themselves.
func NewJobScheduler() *gocron.Scheduler {
	scheduler := gocron.NewScheduler(shared.IST)
	scheduler.SingletonModeAll()
	return scheduler
}

// ScheduleAt registers the provided job to run daily at the provided session time.
func ScheduleAt(scheduler *gocron.Scheduler, clock string, job func()) error {
	_, err := scheduler.Every(1).Day().At(clock).Do(job)
	if err != nil {
		return fmt.Errorf("scheduling job at %s: %w", clock, err)
	}

	return nil
}

// ScheduleEvery registers the provided job to run every period starting at start.
func ScheduleEvery(scheduler *gocron.Scheduler, period time.Duration, start time.Time, job func()) error {
	_, err := scheduler.Every(period).StartAt(start).Do(job)
	if err != nil {
		return fmt.Errorf("scheduling job every %s: %w", period, err)
	}

	return nil
}

// NextCandleClose returns the first candle close, delayed by settle, at or after now. Candle
// closes are aligned to the session open.
func (s *Schedule) NextCandleClose(now time.Time, settle time.Duration) time.Time {
	next := s.open.Add(shared.CandlePeriod + settle)
	if now.After(next) {
		elapsed := now.Sub(next)
		periods := elapsed / shared.CandlePeriod
		if elapsed%shared.CandlePeriod != 0 {
			periods++
		}
		next = next.Add(periods * shared.CandlePeriod)
	}

	return next
}
