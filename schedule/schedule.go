package schedule

import (
	"errors"
	"fmt"
	"time"

	"github.com/dnldd/orb/shared"
)

const (
	// Session times in IST.
	DefaultOpen        = "09:15"
	DefaultEntryCutoff = "15:00"
	DefaultForceExit   = "15:10"
	DefaultSummary     = "15:15"
)

// ScheduleConfig represents the session schedule configuration. Times are "15:04" in IST.
type ScheduleConfig struct {
	Open        string
	EntryCutoff string
	ForceExit   string
	Summary     string
}

// Schedule resolves the session's time boundaries for a trading day.
type Schedule struct {
	cfg         *ScheduleConfig
	open        time.Time
	entryCutoff time.Time
	forceExit   time.Time
	summary     time.Time
}

// NewSchedule initializes a schedule for the trading day of the provided time.
func NewSchedule(cfg *ScheduleConfig, now time.Time) (*Schedule, error) {
	if cfg.Open == "" {
		cfg.Open = DefaultOpen
	}
	if cfg.EntryCutoff == "" {
		cfg.EntryCutoff = DefaultEntryCutoff
	}
	if cfg.ForceExit == "" {
		cfg.ForceExit = DefaultForceExit
	}
	if cfg.Summary == "" {
		cfg.Summary = DefaultSummary
	}

	var errs error
	open, err := shared.TimeOfDay(now, cfg.Open)
	errs = errors.Join(errs, err)
	entryCutoff, err := shared.TimeOfDay(now, cfg.EntryCutoff)
	errs = errors.Join(errs, err)
	forceExit, err := shared.TimeOfDay(now, cfg.ForceExit)
	errs = errors.Join(errs, err)
	summary, err := shared.TimeOfDay(now, cfg.Summary)
	errs = errors.Join(errs, err)
	if errs != nil {
		return nil, errs
	}

	if !open.Before(entryCutoff) {
		errs = errors.Join(errs, fmt.Errorf("entry cutoff %s must be after open %s", cfg.EntryCutoff, cfg.Open))
	}
	if !entryCutoff.Before(forceExit) {
		errs = errors.Join(errs, fmt.Errorf("force exit %s must be after entry cutoff %s", cfg.ForceExit, cfg.EntryCutoff))
	}
	if summary.Before(forceExit) {
		errs = errors.Join(errs, fmt.Errorf("summary %s cannot be before force exit %s", cfg.Summary, cfg.ForceExit))
	}
	if errs != nil {
		return nil, errs
	}

	return &Schedule{
		cfg:         cfg,
		open:        open,
		entryCutoff: entryCutoff,
		forceExit:   forceExit,
		summary:     summary,
	}, nil
}

// Day returns the trading day key of the schedule.
func (s *Schedule) Day() string {
	return shared.DayKey(s.open)
}

// Open returns the start of the first session candle.
func (s *Schedule) Open() time.Time {
	return s.open
}

// EntryCutoff returns the time after which no new entries are taken.
func (s *Schedule) EntryCutoff() time.Time {
	return s.entryCutoff
}

// ForceExit returns the time at which any open position is closed.
func (s *Schedule) ForceExit() time.Time {
	return s.forceExit
}

// Summary returns the time the daily summary is sent.
func (s *Schedule) Summary() time.Time {
	return s.summary
}

// Config returns the schedule configuration.
func (s *Schedule) Config() ScheduleConfig {
	return *s.cfg
}

// ForceExitDue returns whether the force exit deadline has been reached.
func (s *Schedule) ForceExitDue(now time.Time) bool {
	return !now.Before(s.forceExit)
}
