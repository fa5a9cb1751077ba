package schedule

import (
	"testing"
	"time"

	"github.com/dnldd/orb/shared"
	"github.com/peterldowns/testy/assert"
)

func TestNewSchedule(t *testing.T) {
	now := time.Date(2025, time.March, 3, 8, 0, 0, 0, shared.IST)

	tests := []struct {
		name    string
		cfg     ScheduleConfig
		wantErr bool
	}{
		{
			name: "defaults",
			cfg:  ScheduleConfig{},
		},
		{
			name: "custom cutoff",
			cfg:  ScheduleConfig{EntryCutoff: "14:30"},
		},
		{
			name:    "malformed time",
			cfg:     ScheduleConfig{ForceExit: "3:10pm"},
			wantErr: true,
		},
		{
			name:    "cutoff after force exit",
			cfg:     ScheduleConfig{EntryCutoff: "15:20", ForceExit: "15:10"},
			wantErr: true,
		},
		{
			name:    "cutoff before open",
			cfg:     ScheduleConfig{EntryCutoff: "09:00"},
			wantErr: true,
		},
		{
			name:    "summary before force exit",
			cfg:     ScheduleConfig{Summary: "15:05"},
			wantErr: true,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := NewSchedule(&test.cfg, now)
			if test.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestScheduleBoundaries(t *testing.T) {
	day := time.Date(2025, time.March, 3, 0, 0, 0, 0, shared.IST)
	sched, err := NewSchedule(&ScheduleConfig{}, day.Add(time.Hour*8))
	assert.NoError(t, err)

	assert.Equal(t, sched.Day(), "2025-03-03")
	assert.Equal(t, sched.Open(), day.Add(time.Hour*9+time.Minute*15))
	assert.Equal(t, sched.EntryCutoff(), day.Add(time.Hour*15))
	assert.Equal(t, sched.ForceExit(), day.Add(time.Hour*15+time.Minute*10))
	assert.Equal(t, sched.Summary(), day.Add(time.Hour*15+time.Minute*15))

	// Ensure the force exit is due from the deadline onwards.
	assert.False(t, sched.ForceExitDue(day.Add(time.Hour*15+time.Minute*9)))
	assert.True(t, sched.ForceExitDue(day.Add(time.Hour*15+time.Minute*10)))
	assert.True(t, sched.ForceExitDue(day.Add(time.Hour*15+time.Minute*30)))
}

func TestNextCandleClose(t *testing.T) {
	day := time.Date(2025, time.March, 3, 0, 0, 0, 0, shared.IST)
	sched, err := NewSchedule(&ScheduleConfig{}, day)
	assert.NoError(t, err)

	settle := time.Second * 5
	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"before open", day.Add(time.Hour * 8), day.Add(time.Hour*9 + time.Minute*20 + settle)},
		{"just before first close", day.Add(time.Hour*9 + time.Minute*20 + time.Second*3),
			day.Add(time.Hour*9 + time.Minute*20 + settle)},
		{"just after first close", day.Add(time.Hour*9 + time.Minute*20 + time.Second*6),
			day.Add(time.Hour*9 + time.Minute*25 + settle)},
		{"exactly on a close", day.Add(time.Hour*11 + settle), day.Add(time.Hour*11 + settle)},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, sched.NextCandleClose(test.now, settle), test.want)
		})
	}
}

func TestIsTradingDay(t *testing.T) {
	tests := []struct {
		name string
		day  time.Time
		want bool
	}{
		{"weekday", time.Date(2025, time.March, 3, 10, 0, 0, 0, shared.IST), true},
		{"saturday", time.Date(2025, time.March, 1, 10, 0, 0, 0, shared.IST), false},
		{"sunday", time.Date(2025, time.March, 2, 10, 0, 0, 0, shared.IST), false},
		{"holi", time.Date(2025, time.March, 14, 10, 0, 0, 0, shared.IST), false},
		{"diwali 2026", time.Date(2026, time.November, 11, 10, 0, 0, 0, shared.IST), false},
		{"utc evening before a holiday", time.Date(2025, time.March, 13, 20, 0, 0, 0, time.UTC), false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, IsTradingDay(test.day), test.want)
		})
	}
}

func TestManualClock(t *testing.T) {
	start := time.Date(2025, time.March, 3, 9, 15, 0, 0, shared.IST)
	clock := NewManualClock(start)
	assert.Equal(t, clock.Now(), start)

	clock.Advance(shared.CandlePeriod)
	assert.Equal(t, clock.Now(), start.Add(shared.CandlePeriod))

	clock.Set(start)
	assert.Equal(t, clock.Now(), start)
}

func TestScheduleJobs(t *testing.T) {
	scheduler := NewJobScheduler()

	err := ScheduleAt(scheduler, "15:10", func() {})
	assert.NoError(t, err)

	err = ScheduleEvery(scheduler, shared.CandlePeriod, time.Now().Add(time.Hour), func() {})
	assert.NoError(t, err)

	assert.Equal(t, len(scheduler.Jobs()), 2)
}
