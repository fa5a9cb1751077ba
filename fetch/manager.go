package fetch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dnldd/orb/schedule"
	"github.com/dnldd/orb/shared"
	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"
)

const (
	// bufferSize is the default buffer size for channels.
	bufferSize = 8
	// settleDelay is how long after a candle boundary the broker is polled.
	settleDelay = time.Second * 5
	// fetchTimeout bounds a single poll of the broker.
	fetchTimeout = time.Second * 20
)

// ManagerConfig represents the configuration for the fetch manager.
type ManagerConfig struct {
	// Market is the traded instrument name.
	Market string
	// Instrument is the broker instrument key.
	Instrument string
	// Fetcher fetches intraday candles from the broker.
	Fetcher shared.CandleFetcher
	// Schedule is the session schedule.
	Schedule *schedule.Schedule
	// Clock is the source of decision time.
	Clock schedule.Clock
	// JobScheduler represents the job scheduler.
	JobScheduler *gocron.Scheduler
	// SendCandle relays the provided closed 5-minute candle.
	SendCandle func(candle shared.Candle)
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// Validate asserts the config sane inputs.
func (cfg *ManagerConfig) Validate() error {
	var errs error

	if cfg.Market == "" {
		errs = errors.Join(errs, fmt.Errorf("market cannot be an empty string"))
	}
	if cfg.Instrument == "" {
		errs = errors.Join(errs, fmt.Errorf("instrument cannot be an empty string"))
	}
	if cfg.Fetcher == nil {
		errs = errors.Join(errs, fmt.Errorf("candle fetcher cannot be nil"))
	}
	if cfg.Schedule == nil {
		errs = errors.Join(errs, fmt.Errorf("schedule cannot be nil"))
	}
	if cfg.Clock == nil {
		errs = errors.Join(errs, fmt.Errorf("clock cannot be nil"))
	}
	if cfg.JobScheduler == nil {
		errs = errors.Join(errs, fmt.Errorf("job scheduler cannot be nil"))
	}
	if cfg.SendCandle == nil {
		errs = errors.Join(errs, fmt.Errorf("send candle function cannot be nil"))
	}
	if cfg.Logger == nil {
		errs = errors.Join(errs, fmt.Errorf("logger cannot be nil"))
	}

	return errs
}

// Manager polls the broker for intraday candles after every 5-minute boundary and relays
// newly closed 5-minute candles in order.
type Manager struct {
	cfg      *ManagerConfig
	lastSent time.Time
	polls    chan struct{}
}

// NewManager initializes a new fetch manager and schedules its polling job.
func NewManager(cfg *ManagerConfig) (*Manager, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	mgr := &Manager{
		cfg:   cfg,
		polls: make(chan struct{}, bufferSize),
	}

	start := cfg.Schedule.NextCandleClose(cfg.Clock.Now(), settleDelay)
	err = schedule.ScheduleEvery(cfg.JobScheduler, shared.CandlePeriod, start, mgr.SendPoll)
	if err != nil {
		return nil, fmt.Errorf("scheduling candle polls: %w", err)
	}

	return mgr, nil
}

// SendPoll signals the manager to poll the broker.
func (m *Manager) SendPoll() {
	select {
	case m.polls <- struct{}{}:
		// do nothing.
	default:
		m.cfg.Logger.Error().Msgf("poll channel at capacity: %d/%d",
			len(m.polls), bufferSize)
	}
}

// Poll fetches the session's intraday candles and relays every closed 5-minute candle not
// relayed before. It returns the number of candles relayed.
func (m *Manager) Poll(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	minutes, err := m.cfg.Fetcher.FetchIntradayCandles(ctx, m.cfg.Instrument)
	if err != nil {
		return 0, fmt.Errorf("fetching intraday candles for %s: %w", m.cfg.Market, err)
	}

	for idx := range minutes {
		minutes[idx].Market = m.cfg.Market
	}

	var sent int
	open := m.cfg.Schedule.Open()
	for _, candle := range Resample(minutes, m.cfg.Clock.Now()) {
		if candle.Date.Before(open) || !candle.Date.After(m.lastSent) {
			continue
		}

		m.cfg.SendCandle(candle)
		m.lastSent = candle.Date
		sent++
	}

	m.cfg.Logger.Debug().Msgf("relayed %d %s candles from %d minutes", sent, m.cfg.Market, len(minutes))

	return sent, nil
}

// Run manages the lifecycle processes of the fetch manager.
func (m *Manager) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.polls:
			_, err := m.Poll(ctx)
			if err != nil {
				m.cfg.Logger.Error().Msgf("polling candles: %v", err)
			}
		}
	}
}
