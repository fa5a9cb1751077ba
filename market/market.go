package market

import (
	"errors"
	"fmt"
	"time"

	"github.com/dnldd/orb/indicator"
	"github.com/dnldd/orb/shared"
	"github.com/rs/zerolog"
)

// MarketConfig represents the configuration of a tracked market session.
type MarketConfig struct {
	// Market is the name of the tracked instrument.
	Market string
	// RangeCandles is the number of candles the opening range is built from.
	RangeCandles int
	// SessionOpen is the start of the first candle of the session.
	SessionOpen time.Time
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// Validate asserts the config sane inputs.
func (cfg *MarketConfig) Validate() error {
	var errs error

	if cfg.Market == "" {
		errs = errors.Join(errs, fmt.Errorf("market cannot be an empty string"))
	}
	if cfg.RangeCandles < 1 {
		errs = errors.Join(errs, fmt.Errorf("range candles must be positive, got %d", cfg.RangeCandles))
	}
	if cfg.SessionOpen.IsZero() {
		errs = errors.Join(errs, fmt.Errorf("session open cannot be zero"))
	}
	if cfg.Logger == nil {
		errs = errors.Join(errs, fmt.Errorf("logger cannot be nil"))
	}

	return errs
}

// Update represents the market state after a candle closed.
type Update struct {
	Candle *shared.Candle
	// Indicators is the snapshot including the candle.
	Indicators indicator.Snapshot
	// Previous is the snapshot before the candle.
	Previous indicator.Snapshot
	// Range is the opening range, nil until established.
	Range *OpeningRange
}

// Market tracks a single instrument's session: candle cadence, the opening range and the
// indicators derived from it.
type Market struct {
	cfg        *MarketConfig
	tracker    *OpeningRangeTracker
	indicators *indicator.Engine
	last       *shared.Candle
	gap        error
}

// NewMarket initializes a new market.
func NewMarket(cfg *MarketConfig) (*Market, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	tracker, err := NewOpeningRangeTracker(cfg.RangeCandles)
	if err != nil {
		return nil, fmt.Errorf("creating opening range tracker: %w", err)
	}

	indicators, err := indicator.NewEngine()
	if err != nil {
		return nil, fmt.Errorf("creating indicator engine: %w", err)
	}

	mkt := &Market{
		cfg:        cfg,
		tracker:    tracker,
		indicators: indicators,
	}

	return mkt, nil
}

// expectedNext returns the start time of the next expected candle.
func (m *Market) expectedNext() time.Time {
	if m.last == nil {
		return m.cfg.SessionOpen
	}

	return m.last.Date.Add(shared.CandlePeriod)
}

// LastCandle returns the most recently accepted candle.
func (m *Market) LastCandle() *shared.Candle {
	return m.last
}

// RangeState returns the state of the opening range.
func (m *Market) RangeState() RangeState {
	return m.tracker.State()
}

// Update processes the provided closed candle. Candles before the session open are ignored
// and return a nil update. A missing, duplicated or out of order candle returns a
// DataGapError, as does every candle after one.
func (m *Market) Update(candle *shared.Candle) (*Update, error) {
	if candle.Market != m.cfg.Market {
		return nil, fmt.Errorf("unexpected market %s, expected %s", candle.Market, m.cfg.Market)
	}

	err := candle.Validate()
	if err != nil {
		return nil, fmt.Errorf("invalid candle at %s: %w", candle.Date.Format(shared.DateLayout), err)
	}

	if m.gap != nil {
		return nil, m.gap
	}

	if candle.Date.Before(m.cfg.SessionOpen) {
		m.cfg.Logger.Debug().Msgf("ignoring pre-open candle at %s", candle.Date.Format(shared.DateLayout))
		return nil, nil
	}

	expected := m.expectedNext()
	if !candle.Date.Equal(expected) {
		m.gap = &shared.DataGapError{
			Market:   m.cfg.Market,
			Expected: expected,
			Got:      candle.Date,
		}
		return nil, m.gap
	}

	m.last = candle
	state := m.tracker.Update(candle)
	if state == RangeEstablished && candle.End().Equal(m.tracker.rng.EstablishedAt) {
		m.cfg.Logger.Info().Msgf("opening range for %s established: high %.2f, low %.2f",
			m.cfg.Market, m.tracker.rng.High, m.tracker.rng.Low)
	}

	prev := m.indicators.Last()
	snapshot := m.indicators.Update(candle)

	update := &Update{
		Candle:     candle,
		Indicators: snapshot,
		Previous:   prev,
	}

	if state == RangeEstablished {
		update.Range, _ = m.tracker.Range()
	}

	return update, nil
}
