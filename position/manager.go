package position

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/dnldd/orb/engine"
	"github.com/dnldd/orb/market"
	"github.com/dnldd/orb/metrics"
	"github.com/dnldd/orb/risk"
	"github.com/dnldd/orb/schedule"
	"github.com/dnldd/orb/shared"
	"github.com/rs/zerolog"
	"go.uber.org/atomic"
)

const (
	// bufferSize is the default buffer size for channels.
	bufferSize = 64
	// entryReason is the reason attached to entry intents.
	entryReason = "opening range breakout"
)

// SummaryRequest requests the daily risk state from the manager.
type SummaryRequest struct {
	Response chan shared.DailyRiskState
}

// ManagerConfig represents the position manager configuration.
type ManagerConfig struct {
	// Market is the traded instrument.
	Market string
	// TradingCapital is the capital an entry is sized from.
	TradingCapital float64
	// Leverage is the intraday margin multiplier applied to the capital.
	Leverage float64
	// FillTimeout bounds how long an order may remain unconfirmed.
	FillTimeout time.Duration
	// Schedule is the session schedule.
	Schedule *schedule.Schedule
	// Clock is the source of decision time.
	Clock schedule.Clock
	// Tracker tracks the session's candles, opening range and indicators.
	Tracker *market.Market
	// Guard owns the daily risk state.
	Guard *risk.Guard
	// Gateway places and confirms orders.
	Gateway shared.ExecutionGateway
	// Notify relays the provided event to operator sinks.
	Notify func(event shared.Event)
	// PersistTrade persists the provided completed trade.
	PersistTrade func(ctx context.Context, trade *shared.Trade) error
	// PersistRiskState persists the provided daily risk state.
	PersistRiskState func(ctx context.Context, state *shared.DailyRiskState) error
	// Metrics records trader metrics, optional.
	Metrics *metrics.Metrics
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// Validate asserts the config sane inputs.
func (cfg *ManagerConfig) Validate() error {
	var errs error

	if cfg.Market == "" {
		errs = errors.Join(errs, fmt.Errorf("market cannot be an empty string"))
	}
	if cfg.TradingCapital <= 0 {
		errs = errors.Join(errs, fmt.Errorf("trading capital must be positive"))
	}
	if cfg.Leverage <= 0 {
		errs = errors.Join(errs, fmt.Errorf("leverage must be positive"))
	}
	if cfg.FillTimeout <= 0 {
		errs = errors.Join(errs, fmt.Errorf("fill timeout must be positive"))
	}
	if cfg.Schedule == nil {
		errs = errors.Join(errs, fmt.Errorf("schedule cannot be nil"))
	}
	if cfg.Clock == nil {
		errs = errors.Join(errs, fmt.Errorf("clock cannot be nil"))
	}
	if cfg.Tracker == nil {
		errs = errors.Join(errs, fmt.Errorf("market tracker cannot be nil"))
	}
	if cfg.Guard == nil {
		errs = errors.Join(errs, fmt.Errorf("risk guard cannot be nil"))
	}
	if cfg.Gateway == nil {
		errs = errors.Join(errs, fmt.Errorf("execution gateway cannot be nil"))
	}
	if cfg.Notify == nil {
		errs = errors.Join(errs, fmt.Errorf("notify function cannot be nil"))
	}
	if cfg.PersistTrade == nil {
		errs = errors.Join(errs, fmt.Errorf("persist trade function cannot be nil"))
	}
	if cfg.PersistRiskState == nil {
		errs = errors.Join(errs, fmt.Errorf("persist risk state function cannot be nil"))
	}
	if cfg.Logger == nil {
		errs = errors.Join(errs, fmt.Errorf("logger cannot be nil"))
	}

	return errs
}

// Manager drives the single-instrument position state machine. Every candle, deadline and
// order outcome is processed sequentially by Run; at most one order is in flight at a time.
type Manager struct {
	cfg        *ManagerConfig
	state      atomic.Int32
	position   *shared.Position
	unresolved *shared.Position
	reconcile  bool
	candles    chan shared.Candle
	deadlines  chan struct{}
	summaries  chan SummaryRequest
}

// NewManager initializes a new position manager. A day that was already traded or halted
// before a restart starts done for the day, and a traded day squares off whatever the broker
// still holds at the force exit.
func NewManager(cfg *ManagerConfig) (*Manager, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	mgr := &Manager{
		cfg:       cfg,
		candles:   make(chan shared.Candle, bufferSize),
		deadlines: make(chan struct{}, bufferSize),
		summaries: make(chan SummaryRequest, bufferSize),
	}

	state := cfg.Guard.State()
	if state.Halted || state.Trades > 0 {
		cfg.Logger.Info().Msgf("%s already traded (%d) or halted (%v), done for the day",
			state.Day, state.Trades, state.Halted)
		mgr.setState(DoneForDay)
		mgr.reconcile = state.Trades > 0
	}

	return mgr, nil
}

// State returns the current state of the manager.
func (m *Manager) State() State {
	return State(m.state.Load())
}

// Position returns a copy of the open position, nil when flat.
func (m *Manager) Position() *shared.Position {
	if m.position == nil {
		return nil
	}
	pos := *m.position
	return &pos
}

// setState transitions the manager to the provided state.
func (m *Manager) setState(state State) {
	prev := State(m.state.Swap(int32(state)))
	if prev != state {
		m.cfg.Logger.Info().Msgf("%s: %s -> %s", m.cfg.Market, prev, state)
	}

	halted, _ := m.cfg.Guard.Halted()
	m.cfg.Metrics.SetState(int(state), halted)
}

// SendCandle relays the provided closed candle for processing.
func (m *Manager) SendCandle(candle shared.Candle) {
	select {
	case m.candles <- candle:
		// do nothing.
	default:
		m.cfg.Logger.Error().Msgf("candle channel at capacity: %d/%d",
			len(m.candles), bufferSize)
	}
}

// SendDeadline signals a schedule deadline for processing.
func (m *Manager) SendDeadline() {
	select {
	case m.deadlines <- struct{}{}:
		// do nothing.
	default:
		m.cfg.Logger.Error().Msgf("deadline channel at capacity: %d/%d",
			len(m.deadlines), bufferSize)
	}
}

// SendSummaryRequest relays the provided summary request for processing.
func (m *Manager) SendSummaryRequest(req SummaryRequest) {
	select {
	case m.summaries <- req:
		// do nothing.
	default:
		m.cfg.Logger.Error().Msgf("summary request channel at capacity: %d/%d",
			len(m.summaries), bufferSize)
	}
}

// notify relays an event for the provided kind.
func (m *Manager) notify(kind shared.EventKind, format string, args ...any) shared.Event {
	event := shared.NewEvent(kind, m.cfg.Market, m.cfg.Clock.Now(), format, args...)
	m.cfg.Notify(event)
	return event
}

// escalate surfaces a money-moving failure to the operator.
func (m *Manager) escalate(err error, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	m.cfg.Logger.Error().Err(err).Msg(msg)
	m.notify(shared.EventError, "%s: %v", msg, err)
}

// persistRiskState persists the current daily risk state.
func (m *Manager) persistRiskState(ctx context.Context) {
	state := m.cfg.Guard.State()
	m.cfg.Metrics.SetPNL(state.RealizedPNL, state.UnrealizedPNL)

	err := m.cfg.PersistRiskState(ctx, &state)
	if err != nil {
		m.cfg.Logger.Error().Msgf("persisting risk state: %v", err)
	}
}

// lastPrice returns the close of the most recent session candle.
func (m *Manager) lastPrice() float64 {
	last := m.cfg.Tracker.LastCandle()
	if last == nil {
		return 0
	}
	return last.Close
}

// execute places the provided intent and waits for its fill within the fill timeout. An
// unconfirmed order is cancelled before returning an OrderTimeoutError.
func (m *Manager) execute(ctx context.Context, intent *shared.OrderIntent) (*shared.Fill, error) {
	side := intent.Side.String()
	start := time.Now()

	orderID, err := m.cfg.Gateway.PlaceOrder(ctx, intent)
	if err != nil {
		m.cfg.Metrics.ObserveOrder(side, "rejected", 0)
		var rejectedErr *shared.OrderRejectedError
		if errors.As(err, &rejectedErr) {
			return nil, err
		}
		return nil, &shared.OrderRejectedError{Side: intent.Side, Reason: err.Error()}
	}

	m.cfg.Logger.Info().Msgf("placed %s order %s for %d %s (%s)", side, orderID,
		intent.Quantity, intent.Market, intent.Reason)

	fillCtx, cancel := context.WithTimeout(ctx, m.cfg.FillTimeout)
	defer cancel()

	fill, err := m.cfg.Gateway.AwaitFill(fillCtx, orderID, intent.Side)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			m.cfg.Metrics.ObserveOrder(side, "timeout", 0)
			cancelErr := m.cfg.Gateway.CancelOrder(ctx, orderID)
			if cancelErr != nil {
				m.cfg.Logger.Error().Msgf("cancelling unconfirmed %s order %s: %v", side, orderID, cancelErr)
			}
			return nil, &shared.OrderTimeoutError{OrderID: orderID, Side: intent.Side, Timeout: m.cfg.FillTimeout}
		}

		m.cfg.Metrics.ObserveOrder(side, "rejected", 0)
		return nil, err
	}

	m.cfg.Metrics.ObserveOrder(side, "filled", time.Since(start))
	if fill.Quantity != intent.Quantity {
		m.cfg.Logger.Warn().Msgf("%s order %s filled %d of %d", side, orderID, fill.Quantity, intent.Quantity)
	}

	return fill, nil
}

// enter places a sized BUY intent for the provided breakout candle and opens the position on
// its fill.
func (m *Manager) enter(ctx context.Context, candle *shared.Candle) error {
	qty := risk.Quantity(m.cfg.TradingCapital, m.cfg.Leverage, candle.Close)
	if qty < 1 {
		m.cfg.Logger.Warn().Msgf("entry signal at %.2f skipped: capital %.2f with leverage %.2f buys nothing",
			candle.Close, m.cfg.TradingCapital, m.cfg.Leverage)
		return nil
	}

	intent := &shared.OrderIntent{
		Market:   m.cfg.Market,
		Side:     shared.Buy,
		Quantity: qty,
		Reason:   entryReason,
		Price:    candle.Close,
	}

	m.setState(Entering)
	m.notify(shared.EventEntryPlaced, "BUY %d %s @ ~%.2f (%s)", qty, m.cfg.Market, candle.Close, entryReason)

	fill, err := m.execute(ctx, intent)
	if err != nil {
		var timeoutErr *shared.OrderTimeoutError
		if errors.As(err, &timeoutErr) {
			// The order may still fill at the broker.
			m.cfg.Guard.RecordEntry()
			m.reconcile = true
		}
		m.escalate(err, "entry order failed")
		m.setState(DoneForDay)
		m.persistRiskState(ctx)
		return err
	}

	m.cfg.Guard.RecordEntry()

	stop, target, err := m.cfg.Guard.Levels(fill.Price, fill.Quantity)
	if err == nil {
		m.position, err = shared.NewPosition(m.cfg.Market, fill, stop, target)
	}
	if err != nil {
		m.reconcile = true
		m.escalate(err, "unusable entry fill: %s", spew.Sdump(fill))
		m.setState(DoneForDay)
		m.persistRiskState(ctx)
		return err
	}

	m.setState(Long)
	event := m.notify(shared.EventEntryFilled, "bought %d %s @ %.2f, stop %.2f, target %.2f",
		m.position.Quantity, m.cfg.Market, m.position.EntryPrice, stop, target)
	m.cfg.Logger.Info().Msg(event.Message)
	m.persistRiskState(ctx)

	return nil
}

// exit places a SELL intent for the open position and closes it on its fill. The manager is
// done for the day afterwards, whatever the outcome.
func (m *Manager) exit(ctx context.Context, reason shared.ExitReason, price float64) error {
	pos := m.position
	intent := &shared.OrderIntent{
		Market:   m.cfg.Market,
		Side:     shared.Sell,
		Quantity: pos.Quantity,
		Reason:   reason.String(),
		Price:    price,
	}

	m.setState(Exiting)
	m.notify(shared.EventExitPlaced, "SELL %d %s @ ~%.2f (%s)", pos.Quantity, m.cfg.Market, price, reason)

	fill, err := m.execute(ctx, intent)
	if err != nil {
		m.unresolved = pos
		m.reconcile = true
		m.escalate(err, "exit order failed, position unresolved: %s", spew.Sdump(pos))
		m.setState(DoneForDay)
		m.persistRiskState(ctx)
		return err
	}

	pnl, err := m.cfg.Guard.RecordExit(pos, fill)
	if err != nil {
		m.unresolved = pos
		m.reconcile = true
		m.escalate(err, "unusable exit fill: %s", spew.Sdump(fill))
		m.setState(DoneForDay)
		m.persistRiskState(ctx)
		return err
	}

	m.position = nil
	m.setState(DoneForDay)
	m.notify(shared.EventExitFilled, "sold %d %s @ %.2f (%s), P&L %.2f", pos.Quantity,
		m.cfg.Market, fill.Price, reason, pnl)

	trade, err := pos.Close(fill, reason, pnl)
	if err == nil {
		err = m.cfg.PersistTrade(ctx, trade)
	}
	if err != nil {
		m.cfg.Logger.Error().Msgf("persisting trade %s: %v", pos.ID, err)
	}

	halted, haltReason := m.cfg.Guard.Halted()
	if halted {
		state := m.cfg.Guard.State()
		m.notify(shared.EventHalted, "trading halted: %s, realized P&L %.2f", haltReason, state.RealizedPNL)
	}

	m.persistRiskState(ctx)

	return nil
}

// checkForceExit closes out the session once the force exit deadline is reached. It returns
// whether the deadline has been reached.
func (m *Manager) checkForceExit(ctx context.Context, now time.Time) (bool, error) {
	if !m.cfg.Schedule.ForceExitDue(now) {
		return false, nil
	}

	switch m.State() {
	case Flat:
		m.notify(shared.EventForceExit, "force exit reached with no position")
		m.setState(DoneForDay)
		m.persistRiskState(ctx)
		return true, nil
	case Long:
		m.notify(shared.EventForceExit, "force exit reached, closing %d %s", m.position.Quantity, m.cfg.Market)
		return true, m.exit(ctx, shared.ForceExit, m.lastPrice())
	default:
		if !m.reconcile {
			return true, nil
		}
		return true, m.squareOff(ctx)
	}
}

// squareOff sells whatever the broker holds for the market after an order with an unknown
// outcome or a restart on a traded day. It is retried on every cycle past the force exit until
// the broker reports no holding.
func (m *Manager) squareOff(ctx context.Context) error {
	held, err := m.cfg.Gateway.OpenQuantity(ctx, m.cfg.Market)
	if err != nil {
		m.escalate(err, "fetching broker holding for %s", m.cfg.Market)
		return err
	}
	if held <= 0 {
		m.cfg.Logger.Info().Msgf("no %s holding at the broker to square off", m.cfg.Market)
		m.reconcile = false
		m.unresolved = nil
		m.position = nil
		return nil
	}

	m.notify(shared.EventForceExit, "force exit reached, squaring off %d %s held at the broker",
		held, m.cfg.Market)

	intent := &shared.OrderIntent{
		Market:   m.cfg.Market,
		Side:     shared.Sell,
		Quantity: held,
		Reason:   shared.ForceExit.String(),
		Price:    m.lastPrice(),
	}

	fill, err := m.execute(ctx, intent)
	if err != nil {
		m.escalate(err, "square off failed, %d %s still held", held, m.cfg.Market)
		return err
	}

	m.reconcile = false
	m.notify(shared.EventExitFilled, "squared off %d %s @ %.2f (%s)", fill.Quantity,
		m.cfg.Market, fill.Price, shared.ForceExit)

	pos := m.unresolved
	m.unresolved = nil
	m.position = nil
	if pos == nil || pos.Quantity != fill.Quantity {
		m.cfg.Logger.Warn().Msgf("squared off %d %s without a known entry, P&L not realized",
			fill.Quantity, m.cfg.Market)
		m.persistRiskState(ctx)
		return nil
	}

	pnl, err := m.cfg.Guard.RecordExit(pos, fill)
	if err == nil {
		var trade *shared.Trade
		trade, err = pos.Close(fill, shared.ForceExit, pnl)
		if err == nil {
			err = m.cfg.PersistTrade(ctx, trade)
		}
	}
	if err != nil {
		m.cfg.Logger.Error().Msgf("recording squared off position %s: %v", pos.ID, err)
	}

	m.persistRiskState(ctx)

	return nil
}

// handleDataGap exits any open position and ends the day after a data gap.
func (m *Manager) handleDataGap(ctx context.Context, gapErr *shared.DataGapError) error {
	m.cfg.Metrics.ObserveDataGap()
	m.escalate(gapErr, "candle feed broken")

	switch m.State() {
	case Long:
		return m.exit(ctx, shared.DataGap, m.lastPrice())
	default:
		m.setState(DoneForDay)
		m.persistRiskState(ctx)
		return nil
	}
}

// HandleDeadline processes a schedule deadline. The force exit is honored even when no
// candle arrives.
func (m *Manager) HandleDeadline(ctx context.Context) error {
	_, err := m.checkForceExit(ctx, m.cfg.Clock.Now())
	return err
}

// HandleCandle runs one decision cycle for the provided closed candle.
func (m *Manager) HandleCandle(ctx context.Context, candle *shared.Candle) error {
	now := m.cfg.Clock.Now()

	due, err := m.checkForceExit(ctx, now)
	if due {
		return err
	}

	if m.State() == DoneForDay {
		m.cfg.Logger.Debug().Msgf("done for the day, ignoring candle at %s",
			candle.Date.Format(shared.DateLayout))
		return nil
	}

	update, err := m.cfg.Tracker.Update(candle)
	if err != nil {
		var gapErr *shared.DataGapError
		if errors.As(err, &gapErr) {
			return m.handleDataGap(ctx, gapErr)
		}

		m.cfg.Logger.Error().Msgf("rejecting candle: %v", err)
		return err
	}
	if update == nil {
		return nil
	}

	m.cfg.Metrics.ObserveCandle()

	if m.position != nil {
		unrealized := m.cfg.Guard.MarkToMarket(m.position, candle.Close)
		m.cfg.Metrics.SetPNL(m.cfg.Guard.State().RealizedPNL, unrealized)
	}

	halted, _ := m.cfg.Guard.Halted()
	signal := engine.Evaluate(&engine.Input{
		Now:         now,
		EntryCutoff: m.cfg.Schedule.EntryCutoff(),
		ForceExit:   m.cfg.Schedule.ForceExit(),
		Halted:      halted,
		Candle:      update.Candle,
		Indicators:  update.Indicators,
		Previous:    update.Previous,
		Range:       update.Range,
		Position:    m.position,
	})

	switch {
	case m.State() == Long && signal.Exit:
		return m.exit(ctx, signal.ExitReason, candle.Close)
	case m.State() == Flat && signal.Entry && now.Sub(candle.End()) >= shared.CandlePeriod:
		m.cfg.Logger.Info().Msgf("ignoring entry on stale candle at %s",
			candle.Date.Format(shared.DateLayout))
	case m.State() == Flat && signal.Entry:
		return m.enter(ctx, candle)
	case m.State() == Flat && signal.Skipped != nil:
		m.cfg.Logger.Debug().Msgf("entry not evaluated at %s: %v",
			candle.Date.Format(shared.DateLayout), signal.Skipped)
	}

	return nil
}

// handleSummaryRequest responds with the daily risk state.
func (m *Manager) handleSummaryRequest(req SummaryRequest) {
	state := m.cfg.Guard.State()
	if m.unresolved != nil {
		m.cfg.Logger.Error().Msgf("unresolved position at summary: %s", spew.Sdump(m.unresolved))
	}
	req.Response <- state
}

// Run manages the lifecycle processes of the position manager.
func (m *Manager) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case candle := <-m.candles:
			err := m.HandleCandle(ctx, &candle)
			if err != nil {
				m.cfg.Logger.Error().Msgf("handling candle: %v", err)
			}
		case <-m.deadlines:
			err := m.HandleDeadline(ctx)
			if err != nil {
				m.cfg.Logger.Error().Msgf("handling deadline: %v", err)
			}
		case req := <-m.summaries:
			m.handleSummaryRequest(req)
		}
	}
}
