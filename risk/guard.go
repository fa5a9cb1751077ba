package risk

import (
	"errors"
	"fmt"

	"github.com/dnldd/orb/shared"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// GuardConfig represents the risk guard configuration.
type GuardConfig struct {
	// Day is the trading day the guard accounts for.
	Day string
	// ProfitTarget is the realized profit that halts trading for the day.
	ProfitTarget float64
	// MaxLoss is the realized loss that halts trading for the day.
	MaxLoss float64
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// Validate asserts the config sane inputs.
func (cfg *GuardConfig) Validate() error {
	var errs error

	if cfg.Day == "" {
		errs = errors.Join(errs, fmt.Errorf("day cannot be an empty string"))
	}
	if cfg.ProfitTarget <= 0 {
		errs = errors.Join(errs, fmt.Errorf("profit target must be positive, got %f", cfg.ProfitTarget))
	}
	if cfg.MaxLoss <= 0 {
		errs = errors.Join(errs, fmt.Errorf("max loss must be positive, got %f", cfg.MaxLoss))
	}
	if cfg.Logger == nil {
		errs = errors.Join(errs, fmt.Errorf("logger cannot be nil"))
	}

	return errs
}

// Guard owns the daily risk state. Realized P&L only changes on confirmed exit fills and the
// halt is sticky for the rest of the day.
type Guard struct {
	cfg          *GuardConfig
	profitTarget decimal.Decimal
	maxLoss      decimal.Decimal
	realized     decimal.Decimal
	unrealized   decimal.Decimal
	halted       bool
	haltReason   shared.HaltReason
	trades       int
}

// NewGuard initializes a new risk guard.
func NewGuard(cfg *GuardConfig) (*Guard, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	return &Guard{
		cfg:          cfg,
		profitTarget: decimal.NewFromFloat(cfg.ProfitTarget),
		maxLoss:      decimal.NewFromFloat(cfg.MaxLoss),
	}, nil
}

// Restore loads previously persisted state for the same trading day.
func (g *Guard) Restore(state *shared.DailyRiskState) error {
	if state == nil {
		return nil
	}
	if state.Day != g.cfg.Day {
		return fmt.Errorf("cannot restore risk state for %s into %s", state.Day, g.cfg.Day)
	}

	g.realized = decimal.NewFromFloat(state.RealizedPNL)
	g.unrealized = decimal.Zero
	g.halted = state.Halted
	g.haltReason = state.HaltReason
	g.trades = state.Trades

	return nil
}

// Levels returns the stop loss and target prices for a position of the provided quantity
// entered at the provided price, such that hitting either realizes the daily loss or profit
// limit.
func (g *Guard) Levels(entryPrice float64, quantity int64) (float64, float64, error) {
	if quantity < 1 {
		return 0, 0, fmt.Errorf("quantity must be positive, got %d", quantity)
	}

	entry := decimal.NewFromFloat(entryPrice)
	qty := decimal.NewFromInt(quantity)
	stop := entry.Sub(g.maxLoss.Div(qty))
	target := entry.Add(g.profitTarget.Div(qty))

	return stop.InexactFloat64(), target.InexactFloat64(), nil
}

// MarkToMarket updates the unrealized P&L of the open position at the provided price. It is
// reporting only and never triggers a halt.
func (g *Guard) MarkToMarket(pos *shared.Position, price float64) float64 {
	if pos == nil {
		g.unrealized = decimal.Zero
		return 0
	}

	g.unrealized = decimal.NewFromFloat(price).Sub(decimal.NewFromFloat(pos.EntryPrice)).
		Mul(decimal.NewFromInt(pos.Quantity))

	return g.unrealized.InexactFloat64()
}

// RecordExit realizes the P&L of the position closed by the provided sell fill and evaluates
// the daily halt. It returns the realized P&L of the round trip.
func (g *Guard) RecordExit(pos *shared.Position, fill *shared.Fill) (float64, error) {
	if pos == nil {
		return 0, fmt.Errorf("position cannot be nil")
	}
	if fill == nil || fill.Side != shared.Sell {
		return 0, fmt.Errorf("realized P&L requires a %s fill", shared.Sell)
	}

	pnl := decimal.NewFromFloat(fill.Price).Sub(decimal.NewFromFloat(pos.EntryPrice)).
		Mul(decimal.NewFromInt(pos.Quantity))

	g.realized = g.realized.Add(pnl)
	g.unrealized = decimal.Zero

	if !g.halted {
		switch {
		case g.realized.GreaterThanOrEqual(g.profitTarget):
			g.halted = true
			g.haltReason = shared.ProfitTargetReached
		case g.realized.LessThanOrEqual(g.maxLoss.Neg()):
			g.halted = true
			g.haltReason = shared.MaxLossReached
		}

		if g.halted {
			g.cfg.Logger.Info().Msgf("trading halted for %s: %s (realized %s)", g.cfg.Day,
				g.haltReason, g.realized.StringFixed(2))
		}
	}

	return pnl.InexactFloat64(), nil
}

// RecordEntry counts a confirmed entry against the day.
func (g *Guard) RecordEntry() {
	g.trades++
}

// Halted returns whether trading is halted for the day and why.
func (g *Guard) Halted() (bool, shared.HaltReason) {
	return g.halted, g.haltReason
}

// State returns a copy of the daily risk state.
func (g *Guard) State() shared.DailyRiskState {
	return shared.DailyRiskState{
		Day:           g.cfg.Day,
		RealizedPNL:   g.realized.InexactFloat64(),
		UnrealizedPNL: g.unrealized.InexactFloat64(),
		Halted:        g.halted,
		HaltReason:    g.haltReason,
		Trades:        g.trades,
	}
}

// Quantity returns the number of shares the provided capital buys at the provided price with
// the provided leverage, rounded down.
func Quantity(capital float64, leverage float64, price float64) int64 {
	if price <= 0 || capital <= 0 || leverage <= 0 {
		return 0
	}

	buyingPower := decimal.NewFromFloat(capital).Mul(decimal.NewFromFloat(leverage))
	return buyingPower.Div(decimal.NewFromFloat(price)).Floor().IntPart()
}
