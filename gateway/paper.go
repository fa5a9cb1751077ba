package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dnldd/orb/schedule"
	"github.com/dnldd/orb/shared"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// tickSize is the exchange price tick fills are rounded to.
var tickSize = decimal.RequireFromString("0.05")

// PaperConfig represents the configuration of the paper gateway.
type PaperConfig struct {
	// SlippageBPS is the adverse slippage applied to every fill, in basis points.
	SlippageBPS float64
	// Clock is the source of fill times.
	Clock schedule.Clock
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// Validate asserts the config sane inputs.
func (cfg *PaperConfig) Validate() error {
	var errs error

	if cfg.SlippageBPS < 0 {
		errs = errors.Join(errs, fmt.Errorf("slippage cannot be negative"))
	}
	if cfg.Clock == nil {
		errs = errors.Join(errs, fmt.Errorf("clock cannot be nil"))
	}
	if cfg.Logger == nil {
		errs = errors.Join(errs, fmt.Errorf("logger cannot be nil"))
	}

	return errs
}

// Paper is a simulated execution gateway. Orders fill immediately at the intent's reference
// price moved against the trader by the configured slippage.
type Paper struct {
	cfg       *PaperConfig
	orders    map[string]*shared.OrderIntent
	holdings  map[string]int64
	ordersMtx sync.Mutex
}

// Ensure the paper gateway implements the execution gateway interface.
var _ shared.ExecutionGateway = (*Paper)(nil)

// NewPaper initializes a new paper gateway.
func NewPaper(cfg *PaperConfig) (*Paper, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	return &Paper{
		cfg:      cfg,
		orders:   make(map[string]*shared.OrderIntent),
		holdings: make(map[string]int64),
	}, nil
}

// FillPrice returns the simulated fill price for the provided side and reference price.
func (p *Paper) FillPrice(side shared.Side, price float64) float64 {
	slip := decimal.NewFromFloat(p.cfg.SlippageBPS).Div(decimal.NewFromInt(10000))
	ref := decimal.NewFromFloat(price)

	var fill decimal.Decimal
	switch side {
	case shared.Buy:
		fill = ref.Mul(decimal.NewFromInt(1).Add(slip))
		fill = fill.Div(tickSize).Ceil().Mul(tickSize)
	default:
		fill = ref.Mul(decimal.NewFromInt(1).Sub(slip))
		fill = fill.Div(tickSize).Floor().Mul(tickSize)
	}

	return fill.InexactFloat64()
}

// PlaceOrder records the provided intent as an open order.
func (p *Paper) PlaceOrder(ctx context.Context, intent *shared.OrderIntent) (string, error) {
	if intent.Quantity < 1 {
		return "", fmt.Errorf("order quantity must be at least 1, got %d", intent.Quantity)
	}
	if intent.Price <= 0 {
		return "", &shared.OrderRejectedError{Side: intent.Side, Reason: "no reference price"}
	}

	orderID := uuid.NewString()

	p.ordersMtx.Lock()
	p.orders[orderID] = intent
	p.ordersMtx.Unlock()

	p.cfg.Logger.Info().Msgf("paper %s order %s for %d of %s at ~%.2f (%s)", intent.Side,
		orderID, intent.Quantity, intent.Market, intent.Price, intent.Reason)

	return orderID, nil
}

// AwaitFill fills the provided open order.
func (p *Paper) AwaitFill(ctx context.Context, orderID string, side shared.Side) (*shared.Fill, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	p.ordersMtx.Lock()
	intent, ok := p.orders[orderID]
	delete(p.orders, orderID)
	if ok {
		switch side {
		case shared.Buy:
			p.holdings[intent.Market] += intent.Quantity
		default:
			p.holdings[intent.Market] -= intent.Quantity
		}
	}
	p.ordersMtx.Unlock()

	if !ok {
		return nil, &shared.OrderRejectedError{OrderID: orderID, Side: side, Reason: "unknown order"}
	}

	return &shared.Fill{
		OrderID:  orderID,
		Side:     side,
		Price:    p.FillPrice(side, intent.Price),
		Quantity: intent.Quantity,
		Time:     p.cfg.Clock.Now(),
	}, nil
}

// CancelOrder cancels the provided open order.
func (p *Paper) CancelOrder(ctx context.Context, orderID string) error {
	p.ordersMtx.Lock()
	defer p.ordersMtx.Unlock()

	if _, ok := p.orders[orderID]; !ok {
		return fmt.Errorf("no open order found with id %s", orderID)
	}
	delete(p.orders, orderID)

	return nil
}

// OpenQuantity returns the net quantity filled for the provided market.
func (p *Paper) OpenQuantity(ctx context.Context, market string) (int64, error) {
	p.ordersMtx.Lock()
	defer p.ordersMtx.Unlock()

	return p.holdings[market], nil
}
