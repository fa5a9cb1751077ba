package shared

import (
	"context"
	"time"
)

// CandleFetcher defines the requirements for fetching intraday candle data.
type CandleFetcher interface {
	// FetchIntradayCandles fetches today's intraday 1-minute candles for the instrument.
	FetchIntradayCandles(ctx context.Context, instrument string) ([]Candle, error)
}

// ExecutionGateway defines the requirements for placing market orders and confirming them.
type ExecutionGateway interface {
	// PlaceOrder submits the provided intent as a market order and returns its order id.
	PlaceOrder(ctx context.Context, intent *OrderIntent) (string, error)
	// AwaitFill blocks until the order is filled, rejected or the context is done.
	AwaitFill(ctx context.Context, orderID string, side Side) (*Fill, error)
	// CancelOrder requests cancellation of a pending order.
	CancelOrder(ctx context.Context, orderID string) error
	// OpenQuantity returns the net intraday quantity held at the broker for the instrument.
	OpenQuantity(ctx context.Context, market string) (int64, error)
}

// TradeStorer defines the requirements for persisting trades and daily risk state.
type TradeStorer interface {
	// PersistTrade stores the provided completed trade.
	PersistTrade(ctx context.Context, trade *Trade) error
	// PersistRiskState stores the provided daily risk state, replacing any prior state for
	// the same day.
	PersistRiskState(ctx context.Context, state *DailyRiskState) error
	// FetchRiskState returns the stored risk state for the provided day, nil if none exists.
	FetchRiskState(ctx context.Context, day string) (*DailyRiskState, error)
	// FetchTrades returns the trades completed since the provided time.
	FetchTrades(ctx context.Context, since time.Time) ([]*Trade, error)
}
