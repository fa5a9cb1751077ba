package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the prometheus collectors of the trader. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	CandlesTotal  prometheus.Counter
	DataGapsTotal prometheus.Counter
	// OrdersTotal is labelled by side and outcome (filled, rejected, timeout).
	OrdersTotal   *prometheus.CounterVec
	FillLatency   prometheus.Histogram
	RealizedPNL   prometheus.Gauge
	UnrealizedPNL prometheus.Gauge
	// State is the position state machine state.
	State  prometheus.Gauge
	Halted prometheus.Gauge
	// EventsDropped counts notifier events dropped at capacity.
	EventsDropped prometheus.Counter

	gatherer prometheus.Gatherer
}

// NewMetrics creates the trader collectors and registers them with the provided registry.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		CandlesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orb_candles_total",
			Help: "Total session candles ingested",
		}),
		DataGapsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orb_data_gaps_total",
			Help: "Missing, duplicated or out of order candles detected",
		}),
		OrdersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orb_orders_total",
			Help: "Order intents by side and outcome",
		}, []string{"side", "outcome"}),
		FillLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "orb_fill_latency_seconds",
			Help:    "Time from order placement to confirmed fill",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30},
		}),
		RealizedPNL: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "orb_realized_pnl",
			Help: "Realized P&L for the trading day",
		}),
		UnrealizedPNL: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "orb_unrealized_pnl",
			Help: "Mark-to-market P&L of the open position",
		}),
		State: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "orb_position_state",
			Help: "Position state (0=flat, 1=entering, 2=long, 3=exiting, 4=done for day)",
		}),
		Halted: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "orb_halted",
			Help: "Daily risk halt (0=trading, 1=halted)",
		}),
		EventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orb_events_dropped_total",
			Help: "Operator events dropped because the notifier was at capacity",
		}),
		gatherer: registry,
	}

	registry.MustRegister(
		m.CandlesTotal,
		m.DataGapsTotal,
		m.OrdersTotal,
		m.FillLatency,
		m.RealizedPNL,
		m.UnrealizedPNL,
		m.State,
		m.Halted,
		m.EventsDropped,
	)

	return m
}

// Handler returns the http handler exposing the registered collectors.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// ObserveCandle records an ingested candle.
func (m *Metrics) ObserveCandle() {
	if m == nil {
		return
	}
	m.CandlesTotal.Inc()
}

// ObserveDataGap records a detected data gap.
func (m *Metrics) ObserveDataGap() {
	if m == nil {
		return
	}
	m.DataGapsTotal.Inc()
}

// ObserveOrder records the outcome of an order intent and, when filled, its latency.
func (m *Metrics) ObserveOrder(side string, outcome string, latency time.Duration) {
	if m == nil {
		return
	}
	m.OrdersTotal.WithLabelValues(side, outcome).Inc()
	if outcome == "filled" {
		m.FillLatency.Observe(latency.Seconds())
	}
}

// SetPNL records the realized and unrealized P&L.
func (m *Metrics) SetPNL(realized float64, unrealized float64) {
	if m == nil {
		return
	}
	m.RealizedPNL.Set(realized)
	m.UnrealizedPNL.Set(unrealized)
}

// SetState records the position state and halt flag.
func (m *Metrics) SetState(state int, halted bool) {
	if m == nil {
		return
	}
	m.State.Set(float64(state))
	if halted {
		m.Halted.Set(1)
		return
	}
	m.Halted.Set(0)
}

// ObserveDroppedEvent records a dropped operator event.
func (m *Metrics) ObserveDroppedEvent() {
	if m == nil {
		return
	}
	m.EventsDropped.Inc()
}
