package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.ObserveCandle()
	m.ObserveCandle()
	m.ObserveDataGap()
	m.ObserveOrder("BUY", "filled", time.Second)
	m.ObserveOrder("SELL", "timeout", 0)
	m.SetPNL(50, 0)
	m.SetState(4, true)

	assert.Equal(t, testutil.ToFloat64(m.CandlesTotal), float64(2))
	assert.Equal(t, testutil.ToFloat64(m.DataGapsTotal), float64(1))
	assert.Equal(t, testutil.ToFloat64(m.OrdersTotal.WithLabelValues("BUY", "filled")), float64(1))
	assert.Equal(t, testutil.ToFloat64(m.OrdersTotal.WithLabelValues("SELL", "timeout")), float64(1))
	assert.Equal(t, testutil.ToFloat64(m.RealizedPNL), float64(50))
	assert.Equal(t, testutil.ToFloat64(m.Halted), float64(1))

	// Ensure the collectors are exposed over http.
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	assert.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "orb_candles_total 2"))
}

func TestNilMetrics(t *testing.T) {
	// Ensure a nil metrics value is safe to record into.
	var m *Metrics
	m.ObserveCandle()
	m.ObserveDataGap()
	m.ObserveOrder("BUY", "filled", time.Second)
	m.SetPNL(1, 1)
	m.SetState(0, false)
	m.ObserveDroppedEvent()
}
