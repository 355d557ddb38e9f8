package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("test", reg)

	m.ObserveSignal("rsi", "rsi_entry", "BUY")
	m.ObserveSignal("rsi", "rsi_entry", "BUY")
	m.ObserveSignal("rsi", "rsi_entry", "HOLD")
	m.ObserveError("ladder", KindInsufficientData)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.SignalsTotal.WithLabelValues("rsi", "rsi_entry", "BUY")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SignalsTotal.WithLabelValues("rsi", "rsi_entry", "HOLD")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ErrorsTotal.WithLabelValues("ladder", KindInsufficientData)))

	m.PositionOpened()
	m.PositionOpened()
	m.PositionClosed()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActivePositions))

	m.SetActiveStrategies(3)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.ActiveStrategies))

	m.ObserveDuration("entry", time.Now())
	assert.Equal(t, 1, testutil.CollectAndCount(m.EvaluationTime))

	count, err := testutil.GatherAndCount(reg, "test_signals_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveSignal("a", "b", "c")
		m.ObserveError("a", KindData)
		m.ObserveDuration("exit", time.Now())
		m.PositionOpened()
		m.PositionClosed()
		m.SetActiveStrategies(1)
	})
}

func TestMetrics_Handler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("test", reg)
	m.ObserveSignal("macd", "macd_exit", "SELL")

	rec := httptest.NewRecorder()
	promhttp.HandlerFor(reg, promhttp.HandlerOpts{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `test_signals_total{signal="SELL",strategy="macd",type="macd_exit"} 1`))
}
