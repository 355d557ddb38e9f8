package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/xpwu/go-config/configs"
)

// MetricsConfig 指标配置
type MetricsConfig struct {
	Enabled   bool   `json:"enabled"`
	Namespace string `json:"namespace"`
	Listen    string `json:"listen"` // 为空时不启动 HTTP 端点
}

// GlobalMetricsConfig 全局指标配置
var GlobalMetricsConfig = MetricsConfig{
	Enabled:   true,
	Namespace: "signalengine",
	Listen:    "",
}

func init() {
	configs.Unmarshal(&GlobalMetricsConfig)
}

// 错误类别
const (
	KindInsufficientData = "insufficient_data"
	KindCalculation      = "calculation"
	KindValidation       = "validation"
	KindData             = "data"
	KindState            = "state"
)

// Metrics 策略评估相关的指标
type Metrics struct {
	SignalsTotal     *prometheus.CounterVec // strategy, type, signal
	ErrorsTotal      *prometheus.CounterVec // strategy, kind
	EvaluationTime   *prometheus.HistogramVec
	ActivePositions  prometheus.Gauge
	ActiveStrategies prometheus.Gauge
}

// NewMetrics 创建并注册指标，reg 为 nil 时不注册
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SignalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signals_total",
			Help:      "Signals produced by strategy evaluations",
		}, []string{"strategy", "type", "signal"}),
		ErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluation_errors_total",
			Help:      "Failed strategy evaluations by error kind",
		}, []string{"strategy", "kind"}),
		EvaluationTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "evaluation_seconds",
			Help:      "Strategy evaluation latency including candle loading",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"family"}),
		ActivePositions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_positions",
			Help:      "Positions with an execution state held by the engine",
		}),
		ActiveStrategies: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_strategies",
			Help:      "Strategy instances in ACTIVE status",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.SignalsTotal, m.ErrorsTotal, m.EvaluationTime, m.ActivePositions, m.ActiveStrategies)
	}
	return m
}

// ObserveSignal 记录一次信号
func (m *Metrics) ObserveSignal(strategyName, typ, signal string) {
	if m == nil {
		return
	}
	m.SignalsTotal.WithLabelValues(strategyName, typ, signal).Inc()
}

// ObserveError 记录一次失败
func (m *Metrics) ObserveError(strategyName, kind string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(strategyName, kind).Inc()
}

// ObserveDuration 记录一次评估耗时
func (m *Metrics) ObserveDuration(family string, start time.Time) {
	if m == nil {
		return
	}
	m.EvaluationTime.WithLabelValues(family).Observe(time.Since(start).Seconds())
}

// PositionOpened 持仓数加一
func (m *Metrics) PositionOpened() {
	if m == nil {
		return
	}
	m.ActivePositions.Inc()
}

// PositionClosed 持仓数减一
func (m *Metrics) PositionClosed() {
	if m == nil {
		return
	}
	m.ActivePositions.Dec()
}

// SetActiveStrategies 设置活跃策略数
func (m *Metrics) SetActiveStrategies(n int) {
	if m == nil {
		return
	}
	m.ActiveStrategies.Set(float64(n))
}

// Serve 在 addr 上暴露 /metrics
func Serve(addr string, gatherer prometheus.Gatherer) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
