package ensemble

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics 是集成预测的 Prometheus 指标。nil 表示不采集。
type Metrics struct {
	predictions *prometheus.CounterVec
	failures    *prometheus.CounterVec
	spread      prometheus.Histogram
}

// NewMetrics 在 reg 上注册指标；同名指标已注册时复用已有的 collector。reg 为 nil 时返回 nil。
//
//   - prixkit_model_predictions_total{model}：模型成功预测的行数
//   - prixkit_model_errors_total{model}：模型预测失败次数
//   - prixkit_ensemble_spread：每行模型间离散度（标准差 / |均值|）
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}
	return &Metrics{
		predictions: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "prixkit_model_predictions_total",
			Help: "Number of rows predicted successfully, per model.",
		}, []string{"model"})),
		failures: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "prixkit_model_errors_total",
			Help: "Number of failed prediction calls, per model.",
		}, []string{"model"})),
		spread: register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "prixkit_ensemble_spread",
			Help:    "Per-row standard deviation of model outputs relative to their mean.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 10),
		})),
	}
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
	}
	return c
}

func (m *Metrics) observePredictions(model string, rows int) {
	if m == nil {
		return
	}
	m.predictions.WithLabelValues(model).Add(float64(rows))
}

func (m *Metrics) observeFailure(model string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(model).Inc()
}

func (m *Metrics) observeSpread(relative float64) {
	if m == nil {
		return
	}
	m.spread.Observe(relative)
}
