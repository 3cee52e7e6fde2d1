// Package metrics 收集 CART 解释与韵律标注的运行指标。
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics 持有独立的 Registry，nil 接收者上的所有方法都是空操作。
type Metrics struct {
	Registry *prometheus.Registry

	interpretTotal *prometheus.CounterVec
	moduleDuration *prometheus.HistogramVec
	moduleErrors   *prometheus.CounterVec
	utterances     prometheus.Counter
}

// New 创建并注册全部指标。
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		interpretTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "prosody_interpret_total",
			Help: "Number of CART interpretations by tree and outcome.",
		}, []string{"tree", "outcome"}),
		moduleDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "prosody_module_duration_seconds",
			Help:    "Time spent by an annotator on one utterance.",
			Buckets: prometheus.ExponentialBuckets(0.00005, 4, 8),
		}, []string{"module"}),
		moduleErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "prosody_module_errors_total",
			Help: "Number of utterances an annotator failed on.",
		}, []string{"module"}),
		utterances: f.NewCounter(prometheus.CounterOpts{
			Name: "prosody_utterances_total",
			Help: "Number of utterances fully annotated.",
		}),
	}
}

// ObserveInterpret 记录一次 CART 解释的结果。
func (m *Metrics) ObserveInterpret(tree string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.interpretTotal.WithLabelValues(tree, outcome).Inc()
}

// ObserveModule 记录一个标注模块处理一条 utterance 的耗时与结果。
func (m *Metrics) ObserveModule(module string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.moduleDuration.WithLabelValues(module).Observe(d.Seconds())
	if err != nil {
		m.moduleErrors.WithLabelValues(module).Inc()
	}
}

// UtteranceDone 记录一条完整标注成功的 utterance。
func (m *Metrics) UtteranceDone() {
	if m == nil {
		return
	}
	m.utterances.Inc()
}

// WriteTextfile 以 node_exporter textfile 格式写出全部指标。
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("写出指标文件 %s 失败: %w", path, err)
	}
	return nil
}
