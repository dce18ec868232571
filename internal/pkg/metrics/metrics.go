// Package metrics 问卷编排的 Prometheus 指标
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// 生成结果标签
const (
	GenerationAccepted    = "accepted"
	GenerationDuplicate   = "duplicate"
	GenerationInvalid     = "invalid"
	GenerationError       = "error"
	GenerationRateLimited = "rate_limited" // 服务端限流
)

// Collector 指标集合，方法对 nil 接收者安全
type Collector struct {
	reg prometheus.Registerer

	turns              *prometheus.CounterVec
	generationAttempts *prometheus.CounterVec
	generationLatency  prometheus.Histogram
	fallbacks          *prometheus.CounterVec
	discarded          prometheus.Counter
	sessions           *prometheus.CounterVec
	exports            *prometheus.CounterVec
}

// NewCollector 创建并在 reg 上注册指标
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		turns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "survey_turns_total",
				Help: "Total survey turns by operation and result.",
			},
			[]string{"operation", "result"},
		),
		generationAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "survey_generation_attempts_total",
				Help: "Question generation attempts by result.",
			},
			[]string{"result"},
		),
		generationLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "survey_generation_latency_ms",
				Help:    "Question generation latency in milliseconds.",
				Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
			},
		),
		fallbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "survey_fallback_questions_total",
				Help: "Pre-authored fallback questions used, by theme.",
			},
			[]string{"theme"},
		),
		discarded: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "survey_discarded_generations_total",
				Help: "Generated questions discarded because the session changed meanwhile.",
			},
		),
		sessions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "survey_sessions_total",
				Help: "Session lifecycle transitions by status.",
			},
			[]string{"status"},
		),
		exports: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "survey_exports_total",
				Help: "Session transcript exports by result.",
			},
			[]string{"result"},
		),
	}
	c.reg = reg
	if reg != nil {
		reg.MustRegister(
			c.turns,
			c.generationAttempts,
			c.generationLatency,
			c.fallbacks,
			c.discarded,
			c.sessions,
			c.exports,
		)
	}
	return c
}

func (c *Collector) ObserveTurn(operation, result string) {
	if c == nil {
		return
	}
	c.turns.WithLabelValues(operation, result).Inc()
}

func (c *Collector) ObserveGeneration(result string, latency time.Duration) {
	if c == nil {
		return
	}
	c.generationAttempts.WithLabelValues(result).Inc()
	if latency > 0 {
		c.generationLatency.Observe(float64(latency.Milliseconds()))
	}
}

func (c *Collector) ObserveFallback(themeID string) {
	if c == nil {
		return
	}
	c.fallbacks.WithLabelValues(themeID).Inc()
}

func (c *Collector) ObserveDiscarded() {
	if c == nil {
		return
	}
	c.discarded.Inc()
}

func (c *Collector) ObserveSession(status string) {
	if c == nil {
		return
	}
	c.sessions.WithLabelValues(status).Inc()
}

func (c *Collector) ObserveExport(result string) {
	if c == nil {
		return
	}
	c.exports.WithLabelValues(result).Inc()
}

// WatchExportQueue 注册导出队列长度与运行中 worker 数的 Gauge
// 每次抓取时调用 status 读取当前值
func (c *Collector) WatchExportQueue(status func() (queued, running int)) {
	if c == nil || c.reg == nil || status == nil {
		return
	}
	c.reg.MustRegister(
		prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "survey_export_queue_length",
				Help: "Export jobs waiting for a worker.",
			},
			func() float64 {
				queued, _ := status()
				return float64(queued)
			},
		),
		prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "survey_export_workers_running",
				Help: "Export workers currently running a job.",
			},
			func() float64 {
				_, running := status()
				return float64(running)
			},
		),
	)
}
