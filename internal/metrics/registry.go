package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "asyncimage"

// Registry 聚合加载流程的指标，并附带 Go 运行时指标。
type Registry struct {
	registry *prometheus.Registry

	loads          *prometheus.CounterVec
	loadDuration   *prometheus.HistogramVec
	fetchDuration  *prometheus.HistogramVec
	absorbedErrors *prometheus.CounterVec
}

// NewRegistry 创建独立的 prometheus registry，避免污染全局 DefaultRegisterer。
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),
		loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loads_total",
			Help:      "Completed image loads by terminal outcome.",
		}, []string{"outcome"}),
		loadDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "load_duration_seconds",
			Help:      "Wall time of a load from start to publication.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Duration of upstream GET requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"result"}),
		absorbedErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "absorbed_errors_total",
			Help:      "Errors swallowed by the loader, by stage.",
		}, []string{"stage"}),
	}

	r.registry.MustRegister(
		r.loads,
		r.loadDuration,
		r.fetchDuration,
		r.absorbedErrors,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Prometheus 返回底层 registry。
func (r *Registry) Prometheus() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Handler 返回 /-/metrics 使用的 exposition handler。
func (r *Registry) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// ObserveLoad 记录一次加载终态。
func (r *Registry) ObserveLoad(outcome string, d time.Duration) {
	if r == nil {
		return
	}
	r.loads.WithLabelValues(outcome).Inc()
	r.loadDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// ObserveFetch 记录一次上游请求耗时，result 为 ok 或 error。
func (r *Registry) ObserveFetch(result string, d time.Duration) {
	if r == nil {
		return
	}
	r.fetchDuration.WithLabelValues(result).Observe(d.Seconds())
}

// ObserveAbsorbed 记录一次被吸收的错误。
func (r *Registry) ObserveAbsorbed(stage string) {
	if r == nil {
		return
	}
	r.absorbedErrors.WithLabelValues(stage).Inc()
}
