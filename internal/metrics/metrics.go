// Package metrics exposes the proxy's Prometheus counters, mounted at
// /metrics the same way controlplane/telemetry/cmd/telemetry/main.go
// mounts promhttp.Handler() alongside its primary listener.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics groups the counters the dispatch engine updates as it runs.
type Metrics struct {
	cacheHits      *prometheus.CounterVec
	cacheMisses    *prometheus.CounterVec
	upstreamCalls  *prometheus.CounterVec
	rateLimitWaits *prometheus.CounterVec
	rateLimitSkips *prometheus.CounterVec
	exhausted      prometheus.Counter
	noop           bool
}

// New registers and returns a Metrics bound to reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rpcproxy_cache_hits_total",
			Help: "Number of dispatch requests served from the response cache.",
		}, []string{"method"}),
		cacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rpcproxy_cache_misses_total",
			Help: "Number of dispatch requests that missed the response cache.",
		}, []string{"method"}),
		upstreamCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rpcproxy_upstream_calls_total",
			Help: "Number of requests forwarded to an upstream.",
		}, []string{"upstream"}),
		rateLimitWaits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rpcproxy_rate_limit_waits_total",
			Help: "Number of times dispatch waited on a rate-limited failover upstream.",
		}, []string{"upstream"}),
		rateLimitSkips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rpcproxy_rate_limit_skips_total",
			Help: "Number of times dispatch skipped a rate-limited non-failover upstream.",
		}, []string{"upstream"}),
		exhausted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rpcproxy_exhausted_total",
			Help: "Number of requests for which every upstream was exhausted.",
		}),
	}
	reg.MustRegister(m.cacheHits, m.cacheMisses, m.upstreamCalls, m.rateLimitWaits, m.rateLimitSkips, m.exhausted)
	return m
}

// NewNoop returns a Metrics that discards every observation, for use
// when the caller has not configured a registry (e.g. in tests).
func NewNoop() *Metrics {
	return &Metrics{noop: true}
}

func (m *Metrics) CacheHit(method string) {
	if m.noop {
		return
	}
	m.cacheHits.WithLabelValues(method).Inc()
}

func (m *Metrics) CacheMiss(method string) {
	if m.noop {
		return
	}
	m.cacheMisses.WithLabelValues(method).Inc()
}

func (m *Metrics) UpstreamCall(url string) {
	if m.noop {
		return
	}
	m.upstreamCalls.WithLabelValues(url).Inc()
}

func (m *Metrics) RateLimitWait(url string) {
	if m.noop {
		return
	}
	m.rateLimitWaits.WithLabelValues(url).Inc()
}

func (m *Metrics) RateLimitSkip(url string) {
	if m.noop {
		return
	}
	m.rateLimitSkips.WithLabelValues(url).Inc()
}

func (m *Metrics) Exhausted() {
	if m.noop {
		return
	}
	m.exhausted.Inc()
}
