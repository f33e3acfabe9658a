package metrics

import (
	"net/http"

	"zkloan/internal/domain/pool"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "zkloan"

// Metrics implements the usecase metric hooks on a Prometheus registry.
// Pool gauges are reported in asset units.
type Metrics struct {
	reg       *prometheus.Registry
	decimals  int32
	decisions *prometheus.CounterVec
	closed    *prometheus.CounterVec
	tvl       prometheus.Gauge
	liquidity prometheus.Gauge
	requests  *prometheus.CounterVec
	latency   *prometheus.HistogramVec
}

func New(decimals int32) *Metrics {
	m := &Metrics{
		reg:      prometheus.NewRegistry(),
		decimals: decimals,
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loan_decisions_total",
			Help:      "Loan requests that reached a decision, by outcome.",
		}, []string{"outcome"}),
		closed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loans_closed_total",
			Help:      "Loans closed, by terminal state.",
		}, []string{"state"}),
		tvl: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pool_total_value_locked",
			Help:      "Assets held by the pool.",
		}),
		liquidity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pool_liquidity",
			Help:      "Assets available for new loans.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests, by route and status code.",
		}, []string{"method", "route", "code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency, by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	m.reg.MustRegister(
		m.decisions, m.closed, m.tvl, m.liquidity, m.requests, m.latency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) ObserveDecision(outcome string) { m.decisions.WithLabelValues(outcome).Inc() }

func (m *Metrics) ObserveLoanClosed(state string) { m.closed.WithLabelValues(state).Inc() }

func (m *Metrics) ObservePool(p pool.State) {
	m.tvl.Set(p.TotalValueLocked.Decimal(m.decimals).InexactFloat64())
	m.liquidity.Set(p.Liquidity.Decimal(m.decimals).InexactFloat64())
}

func (m *Metrics) ObserveRequest(method, route, code string, seconds float64) {
	m.requests.WithLabelValues(method, route, code).Inc()
	m.latency.WithLabelValues(method, route).Observe(seconds)
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

func (m *Metrics) Registry() *prometheus.Registry { return m.reg }
