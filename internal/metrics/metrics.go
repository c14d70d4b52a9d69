// Package metrics exposes the core's operational counters, gauges, and
// histograms over Prometheus: one struct of pre-registered collectors built
// once at process start and threaded into each actor, plus an HTTP server
// exposing /metrics and /healthz.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector the core reports. Fields are exported so
// each actor can increment/observe them directly without an indirection
// layer.
type Metrics struct {
	BarEventsTotal      prometheus.Counter
	RebootsTotal        *prometheus.CounterVec // labels: reason
	WarmupDuration      prometheus.Histogram
	CalculatorsActive   prometheus.Gauge
	DispatchBatchSize   prometheus.Histogram
	PresentationFlushes prometheus.Counter

	HistoryRequestsTotal prometheus.Counter
	HistoryFailuresTotal prometheus.Counter
	RESTRequestDuration  prometheus.Histogram
	RESTRateLimitWaits   prometheus.Counter
	CircuitBreakerState  prometheus.Gauge // 0=closed 1=open 2=half-open
	CircuitBreakerTrips  prometheus.Counter

	WSReconnectsTotal   prometheus.Counter
	WSDecodeErrorsTotal prometheus.Counter

	ChannelSaturationPct *prometheus.GaugeVec // labels: channel

	registry *prometheus.Registry
}

// New registers and returns the metrics collectors against a private
// registry (rather than prometheus.DefaultRegisterer) so that constructing
// more than one Metrics in the same process — the engine and history tests
// do — never panics on duplicate collector registration. cmd/dashboard
// points promhttp at this same registry via Server.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		BarEventsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "candledash_bar_events_total",
			Help: "Total live BarEvent messages consumed by the engine",
		}),
		RebootsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "candledash_reboots_total",
			Help: "Total Reboot signals handled by the engine, by reason",
		}, []string{"reason"}),
		WarmupDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "candledash_warmup_duration_seconds",
			Help:    "Time from the history service starting a HistoryRequest to handing its HistoryBundle to the engine",
			Buckets: prometheus.DefBuckets,
		}),
		CalculatorsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "candledash_calculators_active",
			Help: "Number of live (pair, timeframe, indicator) calculator instances",
		}),
		DispatchBatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "candledash_presentation_batch_size",
			Help:    "Number of slots flushed to the presentation sink per tick",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100, 250},
		}),
		PresentationFlushes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "candledash_presentation_flushes_total",
			Help: "Total non-empty batches flushed to the presentation sink",
		}),
		HistoryRequestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "candledash_history_requests_total",
			Help: "Total HistoryRequest messages issued by the engine",
		}),
		HistoryFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "candledash_history_failures_total",
			Help: "Total HistoryRequest fetches abandoned due to a transport error",
		}),
		RESTRequestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "candledash_rest_request_duration_seconds",
			Help:    "Exchange REST adapter request latency",
			Buckets: prometheus.DefBuckets,
		}),
		RESTRateLimitWaits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "candledash_rest_rate_limit_waits_total",
			Help: "Total times a REST call blocked on the rate limiter",
		}),
		CircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "candledash_history_circuit_breaker_state",
			Help: "History service REST circuit breaker state (0=closed,1=open,2=half-open)",
		}),
		CircuitBreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "candledash_history_circuit_breaker_trips_total",
			Help: "REST calls rejected by the history service's open circuit breaker",
		}),
		WSReconnectsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "candledash_ws_reconnects_total",
			Help: "Total live feed reconnection attempts",
		}),
		WSDecodeErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "candledash_ws_decode_errors_total",
			Help: "Total malformed or unrecognized live feed frames dropped",
		}),
		ChannelSaturationPct: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "candledash_channel_saturation_pct",
			Help: "Bounded queue fill percentage (len/cap * 100), by channel name",
		}, []string{"channel"}),
	}

	registry.MustRegister(
		m.BarEventsTotal,
		m.RebootsTotal,
		m.WarmupDuration,
		m.CalculatorsActive,
		m.DispatchBatchSize,
		m.PresentationFlushes,
		m.HistoryRequestsTotal,
		m.HistoryFailuresTotal,
		m.RESTRequestDuration,
		m.RESTRateLimitWaits,
		m.CircuitBreakerState,
		m.CircuitBreakerTrips,
		m.WSReconnectsTotal,
		m.WSDecodeErrorsTotal,
		m.ChannelSaturationPct,
	)

	return m
}

// Server exposes /metrics and /healthz on a dedicated listening address,
// separate from the presentation API.
type Server struct {
	addr string
	srv  *http.Server
}

// NewServer builds the HTTP server. healthz reports 200 as long as the
// process is up: stale indicator values during a rewarmup are not a
// liveness failure.
func NewServer(addr string, m *Metrics) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})
	return &Server{
		addr: addr,
		srv:  &http.Server{Addr: addr, Handler: mux},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go s.srv.ListenAndServe()
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// SetChannelSaturation reports len/cap as a percentage for a named channel.
func (m *Metrics) SetChannelSaturation(channel string, length, capacity int) {
	if capacity == 0 {
		return
	}
	m.ChannelSaturationPct.WithLabelValues(channel).Set(float64(length) / float64(capacity) * 100)
}

// ObserveWarmup records the duration between the history service starting
// a HistoryRequest and the corresponding HistoryBundle being handed to the
// engine.
func (m *Metrics) ObserveWarmup(d time.Duration) {
	m.WarmupDuration.Observe(d.Seconds())
}
