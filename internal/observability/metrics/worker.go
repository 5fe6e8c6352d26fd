package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	processTotal    *prometheus.CounterVec
	processDuration *prometheus.HistogramVec
	processInFlight prometheus.Gauge
	queueLag        *prometheus.HistogramVec
	providerCalls   *prometheus.CounterVec
	cacheLookups    *prometheus.CounterVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	processTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "invp",
			Subsystem: "worker",
			Name:      "invoice_process_total",
			Help:      "Total processed invoices by outcome.",
		},
		[]string{"service", "outcome"},
	)
	processDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "invp",
			Subsystem: "worker",
			Name:      "invoice_process_duration_seconds",
			Help:      "Invoice processing duration in seconds by outcome.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "outcome"},
	)
	processInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "invp",
			Subsystem: "worker",
			Name:      "invoice_process_in_flight",
			Help:      "Number of in-flight invoice processing tasks.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	queueLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "invp",
			Subsystem: "worker",
			Name:      "queue_lag_seconds",
			Help:      "Delay between invoice upload and processing start.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service"},
	)
	providerCalls := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "invp",
			Subsystem: "provider",
			Name:      "calls_total",
			Help:      "Total OCR provider calls by status.",
		},
		[]string{"service", "status"},
	)
	cacheLookups := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "invp",
			Subsystem: "provider",
			Name:      "cache_lookups_total",
			Help:      "Total provider response cache lookups by result.",
		},
		[]string{"service", "result"},
	)

	registry.MustRegister(processTotal, processDuration, processInFlight, queueLag, providerCalls, cacheLookups)

	return &WorkerMetrics{
		registry:        registry,
		processTotal:    processTotal,
		processDuration: processDuration,
		processInFlight: processInFlight,
		queueLag:        queueLag,
		providerCalls:   providerCalls,
		cacheLookups:    cacheLookups,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartInvoice() {
	m.processInFlight.Inc()
}

// FinishInvoice records one completed processing attempt. Outcome is one of
// extracted, excluded or failed.
func (m *WorkerMetrics) FinishInvoice(service, outcome string, duration time.Duration) {
	m.processInFlight.Dec()

	if outcome == "" {
		outcome = "unknown"
	}
	m.processTotal.WithLabelValues(service, outcome).Inc()
	m.processDuration.WithLabelValues(service, outcome).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ObserveQueueLag(service string, lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.WithLabelValues(service).Observe(lag.Seconds())
}

func (m *WorkerMetrics) RecordProviderCall(service string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.providerCalls.WithLabelValues(service, status).Inc()
}

func (m *WorkerMetrics) RecordCacheLookup(service string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(service, result).Inc()
}

// ProviderObserver binds the service label so the recognition layer can report
// cache and provider-call outcomes without knowing about Prometheus.
func (m *WorkerMetrics) ProviderObserver(service string) *ProviderObserver {
	return &ProviderObserver{metrics: m, service: service}
}

type ProviderObserver struct {
	metrics *WorkerMetrics
	service string
}

func (o *ProviderObserver) RecordCacheLookup(hit bool) {
	o.metrics.RecordCacheLookup(o.service, hit)
}

func (o *ProviderObserver) RecordProviderCall(err error) {
	o.metrics.RecordProviderCall(o.service, err)
}
