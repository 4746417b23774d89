package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/opscart/cloud-cost-optimizer/pkg/models"
)

// namespace prefixes every exported metric family.
const namespace = "costopt"

// Collectors owns the engine's exported prometheus metrics. Everything
// registers on a dedicated registry so /metrics exposes only what the
// engine itself emits. The scheduler and executor write through the
// narrow recorder interfaces they declare.
type Collectors struct {
	registry *prometheus.Registry

	scanCycles       prometheus.Counter
	resourcesScanned prometheus.Counter
	detections       *prometheus.CounterVec
	created          prometheus.Counter
	skipped          prometheus.Counter
	executions       *prometheus.CounterVec
	retries          prometheus.Counter
	realizedSavings  prometheus.Counter
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

func NewCollectors() *Collectors {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Collectors{
		registry: registry,
		scanCycles: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scan_cycles_total",
			Help:      "Completed scan cycles.",
		}),
		resourcesScanned: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resources_scanned_total",
			Help:      "Resources evaluated across all scan cycles.",
		}),
		detections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detections_total",
			Help:      "Waste detections by resource type and waste kind.",
		}, []string{"type", "kind"}),
		created: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recommendations_created_total",
			Help:      "Recommendations stored after dedup.",
		}),
		skipped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recommendations_skipped_total",
			Help:      "Detections dropped before storage, typically zero projected savings.",
		}),
		executions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "executions_total",
			Help:      "Finished executions by outcome.",
		}, []string{"outcome"}),
		retries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "execution_retries_total",
			Help:      "Execution attempts beyond the first.",
		}),
		realizedSavings: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "realized_savings_usd_total",
			Help:      "Monthly savings realized by executed recommendations, in USD.",
		}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "API requests by method, route and status code.",
		}, []string{"method", "route", "code"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "API request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// Handler serves the dedicated registry in the prometheus text format.
func (c *Collectors) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// TrackClientCount registers a gauge backed by f, typically the event
// hub's client counter. Call it once during wiring.
func (c *Collectors) TrackClientCount(f func() int) {
	promauto.With(c.registry).NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "ws_clients",
		Help:      "Currently connected websocket subscribers.",
	}, func() float64 { return float64(f()) })
}

// ScanCompleted records one finished scan cycle over n resources.
func (c *Collectors) ScanCompleted(resources int) {
	c.scanCycles.Inc()
	c.resourcesScanned.Add(float64(resources))
}

func (c *Collectors) DetectionFound(typ models.ResourceType, kind models.WasteKind) {
	c.detections.WithLabelValues(string(typ), string(kind)).Inc()
}

func (c *Collectors) RecommendationCreated() {
	c.created.Inc()
}

func (c *Collectors) RecommendationSkipped() {
	c.skipped.Inc()
}

// ExecutionFinished records a terminal execution outcome and any
// attempts beyond the first.
func (c *Collectors) ExecutionFinished(outcome string, attempts int) {
	c.executions.WithLabelValues(outcome).Inc()
	if attempts > 1 {
		c.retries.Add(float64(attempts - 1))
	}
}

func (c *Collectors) RealizedSavings(usd float64) {
	c.realizedSavings.Add(usd)
}

// HTTPRequest records one served API request. route is the registered
// path template, not the raw URL, to keep label cardinality bounded.
func (c *Collectors) HTTPRequest(method, route string, status int, elapsed time.Duration) {
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
