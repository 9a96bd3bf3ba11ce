package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every eventsource collector. It is private to the process
// so tests can scrape it without the default Go collectors racing in.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	requests = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "eventsource",
		Name:      "requests_total",
		Help:      "HTTP requests handled, by route and status code.",
	}, []string{"route", "code"})

	published = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "eventsource",
		Name:      "events_published_total",
		Help:      "Events acknowledged by Kafka, by kind (transaction or noise).",
	}, []string{"kind"})

	publishFailures = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "eventsource",
		Name:      "events_publish_failures_total",
		Help:      "Events that could not be serialized or sent.",
	}, []string{"kind", "reason"})

	deadLettered = factory.NewCounter(prometheus.CounterOpts{
		Namespace: "eventsource",
		Name:      "events_dead_lettered_total",
		Help:      "Failed events written to the dead-letter topic.",
	})

	noiseTicks = factory.NewCounter(prometheus.CounterOpts{
		Namespace: "eventsource",
		Name:      "noise_ticks_total",
		Help:      "Noise maker ticks.",
	})

	wsSubscribers = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: "eventsource",
		Name:      "ws_subscribers",
		Help:      "Connected websocket event feed subscribers.",
	})

	publishLatency = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: "eventsource",
		Name:      "publish_duration_seconds",
		Help:      "Time from dispatch to broker acknowledgement.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
	})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Kind labels for event counters.
const (
	KindTransaction = "transaction"
	KindNoise       = "noise"
)

func IncRequest(route, code string)         { requests.WithLabelValues(route, code).Inc() }
func IncPublished(kind string)              { published.WithLabelValues(kind).Inc() }
func IncPublishFailure(kind, reason string) { publishFailures.WithLabelValues(kind, reason).Inc() }
func IncDeadLettered()                      { deadLettered.Inc() }
func IncNoiseTick()                         { noiseTicks.Inc() }
func IncWSConnections()                     { wsSubscribers.Inc() }
func DecWSConnections()                     { wsSubscribers.Dec() }
func ObservePublishSeconds(seconds float64) { publishLatency.Observe(seconds) }

// Handler exposes the registry in the Prometheus exposition format.
var Handler http.Handler = promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
