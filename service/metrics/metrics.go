package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// worker side
	FragmentsReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "translate_fragments_received_total",
		Help: "Fragments taken off the bus",
	})
	FragmentsDuplicate = promauto.NewCounter(prometheus.CounterOpts{
		Name: "translate_fragments_duplicate_total",
		Help: "Redelivered fragments dropped by message id",
	})
	FragmentsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "translate_fragments_dropped_total",
		Help: "Fragments released but not sequenced, by reason",
	}, []string{"reason"})
	BufferedFragments = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "translate_buffered_fragments",
		Help: "Fragments waiting in the reorder buffer",
	})
	SequencesAllocated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "translate_sequences_allocated_total",
		Help: "Sequence numbers handed out",
	})
	Translations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "translate_translations_total",
		Help: "Per-language translation outcomes",
	}, []string{"language", "result"})
	TranslationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "translate_translation_duration_seconds",
		Help:    "External translation call latency",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 10), // 10ms to ~5s
	}, []string{"language"})

	// api side
	Polls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "translate_delivery_polls_total",
		Help: "Delivery log polls, by whether records were found",
	}, []string{"found"})
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "translate_http_requests_total",
		Help: "HTTP requests by route and status",
	}, []string{"method", "route", "status"})
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "translate_http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 13), // 5ms to ~20s, long polls included
	}, []string{"method", "route"})
)

func ObserveTranslation(language, result string, d time.Duration) {
	Translations.WithLabelValues(language, result).Inc()
	TranslationDuration.WithLabelValues(language).Observe(d.Seconds())
}

func ObservePoll(found int) {
	if found > 0 {
		Polls.WithLabelValues("true").Inc()
		return
	}
	Polls.WithLabelValues("false").Inc()
}

func Handler() http.Handler {
	return promhttp.Handler()
}
