// Package metrics collects and exposes Prometheus metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector is implemented by the Prometheus-backed collector below and by
// the no-op collector used in tests.
type Collector interface {
	RecordLogin()
	RecordRefresh()
	RecordAuthFailure(reason string)
	RecordSessionsSwept(count int64)
	RecordContextRetrieval(factCount, conversationCount int)
	RecordExtractionJob()
	RecordExtractionDropped()
	RecordFactsExtracted(count int)
	RecordAILatency(d time.Duration)
}

type PromCollector struct {
	logins            prometheus.Counter
	refreshes         prometheus.Counter
	authFailures      *prometheus.CounterVec
	sessionsSwept     prometheus.Counter
	contextRetrievals prometheus.Counter
	contextFacts      prometheus.Counter
	extractionJobs    prometheus.Counter
	extractionDropped prometheus.Counter
	factsExtracted    prometheus.Counter
	aiLatency         prometheus.Histogram
}

func NewCollector(reg prometheus.Registerer) *PromCollector {
	c := &PromCollector{
		logins: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "assistant_auth_logins_total",
			Help: "Successful logins.",
		}),
		refreshes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "assistant_auth_refreshes_total",
			Help: "Successful session refreshes.",
		}),
		authFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "assistant_auth_failures_total",
			Help: "Authentication failures by reason.",
		}, []string{"reason"}),
		sessionsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "assistant_sessions_swept_total",
			Help: "Inert session rows deleted by the periodic sweep.",
		}),
		contextRetrievals: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "assistant_context_retrievals_total",
			Help: "Context retrieval invocations.",
		}),
		contextFacts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "assistant_context_facts_total",
			Help: "Facts surfaced into prompt context.",
		}),
		extractionJobs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "assistant_extraction_jobs_total",
			Help: "Knowledge extraction jobs processed.",
		}),
		extractionDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "assistant_extraction_dropped_total",
			Help: "Extraction jobs dropped because the queue was full.",
		}),
		factsExtracted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "assistant_facts_extracted_total",
			Help: "Facts persisted by the extraction pipeline.",
		}),
		aiLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "assistant_ai_latency_seconds",
			Help:    "Latency of external text-generation calls.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.logins,
		c.refreshes,
		c.authFailures,
		c.sessionsSwept,
		c.contextRetrievals,
		c.contextFacts,
		c.extractionJobs,
		c.extractionDropped,
		c.factsExtracted,
		c.aiLatency,
	)

	return c
}

func (c *PromCollector) RecordLogin() { c.logins.Inc() }
func (c *PromCollector) RecordRefresh() { c.refreshes.Inc() }

func (c *PromCollector) RecordAuthFailure(reason string) {
	c.authFailures.WithLabelValues(reason).Inc()
}

func (c *PromCollector) RecordSessionsSwept(count int64) {
	c.sessionsSwept.Add(float64(count))
}

func (c *PromCollector) RecordContextRetrieval(factCount, conversationCount int) {
	c.contextRetrievals.Inc()
	c.contextFacts.Add(float64(factCount))
}

func (c *PromCollector) RecordExtractionJob() { c.extractionJobs.Inc() }
func (c *PromCollector) RecordExtractionDropped() { c.extractionDropped.Inc() }

func (c *PromCollector) RecordFactsExtracted(count int) {
	c.factsExtracted.Add(float64(count))
}

func (c *PromCollector) RecordAILatency(d time.Duration) {
	c.aiLatency.Observe(d.Seconds())
}

// Handler returns the scrape endpoint for the given registry.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// Nop discards all observations. Used where tests do not assert on metrics.
type Nop struct{}

func (Nop) RecordLogin() {}
func (Nop) RecordRefresh() {}
func (Nop) RecordAuthFailure(string) {}
func (Nop) RecordSessionsSwept(int64) {}
func (Nop) RecordContextRetrieval(int, int) {}
func (Nop) RecordExtractionJob() {}
func (Nop) RecordExtractionDropped() {}
func (Nop) RecordFactsExtracted(int) {}
func (Nop) RecordAILatency(time.Duration) {}
