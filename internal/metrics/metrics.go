// Package metrics provides Prometheus metrics for the health assistant.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	ChatSessionsTotal   *prometheus.CounterVec
	ChatChunksTotal     *prometheus.CounterVec
	ChatStreamDuration  prometheus.Histogram
	ChangeItemsTotal    *prometheus.CounterVec
	RecordUpdatesTotal  *prometheus.CounterVec
	RecommendationTotal *prometheus.CounterVec
}

// New creates the collectors on a fresh registry, so several instances can coexist
// (one per test, for example).
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		ChatSessionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "healthagent_chat_sessions_total",
				Help: "Chat sessions by terminal outcome",
			},
			[]string{"outcome"},
		),
		ChatChunksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "healthagent_chat_chunks_total",
				Help: "Stream chunks delivered to callers",
			},
			[]string{"kind"},
		),
		ChatStreamDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "healthagent_chat_stream_duration_seconds",
				Help:    "Time from request to terminal chunk",
				Buckets: prometheus.DefBuckets,
			},
		),
		ChangeItemsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "healthagent_change_items_total",
				Help: "Change items seen by the mutation router, by outcome",
			},
			[]string{"outcome"},
		),
		RecordUpdatesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "healthagent_record_updates_total",
				Help: "Record store updates issued by the mutation router",
			},
			[]string{"scope", "status"},
		),
		RecommendationTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "healthagent_recommendations_total",
				Help: "Recommendation generation attempts",
			},
			[]string{"status"},
		),
	}
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordSession records the outcome and duration of one chat stream.
func (m *Metrics) RecordSession(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.ChatSessionsTotal.WithLabelValues(outcome).Inc()
	m.ChatStreamDuration.Observe(duration.Seconds())
}

// RecordChunk counts one delivered chunk ("partial", "final" or "failed").
func (m *Metrics) RecordChunk(kind string) {
	if m == nil {
		return
	}
	m.ChatChunksTotal.WithLabelValues(kind).Inc()
}

// RecordChangeItem counts one change item outcome.
func (m *Metrics) RecordChangeItem(outcome string) {
	if m == nil {
		return
	}
	m.ChangeItemsTotal.WithLabelValues(outcome).Inc()
}

// RecordUpdate counts one record store update.
func (m *Metrics) RecordUpdate(scope, status string) {
	if m == nil {
		return
	}
	m.RecordUpdatesTotal.WithLabelValues(scope, status).Inc()
}

// RecordRecommendation counts one recommendation request.
func (m *Metrics) RecordRecommendation(status string) {
	if m == nil {
		return
	}
	m.RecommendationTotal.WithLabelValues(status).Inc()
}
