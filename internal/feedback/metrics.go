package feedback

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the feedback subsystem. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	DecisionsTotal      *prometheus.CounterVec
	ResolutionsTotal    *prometheus.CounterVec
	IngestedTotal       *prometheus.CounterVec
	EnrichmentsTotal    *prometheus.CounterVec
	EnrichmentDuration  prometheus.Histogram
	NotificationsTotal  *prometheus.CounterVec
	QueueDepth          prometheus.Gauge
	StatsCacheLookups   *prometheus.CounterVec
	StatsComputeSeconds prometheus.Histogram
}

// NewMetrics registers and returns feedback metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		DecisionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feedback_decisions_total",
			Help: "Total triage decisions applied by disposition.",
		}, []string{"status"}),
		ResolutionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feedback_resolutions_total",
			Help: "Total resolution toggles by action.",
		}, []string{"action"}),
		IngestedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feedback_ingested_total",
			Help: "Total ingestion requests by source and result.",
		}, []string{"source", "result"}),
		EnrichmentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feedback_enrichments_total",
			Help: "Total enrichment runs by outcome.",
		}, []string{"outcome"}),
		EnrichmentDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "feedback_enrichment_duration_seconds",
			Help:    "Duration of classifier calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 8), // 0.25s .. ~32s
		}),
		NotificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feedback_notifications_total",
			Help: "Total escalation notifications by outcome.",
		}, []string{"outcome"}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "feedback_queue_depth",
			Help: "Pending items observed on the last queue read.",
		}),
		StatsCacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feedback_stats_cache_lookups_total",
			Help: "Stats cache lookups by result.",
		}, []string{"result"}),
		StatsComputeSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "feedback_stats_compute_seconds",
			Help:    "Time to compute a stats snapshot in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms .. ~2s
		}),
	}

	reg.MustRegister(
		m.DecisionsTotal,
		m.ResolutionsTotal,
		m.IngestedTotal,
		m.EnrichmentsTotal,
		m.EnrichmentDuration,
		m.NotificationsTotal,
		m.QueueDepth,
		m.StatsCacheLookups,
		m.StatsComputeSeconds,
	)

	return m
}

func (m *Metrics) decision(d Disposition) {
	if m == nil {
		return
	}
	m.DecisionsTotal.WithLabelValues(string(d)).Inc()
}

func (m *Metrics) resolution(resolved bool) {
	if m == nil {
		return
	}
	action := "reopen"
	if resolved {
		action = "resolve"
	}
	m.ResolutionsTotal.WithLabelValues(action).Inc()
}

func (m *Metrics) ingested(src Source, created bool) {
	if m == nil {
		return
	}
	result := "duplicate"
	if created {
		result = "created"
	}
	m.IngestedTotal.WithLabelValues(string(src), result).Inc()
}

func (m *Metrics) enrichment(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.EnrichmentsTotal.WithLabelValues(outcome).Inc()
	if seconds > 0 {
		m.EnrichmentDuration.Observe(seconds)
	}
}

func (m *Metrics) notification(err error) {
	if m == nil {
		return
	}
	outcome := "sent"
	if err != nil {
		outcome = "error"
	}
	m.NotificationsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) queueDepth(n int) {
	if m == nil {
		return
	}
	m.QueueDepth.Set(float64(n))
}

func (m *Metrics) statsCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.StatsCacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) statsComputed(seconds float64) {
	if m == nil {
		return
	}
	m.StatsComputeSeconds.Observe(seconds)
}
