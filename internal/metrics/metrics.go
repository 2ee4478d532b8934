// Package metrics exposes Prometheus instrumentation for the scan pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ScanCycles counts completed scan cycles.
	ScanCycles = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parthawk_scan_cycles_total",
		Help: "The total number of completed scan cycles.",
	})
	// MonitorOutcomes counts per-monitor terminal states by status.
	MonitorOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parthawk_monitor_outcomes_total",
		Help: "The total number of per-monitor scan outcomes by terminal status.",
	}, []string{"status"})
	// ExtractorRequests counts upstream requests by source.
	ExtractorRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parthawk_extractor_requests_total",
		Help: "The total number of upstream marketplace requests by source.",
	}, []string{"source"})
	// ExtractorErrors counts failed upstream requests by source.
	ExtractorErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parthawk_extractor_errors_total",
		Help: "The total number of failed upstream marketplace requests by source.",
	}, []string{"source"})
	// BotChallenges counts detected anti-bot challenge pages.
	BotChallenges = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parthawk_bot_challenges_total",
		Help: "The total number of anti-bot challenge pages encountered.",
	})
	// ListingsFound counts newly persisted listings by source.
	ListingsFound = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parthawk_listings_found_total",
		Help: "The total number of new listings persisted by source.",
	}, []string{"source"})
	// NotificationsSent counts successful notification deliveries by channel.
	NotificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parthawk_notifications_sent_total",
		Help: "The total number of notifications delivered by channel.",
	}, []string{"channel"})
	// NotificationFailures counts failed notification deliveries by channel.
	NotificationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parthawk_notification_failures_total",
		Help: "The total number of notification delivery failures by channel.",
	}, []string{"channel"})
	// HTTPRequests counts served HTTP requests by method and status code.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parthawk_http_requests_total",
		Help: "The total number of HTTP requests served, labeled by method and code.",
	}, []string{"method", "code"})
	// HTTPRequestDuration observes request latency by method and route.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "parthawk_http_request_duration_seconds",
		Help:    "Histogram of HTTP request latencies, labeled by method and route.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"method", "route"})
)
