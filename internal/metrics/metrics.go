package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	EventsIngested = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "inbox_events_ingested_total",
		Help: "Message events folded into conversation summaries",
	})
	EventsDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inbox_events_dropped_total",
		Help: "Malformed message events discarded at ingestion",
	}, []string{"reason"})
	DirectoryLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inbox_directory_lookups_total",
		Help: "Partner directory lookups by outcome",
	}, []string{"outcome"})
	UpdatesPublished = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "inbox_updates_published_total",
		Help: "Summary snapshots pushed to subscribers",
	})
	ActiveSubscriptions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "inbox_active_subscriptions",
		Help: "Live inbox subscriptions",
	})
)

func Init() {
	prometheus.MustRegister(
		EventsIngested,
		EventsDropped,
		DirectoryLookups,
		UpdatesPublished,
		ActiveSubscriptions,
	)
}

// Handler returns an http.Handler for Prometheus scraping
func Handler() http.Handler {
	return promhttp.Handler()
}
