// Package metrics exposes Prometheus collectors for the scraper service.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	scraperPagesTotal          *prometheus.CounterVec
	scraperListingsTotal       prometheus.Counter
	scraperFetchRetriesTotal   prometheus.Counter
	scraperDetailFailuresTotal prometheus.Counter
	scraperSnapshotSize        prometheus.Gauge

	once sync.Once
)

// Init registers the Prometheus collectors. Safe to call more than once.
func Init() {
	once.Do(func() {
		scraperPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_pages_total",
				Help: "Total number of listing pages scraped, labeled by outcome.",
			},
			[]string{"status"},
		)

		scraperListingsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "scraper_listings_total",
				Help: "Total number of basic listings extracted from result pages.",
			},
		)

		scraperFetchRetriesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "scraper_fetch_retries_total",
				Help: "Total number of fetch retries across all requests.",
			},
		)

		scraperDetailFailuresTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "scraper_detail_failures_total",
				Help: "Total number of detail enrichments that fell back to defaults.",
			},
		)

		scraperSnapshotSize = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "scraper_snapshot_size",
				Help: "Number of listings in the most recently persisted snapshot.",
			},
		)
	})
}

// IncPagesScraped counts one scraped page with the given outcome ("ok" or
// "failed").
func IncPagesScraped(status string) {
	if scraperPagesTotal != nil {
		scraperPagesTotal.WithLabelValues(status).Inc()
	}
}

// AddListingsExtracted counts basic listings coming out of extraction.
func AddListingsExtracted(n int) {
	if scraperListingsTotal != nil && n > 0 {
		scraperListingsTotal.Add(float64(n))
	}
}

// IncFetchRetries counts one retry attempt.
func IncFetchRetries() {
	if scraperFetchRetriesTotal != nil {
		scraperFetchRetriesTotal.Inc()
	}
}

// IncDetailFailures counts one best-effort enrichment fallback.
func IncDetailFailures() {
	if scraperDetailFailuresTotal != nil {
		scraperDetailFailuresTotal.Inc()
	}
}

// SetSnapshotSize records the size of the persisted snapshot.
func SetSnapshotSize(n int) {
	if scraperSnapshotSize != nil {
		scraperSnapshotSize.Set(float64(n))
	}
}

// Handler returns the Prometheus scrape endpoint handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
