package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	generationRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "medslots",
			Name:      "generation_runs_total",
			Help:      "Count of slot generation runs by result.",
		},
		[]string{"result"},
	)

	slotsMerged = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "medslots",
			Name:      "slots_merged_total",
			Help:      "Count of generated slots by merge outcome.",
		},
		[]string{"outcome"},
	)

	availabilityQueries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "medslots",
			Name:      "availability_queries_total",
			Help:      "Count of availability queries by source.",
		},
		[]string{"source"},
	)

	settingsMissing = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "medslots",
			Name:      "settings_missing_total",
			Help:      "Count of generation requests for clinics without booking settings.",
		},
	)

	catalogReloads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "medslots",
			Name:      "catalog_reloads_total",
			Help:      "Count of clinics catalog reloads by result.",
		},
		[]string{"result"},
	)

	generationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "medslots",
			Name:      "generation_duration_seconds",
			Help:      "Duration of slot generation runs.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	storeSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "medslots",
			Name:      "store_slots",
			Help:      "Number of slots held in the canonical collection.",
		},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			generationRuns, slotsMerged, availabilityQueries, settingsMissing,
			catalogReloads, generationDuration, storeSize, httpRequests,
		)
	})
}

func IncGenerationRun(result string) {
	generationRuns.WithLabelValues(result).Inc()
}

func AddMerged(inserted, skipped int) {
	slotsMerged.WithLabelValues("inserted").Add(float64(inserted))
	slotsMerged.WithLabelValues("skipped").Add(float64(skipped))
}

func IncAvailabilityQuery(source string) {
	availabilityQueries.WithLabelValues(source).Inc()
}

func IncSettingsMissing() {
	settingsMissing.Inc()
}

func IncCatalogReload(result string) {
	catalogReloads.WithLabelValues(result).Inc()
}

func ObserveGeneration(d time.Duration) {
	generationDuration.Observe(d.Seconds())
}

func SetStoreSize(n int) {
	storeSize.Set(float64(n))
}

var httpRequests = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "medslots",
		Name:      "http_requests_total",
		Help:      "Count of API requests by endpoint.",
	},
	[]string{"endpoint"},
)

func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}
