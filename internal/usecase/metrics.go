package usecase

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles Prometheus collectors for the refresh pipeline.
type Metrics struct {
	Registry         *prometheus.Registry
	RefreshTotal     *prometheus.CounterVec
	OffersMatched    prometheus.Counter
	FetchErrorsTotal prometheus.Counter
	StoreErrorsTotal prometheus.Counter
	MergedSetSize    prometheus.Histogram
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	refreshTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offertracker_refresh_total",
			Help: "Total refresh cycles by persistence mode.",
		},
		[]string{"mode"},
	)
	offersMatched := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "offertracker_offers_matched_total",
			Help: "Total listings that passed matching.",
		},
	)
	fetchErrors := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "offertracker_fetch_errors_total",
			Help: "Total failed marketplace fetches.",
		},
	)
	storeErrors := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "offertracker_storage_errors_total",
			Help: "Total failed durable offer writes.",
		},
	)
	mergedSize := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "offertracker_merged_set_size",
			Help:    "Merged result set size after each merge.",
			Buckets: prometheus.LinearBuckets(0, 5, 11),
		},
	)

	registry.MustRegister(refreshTotal, offersMatched, fetchErrors, storeErrors, mergedSize)

	return &Metrics{
		Registry:         registry,
		RefreshTotal:     refreshTotal,
		OffersMatched:    offersMatched,
		FetchErrorsTotal: fetchErrors,
		StoreErrorsTotal: storeErrors,
		MergedSetSize:    mergedSize,
	}
}

// IncRefresh counts one refresh cycle for a mode label.
func (m *Metrics) IncRefresh(mode string) {
	if m == nil {
		return
	}
	m.RefreshTotal.WithLabelValues(mode).Inc()
}

// AddMatched counts listings that passed matching.
func (m *Metrics) AddMatched(n int) {
	if m == nil {
		return
	}
	m.OffersMatched.Add(float64(n))
}

// IncFetchError counts a failed marketplace fetch.
func (m *Metrics) IncFetchError() {
	if m == nil {
		return
	}
	m.FetchErrorsTotal.Inc()
}

// IncStoreError counts a failed durable write.
func (m *Metrics) IncStoreError() {
	if m == nil {
		return
	}
	m.StoreErrorsTotal.Inc()
}

// ObserveMergedSize records the merged set size after a merge.
func (m *Metrics) ObserveMergedSize(n int) {
	if m == nil {
		return
	}
	m.MergedSetSize.Observe(float64(n))
}
