// Package metrics exposes Prometheus collectors for the magnet service.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pollsTotal        *prometheus.CounterVec
	fetchesTotal      *prometheus.CounterVec
	linksFoundTotal   prometheus.Counter
	registryEntries   prometheus.Gauge
	registryEvictions prometheus.Counter
	validationTotal   *prometheus.CounterVec
	dispatchesTotal   *prometheus.CounterVec
	joinsTotal        *prometheus.CounterVec

	once sync.Once
)

// Init initializes the Prometheus collectors. Safe to call repeatedly.
func Init() {
	once.Do(func() {
		pollsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "magnet_polls_total",
				Help: "Total poll cycles, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		fetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "magnet_fetches_total",
				Help: "Total page fetches, labeled by kind (list/detail) and outcome.",
			},
			[]string{"kind", "outcome"},
		)

		linksFoundTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "magnet_links_found_total",
				Help: "Total joinlobby references seen across polls, pre-dedup.",
			},
		)

		registryEntries = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "magnet_registry_entries",
				Help: "Current number of lobby entries in the registry.",
			},
		)

		registryEvictions = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "magnet_registry_evictions_total",
				Help: "Total entries evicted for exceeding the registry cap.",
			},
		)

		validationTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "magnet_validation_transitions_total",
				Help: "Total validation status transitions, labeled by new status.",
			},
			[]string{"status"},
		)

		dispatchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "magnet_validation_dispatches_total",
				Help: "Total validation dispatch attempts, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		joinsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "magnet_joins_total",
				Help: "Total join attempts, labeled by kind (auto/forced) and outcome.",
			},
			[]string{"kind", "outcome"},
		)
	})
}

// ObservePoll records one completed or skipped poll cycle.
func ObservePoll(outcome string) {
	if pollsTotal == nil {
		return
	}
	pollsTotal.WithLabelValues(outcome).Inc()
}

// ObserveFetch records one fetch attempt of the given kind.
func ObserveFetch(kind string, ok bool) {
	if fetchesTotal == nil {
		return
	}
	fetchesTotal.WithLabelValues(kind, outcomeLabel(ok)).Inc()
}

// AddLinksFound counts references discovered in one poll.
func AddLinksFound(n int) {
	if linksFoundTotal == nil || n <= 0 {
		return
	}
	linksFoundTotal.Add(float64(n))
}

// SetRegistrySize publishes the current registry size.
func SetRegistrySize(n int) {
	if registryEntries == nil {
		return
	}
	registryEntries.Set(float64(n))
}

// ObserveEviction counts one eviction.
func ObserveEviction() {
	if registryEvictions == nil {
		return
	}
	registryEvictions.Inc()
}

// ObserveTransition records a validation status transition.
func ObserveTransition(status string) {
	if validationTotal == nil {
		return
	}
	validationTotal.WithLabelValues(status).Inc()
}

// ObserveDispatch records one external validation dispatch attempt.
func ObserveDispatch(ok bool) {
	if dispatchesTotal == nil {
		return
	}
	dispatchesTotal.WithLabelValues(outcomeLabel(ok)).Inc()
}

// ObserveJoin records one join attempt.
func ObserveJoin(kind string, ok bool) {
	if joinsTotal == nil {
		return
	}
	joinsTotal.WithLabelValues(kind, outcomeLabel(ok)).Inc()
}

func outcomeLabel(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
