package worker

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeFound = "found"
	outcomeMiss  = "miss"
	outcomeFault = "fault"
)

var (
	// MineTotal counts Mine calls by engine and outcome (found, miss, fault)
	MineTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cuckoo_worker_mine_total",
			Help: "Cycle searches run by mining workers",
		},
		[]string{"engine", "outcome"},
	)

	// MineDuration observes how long a single search took
	MineDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cuckoo_worker_mine_duration_seconds",
			Help:    "Duration of a single cycle search",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		},
		[]string{"engine"},
	)

	// WorkersActive is the number of workers holding an engine
	WorkersActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cuckoo_worker_active",
			Help: "Mining workers with a constructed engine",
		},
		[]string{"engine"},
	)
)

func init() {
	prometheus.MustRegister(MineTotal)
	prometheus.MustRegister(MineDuration)
	prometheus.MustRegister(WorkersActive)
}
