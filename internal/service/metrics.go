package service

import "github.com/prometheus/client_golang/prometheus"

var (
	mutationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mutations_total",
			Help: "Room state mutations by operation and outcome",
		},
		[]string{"op", "outcome"},
	)
	writeConflictsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "write_conflicts_total",
			Help: "Mutations that exhausted their retry budget",
		},
	)
	casConflictsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cas_conflicts_total",
			Help: "Counter CAS commits rejected on value mismatch",
		},
	)
)

func init() {
	prometheus.MustRegister(mutationsTotal, writeConflictsTotal, casConflictsTotal)
}
