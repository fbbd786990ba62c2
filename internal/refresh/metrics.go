package refresh

import "github.com/prometheus/client_golang/prometheus"

var (
	refreshTotal       *prometheus.CounterVec
	refreshLastSuccess *prometheus.GaugeVec
)

func init() {
	refreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clusterdash",
			Subsystem: "refresh",
			Name:      "total",
			Help:      "Completed refreshes by view and result",
		},
		[]string{"view", "result"}, // result: success, error, stale
	)
	prometheus.MustRegister(refreshTotal)

	refreshLastSuccess = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "clusterdash",
			Subsystem: "refresh",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful refresh",
		},
		[]string{"view"},
	)
	prometheus.MustRegister(refreshLastSuccess)
}
