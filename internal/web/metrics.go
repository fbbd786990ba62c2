package web

import "github.com/prometheus/client_golang/prometheus"

var (
	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clusterdash_web_requests_total",
			Help: "HTTP requests served by the web dashboard.",
		},
		[]string{"route", "method"},
	)

	pushesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clusterdash_web_pushes_total",
			Help: "Dashboard updates pushed to websocket clients.",
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(requestsTotal, pushesTotal)
}
