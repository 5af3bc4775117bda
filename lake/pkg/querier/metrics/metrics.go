package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "lake_oracle_querier_build_info",
			Help: "Build information of the lake querier gateway",
		},
		[]string{"version", "commit", "date"},
	)

	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lake_oracle_querier_queries_total",
			Help: "Statements received by the querier gateway, by outcome",
		},
		[]string{"status"},
	)

	AuthTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lake_oracle_querier_auth_total",
			Help: "Postgres wire authentication attempts, by outcome",
		},
		[]string{"status"},
	)
)
