// Package metrics exposes Prometheus instrumentation for the work pool.
package metrics

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TransitionsTotal counts accepted lifecycle transitions by kind and
	// target status.
	TransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "labpool",
		Name:      "transitions_total",
		Help:      "Accepted pool item transitions.",
	}, []string{"kind", "to_status"})

	// ClaimConflictsTotal counts claims lost to another worker.
	ClaimConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "labpool",
		Name:      "claim_conflicts_total",
		Help:      "Claim attempts rejected because another worker won the race.",
	})

	// WriteConflictsTotal counts conditional writes that lost a version race.
	WriteConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "labpool",
		Name:      "write_conflicts_total",
		Help:      "Conditional writes rejected on a stale version.",
	})
)

// Handler returns the /metrics endpoint handler.
func Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.Handler())
}
