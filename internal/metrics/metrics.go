// Package metrics provides Prometheus instrumentation for the proctoring core.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ActiveStudentConnections tracks live student-side channels in the hub.
	ActiveStudentConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "proctoring",
			Name:      "active_student_connections",
			Help:      "Number of live student WebSocket channels.",
		},
	)

	// MonitorRoomMembers tracks observer channels per monitoring room.
	MonitorRoomMembers = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "proctoring",
			Name:      "monitor_room_members",
			Help:      "Number of observer channels per monitoring room.",
		},
		[]string{"room"},
	)

	// ViolationsIngestedTotal counts accepted violations by type.
	ViolationsIngestedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "proctoring",
			Name:      "violations_ingested_total",
			Help:      "Total violation events accepted by type.",
		},
		[]string{"type"},
	)

	// DeliveryFailuresTotal counts channel sends that failed and led to eviction.
	DeliveryFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "proctoring",
			Name:      "delivery_failures_total",
			Help:      "Total failed channel deliveries (dead channels evicted).",
		},
	)

	// RiskRecomputationsTotal counts risk engine evaluations triggered by ingestion.
	RiskRecomputationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "proctoring",
			Name:      "risk_recomputations_total",
			Help:      "Total risk score recomputations.",
		},
	)
)

var registerOnce sync.Once

// Register installs all collectors on the default registry. Idempotent.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			ActiveStudentConnections,
			MonitorRoomMembers,
			ViolationsIngestedTotal,
			DeliveryFailuresTotal,
			RiskRecomputationsTotal,
		)
	})
}

// Handler returns the /metrics endpoint handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
