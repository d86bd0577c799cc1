package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parking_decisions_total",
		Help: "Access decisions by outcome and reason code.",
	}, []string{"outcome", "reason"})

	AlertsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parking_alerts_total",
		Help: "Alerts created by type.",
	}, []string{"type"})

	SessionsOpenedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parking_sessions_opened_total",
		Help: "Parking sessions opened.",
	})

	SessionsClosedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parking_sessions_closed_total",
		Help: "Parking sessions closed and billed.",
	})
)
