package channel

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	wsConnectsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "uishell_client_ws_connects_total",
		Help: "Websocket dial attempts by result.",
	}, []string{"result"})

	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "uishell_client_requests_total",
		Help: "Requests sent to the UI server by type.",
	}, []string{"type"})

	framesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "uishell_client_frames_total",
		Help: "Frames received from the UI server.",
	})

	faultsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "uishell_client_channel_faults_total",
		Help: "Transport-level failures.",
	})

	inflight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "uishell_client_round_trips_inflight",
		Help: "Round trips waiting for their final frame.",
	})

	roundTripSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "uishell_client_round_trip_seconds",
		Help:    "Time from request to final frame.",
		Buckets: prometheus.DefBuckets,
	}, []string{"type"})
)
