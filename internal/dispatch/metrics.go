package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "uishell_client_events_total",
		Help: "User events handed to the session, by kind and outcome.",
	}, []string{"kind", "result"})

	resizeCoalescedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "uishell_client_resize_coalesced_total",
		Help: "Resize notifications absorbed by the debounce window.",
	})

	queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "uishell_client_event_queue_depth",
		Help: "Events waiting to be handed to the session.",
	})
)
