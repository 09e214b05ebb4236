package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	stateTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "uishell_client_session_transitions_total",
		Help: "Session state transitions by target state.",
	}, []string{"state"})

	framesAppliedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "uishell_client_frames_applied_total",
		Help: "Server frames applied by the session.",
	})

	rendersTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "uishell_client_renders_total",
		Help: "Root component renders applied.",
	})

	serverErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "uishell_client_server_errors_total",
		Help: "Application errors reported by the server.",
	})

	hotReloadsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "uishell_client_hot_reloads_total",
		Help: "Hot reload requests sent.",
	})

	resolutionFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "uishell_client_key_resolution_failures_total",
		Help: "Keyed lookups that matched no element or several.",
	}, []string{"effect", "reason"})
)
