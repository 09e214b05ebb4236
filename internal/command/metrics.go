package command

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var commandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "uishell",
	Subsystem: "client",
	Name:      "commands_total",
	Help:      "Server commands executed, by type.",
}, []string{"type"})
