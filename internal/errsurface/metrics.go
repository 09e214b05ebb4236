package errsurface

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var errorReportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "uishell",
	Subsystem: "client",
	Name:      "error_reports_total",
	Help:      "Error reports shown to the user, by origin.",
}, []string{"origin"})
