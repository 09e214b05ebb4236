package modules

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var importsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "uishell_client_module_imports_total",
	Help: "Module fetches by result.",
}, []string{"result"})
