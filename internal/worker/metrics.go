package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BusyWorkers - слоты, выполняющие задание прямо сейчас
var BusyWorkers = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "collector",
		Subsystem: "worker",
		Name:      "busy",
		Help:      "Number of worker slots currently collecting an account",
	},
)

// CollectDuration - длительность сбора одного счёта по исходу
var CollectDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "collector",
		Subsystem: "worker",
		Name:      "collect_duration_seconds",
		Help:      "Time to collect a single account",
		Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60, 120},
	},
	[]string{"status"},
)
