package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ============================================================
// Prometheus метрики циклов сбора
// ============================================================

// CycleDuration - длительность цикла от выборки счетов до последней записи
var CycleDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: "collector",
		Subsystem: "cycle",
		Name:      "duration_seconds",
		Help:      "Duration of a full collection cycle",
		Buckets:   []float64{1, 2, 5, 10, 20, 30, 60, 120, 300},
	},
)

// CyclesTotal - количество циклов по результату (ok | fetch_failed)
var CyclesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "collector",
		Subsystem: "cycle",
		Name:      "total",
		Help:      "Total number of collection cycles",
	},
	[]string{"result"},
)

// OutcomesTotal - исходы сбора по статусу
var OutcomesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "collector",
		Subsystem: "accounts",
		Name:      "outcomes_total",
		Help:      "Collection outcomes by resulting account status",
	},
	[]string{"status"},
)

// PersistFailures - исходы, которые не удалось записать
var PersistFailures = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "collector",
		Subsystem: "accounts",
		Name:      "persist_failures_total",
		Help:      "Outcomes that could not be written to the store",
	},
)

// EligibleAccounts - счета, выбранные в последнем цикле
var EligibleAccounts = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "collector",
		Subsystem: "accounts",
		Name:      "eligible",
		Help:      "Accounts selected for the last cycle",
	},
)

// LastCycleTimestamp - время завершения последнего цикла (unix)
var LastCycleTimestamp = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "collector",
		Subsystem: "cycle",
		Name:      "last_completed_timestamp_seconds",
		Help:      "Unix time of the last completed cycle",
	},
)
