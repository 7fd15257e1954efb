package manager

import "github.com/prometheus/client_golang/prometheus"

var (
	modelLoadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "iorganise",
			Subsystem: "models",
			Name:      "loads_total",
			Help:      "Total number of successful model loads",
		},
		[]string{"kind"},
	)

	modelLoadErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "iorganise",
			Subsystem: "models",
			Name:      "load_errors_total",
			Help:      "Total number of failed model loads",
		},
		[]string{"kind"},
	)

	modelEvictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "iorganise",
			Subsystem: "models",
			Name:      "evictions_total",
			Help:      "Total number of model evictions",
		},
		[]string{"kind"},
	)

	modelCacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "iorganise",
			Subsystem: "models",
			Name:      "cache_hits_total",
			Help:      "Acquires served by an already resident model",
		},
		[]string{"kind"},
	)

	modelResident = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "iorganise",
			Subsystem: "models",
			Name:      "resident",
			Help:      "1 when a model of the kind is resident",
		},
		[]string{"kind"},
	)

	modelLoadDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "iorganise",
			Subsystem: "models",
			Name:      "load_duration_seconds",
			Help:      "Duration of model loads in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(modelLoadsTotal, modelLoadErrorsTotal, modelEvictionsTotal,
		modelCacheHitsTotal, modelResident, modelLoadDuration)
}
