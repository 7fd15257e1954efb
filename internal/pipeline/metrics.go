package pipeline

import "github.com/prometheus/client_golang/prometheus"

var (
	filesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "iorganise_pipeline_files_total",
			Help: "Files processed by the pipeline by outcome (ok, cached, or the failed stage).",
		},
		[]string{"outcome"},
	)
	batchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "iorganise_pipeline_batch_duration_seconds",
			Help:    "Wall time of pipeline batches, including the wait for the registry session.",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
	)
	runnerBusy = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "iorganise_pipeline_workers_busy",
			Help: "Pipeline workers currently running a batch.",
		},
	)
)

func init() {
	prometheus.MustRegister(filesTotal, batchDuration, runnerBusy)
}

func observeResults(rs Results) {
	for _, r := range rs {
		switch {
		case r.Err != nil:
			filesTotal.WithLabelValues(string(r.Err.Stage)).Inc()
		case r.Cached:
			filesTotal.WithLabelValues("cached").Inc()
		default:
			filesTotal.WithLabelValues("ok").Inc()
		}
	}
}
