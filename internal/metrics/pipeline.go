package metrics

import "github.com/prometheus/client_golang/prometheus"

// Pipeline Prometheus metrics.
var (
	PipelineEntitiesFetched = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "recobatch",
			Name:      "pipeline_entities_fetched",
			Help:      "Entities fetched from the warehouse in the last run",
		},
		[]string{"entity"}, // "user" / "media"
	)

	PipelineEntitiesDiscarded = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "recobatch",
			Name:      "pipeline_entities_discarded",
			Help:      "Entities dropped in the last run (failed or empty embedding)",
		},
		[]string{"entity"},
	)

	PipelineRowsWritten = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "recobatch",
			Name:      "pipeline_rows_written",
			Help:      "Recommendation rows written in the last run",
		},
	)

	PipelineRunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "recobatch",
			Name:      "pipeline_run_duration_seconds",
			Help:      "Full batch run duration in seconds",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
	)

	PipelineLastRunTimestamp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "recobatch",
			Name:      "pipeline_last_run_timestamp_seconds",
			Help:      "Unix timestamp of the last completed run",
		},
	)

	PipelineRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "recobatch",
			Name:      "pipeline_runs_total",
			Help:      "Total batch runs by outcome",
		},
		[]string{"status"}, // "success" / "error"
	)
)

var pipelineMetricsRegistered bool

// RegisterPipelineMetrics registers Prometheus pipeline metrics. Must be called once from main.
func RegisterPipelineMetrics() {
	if pipelineMetricsRegistered {
		return
	}
	prometheus.MustRegister(PipelineEntitiesFetched)
	prometheus.MustRegister(PipelineEntitiesDiscarded)
	prometheus.MustRegister(PipelineRowsWritten)
	prometheus.MustRegister(PipelineRunDuration)
	prometheus.MustRegister(PipelineLastRunTimestamp)
	prometheus.MustRegister(PipelineRunsTotal)
	pipelineMetricsRegistered = true
}
