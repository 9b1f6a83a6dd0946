package job

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts job outcomes and work done.
type Metrics struct {
	jobs           *prometheus.CounterVec
	rowsExtracted  prometheus.Counter
	rowsWritten    prometheus.Counter
	droppedPoints  prometheus.Counter
	unmatched      prometheus.Counter
	reads          prometheus.Counter
	storageRetries *prometheus.CounterVec
	stageDuration  *prometheus.HistogramVec
}

// NewMetrics registers the job metrics with r.
func NewMetrics(r prometheus.Registerer) *Metrics {
	return &Metrics{
		jobs: promauto.With(r).NewCounterVec(prometheus.CounterOpts{
			Namespace: "nc2parquet",
			Name:      "jobs_total",
			Help:      "Jobs run, by final status.",
		}, []string{"status"}),
		rowsExtracted: promauto.With(r).NewCounter(prometheus.CounterOpts{
			Namespace: "nc2parquet",
			Name:      "rows_extracted_total",
			Help:      "Rows read from input variables after filtering.",
		}),
		rowsWritten: promauto.With(r).NewCounter(prometheus.CounterOpts{
			Namespace: "nc2parquet",
			Name:      "rows_written_total",
			Help:      "Rows written to outputs after post-processing.",
		}),
		droppedPoints: promauto.With(r).NewCounter(prometheus.CounterOpts{
			Namespace: "nc2parquet",
			Name:      "dropped_points_total",
			Help:      "Requested points with no grid location within tolerance.",
		}),
		unmatched: promauto.With(r).NewCounter(prometheus.CounterOpts{
			Namespace: "nc2parquet",
			Name:      "unmatched_values_total",
			Help:      "Requested list values and time steps matching no coordinate.",
		}),
		reads: promauto.With(r).NewCounter(prometheus.CounterOpts{
			Namespace: "nc2parquet",
			Name:      "hyperslab_reads_total",
			Help:      "Hyperslab reads issued against input variables.",
		}),
		storageRetries: promauto.With(r).NewCounterVec(prometheus.CounterOpts{
			Namespace: "nc2parquet",
			Name:      "storage_retries_total",
			Help:      "Retries of transient storage failures, by operation.",
		}, []string{"operation"}),
		stageDuration: promauto.With(r).NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "nc2parquet",
			Name:      "stage_duration_seconds",
			Help:      "Time spent in each job stage.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"stage"}),
	}
}

func (m *Metrics) observe(r *Report, status string) {
	if m == nil {
		return
	}
	m.jobs.WithLabelValues(status).Inc()
	m.rowsExtracted.Add(float64(r.ExtractedRows))
	m.rowsWritten.Add(float64(r.OutputRows))
	m.droppedPoints.Add(float64(r.DroppedPoints))
	m.unmatched.Add(float64(r.UnmatchedValues))
	m.reads.Add(float64(r.Reads))
	for stage, d := range r.Stages {
		m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
	}
}

func (m *Metrics) retry(op string) {
	if m == nil {
		return
	}
	m.storageRetries.WithLabelValues(op).Inc()
}

// WriteTextfile writes every metric gathered by g to path in the text
// exposition format, for node_exporter's textfile collector.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	return prometheus.WriteToTextfile(path, g)
}
