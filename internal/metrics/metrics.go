// Package metrics exposes merge counters and timings to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JonMunkholm/csvmerge/internal/merge"
)

// Merge outcome label values.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Recorder implements merge.Recorder on a private registry.
type Recorder struct {
	registry *prometheus.Registry

	merges          *prometheus.CounterVec // By status and error kind
	rowsWritten     prometheus.Counter
	fieldMismatches prometheus.Counter
	blankRows       prometheus.Counter
	inputs          prometheus.Counter
	bytesRead       prometheus.Counter
	duration        prometheus.Histogram
	inFlight        prometheus.Gauge
}

var _ merge.Recorder = (*Recorder)(nil)

// New creates a Recorder and registers its collectors, plus the Go runtime
// and process collectors, on a fresh registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),

		merges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "csvmerge",
			Name:      "merges_total",
			Help:      "Total number of merges by outcome",
		}, []string{"status", "kind"}), // kind is empty for successful merges

		rowsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "csvmerge",
			Name:      "rows_written_total",
			Help:      "Total number of data rows written by successful merges",
		}),

		fieldMismatches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "csvmerge",
			Name:      "field_mismatches_total",
			Help:      "Total number of rows whose field count differed from their header",
		}),

		blankRows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "csvmerge",
			Name:      "blank_rows_total",
			Help:      "Total number of blank rows dropped",
		}),

		inputs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "csvmerge",
			Name:      "inputs_total",
			Help:      "Total number of input files merged",
		}),

		bytesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "csvmerge",
			Name:      "input_bytes_total",
			Help:      "Total number of input bytes read by successful merges",
		}),

		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "csvmerge",
			Name:      "merge_duration_seconds",
			Help:      "Merge duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60}, // Small files to large batches
		}),

		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "csvmerge",
			Name:      "merges_in_flight",
			Help:      "Number of merges currently running",
		}),
	}

	r.registry.MustRegister(
		r.merges,
		r.rowsWritten,
		r.fieldMismatches,
		r.blankRows,
		r.inputs,
		r.bytesRead,
		r.duration,
		r.inFlight,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// ObserveMerge implements merge.Recorder.
func (r *Recorder) ObserveMerge(rep *merge.Report, err error) {
	if r == nil || rep == nil {
		return
	}

	r.duration.Observe(rep.Duration.Seconds())
	if err != nil {
		r.merges.WithLabelValues(StatusFailed, merge.KindOf(err).String()).Inc()
		return
	}

	r.merges.WithLabelValues(StatusOK, "").Inc()
	r.rowsWritten.Add(float64(rep.RowsWritten))
	r.fieldMismatches.Add(float64(rep.FieldMismatches))
	r.blankRows.Add(float64(rep.BlankRows))
	r.inputs.Add(float64(len(rep.Inputs)))
	for _, in := range rep.Inputs {
		r.bytesRead.Add(float64(in.Bytes))
	}
}

// Track marks a merge as running until the returned func is called.
func (r *Recorder) Track() (done func()) {
	if r == nil {
		return func() {}
	}
	r.inFlight.Inc()
	return r.inFlight.Dec
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}
