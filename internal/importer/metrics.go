package importer

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Import outcomes used as metric label values.
const (
	OutcomeImported = "imported"
	OutcomeSkipped  = "skipped"
	OutcomeFailed   = "failed"
)

// Metrics holds the import counters. A nil *Metrics records nothing.
type Metrics struct {
	Imports            *prometheus.CounterVec
	Notes              *prometheus.CounterVec
	Attachments        prometheus.Counter
	ImportDuration     prometheus.Histogram
	DecompressTimeouts prometheus.Counter
}

// NewMetrics registers the import metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Imports: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lineage_imports_total",
			Help: "Total number of archive imports by outcome",
		}, []string{"outcome"}),
		Notes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lineage_notes_materialized_total",
			Help: "Total number of notes materialized by outcome",
		}, []string{"outcome"}),
		Attachments: factory.NewCounter(prometheus.CounterOpts{
			Name: "lineage_attachments_written_total",
			Help: "Total number of archive attachments written to the vault",
		}),
		ImportDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "lineage_import_duration_seconds",
			Help:    "Duration of archive imports",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		DecompressTimeouts: factory.NewCounter(prometheus.CounterOpts{
			Name: "lineage_decompress_timeouts_total",
			Help: "Total number of decompressions that exceeded their time budget",
		}),
	}
}

func (m *Metrics) ObserveImport(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Imports.WithLabelValues(outcome).Inc()
	m.ImportDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) AddNotes(written, failed int) {
	if m == nil {
		return
	}
	m.Notes.WithLabelValues("written").Add(float64(written))
	m.Notes.WithLabelValues("failed").Add(float64(failed))
}

func (m *Metrics) AddAttachments(n int) {
	if m == nil {
		return
	}
	m.Attachments.Add(float64(n))
}

func (m *Metrics) IncrementDecompressTimeouts() {
	if m == nil {
		return
	}
	m.DecompressTimeouts.Inc()
}
