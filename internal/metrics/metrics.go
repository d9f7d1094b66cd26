// Package metrics records Prometheus counters for export and bulk-JSON
// runs. A CLI run has no scrape endpoint, so the registry is written to a
// node-exporter textfile on request.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "bulkdump"

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeEmpty   = "empty"
	OutcomeError   = "error"
)

// Collector owns the registry and the metric vectors. A nil *Collector is
// valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	rowsExported   *prometheus.CounterVec
	pagesFetched   *prometheus.CounterVec
	exportDuration *prometheus.HistogramVec
	documents      *prometheus.CounterVec
	files          *prometheus.CounterVec
}

// NewCollector registers the metric vectors on registry. If registry is
// nil a new one is created.
func NewCollector(registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	c := &Collector{
		registry: registry,
		rowsExported: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "export",
			Name:      "rows_total",
			Help:      "Rows written to delimited output.",
		}, []string{"table"}),
		pagesFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "export",
			Name:      "pages_total",
			Help:      "Page queries issued against the data source.",
		}, []string{"table"}),
		exportDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "export",
			Name:      "duration_seconds",
			Help:      "Wall time of table exports.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300, 1800},
		}, []string{"table", "outcome"}),
		documents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bulk",
			Name:      "documents_total",
			Help:      "Documents written to bulk-JSON output.",
		}, []string{"type"}),
		files: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bulk",
			Name:      "files_total",
			Help:      "Input files processed by outcome.",
		}, []string{"outcome"}),
	}

	registry.MustRegister(c.rowsExported, c.pagesFetched, c.exportDuration, c.documents, c.files)
	return c
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// RecordPage counts one page query and the rows it returned.
func (c *Collector) RecordPage(table string, rows int) {
	if c == nil {
		return
	}
	c.pagesFetched.WithLabelValues(table).Inc()
	c.rowsExported.WithLabelValues(table).Add(float64(rows))
}

// RecordExport observes the duration of a finished export.
func (c *Collector) RecordExport(table, outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.exportDuration.WithLabelValues(table, outcome).Observe(d.Seconds())
}

// RecordDocument counts one written document of docType.
func (c *Collector) RecordDocument(docType string) {
	if c == nil {
		return
	}
	c.documents.WithLabelValues(docType).Inc()
}

// RecordFile counts one processed input file.
func (c *Collector) RecordFile(outcome string) {
	if c == nil {
		return
	}
	c.files.WithLabelValues(outcome).Inc()
}

// WriteTextfile writes the registry in the text exposition format to path.
func (c *Collector) WriteTextfile(path string) error {
	if c == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
