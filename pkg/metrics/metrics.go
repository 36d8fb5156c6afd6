// Package metrics exposes prometheus counters for the import pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the pipeline counters
type Metrics struct {
	ImportsTotal      *prometheus.CounterVec
	RowsInserted      prometheus.Counter
	DuplicatesSkipped prometheus.Counter
	RowErrors         prometheus.Counter

	registry *prometheus.Registry
}

// New creates a metrics set on its own registry
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		ImportsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "libroazul_imports_total",
			Help: "Statement import runs by outcome (succeeded, failed, preview).",
		}, []string{"outcome"}),
		RowsInserted: factory.NewCounter(prometheus.CounterOpts{
			Name: "libroazul_import_rows_inserted_total",
			Help: "Transactions persisted by the import pipeline.",
		}),
		DuplicatesSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "libroazul_import_duplicates_skipped_total",
			Help: "Rows skipped because their fingerprint already existed.",
		}),
		RowErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "libroazul_import_row_errors_total",
			Help: "Per-row parse or persistence errors recorded in summaries.",
		}),
		registry: registry,
	}
}

// Handler returns the /metrics HTTP handler for this registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
