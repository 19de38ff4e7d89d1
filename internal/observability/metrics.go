// Package observability wires the Prometheus collectors used by postit.
package observability

import (
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/evalgrid/postit/internal/observability/metrics"
)

// Metrics holds all the metric collectors for the application.
type Metrics struct {
	registry  *prometheus.Registry
	Engine    *metrics.EngineMetrics
	Datastore *metrics.DatastoreMetrics
}

// NewMetrics creates a registry and registers every collector in it.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()

	engineMetrics, err := metrics.NewEngineMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine metrics: %w", err)
	}

	datastoreMetrics, err := metrics.NewDatastoreMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create datastore metrics: %w", err)
	}

	return &Metrics{
		registry:  registry,
		Engine:    engineMetrics,
		Datastore: datastoreMetrics,
	}, nil
}

// Registry returns the registry the collectors live in.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteText gathers all families and writes them in the Prometheus text
// exposition format.
func (m *Metrics) WriteText(w io.Writer) error {
	families, err := m.registry.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("encode %s: %w", mf.GetName(), err)
		}
	}
	return nil
}
