package observability

import (
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector bundles the Prometheus metrics recorded by workbench
// operations. A nil *Collector records nothing.
type Collector struct {
	gatherer prometheus.Gatherer

	Validations      *prometheus.CounterVec
	ValidationIssues prometheus.Counter
	CyclesDetected   prometheus.Counter
	Copies           *prometheus.CounterVec
	Clones           *prometheus.CounterVec
	Deletes          *prometheus.CounterVec
	Imports          *prometheus.CounterVec
	Durations        *prometheus.HistogramVec
}

// NewCollector registers the metrics against reg, defaulting to the global
// registry when nil. Registering twice on one registry reuses the existing
// collectors.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	validations, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cellmlhub_validations_total",
		Help: "Validation runs, labeled by entity kind and outcome.",
	}, []string{"kind", "result"}), "cellmlhub_validations_total")
	if err != nil {
		return nil, err
	}
	issues, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cellmlhub_validation_issues_total",
		Help: "Issues reported by validation runs.",
	}), "cellmlhub_validation_issues_total")
	if err != nil {
		return nil, err
	}
	cycles, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cellmlhub_cycles_detected_total",
		Help: "Distinct equivalence cycles found by validation.",
	}), "cellmlhub_cycles_detected_total")
	if err != nil {
		return nil, err
	}
	copies, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cellmlhub_copies_total",
		Help: "Entity copies, labeled by strategy.",
	}, []string{"strategy"}), "cellmlhub_copies_total")
	if err != nil {
		return nil, err
	}
	clones, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cellmlhub_clones_total",
		Help: "Model clone-and-relink runs, labeled by outcome.",
	}, []string{"result"}), "cellmlhub_clones_total")
	if err != nil {
		return nil, err
	}
	deletes, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cellmlhub_deleted_entities_total",
		Help: "Entities removed, labeled by delete mode.",
	}, []string{"mode"}), "cellmlhub_deleted_entities_total")
	if err != nil {
		return nil, err
	}
	imports, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cellmlhub_imports_total",
		Help: "Model documents imported, labeled by whether the loader left warnings.",
	}, []string{"warnings"}), "cellmlhub_imports_total")
	if err != nil {
		return nil, err
	}
	durations, err := register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cellmlhub_operation_duration_seconds",
		Help:    "Workbench operation latency in seconds.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"operation"}), "cellmlhub_operation_duration_seconds")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:         gatherer,
		Validations:      validations,
		ValidationIssues: issues,
		CyclesDetected:   cycles,
		Copies:           copies,
		Clones:           clones,
		Deletes:          deletes,
		Imports:          imports,
		Durations:        durations,
	}, nil
}

func (c *Collector) ObserveValidation(kind string, valid bool, issues, cycles int) {
	if c == nil {
		return
	}
	c.Validations.WithLabelValues(kind, outcome(valid, "valid", "invalid")).Inc()
	c.ValidationIssues.Add(float64(issues))
	c.CyclesDetected.Add(float64(cycles))
}

func (c *Collector) ObserveCopy(strategy string) {
	if c == nil {
		return
	}
	c.Copies.WithLabelValues(strategy).Inc()
}

func (c *Collector) ObserveClone(err error) {
	if c == nil {
		return
	}
	c.Clones.WithLabelValues(outcome(err == nil, "ok", "error")).Inc()
}

func (c *Collector) ObserveDelete(mode string, removed int) {
	if c == nil {
		return
	}
	c.Deletes.WithLabelValues(mode).Add(float64(removed))
}

func (c *Collector) ObserveImport(warnings int) {
	if c == nil {
		return
	}
	c.Imports.WithLabelValues(strconv.FormatBool(warnings > 0)).Inc()
}

func (c *Collector) ObserveDuration(operation string, d time.Duration) {
	if c == nil {
		return
	}
	c.Durations.WithLabelValues(operation).Observe(d.Seconds())
}

// WriteTextfile dumps the current metrics in the node exporter textfile
// format, for one-shot CLI runs.
func (c *Collector) WriteTextfile(path string) error {
	if c == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, c.gatherer)
}

func outcome(ok bool, yes, no string) string {
	if ok {
		return yes
	}
	return no
}

func register[T prometheus.Collector](reg prometheus.Registerer, collector T, name string) (T, error) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
			var zero T
			return zero, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		var zero T
		return zero, err
	}
	return collector, nil
}
