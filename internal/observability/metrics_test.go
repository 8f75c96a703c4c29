package observability

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestCollectorRecordsOperations(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewCollector(reg)
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}

	collector.ObserveValidation("model", false, 3, 1)
	collector.ObserveValidation("model", true, 0, 0)
	collector.ObserveCopy("deep")
	collector.ObserveClone(nil)
	collector.ObserveClone(errors.New("boom"))
	collector.ObserveDelete("deep", 4)
	collector.ObserveImport(2)
	collector.ObserveDuration("validate", 15*time.Millisecond)

	if got := testutil.ToFloat64(collector.Validations.WithLabelValues("model", "invalid")); got != 1 {
		t.Fatalf("invalid validations = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.ValidationIssues); got != 3 {
		t.Fatalf("validation issues = %v, want 3", got)
	}
	if got := testutil.ToFloat64(collector.CyclesDetected); got != 1 {
		t.Fatalf("cycles = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.Clones.WithLabelValues("error")); got != 1 {
		t.Fatalf("failed clones = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.Deletes.WithLabelValues("deep")); got != 4 {
		t.Fatalf("deleted entities = %v, want 4", got)
	}
	if got := testutil.ToFloat64(collector.Imports.WithLabelValues("true")); got != 1 {
		t.Fatalf("imports with warnings = %v, want 1", got)
	}
	if count := histogramSampleCount(t, reg, "cellmlhub_operation_duration_seconds", map[string]string{"operation": "validate"}); count != 1 {
		t.Fatalf("duration sample_count = %d, want 1", count)
	}
}

func TestCollectorReusesRegisteredMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewCollector(reg)
	if err != nil {
		t.Fatalf("first NewCollector: %v", err)
	}
	second, err := NewCollector(reg)
	if err != nil {
		t.Fatalf("second NewCollector: %v", err)
	}
	second.ObserveCopy("shallow")
	if got := testutil.ToFloat64(first.Copies.WithLabelValues("shallow")); got != 1 {
		t.Fatalf("expected shared counter, got %v", got)
	}
}

func TestNilCollectorIsSafe(t *testing.T) {
	var collector *Collector
	collector.ObserveCopy("link")
	collector.ObserveDuration("copy", time.Second)
	if err := collector.WriteTextfile(filepath.Join(t.TempDir(), "none.prom")); err != nil {
		t.Fatalf("WriteTextfile on nil collector: %v", err)
	}
}

func TestWriteTextfile(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewCollector(reg)
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}
	collector.ObserveCopy("link")

	path := filepath.Join(t.TempDir(), "cellmlhub.prom")
	if err := collector.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read textfile: %v", err)
	}
	if !strings.Contains(string(data), `cellmlhub_copies_total{strategy="link"} 1`) {
		t.Fatalf("textfile missing copy counter:\n%s", data)
	}
}

func histogramSampleCount(t *testing.T, gatherer prometheus.Gatherer, name string, labels map[string]string) uint64 {
	t.Helper()

	metrics, err := gatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if labelsMatch(m, labels) {
				return m.GetHistogram().GetSampleCount()
			}
		}
	}
	return 0
}

func labelsMatch(m *dto.Metric, want map[string]string) bool {
	got := map[string]string{}
	for _, lp := range m.GetLabel() {
		got[lp.GetName()] = lp.GetValue()
	}
	for k, v := range want {
		if got[k] != v {
			return false
		}
	}
	return true
}
