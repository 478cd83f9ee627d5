package metrics

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveLine(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveLine(0, 2.5, true)
	m.ObserveLine(0, 0, false)
	m.ObserveLine(1, 1.5, true)

	if got := testutil.ToFloat64(m.LinesProcessed); got != 3 {
		t.Errorf("lines processed = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.Extruded.WithLabelValues("0")); got != 2.5 {
		t.Errorf("tool 0 extruded = %v, want 2.5", got)
	}
	if got := testutil.ToFloat64(m.Extruded.WithLabelValues("1")); got != 1.5 {
		t.Errorf("tool 1 extruded = %v, want 1.5", got)
	}
}

func TestObserveCommit(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveCommit(0, ResultOK, 3)
	m.ObserveCommit(0, ResultError, 10)
	m.ObserveUnassigned(2, 40)
	m.ObserveConflict()

	if got := testutil.ToFloat64(m.Commits.WithLabelValues(ResultOK)); got != 1 {
		t.Errorf("ok commits = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Commits.WithLabelValues(ResultUnassigned)); got != 1 {
		t.Errorf("unassigned commits = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.ConsumedGrams.WithLabelValues("0")); got != 3 {
		t.Errorf("consumed grams = %v, want 3 (errors must not count)", got)
	}
	if got := testutil.ToFloat64(m.Unassigned.WithLabelValues("2")); got != 40 {
		t.Errorf("unassigned mm = %v, want 40", got)
	}
	if got := testutil.ToFloat64(m.VersionConflicts); got != 1 {
		t.Errorf("conflicts = %v, want 1", got)
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics

	// Must not panic
	m.ObserveLine(0, 1, true)
	m.ObserveCommit(0, ResultOK, 1)
	m.ObserveUnassigned(0, 1)
	m.ObserveConflict()
	m.SetPending(0, 1)
	m.SetRemaining(1, 1)
}

func TestGatherAndLint(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.SetPending(0, 12)
	m.SetRemaining(4, 800)

	problems, err := testutil.GatherAndLint(reg)
	if err != nil {
		t.Fatalf("GatherAndLint() error = %v", err)
	}
	for _, p := range problems {
		t.Errorf("lint: %s: %s", p.Metric, p.Text)
	}
}

func TestHandlerAndWriteFile(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.ObserveLine(0, 5, true)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), `spoolmanager_extruded_mm_total{tool="0"} 5`) {
		t.Errorf("handler output missing extruded metric:\n%s", rec.Body.String())
	}

	path := filepath.Join(t.TempDir(), "spoolmanager.prom")
	if err := WriteFile(path, reg); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "spoolmanager_lines_processed_total 1") {
		t.Errorf("textfile missing lines metric:\n%s", data)
	}
}
