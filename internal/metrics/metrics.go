// Package metrics instruments the odometer feed and spool accounting with
// Prometheus collectors.
//
// Available metrics:
//   - spoolmanager_lines_processed_total: command lines fed to the odometer
//   - spoolmanager_extruded_mm_total: reported forward filament (label: tool)
//   - spoolmanager_unassigned_mm_total: filament extruded by tools without a spool (label: tool)
//   - spoolmanager_commits_total: consumption commits (label: result)
//   - spoolmanager_consumed_grams_total: mass written to spools (label: tool)
//   - spoolmanager_version_conflicts_total: optimistic save conflicts retried
//   - spoolmanager_pending_mm: uncommitted length per tool (gauge)
//   - spoolmanager_spool_remaining_grams: remaining weight of assigned spools (gauge, label: spool)
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Commit results.
const (
	ResultOK         = "ok"
	ResultConflict   = "conflict"
	ResultError      = "error"
	ResultUnassigned = "unassigned"
)

// Metrics holds the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	LinesProcessed   prometheus.Counter
	Extruded         *prometheus.CounterVec
	Unassigned       *prometheus.CounterVec
	Commits          *prometheus.CounterVec
	ConsumedGrams    *prometheus.CounterVec
	VersionConflicts prometheus.Counter
	Pending          *prometheus.GaugeVec
	SpoolRemaining   *prometheus.GaugeVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		LinesProcessed: factory.NewCounter(prometheus.CounterOpts{
			Name: "spoolmanager_lines_processed_total",
			Help: "Total number of command lines fed to the odometer",
		}),
		Extruded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "spoolmanager_extruded_mm_total",
			Help: "Forward filament movement reported by the odometer in millimeters",
		}, []string{"tool"}),
		Unassigned: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "spoolmanager_unassigned_mm_total",
			Help: "Filament extruded by tools with no spool assigned in millimeters",
		}, []string{"tool"}),
		Commits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "spoolmanager_commits_total",
			Help: "Total number of per-tool consumption commits",
		}, []string{"result"}),
		ConsumedGrams: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "spoolmanager_consumed_grams_total",
			Help: "Filament mass written to spools in grams",
		}, []string{"tool"}),
		VersionConflicts: factory.NewCounter(prometheus.CounterOpts{
			Name: "spoolmanager_version_conflicts_total",
			Help: "Spool saves rejected because the record changed concurrently",
		}),
		Pending: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "spoolmanager_pending_mm",
			Help: "Extruded length not yet committed to a spool in millimeters",
		}, []string{"tool"}),
		SpoolRemaining: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "spoolmanager_spool_remaining_grams",
			Help: "Remaining filament weight of spools in use",
		}, []string{"spool"}),
	}
}

// ObserveLine records one processed line and, when ok, its reported delta.
func (m *Metrics) ObserveLine(tool int, delta float64, ok bool) {
	if m == nil {
		return
	}
	m.LinesProcessed.Inc()
	if ok {
		m.Extruded.WithLabelValues(strconv.Itoa(tool)).Add(delta)
	}
}

// ObserveUnassigned records extrusion that no spool will be charged for.
func (m *Metrics) ObserveUnassigned(tool int, lengthMM float64) {
	if m == nil {
		return
	}
	m.Unassigned.WithLabelValues(strconv.Itoa(tool)).Add(lengthMM)
	m.Commits.WithLabelValues(ResultUnassigned).Inc()
}

// ObserveCommit records the outcome of committing one tool's consumption.
func (m *Metrics) ObserveCommit(tool int, result string, grams float64) {
	if m == nil {
		return
	}
	m.Commits.WithLabelValues(result).Inc()
	if result == ResultOK {
		m.ConsumedGrams.WithLabelValues(strconv.Itoa(tool)).Add(grams)
	}
}

// ObserveConflict records a version conflict that triggers a retry.
func (m *Metrics) ObserveConflict() {
	if m == nil {
		return
	}
	m.VersionConflicts.Inc()
}

// SetPending sets a tool's uncommitted length.
func (m *Metrics) SetPending(tool int, lengthMM float64) {
	if m == nil {
		return
	}
	m.Pending.WithLabelValues(strconv.Itoa(tool)).Set(lengthMM)
}

// SetRemaining sets a spool's remaining weight.
func (m *Metrics) SetRemaining(spoolID int64, grams float64) {
	if m == nil {
		return
	}
	m.SpoolRemaining.WithLabelValues(strconv.FormatInt(spoolID, 10)).Set(grams)
}

// Handler serves the metrics gathered by g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// WriteFile writes the metrics gathered by g to path in the text format
// read by node_exporter's textfile collector.
func WriteFile(path string, g prometheus.Gatherer) error {
	return prometheus.WriteToTextfile(path, g)
}
