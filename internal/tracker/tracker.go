// Package tracker charges filament reported by the odometer to the spools
// loaded in each tool.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/valentindosimont/spoolmanager/internal/events"
	"github.com/valentindosimont/spoolmanager/internal/metrics"
	"github.com/valentindosimont/spoolmanager/internal/odometer"
	"github.com/valentindosimont/spoolmanager/internal/spool"
	"github.com/valentindosimont/spoolmanager/internal/tools"
)

// Config holds the accounting parameters.
type Config struct {
	DefaultDiameter float64 // mm, for spools without a diameter
	DefaultDensity  float64 // g/cm³, for spools without a density
	LowWeightGrams  float64
	AutoCommitMM    float64 // 0 disables automatic commits
	CommitRetries   int
}

// AssignmentStore persists tool assignments.
type AssignmentStore interface {
	SaveToolAssignment(ctx context.Context, tool int, spoolID int64) error
	DeleteToolAssignment(ctx context.Context, tool int) error
}

// Deps are the collaborators of a Tracker. Persist, Bus and Metrics may be
// nil.
type Deps struct {
	Repo        spool.Repository
	Assignments *tools.Assignments
	Persist     AssignmentStore
	Bus         events.Publisher
	Metrics     *metrics.Metrics
	Logger      zerolog.Logger
}

// ToolStatus describes one tool in a Snapshot.
type ToolStatus struct {
	Tool     int
	SpoolID  int64 // 0 when no spool is loaded
	Extruded float64
	Pending  float64
	Position float64
}

// Snapshot is a consistent view of the tracker state.
type Snapshot struct {
	SessionID  string
	ActiveTool int
	Mode       odometer.Mode
	UnitScale  float64
	Lines      int
	Tools      []ToolStatus
}

// Tracker feeds command lines to an odometer and commits the extruded
// filament to spools. All methods are safe for concurrent use.
type Tracker struct {
	cfg         Config
	repo        spool.Repository
	assignments *tools.Assignments
	persist     AssignmentStore
	bus         events.Publisher
	metrics     *metrics.Metrics
	logger      zerolog.Logger
	now         func() time.Time

	mu        sync.Mutex
	odo       *odometer.Odometer
	pending   map[int]float64 // tool -> uncommitted mm
	sessionID string
	lines     int
}

// New creates a tracker with a fresh session.
func New(cfg Config, deps Deps) *Tracker {
	if cfg.DefaultDiameter <= 0 {
		cfg.DefaultDiameter = spool.DefaultDiameter
	}
	if cfg.DefaultDensity <= 0 {
		cfg.DefaultDensity = spool.DefaultDensity
	}
	if deps.Assignments == nil {
		deps.Assignments = tools.NewAssignments()
	}

	return &Tracker{
		cfg:         cfg,
		repo:        deps.Repo,
		assignments: deps.Assignments,
		persist:     deps.Persist,
		bus:         deps.Bus,
		metrics:     deps.Metrics,
		logger:      deps.Logger.With().Str("component", "tracker").Logger(),
		now:         time.Now,
		odo:         odometer.New(),
		pending:     make(map[int]float64),
		sessionID:   uuid.NewString(),
	}
}

// SessionID identifies the current print session.
func (t *Tracker) SessionID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sessionID
}

// Feed processes one command line. Forward extrusion is added to the active
// tool's pending length, which is committed once it reaches the auto-commit
// threshold. Commit failures are logged and the length stays pending.
func (t *Tracker) Feed(ctx context.Context, line string) (float64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.lines++
	delta, ok := t.odo.ProcessLine(line)
	tool := t.odo.ActiveTool()
	t.metrics.ObserveLine(tool, delta, ok)
	if !ok {
		return 0, false
	}

	t.pending[tool] += delta
	t.metrics.SetPending(tool, t.pending[tool])

	if t.cfg.AutoCommitMM > 0 && t.pending[tool] >= t.cfg.AutoCommitMM {
		if err := t.commitTool(ctx, tool); err != nil {
			t.logger.Error().Err(err).Int("tool", tool).Msg("auto commit failed")
		}
	}
	return delta, true
}

// Pending returns the uncommitted length of a tool.
func (t *Tracker) Pending(tool int) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending[tool]
}

// Commit writes the pending consumption of every tool to its spool. Only
// whole millimeters are committed; fractions stay pending.
func (t *Tracker) Commit(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.commitAll(ctx)
}

func (t *Tracker) commitAll(ctx context.Context) error {
	toolIdx := make([]int, 0, len(t.pending))
	for tool := range t.pending {
		toolIdx = append(toolIdx, tool)
	}
	sort.Ints(toolIdx)

	var errs []error
	for _, tool := range toolIdx {
		if err := t.commitTool(ctx, tool); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (t *Tracker) commitTool(ctx context.Context, tool int) error {
	length := t.pending[tool]
	whole := int(math.Floor(length))
	if whole <= 0 {
		return nil
	}

	spoolID, ok := t.assignments.Get(tool)
	if !ok {
		t.logger.Warn().Int("tool", tool).Float64("length_mm", length).
			Msg("no spool assigned to tool, dropping consumption")
		t.metrics.ObserveUnassigned(tool, length)
		t.setPending(tool, 0)
		return nil
	}

	for attempt := 0; attempt <= t.cfg.CommitRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		sp, err := t.repo.LoadSpool(ctx, spoolID)
		if errors.Is(err, spool.ErrNotFound) {
			t.logger.Warn().Int("tool", tool).Int64("spool_id", spoolID).
				Msg("assigned spool no longer exists, releasing tool")
			t.metrics.ObserveUnassigned(tool, length)
			t.setPending(tool, 0)
			t.releaseTool(ctx, tool)
			return nil
		}
		if err != nil {
			t.metrics.ObserveCommit(tool, metrics.ResultError, 0)
			return fmt.Errorf("commit tool %d: %w", tool, err)
		}

		before := spool.RemainingWeight(sp.UsedWeight, sp.TotalWeight)
		diameter, density := sp.Filament(t.cfg.DefaultDiameter, t.cfg.DefaultDensity)
		grams := spool.MassForLength(float64(whole), diameter, density)
		sp.ApplyConsumption(grams, whole, t.now())

		err = t.repo.SaveSpool(ctx, sp)
		if errors.Is(err, spool.ErrVersionConflict) {
			t.metrics.ObserveConflict()
			t.logger.Debug().Int64("spool_id", spoolID).Int("attempt", attempt+1).Msg("spool changed concurrently, retrying")
			continue
		}
		if err != nil {
			t.metrics.ObserveCommit(tool, metrics.ResultError, 0)
			return fmt.Errorf("commit tool %d: %w", tool, err)
		}

		t.setPending(tool, length-float64(whole))
		t.metrics.ObserveCommit(tool, metrics.ResultOK, grams)
		if sp.RemainingWeight != nil {
			t.metrics.SetRemaining(sp.ID, *sp.RemainingWeight)
		}
		t.logger.Info().Int("tool", tool).Int64("spool_id", sp.ID).
			Int("length_mm", whole).Float64("grams", grams).Msg("consumption committed")

		t.publishConsumption(tool, sp, grams, whole, before)
		return nil
	}

	t.metrics.ObserveCommit(tool, metrics.ResultConflict, 0)
	return fmt.Errorf("commit tool %d after %d attempts: %w", tool, t.cfg.CommitRetries+1, spool.ErrVersionConflict)
}

func (t *Tracker) publishConsumption(tool int, sp *spool.Spool, grams float64, lengthMM int, before *float64) {
	base := events.Event{
		SessionID:       t.sessionID,
		Tool:            &tool,
		SpoolID:         sp.ID,
		DisplayName:     sp.DisplayName,
		RemainingWeight: sp.RemainingWeight,
		TotalWeight:     sp.TotalWeight,
	}

	updated := base
	updated.Topic = events.TopicSpoolWeightUpdated
	updated.ConsumedGrams = grams
	updated.ConsumedLengthMM = float64(lengthMM)
	t.publish(updated)

	after := sp.RemainingWeight
	if after == nil {
		return
	}
	switch {
	case *after <= 0 && (before == nil || *before > 0):
		empty := base
		empty.Topic = events.TopicSpoolEmpty
		t.publish(empty)
	case *after > 0 && *after <= t.cfg.LowWeightGrams && (before == nil || *before > t.cfg.LowWeightGrams):
		low := base
		low.Topic = events.TopicSpoolLow
		t.publish(low)
	}
}

// StartSession commits pending consumption and resets the odometer for a new
// print. The odometer is reset even when the commit fails.
func (t *Tracker) StartSession(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	err := t.commitAll(ctx)
	t.odo.Reset()
	t.lines = 0
	t.sessionID = uuid.NewString()

	t.logger.Info().Str("session_id", t.sessionID).Msg("session started")
	t.publish(events.Event{Topic: events.TopicSessionReset, SessionID: t.sessionID})
	return err
}

// SelectSpool loads a spool into a tool. Consumption pending on the tool is
// first charged to the spool it held.
func (t *Tracker) SelectSpool(ctx context.Context, tool int, spoolID int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	sp, err := t.repo.LoadSpool(ctx, spoolID)
	if err != nil {
		return fmt.Errorf("select spool %d: %w", spoolID, err)
	}
	if err := t.commitTool(ctx, tool); err != nil {
		return err
	}

	if t.persist != nil {
		if err := t.persist.SaveToolAssignment(ctx, tool, spoolID); err != nil {
			return err
		}
	}
	previous := t.assignments.Assign(tool, spoolID)
	if previous != 0 && previous != spoolID {
		t.publish(events.Event{Topic: events.TopicSpoolDeselected, SessionID: t.sessionID, Tool: &tool, SpoolID: previous})
	}
	if sp.RemainingWeight != nil {
		t.metrics.SetRemaining(sp.ID, *sp.RemainingWeight)
	}

	t.logger.Info().Int("tool", tool).Int64("spool_id", spoolID).Str("spool", sp.DisplayName).Msg("spool selected")
	t.publish(events.Event{
		Topic:           events.TopicSpoolSelected,
		SessionID:       t.sessionID,
		Tool:            &tool,
		SpoolID:         spoolID,
		DisplayName:     sp.DisplayName,
		RemainingWeight: sp.RemainingWeight,
		TotalWeight:     sp.TotalWeight,
	})
	return nil
}

// DeselectSpool empties a tool after committing its pending consumption.
func (t *Tracker) DeselectSpool(ctx context.Context, tool int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.commitTool(ctx, tool); err != nil {
		return err
	}
	t.releaseTool(ctx, tool)
	return nil
}

func (t *Tracker) releaseTool(ctx context.Context, tool int) {
	if t.persist != nil {
		if err := t.persist.DeleteToolAssignment(ctx, tool); err != nil {
			t.logger.Error().Err(err).Int("tool", tool).Msg("failed to persist tool release")
		}
	}
	if id := t.assignments.Release(tool); id != 0 {
		t.logger.Info().Int("tool", tool).Int64("spool_id", id).Msg("spool deselected")
		t.publish(events.Event{Topic: events.TopicSpoolDeselected, SessionID: t.sessionID, Tool: &tool, SpoolID: id})
	}
}

// Snapshot returns the current odometer and accounting state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	seen := make(map[int]bool)
	var toolIdx []int
	add := func(tool int) {
		if !seen[tool] {
			seen[tool] = true
			toolIdx = append(toolIdx, tool)
		}
	}
	for _, tool := range t.odo.Tools() {
		add(tool)
	}
	for tool := range t.assignments.All() {
		add(tool)
	}
	for tool := range t.pending {
		add(tool)
	}
	sort.Ints(toolIdx)

	statuses := make([]ToolStatus, 0, len(toolIdx))
	for _, tool := range toolIdx {
		id, _ := t.assignments.Get(tool)
		statuses = append(statuses, ToolStatus{
			Tool:     tool,
			SpoolID:  id,
			Extruded: t.odo.Extruded(tool),
			Pending:  t.pending[tool],
			Position: t.odo.Position(tool),
		})
	}

	return Snapshot{
		SessionID:  t.sessionID,
		ActiveTool: t.odo.ActiveTool(),
		Mode:       t.odo.Mode(),
		UnitScale:  t.odo.UnitScale(),
		Lines:      t.lines,
		Tools:      statuses,
	}
}

func (t *Tracker) setPending(tool int, length float64) {
	t.pending[tool] = length
	t.metrics.SetPending(tool, length)
}

func (t *Tracker) publish(e events.Event) {
	if t.bus == nil {
		return
	}
	if err := t.bus.Publish(e); err != nil {
		t.logger.Warn().Err(err).Str("topic", e.Topic).Msg("failed to publish event")
	}
}
