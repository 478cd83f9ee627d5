package tui

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/valentindosimont/spoolmanager/internal/events"
	"github.com/valentindosimont/spoolmanager/internal/inventory"
	"github.com/valentindosimont/spoolmanager/internal/spool"
	"github.com/valentindosimont/spoolmanager/internal/tracker"
	"github.com/valentindosimont/spoolmanager/internal/tui/messages"
)

type fakeTracker struct {
	snap     tracker.Snapshot
	commits  int
	resets   int
	selected map[int]int64
}

func (f *fakeTracker) Snapshot() tracker.Snapshot { return f.snap }

func (f *fakeTracker) Commit(context.Context) error {
	f.commits++
	return nil
}

func (f *fakeTracker) StartSession(context.Context) error {
	f.resets++
	return nil
}

func (f *fakeTracker) SelectSpool(_ context.Context, tool int, id int64) error {
	if f.selected == nil {
		f.selected = make(map[int]int64)
	}
	f.selected[tool] = id
	return nil
}

func (f *fakeTracker) DeselectSpool(_ context.Context, tool int) error {
	delete(f.selected, tool)
	return nil
}

type fakeInventory struct {
	spools map[int64]*spool.Spool
}

func (f *fakeInventory) Get(_ context.Context, id int64) (*spool.Spool, error) {
	sp, ok := f.spools[id]
	if !ok {
		return nil, spool.ErrNotFound
	}
	return sp, nil
}

func (f *fakeInventory) List(context.Context, spool.Query) (*inventory.Page, error) {
	page := &inventory.Page{}
	for _, sp := range f.spools {
		page.Spools = append(page.Spools, sp)
	}
	page.Total = len(page.Spools)
	return page, nil
}

func newTestModel() (*Model, *fakeTracker) {
	tr := &fakeTracker{snap: tracker.Snapshot{
		SessionID: "0123456789abcdef",
		UnitScale: 1,
		Tools: []tracker.ToolStatus{
			{Tool: 0, SpoolID: 1, Extruded: 1500, Pending: 12.5},
			{Tool: 1},
		},
	}}
	inv := &fakeInventory{spools: map[int64]*spool.Spool{
		1: {ID: 1, DisplayName: "Galaxy Black", TotalWeight: spool.Ptr(1000.0), UsedWeight: spool.Ptr(960.0), RemainingWeight: spool.Ptr(40.0)},
	}}
	m := New(tr, inv, nil, "commands.log", time.Second, 50)
	m.Update(tea.WindowSizeMsg{Width: 120, Height: 30})
	return m, tr
}

// run executes cmd and feeds the resulting messages back into the model.
func run(t *testing.T, m *Model, cmd tea.Cmd) {
	t.Helper()
	if cmd == nil {
		return
	}
	msg := cmd()
	switch msg := msg.(type) {
	case nil, messages.TickMsg, tea.QuitMsg:
	case tea.BatchMsg:
		for _, c := range msg {
			run(t, m, c)
		}
	default:
		_, next := m.Update(msg)
		run(t, m, next)
	}
}

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestViewShowsToolsAndSpools(t *testing.T) {
	m, _ := newTestModel()
	run(t, m, m.snapshotCmd())

	view := m.View()
	for _, want := range []string{"SPOOLMANAGER", "01234567", "T0", "T1", "Galaxy Black", "(no spool)", "1.50m", "40.0g"} {
		if !strings.Contains(view, want) {
			t.Errorf("View() missing %q", want)
		}
	}
}

func TestSelectionMovesWithinTools(t *testing.T) {
	m, _ := newTestModel()
	run(t, m, m.snapshotCmd())

	m.Update(key("j"))
	m.Update(key("j"))
	if m.selected != 1 {
		t.Errorf("selected = %d, want 1", m.selected)
	}
	m.Update(key("k"))
	if m.selected != 0 {
		t.Errorf("selected = %d, want 0", m.selected)
	}
}

func TestResetNeedsConfirmation(t *testing.T) {
	m, tr := newTestModel()
	run(t, m, m.snapshotCmd())

	m.Update(key("r"))
	if !m.confirmReset {
		t.Fatal("r should ask for confirmation")
	}
	_, cmd := m.Update(key("n"))
	run(t, m, cmd)
	if tr.resets != 0 {
		t.Errorf("resets = %d after declining, want 0", tr.resets)
	}

	m.Update(key("r"))
	_, cmd = m.Update(key("y"))
	run(t, m, cmd)
	if tr.resets != 1 {
		t.Errorf("resets = %d after confirming, want 1", tr.resets)
	}
}

func TestCommitKey(t *testing.T) {
	m, tr := newTestModel()
	run(t, m, m.snapshotCmd())

	_, cmd := m.Update(key("c"))
	run(t, m, cmd)
	if tr.commits != 1 {
		t.Errorf("commits = %d, want 1", tr.commits)
	}
}

func TestPickerSelectsSpool(t *testing.T) {
	m, tr := newTestModel()
	run(t, m, m.snapshotCmd())
	m.Update(key("j")) // T1

	_, cmd := m.Update(key("s"))
	if !m.pickerMode {
		t.Fatal("s should open the picker")
	}
	run(t, m, cmd)

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	run(t, m, cmd)
	if m.pickerMode {
		t.Error("enter should close the picker")
	}
	if got := tr.selected[1]; got != 1 {
		t.Errorf("selected[1] = %d, want spool 1", got)
	}
}

func TestEventsAreLogged(t *testing.T) {
	m, _ := newTestModel()
	tool := 0
	remaining := 40.0

	m.Update(messages.SpoolEventMsg{Event: events.Event{
		Topic:            events.TopicSpoolWeightUpdated,
		Tool:             &tool,
		SpoolID:          1,
		DisplayName:      "Galaxy Black",
		ConsumedGrams:    3.2,
		ConsumedLengthMM: 1080,
	}})
	m.Update(messages.SpoolEventMsg{Event: events.Event{
		Topic:           events.TopicSpoolLow,
		Tool:            &tool,
		SpoolID:         1,
		DisplayName:     "Galaxy Black",
		RemainingWeight: &remaining,
	}})

	if len(m.activityLog) != 2 {
		t.Fatalf("len(activityLog) = %d, want 2", len(m.activityLog))
	}
	if !strings.HasPrefix(m.activityLog[0].Message, "LOW: Galaxy Black") {
		t.Errorf("newest entry = %q, want the low warning", m.activityLog[0].Message)
	}
	if m.activityLog[1].Message != "Galaxy Black: -3.2g (1.08m)" {
		t.Errorf("entry = %q", m.activityLog[1].Message)
	}
}

func TestFormatHelpers(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{formatLength(999.94), "999.9mm"},
		{formatLength(1500), "1.50m"},
		{formatGrams(12.34), "12.3g"},
		{formatGrams(1234), "1.23kg"},
		{formatGramsPtr(nil), "?"},
		{shortID("0123456789"), "01234567"},
		{shortID(""), "-"},
		{truncate("abcdef", 4), "abc…"},
		{truncate("abc", 4), "abc"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}
