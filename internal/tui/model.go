package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/valentindosimont/spoolmanager/internal/events"
	"github.com/valentindosimont/spoolmanager/internal/inventory"
	"github.com/valentindosimont/spoolmanager/internal/spool"
	"github.com/valentindosimont/spoolmanager/internal/tracker"
	"github.com/valentindosimont/spoolmanager/internal/tui/messages"
)

// Tracker is the part of the tracker the monitor drives.
type Tracker interface {
	Snapshot() tracker.Snapshot
	Commit(ctx context.Context) error
	StartSession(ctx context.Context) error
	SelectSpool(ctx context.Context, tool int, spoolID int64) error
	DeselectSpool(ctx context.Context, tool int) error
}

// Inventory looks spools up for display and selection.
type Inventory interface {
	Get(ctx context.Context, id int64) (*spool.Spool, error)
	List(ctx context.Context, q spool.Query) (*inventory.Page, error)
}

const maxActivity = 100

// Model is the main Bubbletea model
type Model struct {
	// Dependencies
	tracker   Tracker
	inventory Inventory
	events    <-chan events.Event
	source    string
	refresh   time.Duration
	lowWeight float64

	// UI state
	width       int
	height      int
	snapshot    tracker.Snapshot
	spools      map[int64]*spool.Spool
	selected    int // index into snapshot.Tools
	showHelp    bool
	activityLog []ActivityEntry

	// Spool picker
	pickerMode bool
	pickerTool int
	picker     list.Model

	// Reset confirmation
	confirmReset bool

	lastError error
}

// ActivityEntry represents a log entry
type ActivityEntry struct {
	Time    time.Time
	Tool    *int
	Message string
}

// New creates a new TUI model. source names the command feed shown in the
// header; evts may be nil.
func New(tr Tracker, inv Inventory, evts <-chan events.Event, source string, refresh time.Duration, lowWeight float64) *Model {
	if refresh <= 0 {
		refresh = 500 * time.Millisecond
	}
	return &Model{
		tracker:     tr,
		inventory:   inv,
		events:      evts,
		source:      source,
		refresh:     refresh,
		lowWeight:   lowWeight,
		spools:      make(map[int64]*spool.Spool),
		activityLog: make([]ActivityEntry, 0, maxActivity),
	}
}

// Init initializes the model
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		m.snapshotCmd(),
		m.tickCmd(),
		m.eventsCmd(),
	)
}

func (m *Model) tickCmd() tea.Cmd {
	return tea.Tick(m.refresh, func(t time.Time) tea.Msg {
		return messages.TickMsg{Time: t}
	})
}

func (m *Model) eventsCmd() tea.Cmd {
	if m.events == nil {
		return nil
	}
	return func() tea.Msg {
		event, ok := <-m.events
		if !ok {
			return nil
		}
		return messages.SpoolEventMsg{Event: event}
	}
}

func (m *Model) snapshotCmd() tea.Cmd {
	return func() tea.Msg {
		snap := m.tracker.Snapshot()
		spools := make(map[int64]*spool.Spool)
		for _, ts := range snap.Tools {
			if ts.SpoolID == 0 {
				continue
			}
			sp, err := m.inventory.Get(context.Background(), ts.SpoolID)
			if err != nil {
				return messages.SnapshotMsg{Snapshot: snap, Spools: spools, Err: err}
			}
			spools[sp.ID] = sp
		}
		return messages.SnapshotMsg{Snapshot: snap, Spools: spools}
	}
}

func (m *Model) loadSpoolsCmd(tool int) tea.Cmd {
	return func() tea.Msg {
		page, err := m.inventory.List(context.Background(), spool.Query{
			HideInactive: true,
			HideEmpty:    true,
			Sort:         spool.SortLastUse,
			Descending:   true,
		})
		if err != nil {
			return messages.SpoolsLoadedMsg{Tool: tool, Err: err}
		}
		return messages.SpoolsLoadedMsg{Tool: tool, Spools: page.Spools}
	}
}

func (m *Model) actionCmd(action string, fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		return messages.ActionDoneMsg{Action: action, Err: fn(context.Background())}
	}
}

// Update handles messages
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	// Always process system messages first
	switch msg := msg.(type) {
	case messages.TickMsg:
		cmds = append(cmds, m.snapshotCmd(), m.tickCmd())

	case messages.SnapshotMsg:
		m.snapshot = msg.Snapshot
		m.spools = msg.Spools
		if msg.Err != nil {
			m.lastError = msg.Err
		}
		if m.selected >= len(m.snapshot.Tools) {
			m.selected = max(0, len(m.snapshot.Tools)-1)
		}

	case messages.SpoolEventMsg:
		m.handleEvent(msg.Event)
		cmds = append(cmds, m.eventsCmd())

	case messages.SpoolsLoadedMsg:
		if msg.Err != nil {
			m.lastError = msg.Err
			m.pickerMode = false
			break
		}
		m.picker = newSpoolList(msg.Spools, msg.Tool, m.pickerWidth(), m.pickerHeight())
		m.pickerTool = msg.Tool

	case messages.ActionDoneMsg:
		if msg.Err != nil {
			m.lastError = fmt.Errorf("%s: %w", msg.Action, msg.Err)
			m.addActivity(nil, "%s failed: %v", msg.Action, msg.Err)
		} else {
			m.lastError = nil
		}
		cmds = append(cmds, m.snapshotCmd())

	case messages.ErrorMsg:
		m.lastError = msg.Err

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.pickerMode {
			m.picker.SetSize(m.pickerWidth(), m.pickerHeight())
		}
	}

	keyMsg, isKey := msg.(tea.KeyMsg)

	// Handle reset confirmation
	if m.confirmReset {
		if isKey {
			switch keyMsg.String() {
			case "y":
				m.confirmReset = false
				cmds = append(cmds, m.actionCmd("new session", m.tracker.StartSession))
			case "n", "esc":
				m.confirmReset = false
			}
		}
		return m, tea.Batch(cmds...)
	}

	// Handle spool picker
	if m.pickerMode {
		if isKey && m.picker.FilterState() != list.Filtering {
			switch keyMsg.String() {
			case "enter":
				if item, ok := m.picker.SelectedItem().(spoolItem); ok {
					tool, id := m.pickerTool, item.spool.ID
					cmds = append(cmds, m.actionCmd("select spool", func(ctx context.Context) error {
						return m.tracker.SelectSpool(ctx, tool, id)
					}))
				}
				m.pickerMode = false
				return m, tea.Batch(cmds...)
			case "esc":
				m.pickerMode = false
				return m, tea.Batch(cmds...)
			}
		}
		var cmd tea.Cmd
		m.picker, cmd = m.picker.Update(msg)
		cmds = append(cmds, cmd)
		return m, tea.Batch(cmds...)
	}

	if m.showHelp {
		if isKey {
			m.showHelp = false
		}
		return m, tea.Batch(cmds...)
	}

	if isKey {
		if cmd := m.handleKey(keyMsg); cmd != nil {
			cmds = append(cmds, cmd)
		}
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "q", "ctrl+c":
		return tea.Sequence(m.actionCmd("commit", m.tracker.Commit), tea.Quit)

	case "up", "k":
		if m.selected > 0 {
			m.selected--
		}

	case "down", "j":
		if m.selected < len(m.snapshot.Tools)-1 {
			m.selected++
		}

	case "c":
		return m.actionCmd("commit", m.tracker.Commit)

	case "r":
		m.confirmReset = true

	case "s", "enter":
		tool, ok := m.selectedTool()
		if !ok {
			return nil
		}
		m.pickerMode = true
		m.pickerTool = tool
		m.picker = newSpoolList(nil, tool, m.pickerWidth(), m.pickerHeight())
		return m.loadSpoolsCmd(tool)

	case "d":
		tool, ok := m.selectedTool()
		if !ok {
			return nil
		}
		return m.actionCmd("deselect spool", func(ctx context.Context) error {
			return m.tracker.DeselectSpool(ctx, tool)
		})

	case "?":
		m.showHelp = true
	}
	return nil
}

func (m *Model) selectedTool() (int, bool) {
	// Nothing extruded or loaded yet
	if len(m.snapshot.Tools) == 0 {
		return m.snapshot.ActiveTool, true
	}
	if m.selected < 0 || m.selected >= len(m.snapshot.Tools) {
		return 0, false
	}
	return m.snapshot.Tools[m.selected].Tool, true
}

func (m *Model) handleEvent(e events.Event) {
	name := e.DisplayName
	if name == "" {
		name = fmt.Sprintf("spool #%d", e.SpoolID)
	}

	switch e.Topic {
	case events.TopicSpoolSelected:
		m.addActivity(e.Tool, "loaded %s", name)
	case events.TopicSpoolDeselected:
		m.addActivity(e.Tool, "unloaded %s", name)
	case events.TopicSpoolWeightUpdated:
		m.addActivity(e.Tool, "%s: -%s (%s)", name, formatGrams(e.ConsumedGrams), formatLength(e.ConsumedLengthMM))
	case events.TopicSpoolLow:
		m.addActivity(e.Tool, "LOW: %s has %s left", name, formatGramsPtr(e.RemainingWeight))
	case events.TopicSpoolEmpty:
		m.addActivity(e.Tool, "EMPTY: %s", name)
	case events.TopicSpoolAdded:
		m.addActivity(nil, "added %s", name)
	case events.TopicSpoolDeleted:
		m.addActivity(nil, "deleted %s", name)
	case events.TopicSessionReset:
		m.addActivity(nil, "new session %s", shortID(e.SessionID))
	}
}

func (m *Model) addActivity(tool *int, format string, args ...any) {
	entry := ActivityEntry{
		Time:    time.Now(),
		Tool:    tool,
		Message: fmt.Sprintf(format, args...),
	}
	// Newest first
	m.activityLog = append([]ActivityEntry{entry}, m.activityLog...)
	if len(m.activityLog) > maxActivity {
		m.activityLog = m.activityLog[:maxActivity]
	}
}

func (m *Model) pickerWidth() int  { return max(30, m.width-8) }
func (m *Model) pickerHeight() int { return max(8, m.height-6) }
