package messages

import (
	"time"

	"github.com/valentindosimont/spoolmanager/internal/events"
	"github.com/valentindosimont/spoolmanager/internal/spool"
	"github.com/valentindosimont/spoolmanager/internal/tracker"
)

// TickMsg is sent on every refresh tick
type TickMsg struct {
	Time time.Time
}

// SnapshotMsg carries the tracker state and the spools loaded in its tools
type SnapshotMsg struct {
	Snapshot tracker.Snapshot
	Spools   map[int64]*spool.Spool
	Err      error
}

// SpoolEventMsg wraps bus events for the TUI
type SpoolEventMsg struct {
	Event events.Event
}

// SpoolsLoadedMsg contains the spools offered by the picker
type SpoolsLoadedMsg struct {
	Tool   int
	Spools []*spool.Spool
	Err    error
}

// ActionDoneMsg reports the outcome of a user action
type ActionDoneMsg struct {
	Action string
	Err    error
}

// ErrorMsg contains an error message
type ErrorMsg struct {
	Err error
}
