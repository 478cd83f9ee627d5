// Package tools tracks which spool is loaded in each printer tool.
package tools

import (
	"sort"
	"sync"
)

// Assignments maps tool indices to the spool loaded in them. A tool holds at
// most one spool; a spool may be assigned to several tools.
type Assignments struct {
	mu    sync.RWMutex
	tools map[int]int64 // tool index -> spool ID
}

// NewAssignments creates an empty assignment table.
func NewAssignments() *Assignments {
	return &Assignments{tools: make(map[int]int64)}
}

// Assign loads a spool into a tool, replacing the previous one. It returns
// the replaced spool ID, or 0.
func (a *Assignments) Assign(tool int, spoolID int64) (previous int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	previous = a.tools[tool]
	a.tools[tool] = spoolID
	return previous
}

// Release empties a tool and returns the spool it held, or 0.
func (a *Assignments) Release(tool int) int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := a.tools[tool]
	delete(a.tools, tool)
	return id
}

// ReleaseSpool removes a spool from every tool and returns those tools.
func (a *Assignments) ReleaseSpool(spoolID int64) []int {
	a.mu.Lock()
	defer a.mu.Unlock()

	var released []int
	for tool, id := range a.tools {
		if id == spoolID {
			delete(a.tools, tool)
			released = append(released, tool)
		}
	}
	sort.Ints(released)
	return released
}

// Get returns the spool in a tool.
func (a *Assignments) Get(tool int) (int64, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	id, ok := a.tools[tool]
	return id, ok
}

// ToolsForSpool returns the tools holding a spool, in ascending order.
func (a *Assignments) ToolsForSpool(spoolID int64) []int {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var tools []int
	for tool, id := range a.tools {
		if id == spoolID {
			tools = append(tools, tool)
		}
	}
	sort.Ints(tools)
	return tools
}

// All returns a copy of every assignment.
func (a *Assignments) All() map[int]int64 {
	a.mu.RLock()
	defer a.mu.RUnlock()

	result := make(map[int]int64, len(a.tools))
	for k, v := range a.tools {
		result[k] = v
	}
	return result
}

// Load replaces all assignments.
func (a *Assignments) Load(assignments map[int]int64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.tools = make(map[int]int64, len(assignments))
	for k, v := range assignments {
		if v != 0 {
			a.tools[k] = v
		}
	}
}
