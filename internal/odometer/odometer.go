// Package odometer estimates extruded filament from a stream of G-code
// command lines.
//
// An Odometer mirrors the extruder bookkeeping the printer firmware performs:
// one running E coordinate per tool, a global absolute/relative extrusion
// mode, the active tool and the unit scale. Each processed line may report a
// forward (positive) extrusion delta in millimeters. Retractions are tracked
// in the position but never reported, so the reported total never decreases.
//
// An Odometer is not safe for concurrent use. Feed it from one goroutine or
// guard it with a lock.
package odometer

import (
	"sort"

	"github.com/valentindosimont/spoolmanager/internal/gcode"
)

// Mode is the extrusion coordinate mode.
type Mode int

const (
	Absolute Mode = iota
	Relative
)

func (m Mode) String() string {
	if m == Relative {
		return "relative"
	}
	return "absolute"
}

const (
	scaleMillimeters = 1.0
	scaleInches      = 25.4
)

// Odometer tracks extruder positions per tool.
type Odometer struct {
	mode      Mode
	tool      int
	scale     float64
	positions map[int]float64
	extruded  map[int]float64
}

// New returns an Odometer in its initial state: absolute mode, tool 0,
// millimeters.
func New() *Odometer {
	o := &Odometer{}
	o.Reset()
	return o
}

// Reset drops all tool positions and totals and restores the defaults.
// Call it when a new print session starts.
func (o *Odometer) Reset() {
	o.mode = Absolute
	o.tool = 0
	o.scale = scaleMillimeters
	o.positions = map[int]float64{0: 0}
	o.extruded = make(map[int]float64)
}

// ProcessLine interprets one command line and returns the filament length in
// millimeters that it pushed forward on the active tool. ok is false when the
// line moved no filament forward: unknown commands, retractions, position
// resets and malformed parameters all report nothing.
func (o *Odometer) ProcessLine(line string) (delta float64, ok bool) {
	cmd := gcode.Parse(line)
	if cmd == nil {
		return 0, false
	}
	letter, num, valid := cmd.Code()
	if !valid {
		return 0, false
	}

	switch letter {
	case 'G':
		switch num {
		case 0, 1, 2, 3:
			return o.move(cmd)
		case 20:
			o.scale = scaleInches
		case 21:
			o.scale = scaleMillimeters
		case 90:
			o.mode = Absolute
		case 91:
			o.mode = Relative
		case 92:
			o.setPosition(cmd)
		}
	case 'M':
		switch num {
		case 82:
			o.mode = Absolute
		case 83:
			o.mode = Relative
		}
	case 'T':
		o.selectTool(num)
	}
	return 0, false
}

func (o *Odometer) move(cmd *gcode.Command) (float64, bool) {
	v, ok := cmd.Float("E")
	if !ok {
		return 0, false
	}
	v *= o.scale

	var delta float64
	if o.mode == Absolute {
		delta = v - o.positions[o.tool]
		o.positions[o.tool] = v
	} else {
		delta = v
		o.positions[o.tool] += v
	}

	if delta <= 0 {
		return 0, false
	}
	o.extruded[o.tool] += delta
	return delta, true
}

// setPosition handles G92. Only the E axis matters here; a bare G92 resets
// every axis, E included.
func (o *Odometer) setPosition(cmd *gcode.Command) {
	if len(cmd.Params) == 0 {
		o.positions[o.tool] = 0
		return
	}
	raw, present := cmd.Params["E"]
	if !present {
		return
	}
	if raw == "" {
		o.positions[o.tool] = 0
		return
	}
	v, ok := cmd.Float("E")
	if !ok {
		return
	}
	o.positions[o.tool] = v * o.scale
}

func (o *Odometer) selectTool(n int) {
	o.tool = n
	if _, seen := o.positions[n]; !seen {
		o.positions[n] = 0
	}
}

// ActiveTool returns the currently selected tool index.
func (o *Odometer) ActiveTool() int { return o.tool }

// Mode returns the current extrusion mode.
func (o *Odometer) Mode() Mode { return o.mode }

// UnitScale returns the multiplier applied to parsed coordinates.
func (o *Odometer) UnitScale() float64 { return o.scale }

// Position returns the tracked E coordinate of a tool in millimeters.
func (o *Odometer) Position(tool int) float64 { return o.positions[tool] }

// Extruded returns the total length reported for a tool since the last Reset.
func (o *Odometer) Extruded(tool int) float64 { return o.extruded[tool] }

// TotalExtruded returns the length reported across all tools.
func (o *Odometer) TotalExtruded() float64 {
	var total float64
	for _, v := range o.extruded {
		total += v
	}
	return total
}

// Tools returns the sorted indices of every tool referenced since the last
// Reset. Tool 0 is always present.
func (o *Odometer) Tools() []int {
	tools := make([]int, 0, len(o.positions))
	for t := range o.positions {
		tools = append(tools, t)
	}
	sort.Ints(tools)
	return tools
}
