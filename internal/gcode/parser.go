// Package gcode tokenizes single lines of printer command text.
package gcode

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Command is one parsed G-code line.
type Command struct {
	Name   string            // upper-cased command token, e.g. "G1", "T0"
	Params map[string]string // parameter letter -> raw value text
	Raw    string
}

var reParenComment = regexp.MustCompile(`\([^)]*\)`)

// Parse splits a command line into its command token and letter-prefixed
// parameters. Comments (";" to end of line, "( ... )" inline), line numbers
// and checksums are removed.
// Parse returns nil for blank and comment-only lines.
func Parse(line string) *Command {
	ln := line
	if idx := strings.IndexByte(ln, ';'); idx >= 0 {
		ln = ln[:idx]
	}
	// checksum suffix ("N12 G1 E3*85")
	if idx := strings.IndexByte(ln, '*'); idx >= 0 {
		ln = ln[:idx]
	}
	ln = strings.TrimSpace(reParenComment.ReplaceAllString(ln, " "))
	if ln == "" {
		return nil
	}

	fields := strings.Fields(ln)
	name := strings.ToUpper(fields[0])
	// Line numbers ("N123 G1 ...") precede the real command.
	if len(name) > 1 && name[0] == 'N' && isDigits(name[1:]) {
		if len(fields) == 1 {
			return nil
		}
		fields = fields[1:]
		name = strings.ToUpper(fields[0])
	}

	params := make(map[string]string, len(fields)-1)
	for _, f := range fields[1:] {
		k := strings.ToUpper(f[:1])
		params[k] = f[1:]
	}

	return &Command{Name: name, Params: params, Raw: line}
}

// Has reports whether the parameter letter is present, with or without a value.
func (c *Command) Has(letter string) bool {
	_, ok := c.Params[letter]
	return ok
}

// Float returns the numeric value of a parameter. ok is false when the
// parameter is absent, empty, or not a finite number.
func (c *Command) Float(letter string) (v float64, ok bool) {
	raw, present := c.Params[letter]
	if !present || raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Code splits a command token like "G1" or "T12" into its letter and
// integer number. ok is false when the token has no valid number.
func (c *Command) Code() (letter byte, number int, ok bool) {
	if len(c.Name) < 2 {
		return 0, 0, false
	}
	n, err := strconv.Atoi(c.Name[1:])
	if err != nil {
		return 0, 0, false
	}
	return c.Name[0], n, true
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}
