package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// Colors
var (
	colorPrimary   = lipgloss.Color("#00BFFF")
	colorSecondary = lipgloss.Color("#FFD700")
	colorUrgent    = lipgloss.Color("#FF4444")
	colorSuccess   = lipgloss.Color("#44FF44")
	colorMuted     = lipgloss.Color("#666666")
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorSecondary)

	statStyle = lipgloss.NewStyle().
			Foreground(colorPrimary)

	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorSuccess)

	urgentStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorUrgent)

	mutedStyle = lipgloss.NewStyle().
			Foreground(colorMuted)

	helpStyle = lipgloss.NewStyle().
			Foreground(colorMuted)

	sectionHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(colorPrimary)
)

// View renders the UI
func (m *Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	if m.confirmReset {
		return "\n  Start a new print session? Pending consumption is committed first.\n\n  [y] Yes  [n] No\n"
	}

	if m.pickerMode {
		return lipgloss.NewStyle().Padding(1, 2).Render(m.picker.View())
	}

	if m.showHelp {
		return m.viewHelp()
	}

	innerWidth := m.width - 2 // account for outer border

	const (
		headerHeight   = 1
		helpBarHeight  = 1
		borderOverhead = 3 // horizontal dividers
	)
	toolsHeight := max(len(m.snapshot.Tools), 1) + 2
	activityHeight := m.height - 2 - headerHeight - helpBarHeight - borderOverhead - toolsHeight
	if activityHeight < 3 {
		activityHeight = 3
	}

	divider := lipgloss.NewStyle().Foreground(colorPrimary).Render(strings.Repeat("─", innerWidth))

	content := lipgloss.JoinVertical(lipgloss.Left,
		m.viewHeader(innerWidth),
		divider,
		m.viewTools(innerWidth),
		divider,
		m.viewActivity(innerWidth, activityHeight),
		divider,
		m.viewHelpBar(innerWidth),
	)

	frame := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorPrimary).
		Width(innerWidth).
		Height(m.height - 2)

	return frame.Render(content)
}

func (m *Model) viewHeader(width int) string {
	title := titleStyle.Render("SPOOLMANAGER")

	var total float64
	for _, ts := range m.snapshot.Tools {
		total += ts.Extruded
	}

	statParts := []string{
		statStyle.Render("SESSION: " + shortID(m.snapshot.SessionID)),
		statStyle.Render(fmt.Sprintf("T%d %s", m.snapshot.ActiveTool, strings.ToUpper(m.snapshot.Mode.String()))),
		statStyle.Render(fmt.Sprintf("LINES: %d", m.snapshot.Lines)),
		statStyle.Render("EXTRUDED: " + formatLength(total)),
	}
	if m.snapshot.UnitScale != 1 && m.snapshot.UnitScale != 0 {
		statParts = append(statParts, urgentStyle.Render("INCH"))
	}
	stats := strings.Join(statParts, "  │  ")

	left := " " + title
	if m.source != "" {
		left += mutedStyle.Render("  " + truncate(m.source, max(10, width/3)))
	}

	padding := width - lipgloss.Width(left) - lipgloss.Width(stats) - 1
	if padding < 1 {
		padding = 1
	}
	return left + strings.Repeat(" ", padding) + stats + " "
}

func (m *Model) viewTools(width int) string {
	var lines []string
	lines = append(lines, sectionHeaderStyle.Render(" TOOLS"))

	header := fmt.Sprintf("   %-4s %-24s %10s %9s %10s  %s", "TOOL", "SPOOL", "EXTRUDED", "PENDING", "REMAINING", "")
	lines = append(lines, mutedStyle.Render(ansi.Truncate(header, width, "")))

	if len(m.snapshot.Tools) == 0 {
		lines = append(lines, mutedStyle.Render(fmt.Sprintf("   No extrusion yet. Press s to load a spool into T%d.", m.snapshot.ActiveTool)))
		return strings.Join(lines, "\n")
	}

	barWidth := width - lipgloss.Width(header) - 2
	if barWidth > 30 {
		barWidth = 30
	}

	for i, ts := range m.snapshot.Tools {
		marker := "  "
		if ts.Tool == m.snapshot.ActiveTool {
			marker = "▶ "
		}

		name := mutedStyle.Render(fmt.Sprintf("%-24s", "(no spool)"))
		remaining := fmt.Sprintf("%10s", "-")
		bar := ""
		style := lipgloss.NewStyle()

		if sp := m.spools[ts.SpoolID]; sp != nil {
			name = fmt.Sprintf("%-24s", truncate(sp.DisplayName, 24))
			sum := sp.Summarize()
			remaining = fmt.Sprintf("%10s", formatGramsPtr(sum.RemainingWeight))
			if sum.RemainingPercentage != nil && barWidth > 4 {
				bar = progressBar(*sum.RemainingPercentage, barWidth)
			}
			if r := sum.RemainingWeight; r != nil && *r <= m.lowWeight {
				style = urgentStyle
			}
		}

		line := fmt.Sprintf(" %s%-4s %s %10s %9s %s  %s",
			marker,
			fmt.Sprintf("T%d", ts.Tool),
			name,
			formatLength(ts.Extruded),
			formatLength(ts.Pending),
			style.Render(remaining),
			bar,
		)
		line = ansi.Truncate(line, width, "…")
		if i == m.selected {
			line = selectedStyle.Render(line)
		}
		lines = append(lines, line)
	}

	return strings.Join(lines, "\n")
}

func (m *Model) viewActivity(width, height int) string {
	var lines []string
	lines = append(lines, sectionHeaderStyle.Render(" ACTIVITY"))

	if m.lastError != nil {
		lines = append(lines, urgentStyle.Render(" ! "+ansi.Truncate(m.lastError.Error(), width-4, "…")))
	}

	if len(m.activityLog) == 0 {
		lines = append(lines, mutedStyle.Render("  Waiting for extrusion..."))
	}

	for _, entry := range m.activityLog {
		if len(lines) >= height {
			break
		}
		toolStr := "  "
		if entry.Tool != nil {
			toolStr = fmt.Sprintf("T%d", *entry.Tool)
		}
		line := fmt.Sprintf(" %s %s %s", mutedStyle.Render(entry.Time.Format("15:04:05")), statStyle.Render(toolStr), entry.Message)
		if ansi.StringWidth(line) > width {
			line = ansi.Truncate(line, width, "…")
		}
		lines = append(lines, line)
	}

	for len(lines) < height {
		lines = append(lines, "")
	}
	return strings.Join(lines[:height], "\n")
}

func (m *Model) viewHelpBar(width int) string {
	help := "[↑↓/jk] tool  [s] load spool  [d] unload  [c] commit  [r] new session  [?] help  [q] quit"
	padding := (width - ansi.StringWidth(help)) / 2
	if padding < 1 {
		padding = 1
	}
	return helpStyle.Render(strings.Repeat(" ", padding) + help)
}

func (m *Model) viewHelp() string {
	help := `
              SPOOLMANAGER HELP
──────────────────────────────────────────
TOOLS
  ↑/k, ↓/j    Select tool
  s, Enter    Load a spool into the selected tool
  d           Unload the selected tool

ACCOUNTING
  c           Commit pending filament to the spools now
  r           Start a new print session (resets the odometer)

  q           Commit and quit
  ?           Toggle this help

Press any key to close
`
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorPrimary).
		Padding(1, 2).
		Render(help)
}

// Helper functions

func progressBar(pct float64, width int) string {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	filled := int(pct / 100 * float64(width))
	color := colorSuccess
	switch {
	case pct < 10:
		color = colorUrgent
	case pct < 25:
		color = colorSecondary
	}
	return lipgloss.NewStyle().Foreground(color).Render(strings.Repeat("█", filled)) +
		mutedStyle.Render(strings.Repeat("░", width-filled)) +
		fmt.Sprintf(" %3.0f%%", pct)
}

func formatLength(mm float64) string {
	if mm < 1000 {
		return fmt.Sprintf("%.1fmm", mm)
	}
	return fmt.Sprintf("%.2fm", mm/1000)
}

func formatGrams(g float64) string {
	if g >= 1000 || g <= -1000 {
		return fmt.Sprintf("%.2fkg", g/1000)
	}
	return fmt.Sprintf("%.1fg", g)
}

func formatGramsPtr(g *float64) string {
	if g == nil {
		return "?"
	}
	return formatGrams(*g)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	if id == "" {
		return "-"
	}
	return id
}

func truncate(s string, maxLen int) string {
	if ansi.StringWidth(s) <= maxLen {
		return s
	}
	if maxLen <= 1 {
		return "…"
	}
	return ansi.Truncate(s, maxLen, "…")
}
