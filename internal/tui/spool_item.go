package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/valentindosimont/spoolmanager/internal/spool"
)

type spoolItem struct {
	spool *spool.Spool
}

func (i spoolItem) Title() string { return i.spool.DisplayName }

func (i spoolItem) Description() string {
	var parts []string
	for _, s := range []string{i.spool.Vendor, i.spool.Material, i.spool.ColorName} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	if r := i.spool.RemainingWeight; r != nil {
		parts = append(parts, formatGrams(*r)+" left")
	}
	return strings.Join(parts, " · ")
}

func (i spoolItem) FilterValue() string {
	return i.spool.DisplayName + " " + i.spool.Vendor + " " + i.spool.Material + " " + i.spool.Code
}

type spoolDelegate struct {
	styles spoolDelegateStyles
}

type spoolDelegateStyles struct {
	normal   lipgloss.Style
	selected lipgloss.Style
	dimmed   lipgloss.Style
	swatch   lipgloss.Style
}

func newSpoolDelegate() spoolDelegate {
	return spoolDelegate{
		styles: spoolDelegateStyles{
			normal:   lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")),
			selected: lipgloss.NewStyle().Foreground(colorPrimary).Bold(true),
			dimmed:   lipgloss.NewStyle().Foreground(colorMuted),
			swatch:   lipgloss.NewStyle(),
		},
	}
}

func (d spoolDelegate) Height() int                             { return 2 }
func (d spoolDelegate) Spacing() int                            { return 0 }
func (d spoolDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }

func (d spoolDelegate) Render(w io.Writer, m list.Model, index int, listItem list.Item) {
	i, ok := listItem.(spoolItem)
	if !ok {
		return
	}

	width := m.Width() - 4
	swatch := " "
	if i.spool.Color != "" {
		swatch = d.styles.swatch.Foreground(lipgloss.Color(i.spool.Color)).Render("●")
	}

	var title, desc string
	if index == m.Index() {
		title = d.styles.selected.Render("▸ ") + swatch + d.styles.selected.Render(" "+i.Title())
		desc = d.styles.selected.Render("    " + truncate(i.Description(), width))
	} else {
		title = "  " + swatch + d.styles.normal.Render(" "+i.Title())
		desc = d.styles.dimmed.Render("    " + truncate(i.Description(), width))
	}

	_, _ = fmt.Fprintf(w, "%s\n%s", title, desc)
}

func newSpoolList(spools []*spool.Spool, tool, width, height int) list.Model {
	items := make([]list.Item, 0, len(spools))
	for _, sp := range spools {
		items = append(items, spoolItem{spool: sp})
	}

	l := list.New(items, newSpoolDelegate(), width, height)
	l.Title = fmt.Sprintf("Load spool into T%d", tool)
	l.Styles.Title = titleStyle
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(true)
	return l
}
