package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jhenriksen/sandbox/internal/sandbox"
)

func (m model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	title := "sandbox — " + m.ctrl.ID.Name
	repoPath := pathStyle.Render(m.ctrl.ID.Root)
	gap := m.width - lipgloss.Width(title) - lipgloss.Width(repoPath) - 4
	if gap < 1 {
		gap = 1
	}
	b.WriteString(headerStyle.Width(m.width).Render(title + strings.Repeat(" ", gap) + repoPath))
	b.WriteString("\n")

	if len(m.statuses) == 0 {
		b.WriteString(emptyStyle.Render("No sandboxes for this repository. Run `sandbox run <name>` to create one."))
		b.WriteString("\n")
	}

	for i, st := range m.statuses {
		b.WriteString(m.renderRow(i == m.cursor, st))
		b.WriteString("\n")
	}

	b.WriteString(dividerStyle.Render(strings.Repeat("─", m.width)))
	b.WriteString("\n")

	if m.commanding {
		b.WriteString(hotkeysStyle.Render("[enter] execute  [esc] cancel"))
	} else {
		b.WriteString(hotkeysStyle.Render("[enter] attach  [d]elete  [g]c  [/] command  [q]uit"))
	}
	b.WriteString("\n")

	if m.message != "" {
		style := messageStyle
		if m.isError {
			style = errorStyle
		}
		b.WriteString(style.Render(m.message))
		b.WriteString("\n")
	}

	if m.commanding {
		b.WriteString("  > ")
		b.WriteString(m.input.View())
		b.WriteString("\n")
	}

	return b.String()
}

func (m model) renderRow(selected bool, st sandbox.Status) string {
	cursor := "  "
	name := nameStyle.Render(st.Info.Name)
	if selected {
		cursor = "▸ "
		name = selectedNameStyle.Render(st.Info.Name)
	}

	var status string
	switch {
	case st.ContainerRunning:
		status = statusRunning.Render("● running")
	case st.ContainerExists:
		status = statusStopped.Render("● stopped")
	default:
		status = statusOther.Render("○ materialized")
	}

	vols := detailStyle.Render(fmt.Sprintf("%d volumes", st.VolumeCount))
	watcher := ""
	if sandbox.WatcherRunning(st.Info.SandboxDir) {
		watcher = detailStyle.Render("  sync✓")
	}

	return fmt.Sprintf("%s%-20s %-24s %s%s", cursor, name, status, vols, watcher)
}
