package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = msg.Width - 6
		return m, nil

	case statusTickMsg:
		return m, tea.Batch(refreshCmd(m.ctrl), tickCmd())

	case statusesMsg:
		if msg.err != nil {
			m.message = fmt.Sprintf("Error: %v", msg.err)
			m.isError = true
			return m, nil
		}
		m.statuses = msg.statuses
		if m.cursor >= len(m.statuses) && m.cursor > 0 {
			m.cursor = len(m.statuses) - 1
		}
		return m, nil

	case deletedMsg:
		if msg.err != nil {
			m.message = fmt.Sprintf("Error deleting %s: %v", msg.name, msg.err)
			m.isError = true
		} else {
			m.message = fmt.Sprintf("Deleted sandbox: %s", msg.name)
			m.isError = false
		}
		return m, refreshCmd(m.ctrl)

	case gcMsg:
		if msg.err != nil {
			m.message = fmt.Sprintf("Error: %v", msg.err)
			m.isError = true
		} else {
			m.message = fmt.Sprintf("gc: %d orphaned volumes removed, %d kept", len(msg.report.Removed), msg.report.Kept)
			m.isError = false
		}
		return m, refreshCmd(m.ctrl)

	case tea.KeyMsg:
		if m.commanding {
			return m.handleCommandMode(msg)
		}
		return m.handleNormalMode(msg)
	}

	if m.commanding {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

// handleNormalMode handles keys while navigating the sandbox list.
func (m model) handleNormalMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// A pending delete confirmation: second d confirms, anything else
	// cancels.
	if m.confirmDelete != "" {
		name := m.confirmDelete
		m.confirmDelete = ""
		if msg.String() == "d" {
			m.message = fmt.Sprintf("Deleting %s...", name)
			m.isError = false
			return m, deleteCmd(m.ctrl, name)
		}
		m.message = "Delete cancelled"
		m.isError = false
		return m, nil
	}

	switch msg.String() {
	case "ctrl+c", "q":
		m.quitting = true
		return m, tea.Quit

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}

	case "down", "j":
		if m.cursor < len(m.statuses)-1 {
			m.cursor++
		}

	case "enter":
		if m.cursor < len(m.statuses) {
			m.connectTo = m.statuses[m.cursor].Info.Name
			return m, tea.Quit
		}

	case "d":
		if m.cursor < len(m.statuses) {
			m.confirmDelete = m.statuses[m.cursor].Info.Name
			m.message = fmt.Sprintf("Press d again to delete %s", m.confirmDelete)
			m.isError = false
		}

	case "g":
		m.message = "Running gc..."
		m.isError = false
		return m, gcCmd(m.ctrl)

	case "/":
		m.commanding = true
		m.input.Focus()
		return m, nil
	}

	return m, nil
}

// handleCommandMode handles keys while the command bar is focused.
func (m model) handleCommandMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.commanding = false
		m.input.Blur()
		m.input.SetValue("")
		return m, nil

	case "enter":
		cmd := ParseCommand(m.input.Value())
		m.commanding = false
		m.input.Blur()
		m.input.SetValue("")
		return m.runCommand(cmd)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m model) runCommand(cmd *Command) (tea.Model, tea.Cmd) {
	if cmd == nil {
		return m, nil
	}
	switch cmd.Name {
	case "quit", "q":
		m.quitting = true
		return m, tea.Quit

	case "gc":
		return m, gcCmd(m.ctrl)

	case "delete":
		if len(cmd.Args) != 1 {
			m.message = "Usage: delete <name>"
			m.isError = true
			return m, nil
		}
		return m, deleteCmd(m.ctrl, cmd.Args[0])

	case "connect":
		if len(cmd.Args) != 1 {
			m.message = "Usage: connect <name>"
			m.isError = true
			return m, nil
		}
		m.connectTo = cmd.Args[0]
		return m, tea.Quit
	}

	m.message = fmt.Sprintf("Unknown command: %s", cmd.Name)
	m.isError = true
	return m, nil
}
