package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jhenriksen/sandbox/internal/sandbox"
)

// statusTickMsg triggers a status refresh poll.
type statusTickMsg time.Time

// statusesMsg carries a refreshed status list.
type statusesMsg struct {
	statuses []sandbox.Status
	err      error
}

// deletedMsg is sent when a delete finishes.
type deletedMsg struct {
	name string
	err  error
}

// gcMsg is sent when a gc pass finishes.
type gcMsg struct {
	report sandbox.GCReport
	err    error
}

// tickCmd returns a command that sends a tick every 2 seconds.
func tickCmd() tea.Cmd {
	return tea.Tick(2*time.Second, func(t time.Time) tea.Msg {
		return statusTickMsg(t)
	})
}

// refreshCmd polls the controller for sandbox statuses off the UI loop.
func refreshCmd(ctrl *sandbox.Controller) tea.Cmd {
	return func() tea.Msg {
		statuses, err := ctrl.Statuses()
		return statusesMsg{statuses: statuses, err: err}
	}
}

func deleteCmd(ctrl *sandbox.Controller, name string) tea.Cmd {
	return func() tea.Msg {
		return deletedMsg{name: name, err: ctrl.Delete(name)}
	}
}

func gcCmd(ctrl *sandbox.Controller) tea.Cmd {
	return func() tea.Msg {
		report, err := ctrl.GC()
		return gcMsg{report: report, err: err}
	}
}
