package tui

import (
	"os"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/jhenriksen/sandbox/internal/sandbox"
)

// model is the Bubble Tea model for the sandbox dashboard.
type model struct {
	ctrl     *sandbox.Controller
	statuses []sandbox.Status
	cursor   int

	input      textinput.Model
	commanding bool // true while the / command bar is focused

	message  string
	isError  bool
	quitting bool
	// connectTo holds the sandbox name to attach to after the program
	// quits; the attach runs outside Bubble Tea with the real terminal.
	connectTo string

	// Double-press delete confirmation.
	confirmDelete string

	width  int
	height int
}

func newModel(ctrl *sandbox.Controller) model {
	ti := textinput.New()
	ti.Placeholder = "delete <name> | gc | quit"
	ti.CharLimit = 128
	ti.Width = 60
	ti.Blur()

	w, h, _ := term.GetSize(int(os.Stdout.Fd()))
	if w == 0 {
		w = 80
	}
	if h == 0 {
		h = 24
	}

	return model{
		ctrl:   ctrl,
		input:  ti,
		width:  w,
		height: h,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(refreshCmd(m.ctrl), tickCmd())
}
