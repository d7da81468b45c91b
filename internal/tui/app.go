package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jhenriksen/sandbox/internal/sandbox"
)

// Run starts the dashboard loop. It cycles between the Bubble Tea view and
// interactive attaches (which need the real terminal) until the user quits.
func Run(ctrl *sandbox.Controller) error {
	for {
		m := newModel(ctrl)
		p := tea.NewProgram(m, tea.WithAltScreen())
		result, err := p.Run()
		if err != nil {
			return fmt.Errorf("dashboard error: %w", err)
		}

		final := result.(model)

		if final.quitting {
			return nil
		}

		if final.connectTo != "" {
			fmt.Printf("Attaching to %s... (exit the shell to return)\n", final.connectTo)
			if _, err := ctrl.Run(final.connectTo, nil); err != nil {
				fmt.Printf("attach failed: %v\n", err)
			}
			// Full terminal reset so Bubble Tea starts clean.
			fmt.Print("\033c")
		}
	}
}
