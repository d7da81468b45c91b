// Package agent launches Claude Code inside a running sandbox container.
package agent

import (
	"fmt"

	"github.com/jhenriksen/sandbox/internal/docker"
)

// Model selects the Claude model for an agent session.
type Model string

const (
	Opus   Model = "opus"
	Sonnet Model = "sonnet"
	Haiku  Model = "haiku"
)

// APIModelID maps the short model name to the Anthropic API identifier.
func (m Model) APIModelID() (string, error) {
	switch m {
	case Opus:
		return "claude-opus-4-5-20251101", nil
	case Sonnet:
		return "claude-sonnet-4-5-20250929", nil
	case Haiku:
		return "claude-haiku-4-5-20251001", nil
	}
	return "", fmt.Errorf("unknown model %q (want opus, sonnet or haiku)", string(m))
}

// Run executes the claude CLI in the container with the user's terminal
// attached. An empty task starts an interactive session. Returns the
// session's exit code.
func Run(containerName string, model Model, env map[string]string, task string) (int, error) {
	id, err := model.APIModelID()
	if err != nil {
		return 1, err
	}

	cmd := []string{"claude", "--model", id}
	if task != "" {
		cmd = append(cmd, task)
	}

	code, err := docker.Exec(containerName, true, env, cmd)
	if err != nil {
		return 1, fmt.Errorf("starting claude in %s (is it installed in the image?): %w", containerName, err)
	}
	return code, nil
}
