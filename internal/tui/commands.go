package tui

import "strings"

// Command is a parsed command-bar input.
type Command struct {
	Name string
	Args []string
}

// ParseCommand parses command-bar input into a Command. A leading slash is
// accepted but not required. Returns nil for empty input.
func ParseCommand(input string) *Command {
	input = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(input), "/"))
	if input == "" {
		return nil
	}
	parts := strings.Fields(input)
	return &Command{
		Name: parts[0],
		Args: parts[1:],
	}
}
