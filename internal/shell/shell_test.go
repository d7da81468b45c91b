package shell

import (
	"strings"
	"testing"
)

func TestUsesFish(t *testing.T) {
	tests := []struct {
		shell string
		want  bool
	}{
		{"/usr/bin/fish", true},
		{"/opt/homebrew/bin/fish", true},
		{"fish", true},
		{"/bin/bash", false},
		{"/bin/zsh", false},
		{"/usr/bin/starfish", false},
	}

	for _, tt := range tests {
		u := User{Shell: tt.shell}
		if got := u.UsesFish(); got != tt.want {
			t.Errorf("UsesFish(%q) = %v, want %v", tt.shell, got, tt.want)
		}
	}
}

func TestInteractiveCommand(t *testing.T) {
	fish := User{Shell: "/usr/bin/fish"}
	if got := fish.InteractiveCommand(); got[0] != "fish" {
		t.Errorf("fish user entry = %v, want fish", got)
	}

	bash := User{Shell: "/bin/zsh"}
	if got := bash.InteractiveCommand(); got[0] != "bash" {
		t.Errorf("non-fish user entry = %v, want bash", got)
	}
}

func TestWrapCommand(t *testing.T) {
	u := User{Shell: "/bin/bash"}
	got := u.WrapCommand([]string{"echo", "hello world"})
	if got[0] != "bash" || got[1] != "-lc" {
		t.Fatalf("WrapCommand = %v, want bash -lc prefix", got)
	}
	if !strings.Contains(got[2], "'hello world'") {
		t.Errorf("argument not quoted: %q", got[2])
	}
}

func TestCurrentUserFallbacks(t *testing.T) {
	t.Setenv("USER", "")
	t.Setenv("LOGNAME", "")
	t.Setenv("SHELL", "")
	u := CurrentUser()
	if u.Name == "" {
		t.Error("Name should fall back to uid-derived name")
	}
	if u.Shell != "/bin/bash" {
		t.Errorf("Shell = %q, want /bin/bash fallback", u.Shell)
	}
}
