package shell

import (
	"fmt"
	"os"
	"strings"
)

// User captures the host identity that gets mirrored into the container via
// build args and --user.
type User struct {
	Name  string
	UID   int
	GID   int
	Shell string
}

// CurrentUser reads the host user's identity from the process and environment.
func CurrentUser() User {
	uid := os.Getuid()

	name := os.Getenv("USER")
	if name == "" {
		name = os.Getenv("LOGNAME")
	}
	if name == "" {
		name = fmt.Sprintf("user%d", uid)
	}

	sh := os.Getenv("SHELL")
	if sh == "" {
		sh = "/bin/bash"
	}

	return User{
		Name:  name,
		UID:   uid,
		GID:   os.Getgid(),
		Shell: sh,
	}
}

// UsesFish reports whether the user's login shell is fish.
func (u User) UsesFish() bool {
	return u.Shell == "fish" || strings.HasSuffix(u.Shell, "/fish")
}

// InteractiveCommand returns the command for an interactive container
// session: fish when the host shell is fish, a POSIX shell otherwise.
func (u User) InteractiveCommand() []string {
	if u.UsesFish() {
		return []string{"fish"}
	}
	return []string{"bash"}
}

// WrapCommand wraps an explicit command in a bash login shell (bash -lc) so
// profile-defined environment applies. The shell is always bash; neither the
// host shell nor the container user's configured login shell is consulted.
func (u User) WrapCommand(cmd []string) []string {
	return append([]string{"bash", "-lc"}, shellJoin(cmd))
}

func shellJoin(args []string) string {
	quoted := make([]string, len(args))
	for i, a := range args {
		if a == "" || strings.ContainsAny(a, " \t\n'\"\\$`!*?[](){}<>|&;~#") {
			quoted[i] = "'" + strings.ReplaceAll(a, "'", `'\''`) + "'"
		} else {
			quoted[i] = a
		}
	}
	return strings.Join(quoted, " ")
}
