package installer

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/rs/zerolog/log"
)

// Runner abstracts running one external command to completion. The pipeline
// only ever sees the combined output and a stage-scoped error, never the
// tool's internals, so tests can substitute fakes that simulate a failure at
// any point without touching real hardware.
type Runner interface {
	Run(name string, args ...string) (string, error)
}

// ExecRunner runs commands on the live system.
type ExecRunner struct{}

func (ExecRunner) Run(name string, args ...string) (string, error) {
	log.Debug().Str("cmd", name).Strs("args", args).Msg("running command")
	out, err := exec.Command(name, args...).CombinedOutput()
	if err != nil {
		return string(out), fmt.Errorf(
			"%s %s: %w\n%s", name, strings.Join(args, " "), err, strings.TrimSpace(string(out)),
		)
	}
	return string(out), nil
}

// Chroot wraps a Runner so every command executes inside the installed
// system's root via arch-chroot. This is the change-root boundary: commands
// run through it affect the target, not the live medium.
type Chroot struct {
	Run    Runner
	Target string
}

// Exec runs a command inside the chroot.
func (c Chroot) Exec(name string, args ...string) (string, error) {
	return c.Run.Run("arch-chroot", append([]string{c.Target, name}, args...)...)
}

// ExecAs runs a shell command inside the chroot as the given user, with a
// login environment so per-user tools (gsettings, git, rustup) see the right
// HOME.
func (c Chroot) ExecAs(user, command string) (string, error) {
	return c.Run.Run("arch-chroot", c.Target, "runuser", "-l", user, "-c", command)
}
