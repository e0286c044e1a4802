//go:build !windows

package installer

import (
	"os/exec"
	"syscall"
)

// setDetachedProcAttr configures the process to run in a new session, making it
// independent of the updater which exits right after.
func setDetachedProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true,
	}
}
