package installer

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

// ScheduleSelfDelete starts a hidden cmd.exe that removes path once delay elapsed. It
// returns as soon as the shell is running.
func ScheduleSelfDelete(path string, delay time.Duration) error {
	abs, err := checkDeletePath(path)
	if err != nil {
		return err
	}

	comspec := os.Getenv("ComSpec")
	if comspec == "" {
		comspec = filepath.Join(os.Getenv("SystemRoot"), "System32", "cmd.exe")
	}

	// ping waits about one second per echo request
	cmdLine := fmt.Sprintf(`"%s" /C ping 127.0.0.1 -n %d > nul & rmdir /s /q "%s"`, comspec, delaySeconds(delay)+1, abs)
	cmd := exec.Command(comspec)
	setHiddenProcAttr(cmd, cmdLine)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("schedule deletion of %s: %w", abs, err)
	}
	return cmd.Process.Release()
}
