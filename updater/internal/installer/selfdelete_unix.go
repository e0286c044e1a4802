//go:build !windows

package installer

import (
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ScheduleSelfDelete starts a detached shell that removes path once delay elapsed. It
// returns as soon as the shell is running.
func ScheduleSelfDelete(path string, delay time.Duration) error {
	abs, err := checkDeletePath(path)
	if err != nil {
		return err
	}

	script := fmt.Sprintf("sleep %d; rm -rf %s", delaySeconds(delay), shellQuote(abs))
	cmd := exec.Command("sh", "-c", script)
	setDetachedProcAttr(cmd)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("schedule deletion of %s: %w", abs, err)
	}
	go func() {
		_ = cmd.Wait()
	}()
	return nil
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
