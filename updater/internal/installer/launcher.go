package installer

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	log "github.com/sirupsen/logrus"
)

// LaunchInfo describes how to start a process
type LaunchInfo struct {
	Path string
	// Dir is the working directory, the directory of Path when empty
	Dir  string
	Args []string
	// Detached starts the process in its own session without inheriting the console
	Detached bool
}

// Launcher starts processes on behalf of the updater
type Launcher struct {
	log *log.Entry
}

func NewLauncher(logger *log.Entry) *Launcher {
	return &Launcher{log: logger}
}

// Launch starts the process described by info without waiting for it. The child is
// reaped in the background so it never lingers as a zombie while the updater runs.
func (l *Launcher) Launch(info LaunchInfo) (*os.Process, error) {
	if info.Path == "" {
		return nil, fmt.Errorf("no executable to launch")
	}

	cmd := exec.Command(info.Path, info.Args...)
	cmd.Dir = info.Dir
	if cmd.Dir == "" {
		cmd.Dir = filepath.Dir(info.Path)
	}

	if info.Detached {
		setDetachedProcAttr(cmd)
	} else {
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	}

	l.log.Infof("starting process: %s", cmd.String())
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", info.Path, err)
	}

	go func() {
		if err := cmd.Wait(); err != nil {
			l.log.Debugf("process %d exited: %v", cmd.Process.Pid, err)
		}
	}()

	return cmd.Process, nil
}
