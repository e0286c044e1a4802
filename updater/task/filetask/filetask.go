// Package filetask provides the file replacement and deletion task kinds.
package filetask

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"

	"github.com/netbirdio/netbird-updater/updater/plan"
	"github.com/netbirdio/netbird-updater/updater/task"
)

const (
	KindUpdate = "file-update"
	KindDelete = "file-delete"
)

// UpdatePayload describes a file replacement
type UpdatePayload struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Backup      string `json:"backup,omitempty"`
}

// DeletePayload describes a file removal
type DeletePayload struct {
	Path   string `json:"path"`
	Backup string `json:"backup,omitempty"`
}

// Register adds the file task kinds to r
func Register(r *task.Registry, logger *log.Entry) error {
	if err := r.Register(KindUpdate, func(payload json.RawMessage) (task.Task, error) {
		var p UpdatePayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, fmt.Errorf("invalid %s payload: %w", KindUpdate, err)
		}
		if p.Source == "" || p.Destination == "" {
			return nil, fmt.Errorf("%s requires source and destination", KindUpdate)
		}
		return &UpdateTask{payload: p, log: logger.WithField("task", KindUpdate)}, nil
	}); err != nil {
		return err
	}

	return r.Register(KindDelete, func(payload json.RawMessage) (task.Task, error) {
		var p DeletePayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, fmt.Errorf("invalid %s payload: %w", KindDelete, err)
		}
		if p.Path == "" {
			return nil, fmt.Errorf("%s requires a path", KindDelete)
		}
		return &DeleteTask{payload: p, log: logger.WithField("task", KindDelete)}, nil
	})
}

// UpdateTask replaces Destination with Source, keeping the previous file in Backup
type UpdateTask struct {
	task.Notifier
	payload UpdatePayload
	log     *log.Entry
}

func (t *UpdateTask) Execute(ctx context.Context, coldRun bool) (plan.Status, error) {
	if !coldRun {
		return plan.RequiresAppRestart, nil
	}

	t.progress("backing up", 0)
	if err := backup(t.payload.Destination, t.payload.Backup); err != nil {
		return plan.Failed, err
	}

	if err := ctx.Err(); err != nil {
		return plan.Failed, err
	}

	t.progress("copying", 50)
	if err := t.replace(); err != nil {
		return plan.Failed, err
	}

	t.progress("done", 100)
	return plan.Successful, nil
}

func (t *UpdateTask) replace() error {
	t.log.Infof("copying %s to %s", t.payload.Source, t.payload.Destination)

	info, err := os.Stat(t.payload.Source)
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(t.payload.Destination), 0o755); err != nil {
		return fmt.Errorf("create destination dir: %w", err)
	}

	tmp := t.payload.Destination + ".nau-tmp"
	if err := copyFile(t.log, t.payload.Source, tmp, info.Mode().Perm()); err != nil {
		_ = os.Remove(tmp)
		return err
	}

	if err := os.Rename(tmp, t.payload.Destination); err != nil {
		if cleanupErr := os.Remove(tmp); cleanupErr != nil {
			t.log.Warnf("failed to remove temp file: %v", cleanupErr)
		}
		return fmt.Errorf("move %s to %s: %w", tmp, t.payload.Destination, err)
	}
	return nil
}

func (t *UpdateTask) progress(message string, pct int) {
	t.Notify(task.Progress{
		Description:  fmt.Sprintf("Updating %s", filepath.Base(t.payload.Destination)),
		Message:      message,
		Percentage:   pct,
		StillWorking: pct < 100,
	})
}

// DeleteTask removes Path, moving it to Backup when one is given
type DeleteTask struct {
	task.Notifier
	payload DeletePayload
	log     *log.Entry
}

func (t *DeleteTask) Execute(_ context.Context, coldRun bool) (plan.Status, error) {
	if !coldRun {
		return plan.RequiresAppRestart, nil
	}

	t.Notify(task.Progress{Description: fmt.Sprintf("Removing %s", filepath.Base(t.payload.Path)), StillWorking: true})

	if _, err := os.Stat(t.payload.Path); os.IsNotExist(err) {
		t.log.Debugf("%s already absent", t.payload.Path)
		t.Notify(task.Progress{Description: fmt.Sprintf("Removing %s", filepath.Base(t.payload.Path)), Percentage: 100})
		return plan.Successful, nil
	}

	if t.payload.Backup != "" {
		if err := backup(t.payload.Path, t.payload.Backup); err != nil {
			return plan.Failed, err
		}
	} else if err := os.Remove(t.payload.Path); err != nil {
		return plan.Failed, fmt.Errorf("remove %s: %w", t.payload.Path, err)
	}

	t.Notify(task.Progress{Description: fmt.Sprintf("Removing %s", filepath.Base(t.payload.Path)), Percentage: 100})
	return plan.Successful, nil
}

// backup moves path into dst. A missing path or an empty dst is a no-op.
func backup(path, dst string) error {
	if dst == "" {
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create backup dir: %w", err)
	}
	if err := os.Rename(path, dst); err != nil {
		return fmt.Errorf("back up %s to %s: %w", path, dst, err)
	}
	return nil
}

func copyFile(logger *log.Entry, src, dst string, perm os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer func() {
		if err := in.Close(); err != nil {
			logger.Warnf("failed to close source file: %v", err)
		}
	}()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("create destination: %w", err)
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("copy: %w", err)
	}

	if err := out.Close(); err != nil {
		return fmt.Errorf("close destination: %w", err)
	}
	return nil
}
