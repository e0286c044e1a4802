package filetask

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netbirdio/netbird-updater/updater/plan"
	"github.com/netbirdio/netbird-updater/updater/task"
)

func newRegistry(t *testing.T) *task.Registry {
	t.Helper()
	r := task.NewRegistry()
	require.NoError(t, Register(r, log.NewEntry(log.StandardLogger())))
	return r
}

func resolve(t *testing.T, r *task.Registry, kind string, payload interface{}) task.Task {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	tk, err := r.Resolve(&plan.TaskRecord{Kind: kind, Payload: raw})
	require.NoError(t, err)
	return tk
}

type progressLog struct {
	items []task.Progress
}

func (p *progressLog) ReportProgress(pr task.Progress) {
	p.items = append(p.items, pr)
}

func TestUpdateTaskReplacesAndBacksUp(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "staged", "app.bin")
	dst := filepath.Join(dir, "install", "app.bin")
	bak := filepath.Join(dir, "backup", "app.bin")

	require.NoError(t, os.MkdirAll(filepath.Dir(src), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Dir(dst), 0o755))
	require.NoError(t, os.WriteFile(src, []byte("new"), 0o644))
	require.NoError(t, os.WriteFile(dst, []byte("old"), 0o644))

	tk := resolve(t, newRegistry(t), KindUpdate, UpdatePayload{Source: src, Destination: dst, Backup: bak})
	progress := &progressLog{}
	tk.AddProgressSink(progress)

	st, err := tk.Execute(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, plan.Successful, st)

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))

	data, err = os.ReadFile(bak)
	require.NoError(t, err)
	assert.Equal(t, "old", string(data))

	require.NotEmpty(t, progress.items)
	assert.Equal(t, 100, progress.items[len(progress.items)-1].Percentage)
}

func TestUpdateTaskMissingSourceFails(t *testing.T) {
	dir := t.TempDir()
	tk := resolve(t, newRegistry(t), KindUpdate, UpdatePayload{Source: filepath.Join(dir, "nope"), Destination: filepath.Join(dir, "dst")})

	st, err := tk.Execute(context.Background(), true)
	assert.Error(t, err)
	assert.Equal(t, plan.Failed, st)
}

func TestTasksDeferWhenHostIsRunning(t *testing.T) {
	dir := t.TempDir()
	r := newRegistry(t)

	upd := resolve(t, r, KindUpdate, UpdatePayload{Source: filepath.Join(dir, "a"), Destination: filepath.Join(dir, "b")})
	st, err := upd.Execute(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, plan.RequiresAppRestart, st)

	del := resolve(t, r, KindDelete, DeletePayload{Path: filepath.Join(dir, "a")})
	st, err = del.Execute(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, plan.RequiresAppRestart, st)
}

func TestDeleteTask(t *testing.T) {
	dir := t.TempDir()
	r := newRegistry(t)

	target := filepath.Join(dir, "old.dll")
	require.NoError(t, os.WriteFile(target, []byte("x"), 0o644))

	st, err := resolve(t, r, KindDelete, DeletePayload{Path: target}).Execute(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, plan.Successful, st)
	assert.NoFileExists(t, target)

	st, err = resolve(t, r, KindDelete, DeletePayload{Path: target}).Execute(context.Background(), true)
	require.NoError(t, err, "already absent file is not an error")
	assert.Equal(t, plan.Successful, st)

	require.NoError(t, os.WriteFile(target, []byte("y"), 0o644))
	bak := filepath.Join(dir, "backup", "old.dll")
	st, err = resolve(t, r, KindDelete, DeletePayload{Path: target, Backup: bak}).Execute(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, plan.Successful, st)
	assert.FileExists(t, bak)
}

func TestInvalidPayloads(t *testing.T) {
	r := newRegistry(t)

	_, err := r.Resolve(&plan.TaskRecord{Kind: KindUpdate, Payload: json.RawMessage(`{"source":"a"}`)})
	assert.Error(t, err)

	_, err = r.Resolve(&plan.TaskRecord{Kind: KindDelete, Payload: json.RawMessage(`{}`)})
	assert.Error(t, err)

	_, err = r.Resolve(&plan.TaskRecord{Kind: KindDelete, Payload: json.RawMessage(`[`)})
	assert.Error(t, err)
}
