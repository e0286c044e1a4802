package util

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testResult struct {
	RunID   string
	Success bool
	Tags    []string
}

func TestWriteAndReadJson(t *testing.T) {
	file := filepath.Join(t.TempDir(), "nested", "result.json")
	written := &testResult{RunID: "r1", Success: true, Tags: []string{"a", "b"}}

	require.NoError(t, WriteJson(context.Background(), file, written))

	read, err := ReadJson[testResult](file)
	require.NoError(t, err)
	assert.Equal(t, *written, read)

	entries, err := os.ReadDir(filepath.Dir(file))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must not be left behind")
}

func TestWriteTextReplacesContent(t *testing.T) {
	file := filepath.Join(t.TempDir(), "NauUpdate.log")

	require.NoError(t, WriteText(context.Background(), file, "first\n"))
	require.NoError(t, WriteText(context.Background(), file, "second\n"))

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Equal(t, "second\n", string(data))
}

func TestWriteBytesCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	file := filepath.Join(t.TempDir(), "x.json")
	err := WriteJson(ctx, file, &testResult{})
	require.ErrorIs(t, err, context.Canceled)
	assert.NoFileExists(t, file)
}

func TestReadJsonMissingFile(t *testing.T) {
	_, err := ReadJson[testResult](filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestReadJsonInvalidContent(t *testing.T) {
	file := filepath.Join(t.TempDir(), "result.json")
	require.NoError(t, WriteText(context.Background(), file, `{"runId": `))

	_, err := ReadJson[testResult](file)
	require.Error(t, err)
	assert.Contains(t, err.Error(), file)
}
