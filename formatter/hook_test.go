package formatter

import (
	"runtime"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelativePath(t *testing.T) {
	testCases := []struct {
		name     string
		filePath string
		expected string
	}{
		{
			name:     "locally cloned repo",
			filePath: "/Users/user/src/netbird-updater/formatter/formatter.go",
			expected: "formatter/formatter.go",
		},
		{
			name:     "nested package",
			filePath: "/home/ci/work/netbird-updater/updater/internal/engine/engine.go",
			expected: "updater/internal/engine/engine.go",
		},
		{
			name:     "trimmed module path",
			filePath: "github.com/netbirdio/netbird-updater/updater/channel/inbox.go",
			expected: "updater/channel/inbox.go",
		},
		{
			name:     "external package",
			filePath: "/go/pkg/mod/github.com/spf13/cobra@v1.10.1/command.go",
			expected: "cobra@v1.10.1/command.go",
		},
	}

	hook := &ContextHook{repoDir: "netbird-updater/"}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, hook.relativePath(tc.filePath))
		})
	}
}

func TestContextHookStampsBoundRun(t *testing.T) {
	hook := NewContextHook()
	state := "AwaitingHostExit"

	unbound := &logrus.Entry{Data: logrus.Fields{}, Caller: &runtime.Frame{File: "/src/netbird-updater/updater/main.go", Line: 7}}
	require.NoError(t, hook.Fire(unbound))
	assert.NotContains(t, unbound.Data, RunKey)
	assert.NotContains(t, unbound.Data, StateKey)
	assert.NotEmpty(t, unbound.Data[SourceKey])

	hook.Bind("5f0c2a1e-run", func() string { return state })

	first := &logrus.Entry{Data: logrus.Fields{}}
	require.NoError(t, hook.Fire(first))
	assert.Equal(t, "5f0c2a1e-run", first.Data[RunKey])
	assert.Equal(t, "AwaitingHostExit", first.Data[StateKey])

	state = "ExecutingTasks"
	second := &logrus.Entry{Data: logrus.Fields{RunKey: "explicit"}}
	require.NoError(t, hook.Fire(second))
	assert.Equal(t, "explicit", second.Data[RunKey], "caller fields are kept")
	assert.Equal(t, "ExecutingTasks", second.Data[StateKey])
}

func TestSetTextFormatterKeepsGivenContextHook(t *testing.T) {
	logger := logrus.New()
	hook := NewContextHook()

	SetTextFormatter(logger, hook)

	var contextHooks int
	for _, h := range logger.Hooks[logrus.InfoLevel] {
		if _, ok := h.(*ContextHook); ok {
			contextHooks++
		}
	}
	assert.Equal(t, 1, contextHooks)
}
