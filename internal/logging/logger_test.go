package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveLogPath(t *testing.T) {
	xdgStateHome := t.TempDir()
	t.Setenv("XDG_STATE_HOME", xdgStateHome)
	t.Setenv("HOME", t.TempDir())

	path, err := resolveLogPath()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(xdgStateHome, "clipthat", "log.jsonl"), path)

	home := t.TempDir()
	t.Setenv("XDG_STATE_HOME", "")
	t.Setenv("HOME", home)

	path, err = resolveLogPath()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, ".local", "state", "clipthat", "log.jsonl"), path)
}

func TestNewWritesOwnerOnlyJSONLines(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", t.TempDir())

	runtime, err := New(false)
	require.NoError(t, err)

	runtime.Logger.Info("dispatch", "action", "clip", "outcome", "dispatched")
	runtime.Logger.Debug("fragment", "text", "hidden at info")
	require.NoError(t, runtime.Close())

	contents, err := os.ReadFile(runtime.Path)
	require.NoError(t, err)
	require.Contains(t, string(contents), `"msg":"dispatch"`)
	require.Contains(t, string(contents), `"outcome":"dispatched"`)
	require.NotContains(t, string(contents), "hidden at info")

	stat, err := os.Stat(runtime.Path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), stat.Mode().Perm())
}

func TestSetVerboseTogglesDebugRecords(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", t.TempDir())

	runtime, err := New(true)
	require.NoError(t, err)

	runtime.Logger.Debug("first")
	runtime.SetVerbose(false)
	runtime.Logger.Debug("second")
	runtime.SetVerbose(true)
	runtime.Logger.Debug("third")
	require.NoError(t, runtime.Close())

	contents, err := os.ReadFile(runtime.Path)
	require.NoError(t, err)
	require.Contains(t, string(contents), `"msg":"first"`)
	require.NotContains(t, string(contents), `"msg":"second"`)
	require.Contains(t, string(contents), `"msg":"third"`)

	Runtime{}.SetVerbose(true)
	require.NoError(t, Runtime{}.Close())
}
