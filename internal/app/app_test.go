package app

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rbright/clipthat/internal/config"
	"github.com/rbright/clipthat/internal/dispatch"
	"github.com/rbright/clipthat/internal/hotkey"
	"github.com/rbright/clipthat/internal/ipc"
	"github.com/rbright/clipthat/internal/session"
	"github.com/rbright/clipthat/internal/transcript"
	"github.com/stretchr/testify/require"
)

func TestExecuteHelpAndVersion(t *testing.T) {
	var stdout, stderr bytes.Buffer

	require.Equal(t, 0, Execute(context.Background(), []string{"--help"}, &stdout, &stderr))
	require.Contains(t, stdout.String(), "Usage:")
	require.Contains(t, stdout.String(), "match TEXT")
	require.Empty(t, stderr.String())

	stdout.Reset()
	require.Equal(t, 0, Execute(context.Background(), []string{"version"}, &stdout, &stderr))
	require.Contains(t, stdout.String(), "clipthat")
	require.Empty(t, stderr.String())
}

func TestExecuteUsageErrors(t *testing.T) {
	for _, args := range [][]string{{"definitely-not-a-command"}, {"match"}, {"status", "extra"}} {
		var stdout, stderr bytes.Buffer
		exitCode := Execute(context.Background(), args, &stdout, &stderr)
		require.Equal(t, 2, exitCode, args)
		require.Contains(t, stderr.String(), "error:")
		require.Contains(t, stderr.String(), "Usage:")
	}
}

func TestRunnerStatusIdleWhenNoListener(t *testing.T) {
	paths := setupRunnerEnv(t)

	var stdout, stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "status"})
	require.Equal(t, 0, exitCode)
	require.Equal(t, "idle\n", stdout.String())
	require.Empty(t, stderr.String())
}

func TestRunnerForwardedCommandsFailWithoutListener(t *testing.T) {
	paths := setupRunnerEnv(t)

	for _, cmd := range []string{"stop", "reset", "reload"} {
		var stdout, stderr bytes.Buffer
		runner := Runner{Stdout: &stdout, Stderr: &stderr}

		exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, cmd})
		require.Equal(t, 1, exitCode, cmd)
		require.Contains(t, stderr.String(), "no running clipthat listener", cmd)
	}
}

func TestRunnerForwardsCommandsToListener(t *testing.T) {
	paths := setupRunnerEnv(t)
	commands := make(chan string, 8)

	shutdown := startIPCServerForRunnerTest(t, paths.socketPath, func(_ context.Context, req ipc.Request) ipc.Response {
		commands <- req.Command
		switch req.Command {
		case ipc.CommandStatus:
			return ipc.Response{
				OK:        true,
				State:     "listening",
				Recording: "recording",
				Stats: &ipc.Stats{
					Fragments: 40,
					Matches:   3,
					Outcomes:  map[string]int64{"dispatched": 2, "suppressed_guard": 1},
				},
			}
		case ipc.CommandReload:
			return ipc.Response{OK: false, Error: "parse config: bad yaml"}
		default:
			return ipc.Response{OK: true, Message: req.Command + " handled"}
		}
	})
	defer shutdown()

	var stdout, stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	require.Equal(t, 0, runner.Execute(context.Background(), []string{"status"}))
	require.Equal(t, "listening\nrecording: recording\nfragments: 40\nmatches: 3\ndispatched: 2\nsuppressed_guard: 1\n", stdout.String())

	for _, cmd := range []string{"stop", "reset"} {
		stdout.Reset()
		require.Equal(t, 0, runner.Execute(context.Background(), []string{cmd}), cmd)
		require.Equal(t, cmd+" handled\n", stdout.String())
	}

	require.Equal(t, 1, runner.Execute(context.Background(), []string{"reload"}))
	require.Contains(t, stderr.String(), "bad yaml")

	got := []string{<-commands, <-commands, <-commands, <-commands}
	require.Equal(t, []string{"status", "stop", "reset", "reload"}, got)
}

func TestTryForwardTreatsReadFailuresAsHandledErrors(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "clipthat.sock")

	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)
	defer listener.Close()

	go func() {
		conn, acceptErr := listener.Accept()
		if acceptErr == nil {
			_ = conn.Close()
		}
	}()

	_, handled, err := tryForward(context.Background(), socketPath, "status")
	require.True(t, handled)
	require.ErrorContains(t, err, `forward command "status":`)

	_, handled, err = tryForward(context.Background(), filepath.Join(t.TempDir(), "missing.sock"), "status")
	require.False(t, handled)
	require.NoError(t, err)
}

func TestRunnerMatchPrintsScoreAndVerdicts(t *testing.T) {
	paths := setupRunnerEnv(t)
	require.NoError(t, os.WriteFile(paths.configPath, []byte("trigger_phrases:\n  - nvidia clip that\n"), 0o600))

	var stdout, stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "match", "NVIDEO", "clip", "that"})
	require.Equal(t, 0, exitCode, stderr.String())
	require.Contains(t, stdout.String(), "text:    nvideo clip that\n")
	require.Contains(t, stdout.String(), "phrase:  nvidia clip that\n")
	require.Contains(t, stdout.String(), "action:  clip\n")
	require.Contains(t, stdout.String(), "score:   0.875\n")
	require.Contains(t, stdout.String(), "final:   accept (>= 0.85)\n")
	require.Contains(t, stdout.String(), "partial: reject (< 0.90)\n")
}

func TestRunnerConfigAndInit(t *testing.T) {
	paths := setupRunnerEnv(t)
	fresh := filepath.Join(t.TempDir(), "clipthat", "config.yml")

	var stdout, stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	require.Equal(t, 0, runner.Execute(context.Background(), []string{"--config", fresh, "init"}))
	require.Contains(t, stdout.String(), "wrote default config to "+fresh)

	stdout.Reset()
	require.Equal(t, 0, runner.Execute(context.Background(), []string{"--config", fresh, "init"}))
	require.Contains(t, stdout.String(), "config already exists")

	stdout.Reset()
	require.Equal(t, 0, runner.Execute(context.Background(), []string{"--config", paths.configPath, "config"}))
	require.Contains(t, stdout.String(), "trigger_phrases:")
	require.Contains(t, stdout.String(), "nvideo clip that")
	require.Contains(t, stdout.String(), "hotkey: alt+f10")
}

func TestRunnerInvalidConfigFails(t *testing.T) {
	paths := setupRunnerEnv(t)
	require.NoError(t, os.WriteFile(paths.configPath, []byte("threshold: 3\n"), 0o600))

	var stdout, stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	require.Equal(t, 1, runner.Execute(context.Background(), []string{"--config", paths.configPath, "config"}))
	require.Contains(t, stderr.String(), paths.configPath)
}

func TestRunnerDoctorAndDevicesDispatch(t *testing.T) {
	paths := setupRunnerEnv(t)
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")

	var stdout, stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	require.Equal(t, 1, runner.Execute(context.Background(), []string{"--config", paths.configPath, "doctor"}))
	require.Contains(t, stdout.String(), "[OK] config:")
	require.Contains(t, stdout.String(), "[FAIL] audio.device:")

	stderr.Reset()
	require.Equal(t, 1, runner.Execute(context.Background(), []string{"--config", paths.configPath, "devices"}))
	require.Contains(t, stderr.String(), "error:")
}

type fakeSource struct {
	events   chan transcript.Event
	startErr error
}

func (f *fakeSource) Start(context.Context) error               { return f.startErr }
func (f *fakeSource) Events() (<-chan transcript.Event, error) { return f.events, nil }
func (f *fakeSource) Err() error                               { return nil }
func (f *fakeSource) Stop(context.Context) error               { return nil }

type fakeKeys struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakeKeys) Send(_ context.Context, combo string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, combo)
	return nil
}

func (f *fakeKeys) Sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func listenRunner(source *fakeSource, keys *fakeKeys) (Runner, *bytes.Buffer) {
	stderr := &bytes.Buffer{}
	return Runner{
		Stdout: &bytes.Buffer{},
		Stderr: stderr,
		newSource: func(config.Config, *slog.Logger) session.Source {
			return source
		},
		newSender: func(string) (hotkey.Sender, error) {
			return keys, nil
		},
	}, stderr
}

func TestRunnerListenDispatchesAndStopsOnRequest(t *testing.T) {
	paths := setupRunnerEnv(t)
	require.NoError(t, os.WriteFile(paths.configPath, []byte("sound:\n  enable: false\n"), 0o600))

	source := &fakeSource{events: make(chan transcript.Event, 4)}
	source.events <- transcript.Event{Text: "nvidia clip that", IsFinal: true}
	keys := &fakeKeys{}
	runner, stderr := listenRunner(source, keys)

	done := make(chan int, 1)
	go func() {
		done <- runner.Execute(context.Background(), []string{"--config", paths.configPath, "listen"})
	}()

	require.Eventually(t, func() bool {
		return len(keys.Sent()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	resp, err := ipc.Send(context.Background(), paths.socketPath, ipc.Request{Command: ipc.CommandStatus}, time.Second)
	require.NoError(t, err)
	require.Equal(t, session.StateListening, resp.State)
	require.Equal(t, int64(1), resp.Stats.Outcomes[string(dispatch.OutcomeDispatched)])

	_, err = ipc.Send(context.Background(), paths.socketPath, ipc.Request{Command: ipc.CommandStop}, time.Second)
	require.NoError(t, err)

	select {
	case code := <-done:
		require.Equal(t, 0, code, stderr.String())
	case <-time.After(2 * time.Second):
		t.Fatal("listen did not exit after stop")
	}
	require.Equal(t, []string{"alt+f10"}, keys.Sent())

	_, statErr := os.Stat(paths.socketPath)
	require.ErrorIs(t, statErr, os.ErrNotExist)
}

func TestRunnerListenFailsWhenRecognizerCannotStart(t *testing.T) {
	paths := setupRunnerEnv(t)
	require.NoError(t, os.WriteFile(paths.configPath, []byte("sound:\n  enable: false\n"), 0o600))

	source := &fakeSource{events: make(chan transcript.Event), startErr: errors.New("connection refused")}
	runner, stderr := listenRunner(source, &fakeKeys{})

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "listen"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "start recognizer: connection refused")

	_, statErr := os.Stat(paths.socketPath)
	require.ErrorIs(t, statErr, os.ErrNotExist)
}

func TestRunnerListenRefusesSecondListener(t *testing.T) {
	paths := setupRunnerEnv(t)

	shutdown := startIPCServerForRunnerTest(t, paths.socketPath, func(context.Context, ipc.Request) ipc.Response {
		return ipc.Response{OK: true, State: "listening"}
	})
	defer shutdown()

	runner, stderr := listenRunner(&fakeSource{events: make(chan transcript.Event)}, &fakeKeys{})
	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "listen"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), ipc.ErrAlreadyRunning.Error())
}

func TestLogSessionResultWritesFailureAndSuccess(t *testing.T) {
	var logBuf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logBuf, nil))

	started := time.Now()
	finished := started.Add(1500 * time.Millisecond)

	logSessionResult(logger, session.Result{
		Stopped:    true,
		StartedAt:  started,
		FinishedAt: finished,
		Fragments:  20,
		Matches:    2,
		Outcomes:   map[dispatch.Outcome]int64{dispatch.OutcomeDispatched: 2},
	})
	require.Contains(t, logBuf.String(), "session complete")
	require.Contains(t, logBuf.String(), `"dispatched":2`)
	require.Contains(t, logBuf.String(), `"duration_ms":1500`)

	logBuf.Reset()
	logSessionResult(logger, session.Result{
		StartedAt:  started,
		FinishedAt: finished,
		Err:        session.ErrSourceClosed,
	})
	require.Contains(t, logBuf.String(), "session failed")
	require.Contains(t, logBuf.String(), "closed unexpectedly")
}

type runnerPaths struct {
	configPath string
	runtimeDir string
	socketPath string
}

func setupRunnerEnv(t *testing.T) runnerPaths {
	t.Helper()

	runtimeDir := t.TempDir()
	t.Setenv("XDG_STATE_HOME", t.TempDir())
	t.Setenv("XDG_RUNTIME_DIR", runtimeDir)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	configPath := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(configPath, []byte("\n"), 0o600))

	return runnerPaths{
		configPath: configPath,
		runtimeDir: runtimeDir,
		socketPath: filepath.Join(runtimeDir, "clipthat.sock"),
	}
}

func startIPCServerForRunnerTest(t *testing.T, socketPath string, handler func(context.Context, ipc.Request) ipc.Response) func() {
	t.Helper()

	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- ipc.Serve(ctx, listener, ipc.HandlerFunc(handler))
	}()

	return func() {
		cancel()
		require.NoError(t, <-done)
	}
}
