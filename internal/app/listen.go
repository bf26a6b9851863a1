package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/rbright/clipthat/internal/config"
	"github.com/rbright/clipthat/internal/dispatch"
	"github.com/rbright/clipthat/internal/hotkey"
	"github.com/rbright/clipthat/internal/ipc"
	"github.com/rbright/clipthat/internal/logging"
	"github.com/rbright/clipthat/internal/session"
	"github.com/rbright/clipthat/internal/sound"
	"github.com/rbright/clipthat/internal/trigger"
)

// warmer is implemented by senders that need device setup before first use.
type warmer interface {
	Warmup() error
}

// commandListen owns the IPC socket and runs the session until a signal,
// a stop request, or a recognizer failure.
func (r Runner) commandListen(
	ctx context.Context,
	configPath string,
	cfg config.Config,
	logger *slog.Logger,
	logRuntime logging.Runtime,
) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	listener, err := ipc.Acquire(ctx, socketPath, 180*time.Millisecond, 8)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() {
		_ = listener.Close()
		_ = os.Remove(socketPath)
	}()

	newSender := r.newSender
	if newSender == nil {
		newSender = hotkey.New
	}
	keys, err := newSender(cfg.HotkeyBackend)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if w, ok := keys.(warmer); ok {
		if err := w.Warmup(); err != nil {
			logger.Warn("hotkey warmup failed", "backend", cfg.HotkeyBackend, "error", err.Error())
		}
	}

	player := sound.New(cfg.Sound, logger)
	defer player.Wait()

	phrases, _ := config.Phrases(cfg)
	matcher := trigger.NewMatcher(phrases, config.Thresholds(cfg))
	dispatcher := dispatch.New(keys, player, config.Debounce(cfg), cfg.Hotkey, logger)

	opts := session.Options{
		Reload: func() (config.Config, error) {
			loaded, err := config.Load(configPath)
			if err != nil {
				return config.Config{}, err
			}
			for _, w := range loaded.Warnings {
				logger.Warn("config warning", "line", w.Line, "message", w.Message)
			}
			return loaded.Config, nil
		},
		OnReload: func(next config.Config) {
			player.SetConfig(next.Sound)
			logRuntime.SetVerbose(next.Debug.Verbose)
			if next.HotkeyBackend != cfg.HotkeyBackend || next.Recognizer != cfg.Recognizer || next.Audio != cfg.Audio {
				logger.Warn("recognizer, audio, and hotkey_backend changes apply on restart")
			}
		},
	}
	if cfg.Debug.FragmentDump {
		dump, err := session.OpenFragmentDump()
		if err != nil {
			logger.Warn("fragment dump unavailable", "error", err.Error())
		} else {
			defer dump.Close()
			opts.FragmentDump = dump
			logger.Info("fragment dump enabled", "path", dump.Name())
		}
	}

	newSource := r.newSource
	if newSource == nil {
		newSource = defaultSource
	}
	controller := session.NewController(logger, newSource(cfg, logger), dispatcher, matcher, opts)

	serverCtx, serverCancel := context.WithCancel(ctx)
	defer serverCancel()
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- ipc.Serve(serverCtx, listener, controller)
	}()

	result := controller.Run(ctx)
	serverCancel()
	serverErr := <-serverErrCh

	logSessionResult(logger, result)

	if result.Err != nil {
		cueCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = player.Play(cueCtx, sound.CueFailed)

		fmt.Fprintf(r.Stderr, "error: %v\n", result.Err)
		return 1
	}
	if serverErr != nil && !errors.Is(serverErr, context.Canceled) {
		fmt.Fprintf(r.Stderr, "error: ipc server failed: %v\n", serverErr)
		return 1
	}
	return 0
}

func logSessionResult(logger *slog.Logger, result session.Result) {
	if logger == nil {
		return
	}
	fields := []any{
		"stopped", result.Stopped,
		"started_at", result.StartedAt.Format(time.RFC3339Nano),
		"finished_at", result.FinishedAt.Format(time.RFC3339Nano),
		"duration_ms", result.FinishedAt.Sub(result.StartedAt).Milliseconds(),
		"fragments", result.Fragments,
		"matches", result.Matches,
	}
	for _, outcome := range dispatch.Outcomes {
		fields = append(fields, string(outcome), result.Outcomes[outcome])
	}

	if result.Err != nil {
		logger.Error("session failed", append(fields, "error", result.Err.Error())...)
		return
	}
	logger.Info("session complete", fields...)
}
