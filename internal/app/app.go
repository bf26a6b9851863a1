// Package app maps parsed commands onto the clipthat runtime.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/rbright/clipthat/internal/audio"
	"github.com/rbright/clipthat/internal/cli"
	"github.com/rbright/clipthat/internal/config"
	"github.com/rbright/clipthat/internal/dispatch"
	"github.com/rbright/clipthat/internal/doctor"
	"github.com/rbright/clipthat/internal/hotkey"
	"github.com/rbright/clipthat/internal/ipc"
	"github.com/rbright/clipthat/internal/logging"
	"github.com/rbright/clipthat/internal/pipeline"
	"github.com/rbright/clipthat/internal/session"
	"github.com/rbright/clipthat/internal/trigger"
	"github.com/rbright/clipthat/internal/version"
)

const (
	binaryName     = "clipthat"
	forwardTimeout = 220 * time.Millisecond
)

type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger

	// Overridable in tests.
	newSource func(config.Config, *slog.Logger) session.Source
	newSender func(backend string) (hotkey.Sender, error)
}

func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	r := Runner{Stdout: stdout, Stderr: stderr}
	return r.Execute(ctx, args)
}

// Execute runs one command and returns the process exit code: 0 on success,
// 1 on runtime failure, 2 on usage error.
func (r Runner) Execute(ctx context.Context, args []string) int {
	parsed, err := cli.Parse(args)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n\n", err)
		fmt.Fprint(r.Stderr, cli.HelpText(binaryName))
		return 2
	}

	if parsed.ShowHelp {
		fmt.Fprint(r.Stdout, cli.HelpText(binaryName))
		return 0
	}

	switch parsed.Command {
	case cli.CommandVersion:
		fmt.Fprintln(r.Stdout, version.String())
		return 0
	case cli.CommandInit:
		return r.commandInit(parsed.ConfigPath)
	}

	logRuntime, err := logging.New(false)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: setup logging: %v\n", err)
		return 1
	}
	defer func() { _ = logRuntime.Close() }()

	logger := r.Logger
	if logger == nil {
		logger = logRuntime.Logger
	}

	if parsed.Command.Forwarded() {
		return r.commandForward(ctx, parsed.Command)
	}

	loaded, err := r.loadConfig(parsed.ConfigPath, logger)
	if err != nil {
		return 1
	}
	logRuntime.SetVerbose(loaded.Config.Debug.Verbose)

	logger.Info("command start",
		"command", string(parsed.Command),
		"config", loaded.Path,
		"log", logRuntime.Path,
	)

	switch parsed.Command {
	case cli.CommandListen:
		return r.commandListen(ctx, parsed.ConfigPath, loaded.Config, logger, logRuntime)
	case cli.CommandMatch:
		return r.commandMatch(loaded.Config, strings.Join(parsed.Args, " "))
	case cli.CommandDoctor:
		report := doctor.Run(ctx, loaded)
		fmt.Fprintln(r.Stdout, report.String())
		if report.OK() {
			return 0
		}
		return 1
	case cli.CommandDevices:
		return r.commandDevices(ctx)
	case cli.CommandConfig:
		out, err := config.Encode(loaded.Config)
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
		fmt.Fprint(r.Stdout, out)
		return 0
	default:
		fmt.Fprintf(r.Stderr, "error: unsupported command %q\n", parsed.Command)
		return 2
	}
}

// loadConfig loads and validates config, printing warnings to stderr.
func (r Runner) loadConfig(path string, logger *slog.Logger) (config.Loaded, error) {
	loaded, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("load config failed", "error", err.Error())
		return config.Loaded{}, err
	}
	for _, w := range loaded.Warnings {
		msg := w.Message
		if w.Line > 0 {
			msg = fmt.Sprintf("line %d: %s", w.Line, w.Message)
		}
		fmt.Fprintf(r.Stderr, "warning: %s\n", msg)
		logger.Warn("config warning", "line", w.Line, "message", w.Message)
	}
	return loaded, nil
}

func (r Runner) commandInit(explicitPath string) int {
	path, err := config.ResolvePath(explicitPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if err := config.WriteDefault(path); err != nil {
		if errors.Is(err, os.ErrExist) {
			fmt.Fprintf(r.Stdout, "config already exists at %s\n", path)
			return 0
		}
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	fmt.Fprintf(r.Stdout, "wrote default config to %s\n", path)
	return 0
}

func (r Runner) commandMatch(cfg config.Config, text string) int {
	phrases, _ := config.Phrases(cfg)
	thresholds := config.Thresholds(cfg)
	matcher := trigger.NewMatcher(phrases, thresholds)

	best, ok := matcher.Best(text)
	if !ok {
		fmt.Fprintln(r.Stderr, "error: nothing to match (empty text or no phrases configured)")
		return 1
	}

	verdict := func(confidence trigger.Confidence) string {
		threshold := thresholds.For(confidence)
		if best.Score >= threshold {
			return fmt.Sprintf("accept (>= %.2f)", threshold)
		}
		return fmt.Sprintf("reject (< %.2f)", threshold)
	}

	fmt.Fprintf(r.Stdout, "text:    %s\n", trigger.Normalize(text))
	fmt.Fprintf(r.Stdout, "phrase:  %s\n", best.Phrase)
	fmt.Fprintf(r.Stdout, "action:  %s\n", best.Action)
	fmt.Fprintf(r.Stdout, "score:   %.3f\n", best.Score)
	fmt.Fprintf(r.Stdout, "final:   %s\n", verdict(trigger.ConfidenceFinal))
	fmt.Fprintf(r.Stdout, "partial: %s\n", verdict(trigger.ConfidencePartial))
	return 0
}

func (r Runner) commandDevices(ctx context.Context) int {
	devices, err := audio.ListDevices(ctx)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if len(devices) == 0 {
		fmt.Fprintln(r.Stdout, "no audio devices found")
		return 1
	}

	for _, device := range devices {
		defaultMark := " "
		if device.Default {
			defaultMark = "*"
		}
		fmt.Fprintf(
			r.Stdout,
			"%s id=%s | description=%q | state=%s | available=%s | muted=%s\n",
			defaultMark,
			device.ID,
			device.Description,
			device.State,
			yesNo(device.Available),
			yesNo(device.Muted),
		)
	}
	return 0
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

// commandForward sends a command to the running listener. status reports
// "idle" when none is running; the others fail.
func (r Runner) commandForward(ctx context.Context, command cli.Command) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		if command == cli.CommandStatus {
			fmt.Fprintln(r.Stdout, "idle")
			return 0
		}
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	resp, handled, err := tryForward(ctx, socketPath, string(command))
	if !handled {
		if command == cli.CommandStatus {
			fmt.Fprintln(r.Stdout, "idle")
			return 0
		}
		fmt.Fprintln(r.Stderr, "error: no running clipthat listener")
		return 1
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	if command == cli.CommandStatus {
		printStatus(r.Stdout, resp)
		return 0
	}
	if resp.Message != "" {
		fmt.Fprintln(r.Stdout, resp.Message)
	}
	return 0
}

func printStatus(w io.Writer, resp ipc.Response) {
	state := resp.State
	if state == "" {
		state = "idle"
	}
	fmt.Fprintln(w, state)
	if resp.Recording != "" {
		fmt.Fprintf(w, "recording: %s\n", resp.Recording)
	}
	if resp.Stats == nil {
		return
	}
	fmt.Fprintf(w, "fragments: %d\n", resp.Stats.Fragments)
	fmt.Fprintf(w, "matches: %d\n", resp.Stats.Matches)
	for _, outcome := range dispatch.Outcomes {
		if n := resp.Stats.Outcomes[string(outcome)]; n > 0 {
			fmt.Fprintf(w, "%s: %d\n", outcome, n)
		}
	}
}

// tryForward reports handled=false when no listener owns the socket.
func tryForward(ctx context.Context, socketPath string, command string) (ipc.Response, bool, error) {
	resp, err := ipc.Send(ctx, socketPath, ipc.Request{Command: command}, forwardTimeout)
	if err == nil {
		if resp.OK {
			return resp, true, nil
		}
		return resp, true, errors.New(resp.Error)
	}
	if ipc.IsNotRunning(err) {
		return ipc.Response{}, false, nil
	}
	return ipc.Response{}, true, fmt.Errorf("forward command %q: %w", command, err)
}

func defaultSource(cfg config.Config, logger *slog.Logger) session.Source {
	return pipeline.New(cfg, logger)
}
