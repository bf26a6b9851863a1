// Package session runs the listening loop: recognizer events in, overlay
// hotkeys out, with IPC control on the side.
package session

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rbright/clipthat/internal/config"
	"github.com/rbright/clipthat/internal/dispatch"
	"github.com/rbright/clipthat/internal/ipc"
	"github.com/rbright/clipthat/internal/transcript"
	"github.com/rbright/clipthat/internal/trigger"
)

// Lifecycle states reported by status.
const (
	StateStarting  = "starting"
	StateListening = "listening"
	StateStopped   = "stopped"
)

// Result summarizes one Run.
type Result struct {
	Err        error
	Stopped    bool
	Fragments  int64
	Matches    int64
	Outcomes   map[dispatch.Outcome]int64
	StartedAt  time.Time
	FinishedAt time.Time
}

// Options are the optional collaborators of a Controller.
type Options struct {
	// Reload loads fresh configuration for the reload command.
	Reload func() (config.Config, error)
	// OnReload receives each configuration applied by reload.
	OnReload func(config.Config)
	// FragmentDump receives one JSON line per fragment when set.
	FragmentDump io.Writer
	Clock        func() time.Time
}

// Controller feeds recognizer events through the matcher and dispatcher.
// Events are handled one at a time on the Run goroutine.
type Controller struct {
	logger     *slog.Logger
	source     Source
	dispatcher *dispatch.Dispatcher
	adapter    transcript.Adapter
	matcher    atomic.Pointer[trigger.Matcher]
	opts       Options
	dump       *fragmentDump

	lifecycle atomic.Value
	stopCh    chan struct{}
	stopOnce  sync.Once

	fragments atomic.Int64
	matches   atomic.Int64

	outcomesMu sync.Mutex
	outcomes   map[dispatch.Outcome]int64
}

// NewController wires a session. matcher may be swapped later by reload.
func NewController(
	logger *slog.Logger,
	source Source,
	dispatcher *dispatch.Dispatcher,
	matcher *trigger.Matcher,
	opts Options,
) *Controller {
	c := &Controller{
		logger:     logger,
		source:     source,
		dispatcher: dispatcher,
		adapter:    transcript.NewAdapter(opts.Clock),
		opts:       opts,
		dump:       newFragmentDump(opts.FragmentDump),
		stopCh:     make(chan struct{}),
		outcomes:   make(map[dispatch.Outcome]int64),
	}
	c.matcher.Store(matcher)
	c.lifecycle.Store(StateStarting)
	return c
}

// Matcher returns the matcher currently in use.
func (c *Controller) Matcher() *trigger.Matcher {
	return c.matcher.Load()
}

// Run listens until ctx is cancelled, a stop request arrives, or the
// recognizer ends. Only the last case reports an error.
func (c *Controller) Run(ctx context.Context) Result {
	result := Result{StartedAt: time.Now()}
	defer c.lifecycle.Store(StateStopped)

	finish := func(err error) Result {
		result.Err = err
		result.Fragments = c.fragments.Load()
		result.Matches = c.matches.Load()
		result.Outcomes = c.outcomeCounts()
		result.FinishedAt = time.Now()
		return result
	}

	if err := c.source.Start(ctx); err != nil {
		return finish(fmt.Errorf("start recognizer: %w", err))
	}
	defer c.stopSource()

	events, err := c.source.Events()
	if err != nil {
		return finish(err)
	}

	c.lifecycle.Store(StateListening)
	c.logInfo("listening")

	for {
		select {
		case <-ctx.Done():
			return finish(nil)
		case <-c.stopCh:
			result.Stopped = true
			return finish(nil)
		case event, ok := <-events:
			if !ok {
				err := c.source.Err()
				if err == nil {
					err = ErrSourceClosed
				}
				return finish(err)
			}
			c.handleEvent(ctx, event)
		}
	}
}

func (c *Controller) stopSource() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.source.Stop(ctx); err != nil && c.logger != nil {
		c.logger.Warn("stop recognizer", "error", err)
	}
}

func (c *Controller) handleEvent(ctx context.Context, event transcript.Event) {
	fragment := c.adapter.Fragment(event)
	if fragment.Text == "" {
		return
	}
	c.fragments.Add(1)

	if c.logger != nil {
		c.logger.Debug("fragment", "text", fragment.Text, "confidence", string(fragment.Confidence))
	}

	match, ok := c.matcher.Load().Match(fragment)
	if !ok {
		c.dump.write(fragment, match, false, "")
		return
	}
	c.matches.Add(1)

	result := c.dispatcher.Dispatch(ctx, match, fragment.ReceivedAt)
	c.dump.write(fragment, match, true, string(result.Outcome))

	c.outcomesMu.Lock()
	c.outcomes[result.Outcome]++
	c.outcomesMu.Unlock()
}

func (c *Controller) outcomeCounts() map[dispatch.Outcome]int64 {
	c.outcomesMu.Lock()
	defer c.outcomesMu.Unlock()
	out := make(map[dispatch.Outcome]int64, len(c.outcomes))
	for outcome, n := range c.outcomes {
		out[outcome] = n
	}
	return out
}

// Handle serves IPC commands for the running listener.
func (c *Controller) Handle(_ context.Context, req ipc.Request) ipc.Response {
	switch req.Command {
	case ipc.CommandStatus:
		return c.status("status")
	case ipc.CommandReset:
		previous := c.dispatcher.ResetRecording()
		c.logInfo("recording state reset", "previous", string(previous))
		return c.status(fmt.Sprintf("recording state reset (was %s)", previous))
	case ipc.CommandReload:
		return c.reload()
	case ipc.CommandStop:
		c.Stop()
		return c.status("stop requested")
	default:
		resp := c.status("")
		resp.OK = false
		resp.Error = fmt.Sprintf("unknown command: %s", req.Command)
		return resp
	}
}

// Stop ends Run as if a stop request had arrived.
func (c *Controller) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}

func (c *Controller) status(message string) ipc.Response {
	counts := c.outcomeCounts()
	stats := &ipc.Stats{
		Fragments: c.fragments.Load(),
		Matches:   c.matches.Load(),
		Outcomes:  make(map[string]int64, len(counts)),
	}
	for outcome, n := range counts {
		stats.Outcomes[string(outcome)] = n
	}

	return ipc.Response{
		OK:        true,
		State:     c.lifecycle.Load().(string),
		Recording: string(c.dispatcher.State()),
		Message:   message,
		Stats:     stats,
	}
}

// reload swaps in a matcher built from fresh config and updates the
// dispatcher. Recognizer and audio settings apply on the next start.
func (c *Controller) reload() ipc.Response {
	if c.opts.Reload == nil {
		resp := c.status("")
		resp.OK = false
		resp.Error = "reload is not available"
		return resp
	}

	cfg, err := c.opts.Reload()
	if err != nil {
		if c.logger != nil {
			c.logger.Error("reload config", "error", err)
		}
		resp := c.status("")
		resp.OK = false
		resp.Error = err.Error()
		return resp
	}

	phrases, warnings := config.Phrases(cfg)
	for _, w := range warnings {
		if c.logger != nil {
			c.logger.Warn("config warning", "line", w.Line, "message", w.Message)
		}
	}
	c.matcher.Store(trigger.NewMatcher(phrases, config.Thresholds(cfg)))
	c.dispatcher.SetCooldown(config.Debounce(cfg))
	c.dispatcher.SetClipHotkey(cfg.Hotkey)
	if c.opts.OnReload != nil {
		c.opts.OnReload(cfg)
	}

	c.logInfo("config reloaded", "phrases", len(phrases))
	return c.status(fmt.Sprintf("reloaded %d phrases", len(phrases)))
}

func (c *Controller) logInfo(message string, args ...any) {
	if c.logger == nil {
		return
	}
	c.logger.Info(message, args...)
}
