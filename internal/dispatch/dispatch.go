// Package dispatch turns accepted matches into overlay hotkeys and cues.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rbright/clipthat/internal/fsm"
	"github.com/rbright/clipthat/internal/hotkey"
	"github.com/rbright/clipthat/internal/sound"
	"github.com/rbright/clipthat/internal/trigger"
)

// Outcome is the result class of one dispatch attempt.
type Outcome string

const (
	OutcomeDispatched         Outcome = "dispatched"
	OutcomeSuppressedDebounce Outcome = "suppressed_debounce"
	OutcomeSuppressedGuard    Outcome = "suppressed_guard"
	OutcomeFailed             Outcome = "failed"
)

// Outcomes lists every outcome in reporting order.
var Outcomes = []Outcome{OutcomeDispatched, OutcomeSuppressedDebounce, OutcomeSuppressedGuard, OutcomeFailed}

// Result describes one dispatch attempt.
type Result struct {
	Action  trigger.Action
	Outcome Outcome
	Hotkey  string
	State   fsm.State
	Err     error
}

// RecordingHotkey toggles overlay recording.
const RecordingHotkey = "alt+f9"

// Binding is the fixed key chord and cue for an action.
type Binding struct {
	Hotkey string
	Cue    sound.Cue
}

// Bindings returns the action mapping for the configured clip hotkey.
func Bindings(clipHotkey string) map[trigger.Action]Binding {
	return map[trigger.Action]Binding{
		trigger.ActionClip:           {Hotkey: clipHotkey, Cue: sound.CueClipSaved},
		trigger.ActionStartRecording: {Hotkey: RecordingHotkey, Cue: sound.CueRecordingStarted},
		trigger.ActionStopRecording:  {Hotkey: RecordingHotkey, Cue: sound.CueRecordingStopped},
	}
}

// Player is the cue facility used for action feedback.
type Player interface {
	PlayAsync(sound.Cue)
}

type noopPlayer struct{}

func (noopPlayer) PlayAsync(sound.Cue) {}

// Snapshot is a consistent copy of dispatcher state.
type Snapshot struct {
	State      fsm.State
	Cooldown   time.Duration
	ClipHotkey string
	LastFired  map[trigger.Action]time.Time
}

// Dispatcher owns debounce and recording state behind one mutex.
type Dispatcher struct {
	keys   hotkey.Sender
	player Player
	logger *slog.Logger

	// dispatchMu serializes Dispatch calls; mu guards the fields below it.
	dispatchMu sync.Mutex

	mu         sync.Mutex
	debouncer  *trigger.Debouncer
	state      fsm.State
	clipHotkey string
}

// New creates a dispatcher in the idle recording state.
func New(keys hotkey.Sender, player Player, cooldown time.Duration, clipHotkey string, logger *slog.Logger) *Dispatcher {
	if player == nil {
		player = noopPlayer{}
	}
	return &Dispatcher{
		keys:       keys,
		player:     player,
		logger:     logger,
		debouncer:  trigger.NewDebouncer(cooldown),
		state:      fsm.StateIdle,
		clipHotkey: clipHotkey,
	}
}

// Dispatch runs debounce, guard, hotkey, and cue for one accepted match.
// Debounce history and recording state change only when the hotkey was
// sent. A failed send is reported, never retried.
func (d *Dispatcher) Dispatch(ctx context.Context, match trigger.MatchResult, now time.Time) Result {
	d.dispatchMu.Lock()
	defer d.dispatchMu.Unlock()

	d.mu.Lock()
	binding, ok := Bindings(d.clipHotkey)[match.Action]
	if !ok {
		state := d.state
		d.mu.Unlock()
		return d.finish(Result{
			Action:  match.Action,
			Outcome: OutcomeFailed,
			State:   state,
			Err:     fmt.Errorf("no binding for action %q", match.Action),
		}, match)
	}
	if !d.debouncer.Allow(match.Action, now) {
		state := d.state
		d.mu.Unlock()
		return d.finish(Result{Action: match.Action, Outcome: OutcomeSuppressedDebounce, Hotkey: binding.Hotkey, State: state}, match)
	}
	if !trigger.Permit(match.Action, d.state) {
		state := d.state
		d.mu.Unlock()
		return d.finish(Result{Action: match.Action, Outcome: OutcomeSuppressedGuard, Hotkey: binding.Hotkey, State: state}, match)
	}
	d.mu.Unlock()

	if err := d.send(ctx, binding.Hotkey); err != nil {
		d.player.PlayAsync(sound.CueFailed)
		return d.finish(Result{
			Action:  match.Action,
			Outcome: OutcomeFailed,
			Hotkey:  binding.Hotkey,
			State:   d.State(),
			Err:     fmt.Errorf("send %s for %s: %w", binding.Hotkey, match.Action, err),
		}, match)
	}
	d.player.PlayAsync(binding.Cue)

	d.mu.Lock()
	d.debouncer.Record(match.Action, now)
	if event, ok := trigger.RecordingEvent(match.Action); ok {
		if next, err := fsm.Transition(d.state, event); err == nil {
			d.state = next
		}
	}
	state := d.state
	d.mu.Unlock()

	return d.finish(Result{Action: match.Action, Outcome: OutcomeDispatched, Hotkey: binding.Hotkey, State: state}, match)
}

func (d *Dispatcher) send(ctx context.Context, combo string) error {
	if d.keys == nil {
		return fmt.Errorf("no hotkey sender configured")
	}
	return d.keys.Send(ctx, combo)
}

func (d *Dispatcher) finish(result Result, match trigger.MatchResult) Result {
	if d.logger == nil {
		return result
	}

	attrs := []any{
		"action", string(result.Action),
		"phrase", match.Phrase,
		"score", match.Score,
		"outcome", string(result.Outcome),
		"state", string(result.State),
	}
	switch result.Outcome {
	case OutcomeDispatched:
		d.logger.Info("action dispatched", append(attrs, "hotkey", result.Hotkey)...)
	case OutcomeFailed:
		d.logger.Error("action failed", append(attrs, "error", result.Err.Error())...)
	default:
		d.logger.Debug("action suppressed", attrs...)
	}
	return result
}

// State returns the current recording state.
func (d *Dispatcher) State() fsm.State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Snapshot copies the current state for status reporting.
func (d *Dispatcher) Snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()

	lastFired := make(map[trigger.Action]time.Time, len(trigger.Actions))
	for _, action := range trigger.Actions {
		if at, ok := d.debouncer.LastFired(action); ok {
			lastFired[action] = at
		}
	}
	return Snapshot{
		State:      d.state,
		Cooldown:   d.debouncer.Cooldown(),
		ClipHotkey: d.clipHotkey,
		LastFired:  lastFired,
	}
}

// ResetRecording forces the idle state and returns the previous one.
// It corrects a wrong startup assumption about the overlay.
func (d *Dispatcher) ResetRecording() fsm.State {
	d.mu.Lock()
	defer d.mu.Unlock()
	previous := d.state
	d.state = fsm.StateIdle
	return previous
}

// SetCooldown changes the debounce window without clearing history.
func (d *Dispatcher) SetCooldown(cooldown time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.debouncer.SetCooldown(cooldown)
}

// SetClipHotkey changes the chord sent for clip actions.
func (d *Dispatcher) SetClipHotkey(combo string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clipHotkey = combo
}
