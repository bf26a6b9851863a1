package trigger

import "time"

// DefaultCooldown is the per-action debounce window.
const DefaultCooldown = 2 * time.Second

// DebounceState maps each action to the time it last fired.
type DebounceState map[Action]time.Time

// Allow reports whether action may fire at now given the last-fired state.
func Allow(action Action, now time.Time, state DebounceState, cooldown time.Duration) bool {
	last, ok := state[action]
	if !ok {
		return true
	}
	return now.Sub(last) >= cooldown
}

// Debouncer suppresses repeats of the same action inside a cooldown window.
// It is not safe for concurrent use; the dispatcher serializes access.
type Debouncer struct {
	cooldown time.Duration
	state    DebounceState
}

// NewDebouncer returns a debouncer with an empty history.
// A negative cooldown is treated as zero.
func NewDebouncer(cooldown time.Duration) *Debouncer {
	if cooldown < 0 {
		cooldown = 0
	}
	return &Debouncer{cooldown: cooldown, state: make(DebounceState)}
}

func (d *Debouncer) Allow(action Action, now time.Time) bool {
	return Allow(action, now, d.state, d.cooldown)
}

// Record marks action as fired at now.
func (d *Debouncer) Record(action Action, now time.Time) {
	d.state[action] = now
}

func (d *Debouncer) Cooldown() time.Duration {
	return d.cooldown
}

// SetCooldown changes the window without forgetting history.
func (d *Debouncer) SetCooldown(cooldown time.Duration) {
	if cooldown < 0 {
		cooldown = 0
	}
	d.cooldown = cooldown
}

// LastFired returns when action last fired.
func (d *Debouncer) LastFired(action Action) (time.Time, bool) {
	last, ok := d.state[action]
	return last, ok
}
