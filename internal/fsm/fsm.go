// Package fsm models the believed recording state of the capture overlay.
//
// The overlay cannot be queried, so the state is only what clipthat last
// asked for.
package fsm

import (
	"errors"
	"fmt"
)

type State string

type Event string

const (
	StateIdle      State = "idle"
	StateRecording State = "recording"
)

const (
	EventStart Event = "start"
	EventStop  Event = "stop"
)

// ErrInvalidTransition is wrapped by Transition when event does not apply
// to the current state.
var ErrInvalidTransition = errors.New("invalid transition")

var transitions = map[State]map[Event]State{
	StateIdle:      {EventStart: StateRecording},
	StateRecording: {EventStop: StateIdle},
}

// Transition returns the state reached by applying event to current. On
// error the current state is returned unchanged.
func Transition(current State, event Event) (State, error) {
	edges, ok := transitions[current]
	if !ok {
		return current, fmt.Errorf("unknown state %q", current)
	}
	next, ok := edges[event]
	if !ok {
		return current, fmt.Errorf("%w: %s --(%s)--> ?", ErrInvalidTransition, current, event)
	}
	return next, nil
}

// Recording reports whether state represents an active recording.
func (s State) Recording() bool {
	return s == StateRecording
}
