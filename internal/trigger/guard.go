package trigger

import "github.com/rbright/clipthat/internal/fsm"

// Permit reports whether action is allowed in the given recording state.
// Clips are always allowed; start/stop must be a valid fsm transition.
func Permit(action Action, state fsm.State) bool {
	event, ok := RecordingEvent(action)
	if !ok {
		return action == ActionClip
	}
	_, err := fsm.Transition(state, event)
	return err == nil
}

// RecordingEvent maps a recording action to its fsm event.
func RecordingEvent(action Action) (fsm.Event, bool) {
	switch action {
	case ActionStartRecording:
		return fsm.EventStart, true
	case ActionStopRecording:
		return fsm.EventStop, true
	default:
		return "", false
	}
}
