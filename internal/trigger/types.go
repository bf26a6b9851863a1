// Package trigger turns recognized speech into candidate overlay actions.
package trigger

import (
	"fmt"
	"time"
)

// Action is the unit of dispatch, debounce, and recording-state guarding.
type Action string

const (
	ActionClip           Action = "clip"
	ActionStartRecording Action = "start_recording"
	ActionStopRecording  Action = "stop_recording"
)

// Actions lists every action in configuration order.
var Actions = []Action{ActionClip, ActionStartRecording, ActionStopRecording}

// ParseAction validates a raw action tag.
func ParseAction(raw string) (Action, error) {
	for _, action := range Actions {
		if string(action) == raw {
			return action, nil
		}
	}
	return "", fmt.Errorf("unknown action %q", raw)
}

// Confidence is the settledness of a recognizer hypothesis.
type Confidence string

const (
	ConfidencePartial Confidence = "partial"
	ConfidenceFinal   Confidence = "final"
)

// Fragment is one recognizer callback normalized for matching.
type Fragment struct {
	Text       string
	Confidence Confidence
	ReceivedAt time.Time
}

// Phrase is one configured trigger phrase bound to an action.
type Phrase struct {
	Text   string
	Action Action
}

// Thresholds holds the acceptance bounds per confidence level.
type Thresholds struct {
	Final   float64
	Partial float64
}

// For returns the threshold that applies to confidence.
// Anything that is not explicitly final is treated as partial.
func (t Thresholds) For(confidence Confidence) float64 {
	if confidence == ConfidenceFinal {
		return t.Final
	}
	return t.Partial
}

// MatchResult is the best phrase for one fragment.
type MatchResult struct {
	Action Action
	Phrase string
	Score  float64
}
