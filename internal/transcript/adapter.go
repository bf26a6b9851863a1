// Package transcript adapts recognizer callbacks into matchable fragments.
package transcript

import (
	"strings"
	"time"

	"github.com/rbright/clipthat/internal/trigger"
)

// Event is one recognizer hypothesis as delivered by a backend.
type Event struct {
	Text    string
	IsFinal bool
}

// Adapter stamps events with arrival time and confidence.
// It keeps no state between events.
type Adapter struct {
	now func() time.Time
}

// NewAdapter returns an adapter using clock, or time.Now when clock is nil.
func NewAdapter(clock func() time.Time) Adapter {
	if clock == nil {
		clock = time.Now
	}
	return Adapter{now: clock}
}

// Fragment converts exactly one event into one fragment.
func (a Adapter) Fragment(event Event) trigger.Fragment {
	now := a.now
	if now == nil {
		now = time.Now
	}

	confidence := trigger.ConfidencePartial
	if event.IsFinal {
		confidence = trigger.ConfidenceFinal
	}

	return trigger.Fragment{
		Text:       strings.Join(strings.Fields(event.Text), " "),
		Confidence: confidence,
		ReceivedAt: now(),
	}
}
