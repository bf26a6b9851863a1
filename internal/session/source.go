package session

import (
	"context"
	"errors"

	"github.com/rbright/clipthat/internal/transcript"
)

// ErrSourceClosed is reported when the recognizer ends without an error of
// its own.
var ErrSourceClosed = errors.New("recognizer stream closed unexpectedly")

// Source is the recognizer feeding a session.
type Source interface {
	Start(context.Context) error
	Events() (<-chan transcript.Event, error)
	Err() error
	Stop(context.Context) error
}
