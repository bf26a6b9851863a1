package hotkey

import (
	"context"
	"fmt"
	"strings"
)

// Backend names accepted by hotkey_backend.
const (
	BackendKeybd = "keybd"
	BackendHypr  = "hypr"
)

// Sender injects one key chord.
type Sender interface {
	Send(ctx context.Context, combo string) error
}

// New returns the sender for backend.
func New(backend string) (Sender, error) {
	switch strings.TrimSpace(backend) {
	case "", BackendKeybd:
		return NewKeybd(), nil
	case BackendHypr:
		return NewHypr(), nil
	default:
		return nil, fmt.Errorf("unsupported hotkey backend %q", backend)
	}
}
