//go:build !linux

package hotkey

import (
	"context"
	"errors"
)

var errKeybdUnsupported = errors.New("keybd hotkey backend is only supported on linux")

// Keybd is unavailable off linux; use the hypr backend there.
type Keybd struct{}

func NewKeybd() *Keybd {
	return &Keybd{}
}

func (k *Keybd) Warmup() error {
	return errKeybdUnsupported
}

func (k *Keybd) Send(context.Context, string) error {
	return errKeybdUnsupported
}
