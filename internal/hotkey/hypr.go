package hotkey

import (
	"context"
	"fmt"
	"time"

	"github.com/rbright/clipthat/internal/hypr"
)

// Hypr sends chords to the active Hyprland window via sendshortcut.
// Timeout bounds one whole Send, window lookup included.
type Hypr struct {
	Attempts int
	Delay    time.Duration
	Timeout  time.Duration
}

func NewHypr() *Hypr {
	return &Hypr{Attempts: 5, Delay: 10 * time.Millisecond, Timeout: time.Second}
}

func (h *Hypr) Send(ctx context.Context, raw string) error {
	combo, err := ParseCombo(raw)
	if err != nil {
		return err
	}
	if h.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.Timeout)
		defer cancel()
	}

	window, err := activeWindowWithRetry(ctx, h.Attempts, h.Delay)
	if err != nil {
		return err
	}
	return hypr.SendShortcut(ctx, combo.HyprMods(), combo.HyprKey(), window.Address)
}

func activeWindowWithRetry(ctx context.Context, attempts int, delay time.Duration) (hypr.Window, error) {
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		window, err := hypr.ActiveWindow(ctx)
		if err == nil {
			return window, nil
		}
		lastErr = err
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return hypr.Window{}, ctx.Err()
		case <-time.After(delay):
		}
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("active window unavailable")
	}
	return hypr.Window{}, fmt.Errorf("resolve active window: %w", lastErr)
}
