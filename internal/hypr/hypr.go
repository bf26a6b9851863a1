// Package hypr talks to Hyprland through hyprctl.
package hypr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const binary = "hyprctl"

// waitDelay bounds how long a killed hyprctl may hold its output pipes.
const waitDelay = 200 * time.Millisecond

// Window is the subset of `hyprctl -j activewindow` clipthat reads.
type Window struct {
	Address string `json:"address"`
	Class   string `json:"class"`
	Title   string `json:"title"`
}

// Available returns the hyprctl path found on PATH.
func Available() (string, error) {
	path, err := exec.LookPath(binary)
	if err != nil {
		return "", fmt.Errorf("hyprctl not found in PATH: %w", err)
	}
	return path, nil
}

// ActiveWindow returns the focused window. It fails when nothing has focus.
func ActiveWindow(ctx context.Context) (Window, error) {
	out, err := hyprctl(ctx, "-j", "activewindow")
	if err != nil {
		return Window{}, err
	}

	var window Window
	if err := json.Unmarshal(out, &window); err != nil {
		return Window{}, fmt.Errorf("decode activewindow: %w", err)
	}
	window.Address = strings.TrimSpace(window.Address)
	window.Class = strings.TrimSpace(window.Class)
	window.Title = strings.TrimSpace(window.Title)
	if window.Address == "" {
		return Window{}, errors.New("no focused window (empty address)")
	}
	return window, nil
}

// SendShortcut presses mods+key in the window at address.
func SendShortcut(ctx context.Context, mods, key, address string) error {
	if key == "" || address == "" {
		return errors.New("sendshortcut requires a key and a window address")
	}
	payload := fmt.Sprintf("%s,%s,address:%s", mods, key, address)
	_, err := hyprctl(ctx, "--quiet", "dispatch", "sendshortcut", payload)
	return err
}

func hyprctl(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.WaitDelay = waitDelay
	out, err := cmd.CombinedOutput()
	if err == nil {
		return out, nil
	}
	call := strings.Join(args, " ")
	if detail := strings.TrimSpace(string(out)); detail != "" {
		return nil, fmt.Errorf("hyprctl %s: %w: %s", call, err, detail)
	}
	return nil, fmt.Errorf("hyprctl %s: %w", call, err)
}
