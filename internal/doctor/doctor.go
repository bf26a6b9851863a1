// Package doctor runs readiness checks for config, recognizer, audio,
// hotkey injection, and cue playback.
package doctor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/rbright/clipthat/internal/audio"
	"github.com/rbright/clipthat/internal/config"
	"github.com/rbright/clipthat/internal/hotkey"
	"github.com/rbright/clipthat/internal/hypr"
	"github.com/rbright/clipthat/internal/riva"
	"github.com/rbright/clipthat/internal/vosk"
)

const probeTimeout = 2 * time.Second

// uinputPath is the device keybd_event writes to.
var uinputPath = "/dev/uinput"

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders one "[OK|FAIL] name: message" line per check.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		fmt.Fprintf(&b, "[%s] %s: %s\n", status, check.Name, check.Message)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Run executes every check for a loaded config.
func Run(ctx context.Context, loaded config.Loaded) Report {
	cfg := loaded.Config
	checks := []Check{checkConfig(loaded)}

	checks = append(checks, checkRecognizer(ctx, cfg.Recognizer))
	checks = append(checks, checkAudioSelection(ctx, cfg))
	checks = append(checks, checkHotkey(cfg.HotkeyBackend)...)
	if check, ok := checkSound(cfg.Sound); ok {
		checks = append(checks, check)
	}

	return Report{Checks: checks}
}

func checkConfig(loaded config.Loaded) Check {
	message := fmt.Sprintf("loaded %q", loaded.Path)
	if !loaded.Exists {
		message = fmt.Sprintf("using defaults (%q not found)", loaded.Path)
	}
	if n := len(loaded.Warnings); n > 0 && loaded.Exists {
		message = fmt.Sprintf("%s with %d warning(s)", message, n)
	}
	phrases, _ := config.Phrases(loaded.Config)
	message = fmt.Sprintf("%s; %d phrases", message, len(phrases))
	return Check{Name: "config", Pass: true, Message: message}
}

// checkRecognizer completes a websocket handshake (vosk) or waits for gRPC
// readiness (riva) against the configured endpoint.
func checkRecognizer(ctx context.Context, cfg config.RecognizerConfig) Check {
	name := "recognizer." + strings.ToLower(cfg.Backend)
	endpoint := strings.TrimSpace(cfg.Endpoint())

	var err error
	switch strings.ToLower(cfg.Backend) {
	case config.BackendVosk:
		err = vosk.Probe(ctx, endpoint, probeTimeout)
	case config.BackendRiva:
		err = riva.Probe(ctx, endpoint, probeTimeout)
	default:
		return Check{Name: "recognizer", Pass: false, Message: fmt.Sprintf("unsupported backend %q", cfg.Backend)}
	}
	if err != nil {
		return Check{Name: name, Pass: false, Message: err.Error()}
	}
	return Check{Name: name, Pass: true, Message: fmt.Sprintf("reachable at %s", endpoint)}
}

func checkAudioSelection(ctx context.Context, cfg config.Config) Check {
	selection, err := audio.SelectDevice(ctx, cfg.Audio.Input, cfg.Audio.Fallback)
	if err != nil {
		return Check{Name: "audio.device", Pass: false, Message: err.Error()}
	}
	message := fmt.Sprintf("selected %q", selection.Device.ID)
	if selection.Warning != "" {
		message = message + " (" + selection.Warning + ")"
	}
	return Check{Name: "audio.device", Pass: true, Message: message}
}

func checkHotkey(backend string) []Check {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case hotkey.BackendHypr:
		checks := []Check{checkEnv("HYPRLAND_INSTANCE_SIGNATURE", func(v string) bool {
			return strings.TrimSpace(v) != ""
		}, "Hyprland session detected", "HYPRLAND_INSTANCE_SIGNATURE is empty")}

		path, err := hypr.Available()
		if err != nil {
			return append(checks, Check{Name: "hotkey.hypr", Pass: false, Message: err.Error()})
		}
		return append(checks, Check{Name: "hotkey.hypr", Pass: true, Message: fmt.Sprintf("found at %s", path)})
	case hotkey.BackendKeybd:
		if runtime.GOOS != "linux" {
			return []Check{{Name: "hotkey.keybd", Pass: false, Message: "keybd backend requires linux uinput"}}
		}
		return []Check{checkUinput(uinputPath)}
	default:
		return []Check{{Name: "hotkey", Pass: false, Message: fmt.Sprintf("unsupported backend %q", backend)}}
	}
}

func checkUinput(path string) Check {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return Check{
			Name:    "hotkey.keybd",
			Pass:    false,
			Message: fmt.Sprintf("%s is not writable: %v (add yourself to the input group or load the uinput module)", path, err),
		}
	}
	_ = f.Close()
	return Check{Name: "hotkey.keybd", Pass: true, Message: fmt.Sprintf("%s is writable", path)}
}

// checkSound verifies pw-play only when cue files are configured; synth
// cues need nothing beyond the Pulse connection.
func checkSound(cfg config.SoundConfig) (Check, bool) {
	if !cfg.Enable {
		return Check{}, false
	}
	for _, file := range []string{cfg.ClipSaved, cfg.RecordingStarted, cfg.RecordingStopped, cfg.Failed} {
		if strings.TrimSpace(file) != "" {
			return checkBinary("pw-play", "plays configured cue files"), true
		}
	}
	return Check{}, false
}

func checkEnv(name string, predicate func(string) bool, okMsg, failMsg string) Check {
	if predicate(os.Getenv(name)) {
		return Check{Name: name, Pass: true, Message: okMsg}
	}
	return Check{Name: name, Pass: false, Message: failMsg}
}

func checkBinary(bin string, okMsg string) Check {
	path, err := exec.LookPath(bin)
	if err != nil {
		return Check{Name: bin, Pass: false, Message: fmt.Sprintf("binary not found in PATH: %s", bin)}
	}
	return Check{Name: bin, Pass: true, Message: fmt.Sprintf("found at %s (%s)", path, okMsg)}
}
