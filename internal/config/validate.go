package config

import (
	"fmt"
	"math"
	"net/url"
	"strings"
	"time"

	"github.com/rbright/clipthat/internal/hotkey"
	"github.com/rbright/clipthat/internal/trigger"
)

// maxDebounceSeconds keeps Debounce well inside time.Duration.
const maxDebounceSeconds = 86400

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if !inUnitRange(cfg.Threshold) {
		return nil, fmt.Errorf("threshold must be in (0, 1], got %v", cfg.Threshold)
	}
	if !inUnitRange(cfg.PartialThreshold) {
		return nil, fmt.Errorf("partial_threshold must be in (0, 1], got %v", cfg.PartialThreshold)
	}
	if math.IsNaN(cfg.DebounceSeconds) || cfg.DebounceSeconds < 0 || cfg.DebounceSeconds > maxDebounceSeconds {
		return nil, fmt.Errorf("debounce_seconds must be in [0, %d], got %v", maxDebounceSeconds, cfg.DebounceSeconds)
	}
	if _, err := hotkey.ParseCombo(cfg.Hotkey); err != nil {
		return nil, fmt.Errorf("hotkey: %w", err)
	}
	switch cfg.HotkeyBackend {
	case hotkey.BackendKeybd, hotkey.BackendHypr:
	default:
		return nil, fmt.Errorf("hotkey_backend must be one of: keybd, hypr")
	}

	if err := validateRecognizer(cfg.Recognizer); err != nil {
		return nil, err
	}

	phrases, phraseWarnings := Phrases(cfg)
	if len(phrases) == 0 {
		return nil, fmt.Errorf("at least one trigger phrase is required")
	}
	warnings = append(warnings, phraseWarnings...)

	if cfg.PartialThreshold < cfg.Threshold {
		warnings = append(warnings, Warning{Message: fmt.Sprintf(
			"partial_threshold %.2f is below threshold %.2f; partial hypotheses will match more eagerly than final ones",
			cfg.PartialThreshold, cfg.Threshold,
		)})
	}

	return warnings, nil
}

// inUnitRange reports v in (0, 1]. NaN is rejected.
func inUnitRange(v float64) bool {
	return v > 0 && v <= 1
}

func validateRecognizer(cfg RecognizerConfig) error {
	switch cfg.Backend {
	case BackendVosk:
		if cfg.VoskURL == "" {
			return fmt.Errorf("recognizer.vosk_url must not be empty")
		}
		parsed, err := url.Parse(cfg.VoskURL)
		if err != nil {
			return fmt.Errorf("recognizer.vosk_url: %w", err)
		}
		if parsed.Scheme != "ws" && parsed.Scheme != "wss" {
			return fmt.Errorf("recognizer.vosk_url must use ws:// or wss://")
		}
		if parsed.Host == "" {
			return fmt.Errorf("recognizer.vosk_url must include a host")
		}
	case BackendRiva:
		if cfg.RivaGRPC == "" {
			return fmt.Errorf("recognizer.riva_grpc must not be empty")
		}
		if cfg.LanguageCode == "" {
			return fmt.Errorf("recognizer.language_code must not be empty")
		}
	default:
		return fmt.Errorf("recognizer.backend must be one of: vosk, riva")
	}
	if cfg.DialTimeoutMS <= 0 {
		return fmt.Errorf("recognizer.dial_timeout_ms must be > 0")
	}
	return nil
}

// Phrases builds the ordered matcher phrase set: clip, then start, then stop.
// A phrase listed under more than one action keeps its first action.
func Phrases(cfg Config) ([]trigger.Phrase, []Warning) {
	groups := []struct {
		key     string
		action  trigger.Action
		phrases []string
	}{
		{"trigger_phrases", trigger.ActionClip, cfg.TriggerPhrases},
		{"start_recording_phrases", trigger.ActionStartRecording, cfg.StartRecordingPhrases},
		{"stop_recording_phrases", trigger.ActionStopRecording, cfg.StopRecordingPhrases},
	}

	warnings := make([]Warning, 0)
	seen := make(map[string]trigger.Action)
	out := make([]trigger.Phrase, 0)
	for _, group := range groups {
		for _, raw := range group.phrases {
			text := trigger.Normalize(raw)
			if text == "" {
				warnings = append(warnings, Warning{Message: fmt.Sprintf("empty phrase in %s dropped", group.key)})
				continue
			}
			if owner, ok := seen[text]; ok {
				if owner != group.action {
					warnings = append(warnings, Warning{Message: fmt.Sprintf(
						"phrase %q listed for %s and %s; using %s", text, owner, group.action, owner,
					)})
				}
				continue
			}
			seen[text] = group.action
			out = append(out, trigger.Phrase{Text: text, Action: group.action})
		}
	}
	return out, warnings
}

// Thresholds returns the matcher acceptance bounds.
func Thresholds(cfg Config) trigger.Thresholds {
	return trigger.Thresholds{Final: cfg.Threshold, Partial: cfg.PartialThreshold}
}

// Endpoint returns the address of the selected backend.
func (cfg RecognizerConfig) Endpoint() string {
	if strings.EqualFold(cfg.Backend, BackendRiva) {
		return cfg.RivaGRPC
	}
	return cfg.VoskURL
}

// Debounce returns debounce_seconds as a duration.
func Debounce(cfg Config) time.Duration {
	return time.Duration(cfg.DebounceSeconds * float64(time.Second))
}

// DialTimeout returns recognizer.dial_timeout_ms as a duration.
func DialTimeout(cfg Config) time.Duration {
	return time.Duration(cfg.Recognizer.DialTimeoutMS) * time.Millisecond
}
