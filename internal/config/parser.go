package config

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

type yamlConfig struct {
	TriggerPhrases        *phraseList `yaml:"trigger_phrases"`
	StartRecordingPhrases *phraseList `yaml:"start_recording_phrases"`
	StopRecordingPhrases  *phraseList `yaml:"stop_recording_phrases"`
	Threshold             *float64    `yaml:"threshold"`
	PartialThreshold      *float64    `yaml:"partial_threshold"`
	Hotkey                *string     `yaml:"hotkey"`
	DebounceSeconds       *float64    `yaml:"debounce_seconds"`
	HotkeyBackend         *string     `yaml:"hotkey_backend"`

	Recognizer *yamlRecognizer `yaml:"recognizer"`
	Audio      *yamlAudio      `yaml:"audio"`
	Sound      *yamlSound      `yaml:"sound"`
	Debug      *yamlDebug      `yaml:"debug"`
}

type yamlRecognizer struct {
	Backend       *string `yaml:"backend"`
	VoskURL       *string `yaml:"vosk_url"`
	RivaGRPC      *string `yaml:"riva_grpc"`
	LanguageCode  *string `yaml:"language_code"`
	Model         *string `yaml:"model"`
	DialTimeoutMS *int    `yaml:"dial_timeout_ms"`
}

type yamlAudio struct {
	Input    *string `yaml:"input"`
	Fallback *string `yaml:"fallback"`
}

type yamlSound struct {
	Enable           *bool   `yaml:"enable"`
	ClipSaved        *string `yaml:"clip_saved"`
	RecordingStarted *string `yaml:"recording_started"`
	RecordingStopped *string `yaml:"recording_stopped"`
	Failed           *string `yaml:"failed"`
}

type yamlDebug struct {
	Verbose      *bool `yaml:"verbose"`
	FragmentDump *bool `yaml:"fragment_dump"`
}

// phraseList accepts a sequence of phrases or a single scalar phrase and
// remembers the source line of each entry.
type phraseList []phraseEntry

type phraseEntry struct {
	Text string
	Line int
}

func (l *phraseList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		*l = phraseList{{Text: value.Value, Line: value.Line}}
		return nil
	case yaml.SequenceNode:
		out := make(phraseList, 0, len(value.Content))
		for _, item := range value.Content {
			if item.Kind != yaml.ScalarNode {
				return fmt.Errorf("line %d: phrase must be a string", item.Line)
			}
			out = append(out, phraseEntry{Text: item.Value, Line: item.Line})
		}
		*l = out
		return nil
	default:
		return fmt.Errorf("line %d: expected phrase list or single phrase", value.Line)
	}
}

// Parse decodes YAML content over base and validates the result.
func Parse(content string, base Config) (Config, []Warning, error) {
	cfg := base
	warnings := make([]Warning, 0)

	if strings.TrimSpace(content) != "" {
		decoder := yaml.NewDecoder(strings.NewReader(content))
		decoder.KnownFields(true)

		var payload yamlConfig
		err := decoder.Decode(&payload)
		switch {
		case errors.Is(err, io.EOF):
			// Comments only.
		case err != nil:
			return Config{}, nil, err
		default:
			var extra yaml.Node
			if err := decoder.Decode(&extra); !errors.Is(err, io.EOF) {
				return Config{}, nil, fmt.Errorf("config must contain a single YAML document")
			}
			warnings = append(warnings, payload.applyTo(&cfg)...)
		}
	}

	validatedWarnings, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	warnings = append(warnings, validatedWarnings...)
	return cfg, warnings, nil
}

func (payload yamlConfig) applyTo(cfg *Config) []Warning {
	warnings := make([]Warning, 0)

	applyPhrases := func(key string, list *phraseList, dst *[]string) {
		if list == nil {
			return
		}
		out := make([]string, 0, len(*list))
		for _, entry := range *list {
			text := strings.TrimSpace(entry.Text)
			if text == "" {
				warnings = append(warnings, Warning{Line: entry.Line, Message: fmt.Sprintf("empty phrase in %s dropped", key)})
				continue
			}
			out = append(out, text)
		}
		*dst = out
	}
	applyPhrases("trigger_phrases", payload.TriggerPhrases, &cfg.TriggerPhrases)
	applyPhrases("start_recording_phrases", payload.StartRecordingPhrases, &cfg.StartRecordingPhrases)
	applyPhrases("stop_recording_phrases", payload.StopRecordingPhrases, &cfg.StopRecordingPhrases)

	if payload.Threshold != nil {
		cfg.Threshold = *payload.Threshold
	}
	if payload.PartialThreshold != nil {
		cfg.PartialThreshold = *payload.PartialThreshold
	}
	if payload.Hotkey != nil {
		cfg.Hotkey = strings.TrimSpace(*payload.Hotkey)
	}
	if payload.DebounceSeconds != nil {
		cfg.DebounceSeconds = *payload.DebounceSeconds
	}
	if payload.HotkeyBackend != nil {
		cfg.HotkeyBackend = strings.ToLower(strings.TrimSpace(*payload.HotkeyBackend))
	}

	if payload.Recognizer != nil {
		if payload.Recognizer.Backend != nil {
			cfg.Recognizer.Backend = strings.ToLower(strings.TrimSpace(*payload.Recognizer.Backend))
		}
		if payload.Recognizer.VoskURL != nil {
			cfg.Recognizer.VoskURL = strings.TrimSpace(*payload.Recognizer.VoskURL)
		}
		if payload.Recognizer.RivaGRPC != nil {
			cfg.Recognizer.RivaGRPC = strings.TrimSpace(*payload.Recognizer.RivaGRPC)
		}
		if payload.Recognizer.LanguageCode != nil {
			cfg.Recognizer.LanguageCode = strings.TrimSpace(*payload.Recognizer.LanguageCode)
		}
		if payload.Recognizer.Model != nil {
			cfg.Recognizer.Model = strings.TrimSpace(*payload.Recognizer.Model)
		}
		if payload.Recognizer.DialTimeoutMS != nil {
			cfg.Recognizer.DialTimeoutMS = *payload.Recognizer.DialTimeoutMS
		}
	}

	if payload.Audio != nil {
		if payload.Audio.Input != nil {
			cfg.Audio.Input = *payload.Audio.Input
		}
		if payload.Audio.Fallback != nil {
			cfg.Audio.Fallback = *payload.Audio.Fallback
		}
	}

	if payload.Sound != nil {
		if payload.Sound.Enable != nil {
			cfg.Sound.Enable = *payload.Sound.Enable
		}
		if payload.Sound.ClipSaved != nil {
			cfg.Sound.ClipSaved = strings.TrimSpace(*payload.Sound.ClipSaved)
		}
		if payload.Sound.RecordingStarted != nil {
			cfg.Sound.RecordingStarted = strings.TrimSpace(*payload.Sound.RecordingStarted)
		}
		if payload.Sound.RecordingStopped != nil {
			cfg.Sound.RecordingStopped = strings.TrimSpace(*payload.Sound.RecordingStopped)
		}
		if payload.Sound.Failed != nil {
			cfg.Sound.Failed = strings.TrimSpace(*payload.Sound.Failed)
		}
	}

	if payload.Debug != nil {
		if payload.Debug.Verbose != nil {
			cfg.Debug.Verbose = *payload.Debug.Verbose
		}
		if payload.Debug.FragmentDump != nil {
			cfg.Debug.FragmentDump = *payload.Debug.FragmentDump
		}
	}

	return warnings
}
