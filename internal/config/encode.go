package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type yamlFile struct {
	TriggerPhrases        []string `yaml:"trigger_phrases"`
	StartRecordingPhrases []string `yaml:"start_recording_phrases"`
	StopRecordingPhrases  []string `yaml:"stop_recording_phrases"`
	Threshold             float64  `yaml:"threshold"`
	PartialThreshold      float64  `yaml:"partial_threshold"`
	Hotkey                string   `yaml:"hotkey"`
	DebounceSeconds       float64  `yaml:"debounce_seconds"`
	HotkeyBackend         string   `yaml:"hotkey_backend"`

	Recognizer struct {
		Backend       string `yaml:"backend"`
		VoskURL       string `yaml:"vosk_url"`
		RivaGRPC      string `yaml:"riva_grpc"`
		LanguageCode  string `yaml:"language_code"`
		Model         string `yaml:"model"`
		DialTimeoutMS int    `yaml:"dial_timeout_ms"`
	} `yaml:"recognizer"`
	Audio struct {
		Input    string `yaml:"input"`
		Fallback string `yaml:"fallback"`
	} `yaml:"audio"`
	Sound struct {
		Enable           bool   `yaml:"enable"`
		ClipSaved        string `yaml:"clip_saved"`
		RecordingStarted string `yaml:"recording_started"`
		RecordingStopped string `yaml:"recording_stopped"`
		Failed           string `yaml:"failed"`
	} `yaml:"sound"`
	Debug struct {
		Verbose      bool `yaml:"verbose"`
		FragmentDump bool `yaml:"fragment_dump"`
	} `yaml:"debug"`
}

const fileHeader = "# clipthat configuration\n# Phrases are matched case-insensitively; add mishearings as extra phrases.\n"

// Encode renders cfg as YAML accepted by Parse.
func Encode(cfg Config) (string, error) {
	var file yamlFile
	file.TriggerPhrases = cfg.TriggerPhrases
	file.StartRecordingPhrases = cfg.StartRecordingPhrases
	file.StopRecordingPhrases = cfg.StopRecordingPhrases
	file.Threshold = cfg.Threshold
	file.PartialThreshold = cfg.PartialThreshold
	file.Hotkey = cfg.Hotkey
	file.DebounceSeconds = cfg.DebounceSeconds
	file.HotkeyBackend = cfg.HotkeyBackend

	file.Recognizer.Backend = cfg.Recognizer.Backend
	file.Recognizer.VoskURL = cfg.Recognizer.VoskURL
	file.Recognizer.RivaGRPC = cfg.Recognizer.RivaGRPC
	file.Recognizer.LanguageCode = cfg.Recognizer.LanguageCode
	file.Recognizer.Model = cfg.Recognizer.Model
	file.Recognizer.DialTimeoutMS = cfg.Recognizer.DialTimeoutMS

	file.Audio.Input = cfg.Audio.Input
	file.Audio.Fallback = cfg.Audio.Fallback

	file.Sound.Enable = cfg.Sound.Enable
	file.Sound.ClipSaved = cfg.Sound.ClipSaved
	file.Sound.RecordingStarted = cfg.Sound.RecordingStarted
	file.Sound.RecordingStopped = cfg.Sound.RecordingStopped
	file.Sound.Failed = cfg.Sound.Failed

	file.Debug.Verbose = cfg.Debug.Verbose
	file.Debug.FragmentDump = cfg.Debug.FragmentDump

	out, err := yaml.Marshal(file)
	if err != nil {
		return "", fmt.Errorf("encode config: %w", err)
	}
	return string(out), nil
}

// WriteDefault creates path with the default configuration.
// It fails with an error wrapping os.ErrExist when the file is already present.
func WriteDefault(path string) error {
	body, err := Encode(Default())
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("create config %q: %w", path, err)
	}
	if _, err := file.WriteString(fileHeader + body); err != nil {
		_ = file.Close()
		return fmt.Errorf("write config %q: %w", path, err)
	}
	return file.Close()
}
