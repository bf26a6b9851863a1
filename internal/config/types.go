// Package config resolves, parses, validates, and defaults clipthat configuration.
package config

// Config is the fully materialized runtime configuration used by clipthat.
type Config struct {
	TriggerPhrases        []string
	StartRecordingPhrases []string
	StopRecordingPhrases  []string
	Threshold             float64
	PartialThreshold      float64
	Hotkey                string
	DebounceSeconds       float64
	HotkeyBackend         string
	Recognizer            RecognizerConfig
	Audio                 AudioConfig
	Sound                 SoundConfig
	Debug                 DebugConfig
}

// RecognizerConfig selects and addresses the speech recognition backend.
type RecognizerConfig struct {
	Backend       string
	VoskURL       string
	RivaGRPC      string
	LanguageCode  string
	Model         string
	DialTimeoutMS int
}

// AudioConfig controls preferred and fallback input-source selection.
type AudioConfig struct {
	Input    string
	Fallback string
}

// SoundConfig controls action cues. Empty file paths use synthesized tones.
type SoundConfig struct {
	Enable           bool
	ClipSaved        string
	RecordingStarted string
	RecordingStopped string
	Failed           string
}

// DebugConfig controls log verbosity and optional debug artifacts.
type DebugConfig struct {
	Verbose      bool
	FragmentDump bool
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}
