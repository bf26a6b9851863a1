package config

import (
	"math"
	"testing"
	"time"

	"github.com/rbright/clipthat/internal/trigger"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	warnings, err := Validate(Default())
	require.NoError(t, err)
	require.Empty(t, warnings)
}

func TestValidateRejectsInvalidFields(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "zero threshold", mutate: func(c *Config) { c.Threshold = 0 }, wantErr: "threshold must be in (0, 1]"},
		{name: "threshold above one", mutate: func(c *Config) { c.Threshold = 1.01 }, wantErr: "threshold"},
		{name: "zero partial threshold", mutate: func(c *Config) { c.PartialThreshold = 0 }, wantErr: "partial_threshold"},
		{name: "negative debounce", mutate: func(c *Config) { c.DebounceSeconds = -1 }, wantErr: "debounce_seconds"},
		{name: "nan threshold", mutate: func(c *Config) { c.Threshold = math.NaN() }, wantErr: "threshold must be in (0, 1]"},
		{name: "nan partial threshold", mutate: func(c *Config) { c.PartialThreshold = math.NaN() }, wantErr: "partial_threshold"},
		{name: "inf threshold", mutate: func(c *Config) { c.Threshold = math.Inf(1) }, wantErr: "threshold"},
		{name: "nan debounce", mutate: func(c *Config) { c.DebounceSeconds = math.NaN() }, wantErr: "debounce_seconds"},
		{name: "inf debounce", mutate: func(c *Config) { c.DebounceSeconds = math.Inf(1) }, wantErr: "debounce_seconds"},
		{name: "huge debounce", mutate: func(c *Config) { c.DebounceSeconds = 1e12 }, wantErr: "debounce_seconds must be in [0, 86400]"},
		{name: "bad hotkey", mutate: func(c *Config) { c.Hotkey = "alt+" }, wantErr: "hotkey"},
		{name: "bad hotkey backend", mutate: func(c *Config) { c.HotkeyBackend = "xdotool" }, wantErr: "hotkey_backend"},
		{name: "bad recognizer backend", mutate: func(c *Config) { c.Recognizer.Backend = "whisper" }, wantErr: "recognizer.backend"},
		{name: "empty vosk url", mutate: func(c *Config) { c.Recognizer.VoskURL = "" }, wantErr: "vosk_url must not be empty"},
		{name: "http vosk url", mutate: func(c *Config) { c.Recognizer.VoskURL = "http://127.0.0.1:2700" }, wantErr: "ws://"},
		{name: "vosk url without host", mutate: func(c *Config) { c.Recognizer.VoskURL = "ws:///path" }, wantErr: "host"},
		{name: "empty riva grpc", mutate: func(c *Config) {
			c.Recognizer.Backend = BackendRiva
			c.Recognizer.RivaGRPC = ""
		}, wantErr: "riva_grpc"},
		{name: "empty riva language", mutate: func(c *Config) {
			c.Recognizer.Backend = BackendRiva
			c.Recognizer.LanguageCode = ""
		}, wantErr: "language_code"},
		{name: "zero dial timeout", mutate: func(c *Config) { c.Recognizer.DialTimeoutMS = 0 }, wantErr: "dial_timeout_ms"},
		{name: "no phrases", mutate: func(c *Config) {
			c.TriggerPhrases = nil
			c.StartRecordingPhrases = []string{" "}
			c.StopRecordingPhrases = nil
		}, wantErr: "at least one trigger phrase"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			_, err := Validate(cfg)
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestValidateWarnsOnInvertedThresholds(t *testing.T) {
	cfg := Default()
	cfg.PartialThreshold = 0.7

	warnings, err := Validate(cfg)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	require.Contains(t, warnings[0].Message, "partial_threshold 0.70 is below threshold 0.85")
}

func TestPhrasesOrderAndCrossActionDuplicates(t *testing.T) {
	cfg := Default()
	cfg.TriggerPhrases = []string{"NVIDIA Clip That", "nvidia go"}
	cfg.StartRecordingPhrases = []string{"nvidia go", "nvidia start recording", ""}
	cfg.StopRecordingPhrases = []string{"nvidia  stop recording", "nvidia clip that"}

	phrases, warnings := Phrases(cfg)
	require.Equal(t, []trigger.Phrase{
		{Text: "nvidia clip that", Action: trigger.ActionClip},
		{Text: "nvidia go", Action: trigger.ActionClip},
		{Text: "nvidia start recording", Action: trigger.ActionStartRecording},
		{Text: "nvidia stop recording", Action: trigger.ActionStopRecording},
	}, phrases)

	require.Len(t, warnings, 3)
	require.Contains(t, warnings[0].Message, `"nvidia go" listed for clip and start_recording; using clip`)
	require.Contains(t, warnings[1].Message, "empty phrase in start_recording_phrases")
	require.Contains(t, warnings[2].Message, `"nvidia clip that" listed for clip and stop_recording`)
}

func TestDurationsAndThresholds(t *testing.T) {
	cfg := Default()
	cfg.DebounceSeconds = 1.5
	require.Equal(t, 1500*time.Millisecond, Debounce(cfg))
	require.Equal(t, 5*time.Second, DialTimeout(cfg))
	require.Equal(t, trigger.Thresholds{Final: 0.85, Partial: 0.90}, Thresholds(cfg))
	require.Equal(t, "ws://127.0.0.1:2700", cfg.Recognizer.Endpoint())

	cfg.Recognizer.Backend = BackendRiva
	require.Equal(t, "127.0.0.1:50051", cfg.Recognizer.Endpoint())
}

func TestParseRejectsNonFiniteValues(t *testing.T) {
	for _, content := range []string{
		"threshold: .nan\npartial_threshold: .nan\n",
		"debounce_seconds: .inf\n",
		"debounce_seconds: 1e12\n",
	} {
		_, _, err := Parse(content, Default())
		require.Error(t, err, content)
	}

	cfg, _, err := Parse("debounce_seconds: 86400\n", Default())
	require.NoError(t, err)
	require.Equal(t, 24*time.Hour, Debounce(cfg))
}
