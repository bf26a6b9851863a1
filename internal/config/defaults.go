package config

// Recognizer backends.
const (
	BackendVosk = "vosk"
	BackendRiva = "riva"
)

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	return Config{
		TriggerPhrases: []string{
			"nvidia clip that",
			"nvideo clip that",
			"nvidia clip it",
			"nvideo clip it",
			"nvidia clip dat",
			"nvidia klip that",
			"invidia clip that",
		},
		StartRecordingPhrases: []string{"nvidia start recording"},
		StopRecordingPhrases:  []string{"nvidia stop recording"},
		Threshold:             0.85,
		PartialThreshold:      0.90,
		Hotkey:                "alt+f10",
		DebounceSeconds:       2.0,
		HotkeyBackend:         "keybd",
		Recognizer: RecognizerConfig{
			Backend:       BackendVosk,
			VoskURL:       "ws://127.0.0.1:2700",
			RivaGRPC:      "127.0.0.1:50051",
			LanguageCode:  "en-US",
			DialTimeoutMS: 5000,
		},
		Audio: AudioConfig{
			Input:    "default",
			Fallback: "default",
		},
		Sound: SoundConfig{Enable: true},
	}
}
