package hotkey

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseCombo(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want Combo
	}{
		{"alt+f10", Combo{Alt: true, Key: "f10"}},
		{" Alt + F9 ", Combo{Alt: true, Key: "f9"}},
		{"control+shift+p", Combo{Ctrl: true, Shift: true, Key: "p"}},
		{"win+print", Combo{Super: true, Key: "print"}},
		{"cmd+option+return", Combo{Super: true, Alt: true, Key: "enter"}},
		{"meta+f24", Combo{Super: true, Key: "f24"}},
		{"pgdn", Combo{Key: "pagedown"}},
		{"ctrl+7", Combo{Ctrl: true, Key: "7"}},
	}

	for _, tc := range tests {
		t.Run(tc.raw, func(t *testing.T) {
			got, err := ParseCombo(tc.raw)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestParseComboRejectsInvalid(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"":            "must not be empty",
		"alt+":        "empty key",
		"alt+shift":   "missing key",
		"alt+f10+f9":  "more than one key",
		"alt+f25":     "unsupported key",
		"alt+f0":      "unsupported key",
		"hyper+f10":   "unsupported key",
		"alt+section": "unsupported key",
	}

	for raw, want := range tests {
		t.Run(raw, func(t *testing.T) {
			_, err := ParseCombo(raw)
			require.Error(t, err)
			require.Contains(t, err.Error(), want)
		})
	}
}

func TestComboRendering(t *testing.T) {
	t.Parallel()

	combo, err := ParseCombo("shift+ctrl+pageup")
	require.NoError(t, err)
	require.Equal(t, "ctrl+shift+pageup", combo.String())
	require.Equal(t, "CTRL SHIFT", combo.HyprMods())
	require.Equal(t, "Prior", combo.HyprKey())

	combo, err = ParseCombo("alt+f10")
	require.NoError(t, err)
	require.Equal(t, "alt+f10", combo.String())
	require.Equal(t, "ALT", combo.HyprMods())
	require.Equal(t, "F10", combo.HyprKey())

	combo, err = ParseCombo("space")
	require.NoError(t, err)
	require.Equal(t, "", combo.HyprMods())
	require.Equal(t, "Space", combo.HyprKey())
}

func TestNewSelectsBackend(t *testing.T) {
	t.Parallel()

	sender, err := New("hypr")
	require.NoError(t, err)
	require.IsType(t, &Hypr{}, sender)

	sender, err = New("")
	require.NoError(t, err)
	require.IsType(t, &Keybd{}, sender)

	_, err = New("xdotool")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported hotkey backend")
}
