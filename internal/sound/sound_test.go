package sound

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rbright/clipthat/internal/config"
	"github.com/stretchr/testify/require"
)

func TestEveryCueHasPCM(t *testing.T) {
	pcm := cuePCM()
	for _, cue := range []Cue{CueClipSaved, CueRecordingStarted, CueRecordingStopped, CueFailed} {
		require.NotEmpty(t, pcm[cue], cue)
	}
	require.Empty(t, pcm[Cue("bogus")])
}

func TestRenderNote(t *testing.T) {
	tests := []struct {
		name string
		n    note
		vol  float64
		want int
	}{
		{name: "100ms", n: note{hz: 440, ms: 100}, vol: 0.2, want: 1600},
		{name: "no frequency", n: note{hz: 0, ms: 100}, vol: 0.2},
		{name: "no duration", n: note{hz: 440, ms: 0}, vol: 0.2},
		{name: "silent", n: note{hz: 440, ms: 100}, vol: 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := renderNote(tc.n, tc.vol)
			require.Len(t, got, tc.want)
			if tc.want > 0 {
				require.Zero(t, got[0])
				require.Zero(t, got[len(got)-1])
			}
		})
	}
}

func TestRenderInsertsGapsBetweenNotes(t *testing.T) {
	got := render([]note{{440, 10}, {880, 10}}, 0.2)
	require.Len(t, got, 2*msToSamples(10)+msToSamples(noteGapMS))
}

func TestCueFileMapsConfigAndExpandsHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg := config.SoundConfig{
		ClipSaved:        "~/clip.wav",
		RecordingStarted: "/abs/start.wav",
		RecordingStopped: " ",
		Failed:           "fail.wav",
	}
	require.Equal(t, filepath.Join(home, "clip.wav"), cueFile(CueClipSaved, cfg))
	require.Equal(t, "/abs/start.wav", cueFile(CueRecordingStarted, cfg))
	require.Empty(t, cueFile(CueRecordingStopped, cfg))
	require.Equal(t, "fail.wav", cueFile(CueFailed, cfg))
	require.Empty(t, cueFile(Cue("bogus"), cfg))
}

func TestEmitCueRespectsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := emitCue(ctx, CueClipSaved, "")
	require.ErrorIs(t, err, context.Canceled)
}

func TestEmitCuePlaysConfiguredFileWithPwPlay(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "pw-play-args.log")
	t.Setenv("PW_ARGS_FILE", argsFile)
	installPwPlayStub(t, `printf '%s\n' "$*" >> "${PW_ARGS_FILE}"`)

	file := filepath.Join(t.TempDir(), "clip.wav")
	require.NoError(t, os.WriteFile(file, []byte("RIFF"), 0o600))

	require.NoError(t, emitCue(context.Background(), CueClipSaved, file))

	data, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	require.Equal(t, "--media-role Notification "+file, strings.TrimSpace(string(data)))
}

func TestPlayFileErrors(t *testing.T) {
	err := playFile(context.Background(), filepath.Join(t.TempDir(), "missing.wav"))
	require.ErrorIs(t, err, os.ErrNotExist)

	installPwPlayStub(t, `echo 'no sink' >&2; exit 1`)
	path := filepath.Join(t.TempDir(), "clip.wav")
	require.NoError(t, os.WriteFile(path, []byte("RIFF"), 0o600))
	err = playFile(context.Background(), path)
	require.ErrorContains(t, err, "pw-play "+path)
	require.ErrorContains(t, err, "no sink")
}

func TestPlayAsyncSerializesCues(t *testing.T) {
	var active, maxActive atomic.Int32
	var mu sync.Mutex
	var played []Cue

	p := New(config.SoundConfig{Enable: true}, nil)
	p.emit = func(_ context.Context, cue Cue, _ string) error {
		n := active.Add(1)
		for {
			prev := maxActive.Load()
			if n <= prev || maxActive.CompareAndSwap(prev, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		active.Add(-1)

		mu.Lock()
		played = append(played, cue)
		mu.Unlock()
		return errors.New("no audio device")
	}

	for i := 0; i < 5; i++ {
		p.PlayAsync(CueClipSaved)
	}
	p.Wait()

	require.Len(t, played, 5)
	require.Equal(t, int32(1), maxActive.Load())
}

func TestPlayerDisabledSkipsCues(t *testing.T) {
	calls := 0
	p := New(config.SoundConfig{Enable: false}, nil)
	p.emit = func(context.Context, Cue, string) error {
		calls++
		return nil
	}

	p.PlayAsync(CueFailed)
	p.Wait()
	require.NoError(t, p.Play(context.Background(), CueFailed))
	require.Zero(t, calls)

	p.SetConfig(config.SoundConfig{Enable: true, Failed: "/tmp/fail.wav"})
	var gotPath string
	p.emit = func(_ context.Context, _ Cue, path string) error {
		calls++
		gotPath = path
		return nil
	}
	require.NoError(t, p.Play(context.Background(), CueFailed))
	require.Equal(t, 1, calls)
	require.Equal(t, "/tmp/fail.wav", gotPath)
}

func TestPlayReturnsEmitError(t *testing.T) {
	p := New(config.SoundConfig{Enable: true}, nil)
	p.emit = func(context.Context, Cue, string) error { return errors.New("boom") }

	err := p.Play(context.Background(), CueRecordingStarted)
	require.EqualError(t, err, "boom")
}

func TestPlayerRecoversFromPanickingCue(t *testing.T) {
	var logBuf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logBuf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	p := New(config.SoundConfig{Enable: true}, logger)
	p.emit = func(context.Context, Cue, string) error { panic("pulse exploded") }

	p.PlayAsync(CueClipSaved)
	p.Wait()
	require.Contains(t, logBuf.String(), "cue clip_saved panicked: pulse exploded")

	err := p.Play(context.Background(), CueFailed)
	require.EqualError(t, err, "cue failed panicked: pulse exploded")

	// The mutex is released after a panic.
	p.emit = func(context.Context, Cue, string) error { return nil }
	require.NoError(t, p.Play(context.Background(), CueFailed))
}

func installPwPlayStub(t *testing.T, body string) {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "pw-play")
	script := "#!/usr/bin/env bash\nset -euo pipefail\n" + body + "\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	t.Setenv("PATH", dir+":"+os.Getenv("PATH"))
}
