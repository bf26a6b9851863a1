// Package sound plays short action cues.
package sound

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/jfreymuth/pulse"
	"github.com/rbright/clipthat/internal/config"
)

// Cue names one notification sound.
type Cue string

const (
	CueClipSaved        Cue = "clip_saved"
	CueRecordingStarted Cue = "recording_started"
	CueRecordingStopped Cue = "recording_stopped"
	CueFailed           Cue = "failed"
)

const fileTimeout = 4 * time.Second

type emitFunc func(ctx context.Context, cue Cue, path string) error

// Player serializes cue playback so cues never overlap.
type Player struct {
	logger *slog.Logger
	emit   emitFunc

	cfgMu sync.Mutex
	cfg   config.SoundConfig

	soundMu sync.Mutex
	pending sync.WaitGroup
}

// New creates a player from sound config.
func New(cfg config.SoundConfig, logger *slog.Logger) *Player {
	return &Player{cfg: cfg, logger: logger, emit: emitCue}
}

// SetConfig replaces the sound config used by later cues.
func (p *Player) SetConfig(cfg config.SoundConfig) {
	p.cfgMu.Lock()
	p.cfg = cfg
	p.cfgMu.Unlock()
}

// PlayAsync emits cue in the background. Failures, panics included, are
// logged at debug level and dropped.
func (p *Player) PlayAsync(cue Cue) {
	cfg := p.config()
	if !cfg.Enable {
		return
	}

	p.pending.Add(1)
	go func() {
		defer p.pending.Done()
		if err := p.play(context.Background(), cfg, cue); err != nil {
			p.log("sound cue failed", cue, err)
		}
	}()
}

// Play emits cue and waits for it to finish.
func (p *Player) Play(ctx context.Context, cue Cue) error {
	cfg := p.config()
	if !cfg.Enable {
		return nil
	}
	return p.play(ctx, cfg, cue)
}

// Wait blocks until every cue started by PlayAsync has finished.
func (p *Player) Wait() {
	p.pending.Wait()
}

func (p *Player) play(ctx context.Context, cfg config.SoundConfig, cue Cue) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cue %s panicked: %v", cue, r)
		}
	}()

	p.soundMu.Lock()
	defer p.soundMu.Unlock()

	emit := p.emit
	if emit == nil {
		emit = emitCue
	}
	return emit(ctx, cue, cueFile(cue, cfg))
}

func (p *Player) config() config.SoundConfig {
	p.cfgMu.Lock()
	defer p.cfgMu.Unlock()
	return p.cfg
}

func (p *Player) log(message string, cue Cue, err error) {
	if p.logger == nil || err == nil {
		return
	}
	p.logger.Debug(message, "cue", string(cue), "error", err.Error())
}

// emitCue plays path when set and playable, else the synthesized tone.
func emitCue(ctx context.Context, cue Cue, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if path != "" && playFile(ctx, path) == nil {
		return nil
	}

	samples, ok := cuePCM()[cue]
	if !ok {
		return fmt.Errorf("unknown cue %q", cue)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return playPCM(samples)
}

// cueFile returns the configured file for cue with ~ expanded, or "".
func cueFile(cue Cue, cfg config.SoundConfig) string {
	files := map[Cue]string{
		CueClipSaved:        cfg.ClipSaved,
		CueRecordingStarted: cfg.RecordingStarted,
		CueRecordingStopped: cfg.RecordingStopped,
		CueFailed:           cfg.Failed,
	}
	return expandHome(strings.TrimSpace(files[cue]))
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
}

func playFile(ctx context.Context, path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("cue file: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, fileTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, "pw-play", "--media-role", "Notification", path).CombinedOutput()
	if err != nil {
		if detail := strings.TrimSpace(string(out)); detail != "" {
			return fmt.Errorf("pw-play %s: %w: %s", path, err, detail)
		}
		return fmt.Errorf("pw-play %s: %w", path, err)
	}
	return nil
}

// pcmReader feeds a fixed buffer to a pulse playback stream.
type pcmReader struct {
	samples []int16
}

func (r *pcmReader) read(buf []int16) (int, error) {
	n := copy(buf, r.samples)
	r.samples = r.samples[n:]
	if len(r.samples) == 0 {
		return n, pulse.EndOfData
	}
	return n, nil
}

func playPCM(samples []int16) error {
	client, err := pulse.NewClient(pulse.ClientApplicationName("clipthat"))
	if err != nil {
		return fmt.Errorf("connect pulse: %w", err)
	}
	defer client.Close()

	src := &pcmReader{samples: samples}
	stream, err := client.NewPlayback(
		pulse.Int16Reader(src.read),
		pulse.PlaybackMono,
		pulse.PlaybackSampleRate(toneRate),
		pulse.PlaybackLatency(0.02),
		pulse.PlaybackMediaName("clipthat cue"),
	)
	if err != nil {
		return fmt.Errorf("open pulse playback: %w", err)
	}
	defer stream.Close()

	stream.Start()
	stream.Drain()
	if err := stream.Error(); err != nil {
		return fmt.Errorf("pulse playback: %w", err)
	}
	return nil
}
