// Package pipeline wires microphone capture to a streaming recognizer.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rbright/clipthat/internal/audio"
	"github.com/rbright/clipthat/internal/config"
	"github.com/rbright/clipthat/internal/riva"
	"github.com/rbright/clipthat/internal/transcript"
	"github.com/rbright/clipthat/internal/vosk"
)

// ErrNotStarted is returned when Stop or Events is used before Start.
var ErrNotStarted = errors.New("recognizer not started")

const (
	// phraseBoost biases Riva toward the configured trigger phrases.
	phraseBoost  = 20
	closeTimeout = 5 * time.Second
)

// stream is the backend half of the pipeline: vosk.Stream or riva.Stream.
type stream interface {
	Events() <-chan transcript.Event
	SendAudio(chunk []byte) error
	Close(ctx context.Context) error
	Cancel() error
	Err() error
}

// source is the capture half of the pipeline.
type source interface {
	Device() audio.Device
	Chunks() <-chan []byte
	BytesCaptured() int64
	ChunksDropped() int64
	Stop() error
}

type (
	selectFunc  func(ctx context.Context, input string, fallback string) (audio.Selection, error)
	dialFunc    func(ctx context.Context, cfg config.Config) (stream, error)
	captureFunc func(ctx context.Context, device audio.Device) (source, error)
)

// Recognizer owns one capture -> recognizer stream for the life of a
// listening session.
type Recognizer struct {
	cfg    config.Config
	logger *slog.Logger

	selectDevice selectFunc
	dial         dialFunc
	capture      captureFunc

	mu       sync.Mutex
	started  bool
	stopped  bool
	device   audio.Device
	src      source
	stream   stream
	cancel   context.CancelFunc
	sendDone chan struct{}

	errMu   sync.Mutex
	sendErr error
}

// New builds a recognizer for cfg.Recognizer.Backend.
func New(cfg config.Config, logger *slog.Logger) *Recognizer {
	return &Recognizer{
		cfg:          cfg,
		logger:       logger,
		selectDevice: audio.SelectDevice,
		dial:         dialBackend,
		capture: func(ctx context.Context, device audio.Device) (source, error) {
			return audio.StartCapture(ctx, device)
		},
	}
}

func dialBackend(ctx context.Context, cfg config.Config) (stream, error) {
	timeout := config.DialTimeout(cfg)

	switch strings.ToLower(cfg.Recognizer.Backend) {
	case config.BackendVosk:
		return vosk.Dial(ctx, vosk.Config{
			URL:         cfg.Recognizer.VoskURL,
			SampleRate:  audio.SampleRate,
			DialTimeout: timeout,
		})
	case config.BackendRiva:
		phrases, _ := config.Phrases(cfg)
		texts := make([]string, 0, len(phrases))
		for _, phrase := range phrases {
			texts = append(texts, phrase.Text)
		}
		return riva.DialStream(ctx, riva.StreamConfig{
			Endpoint:     cfg.Recognizer.RivaGRPC,
			LanguageCode: cfg.Recognizer.LanguageCode,
			Model:        cfg.Recognizer.Model,
			Phrases:      texts,
			Boost:        phraseBoost,
			DialTimeout:  timeout,
		})
	default:
		return nil, fmt.Errorf("unsupported recognizer backend %q", cfg.Recognizer.Backend)
	}
}

// Start selects the input device, connects the backend, and starts streaming
// microphone audio to it. The stream outlives ctx; call Stop to end it.
func (r *Recognizer) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return errors.New("recognizer already started")
	}

	selection, err := r.selectDevice(ctx, r.cfg.Audio.Input, r.cfg.Audio.Fallback)
	if err != nil {
		return fmt.Errorf("select audio device: %w", err)
	}
	if selection.Warning != "" && r.logger != nil {
		r.logger.Warn(selection.Warning)
	}

	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	backend, err := r.dial(streamCtx, r.cfg)
	if err != nil {
		cancel()
		return fmt.Errorf("connect %s recognizer: %w", r.cfg.Recognizer.Backend, err)
	}

	src, err := r.capture(streamCtx, selection.Device)
	if err != nil {
		_ = backend.Cancel()
		cancel()
		return fmt.Errorf("start audio capture: %w", err)
	}

	r.started = true
	r.device = selection.Device
	r.src = src
	r.stream = backend
	r.cancel = cancel
	r.sendDone = make(chan struct{})
	go r.sendLoop(src, backend, r.sendDone)

	if r.logger != nil {
		r.logger.Info("recognizer started",
			"backend", r.cfg.Recognizer.Backend,
			"endpoint", r.cfg.Recognizer.Endpoint(),
			"device", DescribeDevice(selection.Device),
		)
	}
	return nil
}

// Events yields recognizer results until the stream ends.
func (r *Recognizer) Events() (<-chan transcript.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.started {
		return nil, ErrNotStarted
	}
	return r.stream.Events(), nil
}

// Err reports the backend's failure, else the first audio send failure.
func (r *Recognizer) Err() error {
	r.mu.Lock()
	backend := r.stream
	r.mu.Unlock()
	if backend != nil {
		if err := backend.Err(); err != nil {
			return err
		}
	}

	r.errMu.Lock()
	defer r.errMu.Unlock()
	if r.sendErr != nil {
		return fmt.Errorf("send audio: %w", r.sendErr)
	}
	return nil
}

// Device returns the capture device picked by Start.
func (r *Recognizer) Device() audio.Device {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.device
}

// Stop ends capture, flushes the backend, and releases the connection.
// Calling Stop again is a no-op.
func (r *Recognizer) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return ErrNotStarted
	}
	if r.stopped {
		r.mu.Unlock()
		return nil
	}
	r.stopped = true
	src, backend, cancel, sendDone := r.src, r.stream, r.cancel, r.sendDone
	r.mu.Unlock()

	defer cancel()

	_ = src.Stop()
	<-sendDone

	closeCtx, closeCancel := context.WithTimeout(ctx, closeTimeout)
	defer closeCancel()
	err := backend.Close(closeCtx)

	if r.logger != nil {
		r.logger.Debug("recognizer stopped",
			"bytes_captured", src.BytesCaptured(),
			"chunks_dropped", src.ChunksDropped(),
		)
	}
	if err != nil {
		return fmt.Errorf("close recognizer stream: %w", err)
	}
	return nil
}

// sendLoop forwards capture chunks until capture stops or a send fails. A
// send failure cancels the backend so its event channel closes.
func (r *Recognizer) sendLoop(src source, backend stream, done chan struct{}) {
	defer close(done)

	for chunk := range src.Chunks() {
		if len(chunk) == 0 {
			continue
		}
		if err := backend.SendAudio(chunk); err != nil {
			r.errMu.Lock()
			r.sendErr = err
			r.errMu.Unlock()
			_ = src.Stop()
			_ = backend.Cancel()
			return
		}
	}
}

// DescribeDevice formats a device as "Description (id)".
func DescribeDevice(device audio.Device) string {
	description := strings.TrimSpace(device.Description)
	id := strings.TrimSpace(device.ID)
	switch {
	case description == "":
		return id
	case id == "":
		return description
	default:
		return fmt.Sprintf("%s (%s)", description, id)
	}
}
