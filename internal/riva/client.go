// Package riva streams audio to an NVIDIA Riva ASR server over gRPC.
package riva

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rbright/clipthat/internal/transcript"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/dynamicpb"
)

// StreamConfig controls stream initialization and recognition behavior.
// Phrases are sent as a single speech context boosted by Boost.
type StreamConfig struct {
	Endpoint     string
	LanguageCode string
	Model        string
	Phrases      []string
	Boost        float32
	DialTimeout  time.Duration
	DialOptions  []grpc.DialOption
}

// Stream wraps one active StreamingRecognize RPC lifecycle.
type Stream struct {
	conn   *grpc.ClientConn
	stream grpc.ClientStream
	schema *schema

	events   chan transcript.Event
	recvDone chan struct{}
	quit     chan struct{}
	quitOnce sync.Once

	mu         sync.Mutex
	recvErr    error
	closedSend bool
}

// DialStream establishes a stream, sends config, and starts the receive loop.
func DialStream(ctx context.Context, cfg StreamConfig) (*Stream, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, errors.New("riva endpoint is empty")
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 3 * time.Second
	}
	if strings.TrimSpace(cfg.LanguageCode) == "" {
		cfg.LanguageCode = "en-US"
	}

	sch, err := loadSchema()
	if err != nil {
		return nil, err
	}

	conn, err := dial(ctx, endpoint, cfg.DialTimeout, cfg.DialOptions)
	if err != nil {
		return nil, err
	}

	desc := &grpc.StreamDesc{StreamName: streamingMethod, ServerStreams: true, ClientStreams: true}
	stream, err := withTimeout(ctx, cfg.DialTimeout, func() (grpc.ClientStream, error) {
		return conn.NewStream(ctx, desc, streamingRecognize)
	})
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open streaming recognizer: %w", err)
	}

	if _, err := withTimeout(ctx, cfg.DialTimeout, func() (struct{}, error) {
		return struct{}{}, stream.SendMsg(sch.configRequest(cfg))
	}); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("send initial streaming config: %w", err)
	}

	s := &Stream{
		conn:     conn,
		stream:   stream,
		schema:   sch,
		events:   make(chan transcript.Event, 64),
		recvDone: make(chan struct{}),
		quit:     make(chan struct{}),
	}
	go s.recvLoop()
	return s, nil
}

func dial(ctx context.Context, endpoint string, timeout time.Duration, extra []grpc.DialOption) (*grpc.ClientConn, error) {
	opts := append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, extra...)
	conn, err := grpc.NewClient(endpoint, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial riva grpc %q: %w", endpoint, err)
	}

	readyCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	conn.Connect()
	if err := waitForReady(readyCtx, conn); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("wait for riva grpc readiness: %w", err)
	}
	return conn, nil
}

// Events delivers one event per recognition result. It is closed when the
// receive loop ends.
func (s *Stream) Events() <-chan transcript.Event {
	return s.events
}

// recvLoop continuously receives recognition responses until stream close/error.
func (s *Stream) recvLoop() {
	defer close(s.recvDone)
	defer close(s.events)

	for {
		resp := dynamicpb.NewMessage(s.schema.response)
		err := s.stream.RecvMsg(resp)
		if err == nil {
			if !s.emit(resp) {
				return
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			return
		}

		s.mu.Lock()
		s.recvErr = err
		s.mu.Unlock()
		return
	}
}

func (s *Stream) emit(resp *dynamicpb.Message) bool {
	for _, result := range s.schema.results(resp) {
		text := strings.TrimSpace(result.Transcript)
		if text == "" {
			continue
		}
		select {
		case s.events <- transcript.Event{Text: text, IsFinal: result.IsFinal}:
		case <-s.quit:
			return false
		}
	}
	return true
}

// SendAudio sends one chunk of PCM audio over the active stream.
func (s *Stream) SendAudio(chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}

	s.mu.Lock()
	closed := s.closedSend
	recvErr := s.recvErr
	s.mu.Unlock()

	if closed {
		return errors.New("stream already closed for sending")
	}
	if recvErr != nil {
		return fmt.Errorf("stream receive loop failed: %w", recvErr)
	}

	return s.stream.SendMsg(s.schema.audioRequest(chunk))
}

// Err reports the receive error that ended the stream, if any.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recvErr
}

// Close half-closes the stream and drains remaining results until ctx expires.
func (s *Stream) Close(ctx context.Context) error {
	s.closeSend()

	select {
	case <-s.recvDone:
	case <-ctx.Done():
		s.stop()
		_ = s.conn.Close()
		return ctx.Err()
	}

	s.stop()
	_ = s.conn.Close()
	return s.Err()
}

// Cancel aborts stream processing and closes the underlying grpc connection.
func (s *Stream) Cancel() error {
	s.closeSend()
	s.stop()
	return s.conn.Close()
}

func (s *Stream) closeSend() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closedSend {
		s.closedSend = true
		_ = s.stream.CloseSend()
	}
}

func (s *Stream) stop() {
	s.quitOnce.Do(func() { close(s.quit) })
}
