// Package vosk streams audio to a vosk-server websocket recognizer.
package vosk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rbright/clipthat/internal/transcript"
)

// DefaultSampleRate is the PCM rate announced to the server.
const DefaultSampleRate = 16000

// Config controls the websocket connection.
type Config struct {
	URL         string
	SampleRate  int
	DialTimeout time.Duration
	Header      http.Header
}

// Stream is one recognizer session. Audio goes out through a write loop;
// results come back through a read loop.
type Stream struct {
	conn *websocket.Conn

	events chan transcript.Event
	audio  chan []byte
	done   chan struct{}
	quit   chan struct{}

	readDone chan struct{}

	wg sync.WaitGroup

	errMu sync.Mutex
	err   error

	closeSendOnce sync.Once
	quitOnce      sync.Once
	sendMu        sync.RWMutex
	sendClosed    bool
}

type configMessage struct {
	Config struct {
		SampleRate int `json:"sample_rate"`
	} `json:"config"`
}

type result struct {
	Partial *string `json:"partial"`
	Text    *string `json:"text"`
}

var eofMessage = []byte(`{"eof" : 1}`)

// Dial connects, announces the sample rate, and starts the read/write loops.
// The stream ends when ctx is cancelled.
func Dial(ctx context.Context, cfg Config) (*Stream, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("vosk url is empty")
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = DefaultSampleRate
	}

	conn, err := dial(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var hello configMessage
	hello.Config.SampleRate = cfg.SampleRate
	if err := conn.WriteJSON(hello); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("send vosk config: %w", err)
	}

	s := &Stream{
		conn:   conn,
		events: make(chan transcript.Event, 64),
		audio:  make(chan []byte, 32),
		done:   make(chan struct{}),
		quit:   make(chan struct{}),

		readDone: make(chan struct{}),
	}

	s.wg.Add(2)
	go s.readLoop()
	go s.writeLoop()
	go func() {
		s.wg.Wait()
		close(s.events)
		close(s.done)
		_ = conn.Close()
	}()

	go func() {
		select {
		case <-ctx.Done():
			_ = s.Cancel()
		case <-s.done:
		}
	}()

	return s, nil
}

func dial(ctx context.Context, cfg Config) (*websocket.Conn, error) {
	dialer := *websocket.DefaultDialer
	if cfg.DialTimeout > 0 {
		dialer.HandshakeTimeout = cfg.DialTimeout
	}

	conn, resp, err := dialer.DialContext(ctx, cfg.URL, cfg.Header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("connect to vosk websocket %q: %w", cfg.URL, err)
	}
	return conn, nil
}

// Probe completes a websocket handshake with url and disconnects.
func Probe(ctx context.Context, url string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := dial(ctx, Config{URL: url, DialTimeout: timeout})
	if err != nil {
		return err
	}
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return conn.Close()
}

// Events delivers recognizer results. It is closed when the stream ends.
func (s *Stream) Events() <-chan transcript.Event {
	return s.events
}

// SendAudio queues one PCM chunk. The chunk is copied.
func (s *Stream) SendAudio(chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}

	s.sendMu.RLock()
	defer s.sendMu.RUnlock()
	if s.sendClosed {
		return errors.New("audio stream is already closed")
	}

	copied := append([]byte(nil), chunk...)
	select {
	case s.audio <- copied:
		return nil
	case <-s.readDone:
		if err := s.Err(); err != nil {
			return err
		}
		return errors.New("vosk stream closed")
	}
}

// CloseSend stops audio and asks the server for its final result.
func (s *Stream) CloseSend() {
	s.closeSendOnce.Do(func() {
		s.sendMu.Lock()
		s.sendClosed = true
		close(s.audio)
		s.sendMu.Unlock()
	})
}

// Close sends eof, drains remaining results, and waits for the server to
// hang up or ctx to expire.
func (s *Stream) Close(ctx context.Context) error {
	s.CloseSend()

	select {
	case <-s.done:
		return s.Err()
	case <-ctx.Done():
		_ = s.Cancel()
		<-s.done
		return ctx.Err()
	}
}

// Cancel drops the connection without waiting for pending results.
func (s *Stream) Cancel() error {
	s.quitOnce.Do(func() {
		close(s.quit)
		_ = s.conn.Close()
	})
	return nil
}

// Err reports the failure that ended the stream, if any.
func (s *Stream) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *Stream) setErr(err error) {
	if err == nil {
		return
	}
	select {
	case <-s.quit:
		return
	default:
	}
	if isNormalClose(err) {
		return
	}

	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

// isNormalClose reports whether err, possibly wrapped, is a clean websocket
// close from the server.
func isNormalClose(err error) bool {
	var closeErr *websocket.CloseError
	if !errors.As(err, &closeErr) {
		return false
	}
	switch closeErr.Code {
	case websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived:
		return true
	default:
		return false
	}
}

func (s *Stream) writeLoop() {
	defer s.wg.Done()

	for chunk := range s.audio {
		if err := s.conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
			s.setErr(fmt.Errorf("send audio: %w", err))
			_ = s.conn.Close()
			return
		}
	}

	if err := s.conn.WriteMessage(websocket.TextMessage, eofMessage); err != nil {
		s.setErr(fmt.Errorf("send eof: %w", err))
	}
}

func (s *Stream) readLoop() {
	defer s.wg.Done()
	defer func() {
		close(s.readDone)
		// Unblocks writeLoop if the server goes away first.
		s.CloseSend()
	}()

	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			s.setErr(fmt.Errorf("read vosk result: %w", err))
			return
		}

		event, ok := parseResult(payload)
		if !ok {
			continue
		}
		select {
		case s.events <- event:
		case <-s.quit:
			return
		}
	}
}

// parseResult maps {"partial": ...} and {"text": ...} payloads to events.
// Empty hypotheses are skipped.
func parseResult(payload []byte) (transcript.Event, bool) {
	var r result
	if err := json.Unmarshal(payload, &r); err != nil {
		return transcript.Event{}, false
	}
	switch {
	case r.Text != nil:
		return hypothesis(*r.Text, true)
	case r.Partial != nil:
		return hypothesis(*r.Partial, false)
	default:
		return transcript.Event{}, false
	}
}

func hypothesis(raw string, final bool) (transcript.Event, bool) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return transcript.Event{}, false
	}
	return transcript.Event{Text: text, IsFinal: final}, true
}
