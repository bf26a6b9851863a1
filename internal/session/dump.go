package session

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rbright/clipthat/internal/trigger"
)

// dumpRecord is one line of the fragment dump.
type dumpRecord struct {
	Time       time.Time `json:"time"`
	Text       string    `json:"text"`
	Confidence string    `json:"confidence"`
	Matched    bool      `json:"matched"`
	Action     string    `json:"action,omitempty"`
	Phrase     string    `json:"phrase,omitempty"`
	Score      float64   `json:"score,omitempty"`
	Outcome    string    `json:"outcome,omitempty"`
}

type fragmentDump struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func newFragmentDump(w io.Writer) *fragmentDump {
	if w == nil {
		return nil
	}
	return &fragmentDump{enc: json.NewEncoder(w)}
}

func (d *fragmentDump) write(fragment trigger.Fragment, match trigger.MatchResult, matched bool, outcome string) {
	if d == nil {
		return
	}
	record := dumpRecord{
		Time:       fragment.ReceivedAt,
		Text:       fragment.Text,
		Confidence: string(fragment.Confidence),
		Matched:    matched,
		Outcome:    outcome,
	}
	if matched {
		record.Action = string(match.Action)
		record.Phrase = match.Phrase
		record.Score = match.Score
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	_ = d.enc.Encode(record)
}

// OpenFragmentDump creates a timestamped JSONL file under
// $XDG_STATE_HOME/clipthat/debug.
func OpenFragmentDump() (*os.File, error) {
	stateDir, err := resolveStateDir()
	if err != nil {
		return nil, err
	}
	debugDir := filepath.Join(stateDir, "clipthat", "debug")
	if err := os.MkdirAll(debugDir, 0o700); err != nil {
		return nil, fmt.Errorf("create debug dir: %w", err)
	}

	name := fmt.Sprintf("fragments-%s.jsonl", time.Now().Format("20060102-150405.000"))
	path := filepath.Join(debugDir, name)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open fragment dump %q: %w", path, err)
	}
	return file, nil
}

func resolveStateDir() (string, error) {
	if xdg := strings.TrimSpace(os.Getenv("XDG_STATE_HOME")); xdg != "" {
		return xdg, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory for state: %w", err)
	}
	return filepath.Join(home, ".local", "state"), nil
}
