// Package audit provides an append-only, hash-chained JSONL log of
// gate decisions, confirmation outcomes, and retroactive runs. Each
// line's prev_hash is the SHA-256 of the previous line, so any edit,
// reorder, or deletion breaks the chain.
package audit

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Genesis is the prev_hash of the first entry in a fresh log.
const Genesis = "sha256:0000000000000000000000000000000000000000000000000000000000000000"

// Event kinds recorded by mailwarden.
const (
	KindGateDecision = "gate_decision"
	KindElicitation  = "elicitation"
	KindRetroRun     = "retro_run"
	KindTrustChange  = "trust_change"
	KindRuleChange   = "rule_change"
)

// Event is one audit line. Fields are flat structs, not maps, so
// json.Marshal produces a deterministic byte sequence for hashing.
type Event struct {
	Timestamp string `json:"ts"`
	Kind      string `json:"kind"`

	// Gate decisions and elicitation outcomes.
	Intent         string `json:"intent,omitempty"`
	TrustedCount   int    `json:"trusted_count,omitempty"`
	UntrustedCount int    `json:"untrusted_count,omitempty"`
	Outcome        string `json:"outcome,omitempty"`
	Fallback       bool   `json:"fallback,omitempty"`

	// Retroactive runs.
	RunID      string `json:"run_id,omitempty"`
	TotalFound int    `json:"total_found,omitempty"`
	Processed  int    `json:"processed,omitempty"`
	ErrorCount int    `json:"error_count,omitempty"`

	// Trust list and rule mutations. Addresses are recorded masked.
	Change string `json:"change,omitempty"`
	Target string `json:"target,omitempty"`

	PrevHash string `json:"prev_hash"`
}

// Log appends hash-chained events to a JSONL file.
type Log struct {
	mu   sync.Mutex
	file *os.File
	tail string
}

// Open opens or creates the log, recovering the chain tail from the
// last existing line.
func Open(path string) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("audit: create directory: %w", err)
	}

	tail := Genesis
	if last, err := lastLine(path); err != nil {
		return nil, err
	} else if len(last) > 0 {
		tail = hashLine(last)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("audit: open: %w", err)
	}
	return &Log{file: f, tail: tail}, nil
}

// Append writes one event, filling Timestamp and PrevHash, and syncs.
func (l *Log) Append(ev Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if ev.Timestamp == "" {
		ev.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	}
	ev.PrevHash = l.tail

	line, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("audit: marshal: %w", err)
	}
	if _, err := l.file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("audit: write: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("audit: sync: %w", err)
	}
	l.tail = hashLine(line)
	return nil
}

// Close closes the underlying file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

func lastLine(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil || info.Size() == 0 {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("audit: read existing log: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	var last []byte
	for sc.Scan() {
		last = append(last[:0], sc.Bytes()...)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("audit: scan existing log: %w", err)
	}
	return last, nil
}

func hashLine(line []byte) string {
	h := sha256.Sum256(line)
	return "sha256:" + hex.EncodeToString(h[:])
}
