package trust

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
)

// ErrStale is returned by Save when the persisted list changed on disk
// after the last Load. The caller should reload and retry its mutation.
var ErrStale = errors.New("trust list changed on disk since last load")

// ListStore persists the raw trust-list tokens. The persisted list is
// the source of truth; resolved sets are recomputed on every call and
// never cached across calls.
type ListStore interface {
	Load() ([]string, error)
	Save(tokens []string) error
}

// FileStore keeps the trust list in a text file: comma-separated tokens,
// newlines also accepted, lines starting with # ignored. Writes go
// through a tmp file and rename. Save carries an optimistic guard: it
// refuses when the file content no longer matches what Load last saw,
// so two writers cannot silently drop each other's entries.
type FileStore struct {
	path     string
	mu       sync.Mutex
	lastHash string
}

// NewFileStore creates a store backed by the given path. The file may
// not exist yet; an absent file is an empty list.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads and tokenizes the persisted list.
func (s *FileStore) Load() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.lastHash = hashBytes(nil)
			return nil, nil
		}
		return nil, fmt.Errorf("read trust list: %w", err)
	}
	s.lastHash = hashBytes(data)
	return tokenize(string(data)), nil
}

// Save writes the tokens back as a single comma-separated line.
func (s *FileStore) Save(tokens []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lastHash != "" {
		current, err := os.ReadFile(s.path)
		switch {
		case err == nil:
			if hashBytes(current) != s.lastHash {
				return ErrStale
			}
		case os.IsNotExist(err):
			if s.lastHash != hashBytes(nil) {
				return ErrStale
			}
		default:
			return fmt.Errorf("check trust list: %w", err)
		}
	}

	data := []byte(strings.Join(tokens, ",") + "\n")
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write trust list: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace trust list: %w", err)
	}
	s.lastHash = hashBytes(data)
	return nil
}

// tokenize splits file content on commas and newlines, dropping blanks
// and comment lines.
func tokenize(content string) []string {
	var tokens []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		for _, tok := range strings.Split(line, ",") {
			tok = strings.TrimSpace(tok)
			if tok != "" {
				tokens = append(tokens, tok)
			}
		}
	}
	return tokens
}

func hashBytes(b []byte) string {
	h := sha256.Sum256(b)
	return hex.EncodeToString(h[:])
}
