package screenshot

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/polzovatel/web-research-mcp/internal/fault"
)

const (
	dirPattern     = "research-screenshots-"
	timestampFmt   = "2006-01-02T15:04:05.000Z07:00"
	maxTitleLength = 100
)

// Encode checks raw against the cap and returns its transport form.
func Encode(raw []byte, maxBytes int) (string, error) {
	if len(raw) > maxBytes {
		return "", fmt.Errorf("%w: screenshot is %d bytes, cap is %d", fault.ErrSizeLimit, len(raw), maxBytes)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// Decode reverses Encode and checks the decoded payload against the cap.
func Decode(encoded string, maxBytes int) ([]byte, error) {
	if base64.StdEncoding.DecodedLen(len(encoded)) > maxBytes+2 {
		return nil, fmt.Errorf("%w: encoded screenshot exceeds %d bytes", fault.ErrSizeLimit, maxBytes)
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode screenshot: %w", err)
	}
	if len(raw) > maxBytes {
		return nil, fmt.Errorf("%w: screenshot is %d bytes, cap is %d", fault.ErrSizeLimit, len(raw), maxBytes)
	}
	return raw, nil
}

// Store writes screenshots into a temporary directory created on first
// use. Purge removes it; the next Save creates a fresh one.
type Store struct {
	mu       sync.Mutex
	base     string
	dir      string
	maxBytes int
	now      func() time.Time
}

// NewStore keeps files under a new directory inside base, or inside the
// system temp dir when base is empty.
func NewStore(base string, maxBytes int) *Store {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Store{base: base, maxBytes: maxBytes, now: time.Now}
}

// Dir returns the session directory, creating it if needed.
func (s *Store) Dir() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureDir()
}

func (s *Store) ensureDir() (string, error) {
	if s.dir != "" {
		if _, err := os.Stat(s.dir); err == nil {
			return s.dir, nil
		}
	}
	if s.base != "" {
		if err := os.MkdirAll(s.base, 0o755); err != nil {
			return "", fmt.Errorf("create screenshot base dir: %w", err)
		}
	}
	dir, err := os.MkdirTemp(s.base, dirPattern)
	if err != nil {
		return "", fmt.Errorf("create screenshot dir: %w", err)
	}
	s.dir = dir
	return dir, nil
}

// Save decodes an encoded screenshot, checks it against the cap and writes
// it as <sanitized-title>-<timestamp>.png. It returns the file path.
func (s *Store) Save(encoded, title string) (string, error) {
	raw, err := Decode(encoded, s.maxBytes)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	dir, err := s.ensureDir()
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, FileName(title, s.now()))
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return "", fmt.Errorf("write screenshot: %w", err)
	}
	return path, nil
}

// Read returns the bytes of a previously saved screenshot.
func (s *Store) Read(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: screenshot file %s is gone", fault.ErrResourceNotFound, filepath.Base(path))
		}
		return nil, fmt.Errorf("read screenshot: %w", err)
	}
	return data, nil
}

// Purge deletes the session directory and everything in it.
func (s *Store) Purge() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dir == "" {
		return nil
	}
	dir := s.dir
	s.dir = ""
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove screenshot dir: %w", err)
	}
	return nil
}

// SanitizeTitle lowercases title and replaces every character outside
// [a-z0-9] with an underscore.
func SanitizeTitle(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

// FileName builds the on-disk name for a screenshot taken at ts.
func FileName(title string, ts time.Time) string {
	safe := SanitizeTitle(title)
	if safe == "" {
		safe = "untitled"
	}
	if len(safe) > maxTitleLength {
		safe = safe[:maxTitleLength]
	}
	return safe + "-" + ts.UTC().Format(timestampFmt) + ".png"
}
