package repositories

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/desertthunder/likedsync/internal/services"
)

// SessionFile persists the local backend session as a 0600 JSON file in the
// user's data directory, implementing [services.SessionStore].
type SessionFile struct {
	path string
}

// NewSessionFile creates a session store at the given path. An empty path
// defaults to ~/.likedsync/session.json.
func NewSessionFile(path string) *SessionFile {
	if path == "" {
		path = filepath.Join(os.Getenv("HOME"), ".likedsync", "session.json")
	}
	return &SessionFile{path: path}
}

// Load reads the cached session. A missing file returns (nil, nil).
func (s *SessionFile) Load() (*services.Session, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	var session services.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to parse session file: %w", err)
	}
	return &session, nil
}

// Save writes the session, creating the data directory if needed.
func (s *SessionFile) Save(session *services.Session) error {
	if session == nil {
		return fmt.Errorf("cannot save nil session")
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	return nil
}

// Clear removes the cached session. Clearing a missing session is a no-op.
func (s *SessionFile) Clear() error {
	err := os.Remove(s.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove session file: %w", err)
	}
	return nil
}
