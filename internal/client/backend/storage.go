// internal/client/backend/storage.go
package backend

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"segmentbook-service/internal/client/session"
)

// SessionFile persists the current session between runs, the way a browser
// keeps it in local storage.
type SessionFile struct {
	path string
}

func NewSessionFile(path string) *SessionFile {
	return &SessionFile{path: path}
}

func (f *SessionFile) Path() string {
	return f.path
}

type sessionDocument struct {
	Version int              `yaml:"version"`
	Session *session.Session `yaml:"session"`
}

// Load returns the stored session, or nil when none is stored.
func (f *SessionFile) Load() (*session.Session, error) {
	raw, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session file: %w", err)
	}
	if len(raw) == 0 {
		return nil, nil
	}

	var doc sessionDocument
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse session file %s: %w", f.path, err)
	}
	if doc.Session == nil || doc.Session.AccessToken == "" {
		return nil, nil
	}
	return doc.Session, nil
}

// Save writes s atomically. A nil session clears the file.
func (f *SessionFile) Save(s *session.Session) error {
	if s == nil {
		return f.Clear()
	}

	raw, err := yaml.Marshal(sessionDocument{Version: 1, Session: s})
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".session-*.yaml")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), f.path)
}

// Clear removes the stored session.
func (f *SessionFile) Clear() error {
	err := os.Remove(f.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}
