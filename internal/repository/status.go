package repository

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pairlink/pairing-server/internal/model"
)

// SessionStatusRepository persists the single SessionStatus document.
type SessionStatusRepository interface {
	Load() (*model.SessionStatus, error)
	Save(status model.SessionStatus) error
}

type sessionStatusFile struct {
	path string
	mu   sync.Mutex
}

func NewSessionStatusRepository(path string) SessionStatusRepository {
	return &sessionStatusFile{path: path}
}

// Load returns nil without error when no status has been written yet.
func (r *sessionStatusFile) Load() (*model.SessionStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := os.ReadFile(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read status file: %w", err)
	}

	var status model.SessionStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("decode status file: %w", err)
	}
	return &status, nil
}

// Save overwrites the file through a temp file and rename so readers never
// see a partial document.
func (r *sessionStatusFile) Save(status model.SessionStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return fmt.Errorf("encode status: %w", err)
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create status dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".session_status-*.json")
	if err != nil {
		return fmt.Errorf("create temp status file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write status file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close status file: %w", err)
	}

	if err := os.Rename(tmp.Name(), r.path); err != nil {
		return fmt.Errorf("replace status file: %w", err)
	}
	return nil
}
