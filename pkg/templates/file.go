package templates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// FileStore keeps one JSON file per template in a directory.
type FileStore struct {
	mu      sync.RWMutex
	baseDir string
	now     func() time.Time
}

// NewFileStore creates a file-based store. If baseDir is empty it defaults
// to $XDG_CONFIG_HOME/labelkit/templates.
func NewFileStore(baseDir string) (*FileStore, error) {
	if baseDir == "" {
		cfg, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("get config dir: %w", err)
		}
		baseDir = filepath.Join(cfg, "labelkit", "templates")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create template dir: %w", err)
	}
	return &FileStore{baseDir: baseDir, now: time.Now}, nil
}

// Path returns the directory holding the template files.
func (s *FileStore) Path() string { return s.baseDir }

func (s *FileStore) path(id uuid.UUID) string {
	return filepath.Join(s.baseDir, id.String()+".json")
}

func (s *FileStore) Get(_ context.Context, id uuid.UUID) (*Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read(id)
}

func (s *FileStore) read(id uuid.UUID) (*Template, error) {
	data, err := os.ReadFile(s.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("read template file: %w", err)
	}
	var t Template
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse template %s: %w", id, err)
	}
	return &t, nil
}

func (s *FileStore) List(context.Context) ([]Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("read template dir: %w", err)
	}
	var out []Template
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || filepath.Ext(name) != ".json" {
			continue
		}
		id, err := uuid.Parse(name[:len(name)-len(".json")])
		if err != nil {
			continue
		}
		t, err := s.read(id)
		if err != nil {
			continue
		}
		out = append(out, *t)
	}
	sortByName(out)
	return out, nil
}

func (s *FileStore) Save(_ context.Context, t *Template) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.ID != uuid.Nil && t.CreatedAt.IsZero() {
		if prev, err := s.read(t.ID); err == nil {
			t.CreatedAt = prev.CreatedAt
		}
	}
	if err := Prepare(t, s.now()); err != nil {
		return err
	}
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal template: %w", err)
	}
	if err := os.WriteFile(s.path(t.ID), data, 0o644); err != nil {
		return fmt.Errorf("write template file: %w", err)
	}
	return nil
}

func (s *FileStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := os.Remove(s.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return notFound(id)
	}
	if err != nil {
		return fmt.Errorf("remove template file: %w", err)
	}
	return nil
}

func (s *FileStore) Close() error { return nil }

var _ Store = (*FileStore)(nil)
