// Package config handles user settings and launcher configuration.
package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/chatterbox-tts/desktop/internal/types"
)

const (
	appName          = "chatterbox"
	settingsFileName = "settings.json"
)

// Store persists Settings to a JSON file.
// Reads are permissive: a missing or corrupt file yields the defaults.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore returns a store backed by the file at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// DefaultPath returns the settings file location in the user config dir.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("get user config dir: %w", err)
	}
	return filepath.Join(dir, appName, settingsFileName), nil
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads the settings file.
// Returns defaults without error if the file doesn't exist.
func (s *Store) Load() (types.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return types.DefaultSettings(), nil
		}
		return types.DefaultSettings(), fmt.Errorf("read settings: %w", err)
	}

	var st types.Settings
	if err := json.Unmarshal(data, &st); err != nil {
		return types.DefaultSettings(), fmt.Errorf("unmarshal settings: %w", err)
	}
	return normalize(st), nil
}

// Get returns the stored settings, falling back to defaults on any error.
func (s *Store) Get() types.Settings {
	st, err := s.Load()
	if err != nil {
		slog.Warn("load settings, using defaults", "path", s.path, "error", err)
	}
	return st
}

// Save persists the settings to disk. The write is a plain overwrite.
func (s *Store) Save(st types.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}

	data, err := json.MarshalIndent(normalize(st), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}

func normalize(st types.Settings) types.Settings {
	st.OutputDir = strings.TrimSpace(st.OutputDir)
	if st.OutputDir != "" {
		st.OutputDir = filepath.Clean(st.OutputDir)
	}
	return st
}
