package settings

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/inspectai/internal/logger"
)

const (
	settingsFile = "settings.yaml"
	apiKeyFile   = "api_key"
)

// Store persists settings under a directory. The API key lives in its own
// owner-only file so settings.yaml can be shared or synced safely.
type Store struct {
	dir string
	mu  sync.Mutex
}

// NewStore creates a store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// DefaultDir returns the per-user config directory for inspectai.
func DefaultDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate config dir: %w", err)
	}
	return filepath.Join(base, "inspectai"), nil
}

// Dir returns the store's directory.
func (s *Store) Dir() string {
	return s.dir
}

// Load reads the stored settings. Missing files yield defaults.
func (s *Store) Load() (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := Default()
	data, err := os.ReadFile(filepath.Join(s.dir, settingsFile))
	switch {
	case errors.Is(err, fs.ErrNotExist):
		logger.Debug("no stored settings, using defaults", "dir", s.dir)
	case err != nil:
		return out, fmt.Errorf("failed to read settings: %w", err)
	default:
		var stored Settings
		if err := yaml.Unmarshal(data, &stored); err != nil {
			return out, fmt.Errorf("failed to parse %s: %w", settingsFile, err)
		}
		out = stored.WithDefaults()
	}

	key, err := os.ReadFile(filepath.Join(s.dir, apiKeyFile))
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return out, fmt.Errorf("failed to read api key: %w", err)
	default:
		out.APIKey = strings.TrimSpace(string(key))
	}
	return out, nil
}

// Save validates and writes settings.
func (s *Store) Save(settings Settings) error {
	settings = settings.WithDefaults()
	if err := settings.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("failed to create settings dir: %w", err)
	}

	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(s.dir, settingsFile), data, 0o644); err != nil {
		return err
	}

	keyPath := filepath.Join(s.dir, apiKeyFile)
	if settings.APIKey == "" {
		if err := os.Remove(keyPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to remove api key: %w", err)
		}
	} else if err := writeFileAtomic(keyPath, []byte(settings.APIKey+"\n"), 0o600); err != nil {
		return err
	}

	logger.Debug("settings saved", "dir", s.dir, "provider", settings.Provider, "model", settings.Model)
	return nil
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}
