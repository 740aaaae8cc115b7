// Package prefs persists per-user client preferences on local disk.
package prefs

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode"

	"pkt.systems/consoleshell/schema"
	"pkt.systems/pslog"
)

// Prefs captures a user's persisted preferences.
type Prefs struct {
	Theme schema.ThemeName `json:"theme,omitempty"`
}

// Store persists preferences as one JSON file per user.
type Store struct {
	dir string
	log pslog.Logger
	mu  sync.Mutex
}

// NewStore constructs a store at the given directory.
func NewStore(dir string) (*Store, error) {
	return NewStoreWithLogger(dir, nil)
}

// NewStoreWithLogger constructs a store with logging.
func NewStoreWithLogger(dir string, logger pslog.Logger) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("prefs directory is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	if logger != nil {
		logger = logger.With("prefs_dir", dir)
	}
	return &Store{dir: dir, log: logger}, nil
}

// Load reads the user's preferences. A missing file is not an error.
func (s *Store) Load(userID schema.UserID) (Prefs, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.pathForUser(userID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.debug("prefs load miss", "user", userID)
			return Prefs{}, false, nil
		}
		s.warn("prefs load failed", "user", userID, "err", err)
		return Prefs{}, false, err
	}
	var prefs Prefs
	if err := json.Unmarshal(data, &prefs); err != nil {
		s.warn("prefs load failed", "user", userID, "err", err)
		return Prefs{}, false, err
	}
	s.debug("prefs load ok", "user", userID, "theme", prefs.Theme)
	return prefs, true, nil
}

// Update loads the user's preferences, applies fn and saves the result.
func (s *Store) Update(userID schema.UserID, fn func(*Prefs)) (Prefs, error) {
	current, _, err := s.Load(userID)
	if err != nil {
		current = Prefs{}
	}
	fn(&current)
	if err := s.Save(userID, current); err != nil {
		return Prefs{}, err
	}
	return current, nil
}

// Save writes the user's preferences atomically.
func (s *Store) Save(userID schema.UserID, prefs Prefs) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	path := s.pathForUser(userID)
	data, err := json.MarshalIndent(prefs, "", "  ")
	if err != nil {
		s.warn("prefs save failed", "user", userID, "err", err)
		return err
	}
	if err := writeAtomic(path, data); err != nil {
		s.warn("prefs save failed", "user", userID, "err", err)
		return err
	}
	s.debug("prefs save ok", "user", userID, "theme", prefs.Theme)
	return nil
}

func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "prefs-*.json")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func (s *Store) debug(msg string, kv ...any) {
	if s.log != nil {
		s.log.Debug(msg, kv...)
	}
}

func (s *Store) warn(msg string, kv ...any) {
	if s.log != nil {
		s.log.Warn(msg, kv...)
	}
}

func (s *Store) pathForUser(userID schema.UserID) string {
	name := sanitize(string(userID))
	if name == "" {
		name = "default"
	}
	return filepath.Join(s.dir, name+".json")
}

func sanitize(value string) string {
	var b strings.Builder
	for _, r := range value {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		if r == '-' || r == '_' || r == '.' {
			b.WriteRune(r)
			continue
		}
		b.WriteRune('_')
	}
	return b.String()
}
