package persist

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"pkt.systems/fileclassifier/schema"
	"pkt.systems/pslog"
)

const (
	filePrefix = "session-"
	fileSuffix = ".json"
)

// Store persists session records to disk, one JSON file per session key.
type Store struct {
	dir string
	log pslog.Logger
	now func() time.Time
}

// NewStore constructs a persistent store at the given directory.
func NewStore(dir string) (*Store, error) {
	return NewStoreWithLogger(dir, nil)
}

// NewStoreWithLogger constructs a persistent store with logging.
func NewStoreWithLogger(dir string, logger pslog.Logger) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("state directory is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	if logger != nil {
		logger = logger.With("state_dir", dir)
	}
	return &Store{dir: dir, log: logger, now: time.Now}, nil
}

// Dir returns the state directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the file backing the given session key.
func (s *Store) Path(key schema.SessionKey) string {
	name := sanitize(string(key))
	if name == "" {
		name = "unknown"
	}
	return filepath.Join(s.dir, name+fileSuffix)
}

// Exists reports whether a record is stored for key.
func (s *Store) Exists(key schema.SessionKey) bool {
	_, err := os.Stat(s.Path(key))
	return err == nil
}

// Load reads the session stored under key. A missing, unreadable, or
// malformed record is reported as absent; the failure is only logged.
func (s *Store) Load(key schema.SessionKey) (schema.Session, bool) {
	data, err := os.ReadFile(s.Path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if s.log != nil {
				s.log.Debug("session load miss", "session", key)
			}
			return schema.Session{}, false
		}
		if s.log != nil {
			s.log.Warn("session load failed", "session", key, "err", err)
		}
		return schema.Session{}, false
	}
	session, err := Decode(data)
	if err != nil {
		if s.log != nil {
			s.log.Warn("session load ignored", "session", key, "err", err)
		}
		return schema.Session{}, false
	}
	if s.log != nil {
		s.log.Debug("session load ok", "session", key, "classifications", len(session.Classifications), "items", session.TotalItems)
	}
	return session, true
}

// Save writes the session under key. The record is written to a temporary
// file and renamed into place so a previous record is never left truncated.
func (s *Store) Save(key schema.SessionKey, session schema.Session) error {
	path := s.Path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		s.warnSave(key, err)
		return err
	}
	saved := s.now().UTC()
	session.LastSaved = &saved
	if session.Classifications == nil {
		session.Classifications = []schema.Classification{}
	}
	if session.Items == nil {
		session.Items = []schema.Item{}
	}
	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		s.warnSave(key, err)
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "session-*.tmp")
	if err != nil {
		s.warnSave(key, err)
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		s.warnSave(key, err)
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		s.warnSave(key, err)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		s.warnSave(key, err)
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		_ = os.Remove(tmp.Name())
		s.warnSave(key, err)
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		s.warnSave(key, err)
		return err
	}
	if s.log != nil {
		s.log.Trace("session save ok", "session", key, "classifications", len(session.Classifications))
	}
	return nil
}

// Clear removes the record stored under key. Clearing an absent record
// succeeds and reports false.
func (s *Store) Clear(key schema.SessionKey) (bool, error) {
	err := os.Remove(s.Path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if s.log != nil {
				s.log.Debug("session clear miss", "session", key)
			}
			return false, nil
		}
		if s.log != nil {
			s.log.Warn("session clear failed", "session", key, "err", err)
		}
		return false, err
	}
	if s.log != nil {
		s.log.Info("session cleared", "session", key)
	}
	return true, nil
}

// ClearAll removes every session record in the state directory and returns
// how many were removed.
func (s *Store) ClearAll() (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}
	cleared := 0
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			if s.log != nil {
				s.log.Warn("session clear failed", "file", name, "err", err)
			}
			return cleared, err
		}
		cleared++
	}
	if s.log != nil {
		s.log.Info("sessions cleared", "count", cleared)
	}
	return cleared, nil
}

func (s *Store) warnSave(key schema.SessionKey, err error) {
	if s.log != nil {
		s.log.Warn("session save failed", "session", key, "err", err)
	}
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
