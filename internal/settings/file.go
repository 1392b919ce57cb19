package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/marcus/roster/internal/lock"
)

// FileStore keeps the two keys in a JSON object on disk.
type FileStore struct {
	dir string
}

// NewFileStore returns a store rooted at dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// OpenDefault returns a store rooted at Home().
func OpenDefault() (*FileStore, error) {
	dir, err := Home()
	if err != nil {
		return nil, err
	}
	return NewFileStore(dir), nil
}

// Dir returns the store's directory.
func (s *FileStore) Dir() string { return s.dir }

// Path returns the settings file path.
func (s *FileStore) Path() string { return filepath.Join(s.dir, settingsFile) }

func (s *FileStore) LoadDataSource() (DataSource, error) {
	kv, err := s.read()
	if err != nil {
		return "", err
	}
	return DataSource(kv[KeyDataSource]), nil
}

func (s *FileStore) LoadConfig() (*Config, error) {
	kv, err := s.read()
	if err != nil {
		return nil, err
	}
	_, cfg, err := decodeKV(kv)
	return cfg, err
}

func (s *FileStore) SelectDataSource(ds DataSource) error {
	return s.withLock(func() error {
		kv, err := s.readForWrite()
		if err != nil {
			return err
		}
		kv[KeyDataSource] = string(ds)
		return s.write(kv)
	})
}

func (s *FileStore) Save(ds DataSource, cfg Config) (bool, error) {
	var reload bool
	err := s.withLock(func() error {
		kv, err := s.readForWrite()
		if err != nil {
			return err
		}
		// an unparseable old config compares as empty
		old, _, _ := decodeKV(kv)
		encoded, err := encodeConfig(cfg)
		if err != nil {
			return err
		}
		kv[KeyDataSource] = string(ds)
		kv[KeyConfig] = encoded
		if err := s.write(kv); err != nil {
			return err
		}
		reload = RequiresReload(old.DataSource, ds, old.Config, cfg)
		return nil
	})
	return reload, err
}

func (s *FileStore) Reset() error {
	return s.withLock(func() error {
		kv, err := s.readForWrite()
		if err != nil {
			return err
		}
		delete(kv, KeyDataSource)
		delete(kv, KeyConfig)
		return s.write(kv)
	})
}

func (s *FileStore) withLock(fn func() error) error {
	return lock.With(filepath.Join(s.dir, lockFile), lock.DefaultTimeout, fn)
}

func (s *FileStore) read() (map[string]string, error) {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, err
	}
	kv := map[string]string{}
	if len(data) == 0 {
		return kv, nil
	}
	if err := json.Unmarshal(data, &kv); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorrupt, settingsFile, err)
	}
	return kv, nil
}

// readForWrite is read, except that a corrupt file starts over empty so
// writers can replace it.
func (s *FileStore) readForWrite() (map[string]string, error) {
	kv, err := s.read()
	if errors.Is(err, ErrCorrupt) {
		return map[string]string{}, nil
	}
	return kv, err
}

// write replaces the settings file atomically (temp file + rename).
func (s *FileStore) write(kv map[string]string) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(kv, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, "settings-*.json.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	// credentials live here
	if err := os.Chmod(tmpName, 0600); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, s.Path())
}
