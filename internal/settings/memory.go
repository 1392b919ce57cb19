package settings

import "sync"

// MemoryStore is an in-process Store, used by tests and one-shot tooling.
type MemoryStore struct {
	mu  sync.Mutex
	kv  map[string]string
	err error
}

// NewMemoryStore returns an empty store (first-run state).
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{kv: map[string]string{}}
}

// FailWith makes every later call return err; nil restores normal behavior.
func (s *MemoryStore) FailWith(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *MemoryStore) LoadDataSource() (DataSource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	return DataSource(s.kv[KeyDataSource]), nil
}

func (s *MemoryStore) LoadConfig() (*Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	_, cfg, err := decodeKV(s.kv)
	return cfg, err
}

func (s *MemoryStore) SelectDataSource(ds DataSource) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.kv[KeyDataSource] = string(ds)
	return nil
}

func (s *MemoryStore) Save(ds DataSource, cfg Config) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	old, _, _ := decodeKV(s.kv)
	encoded, err := encodeConfig(cfg)
	if err != nil {
		return false, err
	}
	s.kv[KeyDataSource] = string(ds)
	s.kv[KeyConfig] = encoded
	return RequiresReload(old.DataSource, ds, old.Config, cfg), nil
}

func (s *MemoryStore) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	delete(s.kv, KeyDataSource)
	delete(s.kv, KeyConfig)
	return nil
}
