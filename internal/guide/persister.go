package guide

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sync"
)

// Persister is a small key/value store for client state that survives restarts
type Persister interface {
	// Get returns the stored value and whether the key exists
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte) error
	Delete(key string) error
}

var validKey = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// FilePersister stores each key as <dir>/<key>.json
type FilePersister struct {
	dir string
}

// NewFilePersister creates the state directory if needed
func NewFilePersister(dir string) (*FilePersister, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create state dir: %w", err)
	}
	return &FilePersister{dir: dir}, nil
}

// DefaultStateDir is the per-user directory used by guidectl
func DefaultStateDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "audioguide")
	}
	return filepath.Join(os.TempDir(), "audioguide")
}

func (p *FilePersister) path(key string) (string, error) {
	if !validKey.MatchString(key) {
		return "", fmt.Errorf("invalid state key %q", key)
	}
	return filepath.Join(p.dir, key+".json"), nil
}

func (p *FilePersister) Get(key string) ([]byte, bool, error) {
	path, err := p.path(key)
	if err != nil {
		return nil, false, err
	}
	data, err := os.ReadFile(path)
	if stderrors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return data, true, nil
}

// Set writes through a temp file so a crash never leaves a half-written value
func (p *FilePersister) Set(key string, value []byte) error {
	path, err := p.path(key)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(p.dir, key+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(value); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

func (p *FilePersister) Delete(key string) error {
	path, err := p.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// MemoryPersister keeps values in memory
type MemoryPersister struct {
	mu     sync.Mutex
	values map[string][]byte
}

func NewMemoryPersister() *MemoryPersister {
	return &MemoryPersister{values: make(map[string][]byte)}
}

func (p *MemoryPersister) Get(key string) ([]byte, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.values[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (p *MemoryPersister) Set(key string, value []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values[key] = append([]byte(nil), value...)
	return nil
}

func (p *MemoryPersister) Delete(key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.values, key)
	return nil
}
