// Package localstore persists small client-side values under fixed keys.
// The file-backed store keeps them in ~/.local/share/murmur/session.toml.
package localstore

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	toml "github.com/pelletier/go-toml/v2"
)

// Key names a stored value.
type Key string

const (
	// KeyToken holds the bearer credential.
	KeyToken Key = "jwt"
	// KeyTempToken holds the short-lived token issued when login needs a second factor.
	KeyTempToken Key = "temp_token"
	// KeyOTPSecret holds the one-time-password secret until setup completes.
	KeyOTPSecret Key = "otp_secret"
)

// Store is durable key/value storage.
type Store interface {
	Get(key Key) (string, bool)
	Set(key Key, value string) error
	Remove(key Key) error
}

var (
	_ Store = (*File)(nil)
	_ Store = (*Memory)(nil)
)

const defaultPath = "~/.local/share/murmur/session.toml"

// DefaultPath returns the default storage file path.
func DefaultPath() string {
	return defaultPath
}

// File is a Store backed by a TOML file. Every write rewrites the file.
type File struct {
	mu     sync.Mutex
	path   string
	values map[string]string
}

// OpenFile loads the store at path, starting empty when the file is missing or
// unreadable. Only path resolution errors are returned.
func OpenFile(path string) (*File, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return nil, err
	}
	f := &File{path: resolved, values: map[string]string{}}

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return f, nil
		}
		return f, nil // Graceful degradation
	}
	defer func() { _ = file.Close() }()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return f, nil
	}
	if err := toml.Unmarshal(bytes, &f.values); err != nil {
		f.values = map[string]string{}
	}
	return f, nil
}

// Path returns the resolved file path.
func (f *File) Path() string {
	return f.path
}

// Get implements Store.
func (f *File) Get(key Key) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[string(key)]
	return v, ok && v != ""
}

// Set implements Store.
func (f *File) Set(key Key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	prev, had := f.values[string(key)]
	f.values[string(key)] = value
	if err := f.save(); err != nil {
		if had {
			f.values[string(key)] = prev
		} else {
			delete(f.values, string(key))
		}
		return err
	}
	return nil
}

// Remove implements Store. The in-memory value is dropped even if the file
// cannot be rewritten.
func (f *File) Remove(key Key) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.values[string(key)]; !ok {
		return nil
	}
	delete(f.values, string(key))
	return f.save()
}

func (f *File) save() error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("create storage dir: %w", err)
	}
	bytes, err := toml.Marshal(f.values)
	if err != nil {
		return fmt.Errorf("marshal storage: %w", err)
	}
	if err := os.WriteFile(f.path, bytes, 0o600); err != nil {
		return fmt.Errorf("write storage: %w", err)
	}
	return nil
}

// Memory is a process-local Store, used in tests and when no data dir is available.
type Memory struct {
	mu     sync.Mutex
	values map[Key]string
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{values: map[Key]string{}}
}

// Get implements Store.
func (m *Memory) Get(key Key) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok && v != ""
}

// Set implements Store.
func (m *Memory) Set(key Key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

// Remove implements Store.
func (m *Memory) Remove(key Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultPath)
	}
	return expandPath(path)
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
