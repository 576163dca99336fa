// Package storage persists namespaced key/value entries with a TTL between runs.
// Each namespace is a single msgpack file guarded by a file lock so that
// several processes can share a cache directory.
package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/bastiangx/typebind/internal/utils"
	"github.com/charmbracelet/log"
	"github.com/gofrs/flock"
	"github.com/vmihailenco/msgpack/v5"
)

var unsafeName = regexp.MustCompile(`[^a-zA-Z0-9_.-]+`)

type entry struct {
	Value     []byte `msgpack:"v"`
	ExpiresAt int64  `msgpack:"x,omitempty"`
}

// Store is a file-backed key/value store for one namespace.
type Store struct {
	path string
	lock *flock.Flock
	now  func() time.Time
}

// New opens the namespace under dir, creating dir when needed.
func New(dir, namespace string) (*Store, error) {
	if dir == "" {
		cacheDir, err := os.UserCacheDir()
		if err != nil {
			return nil, fmt.Errorf("cannot determine cache dir: %w", err)
		}
		dir = filepath.Join(cacheDir, "typebind")
	}
	if err := utils.EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("cannot create storage dir %s: %w", dir, err)
	}

	name := unsafeName.ReplaceAllString(namespace, "_")
	if name == "" {
		name = "default"
	}
	path := filepath.Join(dir, name+".msgpack")
	return &Store{
		path: path,
		lock: flock.New(path + ".lock"),
		now:  time.Now,
	}, nil
}

// Path returns the backing file.
func (s *Store) Path() string {
	return s.path
}

// Get decodes the entry for key into dst. Missing and expired entries report false.
func (s *Store) Get(key string, dst any) (bool, error) {
	if err := s.lock.RLock(); err != nil {
		return false, fmt.Errorf("cannot lock %s: %w", s.path, err)
	}
	defer s.unlock()

	entries, err := s.read()
	if err != nil {
		return false, err
	}
	e, ok := entries[key]
	if !ok {
		return false, nil
	}
	if e.ExpiresAt != 0 && s.now().UnixMilli() >= e.ExpiresAt {
		log.Debugf("storage entry '%s' expired", key)
		return false, nil
	}
	if err := msgpack.Unmarshal(e.Value, dst); err != nil {
		return false, fmt.Errorf("cannot decode entry %s: %w", key, err)
	}
	return true, nil
}

// Set stores value under key. A ttl of zero or less never expires.
func (s *Store) Set(key string, value any, ttl time.Duration) error {
	raw, err := msgpack.Marshal(value)
	if err != nil {
		return fmt.Errorf("cannot encode entry %s: %w", key, err)
	}

	return s.update(func(entries map[string]entry) {
		e := entry{Value: raw}
		if ttl > 0 {
			e.ExpiresAt = s.now().Add(ttl).UnixMilli()
		}
		entries[key] = e
	})
}

func (s *Store) Remove(key string) error {
	return s.update(func(entries map[string]entry) {
		delete(entries, key)
	})
}

// Clear removes every entry of the namespace.
func (s *Store) Clear() error {
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("cannot lock %s: %w", s.path, err)
	}
	defer s.unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (s *Store) update(fn func(map[string]entry)) error {
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("cannot lock %s: %w", s.path, err)
	}
	defer s.unlock()

	entries, err := s.read()
	if err != nil {
		log.Warnf("Discarding unreadable storage file %s: %v", s.path, err)
		entries = make(map[string]entry)
	}
	s.prune(entries)
	fn(entries)

	data, err := msgpack.Marshal(entries)
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *Store) read() (map[string]entry, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return make(map[string]entry), nil
	}
	if err != nil {
		return nil, err
	}
	entries := make(map[string]entry)
	if err := msgpack.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("cannot decode %s: %w", s.path, err)
	}
	return entries, nil
}

// prune drops expired entries before a write
func (s *Store) prune(entries map[string]entry) {
	now := s.now().UnixMilli()
	for key, e := range entries {
		if e.ExpiresAt != 0 && now >= e.ExpiresAt {
			delete(entries, key)
		}
	}
}

func (s *Store) unlock() {
	if err := s.lock.Unlock(); err != nil {
		log.Errorf("Failed to unlock %s: %v", s.path, err)
	}
}
