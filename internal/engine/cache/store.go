package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const entrySuffix = ".json"

var (
	// ErrMiss is returned by Get when no fresh entry exists for the key.
	ErrMiss = errors.New("cache miss")

	// ErrEmptyKey is returned for an empty key.
	ErrEmptyKey = errors.New("cache key cannot be empty")
)

// Store keeps entries as one JSON file per key in a single directory.
// It is safe for concurrent use.
type Store struct {
	dir string
	ttl time.Duration
	now func() time.Time

	mu sync.RWMutex
}

// Open prepares dir as a cache directory whose entries live for ttlSeconds.
func Open(dir string, ttlSeconds int) (*Store, error) {
	if dir == "" {
		return nil, errors.New("cache directory cannot be empty")
	}
	if err := ValidateTTL(ttlSeconds); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	return &Store{
		dir: dir,
		ttl: time.Duration(ttlSeconds) * time.Second,
		now: time.Now,
	}, nil
}

// Dir is the directory entries are written to.
func (s *Store) Dir() string { return s.dir }

// TTL is the lifetime given to new entries.
func (s *Store) TTL() time.Duration { return s.ttl }

// Get returns the fresh entry for key, or ErrMiss. A stale entry is deleted
// on the way out.
func (s *Store) Get(key string) (*Entry, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}
	path := s.path(key)

	s.mu.RLock()
	entry, err := readEntry(path)
	s.mu.RUnlock()

	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, ErrMiss
	case err != nil:
		return nil, err
	case entry.ExpiredAt(s.now()):
		s.mu.Lock()
		_ = os.Remove(path)
		s.mu.Unlock()
		return nil, ErrMiss
	}
	return entry, nil
}

// Put stores body under key. request describes the call for humans.
func (s *Store) Put(key, request string, body json.RawMessage) error {
	if key == "" {
		return ErrEmptyKey
	}
	now := s.now()
	data, err := json.Marshal(Entry{
		Key:       key,
		Request:   request,
		Body:      body,
		StoredAt:  now,
		ExpiresAt: now.Add(s.ttl),
	})
	if err != nil {
		return fmt.Errorf("encoding cache entry: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Write beside the target and rename so readers never see half a file.
	tmp, err := os.CreateTemp(s.dir, "put-*")
	if err != nil {
		return fmt.Errorf("creating cache file: %w", err)
	}
	_, writeErr := tmp.Write(data)
	if closeErr := tmp.Close(); writeErr == nil {
		writeErr = closeErr
	}
	if writeErr == nil {
		writeErr = os.Rename(tmp.Name(), s.path(key))
	}
	if writeErr != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("writing cache entry: %w", writeErr)
	}
	return nil
}

// Evict drops key. Evicting a missing key is not an error.
func (s *Store) Evict(key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("evicting cache entry: %w", err)
	}
	return nil
}

// Prune removes stale and unreadable entries and reports how many went.
// With all set, every entry goes.
func (s *Store) Prune(all bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	paths, err := s.entryPaths()
	if err != nil {
		return 0, err
	}
	now := s.now()
	removed := 0
	for _, path := range paths {
		if !all {
			if entry, readErr := readEntry(path); readErr == nil && !entry.ExpiredAt(now) {
				continue
			}
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return removed, fmt.Errorf("removing %s: %w", filepath.Base(path), err)
		}
		removed++
	}
	return removed, nil
}

// Len counts entry files, stale ones included.
func (s *Store) Len() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	paths, err := s.entryPaths()
	return len(paths), err
}

func (s *Store) entryPaths() ([]string, error) {
	dirents, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("reading cache directory: %w", err)
	}
	paths := make([]string, 0, len(dirents))
	for _, d := range dirents {
		if d.Type().IsRegular() && strings.HasSuffix(d.Name(), entrySuffix) {
			paths = append(paths, filepath.Join(s.dir, d.Name()))
		}
	}
	return paths, nil
}

// path maps key to its file. GenerateKey output is hex; anything else is
// reduced to a base name so it cannot leave the directory.
func (s *Store) path(key string) string {
	return filepath.Join(s.dir, filepath.Base(filepath.Clean("/"+key))+entrySuffix)
}

func readEntry(path string) (*Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", filepath.Base(path), err)
	}
	return &e, nil
}
