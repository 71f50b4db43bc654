package edgecache

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// FileStore persists cache entries as JSON files under a base directory,
// one subdirectory per cache name. It serves tablets that run without a
// local Redis; writes are atomic via temp-file rename.
type FileStore struct {
	dir string
}

// NewFileStore creates a file-backed store rooted at dir.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home dir: %w", err)
		}
		dir = filepath.Join(home, ".mes-edge-cache")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Get retrieves an entry. Returns ErrMiss if absent or expired.
func (s *FileStore) Get(_ context.Context, cacheName, key string) (*Entry, error) {
	data, err := os.ReadFile(s.path(cacheName, key))
	if err != nil {
		storeMisses.WithLabelValues(cacheName).Inc()
		return nil, ErrMiss
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		storeErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("unmarshal cache entry: %w", err)
	}

	if entry.Expired() {
		_ = os.Remove(s.path(cacheName, key))
		storeMisses.WithLabelValues(cacheName).Inc()
		return nil, ErrMiss
	}

	storeHits.WithLabelValues(cacheName).Inc()
	return &entry, nil
}

// Put stores an entry and evicts least-recently-stored files beyond
// maxEntries.
func (s *FileStore) Put(_ context.Context, cacheName string, entry *Entry, maxEntries int) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}
	if entry.TTL() <= 0 {
		return nil
	}

	cacheDir := filepath.Join(s.dir, cacheName)
	if err := os.MkdirAll(cacheDir, 0o700); err != nil {
		storeErrors.WithLabelValues("put").Inc()
		return fmt.Errorf("create cache dir: %w", err)
	}

	data, err := json.Marshal(entry)
	if err != nil {
		storeErrors.WithLabelValues("put").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	path := s.path(cacheName, entry.Key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		storeErrors.WithLabelValues("put").Inc()
		return fmt.Errorf("write cache entry: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		storeErrors.WithLabelValues("put").Inc()
		return fmt.Errorf("rename cache entry: %w", err)
	}

	return s.enforceLimit(cacheDir, cacheName, maxEntries)
}

// Delete removes an entry.
func (s *FileStore) Delete(_ context.Context, cacheName, key string) error {
	if err := os.Remove(s.path(cacheName, key)); err != nil && !os.IsNotExist(err) {
		storeErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("remove cache entry: %w", err)
	}
	return nil
}

func (s *FileStore) path(cacheName, key string) string {
	return filepath.Join(s.dir, cacheName, sanitizeKey(key)+".json")
}

// sanitizeKey makes a cache key safe for use as a filename. Very long
// keys are hashed to stay below filesystem name limits.
func sanitizeKey(key string) string {
	if len(key) > 200 {
		return fmt.Sprintf("hash_%x", md5.Sum([]byte(key)))
	}

	unsafe := []string{"/", ":", "?", "&", "=", "#", "<", ">", "|", "*", "\""}
	result := key
	for _, char := range unsafe {
		result = strings.ReplaceAll(result, char, "_")
	}
	return result
}

func (s *FileStore) enforceLimit(cacheDir, cacheName string, maxEntries int) error {
	if maxEntries <= 0 {
		return nil
	}

	names, err := filepath.Glob(filepath.Join(cacheDir, "*.json"))
	if err != nil {
		return fmt.Errorf("list cache dir: %w", err)
	}
	if len(names) <= maxEntries {
		return nil
	}

	type aged struct {
		path     string
		storedAt time.Time
	}
	files := make([]aged, 0, len(names))
	for _, name := range names {
		info, err := os.Stat(name)
		if err != nil {
			continue
		}
		files = append(files, aged{path: name, storedAt: info.ModTime()})
	}
	sort.Slice(files, func(i, j int) bool {
		return files[i].storedAt.Before(files[j].storedAt)
	})

	for _, victim := range files[:len(files)-maxEntries] {
		if err := os.Remove(victim.path); err == nil {
			storeEvictions.WithLabelValues(cacheName).Inc()
		}
	}
	return nil
}
