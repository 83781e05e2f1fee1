package scenario

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Store loads fixture pools from a directory of JSON files, one file
// per category (valid.json for the valid pool). The directory is
// watched so edited fixtures are picked up by the next run; sequences
// already built are unaffected.
type Store struct {
	dir     string
	logger  *zap.Logger
	watcher *fsnotify.Watcher

	mu    sync.RWMutex
	pools map[string][]Fixture
}

// NewStore reads all fixture files under dir and starts watching for
// changes. Categories absent from the directory fall back to the
// built-in pools.
func NewStore(dir string, logger *zap.Logger) (*Store, error) {
	s := &Store{
		dir:    dir,
		logger: logger,
		pools:  make(map[string][]Fixture),
	}
	if err := s.reload(); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("scenario: watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("scenario: watch %s: %w", dir, err)
	}
	s.watcher = watcher
	go s.watch()
	return s, nil
}

// Pool returns the fixtures for a category, falling back to the
// built-in catalog when the directory has none.
func (s *Store) Pool(category string) []Fixture {
	s.mu.RLock()
	pool, ok := s.pools[category]
	s.mu.RUnlock()
	if ok && len(pool) > 0 {
		return pool
	}
	return builtinPools[category]
}

// Close stops the directory watcher.
func (s *Store) Close() error {
	if s.watcher != nil {
		return s.watcher.Close()
	}
	return nil
}

func (s *Store) watch() {
	for {
		select {
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if err := s.reload(); err != nil {
				s.logger.Warn("fixture reload failed", zap.Error(err))
				continue
			}
			s.logger.Info("fixtures reloaded", zap.String("trigger", ev.Name))
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("fixture watcher error", zap.Error(err))
		}
	}
}

func (s *Store) reload() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("scenario: read fixture dir %s: %w", s.dir, err)
	}

	pools := make(map[string][]Fixture)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		path := filepath.Join(s.dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("scenario: read %s: %w", path, err)
		}
		var fixtures []Fixture
		if err := json.Unmarshal(data, &fixtures); err != nil {
			return fmt.Errorf("scenario: parse %s: %w", path, err)
		}
		category := strings.TrimSuffix(e.Name(), ".json")
		if category == "valid" {
			category = ""
		}
		pools[category] = fixtures
	}

	s.mu.Lock()
	s.pools = pools
	s.mu.Unlock()
	return nil
}
