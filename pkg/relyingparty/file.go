package relyingparty

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/samlfed/pkg/observability"
)

// fileDocument is the on-disk YAML layout for FileStore.
type fileDocument struct {
	RelyingParties []RelyingParty `yaml:"relying_parties"`
}

// FileStore serves relying party configuration from a YAML file and
// reloads it when the file changes. Lookups read an atomic snapshot, so
// a reload never blocks Get and a broken edit keeps the last good state.
type FileStore struct {
	path     string
	logger   *observability.Logger
	snapshot atomic.Value // map[string]RelyingParty
	watcher  *fsnotify.Watcher
	done     chan struct{}
}

// NewFileStore loads path and starts watching it for changes.
func NewFileStore(path string, logger *observability.Logger) (*FileStore, error) {
	s := &FileStore{
		path:   path,
		logger: logger.WithField("component", "relyingparty_file_store"),
		done:   make(chan struct{}),
	}
	if err := s.reload(); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	// Watch the directory rather than the file itself: editors and config
	// management tools typically replace the file, which drops a watch on
	// the old inode.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(path), err)
	}
	s.watcher = watcher
	go s.watch()
	return s, nil
}

// Get implements Store.
func (s *FileStore) Get(_ context.Context, entityID string) (*RelyingParty, error) {
	parties := s.snapshot.Load().(map[string]RelyingParty)
	p, ok := parties[entityID]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

// Close stops the file watcher.
func (s *FileStore) Close() error {
	close(s.done)
	return s.watcher.Close()
}

func (s *FileStore) reload() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", s.path, err)
	}

	var doc fileDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse %s: %w", s.path, err)
	}

	parties := make(map[string]RelyingParty, len(doc.RelyingParties))
	for _, p := range doc.RelyingParties {
		if p.EntityID == "" {
			return fmt.Errorf("relying party entry in %s is missing entity_id", s.path)
		}
		parties[p.EntityID] = p
	}
	s.snapshot.Store(parties)
	return nil
}

func (s *FileStore) watch() {
	for {
		select {
		case <-s.done:
			return
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if filepath.Clean(event.Name) != filepath.Clean(s.path) {
				continue
			}
			if err := s.reload(); err != nil {
				s.logger.WithError(err).Warn("keeping previous relying party snapshot")
				continue
			}
			s.logger.WithField("path", s.path).Info("reloaded relying parties")
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.WithError(err).Warn("relying party watcher error")
		}
	}
}
