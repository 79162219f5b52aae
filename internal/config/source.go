package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/rcliao/worldstate/internal/narrative"
	"github.com/rcliao/worldstate/internal/schema"
)

// ErrNothingToWatch is returned by Watch when neither a schema nor a
// template path is configured.
var ErrNothingToWatch = errors.New("no schema or template path to watch")

// Snapshot is the read-only configuration for one sync cycle.
type Snapshot struct {
	Registry  *schema.Registry
	Templates narrative.TemplateSet
}

// DefaultSnapshot has an empty registry and the built-in templates.
func DefaultSnapshot() Snapshot {
	return Snapshot{Registry: schema.NewRegistry(), Templates: narrative.DefaultTemplateSet()}
}

// Source owns the current Snapshot. Reload swaps in a new one atomically,
// so a cycle that already took a snapshot keeps it until it finishes.
type Source struct {
	schemaPath    string
	templatesPath string
	logger        *zap.Logger
	debounce      time.Duration

	current atomic.Pointer[Snapshot]
}

// NewSource loads the schema (a file or a directory of YAML files) and the
// template file. Either path may be empty.
func NewSource(schemaPath, templatesPath string, logger *zap.Logger) (*Source, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Source{
		schemaPath:    schemaPath,
		templatesPath: templatesPath,
		logger:        logger,
		debounce:      100 * time.Millisecond,
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// StaticSource serves snap forever. Reload is a no-op.
func StaticSource(snap Snapshot) *Source {
	s := &Source{logger: zap.NewNop()}
	s.current.Store(&snap)
	return s
}

// Current returns the snapshot in effect now.
func (s *Source) Current() Snapshot {
	return *s.current.Load()
}

// Reload reads both files again. On error the previous snapshot stays.
func (s *Source) Reload() error {
	snap, err := load(s.schemaPath, s.templatesPath)
	if err != nil {
		return err
	}
	if s.schemaPath == "" && s.templatesPath == "" && s.current.Load() != nil {
		return nil
	}
	s.current.Store(&snap)
	return nil
}

func load(schemaPath, templatesPath string) (Snapshot, error) {
	snap := DefaultSnapshot()
	if schemaPath != "" {
		reg, err := schema.Load(schemaPath)
		if err != nil {
			return Snapshot{}, fmt.Errorf("load schema: %w", err)
		}
		snap.Registry = reg
	}
	if templatesPath != "" {
		ts, err := narrative.LoadTemplateSet(templatesPath)
		if err != nil {
			return Snapshot{}, fmt.Errorf("load templates: %w", err)
		}
		snap.Templates = ts
	}
	return snap, nil
}

// Watch reloads the snapshot whenever a watched file changes, until ctx is
// done. Bursts of events are coalesced. Reload failures are logged and the
// previous snapshot is kept.
func (s *Source) Watch(ctx context.Context) error {
	if s.schemaPath == "" && s.templatesPath == "" {
		return ErrNothingToWatch
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	for _, p := range []string{s.schemaPath, s.templatesPath} {
		if p == "" {
			continue
		}
		if err := addWatch(watcher, p); err != nil {
			return err
		}
	}

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() && s.within(s.schemaPath, ev.Name) {
					_ = addWatch(watcher, ev.Name)
				}
			}
			if !s.relevant(ev.Name) || (ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Write)) {
				continue
			}
			s.logger.Debug("config change", zap.String("path", ev.Name), zap.String("op", ev.Op.String()))
			pending = time.After(s.debounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("config watcher", zap.Error(err))
		case <-pending:
			pending = nil
			if err := s.Reload(); err != nil {
				s.logger.Warn("reload config", zap.Error(err))
				continue
			}
			s.logger.Info("config reloaded",
				zap.String("schema", s.schemaPath),
				zap.String("templates", s.templatesPath),
				zap.Int("fields", s.Current().Registry.Len()))
		}
	}
}

// addWatch watches a file's directory, since editors often replace files
// instead of writing them, or every directory under a schema directory.
func addWatch(w *fsnotify.Watcher, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}
	if !info.IsDir() {
		if err := w.Add(filepath.Dir(path)); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	}
	return filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.Add(p); err != nil {
			return fmt.Errorf("watch %s: %w", p, err)
		}
		return nil
	})
}

func (s *Source) relevant(name string) bool {
	name = filepath.Clean(name)
	if s.templatesPath != "" && name == filepath.Clean(s.templatesPath) {
		return true
	}
	if s.schemaPath == "" {
		return false
	}
	if name == filepath.Clean(s.schemaPath) {
		return true
	}
	if !s.within(s.schemaPath, name) {
		return false
	}
	rel, _ := filepath.Rel(s.schemaPath, name)
	ok, _ := doublestar.Match(schema.FilePattern, filepath.ToSlash(rel))
	return ok
}

func (s *Source) within(root, name string) bool {
	if root == "" {
		return false
	}
	rel, err := filepath.Rel(root, name)
	if err != nil || rel == "." {
		return false
	}
	return !strings.HasPrefix(rel, "..")
}
