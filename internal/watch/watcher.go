// Package watch registers files dropped into the documents tree on disk.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Mekopa/AIHackathon-RAGLens/internal/documents"
	"github.com/Mekopa/AIHackathon-RAGLens/internal/library"
)

// DefaultSettle is how long a file must stay quiet before it is registered.
const DefaultSettle = 2 * time.Second

// Registrar records a file found in the documents tree. library.Library
// implements it.
type Registrar interface {
	Register(ctx context.Context, path string) (documents.Document, bool, error)
}

// Watcher follows the documents root recursively. Removals are ignored:
// deletion goes through the library, which owns derived data.
type Watcher struct {
	root     string
	registry Registrar
	settle   time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	pending map[string]*time.Timer
	wg      sync.WaitGroup
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithSettle sets the quiet period before registration.
func WithSettle(d time.Duration) Option {
	return func(w *Watcher) {
		if d >= 0 {
			w.settle = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// New creates a watcher for root.
func New(root string, registry Registrar, opts ...Option) *Watcher {
	w := &Watcher{
		root:     root,
		registry: registry,
		settle:   DefaultSettle,
		logger:   slog.Default(),
		pending:  make(map[string]*time.Timer),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Scan registers every file already in the tree and returns how many were
// new.
func (w *Watcher) Scan(ctx context.Context) (int, error) {
	created := 0
	err := filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if path != w.root && ignored(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if ignored(d.Name()) {
			return nil
		}
		if w.register(ctx, path) {
			created++
		}
		return nil
	})
	return created, err
}

// Run scans the tree and then watches it until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	if err := w.addTree(fw, w.root); err != nil {
		return err
	}
	if n, err := w.Scan(ctx); err != nil {
		w.logger.Warn("initial scan failed", "error", err)
	} else {
		w.logger.Info("watching documents tree", "root", w.root, "registered", n)
	}

	defer w.wait()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handle(ctx, fw, ev)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", "error", err)
		}
	}
}

func (w *Watcher) handle(ctx context.Context, fw *fsnotify.Watcher, ev fsnotify.Event) {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return
	}
	if ignored(filepath.Base(ev.Name)) {
		return
	}
	info, err := os.Stat(ev.Name)
	if err != nil {
		return
	}
	if info.IsDir() {
		if err := w.addTree(fw, ev.Name); err != nil {
			w.logger.Warn("failed to watch new directory", "path", ev.Name, "error", err)
		}
		// Files may have landed before the watch was added.
		filepath.WalkDir(ev.Name, func(path string, d fs.DirEntry, err error) error {
			if err == nil && !d.IsDir() && !ignored(d.Name()) {
				w.schedule(ctx, path)
			}
			return nil
		})
		return
	}
	w.schedule(ctx, ev.Name)
}

// schedule registers path once it has been quiet for the settle period.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok && t.Stop() {
		t.Reset(w.settle)
		return
	}
	w.wg.Add(1)
	var t *time.Timer
	t = time.AfterFunc(w.settle, func() {
		defer w.wg.Done()
		w.mu.Lock()
		if w.pending[path] == t {
			delete(w.pending, path)
		}
		w.mu.Unlock()
		if ctx.Err() == nil {
			w.register(ctx, path)
		}
	})
	w.pending[path] = t
}

// wait stops pending timers and waits for running registrations.
func (w *Watcher) wait() {
	w.mu.Lock()
	for path, t := range w.pending {
		if t.Stop() {
			delete(w.pending, path)
			w.wg.Done()
		}
	}
	w.mu.Unlock()
	w.wg.Wait()
}

func (w *Watcher) register(ctx context.Context, path string) bool {
	doc, created, err := w.registry.Register(ctx, path)
	switch {
	case errors.Is(err, library.ErrUnsupportedType):
		w.logger.Debug("ignoring unsupported file", "path", path)
	case err != nil:
		w.logger.Warn("failed to register file", "path", path, "error", err)
	case created:
		w.logger.Info("registered file from disk", "path", path, "document_id", doc.ID)
	}
	return err == nil && created
}

func (w *Watcher) addTree(fw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && ignored(d.Name()) {
			return filepath.SkipDir
		}
		if err := fw.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

// ignored reports hidden entries, which include in-flight uploads.
func ignored(name string) bool {
	return strings.HasPrefix(name, ".")
}
