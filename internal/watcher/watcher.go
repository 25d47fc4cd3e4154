// Package watcher ingests files dropped into a watched directory, with
// fsnotify events debounced so half-written files are picked up once.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 400 * time.Millisecond

// IngestFunc receives the path of a settled file to ingest.
type IngestFunc func(ctx context.Context, path string) error

// RemoveFunc receives the path of a file deleted from the directory.
type RemoveFunc func(ctx context.Context, path string) error

// Watcher watches one drop directory and feeds new or changed files to an
// ingest callback.
type Watcher struct {
	dir        string
	extensions []string
	onFile     IngestFunc
	onRemove   RemoveFunc
	debounce   time.Duration
	logger     *zap.Logger

	watcher     *fsnotify.Watcher
	mu          sync.Mutex
	debounceMap map[string]*time.Timer
	done        chan struct{}
	started     bool
	stopOnce    sync.Once
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce overrides the settle delay before a file is ingested.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// WithOnRemove sets a callback for files deleted from the directory.
func WithOnRemove(fn RemoveFunc) Option {
	return func(w *Watcher) { w.onRemove = fn }
}

// NewWatcher creates a watcher over dir. extensions filters which files are
// picked up (empty = all); onFile runs once per settled file.
func NewWatcher(dir string, extensions []string, onFile IngestFunc, logger *zap.Logger, opts ...Option) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &Watcher{
		dir:         dir,
		extensions:  extensions,
		onFile:      onFile,
		debounce:    defaultDebounce,
		logger:      logger,
		debounceMap: make(map[string]*time.Timer),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins watching. Files already present in the directory are queued
// first so a restart never misses drops. Runs until ctx is cancelled or
// Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	if err := fw.Add(w.dir); err != nil {
		_ = fw.Close()
		w.mu.Unlock()
		return err
	}
	w.watcher = fw
	w.started = true
	w.mu.Unlock()

	w.logger.Info("watching drop directory", zap.String("dir", w.dir))

	entries, err := os.ReadDir(w.dir)
	if err == nil {
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			path := filepath.Join(w.dir, e.Name())
			if w.matchExtension(path) {
				w.scheduleIngest(ctx, path)
			}
		}
	}

	go w.run(ctx)
	return nil
}

func (w *Watcher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				if w.matchExtension(ev.Name) {
					w.handleRemove(ctx, ev.Name)
				}
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			info, err := os.Stat(ev.Name)
			if err != nil || info.IsDir() {
				continue
			}
			if w.matchExtension(ev.Name) {
				w.scheduleIngest(ctx, ev.Name)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if err != nil {
				w.logger.Warn("watcher error", zap.Error(err))
			}
		}
	}
}

// scheduleIngest resets the file's debounce timer; the callback fires only
// after the file has been quiet for the debounce window.
func (w *Watcher) scheduleIngest(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.debounceMap[path]; ok {
		t.Stop()
	}
	w.debounceMap[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.debounceMap, path)
		w.mu.Unlock()
		if err := w.onFile(ctx, path); err != nil {
			w.logger.Error("drop ingest failed", zap.String("path", path), zap.Error(err))
			return
		}
		w.logger.Info("drop ingested", zap.String("path", path))
	})
}

// handleRemove cancels any pending ingest for the path and notifies the
// removal callback.
func (w *Watcher) handleRemove(ctx context.Context, path string) {
	w.mu.Lock()
	if t, ok := w.debounceMap[path]; ok {
		t.Stop()
		delete(w.debounceMap, path)
	}
	w.mu.Unlock()
	if w.onRemove == nil {
		return
	}
	if err := w.onRemove(ctx, path); err != nil {
		w.logger.Error("drop removal failed", zap.String("path", path), zap.Error(err))
		return
	}
	w.logger.Info("drop removed", zap.String("path", path))
}

func (w *Watcher) matchExtension(path string) bool {
	if len(w.extensions) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range w.extensions {
		if strings.ToLower(e) == ext {
			return true
		}
	}
	return false
}

// Stop stops the watcher and cancels pending debounce timers.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.mu.Lock()
		for _, t := range w.debounceMap {
			t.Stop()
		}
		w.debounceMap = make(map[string]*time.Timer)
		if w.watcher != nil {
			_ = w.watcher.Close()
		}
		w.mu.Unlock()
	})
}
