package classifier

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// BuildFunc builds a fresh engine, typically by reloading the catalog and
// term table from disk.
type BuildFunc func(ctx context.Context) (*Engine, error)

// CatalogWatcher rebuilds the engine when the catalog file changes and
// publishes it through a Holder. A failed rebuild keeps the current engine.
type CatalogWatcher struct {
	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	path     string
	holder   *Holder
	build    BuildFunc
	logger   *zap.Logger
	debounce time.Duration
	pending  time.Time
	stopCh   chan struct{}
	doneCh   chan struct{}
	running  bool
	reloads  int
}

// NewCatalogWatcher prepares a watcher for path. The parent directory is
// watched so editors that replace the file are handled.
func NewCatalogWatcher(path string, holder *Holder, build BuildFunc, logger *zap.Logger) (*CatalogWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		_ = w.Close()
		return nil, err
	}
	return &CatalogWatcher{
		watcher:  w,
		path:     abs,
		holder:   holder,
		build:    build,
		logger:   logger,
		debounce: 300 * time.Millisecond,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start begins watching. It does not block.
func (cw *CatalogWatcher) Start(ctx context.Context) error {
	cw.mu.Lock()
	if cw.running {
		cw.mu.Unlock()
		return nil
	}
	cw.running = true
	cw.mu.Unlock()

	if err := cw.watcher.Add(filepath.Dir(cw.path)); err != nil {
		cw.mu.Lock()
		cw.running = false
		cw.mu.Unlock()
		return err
	}
	cw.logger.Info("watching catalog", zap.String("path", cw.path))
	go cw.run(ctx)
	return nil
}

// Stop ends the watch loop and waits for it to exit.
func (cw *CatalogWatcher) Stop() {
	cw.mu.Lock()
	wasRunning := cw.running
	cw.running = false
	cw.mu.Unlock()

	if wasRunning {
		close(cw.stopCh)
		<-cw.doneCh
	}
	if err := cw.watcher.Close(); err != nil {
		cw.logger.Warn("closing catalog watcher", zap.Error(err))
	}
}

// Reloads returns how many successful reloads have been published.
func (cw *CatalogWatcher) Reloads() int {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	return cw.reloads
}

func (cw *CatalogWatcher) run(ctx context.Context) {
	defer close(cw.doneCh)

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-cw.stopCh:
			return
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			cw.handleEvent(event)
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			cw.logger.Warn("catalog watcher error", zap.Error(err))
		case <-ticker.C:
			cw.maybeReload(ctx)
		}
	}
}

func (cw *CatalogWatcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != cw.path {
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return
	}
	cw.mu.Lock()
	cw.pending = time.Now()
	cw.mu.Unlock()
}

func (cw *CatalogWatcher) maybeReload(ctx context.Context) {
	cw.mu.Lock()
	if cw.pending.IsZero() || time.Since(cw.pending) < cw.debounce {
		cw.mu.Unlock()
		return
	}
	cw.pending = time.Time{}
	cw.mu.Unlock()

	start := time.Now()
	engine, err := cw.build(ctx)
	if err != nil {
		cw.logger.Warn("catalog reload failed, keeping current engine",
			zap.String("path", cw.path), zap.Error(err))
		return
	}
	cw.holder.Swap(engine)
	cw.mu.Lock()
	cw.reloads++
	cw.mu.Unlock()
	cw.logger.Info("catalog reloaded",
		zap.String("path", cw.path), zap.Duration("took", time.Since(start)))
}
