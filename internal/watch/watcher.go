// Package watch reports changes under the source tree so callers can re-plan.
package watch

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"

	"agentcfg/internal/storage"
)

// DefaultDebounce is how long the source tree must be quiet before a batch
// of changes is emitted.
const DefaultDebounce = 300 * time.Millisecond

// Watcher watches a directory tree recursively and emits debounced batches
// of changed paths, relative to the root and slash separated.
type Watcher struct {
	watcher  *fsnotify.Watcher
	root     string
	debounce time.Duration

	changes chan []string
	errors  chan error
	done    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// New creates a watcher for root. It must be started with Start.
func New(root string, debounce time.Duration) (*Watcher, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", root, err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		watcher:  fw,
		root:     abs,
		debounce: debounce,
		changes:  make(chan []string, 16),
		errors:   make(chan error, 10),
		done:     make(chan struct{}),
	}, nil
}

// Start adds every directory under the root and begins emitting batches.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("watcher already running")
	}
	if _, err := w.addTree(w.root); err != nil {
		return err
	}

	w.running = true
	w.wg.Add(1)
	go w.processEvents()
	return nil
}

// Stop ends watching and closes the Changes and Errors channels. It blocks
// until the event loop has exited.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return w.watcher.Close()
	}
	w.running = false
	w.mu.Unlock()

	close(w.done)
	if err := w.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	w.wg.Wait()

	close(w.changes)
	close(w.errors)
	return nil
}

// Changes emits sorted batches of changed paths
func (w *Watcher) Changes() <-chan []string { return w.changes }

// Errors emits errors reported by the underlying watcher
func (w *Watcher) Errors() <-chan error { return w.errors }

// IsRunning reports whether Start has been called and Stop has not.
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *Watcher) processEvents() {
	defer w.wg.Done()

	pending := make(map[string]bool)
	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			paths := w.convertEvent(event)
			if len(paths) == 0 {
				continue
			}
			for _, p := range paths {
				pending[p] = true
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(w.debounce)
			fire = timer.C

		case <-fire:
			fire = nil
			batch := make([]string, 0, len(pending))
			for p := range pending {
				batch = append(batch, p)
			}
			sort.Strings(batch)
			pending = make(map[string]bool)

			log.WithField("paths", len(batch)).Debug("watch: source changed")
			select {
			case w.changes <- batch:
			case <-w.done:
				return
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			select {
			case w.errors <- err:
			case <-w.done:
				return
			}
		}
	}
}

// convertEvent returns the relative paths an event touches, or nil when it
// should be ignored. A newly created directory is watched and the files
// already inside it are reported.
func (w *Watcher) convertEvent(event fsnotify.Event) []string {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return nil
	}
	if storage.IsTempFile(filepath.ToSlash(event.Name)) {
		return nil
	}
	rel, ok := w.relative(event.Name)
	if !ok {
		return nil
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			files, err := w.addTree(event.Name)
			if err != nil {
				log.WithError(err).WithField("dir", event.Name).Warn("watch: failed to watch new directory")
			}
			return append([]string{rel}, files...)
		}
	}
	return []string{rel}
}

// addTree watches dir and every directory below it, returning the files
// found on the way.
func (w *Watcher) addTree(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			if rel, ok := w.relative(p); ok && !storage.IsTempFile(rel) {
				files = append(files, rel)
			}
			return nil
		}
		if err := w.watcher.Add(p); err != nil {
			return fmt.Errorf("failed to watch %s: %w", p, err)
		}
		return nil
	})
	return files, err
}

func (w *Watcher) relative(p string) (string, bool) {
	rel, err := filepath.Rel(w.root, p)
	if err != nil || rel == "." {
		return "", false
	}
	return filepath.ToSlash(rel), true
}
