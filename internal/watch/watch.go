// Package watch refreshes expanded directories when their contents change on
// disk.
package watch

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"lazytree/internal/explorer"
	"lazytree/internal/tree"
)

const debounceDelay = 200 * time.Millisecond

// Watcher reports directories whose entries changed. Bursts of events for the
// same directory are collapsed into one report.
type Watcher struct {
	fsw    *fsnotify.Watcher
	log    *zap.Logger
	events chan string

	mu      sync.Mutex
	watched map[string]bool
	pending map[string]bool
	timer   *time.Timer
	closed  bool

	done chan struct{}
}

func New(log *zap.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	w := &Watcher{
		fsw:     fsw,
		log:     log,
		events:  make(chan string, 32),
		watched: make(map[string]bool),
		pending: make(map[string]bool),
		done:    make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// Events delivers changed directories. It is closed by Close.
func (w *Watcher) Events() <-chan string { return w.events }

// Sync watches exactly dirs, adding and removing watches as needed.
func (w *Watcher) Sync(dirs []string) {
	want := make(map[string]bool, len(dirs))
	for _, d := range dirs {
		want[filepath.Clean(d)] = true
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	for d := range w.watched {
		if !want[d] {
			_ = w.fsw.Remove(d)
			delete(w.watched, d)
		}
	}
	for d := range want {
		if w.watched[d] {
			continue
		}
		if err := w.fsw.Add(d); err != nil {
			w.log.Debug("cannot watch directory", zap.String("path", d), zap.Error(err))
			continue
		}
		w.watched[d] = true
	}
}

// Watched lists the directories currently watched.
func (w *Watcher) Watched() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.watched))
	for d := range w.watched {
		out = append(out, d)
	}
	return out
}

func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()

	err := w.fsw.Close()
	<-w.done
	close(w.events)
	return err
}

func (w *Watcher) loop() {
	defer close(w.done)
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op == fsnotify.Chmod {
				continue
			}
			w.queue(filepath.Dir(ev.Name))
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("watch error", zap.Error(err))
		}
	}
}

func (w *Watcher) queue(dir string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.pending[dir] = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(debounceDelay, w.flush)
}

func (w *Watcher) flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	for dir := range w.pending {
		select {
		case w.events <- dir:
		default:
			w.log.Debug("dropping change event", zap.String("path", dir))
		}
		delete(w.pending, dir)
	}
}

// Tree is the part of an Explorer the watcher drives.
type Tree interface {
	ExpandedDirs() []string
	RefreshPath(ctx context.Context, dir string) error
	Subscribe(fn func(tree.Change)) func()
}

// Follow keeps w watching the expanded directories of t and refreshes them as
// they change, until ctx is done.
func Follow(ctx context.Context, t Tree, w *Watcher) {
	resync := make(chan struct{}, 1)
	unsubscribe := t.Subscribe(func(c tree.Change) {
		if c.Prop != tree.PropExpanded && c.Prop != tree.PropChildren {
			return
		}
		select {
		case resync <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	w.Sync(t.ExpandedDirs())
	for {
		select {
		case <-ctx.Done():
			return
		case <-resync:
			w.Sync(t.ExpandedDirs())
		case dir, ok := <-w.Events():
			if !ok {
				return
			}
			err := t.RefreshPath(ctx, dir)
			switch {
			case err == nil:
				w.log.Debug("refreshed", zap.String("path", dir))
			case errors.Is(err, explorer.ErrNotFound), errors.Is(err, context.Canceled):
			default:
				w.log.Warn("refresh failed", zap.String("path", dir), zap.Error(err))
			}
		}
	}
}
