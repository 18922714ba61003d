// Package watch reports changes to a single file.
//
// The file's directory is watched rather than the file itself, so atomic
// replacements (rename over the old file) are seen as changes too.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"vawter.tech/stopper"

	"github.com/axondata/go-asyncsvc"
)

// DefaultDebounce is how long a file must stay quiet before a burst of
// events is reported as one change
const DefaultDebounce = 50 * time.Millisecond

const relevantOps = fsnotify.Write | fsnotify.Create | fsnotify.Remove | fsnotify.Rename

// Watcher reports the first change to one file
type Watcher struct {
	path     string
	debounce time.Duration
	fsw      *fsnotify.Watcher
	sctx     *stopper.Context

	changed chan struct{}
	once    sync.Once
	err     error
}

// New starts watching path. A non-positive debounce uses DefaultDebounce.
func New(path string, debounce time.Duration) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", path, err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
	}

	w := &Watcher{
		path:     abs,
		debounce: debounce,
		fsw:      fsw,
		sctx:     stopper.WithContext(context.Background()),
		changed:  make(chan struct{}),
	}
	w.sctx.Defer(func() {
		_ = fsw.Close()
	})
	w.sctx.Go(w.loop)
	return w, nil
}

// Changed is closed once the file changed or the watcher failed
func (w *Watcher) Changed() <-chan struct{} {
	return w.changed
}

// Err returns the watcher failure, if any, once Changed is closed
func (w *Watcher) Err() error {
	<-w.changed
	return w.err
}

// Close stops the watcher and releases its resources
func (w *Watcher) Close() error {
	w.sctx.Stop(100 * time.Millisecond)
	return w.sctx.Wait()
}

func (w *Watcher) signal(err error) {
	w.once.Do(func() {
		w.err = err
		close(w.changed)
	})
}

func (w *Watcher) loop(sctx *stopper.Context) error {
	var (
		timer  *time.Timer
		settle <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-sctx.Stopping():
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path || event.Op&relevantOps == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			settle = timer.C

		case <-settle:
			w.signal(nil)
			return nil

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			if err != nil {
				w.signal(fmt.Errorf("watching %s: %w", w.path, err))
				return nil
			}
		}
	}
}

// UntilChanged waits until the file at path changes. It returns nil on a
// change and ctx.Err() if ctx ends first. The wait suspends through
// asyncsvc.Await, so it is safe to call from a task on any runtime.
func UntilChanged(ctx context.Context, path string) error {
	w, err := New(path, DefaultDebounce)
	if err != nil {
		return err
	}
	defer func() {
		_ = w.Close()
	}()

	if err := asyncsvc.Await(ctx, w.Changed()); err != nil {
		return err
	}
	return w.Err()
}
