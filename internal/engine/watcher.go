package engine

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ChangeEvent is one debounced filesystem change under the AVD home.
type ChangeEvent struct {
	Path      string
	Timestamp time.Time
}

// AvdWatcher watches the AVD home directory so external edits (Android
// Studio creating or deleting an AVD) trigger an out-of-cycle refresh
// instead of waiting for the next tick.
type AvdWatcher struct {
	fsWatcher *fsnotify.Watcher
	debounce  time.Duration
}

func NewAvdWatcher(debounce time.Duration) (*AvdWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &AvdWatcher{fsWatcher: fsw, debounce: debounce}, nil
}

// AddAvdHome watches the AVD home plus each existing <name>.avd directory,
// where config.ini edits land.
func (w *AvdWatcher) AddAvdHome(root string) error {
	if err := w.fsWatcher.Add(root); err != nil {
		return err
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil
	}
	for _, entry := range entries {
		if entry.IsDir() && strings.HasSuffix(entry.Name(), ".avd") {
			// Unwatchable subdirectories are skipped, the root watch still
			// catches creations and deletions.
			_ = w.fsWatcher.Add(filepath.Join(root, entry.Name()))
		}
	}
	return nil
}

// Watch returns a channel emitting debounced change events until ctx ends.
func (w *AvdWatcher) Watch(ctx context.Context) <-chan ChangeEvent {
	out := make(chan ChangeEvent)

	go func() {
		defer close(out)

		var mu sync.Mutex
		var pending *time.Timer
		var lastPath string

		for {
			select {
			case <-ctx.Done():
				if pending != nil {
					pending.Stop()
				}
				return

			case event, ok := <-w.fsWatcher.Events:
				if !ok {
					return
				}
				if !w.relevant(event.Name) {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}

				mu.Lock()
				lastPath = event.Name
				if pending != nil {
					pending.Stop()
				}
				pending = time.AfterFunc(w.debounce, func() {
					mu.Lock()
					p := lastPath
					mu.Unlock()

					select {
					case out <- ChangeEvent{Path: p, Timestamp: time.Now()}:
					case <-ctx.Done():
					}
				})
				mu.Unlock()

			case _, ok := <-w.fsWatcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()

	return out
}

// relevant keeps AVD definition changes and drops emulator scratch files,
// which churn constantly while a device runs.
func (w *AvdWatcher) relevant(path string) bool {
	base := filepath.Base(path)
	switch {
	case strings.HasSuffix(base, ".ini"), strings.HasSuffix(base, ".avd"):
		return true
	case strings.HasSuffix(base, ".lock"), strings.Contains(base, ".img"),
		base == "snapshots", strings.HasSuffix(base, ".txt"):
		return false
	}
	return false
}

func (w *AvdWatcher) Close() error {
	return w.fsWatcher.Close()
}
