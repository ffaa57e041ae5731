package core

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher calls onChange once a burst of file events under the watched
// directories has been quiet for the debounce interval.
type Watcher struct {
	fsw       *fsnotify.Watcher
	debounce  time.Duration
	onChange  func()
	logger    *slog.Logger
	done      chan struct{}
	closeOnce sync.Once
}

func NewWatcher(dirs []string, debounce time.Duration, onChange func(), logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	w := &Watcher{
		fsw:      fsw,
		debounce: debounce,
		onChange: onChange,
		logger:   logger,
		done:     make(chan struct{}),
	}

	for _, dir := range dirs {
		if err := w.addTree(dir); err != nil {
			fsw.Close()
			return nil, err
		}
	}

	go w.loop()
	return w, nil
}

func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		err = w.fsw.Close()
	})
	return err
}

// addTree watches root and every directory below it. Missing roots are
// skipped so a site without a public dir still gets template reloads.
func (w *Watcher) addTree(root string) error {
	if _, err := os.Stat(root); errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

func (w *Watcher) loop() {
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op == fsnotify.Chmod {
				continue
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := w.addTree(ev.Name); err != nil {
						w.logger.Warn("watch new directory", "path", ev.Name, "error", err)
					}
				}
			}
			w.logger.Debug("file changed", "path", ev.Name, "op", ev.Op.String())

			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			w.onChange()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", "error", err)
		}
	}
}
