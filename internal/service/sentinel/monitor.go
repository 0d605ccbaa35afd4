package sentinel

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"

	"github.com/oshokin/nursery-speaker/internal/logger"
)

// Signal is the request found in the sentinel files.
type Signal int

const (
	// SignalNone means keep running.
	SignalNone Signal = iota
	// SignalStop means end the process.
	SignalStop
	// SignalRestart means end and start the process again.
	SignalRestart
)

// String returns the signal name used in logs.
func (s Signal) String() string {
	switch s {
	case SignalStop:
		return "stop"
	case SignalRestart:
		return "restart"
	default:
		return "none"
	}
}

// Monitor reports stop and restart requests.
type Monitor struct {
	// stopFile ends the process while it exists.
	stopFile string
	// restartFile requests a restart and is removed once seen.
	restartFile string

	// watcher is nil when watching failed and every Check stats the files.
	watcher *fsnotify.Watcher
	// dirty is raised by the watcher when a sentinel path changed.
	dirty atomic.Bool

	closeCh chan struct{}
	done    chan struct{}
	once    sync.Once
}

// New starts watching the directories of both sentinel files.
func New(ctx context.Context, stopFile, restartFile string) *Monitor {
	ctx = logger.WithName(ctx, "sentinel")

	m := &Monitor{
		stopFile:    filepath.Clean(stopFile),
		restartFile: filepath.Clean(restartFile),
		closeCh:     make(chan struct{}),
		done:        make(chan struct{}),
	}

	// Files created before the watcher started are picked up on the first check.
	m.dirty.Store(true)

	w, err := watch(filepath.Dir(m.stopFile), filepath.Dir(m.restartFile))
	if err != nil {
		logger.WarnKV(ctx, "Cannot watch sentinel files, checking them every tick", "error", err)
		close(m.done)

		return m
	}

	m.watcher = w

	go m.run(ctx)

	return m
}

// watch creates a watcher on every distinct directory.
func watch(dirs ...string) (*fsnotify.Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(dirs))

	for _, dir := range dirs {
		if _, ok := seen[dir]; ok {
			continue
		}

		seen[dir] = struct{}{}

		if err = w.Add(dir); err != nil {
			_ = w.Close()
			return nil, err
		}
	}

	return w, nil
}

// Check reports the pending request, if any. A found restart file is removed
// so the next process does not restart again; the stop file is left in place.
func (m *Monitor) Check(ctx context.Context) Signal {
	if m.watcher != nil && !m.dirty.Swap(false) {
		return SignalNone
	}

	if isFile(m.restartFile) {
		logger.Info(ctx, "Found restart file, exiting for restart")

		if err := os.Remove(m.restartFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.ErrorKV(ctx, "Remove restart file failed", "path", m.restartFile, "error", err)
		}

		// The stop file may be waiting behind it.
		m.dirty.Store(true)

		return SignalRestart
	}

	if isFile(m.stopFile) {
		logger.Info(ctx, "Found stop file, exiting")

		// The file is still there, keep reporting it.
		m.dirty.Store(true)

		return SignalStop
	}

	return SignalNone
}

// Watching reports whether changes are delivered by fsnotify.
func (m *Monitor) Watching() bool {
	return m.watcher != nil
}

// Close stops the watcher.
func (m *Monitor) Close() error {
	var err error

	m.once.Do(func() {
		close(m.closeCh)

		if m.watcher != nil {
			err = m.watcher.Close()
		}

		<-m.done
	})

	return err
}

// run marks the monitor dirty whenever a sentinel path changes.
func (m *Monitor) run(ctx context.Context) {
	defer close(m.done)

	for {
		select {
		case event, ok := <-m.watcher.Events:
			if !ok {
				return
			}

			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Chmod) == 0 {
				continue
			}

			name := filepath.Clean(event.Name)
			if name != m.stopFile && name != m.restartFile {
				continue
			}

			logger.DebugKV(ctx, "Sentinel changed", "path", name, "op", event.Op.String())
			m.dirty.Store(true)
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}

			// Events may have been lost, look at the files on the next tick.
			logger.WarnKV(ctx, "Sentinel watcher error", "error", err)
			m.dirty.Store(true)
		case <-m.closeCh:
			return
		}
	}
}

// isFile reports whether path exists and is not a directory.
func isFile(path string) bool {
	info, err := os.Stat(path)

	return err == nil && !info.IsDir()
}
