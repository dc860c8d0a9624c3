// Package watch re-runs an analysis when a test directory's input files
// change.
//
// Events are debounced so that a measurement tool rewriting several files in
// a row triggers a single run. Runs happen on the watcher goroutine, one at a
// time; events arriving during a run start the next debounce period.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/randomizedcoder/go-flow-throughput/internal/backoff"
	"github.com/randomizedcoder/go-flow-throughput/internal/ingest"
)

// DefaultDebounce is used when New is given a non-positive debounce.
const DefaultDebounce = 500 * time.Millisecond

var errWatcherClosed = errors.New("watcher channels closed")

// Func is called with the base names of the files that changed since the
// previous call. A returned error is logged; watching continues.
type Func func(ctx context.Context, changed []string) error

// Watcher watches one directory.
type Watcher struct {
	dir      string
	debounce time.Duration
	names    map[string]bool
	logger   *slog.Logger

	readyOnce sync.Once
	ready     chan struct{}

	mu       sync.Mutex
	runs     int
	failures int
}

// New creates a watcher for the analysis inputs in dir. Other files, such as
// outputs written into the same directory, are ignored.
func New(dir string, debounce time.Duration, logger *slog.Logger) *Watcher {
	return NewWithFiles(dir, debounce, logger,
		ingest.ByteTimeFile, ingest.PositionFile, ingest.LatencyFile, ingest.SocketFile)
}

// NewWithFiles creates a watcher reacting to the given base names in dir.
func NewWithFiles(dir string, debounce time.Duration, logger *slog.Logger, names ...string) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}
	w := &Watcher{
		dir:      dir,
		debounce: debounce,
		names:    make(map[string]bool, len(names)),
		logger:   logger.With("component", "watch"),
		ready:    make(chan struct{}),
	}
	for _, n := range names {
		w.names[n] = true
	}
	return w
}

// Ready is closed once the directory is being watched for the first time.
func (w *Watcher) Ready() <-chan struct{} { return w.ready }

// Stats returns how many times fn ran and how many of those runs failed.
func (w *Watcher) Stats() (runs, failures int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.runs, w.failures
}

// Run watches until ctx is done, calling fn after each debounced burst of
// changes. A broken fsnotify watcher is recreated with exponential backoff.
// Run returns nil on cancellation and an error only when dir is not a
// directory.
func (w *Watcher) Run(ctx context.Context, fn Func) error {
	info, err := os.Stat(w.dir)
	if err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("watch %s: not a directory", w.dir)
	}

	retry := backoff.NewFromTime(backoff.DefaultConfig())
	for {
		if ctx.Err() != nil {
			return nil
		}

		fw, err := fsnotify.NewWatcher()
		if err == nil {
			if err = fw.Add(w.dir); err != nil {
				_ = fw.Close()
			}
		}
		if err != nil {
			delay := retry.Next()
			w.logger.Warn("watch_init_failed", "dir", w.dir, "error", err, "backoff", delay)
			if !sleep(ctx, delay) {
				return nil
			}
			continue
		}

		retry.Reset()
		w.logger.Info("watch_started", "dir", w.dir, "debounce", w.debounce)
		w.readyOnce.Do(func() { close(w.ready) })

		err = w.loop(ctx, fw, fn)
		_ = fw.Close()
		if ctx.Err() != nil {
			return nil
		}
		delay := retry.Next()
		w.logger.Warn("watch_restarting", "dir", w.dir, "error", err, "backoff", delay)
		if !sleep(ctx, delay) {
			return nil
		}
	}
}

// loop runs until the fsnotify watcher breaks or ctx is done.
func (w *Watcher) loop(ctx context.Context, fw *fsnotify.Watcher, fn Func) error {
	var (
		timer   *time.Timer
		fire    <-chan time.Time
		pending = make(map[string]bool)
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(w.debounce)
		} else {
			timer.Reset(w.debounce)
		}
		fire = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return errWatcherClosed
			}
			if !w.relevant(ev) {
				continue
			}
			w.logger.Debug("watch_event", "file", ev.Name, "op", ev.Op.String())
			pending[filepath.Base(ev.Name)] = true
			schedule()

		case err, ok := <-fw.Errors:
			if !ok {
				return errWatcherClosed
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				// events were lost; rerun on every input
				w.logger.Warn("watch_overflow", "dir", w.dir)
				for n := range w.names {
					pending[n] = true
				}
				schedule()
				continue
			}
			w.logger.Warn("watch_error", "dir", w.dir, "error", err)

		case <-fire:
			fire = nil
			changed := make([]string, 0, len(pending))
			for n := range pending {
				changed = append(changed, n)
			}
			sort.Strings(changed)
			clear(pending)
			w.trigger(ctx, fn, changed)
		}
	}
}

func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) &&
		!ev.Op.Has(fsnotify.Rename) && !ev.Op.Has(fsnotify.Remove) {
		return false
	}
	return w.names[filepath.Base(ev.Name)]
}

func (w *Watcher) trigger(ctx context.Context, fn Func, changed []string) {
	start := time.Now()
	w.logger.Info("watch_triggered", "changed", changed)
	err := fn(ctx, changed)

	w.mu.Lock()
	w.runs++
	if err != nil {
		w.failures++
	}
	w.mu.Unlock()

	if err != nil {
		w.logger.Warn("watch_run_failed", "error", err, "elapsed", time.Since(start))
		return
	}
	w.logger.Debug("watch_run_complete", "elapsed", time.Since(start))
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
