// Package watcher emits debounced filesystem change batches as a channel
// stream. The dev server consumes Events() as an asynchronous sequence
// that is finite while running and closed on shutdown.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/tabi-dev/tabi/internal/logging"
	"github.com/tabi-dev/tabi/internal/validation"
)

// DefaultDebounce groups the rapid event bursts editors produce on save.
const DefaultDebounce = 300 * time.Millisecond

// EventType classifies a file change.
type EventType int

const (
	EventCreated EventType = iota
	EventModified
	EventDeleted
	EventRenamed
)

// String returns the lowercase name of the event type.
func (e EventType) String() string {
	switch e {
	case EventCreated:
		return "created"
	case EventModified:
		return "modified"
	case EventDeleted:
		return "deleted"
	case EventRenamed:
		return "renamed"
	default:
		return "unknown"
	}
}

// Event is one debounced file change.
type Event struct {
	Type EventType
	Path string
}

// Filter reports whether a path should produce events. All registered
// filters must accept a path for it to pass.
type Filter func(path string) bool

// Watcher wraps fsnotify with recursive directory registration and
// debounced change batches.
type Watcher struct {
	fs        *fsnotify.Watcher
	debouncer *debouncer
	filters   []Filter
	logger    logging.Logger

	stopOnce sync.Once
	done     chan struct{}
}

// New creates a watcher. A non-positive debounce selects the default.
func New(debounce time.Duration, logger logging.Logger, filters ...Filter) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	if logger == nil {
		logger = logging.Discard()
	}

	return &Watcher{
		fs:        fs,
		debouncer: newDebouncer(debounce),
		filters:   filters,
		logger:    logger.WithComponent("watcher"),
		done:      make(chan struct{}),
	}, nil
}

// Events returns the stream of change batches. The channel closes after
// Stop, so a consumer can range over it.
func (w *Watcher) Events() <-chan []Event {
	return w.debouncer.out
}

// Add registers a single directory.
func (w *Watcher) Add(path string) error {
	if err := validation.ValidateAbsoluteDir(path); err != nil {
		return err
	}

	return w.fs.Add(filepath.Clean(path))
}

// AddRecursive registers root and every non-hidden directory below it.
// A missing root is not an error: the site may not have a public
// directory yet, and a later create event will register it.
func (w *Watcher) AddRecursive(root string) error {
	if err := validation.ValidateAbsoluteDir(root); err != nil {
		return err
	}

	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == root {
				return filepath.SkipAll
			}

			return err
		}

		if !d.IsDir() {
			return nil
		}

		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}

		return w.fs.Add(path)
	})
}

// Start launches the event loop. The loop runs until Stop is called or
// ctx is cancelled, whichever comes first.
func (w *Watcher) Start(ctx context.Context) {
	go w.loop(ctx)
}

// Stop closes the underlying watcher and, once the loop drains, the
// Events channel. Safe to call more than once.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		err = w.fs.Close()
	})

	return err
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.debouncer.close()

	for {
		select {
		case <-ctx.Done():
			_ = w.Stop()

			return
		case <-w.done:
			return

		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handle(ctx, event)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			// Watch errors are not fatal; the stream keeps going.
			w.logger.Warn(ctx, err, "watch error")
		}
	}
}

func (w *Watcher) handle(ctx context.Context, event fsnotify.Event) {
	// Directories created under a watched tree must be registered or
	// edits inside them would go unseen.
	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if !strings.HasPrefix(filepath.Base(event.Name), ".") {
				if err := w.fs.Add(event.Name); err != nil {
					w.logger.Warn(ctx, err, "new directory not watched", "path", event.Name)
				}
			}

			return
		}
	}

	for _, filter := range w.filters {
		if !filter(event.Name) {
			return
		}
	}

	w.debouncer.add(Event{Type: eventType(event.Op), Path: event.Name})
}

func eventType(op fsnotify.Op) EventType {
	switch {
	case op.Has(fsnotify.Create):
		return EventCreated
	case op.Has(fsnotify.Remove):
		return EventDeleted
	case op.Has(fsnotify.Rename):
		return EventRenamed
	default:
		return EventModified
	}
}

// debouncer coalesces events that land within one delay window into a
// single batch, deduplicated by path with the latest event kept.
type debouncer struct {
	delay time.Duration
	out   chan []Event

	mu      sync.Mutex
	pending map[string]Event
	timer   *time.Timer
	closed  bool
}

func newDebouncer(delay time.Duration) *debouncer {
	return &debouncer{
		delay:   delay,
		out:     make(chan []Event, 16),
		pending: make(map[string]Event),
	}
}

func (d *debouncer) add(ev Event) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}

	d.pending[ev.Path] = ev

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.flush)
}

func (d *debouncer) flush() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed || len(d.pending) == 0 {
		return
	}

	batch := make([]Event, 0, len(d.pending))
	for _, ev := range d.pending {
		batch = append(batch, ev)
	}
	d.pending = make(map[string]Event)

	// A full output channel means the consumer is behind; dropping the
	// batch is fine because any later change re-triggers a rescan.
	select {
	case d.out <- batch:
	default:
	}
}

func (d *debouncer) close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}
	d.closed = true

	if d.timer != nil {
		d.timer.Stop()
	}
	close(d.out)
}

// Common filters.

// NoDotPaths rejects hidden files and anything under a hidden directory.
func NoDotPaths(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if strings.HasPrefix(part, ".") && part != "." && part != ".." {
			return false
		}
	}

	return true
}

// NoNodeModules rejects dependency trees, which churn constantly during
// installs and never hold content files.
func NoNodeModules(path string) bool {
	return !strings.Contains(filepath.ToSlash(path), "/node_modules/") &&
		filepath.Base(path) != "node_modules"
}

// NoEditorArtifacts rejects the scratch files editors write next to the
// real save.
func NoEditorArtifacts(path string) bool {
	base := filepath.Base(path)

	if strings.HasSuffix(base, "~") || strings.HasPrefix(base, ".#") {
		return false
	}

	switch filepath.Ext(base) {
	case ".swp", ".swx", ".tmp":
		return false
	}

	return true
}
