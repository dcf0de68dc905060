package source

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/IamAkshayKaushik/DirectDrop/pkg/logger"
	"github.com/fsnotify/fsnotify"
)

type EventType string

const (
	EventWrite  EventType = "write"
	EventRemove EventType = "remove"
)

type FileEvent struct {
	Type      EventType
	Path      string
	Timestamp time.Time
}

const defaultDebounce = 500 * time.Millisecond

// Watcher reports changes to one file. It watches the parent directory so
// editors that save by rename are still seen.
type Watcher struct {
	path          string
	events        chan FileEvent
	fsWatcher     *fsnotify.Watcher
	timer         *time.Timer
	pending       EventType
	debounceMu    sync.Mutex
	debounceDelay time.Duration
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	stopOnce      sync.Once
}

func NewWatcher(appCtx context.Context, path string) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(appCtx)
	return &Watcher{
		path:          abs,
		events:        make(chan FileEvent, 16),
		fsWatcher:     fsWatcher,
		debounceDelay: defaultDebounce,
		ctx:           ctx,
		cancel:        cancel,
	}, nil
}

func (w *Watcher) Start() error {
	if err := w.fsWatcher.Add(filepath.Dir(w.path)); err != nil {
		return err
	}
	logger.Log.Info("File watcher started", "path", w.path)
	w.wg.Add(1)
	go w.eventLoop()
	return nil
}

func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		w.cancel()
		w.fsWatcher.Close()
		w.wg.Wait()
		w.debounceMu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.debounceMu.Unlock()
		logger.Log.Info("File watcher stopped")
	})
}

// Events stays open after Stop; select on your own context alongside it.
func (w *Watcher) Events() <-chan FileEvent {
	return w.events
}

func (w *Watcher) eventLoop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			logger.Log.Warn("File watcher error", "err", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != w.path {
		return
	}
	switch {
	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		w.debounce(EventWrite)
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		w.debounce(EventRemove)
	}
}

// debounce collapses a burst of events into the last one.
func (w *Watcher) debounce(eventType EventType) {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()
	w.pending = eventType
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounceDelay, func() {
		w.debounceMu.Lock()
		ev := FileEvent{Type: w.pending, Path: w.path, Timestamp: time.Now()}
		w.debounceMu.Unlock()
		select {
		case w.events <- ev:
		case <-w.ctx.Done():
		default:
			logger.Log.Warn("Events channel full, dropping event", "path", w.path)
		}
	})
}
