package expression

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/teslashibe/go-reachy-face/internal/log"
)

// Watcher keeps a Registry in sync with an expression directory. Files that
// are written or created are (re)registered; removed files drop their id, or
// put the built-in back when the file overrode one.
// Files that fail to parse are logged and leave the previous entry in place.
type Watcher struct {
	registry *Registry
	dir      string
	watcher  *fsnotify.Watcher

	mu    sync.Mutex
	paths map[string]string // path -> expression id

	onChange func(id string, removed bool)
	done     chan struct{}
	stopped  chan struct{}
}

// NewWatcher loads every file in dir into r and starts watching dir.
func NewWatcher(r *Registry, dir string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	w := &Watcher{
		registry: r,
		dir:      dir,
		watcher:  fw,
		paths:    make(map[string]string),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}

	matches, err := filepath.Glob(filepath.Join(dir, "*"))
	if err != nil {
		fw.Close()
		return nil, err
	}
	for _, path := range matches {
		if IsExpressionFile(path) {
			w.reload(path)
		}
	}

	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	go w.watchLoop()
	return w, nil
}

// OnChange sets a callback invoked after every registry update. It must be
// set before files change to avoid missing events.
func (w *Watcher) OnChange(fn func(id string, removed bool)) {
	w.mu.Lock()
	w.onChange = fn
	w.mu.Unlock()
}

// IDs returns the ids currently backed by files in the directory.
func (w *Watcher) IDs() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	ids := make([]string, 0, len(w.paths))
	for _, id := range w.paths {
		ids = append(ids, id)
	}
	return ids
}

func (w *Watcher) watchLoop() {
	defer close(w.stopped)
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !IsExpressionFile(event.Name) {
				continue
			}
			switch {
			case event.Has(fsnotify.Write), event.Has(fsnotify.Create):
				w.reload(event.Name)
			case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
				w.remove(event.Name)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Warn("expression watcher error", "dir", w.dir, "error", err)
		}
	}
}

func (w *Watcher) reload(path string) {
	def, err := LoadFile(path)
	if err != nil {
		log.Warn("failed to reload expression", "path", path, "error", err)
		return
	}

	w.mu.Lock()
	if old, ok := w.paths[path]; ok && old != def.ID() {
		w.registry.Unregister(old)
	}
	w.paths[path] = def.ID()
	fn := w.onChange
	w.mu.Unlock()

	w.registry.Register(def)
	log.Info("expression loaded", "id", def.ID(), "path", path)
	if fn != nil {
		fn(def.ID(), false)
	}
}

func (w *Watcher) remove(path string) {
	w.mu.Lock()
	id, ok := w.paths[path]
	delete(w.paths, path)
	fn := w.onChange
	w.mu.Unlock()
	if !ok {
		return
	}

	removed := true
	if def, err := Preset(id); err == nil {
		w.registry.Register(def)
		removed = false
		log.Info("expression restored to built-in", "id", id, "path", path)
	} else {
		w.registry.Unregister(id)
		log.Info("expression removed", "id", id, "path", path)
	}
	if fn != nil {
		fn(id, removed)
	}
}

// Close stops watching. The registry keeps its current contents.
func (w *Watcher) Close() error {
	close(w.done)
	err := w.watcher.Close()
	<-w.stopped
	return err
}
