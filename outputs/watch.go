package outputs

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/chatterbox-tts/desktop/internal/types"
	"github.com/fsnotify/fsnotify"
)

// Watcher reports clips created in an output directory.
type Watcher struct {
	dir  string
	fsw  *fsnotify.Watcher
	done chan struct{}
	once sync.Once
}

// Watch starts watching dir, creating it if needed. fn runs on the
// watcher goroutine once per new clip.
func Watch(dir string, fn func(types.OutputClip)) (*Watcher, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	w := &Watcher{dir: dir, fsw: fsw, done: make(chan struct{})}
	go w.run(fn)
	return w, nil
}

// Dir returns the watched directory.
func (w *Watcher) Dir() string {
	return w.dir
}

func (w *Watcher) run(fn func(types.OutputClip)) {
	defer close(w.done)

	seen := make(map[string]bool)
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			clip, ok := Parse(ev.Name)
			if !ok || seen[clip.Name] {
				continue
			}
			seen[clip.Name] = true
			if info, err := os.Stat(ev.Name); err == nil {
				clip.Size = info.Size()
			}
			slog.Info("output clip saved", "path", clip.Path, "label", clip.Label)
			fn(clip)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Warn("watch output dir", "dir", w.dir, "error", err)
		}
	}
}

// Close stops the watcher and waits for its goroutine.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		err = w.fsw.Close()
		<-w.done
	})
	return err
}
