package editor

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"glslive/internal/event"
	"glslive/internal/passes"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DirWorkspace is a Workspace over one project directory: the shader
// file written most recently is the active editor. A single file passed
// to Open yields a workspace permanently pinned to that file.
type DirWorkspace struct {
	log *zap.Logger
	dir string

	mu     sync.Mutex
	active *FileEditor

	changed event.Emitter[Editor]

	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// Open creates a workspace for path. If path is a file, it becomes the
// active (and only) editor; if a directory, the most recently modified
// shader file in it starts out active and later writes move the focus.
func Open(path string, log *zap.Logger) (*DirWorkspace, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}

	w := &DirWorkspace{
		log:    log.Named("workspace"),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}

	if !info.IsDir() {
		ed, err := NewFileEditor(abs, log)
		if err != nil {
			return nil, err
		}
		w.active = ed
		close(w.doneCh) // no watch loop for a pinned workspace
		return w, nil
	}

	w.dir = abs
	if initial := mostRecentShader(abs); initial != "" {
		if ed, err := NewFileEditor(initial, log); err == nil {
			w.active = ed
		}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(abs); err != nil {
		watcher.Close()
		return nil, err
	}
	w.watcher = watcher
	go w.run()
	return w, nil
}

func (w *DirWorkspace) ActiveEditor() Editor {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.active == nil {
		return nil
	}
	return w.active
}

func (w *DirWorkspace) OnActiveEditorChange(fn func(Editor)) *event.Subscription {
	return w.changed.Subscribe(fn)
}

// Close tears down the directory watcher and the active editor.
func (w *DirWorkspace) Close() {
	if w.watcher != nil {
		select {
		case <-w.stopCh:
		default:
			close(w.stopCh)
			<-w.doneCh
			if err := w.watcher.Close(); err != nil {
				w.log.Warn("error closing workspace watcher", zap.Error(err))
			}
		}
	}
	w.mu.Lock()
	active := w.active
	w.active = nil
	w.mu.Unlock()
	if active != nil {
		active.Close()
	}
}

func (w *DirWorkspace) run() {
	defer close(w.doneCh)
	for {
		select {
		case <-w.stopCh:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if !passes.Known(strings.ToLower(filepath.Ext(ev.Name))) {
				continue
			}
			w.focus(ev.Name)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("workspace watcher error", zap.Error(err))
		}
	}
}

// focus makes path the active editor if it is not already.
func (w *DirWorkspace) focus(path string) {
	w.mu.Lock()
	if w.active != nil && w.active.Path() == path {
		w.mu.Unlock()
		return
	}
	old := w.active
	ed, err := NewFileEditor(path, w.log)
	if err != nil {
		w.mu.Unlock()
		w.log.Warn("cannot open editor", zap.String("path", path), zap.Error(err))
		return
	}
	w.active = ed
	w.mu.Unlock()

	if old != nil {
		old.Close()
	}
	w.log.Info("active shader changed", zap.String("path", path))
	w.changed.Emit(ed)
}

// mostRecentShader picks the newest shader file directly under dir, or
// "" when there is none.
func mostRecentShader(dir string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	type candidate struct {
		path string
		mod  int64
	}
	var found []candidate
	for _, entry := range entries {
		if entry.IsDir() || !passes.Known(strings.ToLower(filepath.Ext(entry.Name()))) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		found = append(found, candidate{filepath.Join(dir, entry.Name()), info.ModTime().UnixNano()})
	}
	if len(found) == 0 {
		return ""
	}
	sort.Slice(found, func(i, j int) bool { return found[i].mod > found[j].mod })
	return found[0].path
}
