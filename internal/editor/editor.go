// Package editor supplies the workspace abstraction the engine watches:
// which shader file is active, and when its content has settled after a
// burst of writes. The concrete implementation watches the filesystem;
// the engine only sees the two small interfaces below.
package editor

import (
	"os"
	"path/filepath"
	"time"

	"glslive/internal/event"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Editor is one open shader file.
type Editor interface {
	// Path returns the absolute path of the file being edited.
	Path() string
	// Text returns the file's full current text.
	Text() (string, error)
	// OnStopChanging fires after writes to the file have settled.
	OnStopChanging(fn func()) *event.Subscription
}

// Workspace tracks the active editor.
type Workspace interface {
	// ActiveEditor returns the currently active editor, or nil.
	ActiveEditor() Editor
	// OnActiveEditorChange fires when a different file becomes active.
	OnActiveEditorChange(fn func(Editor)) *event.Subscription
}

// settleDelay is how long a file must stay quiet before a
// stopped-changing event fires. Save bursts from editors that write
// twice (content, then metadata) collapse into one event.
const settleDelay = 300 * time.Millisecond

// FileEditor is an Editor backed by a file on disk. It watches the
// containing directory rather than the file itself so atomic-rename
// saves are seen as well.
type FileEditor struct {
	log  *zap.Logger
	path string

	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	doneCh  chan struct{}

	stopped event.Emitter[struct{}]
}

// NewFileEditor opens path as an editor and starts watching it.
func NewFileEditor(path string, log *zap.Logger) (*FileEditor, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, err
	}
	e := &FileEditor{
		log:     log.Named("editor"),
		path:    abs,
		watcher: watcher,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	go e.run()
	return e, nil
}

func (e *FileEditor) Path() string { return e.path }

func (e *FileEditor) Text() (string, error) {
	raw, err := os.ReadFile(e.path)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func (e *FileEditor) OnStopChanging(fn func()) *event.Subscription {
	return e.stopped.Subscribe(func(struct{}) { fn() })
}

// Close stops the underlying watcher. Subscriptions stop firing but
// remain valid to Close.
func (e *FileEditor) Close() {
	select {
	case <-e.stopCh:
		return
	default:
	}
	close(e.stopCh)
	<-e.doneCh
	if err := e.watcher.Close(); err != nil {
		e.log.Warn("error closing editor watcher", zap.Error(err))
	}
}

func (e *FileEditor) run() {
	defer close(e.doneCh)

	// The timer is armed on each write and only fires once the file has
	// been quiet for settleDelay.
	settle := time.NewTimer(settleDelay)
	if !settle.Stop() {
		<-settle.C
	}
	pending := false

	for {
		select {
		case <-e.stopCh:
			return
		case ev, ok := <-e.watcher.Events:
			if !ok {
				return
			}
			if ev.Name != e.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if pending && !settle.Stop() {
				<-settle.C
			}
			settle.Reset(settleDelay)
			pending = true
		case err, ok := <-e.watcher.Errors:
			if !ok {
				return
			}
			e.log.Warn("editor watcher error", zap.Error(err))
		case <-settle.C:
			pending = false
			e.log.Debug("file stopped changing", zap.String("path", e.path))
			e.stopped.Emit(struct{}{})
		}
	}
}
