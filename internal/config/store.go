package config

import (
	"os"
	"path/filepath"
	"sync"

	"glslive/internal/event"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// RcFileName is the project configuration file, looked up in the
// project root.
const RcFileName = ".liverc.yml"

// Store owns the configuration layers and announces resolved changes.
// Visual and sound snapshots are diffed and emitted independently.
type Store struct {
	log         *zap.Logger
	projectPath string

	mu          sync.Mutex
	project     Settings
	file        Settings
	sound       Settings
	lastRc      Rc
	lastSoundRc Rc

	change      event.Emitter[Diff]
	changeSound event.Emitter[Diff]

	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewStore creates a Store rooted at projectPath and loads the project
// rc file if one exists. A malformed rc file is reported and ignored.
func NewStore(projectPath string, log *zap.Logger) *Store {
	s := &Store{
		log:         log.Named("config"),
		projectPath: projectPath,
	}
	s.mu.Lock()
	s.project = s.readProjectFile()
	s.lastRc = s.mergeVisualLocked()
	s.lastSoundRc = s.mergeSoundLocked()
	s.mu.Unlock()
	return s
}

func (s *Store) readProjectFile() Settings {
	var settings Settings
	raw, err := os.ReadFile(filepath.Join(s.projectPath, RcFileName))
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn("failed to read rc file", zap.Error(err))
		}
		return settings
	}
	if err := yaml.Unmarshal(raw, &settings); err != nil {
		s.log.Warn("malformed rc file ignored", zap.Error(err))
		return Settings{}
	}
	return settings
}

func (s *Store) mergeVisualLocked() Rc {
	rc := defaultRc()
	s.project.apply(&rc)
	s.file.apply(&rc)
	return rc
}

func (s *Store) mergeSoundLocked() Rc {
	rc := defaultRc()
	s.project.apply(&rc)
	s.sound.apply(&rc)
	return rc
}

// CreateRc returns the current resolved visual snapshot.
func (s *Store) CreateRc() Rc {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mergeVisualLocked()
}

// CreateSoundRc returns the current resolved sound snapshot.
func (s *Store) CreateSoundRc() Rc {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mergeSoundLocked()
}

// SetFileSettingsByString installs per-file overrides parsed from a
// shader's head comment, replacing the previous per-file layer. The
// body is YAML, which also covers the common JSON-in-comment form. A
// change in the resolved snapshot is announced to change subscribers.
func (s *Store) SetFileSettingsByString(path, head string) {
	settings, err := parseSettings(head)
	if err != nil {
		s.log.Warn("ignoring malformed head comment", zap.String("path", path), zap.Error(err))
		return
	}
	s.mu.Lock()
	s.file = settings
	s.mu.Unlock()
	s.emitChanges()
}

// SetSoundSettingsByString is SetFileSettingsByString for the sound
// shader's own overlay layer.
func (s *Store) SetSoundSettingsByString(path, head string) {
	settings, err := parseSettings(head)
	if err != nil {
		s.log.Warn("ignoring malformed head comment", zap.String("path", path), zap.Error(err))
		return
	}
	s.mu.Lock()
	s.sound = settings
	s.mu.Unlock()
	s.emitChanges()
}

func parseSettings(head string) (Settings, error) {
	var settings Settings
	if head == "" {
		return settings, nil
	}
	if err := yaml.Unmarshal([]byte(head), &settings); err != nil {
		return Settings{}, err
	}
	return settings, nil
}

// emitChanges recomputes both resolved snapshots and announces the
// non-empty diffs. Emission happens on a fresh goroutine so a rebuild
// that refreshed the per-file layer never re-enters itself; a rebuild
// that produced identical settings yields an empty diff and no event.
func (s *Store) emitChanges() {
	s.mu.Lock()
	rc := s.mergeVisualLocked()
	soundRc := s.mergeSoundLocked()
	d := diffRc(s.lastRc, rc)
	ds := diffRc(s.lastSoundRc, soundRc)
	s.lastRc = rc
	s.lastSoundRc = soundRc
	s.mu.Unlock()

	if len(d) > 0 {
		go s.change.Emit(d)
	}
	if len(ds) > 0 {
		go s.changeSound.Emit(ds)
	}
}

// OnChange subscribes to visual snapshot changes.
func (s *Store) OnChange(fn func(Diff)) *event.Subscription {
	return s.change.Subscribe(fn)
}

// OnChangeSound subscribes to sound snapshot changes.
func (s *Store) OnChangeSound(fn func(Diff)) *event.Subscription {
	return s.changeSound.Subscribe(fn)
}

// Play starts watching the project rc file; edits to it are picked up
// and announced like any other configuration change. Calling Play while
// already watching is a no-op.
func (s *Store) Play() {
	s.mu.Lock()
	if s.watcher != nil {
		s.mu.Unlock()
		return
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		s.mu.Unlock()
		s.log.Warn("rc file watching unavailable", zap.Error(err))
		return
	}
	if err := watcher.Add(s.projectPath); err != nil {
		s.mu.Unlock()
		watcher.Close()
		s.log.Warn("cannot watch project dir", zap.String("dir", s.projectPath), zap.Error(err))
		return
	}
	s.watcher = watcher
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	go s.watchLoop(watcher, s.stopCh, s.doneCh)
}

// Stop stops watching the rc file. Safe to call when not watching.
func (s *Store) Stop() {
	s.mu.Lock()
	watcher := s.watcher
	stopCh, doneCh := s.stopCh, s.doneCh
	s.watcher = nil
	s.mu.Unlock()
	if watcher == nil {
		return
	}
	close(stopCh)
	<-doneCh
	if err := watcher.Close(); err != nil {
		s.log.Warn("error closing rc watcher", zap.Error(err))
	}
}

func (s *Store) watchLoop(watcher *fsnotify.Watcher, stopCh, doneCh chan struct{}) {
	defer close(doneCh)
	for {
		select {
		case <-stopCh:
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != RcFileName {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			s.log.Debug("rc file changed", zap.String("op", ev.Op.String()))
			s.mu.Lock()
			s.project = s.readProjectFile()
			s.mu.Unlock()
			s.emitChanges()
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.log.Warn("rc watcher error", zap.Error(err))
		}
	}
}
