package engine

import (
	"context"
	"fmt"
	"sync"

	"glslive/internal/config"
	"glslive/internal/editor"
	"glslive/internal/event"
	"glslive/internal/passes"
)

type oscCall struct {
	addr string
	args []float64
}

type fakePlayer struct {
	mu           sync.Mutex
	plays        int
	stops        int
	destroys     int
	playsSound   int
	stopsSound   int
	shaders      [][]passes.Assembled
	sounds       []string
	oscCalls     []oscCall
	changes      []config.Diff
	soundChanges []config.Diff
	loadErr      error
}

func (p *fakePlayer) Play()    { p.mu.Lock(); p.plays++; p.mu.Unlock() }
func (p *fakePlayer) Stop()    { p.mu.Lock(); p.stops++; p.mu.Unlock() }
func (p *fakePlayer) Destroy() { p.mu.Lock(); p.destroys++; p.mu.Unlock() }

func (p *fakePlayer) LoadShader(s []passes.Assembled) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.loadErr != nil {
		return p.loadErr
	}
	p.shaders = append(p.shaders, s)
	return nil
}

func (p *fakePlayer) LoadSoundShader(src string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.loadErr != nil {
		return p.loadErr
	}
	p.sounds = append(p.sounds, src)
	return nil
}

func (p *fakePlayer) PlaySound() { p.mu.Lock(); p.playsSound++; p.mu.Unlock() }
func (p *fakePlayer) StopSound() { p.mu.Lock(); p.stopsSound++; p.mu.Unlock() }

func (p *fakePlayer) SetOsc(addr string, args []float64) {
	p.mu.Lock()
	p.oscCalls = append(p.oscCalls, oscCall{addr, args})
	p.mu.Unlock()
}

func (p *fakePlayer) OnChange(d config.Diff) {
	p.mu.Lock()
	p.changes = append(p.changes, d)
	p.mu.Unlock()
}

func (p *fakePlayer) OnChangeSound(d config.Diff) error {
	p.mu.Lock()
	p.soundChanges = append(p.soundChanges, d)
	p.mu.Unlock()
	return nil
}

func (p *fakePlayer) lastLoaded() []passes.Assembled {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.shaders) == 0 {
		return nil
	}
	return p.shaders[len(p.shaders)-1]
}

// fakeConfig implements Config with a fixed snapshot that tests mutate
// directly. Emission is synchronous so tests stay deterministic.
type fakeConfig struct {
	mu          sync.Mutex
	rc          config.Rc
	soundRc     config.Rc
	fileHeads   map[string]string
	soundHeads  map[string]string
	plays       int
	stops       int
	change      event.Emitter[config.Diff]
	changeSound event.Emitter[config.Diff]
}

func newFakeConfig(rc config.Rc) *fakeConfig {
	return &fakeConfig{
		rc:         rc,
		soundRc:    rc,
		fileHeads:  make(map[string]string),
		soundHeads: make(map[string]string),
	}
}

func (c *fakeConfig) CreateRc() config.Rc      { c.mu.Lock(); defer c.mu.Unlock(); return c.rc }
func (c *fakeConfig) CreateSoundRc() config.Rc { c.mu.Lock(); defer c.mu.Unlock(); return c.soundRc }

func (c *fakeConfig) SetFileSettingsByString(path, head string) {
	c.mu.Lock()
	c.fileHeads[path] = head
	c.mu.Unlock()
}

func (c *fakeConfig) SetSoundSettingsByString(path, head string) {
	c.mu.Lock()
	c.soundHeads[path] = head
	c.mu.Unlock()
}

func (c *fakeConfig) Play() { c.mu.Lock(); c.plays++; c.mu.Unlock() }
func (c *fakeConfig) Stop() { c.mu.Lock(); c.stops++; c.mu.Unlock() }

func (c *fakeConfig) OnChange(fn func(config.Diff)) *event.Subscription {
	return c.change.Subscribe(fn)
}

func (c *fakeConfig) OnChangeSound(fn func(config.Diff)) *event.Subscription {
	return c.changeSound.Subscribe(fn)
}

type fakeEditor struct {
	path    string
	text    string
	textErr error
	stopped event.Emitter[struct{}]
}

func (e *fakeEditor) Path() string { return e.path }

func (e *fakeEditor) Text() (string, error) {
	if e.textErr != nil {
		return "", e.textErr
	}
	return e.text, nil
}

func (e *fakeEditor) OnStopChanging(fn func()) *event.Subscription {
	return e.stopped.Subscribe(func(struct{}) { fn() })
}

type fakeWorkspace struct {
	mu      sync.Mutex
	active  editor.Editor
	changed event.Emitter[editor.Editor]
}

func (w *fakeWorkspace) ActiveEditor() editor.Editor {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.active
}

func (w *fakeWorkspace) OnActiveEditorChange(fn func(editor.Editor)) *event.Subscription {
	return w.changed.Subscribe(fn)
}

func (w *fakeWorkspace) setActive(ed editor.Editor) {
	w.mu.Lock()
	w.active = ed
	w.mu.Unlock()
	w.changed.Emit(ed)
}

type fakeValidator struct {
	mu          sync.Mutex
	validateErr error
	validated   []string
	files       map[string]string
}

func (v *fakeValidator) Validate(_ context.Context, _, src, _ string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.validateErr != nil {
		return v.validateErr
	}
	v.validated = append(v.validated, src)
	return nil
}

func (v *fakeValidator) LoadFile(_ context.Context, _, path string) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if text, ok := v.files[path]; ok {
		return text, nil
	}
	return "", fmt.Errorf("no such file: %s", path)
}

type fakeControl struct {
	port      int
	destroyed bool
	onMessage func(string, []float64)
	onReload  func()
}

func (c *fakeControl) Port() int { return c.port }
func (c *fakeControl) Destroy()  { c.destroyed = true }
