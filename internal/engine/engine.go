// Package engine is the orchestration core of glslive: it ties editor
// watching, configuration changes, OSC control and backend selection
// into one state machine, and runs the per-edit build pipeline that
// turns shader text into assembled passes on the active player.
package engine

import (
	"context"
	"path/filepath"
	"strings"
	"sync"

	"glslive/internal/backend"
	"glslive/internal/config"
	"glslive/internal/editor"
	"glslive/internal/event"
	"glslive/internal/passes"
	"glslive/internal/preprocess"

	"go.uber.org/zap"
)

// Config is the configuration collaborator the engine drives.
// *config.Store satisfies it.
type Config interface {
	CreateRc() config.Rc
	CreateSoundRc() config.Rc
	SetFileSettingsByString(path, head string)
	SetSoundSettingsByString(path, head string)
	Play()
	Stop()
	OnChange(fn func(config.Diff)) *event.Subscription
	OnChangeSound(fn func(config.Diff)) *event.Subscription
}

// Validator checks shader source and loads referenced shader files.
// *validate.CLI satisfies it.
type Validator interface {
	Validate(ctx context.Context, validatorPath, src, suffix string) error
	LoadFile(ctx context.Context, validatorPath, path string) (string, error)
}

// ControlSource is a live OSC listener. *control.Source satisfies it.
type ControlSource interface {
	Port() int
	Destroy()
}

// Options wires the engine's collaborators. The factory funcs keep the
// engine ignorant of websockets and UDP; tests substitute fakes.
type Options struct {
	Log         *zap.Logger
	Config      Config
	Workspace   editor.Workspace
	Validator   Validator
	ProjectPath string

	NewLocal   func(seed backend.Seed) (backend.Player, error)
	NewRemote  func(server string, handoff backend.Handoff) (backend.Player, error)
	NewControl func(port int, onMessage func(addr string, args []float64), onReload func()) (ControlSource, error)

	// Preprocess defaults to preprocess.Expand.
	Preprocess func(src, dir string) (string, error)
}

// Engine owns the session state: the playing flag, the last
// successfully built shaders, the single live backend and the single
// live control source. All mutation goes through e.mu; the build
// pipeline works on locals and only takes the lock for the final state
// write, so concurrent rebuilds resolve last-writer-wins.
type Engine struct {
	log         *zap.Logger
	cfg         Config
	ws          editor.Workspace
	validator   Validator
	projectPath string
	newLocal    func(backend.Seed) (backend.Player, error)
	newRemote   func(string, backend.Handoff) (backend.Player, error)
	newControl  func(int, func(string, []float64), func()) (ControlSource, error)
	expand      func(string, string) (string, error)

	mu           sync.Mutex
	player       backend.Player
	osc          ControlSource
	isPlaying    bool
	watching     bool
	lastShader   []passes.Assembled
	lastSound    string
	lastEditor   editor.Editor
	workspaceSub *event.Subscription
	editorSub    *event.Subscription
	cfgSub       *event.Subscription
	cfgSoundSub  *event.Subscription
}

// New constructs the engine and brings up the initial backend chosen by
// the resolved configuration (remote when server is set, local
// otherwise).
func New(opts Options) (*Engine, error) {
	e := &Engine{
		log:         opts.Log.Named("engine"),
		cfg:         opts.Config,
		ws:          opts.Workspace,
		validator:   opts.Validator,
		projectPath: opts.ProjectPath,
		newLocal:    opts.NewLocal,
		newRemote:   opts.NewRemote,
		newControl:  opts.NewControl,
		expand:      opts.Preprocess,
	}
	if e.expand == nil {
		e.expand = preprocess.Expand
	}

	rc := e.cfg.CreateRc()
	player, err := e.createPlayer(rc, false, nil)
	if err != nil {
		return nil, err
	}
	e.player = player
	e.updateControlSource(rc.Osc)

	e.cfgSub = e.cfg.OnChange(e.onChange)
	e.cfgSoundSub = e.cfg.OnChangeSound(e.onChangeSound)
	return e, nil
}

func (e *Engine) createPlayer(rc config.Rc, playing bool, last []passes.Assembled) (backend.Player, error) {
	if rc.Server != "" {
		return e.newRemote(rc.Server, backend.Handoff{
			Rc:          rc,
			IsPlaying:   playing,
			ProjectPath: e.projectPath,
			LastShader:  last,
		})
	}
	return e.newLocal(backend.Seed{Rc: rc, IsPlaying: playing, LastShader: last})
}

func (e *Engine) activePlayer() backend.Player {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.player
}

// Play enters the Playing state: flag, backend start, rc watching.
// Calling Play while already playing does nothing.
func (e *Engine) Play() {
	e.mu.Lock()
	if e.isPlaying {
		e.mu.Unlock()
		return
	}
	e.isPlaying = true
	p := e.player
	e.mu.Unlock()

	p.Play()
	e.cfg.Play()
	e.log.Info("playing")
}

// Stop leaves the Playing state and tears down the watch subscriptions.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.isPlaying {
		e.mu.Unlock()
		return
	}
	e.isPlaying = false
	p := e.player
	e.mu.Unlock()

	p.Stop()
	e.cfg.Stop()
	e.StopWatching()
	e.log.Info("stopped")
}

// TogglePlay dispatches to whichever transition applies.
func (e *Engine) TogglePlay() {
	if e.IsPlaying() {
		e.Stop()
	} else {
		e.Play()
	}
}

func (e *Engine) IsPlaying() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.isPlaying
}

func (e *Engine) PlaySound() { e.activePlayer().PlaySound() }
func (e *Engine) StopSound() { e.activePlayer().StopSound() }

// LastShader returns the most recent successfully assembled passes.
func (e *Engine) LastShader() []passes.Assembled {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastShader
}

// LastSoundShader returns the most recent successfully built sound
// shader source.
func (e *Engine) LastSoundShader() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastSound
}

// WatchActiveShader starts following the workspace: an immediate load
// of the current editor, then a reload whenever the active editor
// changes or its content settles. Idempotent while watching.
func (e *Engine) WatchActiveShader() {
	e.mu.Lock()
	if e.watching {
		e.mu.Unlock()
		return
	}
	e.watching = true
	e.mu.Unlock()

	// Subscribe before the initial load so an editor switch landing in
	// between is not missed.
	sub := e.ws.OnActiveEditorChange(func(editor.Editor) { e.watchShader() })
	e.mu.Lock()
	e.workspaceSub = sub
	e.mu.Unlock()
	e.watchShader()
}

// watchShader re-targets the content subscription at the currently
// active editor, replacing whatever it pointed at before.
func (e *Engine) watchShader() {
	e.mu.Lock()
	old := e.editorSub
	e.editorSub = nil
	e.mu.Unlock()
	old.Close()

	ed := e.ws.ActiveEditor()
	e.loadShaderOfEditor(ed, false)
	if ed == nil {
		return
	}
	sub := ed.OnStopChanging(func() { e.loadShaderOfEditor(ed, false) })
	e.mu.Lock()
	if !e.watching {
		e.mu.Unlock()
		sub.Close()
		return
	}
	e.editorSub = sub
	e.mu.Unlock()
}

// StopWatching disposes both watch subscriptions. No-op when idle.
func (e *Engine) StopWatching() {
	e.mu.Lock()
	e.watching = false
	wsSub, edSub := e.workspaceSub, e.editorSub
	e.workspaceSub, e.editorSub = nil, nil
	e.mu.Unlock()
	wsSub.Close()
	edSub.Close()
}

// LoadShader triggers one visual build for the active editor,
// independent of the watch subscriptions.
func (e *Engine) LoadShader() {
	e.loadShaderOfEditor(e.ws.ActiveEditor(), false)
}

// LoadSoundShader triggers one sound build for the active editor.
func (e *Engine) LoadSoundShader() {
	e.loadShaderOfEditor(e.ws.ActiveEditor(), true)
}

// loadShaderOfEditor is the build pipeline. Every failure is logged and
// swallowed here: a broken rebuild leaves the previous shader running
// and must never take the watch loop down with it. An absent editor is
// not a failure, just nothing to do.
func (e *Engine) loadShaderOfEditor(ed editor.Editor, isSound bool) {
	if ed == nil {
		return
	}
	path := ed.Path()
	suffix := strings.ToLower(filepath.Ext(path))
	if !passes.Known(suffix) {
		e.log.Warn("not a shader file", zap.String("path", path))
		return
	}
	text, err := ed.Text()
	if err != nil {
		e.log.Warn("cannot read shader", zap.String("path", path), zap.Error(err))
		return
	}

	e.mu.Lock()
	e.lastEditor = ed
	e.mu.Unlock()

	// Per-file settings ride in the head comment; merging them may
	// announce a config change, which rebuilds once more and then
	// settles on an empty diff.
	head := headComment(text)
	var rc config.Rc
	if isSound {
		e.cfg.SetSoundSettingsByString(path, head)
		rc = e.cfg.CreateSoundRc()
	} else {
		e.cfg.SetFileSettingsByString(path, head)
		rc = e.cfg.CreateRc()
	}

	dir := filepath.Dir(path)
	if rc.Glslify {
		expanded, err := e.expand(text, dir)
		if err != nil {
			e.log.Warn("preprocess failed", zap.String("path", path), zap.Error(err))
			return
		}
		text = expanded
	}

	ctx := context.Background()
	if isSound {
		e.mu.Lock()
		e.lastSound = text
		p := e.player
		e.mu.Unlock()
		if err := p.LoadSoundShader(text); err != nil {
			e.log.Warn("sound dispatch failed", zap.Error(err))
			return
		}
		e.log.Info("sound shader loaded", zap.String("path", path))
		return
	}

	if err := e.validator.Validate(ctx, rc.Validator, text, suffix); err != nil {
		e.log.Warn("validation failed", zap.String("path", path), zap.Error(err))
		return
	}
	load := func(ctx context.Context, ref string) (string, error) {
		return e.validator.LoadFile(ctx, rc.Validator, ref)
	}
	assembled, err := passes.Assemble(ctx, rc.Passes, text, suffix, dir, load)
	if err != nil {
		e.log.Warn("pass assembly failed", zap.String("path", path), zap.Error(err))
		return
	}

	// Last-writer-wins across overlapping rebuilds: no ordering is
	// enforced between concurrent completions.
	e.mu.Lock()
	e.lastShader = assembled
	p := e.player
	e.mu.Unlock()
	if err := p.LoadShader(assembled); err != nil {
		e.log.Warn("shader dispatch failed", zap.Error(err))
		return
	}
	e.log.Info("shader loaded", zap.String("path", path), zap.Int("passes", len(assembled)))
}

// loadLastShader re-dispatches the last successful build without
// re-reading the editor. This is the control source's reload path.
func (e *Engine) loadLastShader() {
	e.mu.Lock()
	shader := e.lastShader
	p := e.player
	e.mu.Unlock()
	if shader == nil {
		return
	}
	if err := p.LoadShader(shader); err != nil {
		e.log.Warn("reload dispatch failed", zap.Error(err))
	}
}

// onChange fans a visual configuration diff out: backend selection,
// control source, the active player, and a rebuild from the last known
// editor state.
func (e *Engine) onChange(diff config.Diff) {
	if _, ok := diff["server"]; ok {
		e.swapBackend()
	}
	if c, ok := diff["osc"]; ok {
		e.updateControlSource(c.New)
	}
	e.activePlayer().OnChange(diff)

	e.mu.Lock()
	ed := e.lastEditor
	e.mu.Unlock()
	e.loadShaderOfEditor(ed, false)
}

// onChangeSound forwards the diff and re-dispatches the last sound
// shader so the player picks the new options up.
func (e *Engine) onChangeSound(diff config.Diff) {
	if err := e.activePlayer().OnChangeSound(diff); err != nil {
		e.log.Warn("sound change dispatch failed", zap.Error(err))
		return
	}
	e.mu.Lock()
	sound := e.lastSound
	p := e.player
	e.mu.Unlock()
	if sound == "" {
		return
	}
	if err := p.LoadSoundShader(sound); err != nil {
		e.log.Warn("sound reload failed", zap.Error(err))
	}
}

// swapBackend replaces the live backend according to the fresh
// configuration snapshot. The old backend is stopped before the new one
// is constructed so two backends never render at once; the isPlaying
// flag and last visual state carry across.
func (e *Engine) swapBackend() {
	e.mu.Lock()
	old := e.player
	playing := e.isPlaying
	last := e.lastShader
	e.mu.Unlock()

	old.Stop()
	rc := e.cfg.CreateRc()
	p, err := e.createPlayer(rc, playing, last)
	if err != nil {
		e.log.Error("backend swap failed, keeping previous backend", zap.Error(err))
		if playing {
			old.Play()
		}
		return
	}

	e.mu.Lock()
	e.player = p
	e.mu.Unlock()
	old.Destroy()

	if rc.Server != "" {
		e.log.Info("switched to remote backend", zap.String("server", rc.Server))
	} else {
		e.log.Info("switched to local backend")
	}
}

// updateControlSource reconciles the live OSC listener with the
// configured port: same port keeps the instance, a different or absent
// port destroys it, a newly present port creates one.
func (e *Engine) updateControlSource(v any) {
	port, ok := asPort(v)

	e.mu.Lock()
	cur := e.osc
	e.mu.Unlock()

	if cur != nil && (!ok || port != cur.Port()) {
		cur.Destroy()
		e.mu.Lock()
		e.osc = nil
		e.mu.Unlock()
		cur = nil
	}
	if !ok || cur != nil {
		return
	}

	src, err := e.newControl(port,
		func(addr string, args []float64) { e.activePlayer().SetOsc(addr, args) },
		e.loadLastShader)
	if err != nil {
		e.log.Warn("cannot start control source", zap.Int("port", port), zap.Error(err))
		return
	}
	e.mu.Lock()
	e.osc = src
	e.mu.Unlock()
}

func asPort(v any) (int, bool) {
	n, ok := v.(int)
	if !ok || n <= 0 {
		return 0, false
	}
	return n, true
}

// Destroy releases everything the engine owns: watch subscriptions,
// config subscriptions, the control source and the backend.
func (e *Engine) Destroy() {
	e.StopWatching()

	e.mu.Lock()
	osc := e.osc
	p := e.player
	cfgSub, cfgSoundSub := e.cfgSub, e.cfgSoundSub
	e.osc = nil
	e.cfgSub, e.cfgSoundSub = nil, nil
	e.mu.Unlock()

	cfgSub.Close()
	cfgSoundSub.Close()
	if osc != nil {
		osc.Destroy()
	}
	if p != nil {
		p.Destroy()
	}
	e.cfg.Stop()
}
