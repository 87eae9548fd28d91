package backend

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"glslive/internal/config"
	"glslive/internal/passes"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Local serves the rendering surface itself: an HTTP server with an
// embedded WebGL player page, plus a websocket hub broadcasting engine
// commands to every connected view. Constructing a Local creates a
// fresh surface; Destroy tears the whole server down.
type Local struct {
	log *zap.Logger

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}

	// Retained session state, replayed to late-joining views.
	rc         config.Rc
	playing    bool
	lastShader []passes.Assembled
	lastSound  string

	srv *http.Server
	ln  net.Listener
}

var upgrader = websocket.Upgrader{
	// The player page is served by this same process; cross-origin
	// views are fine for a local tool.
	CheckOrigin: func(*http.Request) bool { return true },
}

// NewLocal starts the local player on addr (host:port, empty port picks
// an ephemeral one) seeded with the session state to continue from.
func NewLocal(addr string, seed Seed, log *zap.Logger) (*Local, error) {
	p := &Local{
		log:        log.Named("local"),
		conns:      make(map[*websocket.Conn]struct{}),
		rc:         seed.Rc,
		playing:    seed.IsPlaying,
		lastShader: seed.LastShader,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", p.servePage)
	mux.HandleFunc("/ws", p.serveWs)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	p.ln = ln
	p.srv = &http.Server{Handler: mux}
	go func() {
		if err := p.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			p.log.Warn("view server stopped", zap.Error(err))
		}
	}()
	p.log.Info("view available", zap.String("url", "http://"+ln.Addr().String()))
	return p, nil
}

// Addr returns the address the view server is bound to.
func (p *Local) Addr() string { return p.ln.Addr().String() }

func (p *Local) servePage(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(playerPage)
}

func (p *Local) serveWs(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		p.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	// Replay current state so the view catches up immediately. Holding
	// p.mu serializes the replay against broadcast, and the conn joins
	// p.conns only afterwards, so no other goroutine writes to it yet.
	p.mu.Lock()
	for _, raw := range p.snapshotLocked() {
		if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
			p.mu.Unlock()
			conn.Close()
			return
		}
	}
	p.conns[conn] = struct{}{}
	p.mu.Unlock()

	go func() {
		// Views never send application data; reading only detects close.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
		p.mu.Lock()
		delete(p.conns, conn)
		p.mu.Unlock()
		conn.Close()
	}()
}

// snapshotLocked encodes the retained state as a replayable command
// sequence. Callers hold p.mu.
func (p *Local) snapshotLocked() [][]byte {
	var out [][]byte
	push := func(cmd string, payload any) {
		raw, err := Encode(cmd, payload)
		if err != nil {
			p.log.Warn("cannot encode snapshot command", zap.String("cmd", cmd), zap.Error(err))
			return
		}
		out = append(out, raw)
	}
	push(CmdOnChange, p.rc)
	if p.lastShader != nil {
		push(CmdLoadShader, p.lastShader)
	}
	if p.lastSound != "" {
		push(CmdLoadSoundShader, p.lastSound)
	}
	if p.playing {
		push(CmdPlay, nil)
	}
	return out
}

func (p *Local) broadcast(cmd string, payload any) {
	raw, err := Encode(cmd, payload)
	if err != nil {
		p.log.Warn("cannot encode command", zap.String("cmd", cmd), zap.Error(err))
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for conn := range p.conns {
		if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
			p.log.Debug("dropping dead view", zap.Error(err))
			delete(p.conns, conn)
			conn.Close()
		}
	}
}

func (p *Local) Play() {
	p.mu.Lock()
	p.playing = true
	p.mu.Unlock()
	p.broadcast(CmdPlay, nil)
}

func (p *Local) Stop() {
	p.mu.Lock()
	p.playing = false
	p.mu.Unlock()
	p.broadcast(CmdStop, nil)
}

// Destroy closes every view connection and the HTTP server.
func (p *Local) Destroy() {
	p.mu.Lock()
	for conn := range p.conns {
		conn.Close()
		delete(p.conns, conn)
	}
	p.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := p.srv.Shutdown(ctx); err != nil {
		p.log.Warn("view server shutdown", zap.Error(err))
	}
}

func (p *Local) LoadShader(shader []passes.Assembled) error {
	p.mu.Lock()
	p.lastShader = shader
	p.mu.Unlock()
	p.broadcast(CmdLoadShader, shader)
	return nil
}

func (p *Local) LoadSoundShader(src string) error {
	p.mu.Lock()
	p.lastSound = src
	p.mu.Unlock()
	p.broadcast(CmdLoadSoundShader, src)
	return nil
}

func (p *Local) PlaySound() { p.broadcast(CmdPlaySound, nil) }
func (p *Local) StopSound() { p.broadcast(CmdStopSound, nil) }

func (p *Local) SetOsc(addr string, args []float64) {
	p.broadcast(CmdSetOsc, oscPayload{Address: addr, Args: args})
}

func (p *Local) OnChange(diff config.Diff) {
	p.broadcast(CmdOnChange, newChangePayload(diff))
}

func (p *Local) OnChangeSound(diff config.Diff) error {
	p.broadcast(CmdOnChangeSound, newChangePayload(diff))
	return nil
}
