package backend

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"glslive/internal/config"
	"glslive/internal/passes"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Remote forwards every player call to an external player server over
// a websocket. The handoff bundle is sent first so the remote side
// resumes exactly where the previous backend left off.
type Remote struct {
	log    *zap.Logger
	server string

	mu   sync.Mutex
	conn *websocket.Conn
}

const dialTimeout = 5 * time.Second

// NewRemote dials server (host:port or ws:// URL) and performs the
// handoff. The handoff ID is generated here so server logs can
// correlate one session across reconnecting tools.
func NewRemote(server string, handoff Handoff, log *zap.Logger) (*Remote, error) {
	url := server
	if !strings.Contains(url, "://") {
		url = "ws://" + url
	}
	if !strings.HasSuffix(url, "/ws") {
		url = strings.TrimRight(url, "/") + "/ws"
	}

	dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("connecting to player server %s: %w", server, err)
	}

	p := &Remote{
		log:    log.Named("remote"),
		server: server,
		conn:   conn,
	}
	if handoff.ID == "" {
		handoff.ID = uuid.NewString()
	}
	if err := p.send(CmdHandoff, handoff); err != nil {
		conn.Close()
		return nil, err
	}
	p.log.Info("attached to player server",
		zap.String("server", server), zap.String("session", handoff.ID))
	return p, nil
}

func (p *Remote) send(cmd string, payload any) error {
	raw, err := Encode(cmd, payload)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return fmt.Errorf("player server connection closed")
	}
	if err := p.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		return fmt.Errorf("sending %s to player server: %w", cmd, err)
	}
	return nil
}

// sendLogged is for the fire-and-forget half of the Player interface.
func (p *Remote) sendLogged(cmd string, payload any) {
	if err := p.send(cmd, payload); err != nil {
		p.log.Warn("command lost", zap.String("cmd", cmd),
			zap.String("server", p.server), zap.Error(err))
	}
}

func (p *Remote) Play()      { p.sendLogged(CmdPlay, nil) }
func (p *Remote) Stop()      { p.sendLogged(CmdStop, nil) }
func (p *Remote) PlaySound() { p.sendLogged(CmdPlaySound, nil) }
func (p *Remote) StopSound() { p.sendLogged(CmdStopSound, nil) }

func (p *Remote) Destroy() {
	p.mu.Lock()
	conn := p.conn
	p.conn = nil
	p.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}

func (p *Remote) LoadShader(shader []passes.Assembled) error {
	return p.send(CmdLoadShader, shader)
}

func (p *Remote) LoadSoundShader(src string) error {
	return p.send(CmdLoadSoundShader, src)
}

func (p *Remote) SetOsc(addr string, args []float64) {
	p.sendLogged(CmdSetOsc, oscPayload{Address: addr, Args: args})
}

func (p *Remote) OnChange(diff config.Diff) {
	p.sendLogged(CmdOnChange, newChangePayload(diff))
}

func (p *Remote) OnChangeSound(diff config.Diff) error {
	return p.send(CmdOnChangeSound, newChangePayload(diff))
}
