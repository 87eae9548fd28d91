// Package control receives real-time OSC messages for the engine.
// A Source binds one UDP port; messages addressed "/reload" raise the
// reload signal, everything else is forwarded as a control message with
// its numeric arguments.
package control

import (
	"errors"
	"fmt"
	"net"

	"github.com/hypebeast/go-osc/osc"
	"go.uber.org/zap"
)

// ReloadAddress is the OSC address that re-triggers the last shader
// instead of carrying a control value.
const ReloadAddress = "/reload"

// Source is one live OSC listener. At most one exists per session;
// the engine destroys and recreates it when the configured port moves.
type Source struct {
	log    *zap.Logger
	port   int
	conn   net.PacketConn
	server *osc.Server
}

// New binds port and starts dispatching. onMessage receives the address
// and the numeric arguments of every non-reload message; onReload fires
// for ReloadAddress.
func New(port int, onMessage func(addr string, args []float64), onReload func(), log *zap.Logger) (*Source, error) {
	s := &Source{
		log:  log.Named("osc"),
		port: port,
	}

	dispatcher := osc.NewStandardDispatcher()
	err := dispatcher.AddMsgHandler("*", func(msg *osc.Message) {
		if msg.Address == ReloadAddress {
			s.log.Debug("reload requested")
			onReload()
			return
		}
		onMessage(msg.Address, numericArgs(msg.Arguments))
	})
	if err != nil {
		return nil, fmt.Errorf("osc dispatcher: %w", err)
	}

	// Bind before returning so a busy port fails construction instead
	// of leaving a Source that silently never receives.
	conn, err := net.ListenPacket("udp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return nil, fmt.Errorf("osc bind: %w", err)
	}
	s.conn = conn
	s.server = &osc.Server{Dispatcher: dispatcher}
	go func() {
		if err := s.server.Serve(conn); err != nil && !errors.Is(err, net.ErrClosed) {
			s.log.Warn("osc server stopped", zap.Int("port", port), zap.Error(err))
		}
	}()
	s.log.Info("osc listening", zap.Int("port", port))
	return s, nil
}

// Port returns the bound UDP port.
func (s *Source) Port() int { return s.port }

// Destroy closes the listener. The Source must not be reused.
func (s *Source) Destroy() {
	if err := s.conn.Close(); err != nil {
		s.log.Debug("closing osc connection", zap.Error(err))
	}
	s.log.Info("osc closed", zap.Int("port", s.port))
}

// numericArgs narrows OSC arguments to the float64 list the players
// take; non-numeric arguments are dropped.
func numericArgs(args []any) []float64 {
	out := make([]float64, 0, len(args))
	for _, a := range args {
		switch v := a.(type) {
		case int32:
			out = append(out, float64(v))
		case int64:
			out = append(out, float64(v))
		case float32:
			out = append(out, float64(v))
		case float64:
			out = append(out, v)
		}
	}
	return out
}
