package backend

import (
	"encoding/json"
	"fmt"

	"glslive/internal/config"
)

// Wire command names. Both players speak the same envelope so a view
// cannot tell which backend it is attached to.
const (
	CmdPlay            = "play"
	CmdStop            = "stop"
	CmdLoadShader      = "loadShader"
	CmdLoadSoundShader = "loadSoundShader"
	CmdPlaySound       = "playSound"
	CmdStopSound       = "stopSound"
	CmdSetOsc          = "setOsc"
	CmdOnChange        = "onChange"
	CmdOnChangeSound   = "onChangeSound"
	CmdHandoff         = "handoff"
)

// Command is the JSON envelope written to a view or a remote server.
type Command struct {
	Cmd     string          `json:"cmd"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// oscPayload is the body of a CmdSetOsc command.
type oscPayload struct {
	Address string    `json:"address"`
	Args    []float64 `json:"args,omitempty"`
}

// changePayload flattens a config.Diff to its consumed (new) side.
type changePayload map[string]any

func newChangePayload(diff config.Diff) changePayload {
	out := make(changePayload, len(diff))
	for name, c := range diff {
		out[name] = c.New
	}
	return out
}

// Encode marshals a command envelope.
func Encode(cmd string, payload any) ([]byte, error) {
	env := Command{Cmd: cmd}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encoding %s payload: %w", cmd, err)
		}
		env.Payload = raw
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", cmd, err)
	}
	return raw, nil
}

// Decode unmarshals a command envelope.
func Decode(raw []byte) (Command, error) {
	var env Command
	if err := json.Unmarshal(raw, &env); err != nil {
		return Command{}, fmt.Errorf("decoding command: %w", err)
	}
	if env.Cmd == "" {
		return Command{}, fmt.Errorf("decoding command: empty cmd")
	}
	return env, nil
}
