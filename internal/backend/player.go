// Package backend renders what the engine builds. Two interchangeable
// players exist: Local serves an in-process WebGL view over a websocket
// hub, Remote forwards everything to an already-running player server.
// Exactly one player is live at a time; the engine owns the swap.
package backend

import (
	"glslive/internal/config"
	"glslive/internal/passes"
)

// Player is the capability set both backends implement.
type Player interface {
	Play()
	Stop()
	Destroy()
	LoadShader(p []passes.Assembled) error
	LoadSoundShader(src string) error
	PlaySound()
	StopSound()
	SetOsc(addr string, args []float64)
	OnChange(diff config.Diff)
	OnChangeSound(diff config.Diff) error
}

// Seed carries the session state a freshly constructed Local player
// continues from.
type Seed struct {
	Rc         config.Rc
	IsPlaying  bool
	LastShader []passes.Assembled
}

// Handoff is the bundle sent to a Remote player on connect so the
// remote side can resume the session seamlessly.
type Handoff struct {
	ID          string             `json:"id"`
	Rc          config.Rc          `json:"rc"`
	IsPlaying   bool               `json:"isPlaying"`
	ProjectPath string             `json:"projectPath"`
	LastShader  []passes.Assembled `json:"lastShader,omitempty"`
}
