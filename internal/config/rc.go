// Package config resolves run configuration for a live-coding session.
//
// Three layers stack into one immutable Rc snapshot: built-in defaults,
// the project rc file (.liverc.yml), and per-file settings taken from
// the head comment of the shader being edited. Sound shaders keep their
// own per-file layer so visual and sound rc evolve independently.
package config

import "glslive/internal/passes"

// Rc is a fully resolved, immutable configuration snapshot.
type Rc struct {
	Validator   string        `yaml:"validator" json:"validator,omitempty"`
	Glslify     bool          `yaml:"glslify" json:"glslify,omitempty"`
	Server      string        `yaml:"server" json:"server,omitempty"`
	Osc         int           `yaml:"osc" json:"osc,omitempty"`
	PixelRatio  float64       `yaml:"pixel_ratio" json:"pixelRatio,omitempty"`
	FrameSkip   int           `yaml:"frameskip" json:"frameskip,omitempty"`
	VertexCount int           `yaml:"vertex_count" json:"vertexCount,omitempty"`
	VertexMode  string        `yaml:"vertex_mode" json:"vertexMode,omitempty"`
	Audio       bool          `yaml:"audio" json:"audio,omitempty"`
	Passes      []passes.Spec `yaml:"passes" json:"passes,omitempty"`
}

func defaultRc() Rc {
	return Rc{
		PixelRatio:  2,
		FrameSkip:   1,
		VertexCount: 3000,
		VertexMode:  "TRIANGLES",
	}
}

// Settings is one overlay layer: every field optional, nil meaning
// "inherit from the layer below".
type Settings struct {
	Validator   *string       `yaml:"validator" json:"validator"`
	Glslify     *bool         `yaml:"glslify" json:"glslify"`
	Server      *string       `yaml:"server" json:"server"`
	Osc         *int          `yaml:"osc" json:"osc"`
	PixelRatio  *float64      `yaml:"pixel_ratio" json:"pixelRatio"`
	FrameSkip   *int          `yaml:"frameskip" json:"frameskip"`
	VertexCount *int          `yaml:"vertex_count" json:"vertexCount"`
	VertexMode  *string       `yaml:"vertex_mode" json:"vertexMode"`
	Audio       *bool         `yaml:"audio" json:"audio"`
	Passes      []passes.Spec `yaml:"passes" json:"passes"`
}

func (s Settings) apply(rc *Rc) {
	if s.Validator != nil {
		rc.Validator = *s.Validator
	}
	if s.Glslify != nil {
		rc.Glslify = *s.Glslify
	}
	if s.Server != nil {
		rc.Server = *s.Server
	}
	if s.Osc != nil {
		rc.Osc = *s.Osc
	}
	if s.PixelRatio != nil {
		rc.PixelRatio = *s.PixelRatio
	}
	if s.FrameSkip != nil {
		rc.FrameSkip = *s.FrameSkip
	}
	if s.VertexCount != nil {
		rc.VertexCount = *s.VertexCount
	}
	if s.VertexMode != nil {
		rc.VertexMode = *s.VertexMode
	}
	if s.Audio != nil {
		rc.Audio = *s.Audio
	}
	if s.Passes != nil {
		rc.Passes = s.Passes
	}
}
