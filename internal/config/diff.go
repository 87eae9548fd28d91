package config

import "reflect"

// Change records one option's transition between two Rc snapshots.
type Change struct {
	Old any
	New any
}

// Diff maps option name to its change, restricted to options whose
// value actually changed. Consumers read the New side only; Old is kept
// for diagnostics.
type Diff map[string]Change

// diffRc compares two snapshots field by field using the option names
// the rest of the system keys on ("server", "osc", ...).
func diffRc(old, new Rc) Diff {
	d := Diff{}
	add := func(name string, o, n any) {
		if !reflect.DeepEqual(o, n) {
			d[name] = Change{Old: o, New: n}
		}
	}
	add("validator", old.Validator, new.Validator)
	add("glslify", old.Glslify, new.Glslify)
	add("server", old.Server, new.Server)
	add("osc", old.Osc, new.Osc)
	add("pixel_ratio", old.PixelRatio, new.PixelRatio)
	add("frameskip", old.FrameSkip, new.FrameSkip)
	add("vertex_count", old.VertexCount, new.VertexCount)
	add("vertex_mode", old.VertexMode, new.VertexMode)
	add("audio", old.Audio, new.Audio)
	add("passes", old.Passes, new.Passes)
	return d
}
