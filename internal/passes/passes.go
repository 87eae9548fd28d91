// Package passes turns an ordered list of pass specifications plus the
// shader currently being edited into the concrete render passes a
// player consumes.
package passes

import (
	"context"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Spec is one entry of the ordered pass list from the rc file or a
// head comment. All fields are optional; an empty Spec means "render
// the edited shader to the screen".
type Spec struct {
	Vs     string  `yaml:"vs,omitempty" json:"vs,omitempty"`
	Fs     string  `yaml:"fs,omitempty" json:"fs,omitempty"`
	Target string  `yaml:"target,omitempty" json:"target,omitempty"`
	Float  bool    `yaml:"float,omitempty" json:"float,omitempty"`
	Width  float64 `yaml:"width,omitempty" json:"width,omitempty"`
	Height float64 `yaml:"height,omitempty" json:"height,omitempty"`
}

// Assembled is the resolved form of one Spec: concrete shader text
// instead of file references. Target, Float, Width and Height are
// carried through unchanged.
type Assembled struct {
	Vs     string  `json:"vs,omitempty"`
	Fs     string  `json:"fs,omitempty"`
	Target string  `json:"target,omitempty"`
	Float  bool    `json:"float,omitempty"`
	Width  float64 `json:"width,omitempty"`
	Height float64 `json:"height,omitempty"`
}

// Loader resolves and returns the text of a referenced shader file.
// The engine binds this to the validator's load-and-validate entry point.
type Loader func(ctx context.Context, path string) (string, error)

// Vertex and fragment suffix sets. ".glsl" counts as fragment: live
// coding sessions edit fragment shaders unless told otherwise.
func IsVertexSuffix(suffix string) bool {
	return suffix == ".vert" || suffix == ".vs"
}

func IsFragmentSuffix(suffix string) bool {
	return suffix == ".frag" || suffix == ".fs" || suffix == ".glsl"
}

// Known reports whether suffix names a shader file the pipeline accepts.
func Known(suffix string) bool {
	return IsVertexSuffix(suffix) || IsFragmentSuffix(suffix)
}

// Assemble resolves specs into the same number of Assembled passes, in
// the original order. An empty specs list is treated as a single
// implicit pass. Per-spec file loads run concurrently; the first load
// error aborts the whole assembly.
//
// Fill rules for the edited shader text:
//   - a spec with neither vs nor fs set receives the edited text on the
//     side selected by suffix (vertex suffixes fill vs, the rest fs);
//   - the last spec additionally receives the edited text on its unset
//     side when the suffix indicates that side (a .frag edit completes
//     a final pass that only named a vs file, and vice versa).
//
// A spec that names only one side and is not completed by the rules
// above yields a pass with the other side empty; that is legal here and
// left to the player to reject or tolerate.
func Assemble(ctx context.Context, specs []Spec, editedText, suffix, dir string, load Loader) ([]Assembled, error) {
	if len(specs) == 0 {
		specs = []Spec{{}}
	}
	suffix = strings.ToLower(suffix)
	last := len(specs) - 1

	out := make([]Assembled, len(specs))
	g, ctx := errgroup.WithContext(ctx)
	for i, spec := range specs {
		i, spec := i, spec
		g.Go(func() error {
			pass := Assembled{
				Target: spec.Target,
				Float:  spec.Float,
				Width:  spec.Width,
				Height: spec.Height,
			}
			switch {
			case spec.Vs == "" && spec.Fs == "":
				if IsVertexSuffix(suffix) {
					pass.Vs = editedText
				} else {
					pass.Fs = editedText
				}
			default:
				if spec.Vs != "" {
					text, err := load(ctx, filepath.Join(dir, spec.Vs))
					if err != nil {
						return err
					}
					pass.Vs = text
				}
				if spec.Fs != "" {
					text, err := load(ctx, filepath.Join(dir, spec.Fs))
					if err != nil {
						return err
					}
					pass.Fs = text
				}
				if i == last {
					if spec.Vs != "" && spec.Fs == "" && IsFragmentSuffix(suffix) {
						pass.Fs = editedText
					}
					if spec.Fs != "" && spec.Vs == "" && IsVertexSuffix(suffix) {
						pass.Vs = editedText
					}
				}
			}
			out[i] = pass
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
