// Package preprocess expands include directives in shader source.
// It understands the two spellings common in live-coding shaders:
//
//	#pragma include "lib/noise.glsl"
//	#include "lib/noise.glsl"
//
// Paths resolve relative to the including file's directory. Expansion
// is recursive with a visited set, so include cycles fail instead of
// looping.
package preprocess

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var includeRe = regexp.MustCompile(`(?m)^[ \t]*#(?:pragma[ \t]+)?include[ \t]+"([^"]+)"[ \t]*$`)

// Expand rewrites src, replacing every include directive with the
// expanded content of the referenced file, resolved against dir.
func Expand(src, dir string) (string, error) {
	return expand(src, dir, make(map[string]bool))
}

func expand(src, dir string, visited map[string]bool) (string, error) {
	var expandErr error
	out := includeRe.ReplaceAllStringFunc(src, func(match string) string {
		if expandErr != nil {
			return match
		}
		rel := includeRe.FindStringSubmatch(match)[1]
		path := filepath.Join(dir, rel)
		abs, err := filepath.Abs(path)
		if err != nil {
			expandErr = err
			return match
		}
		if visited[abs] {
			expandErr = fmt.Errorf("include cycle through %s", rel)
			return match
		}
		visited[abs] = true
		raw, err := os.ReadFile(abs)
		if err != nil {
			expandErr = fmt.Errorf("include %q: %w", rel, err)
			return match
		}
		nested, err := expand(string(raw), filepath.Dir(abs), visited)
		if err != nil {
			expandErr = err
			return match
		}
		delete(visited, abs)
		return strings.TrimRight(nested, "\n")
	})
	if expandErr != nil {
		return "", expandErr
	}
	return out, nil
}
