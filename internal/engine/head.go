package engine

import "regexp"

// The head comment micro-grammar: the first `/* ... */` span in the
// source, non-greedy. Later or nested comment blocks are never merged
// in; only the first one carries per-file settings.
var headCommentRe = regexp.MustCompile(`(?s)/\*(.*?)\*/`)

func headComment(src string) string {
	m := headCommentRe.FindStringSubmatch(src)
	if m == nil {
		return ""
	}
	return m[1]
}
