// Package comments indexes source comments by line so detectors can tell
// whether the author already acknowledged a pattern as intentional.
package comments

import (
	"strings"

	"pyhabit/internal/pyast"
)

// Index maps a 1-based line to the comment text on that line.
type Index struct {
	byLine map[int]string
}

// NewIndex builds an index. When a line holds more than one comment the last
// one wins.
func NewIndex(cs []pyast.Comment) *Index {
	idx := &Index{byLine: make(map[int]string, len(cs))}
	for _, c := range cs {
		idx.byLine[c.Line] = c.Text
	}
	return idx
}

// At returns the comment on line, if any.
func (i *Index) At(line int) (string, bool) {
	if i == nil {
		return "", false
	}
	text, ok := i.byLine[line]
	return text, ok
}

// Len returns the number of indexed lines.
func (i *Index) Len() int {
	if i == nil {
		return 0
	}
	return len(i.byLine)
}

// Aware reports whether a comment on line, or on one of the `above` lines
// before it, mentions any of the keywords. Matching is case-insensitive.
func (i *Index) Aware(line, above int, keywords []string) bool {
	if i == nil {
		return false
	}
	for l := max(line-above, 1); l <= line; l++ {
		text, ok := i.byLine[l]
		if !ok {
			continue
		}
		lower := strings.ToLower(text)
		for _, kw := range keywords {
			if strings.Contains(lower, strings.ToLower(kw)) {
				return true
			}
		}
	}
	return false
}
