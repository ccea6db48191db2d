// Package layout word-wraps overlay text against real glyph metrics so
// bubbles and cards can be sized before drawing.
package layout

import (
	"strings"

	"golang.org/x/image/font"
)

// Block is the result of wrapping one run of text.
type Block struct {
	Lines    []string
	HeightPx int
}

// Wrap greedily packs words into lines no wider than maxWidthPx as measured
// by face. Words wider than the limit get a line of their own rather than
// being split mid-glyph.
func Wrap(text string, maxWidthPx int, face font.Face, fontSize, lineGap int) Block {
	words := strings.Fields(text)
	if len(words) == 0 {
		return Block{}
	}

	var lines []string
	current := words[0]

	for _, word := range words[1:] {
		candidate := current + " " + word
		if MeasureWidth(candidate, face) <= maxWidthPx {
			current = candidate
			continue
		}
		lines = append(lines, current)
		current = word
	}
	lines = append(lines, current)

	return Block{
		Lines:    lines,
		HeightPx: len(lines) * (fontSize + lineGap),
	}
}

// MeasureWidth returns the advance width of s in pixels under face.
func MeasureWidth(s string, face font.Face) int {
	return font.MeasureString(face, s).Ceil()
}
