package layout

import (
	"strings"
	"testing"

	"golang.org/x/image/font/basicfont"
)

// Face7x13 has a fixed 7px advance, so expected widths are exact.
var face = basicfont.Face7x13

func TestWrapFitsWidth(t *testing.T) {
	// 10 chars per line max at 7px/char.
	b := Wrap("one two three four five", 70, face, 13, 4)
	for _, line := range b.Lines {
		if w := MeasureWidth(line, face); w > 70 {
			t.Errorf("line %q measures %dpx, over the 70px limit", line, w)
		}
	}
	if b.HeightPx != len(b.Lines)*(13+4) {
		t.Errorf("HeightPx = %d, want %d", b.HeightPx, len(b.Lines)*(13+4))
	}
}

func TestWrapKeepsWordOrder(t *testing.T) {
	text := "alpha beta gamma delta epsilon"
	b := Wrap(text, 84, face, 13, 4)
	if got := strings.Join(b.Lines, " "); got != text {
		t.Errorf("rejoined lines = %q, want %q", got, text)
	}
}

func TestWrapIdempotent(t *testing.T) {
	text := "the quick brown fox jumps over the lazy dog again and again"
	first := Wrap(text, 98, face, 13, 4)
	second := Wrap(strings.Join(first.Lines, " "), 98, face, 13, 4)

	if len(first.Lines) != len(second.Lines) {
		t.Fatalf("line counts differ: %d vs %d", len(first.Lines), len(second.Lines))
	}
	for i := range first.Lines {
		if first.Lines[i] != second.Lines[i] {
			t.Errorf("line %d differs: %q vs %q", i, first.Lines[i], second.Lines[i])
		}
	}
}

func TestWrapOversizedWord(t *testing.T) {
	// A single word wider than the limit still gets its own line.
	b := Wrap("tiny extraordinarily tiny", 70, face, 13, 4)
	found := false
	for _, line := range b.Lines {
		if line == "extraordinarily" {
			found = true
		}
	}
	if !found {
		t.Errorf("oversized word not isolated on its own line: %v", b.Lines)
	}
}

func TestWrapEmpty(t *testing.T) {
	b := Wrap("   ", 70, face, 13, 4)
	if len(b.Lines) != 0 || b.HeightPx != 0 {
		t.Errorf("empty text produced %v", b)
	}
}
