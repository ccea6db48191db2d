// Package overlay draws the visual content for one frame: a stack of chat
// bubbles with progressive reveal, or a single post/comment card.
package overlay

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math/rand"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"github.com/ZacxDev/story-reel/internal/layout"
	"github.com/ZacxDev/story-reel/pkg/types"
)

// Style configures the overlay look.
type Style struct {
	Theme        types.Theme
	Face         font.Face
	FontSize     int
	LineGap      int
	Padding      int
	MaxTextWidth int
	AvatarSize   int

	// BubblesPerPage controls the chat grouping rule: page i shows
	// messages [i*n, i*n+n).
	BubblesPerPage int
}

type palette struct {
	cardBg      color.RGBA
	text        color.RGBA
	meta        color.RGBA
	bubbleLeft  color.RGBA
	bubbleRight color.RGBA
	bubbleText  color.RGBA
	badge       color.RGBA
}

func paletteFor(theme types.Theme) palette {
	if theme == types.ThemeLight {
		return palette{
			cardBg:      color.RGBA{255, 255, 255, 255},
			text:        color.RGBA{26, 26, 27, 255},
			meta:        color.RGBA{120, 124, 126, 255},
			bubbleLeft:  color.RGBA{233, 233, 235, 255},
			bubbleRight: color.RGBA{0, 132, 255, 255},
			bubbleText:  color.RGBA{26, 26, 27, 255},
			badge:       color.RGBA{0, 121, 211, 255},
		}
	}
	return palette{
		cardBg:      color.RGBA{26, 26, 27, 255},
		text:        color.RGBA{215, 218, 220, 255},
		meta:        color.RGBA{129, 131, 132, 255},
		bubbleLeft:  color.RGBA{58, 59, 60, 255},
		bubbleRight: color.RGBA{0, 132, 255, 255},
		bubbleText:  color.RGBA{240, 240, 240, 255},
		badge:       color.RGBA{0, 121, 211, 255},
	}
}

// Renderer draws overlays onto raster frames. It keeps a scratch layer for
// chat pages so bubbles accumulate across a progressive reveal without
// redrawing the whole stack each frame.
type Renderer struct {
	style   Style
	pal     palette
	avatars map[string]image.Image

	scratch   *image.RGBA
	lastPage  int
	lastShown int

	// counters holds the cosmetic like/comment numbers, generated once
	// per segment so they do not flicker between frames.
	counters map[int][2]int
	rng      *rand.Rand
}

// New creates a renderer for frames of the given size. Avatars are keyed by
// author name; a missing avatar leaves the slot blank rather than failing
// the frame.
func New(style Style, width, height int, avatars map[string]image.Image) *Renderer {
	if style.BubblesPerPage <= 0 {
		style.BubblesPerPage = 4
	}
	return &Renderer{
		style:    style,
		pal:      paletteFor(style.Theme),
		avatars:  avatars,
		scratch:  image.NewRGBA(image.Rect(0, 0, width, height)),
		lastPage: -1,
		counters: make(map[int][2]int),
		rng:      rand.New(rand.NewSource(1)),
	}
}

// Render draws the overlay for the active segment onto dst. The segment
// kind union is closed; an unknown kind is a programming error.
func (r *Renderer) Render(dst *image.RGBA, segments []types.Segment, active int) error {
	if active < 0 || active >= len(segments) {
		return fmt.Errorf("active segment %d out of range (%d segments)", active, len(segments))
	}

	switch segments[active].Kind {
	case types.SegmentKindChatMessage:
		r.renderChatPage(segments, active)
	case types.SegmentKindPost, types.SegmentKindComment:
		r.renderCard(segments[active])
	default:
		return fmt.Errorf("unhandled segment kind %q", segments[active].Kind)
	}

	draw.Draw(dst, dst.Bounds(), r.scratch, image.Point{}, draw.Over)
	return nil
}

// renderChatPage draws the visible portion of the current bubble page. At a
// group boundary the scratch is fully cleared so bubbles from the previous
// page cannot linger; within a page only newly revealed bubbles get drawn.
func (r *Renderer) renderChatPage(segments []types.Segment, active int) {
	per := r.style.BubblesPerPage
	page := active / per
	shown := active%per + 1

	if page != r.lastPage {
		clear(r.scratch.Pix)
		r.lastPage = page
		r.lastShown = 0
	}

	first := page * per
	pageLen := per
	if first+pageLen > len(segments) {
		pageLen = len(segments) - first
	}
	if shown > pageLen {
		shown = pageLen
	}

	// Lay out the whole page block, not just the revealed prefix, so
	// bubble positions stay fixed while the reveal progresses.
	blocks := make([]layout.Block, pageLen)
	heights := make([]int, pageLen)
	total := 0
	for i := 0; i < pageLen; i++ {
		blocks[i] = layout.Wrap(segments[first+i].Text, r.style.MaxTextWidth, r.style.Face, r.style.FontSize, r.style.LineGap)
		heights[i] = blocks[i].HeightPx + 2*r.style.Padding
		total += heights[i] + r.style.Padding
	}

	y := (r.scratch.Bounds().Dy() - total) / 2
	for i := 0; i < shown; i++ {
		if i >= r.lastShown {
			r.drawBubble(segments[first+i], blocks[i], y, heights[i])
		}
		y += heights[i] + r.style.Padding
	}
	r.lastShown = shown
}

func (r *Renderer) drawBubble(seg types.Segment, block layout.Block, y, height int) {
	width := r.bubbleWidth(block)
	frameW := r.scratch.Bounds().Dx()

	margin := r.style.Padding + r.style.AvatarSize + r.style.Padding
	x := margin
	bg := r.pal.bubbleLeft
	if seg.Side == "right" {
		x = frameW - margin - width
		bg = r.pal.bubbleRight
	}

	// Stale pixels from an earlier reveal of this slot must not show
	// through the new bubble.
	clearRect(r.scratch, image.Rect(x, y, x+width, y+height))
	fillRect(r.scratch, image.Rect(x, y, x+width, y+height), bg)

	avatarX := r.style.Padding
	if seg.Side == "right" {
		avatarX = frameW - r.style.Padding - r.style.AvatarSize
	}
	r.drawAvatar(seg.Author, avatarX, y+height-r.style.AvatarSize)

	ty := y + r.style.Padding + r.style.FontSize
	for _, line := range block.Lines {
		r.drawText(line, x+r.style.Padding, ty, r.pal.bubbleText)
		ty += r.style.FontSize + r.style.LineGap
	}
}

func (r *Renderer) bubbleWidth(block layout.Block) int {
	widest := 0
	for _, line := range block.Lines {
		if w := layout.MeasureWidth(line, r.style.Face); w > widest {
			widest = w
		}
	}
	return widest + 2*r.style.Padding
}

// renderCard draws a single post/comment card horizontally centered and
// sized from the wrapped body text.
func (r *Renderer) renderCard(seg types.Segment) {
	clear(r.scratch.Pix)
	r.lastPage = -1

	block := layout.Wrap(seg.Text, r.style.MaxTextWidth, r.style.Face, r.style.FontSize, r.style.LineGap)

	headerH := r.style.AvatarSize + r.style.Padding
	footerH := r.style.FontSize + r.style.Padding
	cardW := r.style.MaxTextWidth + 2*r.style.Padding
	cardH := headerH + block.HeightPx + footerH + 2*r.style.Padding

	frame := r.scratch.Bounds()
	x := (frame.Dx() - cardW) / 2
	y := (frame.Dy() - cardH) / 2
	fillRect(r.scratch, image.Rect(x, y, x+cardW, y+cardH), r.pal.cardBg)

	r.drawAvatar(seg.Author, x+r.style.Padding, y+r.style.Padding)

	metaX := x + r.style.Padding + r.style.AvatarSize + r.style.Padding
	metaY := y + r.style.Padding + r.style.FontSize
	r.drawText(seg.Author, metaX, metaY, r.pal.text)

	tsX := metaX + layout.MeasureWidth(seg.Author, r.style.Face) + r.style.Padding
	r.drawText(relativeAge(seg.Index), tsX, metaY, r.pal.meta)
	if seg.IsOriginalPoster {
		opX := tsX + layout.MeasureWidth(relativeAge(seg.Index), r.style.Face) + r.style.Padding
		r.drawText("OP", opX, metaY, r.pal.badge)
	}

	ty := y + r.style.Padding + headerH + r.style.FontSize
	for _, line := range block.Lines {
		r.drawText(line, x+r.style.Padding, ty, r.pal.text)
		ty += r.style.FontSize + r.style.LineGap
	}

	likes, comments := r.countersFor(seg.Index)
	footer := fmt.Sprintf("%d likes   %d comments", likes, comments)
	r.drawText(footer, x+r.style.Padding, y+cardH-r.style.Padding, r.pal.meta)
}

// countersFor returns stable cosmetic engagement numbers for a segment.
// They are display dressing, not statistics.
func (r *Renderer) countersFor(index int) (int, int) {
	if c, ok := r.counters[index]; ok {
		return c[0], c[1]
	}
	c := [2]int{r.rng.Intn(9000) + 100, r.rng.Intn(900) + 10}
	r.counters[index] = c
	return c[0], c[1]
}

func (r *Renderer) drawAvatar(author string, x, y int) {
	// Avatar files are keyed by lowercased name; authors keep their
	// original casing in the script.
	src, ok := r.avatars[strings.ToLower(author)]
	if !ok || src == nil {
		return
	}

	size := r.style.AvatarSize
	sb := src.Bounds()
	for dy := 0; dy < size; dy++ {
		for dx := 0; dx < size; dx++ {
			sx := sb.Min.X + dx*sb.Dx()/size
			sy := sb.Min.Y + dy*sb.Dy()/size
			r.scratch.Set(x+dx, y+dy, src.At(sx, sy))
		}
	}
}

func (r *Renderer) drawText(s string, x, y int, c color.RGBA) {
	d := &font.Drawer{
		Dst:  r.scratch,
		Src:  image.NewUniform(c),
		Face: r.style.Face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

func relativeAge(index int) string {
	// Cosmetic: earlier segments look slightly older.
	return fmt.Sprintf("%dh", 12-index%8)
}

func fillRect(dst *image.RGBA, rect image.Rectangle, c color.RGBA) {
	draw.Draw(dst, rect.Intersect(dst.Bounds()), &image.Uniform{c}, image.Point{}, draw.Src)
}

func clearRect(dst *image.RGBA, rect image.Rectangle) {
	draw.Draw(dst, rect.Intersect(dst.Bounds()), &image.Uniform{color.RGBA{}}, image.Point{}, draw.Src)
}
