// Package timeline derives deterministic start/end windows for narration
// segments and their visual overlays from measured audio durations.
package timeline

import (
	"fmt"

	"github.com/ZacxDev/story-reel/pkg/types"
)

// Window is the interval during which one segment's overlay is the active
// visual content. Video intervals are half-open: [VideoStart, VideoEnd).
type Window struct {
	SegmentIndex int
	AudioStart   float64
	AudioEnd     float64
	VideoStart   float64
	VideoEnd     float64

	// Transition is the visual crossfade carried by this window, zero on
	// the last segment.
	Transition float64

	// ExtraTail is the trailing extension carried by the last window only,
	// so closing overlay/tag content has room to display.
	ExtraTail float64
}

// CursorMode selects how the running cursor advances between segments. The
// live loop models visual crossfade time, the offline graph models simple
// audio pacing with silence padding, so the two intentionally differ.
type CursorMode int

const (
	// CursorLive advances to the previous window's video end, making
	// consecutive windows contiguous.
	CursorLive CursorMode = iota

	// CursorOffline advances to the previous audio end plus a fixed
	// inter-segment gap of silence.
	CursorOffline
)

// Options configures window derivation.
type Options struct {
	TransitionDuration float64
	TailExtension      float64
	InterSegmentGap    float64
	Mode               CursorMode
}

// Timeline is the derived schedule for one generation run.
type Timeline struct {
	Windows []Window
}

// Build derives one window per segment. Durations must be real decoded
// audio durations, keyed by segment index.
func Build(segments []types.Segment, durations []float64, opts Options) (*Timeline, error) {
	if len(segments) == 0 {
		return nil, fmt.Errorf("cannot build a timeline from zero segments")
	}
	if len(durations) != len(segments) {
		return nil, fmt.Errorf("got %d durations for %d segments", len(durations), len(segments))
	}
	for i, d := range durations {
		if d <= 0 {
			return nil, fmt.Errorf("segment %d has non-positive duration %f", i, d)
		}
	}

	windows := make([]Window, 0, len(segments))
	t := 0.0

	for i := range segments {
		last := i == len(segments)-1

		w := Window{
			SegmentIndex: i,
			AudioStart:   t,
			AudioEnd:     t + durations[i],
			VideoStart:   t,
		}
		if last {
			w.ExtraTail = opts.TailExtension
		} else {
			w.Transition = opts.TransitionDuration
		}
		w.VideoEnd = w.AudioEnd + w.Transition + w.ExtraTail
		windows = append(windows, w)

		switch opts.Mode {
		case CursorOffline:
			t = w.AudioEnd + opts.InterSegmentGap
		default:
			t = w.VideoEnd
		}
	}

	return &Timeline{Windows: windows}, nil
}

// TotalDuration is the composition length: the last window's video end.
func (tl *Timeline) TotalDuration() float64 {
	if len(tl.Windows) == 0 {
		return 0
	}
	return tl.Windows[len(tl.Windows)-1].VideoEnd
}

// ActiveAt resolves which segment is visible at time t. Windows are upper
// exclusive, so a t falling exactly on a boundary belongs to the later
// segment. Returns -1 when t is outside the composition.
func (tl *Timeline) ActiveAt(t float64) int {
	// Walk back to front so that when offline-mode windows overlap on a
	// boundary, the later segment wins.
	for i := len(tl.Windows) - 1; i >= 0; i-- {
		w := tl.Windows[i]
		if t >= w.VideoStart && t < w.VideoEnd {
			return w.SegmentIndex
		}
	}
	return -1
}

// EstimateSeconds is a cheap text-length heuristic used only for an early
// soft-cap warning in the UI. It is non-authoritative: final timing always
// comes from decoded audio durations.
func EstimateSeconds(segments []types.Segment, charsPerSecond float64) float64 {
	total := 0.0
	for _, s := range segments {
		total += float64(len(s.Text)) / charsPerSecond
	}
	return total
}
