// Package capture drives the real-time rendering loop: a fixed-rate frame
// clock that composites background frames with overlays and feeds them to a
// recorder until the timeline's total duration is reached.
package capture

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"log"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/ZacxDev/story-reel/internal/overlay"
	"github.com/ZacxDev/story-reel/internal/timeline"
	"github.com/ZacxDev/story-reel/pkg/types"
)

// State is the pipeline lifecycle.
type State int32

const (
	StateIdle State = iota
	StateLoadingAssets
	StateRecording
	StateStopping
	StateDone
	StatePaused
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoadingAssets:
		return "loading-assets"
	case StateRecording:
		return "recording"
	case StateStopping:
		return "stopping"
	case StateDone:
		return "done"
	case StatePaused:
		return "paused"
	}
	return "unknown"
}

// ErrInterrupted is returned when recording was interrupted mid-run. A
// paused capture cannot be resumed frame-accurately, so the only way
// forward is a full restart from idle.
var ErrInterrupted = errors.New("recording interrupted")

// FrameSource supplies background frames for a given elapsed time. Load
// must complete before recording starts; FrameAt must not perform I/O so
// frame delivery stays at the target rate.
type FrameSource interface {
	Load() error
	FrameAt(elapsed float64) (image.Image, error)
}

// Recorder consumes composited JPEG frames.
type Recorder interface {
	AddFrame(jpegData []byte) error
	Close() error
}

// Options configures a capture run.
type Options struct {
	FPS         int
	Width       int
	Height      int
	JPEGQuality int
	Verbose     bool
	OnProgress  func(fraction float64)
	// WatchdogWindow bounds how long the pipeline may sit at zero
	// delivered frames before it is declared stuck. Zero disables it.
	WatchdogWindow time.Duration
}

// Pipeline records one composition in real time.
type Pipeline struct {
	opts     Options
	tl       *timeline.Timeline
	segments []types.Segment
	renderer *overlay.Renderer
	source   FrameSource
	recorder Recorder

	state       atomic.Int32
	framesDone  atomic.Int64
	interrupted atomic.Bool
}

// New creates an idle pipeline.
func New(opts Options, tl *timeline.Timeline, segments []types.Segment, renderer *overlay.Renderer, source FrameSource, recorder Recorder) *Pipeline {
	if opts.JPEGQuality <= 0 {
		opts.JPEGQuality = 85
	}
	return &Pipeline{
		opts:     opts,
		tl:       tl,
		segments: segments,
		renderer: renderer,
		source:   source,
		recorder: recorder,
	}
}

// State returns the current lifecycle state.
func (p *Pipeline) State() State {
	return State(p.state.Load())
}

// FramesDone returns the number of frames delivered to the recorder.
func (p *Pipeline) FramesDone() int64 {
	return p.framesDone.Load()
}

// Interrupt marks the run paused, mirroring tab-visibility loss. It only
// takes effect while recording.
func (p *Pipeline) Interrupt() {
	if p.State() == StateRecording {
		p.interrupted.Store(true)
	}
}

// Reset moves a paused pipeline back to idle, discarding all progress.
// Idle is the only state reachable from paused.
func (p *Pipeline) Reset() error {
	if p.State() != StatePaused {
		return fmt.Errorf("cannot reset from state %s", p.State())
	}
	p.interrupted.Store(false)
	p.framesDone.Store(0)
	p.state.Store(int32(StateIdle))
	return nil
}

// Run executes the full capture: load assets, record every frame, close
// the recorder. On interruption the pipeline lands in the paused state and
// the run's partial output is discarded by the caller.
func (p *Pipeline) Run(ctx context.Context) error {
	if p.State() != StateIdle {
		return fmt.Errorf("cannot start recording from state %s", p.State())
	}

	p.state.Store(int32(StateLoadingAssets))
	if err := p.source.Load(); err != nil {
		p.state.Store(int32(StateIdle))
		return errors.Wrap(err, "failed to load capture assets")
	}

	p.state.Store(int32(StateRecording))

	// Every exit must release the recorder, or the partial file keeps an
	// open handle until process exit. Closed at most once; the success
	// path checks the error, failed runs discard their output anyway.
	recorderClosed := false
	closeRecorder := func() error {
		if recorderClosed {
			return nil
		}
		recorderClosed = true
		return p.recorder.Close()
	}
	defer closeRecorder()

	watchdogDone := make(chan struct{})
	defer close(watchdogDone)
	if p.opts.WatchdogWindow > 0 {
		go p.watchdog(watchdogDone)
	}

	total := p.tl.TotalDuration()
	frameCount := int(total * float64(p.opts.FPS))
	frame := image.NewRGBA(image.Rect(0, 0, p.opts.Width, p.opts.Height))
	var buf bytes.Buffer

	for i := 0; i < frameCount; i++ {
		if err := ctx.Err(); err != nil {
			p.state.Store(int32(StatePaused))
			return errors.Wrap(ErrInterrupted, err.Error())
		}
		if p.interrupted.Load() {
			p.state.Store(int32(StatePaused))
			return ErrInterrupted
		}

		elapsed := float64(i) / float64(p.opts.FPS)
		if err := p.renderFrame(frame, elapsed); err != nil {
			p.state.Store(int32(StateIdle))
			return err
		}

		buf.Reset()
		if err := jpeg.Encode(&buf, frame, &jpeg.Options{Quality: p.opts.JPEGQuality}); err != nil {
			p.state.Store(int32(StateIdle))
			return errors.Wrapf(err, "failed to encode frame %d", i)
		}
		if err := p.recorder.AddFrame(buf.Bytes()); err != nil {
			p.state.Store(int32(StateIdle))
			return errors.Wrapf(err, "failed to record frame %d", i)
		}

		p.framesDone.Add(1)
		if p.opts.OnProgress != nil {
			p.opts.OnProgress(float64(i+1) / float64(frameCount))
		}
	}

	p.state.Store(int32(StateStopping))
	if err := closeRecorder(); err != nil {
		p.state.Store(int32(StateIdle))
		return errors.Wrap(err, "failed to finalize recording")
	}

	p.state.Store(int32(StateDone))
	if p.opts.Verbose {
		log.Printf("Recorded %d frames (%.2fs at %d fps)\n", frameCount, total, p.opts.FPS)
	}
	return nil
}

// renderFrame composites one frame: background first, then the overlay for
// whichever segment window contains elapsed.
func (p *Pipeline) renderFrame(dst *image.RGBA, elapsed float64) error {
	bg, err := p.source.FrameAt(elapsed)
	if err != nil {
		return errors.Wrapf(err, "no background frame at %.3fs", elapsed)
	}
	draw.Draw(dst, dst.Bounds(), bg, bg.Bounds().Min, draw.Src)

	active := p.tl.ActiveAt(elapsed)
	if active < 0 {
		return nil
	}
	return p.renderer.Render(dst, p.segments, active)
}

// watchdog interrupts the run if no frame is delivered within the window.
// A liveness guard, not a correctness guarantee.
func (p *Pipeline) watchdog(done <-chan struct{}) {
	select {
	case <-done:
		return
	case <-time.After(p.opts.WatchdogWindow):
		if p.framesDone.Load() == 0 && p.State() == StateRecording {
			log.Printf("Recording stuck at zero frames for %s, forcing restart\n", p.opts.WatchdogWindow)
			p.interrupted.Store(true)
		}
	}
}
