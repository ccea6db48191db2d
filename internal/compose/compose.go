// Package compose assembles the offline rendering path: a filter-graph
// handed to the transcoding engine that scales the background, overlays
// each segment's still image inside its timeline window, concatenates the
// narration tracks, and mixes in looped background music.
package compose

import (
	"context"
	"fmt"
	"log"
	"math"
	"os"
	"os/exec"
	"time"

	"github.com/pkg/errors"
	ffmpegGo "github.com/u2takey/ffmpeg-go"

	"github.com/ZacxDev/story-reel/internal/config"
	"github.com/ZacxDev/story-reel/internal/ffmpeg"
	"github.com/ZacxDev/story-reel/internal/staging"
	"github.com/ZacxDev/story-reel/internal/timeline"
	"github.com/ZacxDev/story-reel/pkg/types"
)

// Output is the authoritative result of a composition. Duration is
// measured from the produced file, never taken from the request.
type Output struct {
	Path            string
	DurationSeconds float64
	SizeBytes       int64
}

// Request describes one offline composition.
type Request struct {
	Timeline   *timeline.Timeline
	Segments   []types.Segment
	Transition types.TransitionStyle
	HasMusic   bool
	WithTag    bool
	OutputPath string
	OnProgress func(fraction float64)
}

// Composer runs filter-graph compositions against a staged workspace.
type Composer struct {
	ws      *staging.Workspace
	runner  ffmpeg.Runner
	timeout time.Duration
	verbose bool

	// measure is swapped for a fake in tests; production measures the
	// produced file with a real decode.
	measure func(path string) (float64, error)
}

// NewComposer creates a composer over an already-staged workspace.
func NewComposer(ws *staging.Workspace, runner ffmpeg.Runner, verbose bool) *Composer {
	return &Composer{
		ws:      ws,
		runner:  runner,
		timeout: config.ComposeTimeoutSeconds * time.Second,
		verbose: verbose,
		measure: ffmpeg.MeasureDuration,
	}
}

// SetProbe overrides how produced files are measured.
func (c *Composer) SetProbe(fn func(path string) (float64, error)) {
	if fn != nil {
		c.measure = fn
	}
}

// Compose runs the full multi-stage composition. Any missing staged asset
// aborts the run with a segment-identifying error; desync is worse than
// failing loudly.
func (c *Composer) Compose(ctx context.Context, req Request) (*Output, error) {
	if len(req.Timeline.Windows) == 0 {
		return nil, fmt.Errorf("cannot compose an empty timeline")
	}
	if err := c.checkStagedAssets(req); err != nil {
		return nil, err
	}
	c.report(req, 0.05)

	total := req.Timeline.TotalDuration()
	mainOut := req.OutputPath
	if req.WithTag {
		mainOut = c.ws.Path("pre_tag.mp4")
		c.ws.Record("pre_tag.mp4")
	}

	video := c.backgroundStream(total)
	video = c.attachOverlays(video, req.Timeline)
	audio := c.narrationStream(req)

	settings := ffmpeg.GetCodecSettings("mp4")
	outputArgs := ffmpegGo.KwArgs{
		"c:v": settings.VideoCodec,
		"c:a": settings.AudioCodec,
		"crf": settings.CRF,
		"t":   int(math.Ceil(total)),
	}
	for k, v := range settings.OutputArgs {
		outputArgs[k] = v
	}

	cmd := ffmpegGo.Output([]*ffmpegGo.Stream{video, audio}, mainOut, outputArgs).
		OverWriteOutput().
		Compile()

	if c.verbose {
		log.Printf("Composing %d segments, %.2fs total\n", len(req.Segments), total)
	}
	if err := c.run(ctx, cmd); err != nil {
		return nil, err
	}
	c.report(req, 0.8)

	if req.WithTag {
		if err := c.applySubscribeTag(ctx, mainOut, req.OutputPath, total); err != nil {
			return nil, err
		}
	}
	c.report(req, 0.95)

	out, err := c.measureOutput(req.OutputPath)
	if err != nil {
		return nil, err
	}
	c.report(req, 1.0)
	return out, nil
}

// checkStagedAssets verifies every virtual file the graph will reference
// exists before any transcoder time is spent.
func (c *Composer) checkStagedAssets(req Request) error {
	if _, err := os.Stat(c.ws.Path(staging.Filename(staging.RoleBackground, 0))); err != nil {
		return fmt.Errorf("background video is not staged")
	}
	for _, w := range req.Timeline.Windows {
		i := w.SegmentIndex
		if _, err := os.Stat(c.ws.Path(staging.Filename(staging.RoleOverlay, i))); err != nil {
			return fmt.Errorf("missing overlay image for segment %d (%s)", i, req.Segments[i].Author)
		}
		if _, err := os.Stat(c.ws.Path(staging.Filename(staging.RoleNarration, i))); err != nil {
			return fmt.Errorf("missing narration audio for segment %d (%s)", i, req.Segments[i].Author)
		}
	}
	if req.HasMusic {
		if _, err := os.Stat(c.ws.Path(staging.Filename(staging.RoleMusic, 0))); err != nil {
			return fmt.Errorf("background music is not staged")
		}
	}
	if req.WithTag {
		for _, name := range []string{staging.Filename(staging.RoleTag, 0), staging.Filename(staging.RoleTagSound, 0)} {
			if _, err := os.Stat(c.ws.Path(name)); err != nil {
				return fmt.Errorf("subscribe tag asset %s is not staged", name)
			}
		}
	}
	return nil
}

// backgroundStream loops the background video for the whole composition
// and scales it into the target vertical frame.
func (c *Composer) backgroundStream(total float64) *ffmpegGo.Stream {
	return ffmpegGo.Input(c.ws.Path(staging.Filename(staging.RoleBackground, 0)), ffmpegGo.KwArgs{
		"stream_loop": -1,
		"t":           int(math.Ceil(total)),
	}).
		Filter("scale", ffmpegGo.Args{
			fmt.Sprintf("%d:%d:force_original_aspect_ratio=increase", config.OutputWidth, config.OutputHeight),
		}).
		Filter("crop", ffmpegGo.Args{
			fmt.Sprintf("%d:%d", config.OutputWidth, config.OutputHeight),
		}).
		Filter("setsar", ffmpegGo.Args{"1"})
}

// attachOverlays layers each segment's overlay image, enabled only inside
// its window plus a small trailing pad so it does not pop off one frame
// early.
func (c *Composer) attachOverlays(video *ffmpegGo.Stream, tl *timeline.Timeline) *ffmpegGo.Stream {
	for _, w := range tl.Windows {
		img := ffmpegGo.Input(c.ws.Path(staging.Filename(staging.RoleOverlay, w.SegmentIndex)))
		video = video.Overlay(img, "", ffmpegGo.KwArgs{
			"x": "(W-w)/2",
			"y": "(H-h)/2",
			"enable": fmt.Sprintf("between(t,%.3f,%.3f)",
				w.VideoStart, w.VideoEnd+config.OverlayTrailingPad),
		})
	}
	return video
}

// narrationStream concatenates the per-segment narration tracks in strict
// index order, padding each with the silence its window demands before
// the next one starts, then mixes in looped background music at reduced
// volume. The pad comes from the windows themselves so the audio spacing
// matches whichever cursor built the timeline.
func (c *Composer) narrationStream(req Request) *ffmpegGo.Stream {
	windows := req.Timeline.Windows
	tracks := make([]*ffmpegGo.Stream, 0, len(windows))
	for i, w := range windows {
		track := ffmpegGo.Input(c.ws.Path(staging.Filename(staging.RoleNarration, w.SegmentIndex)))
		if i < len(windows)-1 {
			if pad := windows[i+1].AudioStart - w.AudioEnd; pad > 0 {
				track = track.Filter("apad", ffmpegGo.Args{
					fmt.Sprintf("pad_dur=%.3f", pad),
				})
			}
		}
		tracks = append(tracks, track)
	}

	narration := tracks[0]
	if len(tracks) > 1 {
		narration = ffmpegGo.Concat(tracks, ffmpegGo.KwArgs{"v": 0, "a": 1})
	}

	if !req.HasMusic {
		return narration
	}

	music := ffmpegGo.Input(c.ws.Path(staging.Filename(staging.RoleMusic, 0)), ffmpegGo.KwArgs{
		"stream_loop": -1,
	}).Filter("volume", ffmpegGo.Args{fmt.Sprintf("%.2f", config.MusicVolume)})

	// Longest input wins; the output's -t bound keeps the looped music
	// from running forever.
	return ffmpegGo.Filter([]*ffmpegGo.Stream{narration, music}, "amix", ffmpegGo.Args{},
		ffmpegGo.KwArgs{"inputs": 2, "duration": "longest", "dropout_transition": 2})
}

// applySubscribeTag overlays the fixed-duration subscribe image and mixes
// its click sound, timed to end shortly before the composition does.
func (c *Composer) applySubscribeTag(ctx context.Context, inPath, outPath string, total float64) error {
	tagStart := total - config.TagEndOffset - config.TagDuration
	if tagStart < 0 {
		tagStart = 0
	}

	base := ffmpegGo.Input(inPath)
	tag := ffmpegGo.Input(c.ws.Path(staging.Filename(staging.RoleTag, 0)))
	video := base.Overlay(tag, "", ffmpegGo.KwArgs{
		"x":      "(W-w)/2",
		"y":      "H-h-80",
		"enable": fmt.Sprintf("between(t,%.3f,%.3f)", tagStart, tagStart+config.TagDuration),
	})

	click := ffmpegGo.Input(c.ws.Path(staging.Filename(staging.RoleTagSound, 0))).
		Filter("adelay", ffmpegGo.Args{fmt.Sprintf("%d|%d", int(tagStart*1000), int(tagStart*1000))})
	audio := ffmpegGo.Filter([]*ffmpegGo.Stream{base.Audio(), click}, "amix", ffmpegGo.Args{},
		ffmpegGo.KwArgs{"inputs": 2, "duration": "first"})

	settings := ffmpeg.GetCodecSettings("mp4")
	cmd := ffmpegGo.Output([]*ffmpegGo.Stream{video, audio}, outPath, ffmpegGo.KwArgs{
		"c:v":      settings.VideoCodec,
		"c:a":      settings.AudioCodec,
		"crf":      settings.CRF,
		"pix_fmt":  "yuv420p",
		"movflags": "+faststart",
	}).OverWriteOutput().Compile()

	return c.run(ctx, cmd)
}

func (c *Composer) run(ctx context.Context, cmd *exec.Cmd) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "composition cancelled")
	}
	return c.runner.Run(cmd, c.timeout)
}

func (c *Composer) report(req Request, fraction float64) {
	if req.OnProgress != nil {
		req.OnProgress(fraction)
	}
}

// measureOutput probes the finished file for its real duration and size.
func (c *Composer) measureOutput(path string) (*Output, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrap(err, "composition produced no output file")
	}
	duration, err := c.measure(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to measure produced duration")
	}
	return &Output{
		Path:            path,
		DurationSeconds: duration,
		SizeBytes:       info.Size(),
	}, nil
}
