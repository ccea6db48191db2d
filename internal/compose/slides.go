package compose

import (
	"context"
	"fmt"
	"math"
	"os"

	ffmpegGo "github.com/u2takey/ffmpeg-go"

	"github.com/ZacxDev/story-reel/internal/config"
	"github.com/ZacxDev/story-reel/internal/ffmpeg"
	"github.com/ZacxDev/story-reel/internal/staging"
	"github.com/ZacxDev/story-reel/pkg/types"
)

// ComposeSlides builds the narrative variant: one Ken Burns clip per
// segment from its staged still image, joined by a hard cut or a
// crossfade, with narration and music mixed exactly as in Compose. Each
// clip is a discrete transcoder invocation; the concatenation stage
// depends on the files the clip stage wrote.
func (c *Composer) ComposeSlides(ctx context.Context, req Request) (*Output, error) {
	windows := req.Timeline.Windows
	if len(windows) == 0 {
		return nil, fmt.Errorf("cannot compose an empty timeline")
	}

	durations := make([]float64, len(windows))
	for i, w := range windows {
		durations[i] = w.AudioEnd - w.AudioStart + config.InterSegmentGap
		if i == len(windows)-1 {
			durations[i] = w.AudioEnd - w.AudioStart + w.ExtraTail
		} else if req.Transition == types.TransitionCrossfade {
			// Each xfade join consumes one transition of footage from the
			// outgoing clip, so non-last clips carry that much extra.
			// The visible advance per slide then stays equal to the
			// narration spacing and audio never drifts ahead of video.
			durations[i] += config.TransitionDuration
		}

		still := c.ws.Path(staging.Filename(staging.RoleOverlay, w.SegmentIndex))
		if _, err := os.Stat(still); err != nil {
			return nil, fmt.Errorf("missing still image for segment %d (%s)", w.SegmentIndex, req.Segments[w.SegmentIndex].Author)
		}
		if _, err := os.Stat(c.ws.Path(staging.Filename(staging.RoleNarration, w.SegmentIndex))); err != nil {
			return nil, fmt.Errorf("missing narration audio for segment %d (%s)", w.SegmentIndex, req.Segments[w.SegmentIndex].Author)
		}

		if err := c.renderSlide(ctx, still, i, durations[i]); err != nil {
			return nil, err
		}
		c.report(req, 0.05+0.4*float64(i+1)/float64(len(windows)))
	}

	video := c.joinSlides(durations, req.Transition)
	audio := c.narrationStream(req)

	settings := ffmpeg.GetCodecSettings("mp4")
	outputArgs := ffmpegGo.KwArgs{
		"c:v": settings.VideoCodec,
		"c:a": settings.AudioCodec,
		"crf": settings.CRF,
	}
	for k, v := range settings.OutputArgs {
		outputArgs[k] = v
	}

	cmd := ffmpegGo.Output([]*ffmpegGo.Stream{video, audio}, req.OutputPath, outputArgs).
		OverWriteOutput().
		Compile()
	if err := c.run(ctx, cmd); err != nil {
		return nil, err
	}
	c.report(req, 0.95)

	out, err := c.measureOutput(req.OutputPath)
	if err != nil {
		return nil, err
	}
	c.report(req, 1.0)
	return out, nil
}

// renderSlide encodes one still image into a Ken Burns clip of the given
// duration.
func (c *Composer) renderSlide(ctx context.Context, still string, index int, duration float64) error {
	name := fmt.Sprintf("slide_%03d.mp4", index)
	c.ws.Record(name)

	frames := int(math.Ceil(duration * config.CaptureFPS))
	cmd := ffmpegGo.Input(still, ffmpegGo.KwArgs{"loop": 1, "t": fmt.Sprintf("%.3f", duration)}).
		Filter("scale", ffmpegGo.Args{"4000:-1"}).
		Filter("zoompan", ffmpegGo.Args{
			"z='min(zoom+0.0008,1.25)'",
			fmt.Sprintf("d=%d", frames),
			"x='iw/2-(iw/zoom/2)'",
			"y='ih/2-(ih/zoom/2)'",
			fmt.Sprintf("s=%dx%d", config.OutputWidth, config.OutputHeight),
			fmt.Sprintf("fps=%d", config.CaptureFPS),
		}).
		Output(c.ws.Path(name), ffmpegGo.KwArgs{
			"c:v":     "libx264",
			"preset":  "fast",
			"pix_fmt": "yuv420p",
			"t":       fmt.Sprintf("%.3f", duration),
		}).
		OverWriteOutput().
		Compile()

	return c.run(ctx, cmd)
}

// joinSlides concatenates the rendered clips, either hard-cut or blended
// with xfade. Crossfades shorten the total by one transition per join, so
// each xfade offset is the accumulated duration minus the overlap; with
// the extra footage non-last clips carry, every offset lands exactly on
// the next segment's narration start.
func (c *Composer) joinSlides(durations []float64, transition types.TransitionStyle) *ffmpegGo.Stream {
	clips := make([]*ffmpegGo.Stream, len(durations))
	for i := range durations {
		clips[i] = ffmpegGo.Input(c.ws.Path(fmt.Sprintf("slide_%03d.mp4", i)))
	}

	if len(clips) == 1 {
		return clips[0]
	}
	if transition != types.TransitionCrossfade {
		return ffmpegGo.Concat(clips)
	}

	out := clips[0]
	cum := durations[0]
	for i := 1; i < len(clips); i++ {
		out = ffmpegGo.Filter([]*ffmpegGo.Stream{out, clips[i]}, "xfade", ffmpegGo.Args{},
			ffmpegGo.KwArgs{
				"transition": "fade",
				"duration":   fmt.Sprintf("%.3f", config.TransitionDuration),
				"offset":     fmt.Sprintf("%.3f", cum-config.TransitionDuration),
			})
		cum += durations[i] - config.TransitionDuration
	}
	return out
}
