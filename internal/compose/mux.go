package compose

import (
	"context"
	"fmt"
	"log"
	"math"
	"os"

	ffmpegGo "github.com/u2takey/ffmpeg-go"

	"github.com/ZacxDev/story-reel/internal/ffmpeg"
	"github.com/ZacxDev/story-reel/internal/staging"
)

// MuxCapture finalizes a live-captured recording: the captured video
// already has every overlay burned in, so this stage only re-encodes it
// and lays the narration mix underneath. Timing is trusted from the
// frame clock that drove the capture; audio spacing is rebuilt from the
// same windows, so the two line up without stretching.
func (c *Composer) MuxCapture(ctx context.Context, req Request, capturePath string) (*Output, error) {
	if len(req.Timeline.Windows) == 0 {
		return nil, fmt.Errorf("cannot mux an empty timeline")
	}
	if _, err := os.Stat(capturePath); err != nil {
		return nil, fmt.Errorf("captured recording is not staged")
	}
	for _, w := range req.Timeline.Windows {
		if _, err := os.Stat(c.ws.Path(staging.Filename(staging.RoleNarration, w.SegmentIndex))); err != nil {
			return nil, fmt.Errorf("missing narration audio for segment %d (%s)", w.SegmentIndex, req.Segments[w.SegmentIndex].Author)
		}
	}
	c.report(req, 0.05)

	total := req.Timeline.TotalDuration()
	mainOut := req.OutputPath
	if req.WithTag {
		mainOut = c.ws.Path("pre_tag.mp4")
		c.ws.Record("pre_tag.mp4")
	}

	video := ffmpegGo.Input(capturePath).Filter("setsar", ffmpegGo.Args{"1"})
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
		log.Printf("Muxing capture %s, %.2fs total\n", capturePath, total)
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
