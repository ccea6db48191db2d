package capture

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	ffmpegGo "github.com/u2takey/ffmpeg-go"

	"github.com/ZacxDev/story-reel/internal/ffmpeg"
)

// VideoFrameSource pre-extracts background video frames at the capture
// rate and holds their JPEG bytes in memory, so the recording loop never
// touches the disk or the decoder pipeline mid-frame.
type VideoFrameSource struct {
	videoPath string
	fps       int
	width     int
	height    int
	runner    ffmpeg.Runner

	frames [][]byte
}

// NewVideoFrameSource prepares a source for the given background video.
func NewVideoFrameSource(videoPath string, fps, width, height int, runner ffmpeg.Runner) *VideoFrameSource {
	return &VideoFrameSource{
		videoPath: videoPath,
		fps:       fps,
		width:     width,
		height:    height,
		runner:    runner,
	}
}

// Load extracts every frame to a temporary directory and reads the encoded
// bytes into memory. The background loops when shorter than the
// composition, so the whole clip is kept.
func (s *VideoFrameSource) Load() error {
	tempDir, err := os.MkdirTemp("", "capture_frames_")
	if err != nil {
		return errors.Wrap(err, "failed to create frame extraction directory")
	}
	defer os.RemoveAll(tempDir)

	pattern := filepath.Join(tempDir, "frame_%05d.jpg")
	cmd := ffmpegGo.Input(s.videoPath).
		Filter("fps", ffmpegGo.Args{fmt.Sprintf("%d", s.fps)}).
		Filter("scale", ffmpegGo.Args{fmt.Sprintf("%d:%d:force_original_aspect_ratio=increase", s.width, s.height)}).
		Filter("crop", ffmpegGo.Args{fmt.Sprintf("%d:%d", s.width, s.height)}).
		Output(pattern, ffmpegGo.KwArgs{"q:v": 3}).
		OverWriteOutput().
		Compile()

	if err := s.runner.Run(cmd, 2*time.Minute); err != nil {
		return errors.Wrapf(err, "failed to extract frames from %s", s.videoPath)
	}

	paths, err := filepath.Glob(filepath.Join(tempDir, "frame_*.jpg"))
	if err != nil || len(paths) == 0 {
		return fmt.Errorf("no frames extracted from %s", s.videoPath)
	}

	s.frames = make([][]byte, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return errors.Wrapf(err, "failed to read extracted frame %s", p)
		}
		s.frames = append(s.frames, data)
	}
	return nil
}

// FrameAt decodes the background frame for the elapsed time, looping over
// the clip when the composition outlasts it.
func (s *VideoFrameSource) FrameAt(elapsed float64) (image.Image, error) {
	if len(s.frames) == 0 {
		return nil, fmt.Errorf("frame source not loaded")
	}
	idx := int(elapsed*float64(s.fps)) % len(s.frames)
	img, err := jpeg.Decode(bytes.NewReader(s.frames[idx]))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode background frame %d", idx)
	}
	return img, nil
}
