package ffmpeg

import (
	"encoding/json"
	"fmt"
	"log"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// CodecSettings bundles the encoder knobs for one container format.
type CodecSettings struct {
	VideoCodec      string
	AudioCodec      string
	CRF             int
	ContainerFormat string
	FileExtension   string
	OutputArgs      ffmpeg.KwArgs
}

var codecPresets = map[string]CodecSettings{
	"mp4": {
		VideoCodec:      "libx264",
		AudioCodec:      "aac",
		CRF:             23,
		ContainerFormat: "mp4",
		FileExtension:   ".mp4",
		OutputArgs: ffmpeg.KwArgs{
			"preset":    "medium",
			"pix_fmt":   "yuv420p",
			"movflags":  "+faststart",
			"profile:v": "high",
			"level":     "4.1",
			"b:a":       "192k",
			"ar":        "44100",
		},
	},
	"webm": {
		VideoCodec:      "libvpx-vp9",
		AudioCodec:      "libopus",
		CRF:             30,
		ContainerFormat: "webm",
		FileExtension:   ".webm",
		OutputArgs: ffmpeg.KwArgs{
			"row-mt":   1,
			"cpu-used": 2,
		},
	},
}

// GetCodecSettings returns the encoder settings for a container format,
// defaulting to mp4 for best playback compatibility.
func GetCodecSettings(outputFormat string) CodecSettings {
	if settings, ok := codecPresets[outputFormat]; ok {
		return settings
	}
	return codecPresets["mp4"]
}

// MediaInfo contains probed metadata about a media file
type MediaInfo struct {
	Duration float64
	Width    int
	Height   int
	Codec    string
	HasAudio bool
}

// MeasureDuration decodes a media file's metadata and returns its exact
// playable duration in seconds. Timing downstream is sample accurate, so
// the duration always comes from a real decode and never from byte size
// or text length.
func MeasureDuration(path string) (float64, error) {
	info, err := Probe(path)
	if err != nil {
		return 0, err
	}
	return info.Duration, nil
}

// probeTimeout bounds a single metadata probe. A damaged or truncated
// file can make the prober hang on a pipe; nothing legitimate takes
// this long.
const probeTimeout = 30 * time.Second

// runProbe is swapped out in tests.
var runProbe = ffmpeg.ProbeWithTimeout

// Probe retrieves metadata about a media file
func Probe(path string) (*MediaInfo, error) {
	probe, err := runProbe(path, probeTimeout, nil)
	if err != nil {
		return nil, fmt.Errorf("error probing media %s: %v", path, err)
	}

	var data map[string]interface{}
	if err := json.Unmarshal([]byte(probe), &data); err != nil {
		return nil, errors.WithStack(err)
	}

	streams, ok := data["streams"].([]interface{})
	if !ok || len(streams) == 0 {
		return nil, fmt.Errorf("no streams found in %s", path)
	}

	info := &MediaInfo{}
	var firstStream map[string]interface{}
	for _, stream := range streams {
		s := stream.(map[string]interface{})
		switch s["codec_type"].(string) {
		case "video":
			if firstStream == nil {
				firstStream = s
			}
			if w, ok := s["width"].(float64); ok {
				info.Width = int(w)
			}
			if h, ok := s["height"].(float64); ok {
				info.Height = int(h)
			}
			if c, ok := s["codec_name"].(string); ok {
				info.Codec = c
			}
		case "audio":
			info.HasAudio = true
			if firstStream == nil {
				firstStream = s
				if c, ok := s["codec_name"].(string); ok {
					info.Codec = c
				}
			}
		}
	}

	if firstStream == nil {
		return nil, fmt.Errorf("no decodable stream found in %s", path)
	}

	info.Duration = parseDuration(firstStream, data)
	if info.Duration == 0 {
		return nil, fmt.Errorf("could not determine duration of %s", path)
	}

	return info, nil
}

func parseDuration(stream, data map[string]interface{}) float64 {
	if durationStr, ok := stream["duration"].(string); ok {
		if d, err := strconv.ParseFloat(strings.TrimSpace(durationStr), 64); err == nil {
			return d
		}
	}

	// Stream duration missing; fall back to the container format duration
	if format, ok := data["format"].(map[string]interface{}); ok {
		if durationStr, ok := format["duration"].(string); ok {
			if d, err := strconv.ParseFloat(strings.TrimSpace(durationStr), 64); err == nil {
				return d
			}
		}
	}

	return 0
}

// Runner executes compiled transcoder commands with a wall-clock bound.
type Runner interface {
	Run(cmd *exec.Cmd, timeout time.Duration) error
}

// ErrTimeout is returned by Exec when a command exceeds its wall-clock
// bound. Callers translate it into a user-actionable message.
var ErrTimeout = errors.New("transcode exceeded wall-clock timeout")

// Exec runs ffmpeg commands on the local machine.
type Exec struct {
	Verbose bool
}

// Run starts cmd and kills it if it is still running after timeout.
func (e *Exec) Run(cmd *exec.Cmd, timeout time.Duration) error {
	var stderr strings.Builder
	cmd.Stderr = &stderr

	if e.Verbose {
		log.Printf("Running: %s\n", strings.Join(cmd.Args, " "))
	}

	if err := cmd.Start(); err != nil {
		return errors.Wrap(err, "failed to start transcoder")
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("transcoder failed: %v (stderr: %s)", err, tail(stderr.String(), 800))
		}
		return nil
	case <-time.After(timeout):
		cmd.Process.Kill()
		<-done
		return ErrTimeout
	}
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
