// Package generator orchestrates one end-to-end run: validate the input,
// stage session assets, synthesize narration, derive the timeline, then
// hand off to whichever rendering pipeline the run calls for. Every exit
// path tears the staged workspace down.
package generator

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/opentype"
	"golang.org/x/sync/errgroup"

	"github.com/ZacxDev/story-reel/internal/capture"
	"github.com/ZacxDev/story-reel/internal/compose"
	"github.com/ZacxDev/story-reel/internal/config"
	"github.com/ZacxDev/story-reel/internal/ffmpeg"
	"github.com/ZacxDev/story-reel/internal/overlay"
	"github.com/ZacxDev/story-reel/internal/progress"
	"github.com/ZacxDev/story-reel/internal/provider"
	"github.com/ZacxDev/story-reel/internal/source"
	"github.com/ZacxDev/story-reel/internal/staging"
	"github.com/ZacxDev/story-reel/internal/timeline"
	"github.com/ZacxDev/story-reel/pkg/types"
)

// Concurrency bounds for provider calls during staging and synthesis.
const (
	synthesisWorkers = 4
	imageWorkers     = 3
)

// Session runs one generation. It owns the staged workspace for the
// duration of Generate and nothing else; providers and the tracker are
// borrowed from the caller.
type Session struct {
	opts    config.GenerateOptions
	synth   provider.Synthesizer
	images  provider.ImageGenerator
	runner  ffmpeg.Runner
	tracker *progress.Tracker

	// measure is swapped for a fake in tests.
	measure func(path string) (float64, error)
}

// NewSession creates a session over the given options and providers.
func NewSession(opts config.GenerateOptions, synth provider.Synthesizer, tracker *progress.Tracker) *Session {
	return &Session{
		opts:    opts,
		synth:   synth,
		images:  provider.NewPollinationsImageGenerator(config.OutputWidth, config.OutputHeight),
		runner:  &ffmpeg.Exec{Verbose: opts.Verbose},
		tracker: tracker,
		measure: ffmpeg.MeasureDuration,
	}
}

// Generate runs the whole pipeline for a built script and returns the
// measured output. Validation runs before any staging or provider call so
// a doomed run costs nothing.
func (s *Session) Generate(ctx context.Context, script *source.Script) (*compose.Output, error) {
	if err := s.validate(script); err != nil {
		return nil, err
	}
	s.report(progress.PhasePreparing, 5)

	ws, err := staging.NewWorkspace(config.StagingDirPrefix)
	if err != nil {
		return nil, wrapf(CodeAssetUnavailable, err, "could not create staging workspace")
	}
	defer func() {
		if cerr := ws.Cleanup(); cerr != nil {
			log.Printf("Warning: staging cleanup left files behind: %v\n", cerr)
		}
	}()

	slides := script.ImagePrompts != nil
	if err := s.stageAssets(ctx, ws, script, slides); err != nil {
		return nil, err
	}
	s.report(progress.PhasePreparing, 100)

	durations, err := s.synthesizeNarration(ctx, ws, script.Segments)
	if err != nil {
		return nil, err
	}
	s.report(progress.PhaseAudio, 100)

	tl, err := s.buildTimeline(script.Segments, durations, slides)
	if err != nil {
		return nil, failf(CodeConfigurationInvalid, "could not derive timeline: %v", err)
	}

	composer := compose.NewComposer(ws, s.runner, s.opts.Verbose)
	composer.SetProbe(s.measure)
	req := compose.Request{
		Timeline:   tl,
		Segments:   script.Segments,
		Transition: s.opts.Transition,
		HasMusic:   s.opts.MusicPath != "",
		WithTag:    s.opts.WithTag,
		OutputPath: s.opts.OutputPath,
		OnProgress: func(fraction float64) {
			s.report(progress.PhaseVideo, fraction*100)
		},
	}

	var out *compose.Output
	switch {
	case slides:
		out, err = composer.ComposeSlides(ctx, req)
	case s.opts.Mode == types.PipelineLive:
		out, err = s.runLivePipeline(ctx, ws, composer, req, script.Segments, tl)
	default:
		if err := s.stageOverlays(ws, script.Segments); err != nil {
			return nil, err
		}
		out, err = composer.Compose(ctx, req)
	}
	if err != nil {
		return nil, s.classify(err)
	}

	s.report(progress.PhaseFinalizing, 100)
	if s.opts.Verbose {
		log.Printf("Generated %s: %.2fs, %d bytes\n", out.Path, out.DurationSeconds, out.SizeBytes)
	}
	return out, nil
}

// validate rejects impossible runs before any network or disk work.
func (s *Session) validate(script *source.Script) error {
	if script == nil || len(script.Segments) == 0 {
		return failf(CodeConfigurationInvalid, "nothing to narrate: the source produced no usable segments")
	}
	if s.opts.OutputPath == "" {
		return failf(CodeConfigurationInvalid, "no output path configured")
	}
	for _, seg := range script.Segments {
		if strings.TrimSpace(seg.Text) == "" {
			return failf(CodeConfigurationInvalid, "segment %d has no text to narrate", seg.Index)
		}
		if seg.VoiceID == "" {
			return failf(CodeConfigurationInvalid, "segment %d has no synthesis voice assigned", seg.Index)
		}
	}

	slides := script.ImagePrompts != nil
	if !slides && s.opts.BackgroundPath == "" {
		return failf(CodeConfigurationInvalid, "this source requires a background video (--background)")
	}
	if s.opts.WithTag && (s.opts.TagImagePath == "" || s.opts.TagSoundPath == "") {
		return failf(CodeConfigurationInvalid, "subscribe tag requires both a tag image and a click sound")
	}

	if est := timeline.EstimateSeconds(script.Segments, config.HeuristicCharsSec); est > config.SoftCapSeconds {
		log.Printf("Warning: estimated length %.0fs exceeds the %.0fs target; consider fewer comments\n",
			est, float64(config.SoftCapSeconds))
	}
	return nil
}

// stageAssets copies or fetches every non-narration input into the
// workspace under its agreed name.
func (s *Session) stageAssets(ctx context.Context, ws *staging.Workspace, script *source.Script, slides bool) error {
	stageLocal := func(role staging.Role, src, what string) error {
		if src == "" {
			return nil
		}
		if err := ws.StageFile(staging.Filename(role, 0), src); err != nil {
			return wrapf(CodeAssetUnavailable, err, "could not load %s from %s", what, src)
		}
		return nil
	}

	if !slides {
		if err := stageLocal(staging.RoleBackground, s.opts.BackgroundPath, "background video"); err != nil {
			return err
		}
	}
	if err := stageLocal(staging.RoleMusic, s.opts.MusicPath, "background music"); err != nil {
		return err
	}
	if err := stageLocal(staging.RoleFont, s.opts.FontPath, "overlay font"); err != nil {
		return err
	}
	if s.opts.WithTag {
		if err := stageLocal(staging.RoleTag, s.opts.TagImagePath, "subscribe tag image"); err != nil {
			return err
		}
		if err := stageLocal(staging.RoleTagSound, s.opts.TagSoundPath, "subscribe tag sound"); err != nil {
			return err
		}
	}

	if !slides {
		return nil
	}

	// Slide stills come from the image provider, bounded like synthesis
	// so a slow endpoint cannot serialize the whole stage.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(imageWorkers)
	var done atomic.Int64
	total := len(script.ImagePrompts)
	for i, prompt := range script.ImagePrompts {
		i, prompt := i, prompt
		g.Go(func() error {
			url, err := s.images.GenerateImage(gctx, prompt)
			if err != nil {
				return wrapf(CodeAssetUnavailable, err, "could not generate still for segment %d", i)
			}
			if err := ws.Fetch(staging.Filename(staging.RoleOverlay, i), url); err != nil {
				return wrapf(CodeAssetUnavailable, err, "could not fetch still for segment %d", i)
			}
			s.report(progress.PhasePreparing, 5+90*float64(done.Add(1))/float64(total))
			return nil
		})
	}
	return g.Wait()
}

// synthesizeNarration runs the TTS batch, stages each track under its
// narration name, and returns the real decoded duration per segment.
// Results are keyed by index so concurrency cannot reorder them.
func (s *Session) synthesizeNarration(ctx context.Context, ws *staging.Workspace, segments []types.Segment) ([]float64, error) {
	durations := make([]float64, len(segments))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(synthesisWorkers)
	var done atomic.Int64
	for i := range segments {
		i := i
		g.Go(func() error {
			seg := segments[i]
			audio, err := s.synth.Synthesize(gctx, seg.Text, seg.VoiceID)
			if err != nil {
				return wrapf(CodeSynthesisFailure, err, "narration failed for segment %d (%s)", i, seg.Author)
			}

			name := staging.Filename(staging.RoleNarration, i)
			if err := ws.Stage(name, audio); err != nil {
				return wrapf(CodeAssetUnavailable, err, "could not stage narration for segment %d", i)
			}

			d, err := s.measure(ws.Path(name))
			if err != nil {
				return wrapf(CodeDecodeFailure, err, "could not decode narration audio for segment %d (%s)", i, seg.Author)
			}
			if d <= 0 {
				return failf(CodeDecodeFailure, "narration audio for segment %d decoded to zero duration", i)
			}
			durations[i] = d
			s.report(progress.PhaseAudio, 100*float64(done.Add(1))/float64(len(segments)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return durations, nil
}

// buildTimeline derives windows with the cursor the chosen pipeline needs.
func (s *Session) buildTimeline(segments []types.Segment, durations []float64, slides bool) (*timeline.Timeline, error) {
	opts := timeline.Options{
		TransitionDuration: config.TransitionDuration,
		TailExtension:      config.TailExtension,
		InterSegmentGap:    config.InterSegmentGap,
		Mode:               timeline.CursorOffline,
	}
	if s.opts.Mode == types.PipelineLive && !slides {
		opts.Mode = timeline.CursorLive
	}
	if s.opts.Transition == types.TransitionCut {
		opts.TransitionDuration = 0
	}
	return timeline.Build(segments, durations, opts)
}

// stageOverlays renders one full-frame transparent still per segment for
// the offline overlay graph. Rendering runs in segment order because chat
// pages accumulate.
func (s *Session) stageOverlays(ws *staging.Workspace, segments []types.Segment) error {
	renderer, err := s.newRenderer(ws)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	for i := range segments {
		frame := image.NewRGBA(image.Rect(0, 0, config.OutputWidth, config.OutputHeight))
		if err := renderer.Render(frame, segments, i); err != nil {
			return failf(CodeConfigurationInvalid, "could not render overlay for segment %d: %v", i, err)
		}
		buf.Reset()
		if err := png.Encode(&buf, frame); err != nil {
			return wrapf(CodeAssetUnavailable, err, "could not encode overlay for segment %d", i)
		}
		if err := ws.Stage(staging.Filename(staging.RoleOverlay, i), buf.Bytes()); err != nil {
			return wrapf(CodeAssetUnavailable, err, "could not stage overlay for segment %d", i)
		}
	}
	return nil
}

// runLivePipeline records the composition in real time against the staged
// background, then muxes narration under the captured video.
func (s *Session) runLivePipeline(ctx context.Context, ws *staging.Workspace, composer *compose.Composer, req compose.Request, segments []types.Segment, tl *timeline.Timeline) (*compose.Output, error) {
	renderer, err := s.newRenderer(ws)
	if err != nil {
		return nil, err
	}

	src := capture.NewVideoFrameSource(
		ws.Path(staging.Filename(staging.RoleBackground, 0)),
		config.CaptureFPS, config.OutputWidth, config.OutputHeight, s.runner)

	const captureName = "capture.avi"
	ws.Record(captureName)
	recorder, err := capture.NewMJPEGRecorder(ws.Path(captureName), config.OutputWidth, config.OutputHeight, config.CaptureFPS)
	if err != nil {
		return nil, wrapf(CodeAssetUnavailable, err, "could not open capture recorder")
	}

	pipeline := capture.New(capture.Options{
		FPS:            config.CaptureFPS,
		Width:          config.OutputWidth,
		Height:         config.OutputHeight,
		JPEGQuality:    90,
		Verbose:        s.opts.Verbose,
		WatchdogWindow: 2 * time.Second,
		OnProgress: func(fraction float64) {
			// Capture owns the first half of the video phase; the mux
			// owns the rest.
			s.report(progress.PhaseVideo, fraction*50)
		},
	}, tl, segments, renderer, src, recorder)

	if err := pipeline.Run(ctx); err != nil {
		if errors.Is(err, capture.ErrInterrupted) {
			return nil, wrapf(CodeRecordingInterrupted, err, "recording stopped before completion")
		}
		return nil, err
	}

	req.OnProgress = func(fraction float64) {
		s.report(progress.PhaseVideo, 50+fraction*50)
	}
	return composer.MuxCapture(ctx, req, ws.Path(captureName))
}

// newRenderer builds the overlay renderer: staged font if one was given,
// avatars from the avatar directory keyed by file base name.
func (s *Session) newRenderer(ws *staging.Workspace) (*overlay.Renderer, error) {
	face, err := s.loadFace()
	if err != nil {
		return nil, err
	}
	avatars, err := loadAvatars(s.opts.AvatarDir)
	if err != nil {
		return nil, err
	}

	return overlay.New(overlay.Style{
		Theme:          s.opts.Theme,
		Face:           face,
		FontSize:       config.OverlayFontSize,
		LineGap:        config.OverlayLineGap,
		Padding:        config.OverlayPadding,
		MaxTextWidth:   config.OverlayMaxWidthPx,
		AvatarSize:     config.AvatarSizePx,
		BubblesPerPage: config.BubblesPerPage,
	}, config.OutputWidth, config.OutputHeight, avatars), nil
}

func (s *Session) loadFace() (font.Face, error) {
	if s.opts.FontPath == "" {
		log.Printf("Warning: no overlay font configured, falling back to the built-in bitmap face\n")
		return basicfont.Face7x13, nil
	}
	data, err := os.ReadFile(s.opts.FontPath)
	if err != nil {
		return nil, wrapf(CodeAssetUnavailable, err, "could not read overlay font %s", s.opts.FontPath)
	}
	ft, err := opentype.Parse(data)
	if err != nil {
		return nil, wrapf(CodeAssetUnavailable, err, "could not parse overlay font %s", s.opts.FontPath)
	}
	face, err := opentype.NewFace(ft, &opentype.FaceOptions{
		Size: float64(config.OverlayFontSize),
		DPI:  72,
	})
	if err != nil {
		return nil, wrapf(CodeAssetUnavailable, err, "could not build overlay font face")
	}
	return face, nil
}

// loadAvatars reads every decodable image in dir, keyed by lowercased
// base name. An empty dir name means no avatars.
func loadAvatars(dir string) (map[string]image.Image, error) {
	if dir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, wrapf(CodeAssetUnavailable, err, "could not read avatar directory %s", dir)
	}

	avatars := make(map[string]image.Image)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		f, err := os.Open(filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}
		img, _, err := image.Decode(f)
		f.Close()
		if err != nil {
			continue
		}
		name := strings.ToLower(strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())))
		avatars[name] = img
	}
	return avatars, nil
}

// classify maps pipeline errors onto the user-facing failure taxonomy.
// Already-classified errors pass through untouched.
func (s *Session) classify(err error) error {
	if CodeOf(err) != "" {
		return err
	}
	if errors.Is(err, ffmpeg.ErrTimeout) {
		return wrapf(CodeCompositionTimeout, err,
			"composition exceeded the %d-second limit; try fewer comments or a shorter video", config.ComposeTimeoutSeconds)
	}
	if errors.Is(err, capture.ErrInterrupted) {
		return wrapf(CodeRecordingInterrupted, err, "recording stopped before completion")
	}
	return fmt.Errorf("generation failed: %w", err)
}

func (s *Session) report(phase progress.Phase, pct float64) {
	if s.tracker != nil {
		s.tracker.Report(phase, pct)
	}
}
