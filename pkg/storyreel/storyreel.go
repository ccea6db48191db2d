// Package storyreel is the embeddable entry point: resolve a content
// source, build its script, and run one generation session end to end.
package storyreel

import (
	"context"
	"fmt"

	"github.com/ZacxDev/story-reel/internal/config"
	"github.com/ZacxDev/story-reel/internal/generator"
	"github.com/ZacxDev/story-reel/internal/progress"
	"github.com/ZacxDev/story-reel/internal/provider"
	"github.com/ZacxDev/story-reel/internal/source"
)

// Options defines one generation request.
type Options struct {
	// Source names the registered content source: chat, reddit, or story.
	Source string

	// Input is the raw material the source works from.
	Input source.Input

	// Generate carries rendering and output settings.
	Generate config.GenerateOptions

	// ElevenLabsKey authenticates narration synthesis.
	ElevenLabsKey string

	// OnProgress, if non-nil, receives the phase name and the overall
	// 0-100 percentage after every accepted report.
	OnProgress func(phase string, overall float64)
}

// Result describes the produced video. Duration and size are measured
// from the file on disk.
type Result struct {
	Path            string
	DurationSeconds float64
	SizeBytes       int64
}

// Generate runs one full generation and returns the measured result.
func Generate(ctx context.Context, opts *Options) (*Result, error) {
	if opts.ElevenLabsKey == "" {
		return nil, fmt.Errorf("narration requires an ElevenLabs API key (set ELEVENLABS_API_KEY)")
	}

	src, err := source.Get(opts.Source)
	if err != nil {
		return nil, err
	}
	if opts.Generate.Mode == "" {
		opts.Generate.Mode = src.DefaultMode()
	}

	script, err := src.BuildSegments(ctx, opts.Input)
	if err != nil {
		return nil, err
	}

	var tracker *progress.Tracker
	if opts.OnProgress != nil {
		cb := opts.OnProgress
		tracker = progress.NewTracker(func(phase progress.Phase, overall float64) {
			cb(phase.String(), overall)
		})
	} else {
		tracker = progress.NewTracker(nil)
	}

	synth := provider.NewElevenLabsClient(opts.ElevenLabsKey)
	session := generator.NewSession(opts.Generate, synth, tracker)
	out, err := session.Generate(ctx, script)
	if err != nil {
		return nil, err
	}
	return &Result{
		Path:            out.Path,
		DurationSeconds: out.DurationSeconds,
		SizeBytes:       out.SizeBytes,
	}, nil
}

// GetSupportedSources returns the registered content source names.
func GetSupportedSources() []string {
	return source.GetSupportedSources()
}
