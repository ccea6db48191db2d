package source

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/ZacxDev/story-reel/internal/provider"
	"github.com/ZacxDev/story-reel/pkg/types"
)

// StorySource generates a narrated script from a premise and pairs each
// beat with an illustration prompt. Its output runs through the slide
// compositor rather than the overlay pipelines.
type StorySource struct {
	generator provider.ScriptGenerator
}

// StoryScriptEndpoint points the registered story source at a completion
// service. Set from configuration before the source is used.
var StoryScriptEndpoint, StoryScriptAPIKey string

func init() {
	Register(&StorySource{})
}

// NewStorySource creates a source backed by the given generator. Used by
// tests; the registered instance builds its client lazily from the
// configured endpoint.
func NewStorySource(generator provider.ScriptGenerator) *StorySource {
	return &StorySource{generator: generator}
}

func (s *StorySource) GetName() string {
	return "story"
}

func (s *StorySource) DefaultMode() types.PipelineMode {
	return types.PipelineOffline
}

func (s *StorySource) BuildSegments(ctx context.Context, input Input) (*Script, error) {
	if strings.TrimSpace(input.Prompt) == "" {
		return nil, fmt.Errorf("story source requires a prompt")
	}

	gen := s.generator
	if gen == nil {
		if StoryScriptEndpoint == "" {
			return nil, fmt.Errorf("story source requires a script endpoint (set SCRIPT_API_URL)")
		}
		gen = provider.NewHTTPScriptGenerator(StoryScriptEndpoint, StoryScriptAPIKey)
	}

	beats, err := gen.GenerateScript(ctx, input.Prompt)
	if err != nil {
		return nil, errors.Wrap(err, "error building segments")
	}

	script := &Script{
		Segments:     make([]types.Segment, 0, len(beats)),
		ImagePrompts: make([]string, 0, len(beats)),
	}
	for i, beat := range beats {
		if strings.TrimSpace(beat.Narration) == "" {
			continue
		}
		script.Segments = append(script.Segments, types.Segment{
			Kind:    types.SegmentKindPost,
			Index:   i,
			Author:  "narrator",
			Text:    beat.Narration,
			VoiceID: input.NarratorVoice,
		})
		prompt := beat.VisualDescription
		if strings.TrimSpace(prompt) == "" {
			prompt = beat.Narration
		}
		script.ImagePrompts = append(script.ImagePrompts, prompt)
	}
	if len(script.Segments) == 0 {
		return nil, fmt.Errorf("generated script contains no narration")
	}
	// Reindex after dropping empty beats so segment indices stay dense.
	for i := range script.Segments {
		script.Segments[i].Index = i
	}
	return script, nil
}
