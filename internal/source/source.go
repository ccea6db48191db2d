// Package source turns user input (a chat script, a thread URL, or a
// story prompt) into the ordered segment list the pipelines run on.
// Each content source registers itself by name; the CLI resolves one by
// the subcommand the user invoked.
package source

import (
	"context"
	"fmt"

	"github.com/ZacxDev/story-reel/pkg/types"
)

// Input carries the raw material a source strategy works from. Only the
// fields relevant to the chosen source need to be set.
type Input struct {
	// URL is the thread URL for fetched sources.
	URL string

	// ScriptPath is the path to a chat script file.
	ScriptPath string

	// Prompt is the story premise for generated scripts.
	Prompt string

	// MaxComments caps how many replies a fetched thread contributes.
	// Zero means no cap.
	MaxComments int

	// NarratorVoice and AltVoice are the synthesis voices assigned to
	// the original poster and to everyone else.
	NarratorVoice string
	AltVoice      string
}

// Script is the ordered segment list a source produced, plus any
// per-segment visual prompts for sources that render generated slides
// instead of overlays.
type Script struct {
	Segments []types.Segment

	// ImagePrompts is parallel to Segments when non-nil. A non-nil
	// value routes the run through the slide compositor.
	ImagePrompts []string
}

// Source defines the interface for content-source strategies.
type Source interface {
	// GetName returns the source name used on the command line.
	GetName() string

	// DefaultMode returns the pipeline the source's output is built for.
	DefaultMode() types.PipelineMode

	// BuildSegments converts the input into the ordered segment list.
	BuildSegments(ctx context.Context, input Input) (*Script, error)
}

var sources = make(map[string]Source)

// Register adds a source to the registry
func Register(s Source) {
	sources[s.GetName()] = s
}

// Get returns a source by name
func Get(name string) (Source, error) {
	s, ok := sources[name]
	if !ok {
		return nil, fmt.Errorf("unsupported content source: %s", name)
	}
	return s, nil
}

// GetSupportedSources returns a list of registered source names
func GetSupportedSources() []string {
	names := make([]string, 0, len(sources))
	for name := range sources {
		names = append(names, name)
	}
	return names
}
