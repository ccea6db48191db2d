package config

import "github.com/ZacxDev/story-reel/pkg/types"

// GenerateOptions defines options for one generation run
type GenerateOptions struct {
	ScriptPath     string
	SourceURL      string
	BackgroundPath string
	MusicPath      string
	FontPath       string
	AvatarDir      string
	OutputPath     string
	Theme          types.Theme
	Transition     types.TransitionStyle
	Mode           types.PipelineMode
	VoiceID        string
	SecondVoiceID  string
	WithTag        bool
	TagImagePath   string
	TagSoundPath   string
	Verbose        bool
}

// Constants for composition
const (
	// Output resolution (vertical short-form)
	OutputWidth  = 1080
	OutputHeight = 1920

	// Frame rate for the live capture loop
	CaptureFPS = 30

	// Timing policy between segments
	TransitionDuration = 0.5 // seconds of visual crossfade (live cursor)
	InterSegmentGap    = 0.3 // seconds of silence padding (offline cursor)
	TailExtension      = 2.0 // trailing room on the final segment

	// Overlays stay on screen slightly past their audio so they do not
	// pop off one frame early
	OverlayTrailingPad = 0.2

	// Soft cap warned about before synthesis; the warning is estimated
	// from text length and is never used for final timing
	SoftCapSeconds    = 60.0
	HeuristicCharsSec = 15.0

	// Background music is mixed under narration at reduced volume
	MusicVolume = 0.15

	// Subscribe tag display
	TagDuration  = 3.0 // seconds the tag stays on screen
	TagEndOffset = 0.5 // tag display ends this long before total duration

	// Hard wall-clock bound on one transcoding invocation
	ComposeTimeoutSeconds = 300

	// Overlay layout
	OverlayFontSize   = 42
	OverlayLineGap    = 10
	OverlayPadding    = 28
	OverlayMaxWidthPx = 820
	AvatarSizePx      = 72
	BubblesPerPage    = 4

	// Temporary directory prefix for staged session files
	StagingDirPrefix = "story_reel_"
)
