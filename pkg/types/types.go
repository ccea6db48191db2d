package types

// SegmentKind is the closed set of narratable content kinds.
type SegmentKind string

const (
	SegmentKindPost        SegmentKind = "post"
	SegmentKindComment     SegmentKind = "comment"
	SegmentKindChatMessage SegmentKind = "chat-message"
)

// Segment is one narratable unit: a post title, a selected comment, or a
// chat message. Segments are immutable once timeline generation begins.
type Segment struct {
	Kind             SegmentKind
	Index            int
	Author           string
	Text             string
	IsOriginalPoster bool

	// VoiceID selects the narrator for this segment. The chat variant
	// assigns a distinct voice per speaker.
	VoiceID string

	// Side is the bubble alignment for chat messages: "left" or "right".
	Side string
}

// Theme selects the overlay color scheme.
type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"
)

// TransitionStyle selects how consecutive segments join in the offline
// pipeline.
type TransitionStyle string

const (
	TransitionCut       TransitionStyle = "cut"
	TransitionCrossfade TransitionStyle = "crossfade"
)

// PipelineMode selects the rendering path.
type PipelineMode string

const (
	PipelineLive    PipelineMode = "live"
	PipelineOffline PipelineMode = "offline"
)
