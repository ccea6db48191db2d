package source

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/ZacxDev/story-reel/internal/provider"
	"github.com/ZacxDev/story-reel/pkg/types"
)

// RedditSource fetches a thread and turns the post plus its top replies
// into card segments. The post is always segment zero; replies follow in
// retrieval order up to the configured cap.
type RedditSource struct {
	fetcher provider.ContentFetcher
}

func init() {
	Register(&RedditSource{fetcher: provider.NewRedditFetcher()})
}

// NewRedditSource creates a source backed by the given fetcher. Used by
// tests; the registered instance uses the live client.
func NewRedditSource(fetcher provider.ContentFetcher) *RedditSource {
	return &RedditSource{fetcher: fetcher}
}

func (s *RedditSource) GetName() string {
	return "reddit"
}

func (s *RedditSource) DefaultMode() types.PipelineMode {
	return types.PipelineLive
}

func (s *RedditSource) BuildSegments(ctx context.Context, input Input) (*Script, error) {
	if input.URL == "" {
		return nil, fmt.Errorf("reddit source requires a thread url")
	}

	thread, err := s.fetcher.Fetch(ctx, input.URL)
	if err != nil {
		return nil, errors.Wrap(err, "error building segments")
	}

	postText := thread.Title
	if strings.TrimSpace(thread.Body) != "" {
		postText = thread.Title + "\n\n" + thread.Body
	}
	segments := []types.Segment{{
		Kind:             types.SegmentKindPost,
		Index:            0,
		Author:           thread.Author,
		Text:             postText,
		IsOriginalPoster: true,
		VoiceID:          input.NarratorVoice,
	}}

	for _, c := range thread.Comments {
		if input.MaxComments > 0 && len(segments)-1 >= input.MaxComments {
			break
		}
		voice := input.AltVoice
		if c.IsOriginalPoster {
			voice = input.NarratorVoice
		}
		segments = append(segments, types.Segment{
			Kind:             types.SegmentKindComment,
			Index:            len(segments),
			Author:           c.Author,
			Text:             c.Body,
			IsOriginalPoster: c.IsOriginalPoster,
			VoiceID:          voice,
		})
	}
	if len(segments) == 1 {
		return nil, fmt.Errorf("thread %s has no usable comments; pick a thread with replies", input.URL)
	}
	return &Script{Segments: segments}, nil
}
