package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ZacxDev/story-reel/internal/provider"
	"github.com/ZacxDev/story-reel/pkg/types"
)

func TestRegistryResolvesBuiltins(t *testing.T) {
	for _, name := range []string{"chat", "reddit", "story"} {
		s, err := Get(name)
		if err != nil {
			t.Fatalf("Get(%q): %v", name, err)
		}
		if s.GetName() != name {
			t.Errorf("GetName() = %q, want %q", s.GetName(), name)
		}
	}
	if _, err := Get("tiktok"); err == nil {
		t.Error("expected error for unregistered source")
	}
	if len(GetSupportedSources()) < 3 {
		t.Errorf("GetSupportedSources() = %v", GetSupportedSources())
	}
}

func writeScript(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "script.txt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestChatSourceParsesScript(t *testing.T) {
	path := writeScript(t, `# a haunted conversation
Alex: did you see that?
Sam: see what
Alex: the lights just flickered

Sam: stop it
`)
	script, err := (&ChatSource{}).BuildSegments(context.Background(), Input{
		ScriptPath:    path,
		NarratorVoice: "v-op",
		AltVoice:      "v-alt",
	})
	if err != nil {
		t.Fatalf("BuildSegments: %v", err)
	}

	segs := script.Segments
	if len(segs) != 4 {
		t.Fatalf("segments = %d, want 4", len(segs))
	}
	for i, s := range segs {
		if s.Index != i {
			t.Errorf("segment %d has index %d", i, s.Index)
		}
		if s.Kind != types.SegmentKindChatMessage {
			t.Errorf("segment %d kind = %q", i, s.Kind)
		}
	}
	if !segs[0].IsOriginalPoster || segs[1].IsOriginalPoster {
		t.Error("only the first speaker should be the original poster")
	}
	if segs[0].Side != "left" || segs[1].Side != "right" || segs[2].Side != "left" {
		t.Errorf("sides = %q %q %q", segs[0].Side, segs[1].Side, segs[2].Side)
	}
	if segs[0].VoiceID != "v-op" || segs[1].VoiceID != "v-alt" {
		t.Errorf("voices = %q %q", segs[0].VoiceID, segs[1].VoiceID)
	}
	if script.ImagePrompts != nil {
		t.Error("chat source should not emit image prompts")
	}
}

func TestChatSourceRejectsBadLine(t *testing.T) {
	path := writeScript(t, "Alex: hello\njust floating text\n")
	_, err := (&ChatSource{}).BuildSegments(context.Background(), Input{ScriptPath: path})
	if err == nil {
		t.Fatal("expected parse error")
	}
}

func TestChatSourceRejectsEmptyScript(t *testing.T) {
	path := writeScript(t, "# nothing here\n\n")
	if _, err := (&ChatSource{}).BuildSegments(context.Background(), Input{ScriptPath: path}); err == nil {
		t.Fatal("expected error for empty script")
	}
}

type fakeFetcher struct {
	thread *provider.Thread
	err    error
}

func (f *fakeFetcher) Fetch(ctx context.Context, rawURL string) (*provider.Thread, error) {
	return f.thread, f.err
}

func TestRedditSourceBuildsCards(t *testing.T) {
	src := NewRedditSource(&fakeFetcher{thread: &provider.Thread{
		Title:  "AITA?",
		Author: "op",
		Body:   "long story",
		Comments: []provider.Comment{
			{Author: "a", Body: "yes"},
			{Author: "op", Body: "context", IsOriginalPoster: true},
			{Author: "b", Body: "no"},
		},
	}})
	script, err := src.BuildSegments(context.Background(), Input{
		URL:           "https://www.reddit.com/r/x/comments/y",
		MaxComments:   2,
		NarratorVoice: "v-op",
		AltVoice:      "v-alt",
	})
	if err != nil {
		t.Fatalf("BuildSegments: %v", err)
	}

	segs := script.Segments
	if len(segs) != 3 {
		t.Fatalf("segments = %d, want post + 2 capped comments", len(segs))
	}
	if segs[0].Kind != types.SegmentKindPost || !segs[0].IsOriginalPoster {
		t.Errorf("segment 0 = %+v, want original-poster post", segs[0])
	}
	if segs[0].Text != "AITA?\n\nlong story" {
		t.Errorf("post text = %q", segs[0].Text)
	}
	if segs[1].Kind != types.SegmentKindComment || segs[1].VoiceID != "v-alt" {
		t.Errorf("segment 1 = %+v", segs[1])
	}
	if segs[2].VoiceID != "v-op" {
		t.Error("original-poster comment should use the narrator voice")
	}
}

func TestRedditSourcePropagatesFetchError(t *testing.T) {
	src := NewRedditSource(&fakeFetcher{err: fmt.Errorf("could not fetch content from x")})
	if _, err := src.BuildSegments(context.Background(), Input{URL: "https://reddit.com/r/x/comments/y"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestRedditSourceRejectsThreadWithoutComments(t *testing.T) {
	// A lone post card makes no story; the run should fail before any
	// synthesis or staging is attempted.
	src := NewRedditSource(&fakeFetcher{thread: &provider.Thread{
		Title:  "AITA?",
		Author: "op",
		Body:   "long story",
	}})
	_, err := src.BuildSegments(context.Background(), Input{URL: "https://reddit.com/r/x/comments/y"})
	if err == nil {
		t.Fatal("expected error for a thread with no usable comments")
	}
	if !strings.Contains(err.Error(), "no usable comments") {
		t.Errorf("err = %v", err)
	}
}

type fakeScriptGen struct {
	beats []provider.ScriptSegment
}

func (g *fakeScriptGen) GenerateScript(ctx context.Context, prompt string) ([]provider.ScriptSegment, error) {
	return g.beats, nil
}

func TestStorySourcePairsNarrationWithPrompts(t *testing.T) {
	src := NewStorySource(&fakeScriptGen{beats: []provider.ScriptSegment{
		{Narration: "It began at midnight.", VisualDescription: "a dark street"},
		{Narration: "   ", VisualDescription: "dropped"},
		{Narration: "Then the phone rang."},
	}})
	script, err := src.BuildSegments(context.Background(), Input{Prompt: "a midnight call", NarratorVoice: "v"})
	if err != nil {
		t.Fatalf("BuildSegments: %v", err)
	}

	if len(script.Segments) != 2 || len(script.ImagePrompts) != 2 {
		t.Fatalf("segments = %d, prompts = %d, want 2 each", len(script.Segments), len(script.ImagePrompts))
	}
	if script.Segments[1].Index != 1 {
		t.Error("indices should be reindexed after dropping empty beats")
	}
	if script.ImagePrompts[0] != "a dark street" {
		t.Errorf("prompt 0 = %q", script.ImagePrompts[0])
	}
	if script.ImagePrompts[1] != "Then the phone rang." {
		t.Error("missing visual description should fall back to the narration")
	}
	if src.DefaultMode() != types.PipelineOffline {
		t.Error("story source should default to the offline pipeline")
	}
}

func TestStorySourceRequiresPrompt(t *testing.T) {
	src := NewStorySource(&fakeScriptGen{})
	if _, err := src.BuildSegments(context.Background(), Input{}); err == nil {
		t.Fatal("expected error for empty prompt")
	}
}
