package compose

import (
	"context"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/ZacxDev/story-reel/internal/ffmpeg"
	"github.com/ZacxDev/story-reel/internal/staging"
	"github.com/ZacxDev/story-reel/internal/timeline"
	"github.com/ZacxDev/story-reel/pkg/types"
)

// fakeRunner records compiled commands and fabricates their outputs.
type fakeRunner struct {
	commands   [][]string
	timeoutErr bool
}

func (f *fakeRunner) Run(cmd *exec.Cmd, _ time.Duration) error {
	f.commands = append(f.commands, cmd.Args)
	if f.timeoutErr {
		return ffmpeg.ErrTimeout
	}
	return os.WriteFile(outputArg(cmd.Args), []byte("video"), 0644)
}

// outputArg finds the output file of a compiled ffmpeg invocation: the
// last argument that is not the trailing overwrite flag.
func outputArg(args []string) string {
	for i := len(args) - 1; i >= 0; i-- {
		if args[i] != "-y" {
			return args[i]
		}
	}
	return ""
}

func (f *fakeRunner) joined() string {
	var sb strings.Builder
	for _, args := range f.commands {
		sb.WriteString(strings.Join(args, " "))
		sb.WriteString("\n")
	}
	return sb.String()
}

func testSegments() []types.Segment {
	return []types.Segment{
		{Kind: types.SegmentKindPost, Index: 0, Author: "poster", Text: "title"},
		{Kind: types.SegmentKindComment, Index: 1, Author: "commenter", Text: "reply"},
	}
}

func testTimeline(t *testing.T) *timeline.Timeline {
	t.Helper()
	tl, err := timeline.Build(testSegments(), []float64{2.0, 3.0}, timeline.Options{
		TransitionDuration: 0.5,
		TailExtension:      2.0,
		InterSegmentGap:    0.3,
		Mode:               timeline.CursorOffline,
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return tl
}

func stagedWorkspace(t *testing.T, withMusic bool) *staging.Workspace {
	t.Helper()
	ws, err := staging.NewWorkspace("compose_test_")
	if err != nil {
		t.Fatalf("NewWorkspace: %v", err)
	}
	t.Cleanup(func() { ws.Cleanup() })

	names := []string{
		staging.Filename(staging.RoleBackground, 0),
		staging.Filename(staging.RoleOverlay, 0),
		staging.Filename(staging.RoleOverlay, 1),
		staging.Filename(staging.RoleNarration, 0),
		staging.Filename(staging.RoleNarration, 1),
	}
	if withMusic {
		names = append(names, staging.Filename(staging.RoleMusic, 0))
	}
	for _, name := range names {
		if err := ws.Stage(name, []byte("asset")); err != nil {
			t.Fatalf("Stage(%s): %v", name, err)
		}
	}
	return ws
}

func newTestComposer(ws *staging.Workspace, runner ffmpeg.Runner) *Composer {
	c := NewComposer(ws, runner, false)
	c.measure = func(string) (float64, error) { return 7.8, nil }
	return c
}

func TestComposeBuildsWindowedOverlayGraph(t *testing.T) {
	ws := stagedWorkspace(t, true)
	runner := &fakeRunner{}
	c := newTestComposer(ws, runner)

	out, err := c.Compose(context.Background(), Request{
		Timeline:   testTimeline(t),
		Segments:   testSegments(),
		HasMusic:   true,
		OutputPath: ws.Path("final.mp4"),
	})
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}

	if out.DurationSeconds != 7.8 {
		t.Errorf("duration = %f, want the measured 7.8", out.DurationSeconds)
	}
	if out.SizeBytes == 0 {
		t.Error("size not measured from output")
	}

	graph := runner.joined()
	// Overlay windows land in the graph with the trailing pad applied.
	for _, want := range []string{
		"between(t,0.000,2.700)",
		"between(t,2.300,7.500)",
		"amix",
		"apad",
	} {
		if !strings.Contains(graph, want) {
			t.Errorf("graph missing %q:\n%s", want, graph)
		}
	}
}

func TestComposeNamesMissingSegmentAsset(t *testing.T) {
	ws := stagedWorkspace(t, false)
	os.Remove(ws.Path(staging.Filename(staging.RoleOverlay, 1)))

	c := newTestComposer(ws, &fakeRunner{})
	_, err := c.Compose(context.Background(), Request{
		Timeline:   testTimeline(t),
		Segments:   testSegments(),
		OutputPath: ws.Path("final.mp4"),
	})
	if err == nil {
		t.Fatal("expected error for missing overlay")
	}
	if !strings.Contains(err.Error(), "segment 1") {
		t.Errorf("error does not identify the segment: %v", err)
	}
}

func TestComposeSurfacesTimeout(t *testing.T) {
	ws := stagedWorkspace(t, false)
	c := newTestComposer(ws, &fakeRunner{timeoutErr: true})

	_, err := c.Compose(context.Background(), Request{
		Timeline:   testTimeline(t),
		Segments:   testSegments(),
		OutputPath: ws.Path("final.mp4"),
	})
	if !errors.Is(err, ffmpeg.ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
}

func TestComposeSlidesCrossfadeOffsets(t *testing.T) {
	ws := stagedWorkspace(t, false)
	runner := &fakeRunner{}
	c := newTestComposer(ws, runner)

	_, err := c.ComposeSlides(context.Background(), Request{
		Timeline:   testTimeline(t),
		Segments:   testSegments(),
		Transition: types.TransitionCrossfade,
		OutputPath: ws.Path("final.mp4"),
	})
	if err != nil {
		t.Fatalf("ComposeSlides: %v", err)
	}

	// One invocation per slide plus the join.
	if len(runner.commands) != 3 {
		t.Fatalf("got %d invocations, want 3", len(runner.commands))
	}

	graph := runner.joined()
	if !strings.Contains(graph, "zoompan") {
		t.Error("slide clips missing the Ken Burns zoompan stage")
	}
	// Segment 1's narration starts at 2.0+0.3s; the join consumes one
	// transition of extra footage from slide 0, so the fade must begin
	// exactly there, not a transition earlier.
	if !strings.Contains(graph, "xfade") || !strings.Contains(graph, "offset=2.300") {
		t.Errorf("crossfade offset not aligned with narration start:\n%s", graph)
	}
	// Slide 0 is rendered with the transition's worth of extra footage.
	if !strings.Contains(graph, "-t 2.800") {
		t.Errorf("non-last slide missing crossfade footage:\n%s", graph)
	}
}

func TestComposeSlidesCutUsesConcat(t *testing.T) {
	ws := stagedWorkspace(t, false)
	runner := &fakeRunner{}
	c := newTestComposer(ws, runner)

	_, err := c.ComposeSlides(context.Background(), Request{
		Timeline:   testTimeline(t),
		Segments:   testSegments(),
		Transition: types.TransitionCut,
		OutputPath: ws.Path("final.mp4"),
	})
	if err != nil {
		t.Fatalf("ComposeSlides: %v", err)
	}
	if strings.Contains(runner.joined(), "xfade") {
		t.Error("cut transition must not emit xfade")
	}
	if !strings.Contains(runner.joined(), "concat") {
		t.Error("cut transition should concatenate clips")
	}
}

func TestComposeRejectsEmptyTimeline(t *testing.T) {
	ws := stagedWorkspace(t, false)
	c := newTestComposer(ws, &fakeRunner{})
	_, err := c.Compose(context.Background(), Request{Timeline: &timeline.Timeline{}})
	if err == nil {
		t.Error("expected error for empty timeline")
	}
}
