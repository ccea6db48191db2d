package source

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"

	"github.com/ZacxDev/story-reel/pkg/types"
)

// ChatSource builds a conversation from a plain-text script file. Each
// line is "Author: message"; lines starting with # and blank lines are
// ignored. The first speaker is treated as the original poster and sits
// on the left; every other speaker alternates onto the opposite side in
// order of first appearance.
type ChatSource struct{}

func init() {
	Register(&ChatSource{})
}

func (s *ChatSource) GetName() string {
	return "chat"
}

func (s *ChatSource) DefaultMode() types.PipelineMode {
	return types.PipelineLive
}

func (s *ChatSource) BuildSegments(ctx context.Context, input Input) (*Script, error) {
	if input.ScriptPath == "" {
		return nil, fmt.Errorf("chat source requires a script file")
	}

	f, err := os.Open(input.ScriptPath)
	if err != nil {
		return nil, errors.Wrap(err, "error opening chat script")
	}
	defer f.Close()

	sides := make(map[string]string)
	var op string
	var segments []types.Segment

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		author, text, ok := strings.Cut(line, ":")
		author = strings.TrimSpace(author)
		text = strings.TrimSpace(text)
		if !ok || author == "" || text == "" {
			return nil, fmt.Errorf("chat script line %d: expected \"Author: message\", got %q", lineNo, line)
		}

		if _, seen := sides[author]; !seen {
			if len(sides)%2 == 0 {
				sides[author] = "left"
			} else {
				sides[author] = "right"
			}
		}
		if op == "" {
			op = author
		}

		voice := input.AltVoice
		if author == op {
			voice = input.NarratorVoice
		}
		segments = append(segments, types.Segment{
			Kind:             types.SegmentKindChatMessage,
			Index:            len(segments),
			Author:           author,
			Text:             text,
			IsOriginalPoster: author == op,
			VoiceID:          voice,
			Side:             sides[author],
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "error reading chat script")
	}
	if len(segments) < 2 {
		return nil, fmt.Errorf("chat script %s needs at least two messages", input.ScriptPath)
	}
	if len(sides) < 2 {
		return nil, fmt.Errorf("chat script %s needs at least two participants", input.ScriptPath)
	}
	return &Script{Segments: segments}, nil
}
