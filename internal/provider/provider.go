// Package provider holds the collaborator contracts the pipelines consume:
// speech synthesis, content retrieval, and generation services. Clients
// are constructed explicitly and passed into the pipeline that owns their
// lifecycle; nothing here is ambient module state.
package provider

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Synthesizer turns narration text into audio bytes. Callers measure the
// duration themselves by decoding the payload; any duration metadata a
// provider returns is ignored.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voiceID string) ([]byte, error)
}

// Comment is one retrievable reply on a thread.
type Comment struct {
	Author           string
	Body             string
	Score            int
	IsOriginalPoster bool
}

// Thread is a retrieved third-party post plus its comments.
type Thread struct {
	Title    string
	Author   string
	Body     string
	Comments []Comment
}

// ContentFetcher retrieves a post and its comments from a source URL.
type ContentFetcher interface {
	Fetch(ctx context.Context, rawURL string) (*Thread, error)
}

// ImageGenerator produces an illustration URL for a visual prompt.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) (string, error)
}

// ScriptSegment is one generated narration beat.
type ScriptSegment struct {
	Narration         string
	VisualDescription string
}

// ScriptGenerator produces a narrated script for a story prompt.
type ScriptGenerator interface {
	GenerateScript(ctx context.Context, prompt string) ([]ScriptSegment, error)
}

// ValidateSourceURL rejects malformed source URLs before any provider
// call is issued.
func ValidateSourceURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("malformed source url %q: %v", rawURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("source url %q must be http(s)", rawURL)
	}
	if u.Host == "" || !strings.Contains(u.Host, ".") {
		return fmt.Errorf("source url %q has no valid host", rawURL)
	}
	return nil
}

// withRetry runs fn with bounded retry and doubling backoff. Provider
// outages are transient often enough that one-shot calls fail whole runs
// needlessly, but unbounded retry would hide real misconfiguration.
func withRetry(ctx context.Context, attempts int, initialBackoff time.Duration, fn func() error) error {
	backoff := initialBackoff
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return err
}
