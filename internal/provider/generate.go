package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
)

// PollinationsImageGenerator resolves illustration prompts against the
// pollinations.ai image endpoint, which serves a rendered image directly
// at a prompt-derived URL.
type PollinationsImageGenerator struct {
	baseURL string
	client  *http.Client
	width   int
	height  int
}

// NewPollinationsImageGenerator creates an image generator for the target
// frame size.
func NewPollinationsImageGenerator(width, height int) *PollinationsImageGenerator {
	return &PollinationsImageGenerator{
		baseURL: "https://image.pollinations.ai/prompt",
		client:  &http.Client{Timeout: 60 * time.Second},
		width:   width,
		height:  height,
	}
}

// GenerateImage returns a URL serving an image for the prompt. The
// endpoint renders on first request, so the URL is probed before being
// handed to the staging layer.
func (g *PollinationsImageGenerator) GenerateImage(ctx context.Context, prompt string) (string, error) {
	imageURL := fmt.Sprintf("%s/%s?width=%d&height=%d&nologo=true",
		g.baseURL, url.PathEscape(prompt), g.width, g.height)

	err := withRetry(ctx, 3, 2*time.Second, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, imageURL, nil)
		if err != nil {
			return err
		}
		resp, err := g.client.Do(req)
		if err != nil {
			return err
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("status %d", resp.StatusCode)
		}
		return nil
	})
	if err != nil {
		return "", errors.Wrapf(err, "image generation failed for prompt %q", truncate(prompt, 60))
	}
	return imageURL, nil
}

// HTTPScriptGenerator requests a narrated script from a JSON completion
// endpoint.
type HTTPScriptGenerator struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewHTTPScriptGenerator creates a script generator client.
func NewHTTPScriptGenerator(endpoint, apiKey string) *HTTPScriptGenerator {
	return &HTTPScriptGenerator{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 60 * time.Second},
	}
}

type scriptResponse struct {
	Segments []struct {
		Narration         string `json:"narration"`
		VisualDescription string `json:"visual_description"`
	} `json:"segments"`
}

// GenerateScript returns the narration beats for a story prompt.
func (g *HTTPScriptGenerator) GenerateScript(ctx context.Context, prompt string) ([]ScriptSegment, error) {
	payload, err := json.Marshal(map[string]string{"prompt": prompt})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	var parsed scriptResponse
	err = withRetry(ctx, 3, time.Second, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		if g.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+g.apiKey)
		}

		resp, err := g.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("status %d", resp.StatusCode)
		}
		parsed = scriptResponse{}
		return json.NewDecoder(resp.Body).Decode(&parsed)
	})
	if err != nil {
		return nil, errors.Wrapf(err, "script generation failed for prompt %q", truncate(prompt, 60))
	}

	if len(parsed.Segments) == 0 {
		return nil, fmt.Errorf("script generation returned no segments")
	}
	segments := make([]ScriptSegment, len(parsed.Segments))
	for i, s := range parsed.Segments {
		segments[i] = ScriptSegment{Narration: s.Narration, VisualDescription: s.VisualDescription}
	}
	return segments, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
