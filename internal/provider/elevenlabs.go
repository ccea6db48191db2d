package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

const elevenLabsBaseURL = "https://api.elevenlabs.io/v1"

// ElevenLabsClient synthesizes narration through the ElevenLabs API.
type ElevenLabsClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
	backoff time.Duration
}

// NewElevenLabsClient creates a TTS client. Each call is bounded by the
// HTTP client timeout and retried with backoff on failure.
func NewElevenLabsClient(apiKey string) *ElevenLabsClient {
	return &ElevenLabsClient{
		apiKey:  apiKey,
		baseURL: elevenLabsBaseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
		backoff: time.Second,
	}
}

type ttsRequest struct {
	Text          string                 `json:"text"`
	ModelID       string                 `json:"model_id"`
	VoiceSettings map[string]interface{} `json:"voice_settings"`
}

// Synthesize returns the raw audio bytes for text spoken by voiceID.
func (c *ElevenLabsClient) Synthesize(ctx context.Context, text, voiceID string) ([]byte, error) {
	payload, err := json.Marshal(ttsRequest{
		Text:    text,
		ModelID: "eleven_multilingual_v2",
		VoiceSettings: map[string]interface{}{
			"stability":        0.5,
			"similarity_boost": 0.75,
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "error marshaling synthesis request")
	}

	var audio []byte
	err = withRetry(ctx, 3, c.backoff, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			fmt.Sprintf("%s/text-to-speech/%s", c.baseURL, voiceID), bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "audio/mpeg")
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("xi-api-key", c.apiKey)

		resp, err := c.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			return fmt.Errorf("synthesis API error (%d): %s", resp.StatusCode, body)
		}

		audio, err = io.ReadAll(resp.Body)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("synthesis returned empty audio for voice %s", voiceID)
	}
	return audio, nil
}
