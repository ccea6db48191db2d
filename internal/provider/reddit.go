package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// RedditFetcher retrieves a post and its comment tree through the public
// JSON endpoint of a thread URL.
type RedditFetcher struct {
	client    *http.Client
	userAgent string
	backoff   time.Duration
}

// NewRedditFetcher creates a content fetcher.
func NewRedditFetcher() *RedditFetcher {
	return &RedditFetcher{
		client:    &http.Client{Timeout: 20 * time.Second},
		userAgent: "story-reel/1.0",
		backoff:   time.Second,
	}
}

type redditListing struct {
	Data struct {
		Children []struct {
			Data struct {
				Title       string `json:"title"`
				Author      string `json:"author"`
				Selftext    string `json:"selftext"`
				Body        string `json:"body"`
				Score       int    `json:"score"`
				IsSubmitter bool   `json:"is_submitter"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

// Fetch validates the URL shape, then retrieves title, body, and comments.
// Provider failures surface as a "could not fetch" error for the UI.
func (f *RedditFetcher) Fetch(ctx context.Context, rawURL string) (*Thread, error) {
	if err := ValidateSourceURL(rawURL); err != nil {
		return nil, err
	}

	jsonURL := strings.TrimSuffix(rawURL, "/") + ".json"
	var listings []redditListing
	err := withRetry(ctx, 3, f.backoff, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, jsonURL, nil)
		if err != nil {
			return err
		}
		req.Header.Set("User-Agent", f.userAgent)

		resp, err := f.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("status %d", resp.StatusCode)
		}
		listings = nil
		return json.NewDecoder(resp.Body).Decode(&listings)
	})
	if err != nil {
		return nil, errors.Wrapf(err, "could not fetch content from %s", rawURL)
	}

	if len(listings) < 1 || len(listings[0].Data.Children) < 1 {
		return nil, fmt.Errorf("could not fetch content from %s: empty thread", rawURL)
	}

	post := listings[0].Data.Children[0].Data
	thread := &Thread{
		Title:  post.Title,
		Author: post.Author,
		Body:   post.Selftext,
	}

	if len(listings) > 1 {
		for _, child := range listings[1].Data.Children {
			c := child.Data
			if c.Body == "" || c.Author == "" {
				continue
			}
			thread.Comments = append(thread.Comments, Comment{
				Author:           c.Author,
				Body:             c.Body,
				Score:            c.Score,
				IsOriginalPoster: c.IsSubmitter,
			})
		}
	}
	return thread, nil
}
