package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestValidateSourceURL(t *testing.T) {
	valid := []string{
		"https://www.reddit.com/r/stories/comments/abc123/title/",
		"http://old.reddit.com/r/askreddit/comments/xyz",
	}
	for _, u := range valid {
		if err := ValidateSourceURL(u); err != nil {
			t.Errorf("ValidateSourceURL(%q) = %v, want nil", u, err)
		}
	}

	invalid := []string{
		"",
		"not a url",
		"ftp://reddit.com/r/stories",
		"https://localhost/r/stories",
		"reddit.com/r/stories",
	}
	for _, u := range invalid {
		if err := ValidateSourceURL(u); err == nil {
			t.Errorf("ValidateSourceURL(%q) = nil, want error", u)
		}
	}
}

func TestWithRetryRecovers(t *testing.T) {
	var calls int32
	err := withRetry(context.Background(), 3, time.Millisecond, func() error {
		if atomic.AddInt32(&calls, 1) < 3 {
			return context.DeadlineExceeded
		}
		return nil
	})
	if err != nil {
		t.Fatalf("withRetry: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestWithRetryExhausts(t *testing.T) {
	var calls int32
	err := withRetry(context.Background(), 3, time.Millisecond, func() error {
		atomic.AddInt32(&calls, 1)
		return context.DeadlineExceeded
	})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestWithRetryHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := withRetry(ctx, 3, time.Hour, func() error {
		return context.DeadlineExceeded
	})
	if err != context.Canceled {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestElevenLabsSynthesize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/text-to-speech/") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("xi-api-key") != "test-key" {
			t.Errorf("missing api key header")
		}
		w.Write([]byte("mp3-bytes"))
	}))
	defer srv.Close()

	c := &ElevenLabsClient{apiKey: "test-key", baseURL: srv.URL, client: srv.Client(), backoff: time.Millisecond}
	audio, err := c.Synthesize(context.Background(), "hello world", "voice-1")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if string(audio) != "mp3-bytes" {
		t.Errorf("audio = %q", audio)
	}
}

func TestElevenLabsRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 2 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("mp3-bytes"))
	}))
	defer srv.Close()

	c := &ElevenLabsClient{apiKey: "k", baseURL: srv.URL, client: srv.Client(), backoff: time.Millisecond}
	if _, err := c.Synthesize(context.Background(), "text", "v"); err != nil {
		t.Fatalf("Synthesize after retry: %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestElevenLabsRejectsEmptyAudio(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := &ElevenLabsClient{apiKey: "k", baseURL: srv.URL, client: srv.Client(), backoff: time.Millisecond}
	if _, err := c.Synthesize(context.Background(), "text", "v"); err == nil {
		t.Fatal("expected error for empty audio payload")
	}
}

const threadJSON = `[
  {"data": {"children": [{"data": {
    "title": "AITA for testing?",
    "author": "op_user",
    "selftext": "The post body.",
    "score": 512
  }}]}},
  {"data": {"children": [
    {"data": {"author": "replier", "body": "First comment.", "score": 40}},
    {"data": {"author": "op_user", "body": "OP reply.", "score": 7, "is_submitter": true}},
    {"data": {"author": "", "body": "orphaned"}},
    {"data": {"author": "deleted_body", "body": ""}}
  ]}}
]`

func TestRedditFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, ".json") {
			t.Errorf("expected .json suffix, got %s", r.URL.Path)
		}
		w.Write([]byte(threadJSON))
	}))
	defer srv.Close()

	f := &RedditFetcher{client: srv.Client(), userAgent: "test", backoff: time.Millisecond}
	thread, err := f.Fetch(context.Background(), srv.URL+"/r/stories/comments/abc/title/")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if thread.Title != "AITA for testing?" || thread.Author != "op_user" {
		t.Errorf("post = %q by %q", thread.Title, thread.Author)
	}
	if thread.Body != "The post body." {
		t.Errorf("body = %q", thread.Body)
	}
	if len(thread.Comments) != 2 {
		t.Fatalf("comments = %d, want 2 (empty author/body skipped)", len(thread.Comments))
	}
	if !thread.Comments[1].IsOriginalPoster {
		t.Error("second comment should be flagged as original poster")
	}
}

func TestRedditFetchRejectsBadURL(t *testing.T) {
	f := NewRedditFetcher()
	if _, err := f.Fetch(context.Background(), "not a url"); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestRedditFetchWrapsProviderFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	f := &RedditFetcher{client: srv.Client(), userAgent: "test", backoff: time.Millisecond}
	_, err := f.Fetch(context.Background(), srv.URL+"/r/x/comments/y")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "could not fetch content from") {
		t.Errorf("err = %v, want could-not-fetch wrapping", err)
	}
}

func TestRedditFetchRejectsEmptyThread(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"data": {"children": []}}]`))
	}))
	defer srv.Close()

	f := &RedditFetcher{client: srv.Client(), userAgent: "test", backoff: time.Millisecond}
	if _, err := f.Fetch(context.Background(), srv.URL+"/r/x/comments/y"); err == nil {
		t.Fatal("expected error for empty thread")
	}
}
