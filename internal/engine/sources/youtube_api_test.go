package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/anatolykoptev/go_ytinsight/internal/engine"
	"google.golang.org/api/option"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func apiError(code int, reason string) map[string]any {
	return map[string]any{"error": map[string]any{
		"code":    code,
		"message": reason,
		"errors":  []map[string]any{{"reason": reason, "message": reason}},
	}}
}

func snippet(text string, likes int) map[string]any {
	return map[string]any{
		"textDisplay":       text,
		"authorDisplayName": "@author",
		"likeCount":         likes,
		"publishedAt":       "2024-01-01T00:00:00Z",
	}
}

func thread(id, text string, likes, replies int) map[string]any {
	t := map[string]any{
		"snippet": map[string]any{
			"topLevelComment": map[string]any{"id": id, "snippet": snippet(text, likes)},
			"totalReplyCount": replies,
		},
	}
	if replies > 0 {
		t["replies"] = map[string]any{"comments": []any{}}
	}
	return t
}

func fastPolicy() engine.RetryPolicy {
	return engine.RetryPolicy{MaxAttempts: 3, Backoff: engine.ConstantBackoff(time.Millisecond), Retryable: engine.RetryUnlessPermanent}
}

func newTestFetcher(t *testing.T, srv *httptest.Server, key, fallback string) *APIFetcher {
	t.Helper()
	f, err := NewAPIFetcher(context.Background(), key, fallback,
		[]APIOption{WithRetryPolicy(fastPolicy())},
		option.WithEndpoint(srv.URL+"/"),
	)
	if err != nil {
		t.Fatalf("NewAPIFetcher: %v", err)
	}
	return f
}

func TestAPIFetcherPaginationAndReplies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/videos"):
			writeJSON(w, 200, map[string]any{"items": []any{map[string]any{
				"statistics": map[string]any{"likeCount": "500", "commentCount": "3", "viewCount": "10000"},
			}}})
		case strings.HasSuffix(r.URL.Path, "/commentThreads"):
			if r.URL.Query().Get("order") != "relevance" || r.URL.Query().Get("textFormat") != "plainText" {
				t.Errorf("unexpected query: %s", r.URL.RawQuery)
			}
			if r.URL.Query().Get("pageToken") == "" {
				writeJSON(w, 200, map[string]any{
					"items":         []any{thread("c1", "first", 10, 2)},
					"nextPageToken": "p2",
				})
				return
			}
			writeJSON(w, 200, map[string]any{"items": []any{thread("c2", "second", 1, 0)}})
		case strings.HasSuffix(r.URL.Path, "/comments"):
			if r.URL.Query().Get("parentId") != "c1" {
				t.Errorf("unexpected parentId %q", r.URL.Query().Get("parentId"))
			}
			writeJSON(w, 200, map[string]any{"items": []any{
				map[string]any{"snippet": snippet("reply a", 3)},
				map[string]any{"snippet": snippet("reply b", 0)},
			}})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := newTestFetcher(t, srv, "key", "")
	set, err := f.Fetch(context.Background(), "https://www.youtube.com/watch?v=abc123")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if set.Stats.CommentCount != 3 || set.Stats.LikeCount != 500 || set.Stats.ViewCount != 10000 {
		t.Errorf("stats = %+v", set.Stats)
	}
	if len(set.Comments) != 2 {
		t.Fatalf("got %d comments, want 2", len(set.Comments))
	}
	if got := set.Comments[0]; got.Text != "first" || got.Likes != 10 || len(got.Replies) != 2 {
		t.Errorf("first comment = %+v", got)
	}
	if set.Comments[0].Replies[0].Text != "reply a" {
		t.Errorf("reply = %+v", set.Comments[0].Replies[0])
	}
	if len(set.Comments[1].Replies) != 0 {
		t.Errorf("second comment should have no replies")
	}
}

func TestAPIFetcherMaxComments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("maxResults"); got != "1" {
			t.Errorf("maxResults = %q, want 1", got)
		}
		writeJSON(w, 200, map[string]any{
			"items":         []any{thread("c1", "only", 1, 0), thread("c2", "extra", 1, 0)},
			"nextPageToken": "more",
		})
	}))
	defer srv.Close()

	f, err := NewAPIFetcher(context.Background(), "key", "",
		[]APIOption{WithRetryPolicy(fastPolicy()), WithMaxComments(1)},
		option.WithEndpoint(srv.URL+"/"))
	if err != nil {
		t.Fatal(err)
	}
	comments, err := f.FetchComments(context.Background(), "vid")
	if err != nil {
		t.Fatalf("FetchComments: %v", err)
	}
	if len(comments) != 1 {
		t.Errorf("got %d comments, want 1", len(comments))
	}
}

func TestAPIFetcherErrors(t *testing.T) {
	tests := []struct {
		name    string
		code    int
		reason  string
		wantErr error
	}{
		{"comments disabled", 403, "commentsDisabled", engine.ErrCommentsDisabled},
		{"quota", 403, "quotaExceeded", engine.ErrForbidden},
		{"not found", 404, "videoNotFound", engine.ErrVideoNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				writeJSON(w, tt.code, apiError(tt.code, tt.reason))
			}))
			defer srv.Close()

			f := newTestFetcher(t, srv, "key", "")
			_, err := f.FetchComments(context.Background(), "vid")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if n := calls.Load(); n != 1 {
				t.Errorf("permanent error retried: %d calls", n)
			}
		})
	}
}

func TestAPIFetcherCommentsDisabledStillReturnsStats(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/videos") {
			writeJSON(w, 200, map[string]any{"items": []any{map[string]any{
				"statistics": map[string]any{"likeCount": "7", "commentCount": "0", "viewCount": "99"},
			}}})
			return
		}
		writeJSON(w, 403, apiError(403, "commentsDisabled"))
	}))
	defer srv.Close()

	set, err := newTestFetcher(t, srv, "key", "").Fetch(context.Background(), "https://youtu.be/xyz")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(set.Comments) != 0 || set.Stats.ViewCount != 99 {
		t.Errorf("unexpected set: %+v", set)
	}
}

func TestAPIFetcherTransientExhaustedReturnsEmpty(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, 500, apiError(500, "backendError"))
	}))
	defer srv.Close()

	comments, err := newTestFetcher(t, srv, "key", "").FetchComments(context.Background(), "vid")
	if err != nil {
		t.Fatalf("expected empty result without error, got %v", err)
	}
	if len(comments) != 0 {
		t.Errorf("expected no comments, got %d", len(comments))
	}
	if n := calls.Load(); n < 3 {
		t.Errorf("expected at least 3 attempts, got %d", n)
	}
}

func TestAPIFetcherFallbackKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") == "bad" {
			writeJSON(w, 403, apiError(403, "quotaExceeded"))
			return
		}
		writeJSON(w, 200, map[string]any{"items": []any{map[string]any{
			"statistics": map[string]any{"likeCount": "1", "commentCount": "2", "viewCount": "3"},
		}}})
	}))
	defer srv.Close()

	stats, err := newTestFetcher(t, srv, "bad", "good").FetchStats(context.Background(), "vid")
	if err != nil {
		t.Fatalf("FetchStats: %v", err)
	}
	if stats.CommentCount != 2 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestAPIFetcherStatsNoItems(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, map[string]any{"items": []any{}})
	}))
	defer srv.Close()

	_, err := newTestFetcher(t, srv, "key", "").FetchStats(context.Background(), "vid")
	if !errors.Is(err, engine.ErrVideoNotFound) {
		t.Errorf("err = %v, want ErrVideoNotFound", err)
	}
}

func TestAPIFetcherInvalidURL(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := newTestFetcher(t, srv, "key", "").Fetch(context.Background(), "https://vimeo.com/123")
	if !errors.Is(err, engine.ErrInvalidURL) {
		t.Errorf("err = %v, want ErrInvalidURL", err)
	}
}

func ExampleExtractVideoID() {
	id, _ := ExtractVideoID("https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=42")
	fmt.Println(id)
	// Output: dQw4w9WgXcQ
}
