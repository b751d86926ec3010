package sources

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/anatolykoptev/go_ytinsight/internal/engine"
)

const testChannelID = "UCabcdefghijklmnopqrstuv"

func TestParseChannelURL(t *testing.T) {
	tests := []struct {
		in      string
		want    ChannelRef
		wantErr error
	}{
		{"https://www.youtube.com/channel/" + testChannelID, ChannelRef{ID: testChannelID}, nil},
		{"https://www.youtube.com/channel/" + testChannelID + "/videos", ChannelRef{ID: testChannelID}, nil},
		{testChannelID, ChannelRef{ID: testChannelID}, nil},
		{"https://youtube.com/@GoogleDevelopers", ChannelRef{Handle: "@GoogleDevelopers"}, nil},
		{"youtube.com/@go-lang/featured", ChannelRef{Handle: "@go-lang"}, nil},
		{"@somebody", ChannelRef{Handle: "@somebody"}, nil},
		{"https://m.youtube.com/user/oldname", ChannelRef{Username: "oldname"}, nil},
		{"", ChannelRef{}, engine.ErrMissingParams},
		{"https://vimeo.com/@someone", ChannelRef{}, engine.ErrInvalidParams},
		{"https://youtu.be/@someone", ChannelRef{}, engine.ErrInvalidParams},
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", ChannelRef{}, engine.ErrInvalidParams},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseChannelURL(tt.in)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("ParseChannelURL(%q) = %+v, %v; want %+v", tt.in, got, err, tt.want)
			}
		})
	}
}

func playlistItem(n int) map[string]any {
	id := fmt.Sprintf("vid%08d", n)
	return map[string]any{
		"snippet":        map[string]any{"title": "Video " + strconv.Itoa(n), "resourceId": map[string]any{"videoId": id}},
		"contentDetails": map[string]any{"videoId": id, "videoPublishedAt": "2024-05-01T00:00:00Z"},
	}
}

// channelServer serves a channel with total uploads, 50 per page.
func channelServer(t *testing.T, total int, lookups *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch {
		case strings.HasSuffix(r.URL.Path, "/channels") && q.Get("forHandle") != "":
			lookups.Add(1)
			if q.Get("forHandle") != "@known" {
				writeJSON(w, 200, map[string]any{"items": []any{}})
				return
			}
			writeJSON(w, 200, map[string]any{"items": []any{map[string]any{"id": testChannelID}}})
		case strings.HasSuffix(r.URL.Path, "/channels"):
			if q.Get("id") != testChannelID {
				writeJSON(w, 200, map[string]any{"items": []any{}})
				return
			}
			writeJSON(w, 200, map[string]any{"items": []any{map[string]any{
				"id":             testChannelID,
				"snippet":        map[string]any{"title": "Known Channel"},
				"contentDetails": map[string]any{"relatedPlaylists": map[string]any{"uploads": "UU" + testChannelID[2:]}},
			}}})
		case strings.HasSuffix(r.URL.Path, "/playlistItems"):
			if q.Get("playlistId") != "UU"+testChannelID[2:] {
				t.Errorf("playlistId = %q", q.Get("playlistId"))
			}
			start, _ := strconv.Atoi(strings.TrimPrefix(q.Get("pageToken"), "p"))
			size, _ := strconv.Atoi(q.Get("maxResults"))
			end := min(start+size, total)
			items := []any{}
			for i := start; i < end; i++ {
				items = append(items, playlistItem(i))
			}
			resp := map[string]any{"items": items}
			if end < total {
				resp["nextPageToken"] = "p" + strconv.Itoa(end)
			}
			writeJSON(w, 200, resp)
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestChannelVideos(t *testing.T) {
	var lookups atomic.Int32
	srv := channelServer(t, 120, &lookups)
	defer srv.Close()
	f := newTestFetcher(t, srv, "key", "")
	ctx := context.Background()

	got, err := f.ChannelVideos(ctx, "https://www.youtube.com/@known", 0)
	if err != nil {
		t.Fatalf("ChannelVideos: %v", err)
	}
	if got.ChannelID != testChannelID || got.ChannelTitle != "Known Channel" {
		t.Errorf("channel = %q %q", got.ChannelID, got.ChannelTitle)
	}
	if got.TotalVideos != DefaultChannelVideos || len(got.Videos) != DefaultChannelVideos {
		t.Errorf("got %d videos, want %d", len(got.Videos), DefaultChannelVideos)
	}
	if v := got.Videos[0]; v.VideoID != "vid00000000" || v.Title != "Video 0" || v.URL != WatchURL("vid00000000") {
		t.Errorf("first video = %+v", v)
	}
	if lookups.Load() != 1 {
		t.Errorf("handle lookups = %d, want 1", lookups.Load())
	}

	all, err := f.ChannelVideos(ctx, "https://www.youtube.com/channel/"+testChannelID, 1000)
	if err != nil {
		t.Fatalf("ChannelVideos: %v", err)
	}
	if all.TotalVideos != 120 {
		t.Errorf("paged total = %d, want 120", all.TotalVideos)
	}
	if lookups.Load() != 1 {
		t.Error("channel id URL should not need a handle lookup")
	}
}

func TestChannelVideosErrors(t *testing.T) {
	var lookups atomic.Int32
	srv := channelServer(t, 3, &lookups)
	defer srv.Close()
	f := newTestFetcher(t, srv, "key", "")
	ctx := context.Background()

	if _, err := f.ChannelVideos(ctx, "https://www.youtube.com/@unknown", 10); !errors.Is(err, engine.ErrNotFound) {
		t.Errorf("unknown handle: %v", err)
	}
	if n := lookups.Load(); n != 1 {
		t.Errorf("not found retried: %d lookups", n)
	}
	if _, err := f.ChannelVideos(ctx, "UCzzzzzzzzzzzzzzzzzzzzzz", 10); !errors.Is(err, engine.ErrNotFound) {
		t.Errorf("unknown id: %v", err)
	}
	if _, err := f.ChannelVideos(ctx, "not a channel", 10); !errors.Is(err, engine.ErrInvalidParams) {
		t.Errorf("bad url: %v", err)
	}
}
