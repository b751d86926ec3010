package sources

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/anatolykoptev/go_ytinsight/internal/engine"
	"github.com/asticode/go-astisub"
)

const srv1XML = `<?xml version="1.0" encoding="utf-8" ?><transcript>` +
	`<text start="0.5" dur="2.0">hello &amp;#39;world&amp;#39;</text>` +
	`<text start="2.5" dur="1.5">second line</text>` +
	`<text start="4" dur="1"></text>` +
	`</transcript>`

const srv3XML = `<timedtext format="3"><body>` +
	`<p t="1000" d="1500">from <s>srv3</s></p>` +
	`<p t="3000" d="500">next</p>` +
	`</body></timedtext>`

func TestParseTimedText(t *testing.T) {
	segs, err := parseTimedText([]byte(srv1XML))
	if err != nil {
		t.Fatal(err)
	}
	if len(segs) != 2 {
		t.Fatalf("got %d segments, want 2", len(segs))
	}
	if segs[0].Start != 0.5 || segs[0].Duration != 2 || segs[0].Text != "hello 'world'" {
		t.Errorf("segment 0 = %+v", segs[0])
	}

	segs, err = parseTimedText([]byte(srv3XML))
	if err != nil {
		t.Fatal(err)
	}
	if len(segs) != 2 || segs[0].Start != 1 || segs[0].Duration != 1.5 || segs[0].Text != "from srv3" {
		t.Errorf("srv3 segments = %+v", segs)
	}

	if _, err := parseTimedText([]byte("<broken")); err == nil {
		t.Error("expected XML error")
	}
}

func TestPickTrack(t *testing.T) {
	tracks := []captionTrack{
		{BaseURL: "u1&exp=xpe", LanguageCode: "en"},
		{BaseURL: "u2", LanguageCode: "de"},
		{BaseURL: "u3", LanguageCode: "en", Kind: "asr"},
		{BaseURL: "u4", LanguageCode: "en-GB"},
	}
	tests := []struct {
		name  string
		langs []string
		want  string
	}{
		{"preferred asr over others", []string{"en"}, "u3"},
		{"manual german", []string{"de"}, "u2"},
		{"english fallback", []string{"fr"}, "u3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := pickTrack(tracks, tt.langs)
			if !ok || got.BaseURL != tt.want {
				t.Errorf("pickTrack = %q, %v; want %q", got.BaseURL, ok, tt.want)
			}
		})
	}

	if _, ok := pickTrack([]captionTrack{{BaseURL: "x&exp=xpe"}}, []string{"en"}); ok {
		t.Error("PoToken-only tracks must be rejected")
	}
}

func TestExtractJSON(t *testing.T) {
	in := []byte(`{"a":"}{","b":{"c":"\"}"}};var x = 1;`)
	if got := string(extractJSON(in)); got != `{"a":"}{","b":{"c":"\"}"}}` {
		t.Errorf("extractJSON = %s", got)
	}
	if extractJSON([]byte(`{"open": {`)) != nil {
		t.Error("unterminated object must return nil")
	}
}

func TestTranscriptParams(t *testing.T) {
	got, err := transcriptParams([]byte(`..."getTranscriptEndpoint":{"params":"Cgt%3D%3D"}...`))
	if err != nil || got != "Cgt==" {
		t.Errorf("transcriptParams = %q, %v", got, err)
	}
	if _, err := transcriptParams([]byte(`{}`)); err == nil {
		t.Error("expected error when token missing")
	}
}

func TestClipSegments(t *testing.T) {
	segs := []engine.TranscriptSegment{
		{Start: 0, Duration: 5, Text: "a"},
		{Start: 5, Duration: 5, Text: "b"},
		{Start: 10, Duration: 5, Text: "c"},
		{Start: 15, Duration: 5, Text: "d"},
	}
	tests := []struct {
		name       string
		start, end time.Duration
		want       string
	}{
		{"full", 0, 0, "a b c d"},
		{"from middle", 7 * time.Second, 0, "b c d"},
		{"window", 5 * time.Second, 15 * time.Second, "b c"},
		{"boundary start", 10 * time.Second, 11 * time.Second, "c"},
		{"past end", 30 * time.Second, 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := JoinSegments(ClipSegments(segs, tt.start, tt.end)); got != tt.want {
				t.Errorf("clip = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSubtitleSegments(t *testing.T) {
	vtt := "WEBVTT\n\n" +
		"00:00:01.000 --> 00:00:03.000\nhello there\n\n" +
		"00:00:03.000 --> 00:00:04.000\nhello there\n\n" +
		"00:00:04.000 --> 00:00:06.500\ngeneral <c>kenobi</c>\n"
	subs, err := astisub.ReadFromWebVTT(strings.NewReader(vtt))
	if err != nil {
		t.Fatalf("ReadFromWebVTT: %v", err)
	}
	segs := subtitleSegments(subs)
	if len(segs) != 2 {
		t.Fatalf("got %d segments, want 2 (rolling duplicate dropped): %+v", len(segs), segs)
	}
	if segs[0].Start != 1 || segs[0].Duration != 2 {
		t.Errorf("segment 0 timing = %+v", segs[0])
	}
	if segs[1].Duration != 2.5 || !strings.Contains(segs[1].Text, "general") {
		t.Errorf("segment 1 = %+v", segs[1])
	}
}

func fastHTTPPolicy() engine.RetryPolicy {
	return engine.RetryPolicy{MaxAttempts: 1}
}

func TestTranscriptsWatchPage(t *testing.T) {
	var srvURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/watch":
			fmt.Fprintf(w, `<html><script>var ytInitialPlayerResponse = {"captions":{"playerCaptionsTracklistRenderer":{"captionTracks":[{"baseUrl":"%s/api/timedtext?v=x","languageCode":"en"}]}}};</script></html>`, srvURL)
		case "/api/timedtext":
			_, _ = w.Write([]byte(srv1XML))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()
	srvURL = srv.URL

	tr := NewTranscripts(srv.Client(), WithBaseURL(srv.URL), WithTranscriptRetryPolicy(fastHTTPPolicy()))
	segs, err := tr.Fetch(context.Background(), "x")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(segs) != 2 || segs[1].Text != "second line" {
		t.Errorf("segments = %+v", segs)
	}
}

func TestTranscriptsFallsBackToPlayer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/watch":
			_, _ = w.Write([]byte("<html>consent wall</html>"))
		case ytNextPath:
			_, _ = w.Write([]byte(`{"engagementPanels":[]}`))
		case ytPlayerPath:
			if r.Header.Get("X-Youtube-Client-Name") != "3" {
				t.Errorf("player call must use the ANDROID client")
			}
			_, _ = w.Write([]byte(`{"captions":{"playerCaptionsTracklistRenderer":{"captionTracks":[{"baseUrl":"/api/timedtext?v=y","languageCode":"en"}]}}}`))
		case "/api/timedtext":
			_, _ = w.Write([]byte(srv3XML))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	tr := NewTranscripts(srv.Client(), WithBaseURL(srv.URL), WithTranscriptRetryPolicy(fastHTTPPolicy()))
	segs, err := tr.Fetch(context.Background(), "y")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(segs) != 2 || segs[0].Text != "from srv3" {
		t.Errorf("segments = %+v", segs)
	}
}

func TestTranscriptsAllFail(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	tr := NewTranscripts(srv.Client(), WithBaseURL(srv.URL), WithTranscriptRetryPolicy(fastHTTPPolicy()))
	_, err := tr.Fetch(context.Background(), "z")
	if !errors.Is(err, engine.ErrNoTranscript) {
		t.Errorf("err = %v, want ErrNoTranscript", err)
	}
}
