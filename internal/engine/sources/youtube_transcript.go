package sources

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/anatolykoptev/go_ytinsight/internal/engine"
)

// Timed transcript fetching. Strategies, in order:
//  1. watch page ytInitialPlayerResponse -> caption track XML
//  2. WEB /next engagement panel -> /get_transcript
//  3. ANDROID /player -> caption track XML
//  4. yt-dlp subtitles (when a Media helper is attached)

const (
	playerResponseMarker = "ytInitialPlayerResponse = "
	maxWatchPage         = 6 << 20
	maxCaptionXML        = 2 << 20
)

var transcriptParamsRe = regexp.MustCompile(`"getTranscriptEndpoint":\{"params":"([^"]+)"`)

// Transcripts fetches timed captions for a video.
type Transcripts struct {
	client  *http.Client
	browser *engine.BrowserClient // optional, used for the watch page
	media   *Media                // optional, last resort
	policy  engine.RetryPolicy
	langs   []string
	baseURL string
}

// TranscriptOption customizes Transcripts.
type TranscriptOption func(*Transcripts)

// WithBrowserClient fetches the watch page with a Chrome TLS fingerprint.
func WithBrowserClient(bc *engine.BrowserClient) TranscriptOption {
	return func(t *Transcripts) { t.browser = bc }
}

// WithMediaFallback enables yt-dlp subtitles as the last strategy.
func WithMediaFallback(m *Media) TranscriptOption {
	return func(t *Transcripts) { t.media = m }
}

// WithLanguages sets the caption language preference (default "en").
func WithLanguages(langs ...string) TranscriptOption {
	return func(t *Transcripts) { t.langs = langs }
}

// WithBaseURL points every YouTube request at another host.
func WithBaseURL(u string) TranscriptOption {
	return func(t *Transcripts) { t.baseURL = strings.TrimRight(u, "/") }
}

// WithTranscriptRetryPolicy overrides the HTTP retry policy.
func WithTranscriptRetryPolicy(p engine.RetryPolicy) TranscriptOption {
	return func(t *Transcripts) { t.policy = p }
}

// NewTranscripts returns a fetcher using client for plain HTTP calls.
func NewTranscripts(client *http.Client, opts ...TranscriptOption) *Transcripts {
	if client == nil {
		client = http.DefaultClient
	}
	t := &Transcripts{
		client:  client,
		policy:  engine.HTTPRetryPolicy,
		langs:   []string{"en"},
		baseURL: ytBaseURL,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

type transcriptStrategy struct {
	name string
	fn   func(context.Context, string) ([]engine.TranscriptSegment, error)
}

// Fetch returns the timed transcript for videoID, trying each strategy in
// turn. ErrNoTranscript is returned when all of them fail.
func (t *Transcripts) Fetch(ctx context.Context, videoID string) ([]engine.TranscriptSegment, error) {
	engine.IncrTranscript()

	strategies := []transcriptStrategy{
		{"watch page", t.viaWatchPage},
		{"engagement panel", t.viaEngagementPanel},
		{"android player", t.viaPlayer},
	}
	if t.media != nil {
		strategies = append(strategies, transcriptStrategy{"yt-dlp", t.media.Subtitles})
	}

	var errs []error
	for _, s := range strategies {
		segs, err := s.fn(ctx, videoID)
		if err == nil && len(segs) > 0 {
			slog.Debug("transcript fetched", slog.String("id", videoID),
				slog.String("via", s.name), slog.Int("segments", len(segs)))
			return segs, nil
		}
		if err == nil {
			err = errors.New("empty transcript")
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		slog.Warn("transcript: strategy failed", slog.String("id", videoID),
			slog.String("via", s.name), slog.Any("error", err))
		errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
	}
	return nil, fmt.Errorf("%w: %w", engine.ErrNoTranscript, errors.Join(errs...))
}

func (t *Transcripts) viaWatchPage(ctx context.Context, videoID string) ([]engine.TranscriptSegment, error) {
	page, err := t.watchPage(ctx, videoID)
	if err != nil {
		return nil, err
	}
	idx := strings.Index(string(page), playerResponseMarker)
	if idx < 0 {
		return nil, errors.New("ytInitialPlayerResponse not found")
	}
	raw := extractJSON(page[idx+len(playerResponseMarker):])
	if raw == nil {
		return nil, errors.New("unterminated ytInitialPlayerResponse")
	}
	var player playerResponse
	if err := json.Unmarshal(raw, &player); err != nil {
		return nil, fmt.Errorf("decode ytInitialPlayerResponse: %w", err)
	}
	return t.fromTracks(ctx, player)
}

func (t *Transcripts) watchPage(ctx context.Context, videoID string) ([]byte, error) {
	pageURL := t.baseURL + "/watch?v=" + url.QueryEscape(videoID)

	if t.browser != nil {
		headers := engine.ChromeHeaders()
		headers["accept"] = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
		headers["accept-language"] = "en-US,en;q=0.9"
		return engine.Retry(ctx, t.policy, func(context.Context) ([]byte, error) {
			data, _, status, err := t.browser.Do(http.MethodGet, pageURL, headers, nil)
			if err != nil {
				return nil, err
			}
			if status != http.StatusOK {
				return nil, fmt.Errorf("watch page status %d", status)
			}
			return data, nil
		})
	}

	resp, err := engine.RetryHTTP(ctx, t.policy, func(ctx context.Context) (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", engine.RandomUserAgent())
		req.Header.Set("Accept-Language", "en-US,en;q=0.9")
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		return t.client.Do(req)
	})
	if err != nil {
		return nil, fmt.Errorf("watch page: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("watch page status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxWatchPage))
}

func (t *Transcripts) viaEngagementPanel(ctx context.Context, videoID string) ([]engine.TranscriptSegment, error) {
	visitor := visitorID()
	next, err := t.postInnertube(ctx, ytNextPath, map[string]any{
		"videoId": videoID,
		"context": map[string]any{
			"client":  webClient(visitor),
			"user":    map[string]any{"enableSafetyMode": false},
			"request": map[string]any{"useSsl": true},
		},
	}, webHeaders(visitor))
	if err != nil {
		return nil, err
	}

	params, err := transcriptParams(next)
	if err != nil {
		return nil, err
	}

	data, err := t.postInnertube(ctx, ytGetTranscriptPath, map[string]any{
		"params":  params,
		"context": innertubeContext{Client: webClient(visitor)},
	}, webHeaders(visitor))
	if err != nil {
		return nil, err
	}

	var resp getTranscriptResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("decode get_transcript: %w", err)
	}
	return panelSegments(resp), nil
}

// transcriptParams pulls the get_transcript token out of a /next response.
// The token is URL-encoded there; /get_transcript wants it decoded.
func transcriptParams(next []byte) (string, error) {
	m := transcriptParamsRe.FindSubmatch(next)
	if len(m) < 2 {
		return "", errors.New("getTranscriptEndpoint not found")
	}
	if decoded, err := url.QueryUnescape(string(m[1])); err == nil {
		return decoded, nil
	}
	return string(m[1]), nil
}

func panelSegments(resp getTranscriptResponse) []engine.TranscriptSegment {
	var out []engine.TranscriptSegment
	for _, action := range resp.Actions {
		if action.UpdateEngagementPanelAction == nil {
			continue
		}
		segs := action.UpdateEngagementPanelAction.Content.TranscriptRenderer.Content.
			SearchPanel.Body.SegmentList.InitialSegments
		for _, s := range segs {
			if s.Segment == nil {
				continue
			}
			var sb strings.Builder
			for _, run := range s.Segment.Snippet.Runs {
				sb.WriteString(run.Text)
			}
			text := strings.TrimSpace(sb.String())
			if text == "" {
				continue
			}
			startMs, _ := strconv.ParseInt(s.Segment.StartMs, 10, 64)
			endMs, _ := strconv.ParseInt(s.Segment.EndMs, 10, 64)
			out = append(out, engine.TranscriptSegment{
				Start:    float64(startMs) / 1000,
				Duration: float64(max(endMs-startMs, 0)) / 1000,
				Text:     text,
			})
		}
	}
	return out
}

func (t *Transcripts) viaPlayer(ctx context.Context, videoID string) ([]engine.TranscriptSegment, error) {
	data, err := t.postInnertube(ctx, ytPlayerPath, playerRequest{
		VideoID: videoID,
		Context: innertubeContext{Client: innertubeClient{
			ClientName:        "ANDROID",
			ClientVersion:     ytAndroidVersion,
			AndroidSdkVersion: 30,
			Hl:                "en",
			Gl:                "US",
		}},
		RacyCheckOk:    true,
		ContentCheckOk: true,
	}, androidHeaders())
	if err != nil {
		return nil, err
	}
	var player playerResponse
	if err := json.Unmarshal(data, &player); err != nil {
		return nil, fmt.Errorf("decode player: %w", err)
	}
	if player.Captions == nil && player.PlayabilityStatus != nil && player.PlayabilityStatus.Reason != "" {
		return nil, fmt.Errorf("captions unavailable: %s", player.PlayabilityStatus.Reason)
	}
	return t.fromTracks(ctx, player)
}

func (t *Transcripts) fromTracks(ctx context.Context, player playerResponse) ([]engine.TranscriptSegment, error) {
	tracks := player.tracks()
	if len(tracks) == 0 {
		return nil, errors.New("no caption tracks")
	}
	track, ok := pickTrack(tracks, t.langs)
	if !ok {
		return nil, errors.New("every caption track requires a PoToken")
	}
	return t.timedText(ctx, track.BaseURL)
}

// pickTrack prefers a manual track in a preferred language, then an
// auto-generated one, then any English track. Tracks marked exp=xpe need a
// browser PoToken and are skipped.
func pickTrack(tracks []captionTrack, langs []string) (captionTrack, bool) {
	usable := make([]captionTrack, 0, len(tracks))
	for _, tr := range tracks {
		if !strings.Contains(tr.BaseURL, "&exp=xpe") {
			usable = append(usable, tr)
		}
	}
	if len(usable) == 0 {
		return captionTrack{}, false
	}
	for _, lang := range langs {
		for _, tr := range usable {
			if tr.LanguageCode == lang && tr.Kind != "asr" {
				return tr, true
			}
		}
	}
	for _, lang := range langs {
		for _, tr := range usable {
			if tr.LanguageCode == lang {
				return tr, true
			}
		}
	}
	for _, tr := range usable {
		if strings.HasPrefix(tr.LanguageCode, "en") {
			return tr, true
		}
	}
	return usable[0], true
}

func (t *Transcripts) timedText(ctx context.Context, captionURL string) ([]engine.TranscriptSegment, error) {
	if strings.HasPrefix(captionURL, "/") {
		captionURL = t.baseURL + captionURL
	}
	resp, err := engine.RetryHTTP(ctx, t.policy, func(ctx context.Context) (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, captionURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", engine.UserAgentBot)
		return t.client.Do(req)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch captions: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxCaptionXML))
	if err != nil {
		return nil, err
	}
	return parseTimedText(body)
}

func parseTimedText(body []byte) ([]engine.TranscriptSegment, error) {
	var tt timedText
	if err := xml.Unmarshal(body, &tt); err != nil {
		return nil, fmt.Errorf("parse caption XML: %w", err)
	}
	out := make([]engine.TranscriptSegment, 0, len(tt.Lines)+len(tt.Paras))
	for _, l := range tt.Lines {
		if text := captionText(l.Text); text != "" {
			out = append(out, engine.TranscriptSegment{Start: l.Start, Duration: l.Dur, Text: text})
		}
	}
	for _, p := range tt.Paras {
		if text := captionText(p.Text); text != "" {
			out = append(out, engine.TranscriptSegment{
				Start:    float64(p.T) / 1000,
				Duration: float64(p.D) / 1000,
				Text:     text,
			})
		}
	}
	return out, nil
}

// captionText decodes caption markup; YouTube double-escapes entities.
func captionText(raw string) string {
	return engine.CleanHTML(html.UnescapeString(raw))
}

// extractJSON returns the balanced JSON object at the start of data, or nil.
func extractJSON(data []byte) []byte {
	depth := 0
	inString, escaped := false, false
	for i, c := range data {
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return data[:i+1]
			}
		}
	}
	return nil
}

// ClipSegments keeps the segments overlapping [start, end). end <= 0 means
// until the end of the video.
func ClipSegments(segs []engine.TranscriptSegment, start, end time.Duration) []engine.TranscriptSegment {
	from := start.Seconds()
	to := end.Seconds()
	out := make([]engine.TranscriptSegment, 0, len(segs))
	for _, s := range segs {
		if s.Start < from && s.Start+s.Duration <= from {
			continue
		}
		if end > 0 && s.Start >= to {
			continue
		}
		out = append(out, s)
	}
	return out
}

// JoinSegments concatenates segment text with single spaces.
func JoinSegments(segs []engine.TranscriptSegment) string {
	parts := make([]string, 0, len(segs))
	for _, s := range segs {
		parts = append(parts, s.Text)
	}
	return strings.Join(parts, " ")
}
