package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"

	"github.com/anatolykoptev/go_ytinsight/internal/engine"
)

// Innertube wire types and the POST primitive used by the transcript chain.

const (
	ytBaseURL           = "https://www.youtube.com"
	ytPlayerPath        = "/youtubei/v1/player"
	ytNextPath          = "/youtubei/v1/next"
	ytGetTranscriptPath = "/youtubei/v1/get_transcript"
	ytWebVersion        = "2.20250222.10.00"
	ytAndroidVersion    = "20.10.38"
	ytAndroidUA         = "com.google.android.youtube/" + ytAndroidVersion + " (Linux; U; Android 11) gzip"

	maxInnertubeBody = 3 << 20
)

type innertubeClient struct {
	ClientName        string `json:"clientName"`
	ClientVersion     string `json:"clientVersion"`
	AndroidSdkVersion int    `json:"androidSdkVersion,omitempty"`
	VisitorData       string `json:"visitorData,omitempty"`
	Hl                string `json:"hl,omitempty"`
	Gl                string `json:"gl,omitempty"`
}

type innertubeContext struct {
	Client innertubeClient `json:"client"`
}

type playerRequest struct {
	VideoID        string           `json:"videoId"`
	Context        innertubeContext `json:"context"`
	RacyCheckOk    bool             `json:"racyCheckOk"`
	ContentCheckOk bool             `json:"contentCheckOk"`
}

type playerResponse struct {
	Captions *struct {
		Tracklist struct {
			CaptionTracks []captionTrack `json:"captionTracks"`
		} `json:"playerCaptionsTracklistRenderer"`
	} `json:"captions"`
	PlayabilityStatus *struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"playabilityStatus"`
}

func (p playerResponse) tracks() []captionTrack {
	if p.Captions == nil {
		return nil
	}
	return p.Captions.Tracklist.CaptionTracks
}

type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"` // "asr" = auto-generated
}

// timedText covers both caption XML flavors: srv1 <text start dur> in seconds
// and srv3 <body><p t d> in milliseconds.
type timedText struct {
	Lines []struct {
		Start float64 `xml:"start,attr"`
		Dur   float64 `xml:"dur,attr"`
		Text  string  `xml:",innerxml"`
	} `xml:"text"`
	Paras []struct {
		T    int64  `xml:"t,attr"`
		D    int64  `xml:"d,attr"`
		Text string `xml:",innerxml"`
	} `xml:"body>p"`
}

type getTranscriptResponse struct {
	Actions []struct {
		UpdateEngagementPanelAction *struct {
			Content struct {
				TranscriptRenderer struct {
					Content struct {
						SearchPanel struct {
							Body struct {
								SegmentList struct {
									InitialSegments []struct {
										Segment *transcriptSegmentRenderer `json:"transcriptSegmentRenderer"`
									} `json:"initialSegments"`
								} `json:"transcriptSegmentListRenderer"`
							} `json:"body"`
						} `json:"transcriptSearchPanelRenderer"`
					} `json:"content"`
				} `json:"transcriptRenderer"`
			} `json:"content"`
		} `json:"updateEngagementPanelAction"`
	} `json:"actions"`
}

type transcriptSegmentRenderer struct {
	StartMs string `json:"startMs"`
	EndMs   string `json:"endMs"`
	Snippet struct {
		Runs []struct {
			Text string `json:"text"`
		} `json:"runs"`
	} `json:"snippet"`
}

// visitorID returns a random 11-char visitor id for anonymous Innertube calls.
func visitorID() string {
	const chars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"
	b := make([]byte, 11)
	for i := range b {
		b[i] = chars[rand.IntN(len(chars))] //nolint:gosec // not a secret
	}
	return string(b)
}

func webClient(visitor string) innertubeClient {
	return innertubeClient{
		ClientName:    "WEB",
		ClientVersion: ytWebVersion,
		VisitorData:   visitor,
		Hl:            "en",
		Gl:            "US",
	}
}

// postInnertube POSTs payload as JSON and returns the (size-capped) body.
func (t *Transcripts) postInnertube(ctx context.Context, path string, payload any, headers map[string]string) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	endpoint := t.baseURL + path + "?prettyPrint=false"

	resp, err := engine.RetryHTTP(ctx, t.policy, func(ctx context.Context) (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "*/*")
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		return t.client.Do(req)
	})
	if err != nil {
		return nil, fmt.Errorf("innertube %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("innertube %s: HTTP %d: %s", path, resp.StatusCode, snippet)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxInnertubeBody))
}

func webHeaders(visitor string) map[string]string {
	return map[string]string{
		"User-Agent":               engine.UserAgentChrome,
		"X-Youtube-Client-Name":    "1",
		"X-Youtube-Client-Version": ytWebVersion,
		"X-Goog-Visitor-Id":        visitor,
		"Origin":                   "https://www.youtube.com",
		"Referer":                  "https://www.youtube.com/",
	}
}

func androidHeaders() map[string]string {
	return map[string]string{
		"User-Agent":               ytAndroidUA,
		"X-Youtube-Client-Name":    "3",
		"X-Youtube-Client-Version": ytAndroidVersion,
	}
}
