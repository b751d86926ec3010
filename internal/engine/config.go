package engine

import (
	"net/http"
	"time"
)

// Comment sources selectable via COMMENT_SOURCE or per request.
const (
	SourceAPI    = "api"
	SourceScrape = "scrape"
	SourceHybrid = "hybrid"
)

// Config holds all engine configuration, injected from main.
type Config struct {
	YouTubeAPIKey         string
	YouTubeAPIKeyFallback string
	YouTubeQPS            float64
	CommentSource         string // api | scrape | hybrid
	MaxComments           int    // 0 = no cap on the API path
	ScrapeMaxComments     int
	ScrapeHeadless        bool
	ScrapeScrollPause     time.Duration
	ScrapeMaxScrolls      int

	LLMProvider        string // openai | genai
	LLMAPIKey          string
	LLMAPIKeyFallbacks []string
	LLMAPIBase         string
	LLMModel           string
	LLMTemperature     float64
	LLMMaxTokens       int

	RetryMax  int
	RetryWait time.Duration

	StoreTTL             time.Duration
	StoreMaxEntries      int
	CacheTTL             time.Duration
	CacheMaxEntries      int
	CacheCleanupInterval time.Duration

	YtDlpPath  string
	FfmpegPath string
	TempDir    string

	HTTPClient    *http.Client
	BrowserClient *BrowserClient // nil = watch page fetched with HTTPClient
}

var cfg Config

// Cfg exposes the engine configuration for sub-packages (sources, analysis).
// Always points to the current cfg value.
var Cfg = &cfg

// Init initializes the engine with the given configuration.
func Init(c Config) {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	if c.RetryMax <= 0 {
		c.RetryMax = 3
	}
	if c.CommentSource == "" {
		c.CommentSource = SourceHybrid
	}
	cfg = c
	Cfg = &cfg
}

// DefaultRetryPolicy is the fixed-interval policy used for YouTube and LLM
// calls, driven by RETRY_MAX / RETRY_WAIT.
func DefaultRetryPolicy() RetryPolicy {
	wait := cfg.RetryWait
	if wait <= 0 {
		wait = time.Second
	}
	attempts := cfg.RetryMax
	if attempts <= 0 {
		attempts = 3
	}
	return RetryPolicy{
		MaxAttempts: attempts,
		Backoff:     ConstantBackoff(wait),
		Retryable:   RetryUnlessPermanent,
	}
}
