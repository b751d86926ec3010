// go_ytinsight: YouTube comment analysis backend.
//
// Serves the REST API (gin) on HTTP_PORT and the same operations as MCP
// tools on MCP_PORT. Set MCP_PORT=off to run the REST API alone.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/anatolykoptev/go-kit/env"
	"github.com/anatolykoptev/go-mcpserver"
	stealth "github.com/anatolykoptev/go-stealth"
	"github.com/anatolykoptev/go-stealth/proxypool"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/anatolykoptev/go_ytinsight/internal/apiserver"
	"github.com/anatolykoptev/go_ytinsight/internal/engine"
	"github.com/anatolykoptev/go_ytinsight/internal/engine/analysis"
	"github.com/anatolykoptev/go_ytinsight/internal/engine/sources"
	"github.com/anatolykoptev/go_ytinsight/internal/history"
	"github.com/anatolykoptev/go_ytinsight/internal/mcptools"
)

var version = "dev"

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("dotenv: load failed", slog.Any("error", err))
	}

	httpPort := env.Str("HTTP_PORT", "8000")
	mcpPort := env.Str("MCP_PORT", "8891")

	c := loadConfig()
	engine.Init(c)

	ctx := context.Background()
	svc, cleanup := buildService(ctx, c)
	defer cleanup()

	gin.SetMode(env.Str("GIN_MODE", gin.ReleaseMode))
	srv := &http.Server{
		Addr:              ":" + httpPort,
		Handler:           apiserver.NewRouter(svc),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      10 * time.Minute,
	}
	go func() {
		slog.Info("http: listening", slog.String("port", httpPort), slog.String("version", version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http: server failed", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	if mcpPort == "off" {
		sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
		<-sigCtx.Done()
		stop()
	} else {
		runMCP(svc, mcpPort)
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http: shutdown failed", slog.Any("error", err))
	}
	slog.Info("stopped")
}

func runMCP(svc *analysis.Service, port string) {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "go_ytinsight",
		Version: version,
	}, nil)
	n := mcptools.RegisterTools(server, svc)
	slog.Info("mcp: tools registered", slog.Int("count", n), slog.String("port", port))

	if err := mcpserver.Run(server, mcpserver.Config{
		Name:         "go_ytinsight",
		Version:      version,
		Port:         port,
		WriteTimeout: 600 * time.Second,
		Metrics:      engine.FormatMetrics,
	}); err != nil {
		slog.Error("mcp: server failed", slog.Any("error", err))
	}
}

func loadConfig() engine.Config {
	c := envConfig()

	var opts []stealth.ClientOption
	opts = append(opts, stealth.WithTimeout(20))
	if apiKey := env.Str("WEBSHARE_API_KEY", ""); apiKey != "" {
		pool, err := proxypool.NewWebshare(apiKey)
		if err != nil {
			slog.Warn("proxy pool init failed, running without proxy", slog.Any("error", err))
		} else {
			opts = append(opts, stealth.WithProxyPool(pool))
			slog.Info("proxy pool initialized", slog.Int("proxies", pool.Len()))
		}
	}
	bc, err := stealth.NewClient(opts...)
	if err != nil {
		slog.Warn("stealth client init failed, transcripts use plain HTTP", slog.Any("error", err))
	} else {
		c.BrowserClient = bc
	}
	return c
}

// envConfig reads the engine settings from the environment.
func envConfig() engine.Config {
	llmKey := env.Str("LLM_API_KEY", "")
	if llmKey == "" {
		llmKey = env.Str("GEMINI_API_KEY", "")
	}
	return engine.Config{
		YouTubeAPIKey:         env.Str("YOUTUBE_API_KEY", ""),
		YouTubeAPIKeyFallback: env.Str("YOUTUBE_API_KEY_FALLBACK", ""),
		YouTubeQPS:            env.Float("YOUTUBE_QPS", 5),
		CommentSource:         env.Str("COMMENT_SOURCE", engine.SourceHybrid),
		MaxComments:           env.Int("MAX_COMMENTS", 0),
		ScrapeMaxComments:     env.Int("SCRAPE_MAX_COMMENTS", 10000),
		ScrapeHeadless:        envBool("SCRAPE_HEADLESS", true),
		ScrapeScrollPause:     env.Duration("SCRAPE_SCROLL_PAUSE", 2*time.Second),
		ScrapeMaxScrolls:      env.Int("SCRAPE_MAX_SCROLLS", 100),

		LLMProvider:        env.Str("LLM_PROVIDER", engine.ProviderOpenAI),
		LLMAPIKey:          llmKey,
		LLMAPIKeyFallbacks: env.List("LLM_API_KEY_FALLBACKS", ""),
		LLMAPIBase:         env.Str("LLM_API_BASE", "https://generativelanguage.googleapis.com/v1beta/openai"),
		LLMModel:           env.Str("LLM_MODEL", "gemini-2.0-flash"),
		LLMTemperature:     env.Float("LLM_TEMPERATURE", 0.7),
		LLMMaxTokens:       env.Int("LLM_MAX_TOKENS", 2048),

		RetryMax:  env.Int("RETRY_MAX", 3),
		RetryWait: env.Duration("RETRY_WAIT", time.Second),

		StoreTTL:             env.Duration("STORE_TTL", 24*time.Hour),
		StoreMaxEntries:      env.Int("STORE_MAX_ENTRIES", 500),
		CacheTTL:             env.Duration("CACHE_TTL", 6*time.Hour),
		CacheMaxEntries:      env.Int("CACHE_MAX_ENTRIES", 1000),
		CacheCleanupInterval: env.Duration("CACHE_CLEANUP_INTERVAL", 5*time.Minute),

		YtDlpPath:  env.Str("YTDLP_PATH", ""),
		FfmpegPath: env.Str("FFMPEG_PATH", ""),
		TempDir:    env.Str("TEMP_DIR", ""),

		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     60 * time.Second,
			},
		},
	}
}

// buildService wires sources, model, stores and history into a Service.
// The returned cleanup releases background workers and connections.
func buildService(ctx context.Context, c engine.Config) (*analysis.Service, func()) {
	rdb := engine.ConnectRedis(env.Str("REDIS_URL", ""))
	storeCache := engine.NewTieredCache("comments", rdb, c.StoreTTL, c.StoreMaxEntries, c.CacheCleanupInterval)
	engine.InitCache(rdb, c.CacheTTL, c.CacheMaxEntries, c.CacheCleanupInterval)

	llm, err := engine.NewLLM(ctx, c)
	switch {
	case err != nil:
		slog.Error("llm init failed, AI endpoints disabled", slog.Any("error", err))
	case llm == nil:
		slog.Warn("LLM_API_KEY not set, AI endpoints disabled")
	default:
		slog.Info("llm ready", slog.String("provider", c.LLMProvider), slog.String("model", c.LLMModel))
	}

	media := sources.NewMedia(c.YtDlpPath, c.FfmpegPath, c.TempDir)
	scraper := sources.NewScraper(
		sources.WithHeadless(c.ScrapeHeadless),
		sources.WithScrapeLimits(c.ScrapeMaxComments, c.ScrapeMaxScrolls, c.ScrapeScrollPause),
		sources.WithUserAgent(engine.RandomUserAgent()),
	)
	transcripts := sources.NewTranscripts(c.HTTPClient,
		sources.WithBrowserClient(c.BrowserClient),
		sources.WithMediaFallback(media),
		sources.WithLanguages(env.List("TRANSCRIPT_LANGUAGES", "en")...),
	)
	svc := &analysis.Service{
		Scraper:     scraper,
		Source:      c.CommentSource,
		LLM:         llm,
		Store:       engine.NewCommentStore(storeCache),
		Transcripts: transcripts,
		Frames:      media,
	}
	if c.YouTubeAPIKey != "" {
		api, err := sources.NewAPIFetcher(ctx, c.YouTubeAPIKey, c.YouTubeAPIKeyFallback, []sources.APIOption{
			sources.WithMaxComments(c.MaxComments),
			sources.WithQPS(c.YouTubeQPS),
		})
		if err != nil {
			slog.Error("youtube api init failed, scraping only", slog.Any("error", err))
		} else {
			svc.API = api
			svc.Channels = api
		}
	} else {
		slog.Warn("YOUTUBE_API_KEY not set, comments are scraped")
	}

	var pruner *history.Pruner
	repo, err := history.Open(ctx, env.Str("DATABASE_URL", ""), env.Str("HISTORY_DB_PATH", ""))
	if err != nil {
		slog.Error("history init failed, analyses are not recorded", slog.Any("error", err))
	} else {
		svc.History = repo
		pruner, err = history.NewPruner(repo, env.Duration("HISTORY_RETENTION", 30*24*time.Hour), env.Str("HISTORY_PRUNE_SCHEDULE", "@hourly"))
		if err != nil {
			slog.Error("history pruner disabled", slog.Any("error", err))
		} else {
			pruner.Start()
		}
	}

	return svc, func() {
		if pruner != nil {
			pruner.Stop()
		}
		if repo != nil {
			repo.Close()
		}
		storeCache.Close()
		if rdb != nil {
			rdb.Close()
		}
	}
}

func envBool(key string, def bool) bool {
	b, err := strconv.ParseBool(env.Str(key, strconv.FormatBool(def)))
	if err != nil {
		return def
	}
	return b
}
