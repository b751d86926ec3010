package sources

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/anatolykoptev/go_ytinsight/internal/engine"
	"golang.org/x/time/rate"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

// YouTube Data API v3 comment and statistics fetching.

const (
	ytPageSize       = 100 // provider max for commentThreads/comments
	ytReasonDisabled = "commentsDisabled"
)

// APIFetcher fetches comments and statistics through the Data API.
// A fallback key is tried when the primary one is rejected with 403.
type APIFetcher struct {
	primary     *youtube.Service
	fallback    *youtube.Service // nil = no fallback key
	limiter     *rate.Limiter
	policy      engine.RetryPolicy
	maxComments int // 0 = unlimited
}

// APIOption customizes an APIFetcher.
type APIOption func(*APIFetcher)

// WithMaxComments caps the number of top-level comments fetched.
func WithMaxComments(n int) APIOption {
	return func(f *APIFetcher) { f.maxComments = n }
}

// WithRetryPolicy overrides the retry policy used for each fetch.
func WithRetryPolicy(p engine.RetryPolicy) APIOption {
	return func(f *APIFetcher) { f.policy = p }
}

// WithQPS paces Data API calls; qps <= 0 disables pacing.
func WithQPS(qps float64) APIOption {
	return func(f *APIFetcher) {
		if qps <= 0 {
			f.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		f.limiter = rate.NewLimiter(rate.Limit(qps), max(1, int(qps)))
	}
}

// NewAPIFetcher builds the Data API services for the primary and optional
// fallback key. clientOpts are appended to every service (tests point them
// at a local endpoint).
func NewAPIFetcher(ctx context.Context, apiKey, fallbackKey string, opts []APIOption, clientOpts ...option.ClientOption) (*APIFetcher, error) {
	if apiKey == "" {
		return nil, errors.New("youtube: API key is required")
	}
	primary, err := youtube.NewService(ctx, append([]option.ClientOption{option.WithAPIKey(apiKey)}, clientOpts...)...)
	if err != nil {
		return nil, fmt.Errorf("youtube.NewService: %w", err)
	}
	f := &APIFetcher{
		primary: primary,
		limiter: rate.NewLimiter(rate.Inf, 1),
		policy:  engine.DefaultRetryPolicy(),
	}
	if fallbackKey != "" && fallbackKey != apiKey {
		fb, err := youtube.NewService(ctx, append([]option.ClientOption{option.WithAPIKey(fallbackKey)}, clientOpts...)...)
		if err != nil {
			return nil, fmt.Errorf("youtube.NewService (fallback): %w", err)
		}
		f.fallback = fb
	}
	for _, o := range opts {
		o(f)
	}
	return f, nil
}

// Fetch returns statistics and comments for videoURL.
func (f *APIFetcher) Fetch(ctx context.Context, videoURL string) (engine.CommentSet, error) {
	videoID, err := ExtractVideoID(videoURL)
	if err != nil {
		return engine.CommentSet{}, err
	}
	stats, err := f.FetchStats(ctx, videoID)
	if err != nil {
		return engine.CommentSet{}, err
	}
	comments, err := f.FetchComments(ctx, videoID)
	if err != nil && !errors.Is(err, engine.ErrCommentsDisabled) {
		return engine.CommentSet{}, err
	}
	if errors.Is(err, engine.ErrCommentsDisabled) {
		slog.Info("youtube: comments disabled", slog.String("id", videoID))
	}
	return engine.CommentSet{
		Source:   engine.SourceAPI,
		Comments: comments,
		Stats:    stats,
	}, nil
}

// FetchStats returns like/comment/view counters for a video.
func (f *APIFetcher) FetchStats(ctx context.Context, videoID string) (engine.VideoStats, error) {
	return engine.Retry(ctx, f.policy, func(ctx context.Context) (engine.VideoStats, error) {
		return withFallbackKey(f, func(svc *youtube.Service) (engine.VideoStats, error) {
			if err := f.wait(ctx); err != nil {
				return engine.VideoStats{}, err
			}
			resp, err := svc.Videos.List([]string{"statistics"}).Id(videoID).Context(ctx).Do()
			if err != nil {
				return engine.VideoStats{}, classifyAPIError(err)
			}
			if len(resp.Items) == 0 || resp.Items[0].Statistics == nil {
				return engine.VideoStats{}, fmt.Errorf("%w: %s", engine.ErrVideoNotFound, videoID)
			}
			s := resp.Items[0].Statistics
			return engine.VideoStats{
				LikeCount:    int64(s.LikeCount),
				CommentCount: int64(s.CommentCount),
				ViewCount:    int64(s.ViewCount),
			}, nil
		})
	})
}

// FetchComments pages through all comment threads (and their replies).
// Authorization, disabled-comments and not-found errors fail fast; when every
// retry fails on a transient error the result is empty rather than an error.
func (f *APIFetcher) FetchComments(ctx context.Context, videoID string) ([]engine.Comment, error) {
	comments, err := engine.Retry(ctx, f.policy, func(ctx context.Context) ([]engine.Comment, error) {
		return withFallbackKey(f, func(svc *youtube.Service) ([]engine.Comment, error) {
			return f.fetchThreads(ctx, svc, videoID)
		})
	})
	if errors.Is(err, engine.ErrRetriesExhausted) {
		slog.Warn("youtube: comment fetch failed, returning empty result",
			slog.String("id", videoID), slog.Any("error", err))
		return []engine.Comment{}, nil
	}
	if err != nil {
		return nil, err
	}
	engine.AddCommentsFetched(engine.CountWithReplies(comments))
	return comments, nil
}

func (f *APIFetcher) fetchThreads(ctx context.Context, svc *youtube.Service, videoID string) ([]engine.Comment, error) {
	comments := []engine.Comment{}
	pageToken := ""
	for {
		pageSize := ytPageSize
		if f.maxComments > 0 {
			pageSize = min(f.maxComments-len(comments), ytPageSize)
		}
		call := svc.CommentThreads.List([]string{"snippet", "replies"}).
			VideoId(videoID).
			MaxResults(int64(pageSize)).
			Order("relevance").
			TextFormat("plainText").
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		if err := f.wait(ctx); err != nil {
			return nil, err
		}
		resp, err := call.Do()
		if err != nil {
			return nil, classifyAPIError(err)
		}

		for _, item := range resp.Items {
			if item.Snippet == nil || item.Snippet.TopLevelComment == nil {
				continue
			}
			top := item.Snippet.TopLevelComment
			c := commentFromSnippet(top.Snippet)
			if item.Snippet.TotalReplyCount > 0 && item.Replies != nil {
				replies, err := f.fetchReplies(ctx, svc, top.Id)
				if err != nil {
					return nil, err
				}
				c.Replies = replies
			}
			comments = append(comments, c)
			if f.maxComments > 0 && len(comments) >= f.maxComments {
				return comments, nil
			}
		}

		if resp.NextPageToken == "" {
			return comments, nil
		}
		pageToken = resp.NextPageToken
	}
}

func (f *APIFetcher) fetchReplies(ctx context.Context, svc *youtube.Service, parentID string) ([]engine.Reply, error) {
	replies := []engine.Reply{}
	pageToken := ""
	for {
		call := svc.Comments.List([]string{"snippet"}).
			ParentId(parentID).
			MaxResults(ytPageSize).
			TextFormat("plainText").
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		if err := f.wait(ctx); err != nil {
			return nil, err
		}
		resp, err := call.Do()
		if err != nil {
			return nil, classifyAPIError(err)
		}
		for _, item := range resp.Items {
			c := commentFromSnippet(item.Snippet)
			replies = append(replies, engine.Reply{
				Text:        c.Text,
				Author:      c.Author,
				Likes:       c.Likes,
				PublishedAt: c.PublishedAt,
			})
		}
		if resp.NextPageToken == "" {
			return replies, nil
		}
		pageToken = resp.NextPageToken
	}
}

func commentFromSnippet(s *youtube.CommentSnippet) engine.Comment {
	if s == nil {
		return engine.Comment{Replies: []engine.Reply{}}
	}
	return engine.Comment{
		Text:        s.TextDisplay,
		Author:      s.AuthorDisplayName,
		Likes:       s.LikeCount,
		PublishedAt: s.PublishedAt,
		Replies:     []engine.Reply{},
	}
}

func (f *APIFetcher) wait(ctx context.Context) error {
	engine.IncrYouTubeAPI()
	return f.limiter.Wait(ctx)
}

// withFallbackKey runs fn with the primary service and, on ErrForbidden,
// once more with the fallback service.
func withFallbackKey[T any](f *APIFetcher, fn func(*youtube.Service) (T, error)) (T, error) {
	out, err := fn(f.primary)
	if err != nil && f.fallback != nil && errors.Is(err, engine.ErrForbidden) {
		slog.Warn("youtube: primary key forbidden, trying fallback key", slog.Any("error", err))
		return fn(f.fallback)
	}
	return out, err
}

// classifyAPIError maps googleapi errors onto engine sentinels.
// Anything unrecognized is returned unchanged and stays retryable.
func classifyAPIError(err error) error {
	engine.IncrYouTubeAPIErrors()
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return err
	}
	switch gerr.Code {
	case http.StatusForbidden:
		for _, item := range gerr.Errors {
			if item.Reason == ytReasonDisabled {
				return fmt.Errorf("%w: %w", engine.ErrCommentsDisabled, err)
			}
		}
		return fmt.Errorf("%w: %w", engine.ErrForbidden, err)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %w", engine.ErrVideoNotFound, err)
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %w", engine.ErrInvalidURL, err)
	}
	return err
}
