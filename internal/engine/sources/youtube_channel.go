package sources

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/anatolykoptev/go_ytinsight/internal/engine"
	"google.golang.org/api/youtube/v3"
)

// Channel upload listing through the Data API.

const (
	DefaultChannelVideos = 50
	MaxChannelVideos     = 500
	ytPlaylistPageSize   = 50 // provider max for playlistItems
)

var (
	channelIDRe = regexp.MustCompile(`^UC[\w-]{22}$`)
	handleRe    = regexp.MustCompile(`^@[\w.-]{3,30}$`)
)

// ChannelRef is a parsed channel reference: exactly one field is set.
type ChannelRef struct {
	ID       string
	Handle   string // with the leading @
	Username string // legacy /user/ name
}

// ParseChannelURL accepts /channel/UC..., /@handle and /user/name URLs as
// well as a bare channel id or @handle.
func ParseChannelURL(raw string) (ChannelRef, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ChannelRef{}, fmt.Errorf("%w: Channel URL is required", engine.ErrMissingParams)
	}
	switch {
	case channelIDRe.MatchString(s):
		return ChannelRef{ID: s}, nil
	case handleRe.MatchString(s):
		return ChannelRef{Handle: s}, nil
	}

	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return ChannelRef{}, fmt.Errorf("%w: Invalid channel URL format", engine.ErrInvalidParams)
	}
	if host := strings.ToLower(u.Hostname()); !allowedHosts[host] || host == "youtu.be" {
		return ChannelRef{}, fmt.Errorf("%w: Invalid channel URL format", engine.ErrInvalidParams)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	switch {
	case len(parts) >= 2 && parts[0] == "channel" && channelIDRe.MatchString(parts[1]):
		return ChannelRef{ID: parts[1]}, nil
	case len(parts) >= 2 && parts[0] == "user" && parts[1] != "":
		return ChannelRef{Username: parts[1]}, nil
	case len(parts) >= 1 && handleRe.MatchString(parts[0]):
		return ChannelRef{Handle: parts[0]}, nil
	}
	return ChannelRef{}, fmt.Errorf("%w: Invalid channel URL format", engine.ErrInvalidParams)
}

// ChannelVideo is one upload of a channel.
type ChannelVideo struct {
	VideoID     string `json:"video_id"`
	Title       string `json:"title"`
	PublishedAt string `json:"published_at"`
	URL         string `json:"url"`
}

// ChannelVideos lists the most recent uploads of a channel.
type ChannelVideos struct {
	ChannelID    string         `json:"channel_id"`
	ChannelTitle string         `json:"channel_title"`
	PlaylistID   string         `json:"uploads_playlist_id"`
	Videos       []ChannelVideo `json:"videos"`
	TotalVideos  int            `json:"total_videos"`
}

// ChannelVideos resolves channelURL and returns up to limit of its most
// recent uploads (DefaultChannelVideos when limit <= 0, capped at
// MaxChannelVideos). Results are cached per channel and limit.
func (f *APIFetcher) ChannelVideos(ctx context.Context, channelURL string, limit int) (ChannelVideos, error) {
	ref, err := ParseChannelURL(channelURL)
	if err != nil {
		return ChannelVideos{}, err
	}
	if limit <= 0 {
		limit = DefaultChannelVideos
	}
	limit = min(limit, MaxChannelVideos)

	id, err := f.resolveChannel(ctx, ref)
	if err != nil {
		return ChannelVideos{}, err
	}
	key := engine.CacheKey("channel", id, strconv.Itoa(limit))
	if cached, ok := engine.CacheLoadJSON[ChannelVideos](ctx, key); ok {
		return cached, nil
	}

	out, err := engine.Retry(ctx, f.policy, func(ctx context.Context) (ChannelVideos, error) {
		return withFallbackKey(f, func(svc *youtube.Service) (ChannelVideos, error) {
			return f.listUploads(ctx, svc, id, limit)
		})
	})
	if err != nil {
		return ChannelVideos{}, err
	}
	engine.CacheStoreJSON(ctx, key, out)
	return out, nil
}

// resolveChannel turns a handle or username into a channel id.
func (f *APIFetcher) resolveChannel(ctx context.Context, ref ChannelRef) (string, error) {
	if ref.ID != "" {
		return ref.ID, nil
	}
	return engine.Retry(ctx, f.policy, func(ctx context.Context) (string, error) {
		return withFallbackKey(f, func(svc *youtube.Service) (string, error) {
			call := svc.Channels.List([]string{"id"}).Context(ctx)
			if ref.Handle != "" {
				call = call.ForHandle(ref.Handle)
			} else {
				call = call.ForUsername(ref.Username)
			}
			if err := f.wait(ctx); err != nil {
				return "", err
			}
			resp, err := call.Do()
			if err != nil {
				return "", classifyAPIError(err)
			}
			if len(resp.Items) == 0 || resp.Items[0].Id == "" {
				return "", fmt.Errorf("%w: Channel not found", engine.ErrNotFound)
			}
			return resp.Items[0].Id, nil
		})
	})
}

func (f *APIFetcher) listUploads(ctx context.Context, svc *youtube.Service, channelID string, limit int) (ChannelVideos, error) {
	if err := f.wait(ctx); err != nil {
		return ChannelVideos{}, err
	}
	resp, err := svc.Channels.List([]string{"snippet", "contentDetails"}).Id(channelID).Context(ctx).Do()
	if err != nil {
		return ChannelVideos{}, classifyAPIError(err)
	}
	if len(resp.Items) == 0 {
		return ChannelVideos{}, fmt.Errorf("%w: Channel not found", engine.ErrNotFound)
	}
	ch := resp.Items[0]
	if ch.ContentDetails == nil || ch.ContentDetails.RelatedPlaylists == nil || ch.ContentDetails.RelatedPlaylists.Uploads == "" {
		return ChannelVideos{}, fmt.Errorf("%w: Upload playlist not found", engine.ErrNotFound)
	}
	out := ChannelVideos{
		ChannelID:  channelID,
		PlaylistID: ch.ContentDetails.RelatedPlaylists.Uploads,
		Videos:     []ChannelVideo{},
	}
	if ch.Snippet != nil {
		out.ChannelTitle = ch.Snippet.Title
	}

	pageToken := ""
	for len(out.Videos) < limit {
		call := svc.PlaylistItems.List([]string{"snippet", "contentDetails"}).
			PlaylistId(out.PlaylistID).
			MaxResults(int64(min(limit-len(out.Videos), ytPlaylistPageSize))).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		if err := f.wait(ctx); err != nil {
			return ChannelVideos{}, err
		}
		page, err := call.Do()
		if err != nil {
			return ChannelVideos{}, classifyAPIError(err)
		}
		for _, item := range page.Items {
			if v, ok := videoFromPlaylistItem(item); ok && len(out.Videos) < limit {
				out.Videos = append(out.Videos, v)
			}
		}
		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}
	out.TotalVideos = len(out.Videos)
	return out, nil
}

func videoFromPlaylistItem(item *youtube.PlaylistItem) (ChannelVideo, bool) {
	var v ChannelVideo
	if item.ContentDetails != nil {
		v.VideoID = item.ContentDetails.VideoId
		v.PublishedAt = item.ContentDetails.VideoPublishedAt
	}
	if item.Snippet != nil {
		v.Title = item.Snippet.Title
		if v.VideoID == "" && item.Snippet.ResourceId != nil {
			v.VideoID = item.Snippet.ResourceId.VideoId
		}
		if v.PublishedAt == "" {
			v.PublishedAt = item.Snippet.PublishedAt
		}
	}
	if v.VideoID == "" {
		return ChannelVideo{}, false
	}
	v.URL = WatchURL(v.VideoID)
	return v, true
}
