package engine

import (
	"context"
	"encoding/json"
	"log/slog"
)

// CommentStore keeps fetched comments by analysis id so follow-up chat
// requests can reuse them without refetching.
type CommentStore interface {
	Put(ctx context.Context, analysisID string, comments []Comment) error
	Get(ctx context.Context, analysisID string) ([]Comment, bool)
	Delete(ctx context.Context, analysisID string)
}

// cacheStore is a CommentStore backed by a TieredCache, which bounds it by
// entry count and TTL.
type cacheStore struct {
	cache *TieredCache
}

// NewCommentStore wraps cache as a CommentStore.
func NewCommentStore(cache *TieredCache) CommentStore {
	return &cacheStore{cache: cache}
}

func (s *cacheStore) Put(ctx context.Context, analysisID string, comments []Comment) error {
	data, err := json.Marshal(comments)
	if err != nil {
		return err
	}
	s.cache.Set(ctx, analysisID, data)
	return nil
}

func (s *cacheStore) Get(ctx context.Context, analysisID string) ([]Comment, bool) {
	data, ok := s.cache.Get(ctx, analysisID)
	if !ok {
		return nil, false
	}
	var comments []Comment
	if err := json.Unmarshal(data, &comments); err != nil {
		slog.Warn("store: corrupt entry", slog.String("id", analysisID), slog.Any("error", err))
		s.cache.Delete(ctx, analysisID)
		return nil, false
	}
	return comments, true
}

func (s *cacheStore) Delete(ctx context.Context, analysisID string) {
	s.cache.Delete(ctx, analysisID)
}
