// Package history persists a summary of every completed analysis.
package history

import (
	"context"
	"encoding/json"
	"time"
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 200
)

// Record is the stored summary of one analysis.
type Record struct {
	ID            string          `json:"id"`
	VideoURL      string          `json:"video_url"`
	VideoID       string          `json:"video_id"`
	Source        string          `json:"source"`
	TotalComments int64           `json:"total_comments"`
	TotalLikes    int64           `json:"total_likes"`
	ViewCount     int64           `json:"view_count"`
	AIAnalysis    json.RawMessage `json:"ai_analysis"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Repository stores analysis records. Save overwrites a record with the same
// id. Get returns engine.ErrNotFound for unknown ids.
type Repository interface {
	Save(ctx context.Context, r Record) error
	Get(ctx context.Context, id string) (Record, error)
	List(ctx context.Context, limit int) ([]Record, int, error)
	Prune(ctx context.Context, olderThan time.Time) (int64, error)
	Close() error
}

// Open picks PostgreSQL when databaseURL is set, SQLite at sqlitePath otherwise.
func Open(ctx context.Context, databaseURL, sqlitePath string) (Repository, error) {
	if databaseURL != "" {
		pg, err := OpenPostgres(ctx, databaseURL)
		if err != nil {
			return nil, err
		}
		return pg, nil
	}
	lite, err := OpenSQLite(sqlitePath)
	if err != nil {
		return nil, err
	}
	return lite, nil
}

// ClampLimit maps a requested page size into [1, MaxListLimit].
func ClampLimit(n int) int {
	switch {
	case n <= 0:
		return DefaultListLimit
	case n > MaxListLimit:
		return MaxListLimit
	}
	return n
}

func normalize(r Record) Record {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	r.CreatedAt = r.CreatedAt.UTC()
	if len(r.AIAnalysis) == 0 {
		r.AIAnalysis = json.RawMessage("{}")
	}
	return r
}
