package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/anatolykoptev/go_ytinsight/internal/engine"
)

// Fixed-width UTC layout so created_at sorts lexically.
const sqliteTime = "2006-01-02T15:04:05.000000Z"

// SQLite is the local, single-file history backend.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the history database at path.
// An empty path means $HOME/.go_ytinsight/history.db.
func OpenSQLite(path string) (*SQLite, error) {
	if path == "" {
		path = filepath.Join(os.Getenv("HOME"), ".go_ytinsight", "history.db")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("history: mkdir %s: %w", filepath.Dir(path), err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open db: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite: single writer
	if err := initSQLiteSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: init schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func initSQLiteSchema(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS analyses (
		id             TEXT PRIMARY KEY,
		video_url      TEXT NOT NULL,
		video_id       TEXT NOT NULL,
		source         TEXT NOT NULL,
		total_comments INTEGER NOT NULL DEFAULT 0,
		total_likes    INTEGER NOT NULL DEFAULT 0,
		view_count     INTEGER NOT NULL DEFAULT 0,
		ai_analysis    TEXT NOT NULL DEFAULT '{}',
		created_at     TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS analyses_created_at_idx ON analyses (created_at)`)
	return err
}

func (s *SQLite) Save(ctx context.Context, r Record) error {
	r = normalize(r)
	_, err := s.db.ExecContext(ctx, `INSERT INTO analyses
		(id, video_url, video_id, source, total_comments, total_likes, view_count, ai_analysis, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			video_url = excluded.video_url,
			video_id = excluded.video_id,
			source = excluded.source,
			total_comments = excluded.total_comments,
			total_likes = excluded.total_likes,
			view_count = excluded.view_count,
			ai_analysis = excluded.ai_analysis,
			created_at = excluded.created_at`,
		r.ID, r.VideoURL, r.VideoID, r.Source, r.TotalComments, r.TotalLikes, r.ViewCount,
		string(r.AIAnalysis), r.CreatedAt.Format(sqliteTime))
	if err != nil {
		return fmt.Errorf("history: save %s: %w", r.ID, err)
	}
	return nil
}

const sqliteColumns = `id, video_url, video_id, source, total_comments, total_likes, view_count, ai_analysis, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLite(row rowScanner) (Record, error) {
	var (
		r               Record
		analysis, stamp string
	)
	if err := row.Scan(&r.ID, &r.VideoURL, &r.VideoID, &r.Source,
		&r.TotalComments, &r.TotalLikes, &r.ViewCount, &analysis, &stamp); err != nil {
		return Record{}, err
	}
	r.AIAnalysis = []byte(analysis)
	t, err := time.Parse(sqliteTime, stamp)
	if err != nil {
		return Record{}, fmt.Errorf("created_at %q: %w", stamp, err)
	}
	r.CreatedAt = t
	return r, nil
}

func (s *SQLite) Get(ctx context.Context, id string) (Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sqliteColumns+` FROM analyses WHERE id = ?`, id)
	r, err := scanSQLite(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("%w: analysis %s", engine.ErrNotFound, id)
	}
	if err != nil {
		return Record{}, fmt.Errorf("history: get %s: %w", id, err)
	}
	return r, nil
}

func (s *SQLite) List(ctx context.Context, limit int) ([]Record, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM analyses`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("history: count: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteColumns+` FROM analyses ORDER BY created_at DESC, id LIMIT ?`, ClampLimit(limit))
	if err != nil {
		return nil, 0, fmt.Errorf("history: list: %w", err)
	}
	defer rows.Close()

	out := []Record{}
	for rows.Next() {
		r, err := scanSQLite(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("history: scan: %w", err)
		}
		out = append(out, r)
	}
	return out, total, rows.Err()
}

func (s *SQLite) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM analyses WHERE created_at < ?`,
		olderThan.UTC().Format(sqliteTime))
	if err != nil {
		return 0, fmt.Errorf("history: prune: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
