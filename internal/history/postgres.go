package history

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/anatolykoptev/go_ytinsight/internal/engine"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// Postgres is the shared history backend.
type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres creates a pgx pool and applies the embedded migrations.
func OpenPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	if databaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}

	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	config.MaxConns = 10
	config.MinConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	db := &Postgres{pool: pool}
	if err := db.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	slog.Info("history postgres connected", slog.String("addr", config.ConnConfig.Host))
	return db, nil
}

func (db *Postgres) runMigrations(ctx context.Context) error {
	entries, err := schemaFS.ReadDir("schema")
	if err != nil {
		return fmt.Errorf("read schema dir: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		data, err := schemaFS.ReadFile("schema/" + entry.Name())
		if err != nil {
			return fmt.Errorf("read %s: %w", entry.Name(), err)
		}
		if _, err := db.pool.Exec(ctx, string(data)); err != nil {
			return fmt.Errorf("execute %s: %w", entry.Name(), err)
		}
		slog.Info("migration applied", slog.String("file", entry.Name()))
	}
	return nil
}

func (db *Postgres) Save(ctx context.Context, r Record) error {
	r = normalize(r)
	_, err := db.pool.Exec(ctx, `INSERT INTO analyses
		(id, video_url, video_id, source, total_comments, total_likes, view_count, ai_analysis, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			video_url = EXCLUDED.video_url,
			video_id = EXCLUDED.video_id,
			source = EXCLUDED.source,
			total_comments = EXCLUDED.total_comments,
			total_likes = EXCLUDED.total_likes,
			view_count = EXCLUDED.view_count,
			ai_analysis = EXCLUDED.ai_analysis,
			created_at = EXCLUDED.created_at`,
		r.ID, r.VideoURL, r.VideoID, r.Source, r.TotalComments, r.TotalLikes, r.ViewCount,
		[]byte(r.AIAnalysis), r.CreatedAt)
	if err != nil {
		return fmt.Errorf("history: save %s: %w", r.ID, err)
	}
	return nil
}

const pgColumns = `id, video_url, video_id, source, total_comments, total_likes, view_count, ai_analysis, created_at`

func scanPostgres(row pgx.Row) (Record, error) {
	var (
		r        Record
		analysis []byte
	)
	if err := row.Scan(&r.ID, &r.VideoURL, &r.VideoID, &r.Source,
		&r.TotalComments, &r.TotalLikes, &r.ViewCount, &analysis, &r.CreatedAt); err != nil {
		return Record{}, err
	}
	r.AIAnalysis = analysis
	return r, nil
}

func (db *Postgres) Get(ctx context.Context, id string) (Record, error) {
	r, err := scanPostgres(db.pool.QueryRow(ctx, `SELECT `+pgColumns+` FROM analyses WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, fmt.Errorf("%w: analysis %s", engine.ErrNotFound, id)
	}
	if err != nil {
		return Record{}, fmt.Errorf("history: get %s: %w", id, err)
	}
	return r, nil
}

func (db *Postgres) List(ctx context.Context, limit int) ([]Record, int, error) {
	var total int
	if err := db.pool.QueryRow(ctx, `SELECT COUNT(*) FROM analyses`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("history: count: %w", err)
	}

	rows, err := db.pool.Query(ctx,
		`SELECT `+pgColumns+` FROM analyses ORDER BY created_at DESC, id LIMIT $1`, ClampLimit(limit))
	if err != nil {
		return nil, 0, fmt.Errorf("history: list: %w", err)
	}
	defer rows.Close()

	out := []Record{}
	for rows.Next() {
		r, err := scanPostgres(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("history: scan: %w", err)
		}
		out = append(out, r)
	}
	return out, total, rows.Err()
}

func (db *Postgres) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	tag, err := db.pool.Exec(ctx, `DELETE FROM analyses WHERE created_at < $1`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("history: prune: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (db *Postgres) Close() error {
	db.pool.Close()
	return nil
}
