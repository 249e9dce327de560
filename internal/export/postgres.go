package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/leaderboard-crawler/internal/leaderboard"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

const defaultTable = "leaderboard_products"

// PostgresConfig controls the connection pool used for product rows.
type PostgresConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MaxConnLifetime time.Duration
	CreateTable     bool
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Ping(context.Context) error
	Close()
}

// Postgres inserts one row per product.
type Postgres struct {
	pool  execCloser
	table string
	runID string
}

// NewPostgres connects a pool, verifies the server is reachable and, when
// asked, creates the table.
func NewPostgres(ctx context.Context, cfg PostgresConfig, runID string) (*Postgres, error) {
	if cfg.DSN == "" {
		return nil, errors.New("export.postgres.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return openPostgres(ctx, pool, cfg, runID)
}

// openPostgres finishes NewPostgres on an unverified pool. The pool is closed
// on any failure.
func openPostgres(ctx context.Context, pool execCloser, cfg PostgresConfig, runID string) (*Postgres, error) {
	s, err := NewPostgresWithPool(pool, cfg.Table, runID)
	if err != nil {
		pool.Close()
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if cfg.CreateTable {
		if err := s.CreateTable(ctx); err != nil {
			pool.Close()
			return nil, err
		}
	}
	return s, nil
}

// NewPostgresWithPool builds the sink on an existing pool (primarily for testing).
func NewPostgresWithPool(pool execCloser, table, runID string) (*Postgres, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &Postgres{pool: pool, table: table, runID: runID}, nil
}

// CreateTable creates the product table if it does not exist.
func (s *Postgres) CreateTable(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id            BIGSERIAL PRIMARY KEY,
	run_id        TEXT NOT NULL,
	name          TEXT NOT NULL,
	tagline       TEXT NOT NULL,
	tags          JSONB NOT NULL,
	upvotes       TEXT NOT NULL,
	comment_count TEXT NOT NULL,
	product_url   TEXT NOT NULL,
	week          INTEGER NOT NULL,
	year          INTEGER NOT NULL,
	comments_list JSONB NOT NULL,
	crawled_at    TIMESTAMPTZ NOT NULL DEFAULT now()
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	return nil
}

// Write inserts p.
func (s *Postgres) Write(ctx context.Context, p leaderboard.Product) error {
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	comments := p.Comments
	if comments == nil {
		comments = []leaderboard.Comment{}
	}
	commentsJSON, err := json.Marshal(comments)
	if err != nil {
		return fmt.Errorf("marshal comments: %w", err)
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	run_id,
	name,
	tagline,
	tags,
	upvotes,
	comment_count,
	product_url,
	week,
	year,
	comments_list
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10
)`, s.table)
	args := []any{
		s.runID,
		p.Name,
		p.Tagline,
		tagsJSON,
		p.Upvotes,
		p.CommentCount,
		p.ProductURL,
		p.Week,
		p.Year,
		commentsJSON,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

// Close releases the pool.
func (s *Postgres) Close(context.Context) error {
	s.pool.Close()
	return nil
}
