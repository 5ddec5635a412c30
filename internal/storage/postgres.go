package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/your-org/homewatch/internal/config"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(cfg config.DatabaseConfig) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// WithTx runs fn inside a transaction, committing on nil and rolling
// back on error or panic.
func (s *PostgresStore) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

var schemaStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS vector`,
	`CREATE TABLE IF NOT EXISTS persons (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		role TEXT NOT NULL DEFAULT 'unknown' CHECK (role IN ('owner', 'visitor', 'unknown')),
		current_body_embedding vector(2048),
		body_update_time TIMESTAMPTZ,
		first_seen TIMESTAMPTZ NOT NULL DEFAULT now(),
		last_seen TIMESTAMPTZ NOT NULL DEFAULT now(),
		notes TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS person_faces (
		id BIGSERIAL PRIMARY KEY,
		person_id BIGINT NOT NULL REFERENCES persons(id) ON DELETE CASCADE,
		embedding vector(512) NOT NULL,
		source_image TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (person_id, source_image)
	)`,
	`CREATE TABLE IF NOT EXISTS event_logs (
		id UUID PRIMARY KEY,
		video_filename TEXT,
		start_time TIMESTAMPTZ NOT NULL,
		camera_location TEXT NOT NULL DEFAULT '',
		llm_description TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS event_appearances (
		id BIGSERIAL PRIMARY KEY,
		event_id UUID NOT NULL REFERENCES event_logs(id) ON DELETE CASCADE,
		person_id BIGINT NOT NULL REFERENCES persons(id),
		match_method TEXT NOT NULL CHECK (match_method IN ('face', 'body_reid', 'body_reid_refined', 'new', 'unknown')),
		body_embedding vector(2048) NOT NULL,
		keyframe_key TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS daily_summaries (
		id BIGSERIAL PRIMARY KEY,
		summary_date DATE NOT NULL UNIQUE,
		summary_text TEXT NOT NULL,
		total_events INT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_person_faces_embedding
		ON person_faces USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100)`,
	`CREATE INDEX IF NOT EXISTS idx_event_logs_start_time ON event_logs (start_time)`,
	`CREATE INDEX IF NOT EXISTS idx_event_appearances_event ON event_appearances (event_id)`,
	`CREATE INDEX IF NOT EXISTS idx_event_appearances_person ON event_appearances (person_id)`,
}

// InitSchema creates tables and indexes if they don't exist.
func (s *PostgresStore) InitSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// ClearAll truncates every table in one transaction. Destructive;
// callers must gate it behind explicit confirmation.
func (s *PostgresStore) ClearAll(ctx context.Context) error {
	return s.WithTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`TRUNCATE event_appearances, event_logs, person_faces, persons, daily_summaries RESTART IDENTITY CASCADE`)
		if err != nil {
			return fmt.Errorf("truncate tables: %w", err)
		}
		return nil
	})
}
