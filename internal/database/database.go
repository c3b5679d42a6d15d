package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect opens a pgx connection pool using the provided DSN.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.MaxConns = 8
	cfg.MaxConnIdleTime = 5 * time.Minute
	return pgxpool.NewWithConfig(ctx, cfg)
}

// EnsureSchema creates the tables this service reads and writes. The
// checkout/upload flows own row creation; having the schema in code keeps
// local development self-contained.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	const stmt = `
CREATE TABLE IF NOT EXISTS batches (
	id TEXT PRIMARY KEY,
	status TEXT NOT NULL DEFAULT 'pending',
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS orders (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	batch_id TEXT,
	image_count INT NOT NULL DEFAULT 0,
	payment_status TEXT NOT NULL DEFAULT 'pending',
	processing_stage TEXT NOT NULL DEFAULT 'initializing',
	processing_completion_percentage INT NOT NULL DEFAULT 0,
	error_message TEXT,
	notification_status TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	processing_started_at TIMESTAMPTZ,
	completed_at TIMESTAMPTZ
);
CREATE TABLE IF NOT EXISTS images (
	id TEXT PRIMARY KEY,
	order_id TEXT NOT NULL REFERENCES orders(id),
	original_filename TEXT NOT NULL,
	storage_path_original TEXT NOT NULL,
	storage_path_processed TEXT,
	processing_status TEXT NOT NULL DEFAULT 'pending',
	retry_count INT NOT NULL DEFAULT 0,
	last_error TEXT,
	last_error_type TEXT,
	ai_analysis JSONB,
	file_size BIGINT NOT NULL DEFAULT 0,
	mime_type TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_orders_stage ON orders(processing_stage, payment_status);
CREATE INDEX IF NOT EXISTS idx_images_order ON images(order_id);
CREATE INDEX IF NOT EXISTS idx_images_status ON images(order_id, processing_status);`
	_, err := pool.Exec(ctx, stmt)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
