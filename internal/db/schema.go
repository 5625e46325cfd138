package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schemaStatements crea las tablas propias del servicio. La tabla traits la
// administra el servicio de extraccion; aca solo se asegura que exista para entornos locales.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS traits (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		label TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT '',
		confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
		keywords TEXT[] NOT NULL DEFAULT '{}',
		extracted_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS traits_user_idx ON traits (user_id)`,
	`CREATE TABLE IF NOT EXISTS recommendation_snapshots (
		id UUID PRIMARY KEY,
		user_id TEXT NOT NULL,
		category TEXT NOT NULL,
		recommendations JSONB NOT NULL,
		personality_context TEXT NOT NULL,
		traits_used_count INT NOT NULL,
		generated_at TIMESTAMPTZ NOT NULL,
		expires_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS recommendation_snapshots_user_cat_idx
		ON recommendation_snapshots (user_id, category, generated_at DESC)`,
	`CREATE TABLE IF NOT EXISTS click_logs (
		id UUID PRIMARY KEY,
		user_id TEXT NOT NULL,
		product_id TEXT NOT NULL,
		product_source TEXT NOT NULL,
		category TEXT NOT NULL,
		position INT NOT NULL,
		affiliate_url TEXT NOT NULL,
		clicked_at TIMESTAMPTZ NOT NULL,
		converted BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`CREATE TABLE IF NOT EXISTS shared_product_cache (
		cache_key TEXT PRIMARY KEY,
		payload JSONB NOT NULL,
		expires_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
}

// EnsureSchema aplica el DDL idempotente al arrancar.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for i, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i, err)
		}
	}
	return nil
}
