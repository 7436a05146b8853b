package main

import (
	"context"
	"flag"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"repochat/internal/config"
	"repochat/internal/repository/postgres"
)

func main() {
	dropTables := flag.Bool("drop-tables", false, "Drop all tables before creating the schema (fresh start)")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()

	if cfg.Environment == "prod" && *dropTables {
		log.Fatalf("refusing to drop tables in production environment")
	}

	ctx := context.Background()
	pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("connect to database: %v", err)
	}
	defer pool.Close()

	tables := postgres.NewTableNames(cfg.TablePrefix)

	if *dropTables {
		log.Printf("dropping tables (environment: %s, prefix: %s)", cfg.Environment, cfg.TablePrefix)
		if err := dropAllTables(ctx, pool, tables); err != nil {
			log.Fatalf("drop tables: %v", err)
		}
	}

	log.Printf("ensuring schema (environment: %s, prefix: %s)", cfg.Environment, cfg.TablePrefix)
	if err := runSchema(ctx, pool, tables); err != nil {
		log.Fatalf("run schema: %v", err)
	}
	log.Println("schema ready")
}

// dropAllTables removes the prefixed tables in dependency order.
func dropAllTables(ctx context.Context, pool *pgxpool.Pool, tables *postgres.TableNames) error {
	for _, table := range []string{
		tables.Messages,
		tables.Sessions,
		tables.RepoFiles,
		tables.Repos,
		tables.UserPreferences,
	} {
		if _, err := pool.Exec(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE"); err != nil {
			return err
		}
	}
	return nil
}

// runSchema creates tables and indexes if they don't exist.
func runSchema(ctx context.Context, pool *pgxpool.Pool, tables *postgres.TableNames) error {
	if _, err := pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`); err != nil {
		return err
	}

	statements := []string{
		`CREATE TABLE IF NOT EXISTS ` + tables.Repos + ` (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			user_id TEXT NOT NULL,
			url TEXT NOT NULL,
			name TEXT NOT NULL,
			file_count INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			deleted_at TIMESTAMPTZ
		)`,
		// One live copy of a URL per user; soft-deleted rows don't block a
		// reload.
		`CREATE UNIQUE INDEX IF NOT EXISTS ` + tables.Repos + `_user_url_live
			ON ` + tables.Repos + ` (user_id, url)
			WHERE deleted_at IS NULL`,

		`CREATE TABLE IF NOT EXISTS ` + tables.RepoFiles + ` (
			repo_id UUID NOT NULL REFERENCES ` + tables.Repos + `(id) ON DELETE CASCADE,
			path TEXT NOT NULL,
			kind TEXT NOT NULL,
			size INTEGER NOT NULL DEFAULT 0,
			content TEXT NOT NULL DEFAULT '',
			position INTEGER NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (repo_id, path)
		)`,
		// position is the stored sibling order the tree endpoint exposes.
		`CREATE INDEX IF NOT EXISTS ` + tables.RepoFiles + `_repo_position
			ON ` + tables.RepoFiles + ` (repo_id, position)`,

		`CREATE TABLE IF NOT EXISTS ` + tables.Sessions + ` (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			user_id TEXT NOT NULL,
			repo_id UUID NOT NULL REFERENCES ` + tables.Repos + `(id) ON DELETE CASCADE,
			title TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			deleted_at TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS ` + tables.Sessions + `_user_updated
			ON ` + tables.Sessions + ` (user_id, updated_at DESC)`,

		`CREATE TABLE IF NOT EXISTS ` + tables.Messages + ` (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			session_id UUID NOT NULL REFERENCES ` + tables.Sessions + `(id) ON DELETE CASCADE,
			role TEXT NOT NULL,
			content TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			truncated BOOLEAN NOT NULL DEFAULT FALSE,
			error TEXT,
			model TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			completed_at TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS ` + tables.Messages + `_session_order
			ON ` + tables.Messages + ` (session_id, created_at, id)`,
		// Backstop for the session row lock: at most one unfinished
		// assistant message per session.
		`CREATE UNIQUE INDEX IF NOT EXISTS ` + tables.Messages + `_one_in_flight
			ON ` + tables.Messages + ` (session_id)
			WHERE role = 'assistant' AND status IN ('pending', 'streaming')`,

		`CREATE TABLE IF NOT EXISTS ` + tables.UserPreferences + ` (
			user_id TEXT PRIMARY KEY,
			preferences JSONB NOT NULL DEFAULT '{}'::jsonb,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
