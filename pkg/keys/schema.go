package keys

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS tenants (
		id     TEXT PRIMARY KEY,
		name   TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'active'
	)`,
	`CREATE TABLE IF NOT EXISTS tenants_api_keys (
		id          TEXT PRIMARY KEY,
		tenant_id   TEXT NOT NULL REFERENCES tenants(id),
		name        TEXT NOT NULL,
		fingerprint TEXT NOT NULL,
		algo        TEXT NOT NULL,
		iterations  INTEGER NOT NULL,
		salt_b64    TEXT NOT NULL,
		hash_b64    TEXT NOT NULL,
		revoked_at  TIMESTAMPTZ,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_tenants_api_keys_fingerprint
		ON tenants_api_keys (fingerprint) WHERE revoked_at IS NULL`,
	`CREATE INDEX IF NOT EXISTS idx_tenants_api_keys_tenant
		ON tenants_api_keys (tenant_id, created_at DESC)`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS tenants (
		id     TEXT PRIMARY KEY,
		name   TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'active'
	)`,
	`CREATE TABLE IF NOT EXISTS tenants_api_keys (
		id          TEXT PRIMARY KEY,
		tenant_id   TEXT NOT NULL,
		name        TEXT NOT NULL,
		fingerprint TEXT NOT NULL,
		algo        TEXT NOT NULL,
		iterations  INTEGER NOT NULL,
		salt_b64    TEXT NOT NULL,
		hash_b64    TEXT NOT NULL,
		revoked_at  TIMESTAMP,
		created_at  TIMESTAMP NOT NULL,
		FOREIGN KEY (tenant_id) REFERENCES tenants(id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_tenants_api_keys_fingerprint
		ON tenants_api_keys (fingerprint) WHERE revoked_at IS NULL`,
	`CREATE INDEX IF NOT EXISTS idx_tenants_api_keys_tenant
		ON tenants_api_keys (tenant_id, created_at)`,
}

// MigratePostgres creates the tenant and key tables if they do not exist.
func MigratePostgres(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range postgresSchema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("keys.MigratePostgres: %w", err)
		}
	}
	return nil
}

// MigrateSQLite is the SQLite counterpart of MigratePostgres.
func MigrateSQLite(ctx context.Context, db *sql.DB) error {
	for _, stmt := range sqliteSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("keys.MigrateSQLite: %w", err)
		}
	}
	return nil
}
