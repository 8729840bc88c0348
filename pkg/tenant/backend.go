package tenant

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/LucasEdu07/friday-agents/pkg/keys"
)

// BackendConfig selects and tunes the directory implementation.
type BackendConfig struct {
	// DatabaseURL is empty for the static table, postgres:// for pgx and
	// sqlite:<path> or file:<path> for SQLite.
	DatabaseURL   string
	StaticTenants string
	CacheTTL      time.Duration
	Iterations    int
	Migrate       bool
}

// Backend bundles a directory with the key admin store over the same
// database. Keys is nil for the static table.
type Backend struct {
	Kind      string
	Directory Directory
	Keys      keys.Admin
	close     func()
}

// Close releases the underlying connections.
func (b *Backend) Close() {
	if b.close != nil {
		b.close()
	}
}

// Flush drops cached lookups, if the directory caches.
func (b *Backend) Flush() {
	if c, ok := b.Directory.(*Cached); ok {
		c.Flush()
	}
}

// OpenBackend connects to the configured store.
func OpenBackend(ctx context.Context, cfg BackendConfig) (*Backend, error) {
	b, err := openBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if cfg.CacheTTL > 0 && b.Kind != "static" {
		b.Directory = NewCached(b.Directory, cfg.CacheTTL)
	}
	return b, nil
}

func openBackend(ctx context.Context, cfg BackendConfig) (*Backend, error) {
	dsn := strings.TrimSpace(cfg.DatabaseURL)
	switch {
	case dsn == "":
		entries := ParseStatic(cfg.StaticTenants)
		if len(entries) == 0 {
			entries = DefaultFallback()
		}
		return &Backend{Kind: "static", Directory: NewStatic(entries)}, nil

	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		pool, err := pgxpool.New(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("tenant.OpenBackend postgres: %w", err)
		}
		if cfg.Migrate {
			if err := keys.MigratePostgres(ctx, pool); err != nil {
				pool.Close()
				return nil, err
			}
		}
		return &Backend{
			Kind:      "postgres",
			Directory: NewPostgres(pool),
			Keys:      keys.NewPGStore(pool, cfg.Iterations),
			close:     pool.Close,
		}, nil

	case strings.HasPrefix(dsn, "sqlite:"), strings.HasPrefix(dsn, "file:"):
		path := strings.TrimPrefix(strings.TrimPrefix(dsn, "sqlite://"), "sqlite:")
		db, err := OpenSQLite(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("tenant.OpenBackend sqlite: %w", err)
		}
		return &Backend{
			Kind:      "sqlite",
			Directory: NewSQLite(db),
			Keys:      keys.NewSQLStore(db, cfg.Iterations),
			close:     func() { db.Close() },
		}, nil
	}
	return nil, fmt.Errorf("tenant.OpenBackend: unsupported DATABASE_URL scheme")
}
