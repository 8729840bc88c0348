package tenant

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/LucasEdu07/friday-agents/pkg/keys"
)

// SQLite is the single-file counterpart of Postgres, meant for local runs.
type SQLite struct {
	db *sql.DB
}

var (
	_ Directory = (*SQLite)(nil)
	_ Pinger    = (*SQLite)(nil)
)

// OpenSQLite opens (and migrates) the database at path.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL; PRAGMA busy_timeout=5000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if err := keys.MigrateSQLite(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// NewSQLite wraps an already migrated database.
func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{db: db}
}

func (s *SQLite) Resolve(ctx context.Context, apiKey string) (*Identity, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(resolveSQL, "?"), keys.Fingerprint(apiKey))
	if err != nil {
		return nil, fmt.Errorf("tenant.SQLite.Resolve: %w: %w", ErrUnavailable, err)
	}
	defer rows.Close()

	var cands []candidate
	for rows.Next() {
		var c candidate
		var status string
		if err := rows.Scan(&c.id.ID, &c.id.DisplayName, &status, &c.id.KeyFingerprint,
			&c.stored.Algo, &c.stored.Iterations, &c.stored.SaltB64, &c.stored.HashB64); err != nil {
			return nil, fmt.Errorf("tenant.SQLite.Resolve scan: %w: %w", ErrUnavailable, err)
		}
		c.id.Status = ParseStatus(status)
		cands = append(cands, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("tenant.SQLite.Resolve iteration: %w: %w", ErrUnavailable, err)
	}
	return verify(apiKey, cands), nil
}

func (s *SQLite) ListAll(ctx context.Context) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, listAllSQL)
	if err != nil {
		return nil, fmt.Errorf("tenant.SQLite.ListAll: %w: %w", ErrUnavailable, err)
	}
	defer rows.Close()

	out := []Summary{}
	for rows.Next() {
		var sum Summary
		if err := rows.Scan(&sum.ID, &sum.Name); err != nil {
			return nil, fmt.Errorf("tenant.SQLite.ListAll scan: %w: %w", ErrUnavailable, err)
		}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("tenant.SQLite.ListAll iteration: %w: %w", ErrUnavailable, err)
	}
	return out, nil
}

func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
