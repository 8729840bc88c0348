package keys

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore administers keys in Postgres.
type PGStore struct {
	pool       *pgxpool.Pool
	iterations int
	now        func() time.Time
}

var _ Admin = (*PGStore)(nil)

// NewPGStore creates a key store backed by the given pool.
func NewPGStore(pool *pgxpool.Pool, iterations int) *PGStore {
	return &PGStore{pool: pool, iterations: iterations, now: time.Now}
}

// AddTenant inserts a tenant, updating its name if it already exists.
func (s *PGStore) AddTenant(ctx context.Context, id, name string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO tenants (id, name) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`, id, name)
	if err != nil {
		return fmt.Errorf("keys.AddTenant: %w", err)
	}
	return nil
}

// List returns every key of the tenant, newest first.
func (s *PGStore) List(ctx context.Context, tenantID string) ([]Row, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, tenant_id, name, algo, iterations, revoked_at, created_at
		FROM tenants_api_keys
		WHERE tenant_id = $1
		ORDER BY created_at DESC`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("keys.List: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.ID, &r.TenantID, &r.Name, &r.Algo, &r.Iterations, &r.RevokedAt, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("keys.List scan: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("keys.List iteration: %w", err)
	}
	return out, nil
}

// Create issues a new active key for the tenant.
func (s *PGStore) Create(ctx context.Context, tenantID, name string) (Issued, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Issued{}, fmt.Errorf("keys.Create begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	issued, err := s.insertTx(ctx, tx, tenantID, name)
	if err != nil {
		return Issued{}, fmt.Errorf("keys.Create: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return Issued{}, fmt.Errorf("keys.Create commit: %w", err)
	}
	return issued, nil
}

// Revoke marks the named active key revoked and returns the affected row count.
func (s *PGStore) Revoke(ctx context.Context, tenantID, name string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE tenants_api_keys SET revoked_at = $3
		WHERE tenant_id = $1 AND name = $2 AND revoked_at IS NULL`,
		tenantID, name, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("keys.Revoke: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Rotate revokes previous (or the newest active key when previous is empty)
// and issues a new key in one transaction.
func (s *PGStore) Rotate(ctx context.Context, tenantID, previous, next string) (Issued, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Issued{}, fmt.Errorf("keys.Rotate begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	now := s.now().UTC()
	if previous != "" {
		_, err = tx.Exec(ctx, `
			UPDATE tenants_api_keys SET revoked_at = $3
			WHERE tenant_id = $1 AND name = $2 AND revoked_at IS NULL`,
			tenantID, previous, now)
	} else {
		_, err = tx.Exec(ctx, `
			UPDATE tenants_api_keys SET revoked_at = $2
			WHERE id = (
				SELECT id FROM tenants_api_keys
				WHERE tenant_id = $1 AND revoked_at IS NULL
				ORDER BY created_at DESC LIMIT 1
			)`, tenantID, now)
	}
	if err != nil {
		return Issued{}, fmt.Errorf("keys.Rotate revoke: %w", err)
	}

	issued, err := s.insertTx(ctx, tx, tenantID, next)
	if err != nil {
		return Issued{}, fmt.Errorf("keys.Rotate: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return Issued{}, fmt.Errorf("keys.Rotate commit: %w", err)
	}
	return issued, nil
}

func (s *PGStore) insertTx(ctx context.Context, tx pgx.Tx, tenantID, name string) (Issued, error) {
	now := s.now().UTC()
	name = defaultName(name, now)
	plain, h, err := newMaterial(s.iterations)
	if err != nil {
		return Issued{}, err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO tenants_api_keys
			(id, tenant_id, name, fingerprint, algo, iterations, salt_b64, hash_b64, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		uuid.NewString(), tenantID, name, Fingerprint(plain),
		h.Algo, h.Iterations, h.SaltB64, h.HashB64, now)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return Issued{}, ErrTenantNotFound
		}
		return Issued{}, err
	}
	return Issued{TenantID: tenantID, Name: name, Key: plain}, nil
}
