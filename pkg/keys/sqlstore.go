package keys

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SQLStore administers keys in a database/sql backend. The gateway uses it
// with modernc.org/sqlite.
type SQLStore struct {
	db         *sql.DB
	iterations int
	now        func() time.Time
}

var _ Admin = (*SQLStore)(nil)

// NewSQLStore creates a key store over db.
func NewSQLStore(db *sql.DB, iterations int) *SQLStore {
	return &SQLStore{db: db, iterations: iterations, now: time.Now}
}

func (s *SQLStore) AddTenant(ctx context.Context, id, name string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tenants (id, name) VALUES (?, ?)
		ON CONFLICT (id) DO UPDATE SET name = excluded.name`, id, name)
	if err != nil {
		return fmt.Errorf("keys.AddTenant: %w", err)
	}
	return nil
}

func (s *SQLStore) List(ctx context.Context, tenantID string) ([]Row, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, name, algo, iterations, revoked_at, created_at
		FROM tenants_api_keys
		WHERE tenant_id = ?
		ORDER BY created_at DESC`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("keys.List: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		var revoked sql.NullTime
		if err := rows.Scan(&r.ID, &r.TenantID, &r.Name, &r.Algo, &r.Iterations, &revoked, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("keys.List scan: %w", err)
		}
		if revoked.Valid {
			t := revoked.Time
			r.RevokedAt = &t
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("keys.List iteration: %w", err)
	}
	return out, nil
}

func (s *SQLStore) Create(ctx context.Context, tenantID, name string) (Issued, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Issued{}, fmt.Errorf("keys.Create begin tx: %w", err)
	}
	defer tx.Rollback()

	issued, err := s.insertTx(ctx, tx, tenantID, name)
	if err != nil {
		return Issued{}, fmt.Errorf("keys.Create: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Issued{}, fmt.Errorf("keys.Create commit: %w", err)
	}
	return issued, nil
}

func (s *SQLStore) Revoke(ctx context.Context, tenantID, name string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE tenants_api_keys SET revoked_at = ?
		WHERE tenant_id = ? AND name = ? AND revoked_at IS NULL`,
		s.now().UTC(), tenantID, name)
	if err != nil {
		return 0, fmt.Errorf("keys.Revoke: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("keys.Revoke rows: %w", err)
	}
	return n, nil
}

func (s *SQLStore) Rotate(ctx context.Context, tenantID, previous, next string) (Issued, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Issued{}, fmt.Errorf("keys.Rotate begin tx: %w", err)
	}
	defer tx.Rollback()

	now := s.now().UTC()
	if previous != "" {
		_, err = tx.ExecContext(ctx, `
			UPDATE tenants_api_keys SET revoked_at = ?
			WHERE tenant_id = ? AND name = ? AND revoked_at IS NULL`,
			now, tenantID, previous)
	} else {
		_, err = tx.ExecContext(ctx, `
			UPDATE tenants_api_keys SET revoked_at = ?
			WHERE id = (
				SELECT id FROM tenants_api_keys
				WHERE tenant_id = ? AND revoked_at IS NULL
				ORDER BY created_at DESC LIMIT 1
			)`, now, tenantID)
	}
	if err != nil {
		return Issued{}, fmt.Errorf("keys.Rotate revoke: %w", err)
	}

	issued, err := s.insertTx(ctx, tx, tenantID, next)
	if err != nil {
		return Issued{}, fmt.Errorf("keys.Rotate: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Issued{}, fmt.Errorf("keys.Rotate commit: %w", err)
	}
	return issued, nil
}

// insertTx checks the tenant explicitly since SQLite only enforces foreign
// keys when the pragma is on.
func (s *SQLStore) insertTx(ctx context.Context, tx *sql.Tx, tenantID, name string) (Issued, error) {
	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM tenants WHERE id = ?`, tenantID).Scan(&exists); err != nil {
		return Issued{}, err
	}
	if exists == 0 {
		return Issued{}, ErrTenantNotFound
	}

	now := s.now().UTC()
	name = defaultName(name, now)
	plain, h, err := newMaterial(s.iterations)
	if err != nil {
		return Issued{}, err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO tenants_api_keys
			(id, tenant_id, name, fingerprint, algo, iterations, salt_b64, hash_b64, created_at)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		uuid.NewString(), tenantID, name, Fingerprint(plain),
		h.Algo, h.Iterations, h.SaltB64, h.HashB64, now)
	if err != nil {
		return Issued{}, err
	}
	return Issued{TenantID: tenantID, Name: name, Key: plain}, nil
}
