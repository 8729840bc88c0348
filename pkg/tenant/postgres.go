package tenant

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/LucasEdu07/friday-agents/pkg/keys"
)

// candidate is a key row that matched the fingerprint index and still has to
// pass hash verification.
type candidate struct {
	id     Identity
	stored keys.Hash
}

// verify returns the first candidate whose hash matches apiKey.
func verify(apiKey string, cands []candidate) *Identity {
	for i := range cands {
		if keys.Verify(apiKey, cands[i].stored) {
			id := cands[i].id
			return &id
		}
	}
	return nil
}

const resolveSQL = `
	SELECT t.id, t.name, t.status, k.fingerprint, k.algo, k.iterations, k.salt_b64, k.hash_b64
	FROM tenants_api_keys k
	JOIN tenants t ON t.id = k.tenant_id
	WHERE k.fingerprint = %s AND k.revoked_at IS NULL`

const listAllSQL = `
	SELECT t.id, t.name
	FROM tenants t
	WHERE EXISTS (
		SELECT 1 FROM tenants_api_keys k
		WHERE k.tenant_id = t.id AND k.revoked_at IS NULL
	)
	ORDER BY t.id`

// Postgres resolves tenants from the tenants and tenants_api_keys tables.
type Postgres struct {
	pool *pgxpool.Pool
}

var (
	_ Directory = (*Postgres)(nil)
	_ Pinger    = (*Postgres)(nil)
)

// NewPostgres creates a directory backed by the given connection pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Resolve looks the key up by fingerprint and verifies its hash. Every
// query, scan or connection failure is reported as ErrUnavailable.
func (p *Postgres) Resolve(ctx context.Context, apiKey string) (*Identity, error) {
	rows, err := p.pool.Query(ctx, fmt.Sprintf(resolveSQL, "$1"), keys.Fingerprint(apiKey))
	if err != nil {
		return nil, fmt.Errorf("tenant.Postgres.Resolve: %w: %w", ErrUnavailable, err)
	}
	defer rows.Close()

	var cands []candidate
	for rows.Next() {
		var c candidate
		var status string
		if err := rows.Scan(&c.id.ID, &c.id.DisplayName, &status, &c.id.KeyFingerprint,
			&c.stored.Algo, &c.stored.Iterations, &c.stored.SaltB64, &c.stored.HashB64); err != nil {
			return nil, fmt.Errorf("tenant.Postgres.Resolve scan: %w: %w", ErrUnavailable, err)
		}
		c.id.Status = ParseStatus(status)
		cands = append(cands, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("tenant.Postgres.Resolve iteration: %w: %w", ErrUnavailable, err)
	}
	return verify(apiKey, cands), nil
}

func (p *Postgres) ListAll(ctx context.Context) ([]Summary, error) {
	rows, err := p.pool.Query(ctx, listAllSQL)
	if err != nil {
		return nil, fmt.Errorf("tenant.Postgres.ListAll: %w: %w", ErrUnavailable, err)
	}
	defer rows.Close()

	out := []Summary{}
	for rows.Next() {
		var s Summary
		if err := rows.Scan(&s.ID, &s.Name); err != nil {
			return nil, fmt.Errorf("tenant.Postgres.ListAll scan: %w: %w", ErrUnavailable, err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("tenant.Postgres.ListAll iteration: %w: %w", ErrUnavailable, err)
	}
	return out, nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}
