package keys

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrTenantNotFound is returned when a key operation names an unknown tenant.
var ErrTenantNotFound = errors.New("keys: tenant not found")

// Row is one stored key. The hash material never leaves the store.
type Row struct {
	ID         string     `json:"id"`
	TenantID   string     `json:"tenant_id"`
	Name       string     `json:"name"`
	Algo       string     `json:"algo"`
	Iterations int        `json:"iterations"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Active reports whether the key has not been revoked.
func (r Row) Active() bool { return r.RevokedAt == nil }

// Issued is a freshly created key. Key is the plaintext and is only ever
// returned once.
type Issued struct {
	TenantID string `json:"tenant_id"`
	Name     string `json:"name"`
	Key      string `json:"api_key"`
}

// Admin manages the key table. Implemented by PGStore and SQLStore.
type Admin interface {
	AddTenant(ctx context.Context, id, name string) error
	List(ctx context.Context, tenantID string) ([]Row, error)
	Create(ctx context.Context, tenantID, name string) (Issued, error)
	Revoke(ctx context.Context, tenantID, name string) (int64, error)
	Rotate(ctx context.Context, tenantID, previous, next string) (Issued, error)
}

func defaultName(name string, now time.Time) string {
	if name != "" {
		return name
	}
	return fmt.Sprintf("key-%d", now.Unix())
}

// newMaterial generates a key and its storable form.
func newMaterial(iterations int) (plain string, h Hash, err error) {
	plain, err = Generate()
	if err != nil {
		return "", Hash{}, err
	}
	h, err = Derive(plain, iterations)
	if err != nil {
		return "", Hash{}, err
	}
	return plain, h, nil
}
