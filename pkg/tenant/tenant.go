// Package tenant resolves API keys to tenant identities.
//
// A Directory answers with one of three outcomes:
//
//	found       (*Identity, nil)
//	not found   (nil, nil)
//	unavailable (nil, err) where errors.Is(err, ErrUnavailable)
//
// Unavailable must never be folded into not found: an outage would otherwise
// look like an invalid credential to every tenant.
package tenant

import (
	"context"
	"errors"
	"strings"
)

// ErrUnavailable marks a directory that could not answer.
var ErrUnavailable = errors.New("tenant directory unavailable")

// Status is the lifecycle state of a tenant.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusRevoked  Status = "revoked"
)

// ParseStatus maps stored values onto Status. Unknown values are inactive.
func ParseStatus(s string) Status {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case StatusActive:
		return StatusActive
	case StatusRevoked:
		return StatusRevoked
	}
	return StatusInactive
}

// Identity is the canonical tenant record produced by every directory.
// It is immutable once returned.
type Identity struct {
	ID             string
	DisplayName    string
	KeyFingerprint string
	Status         Status
}

// Active reports whether the tenant may pass resolution.
func (i *Identity) Active() bool { return i != nil && i.Status == StatusActive }

// Summary is one row of ListAll.
type Summary struct {
	ID   string `json:"tenant_id"`
	Name string `json:"name"`
}

// Directory maps API keys to tenants. Callers must reject empty keys before
// calling Resolve.
type Directory interface {
	Resolve(ctx context.Context, apiKey string) (*Identity, error)
	// ListAll returns one row per tenant holding at least one non-revoked key,
	// ordered by id.
	ListAll(ctx context.Context) ([]Summary, error)
}

// Pinger is implemented by directories with a backing store to probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Outcome is the tagged result of a lookup, used for logs and metrics.
type Outcome string

const (
	OutcomeFound       Outcome = "found"
	OutcomeNotFound    Outcome = "not_found"
	OutcomeUnavailable Outcome = "unavailable"
)

// Classify folds a Resolve result into an Outcome. A matched but inactive
// tenant is not found.
func Classify(id *Identity, err error) Outcome {
	switch {
	case err != nil:
		return OutcomeUnavailable
	case !id.Active():
		return OutcomeNotFound
	default:
		return OutcomeFound
	}
}
