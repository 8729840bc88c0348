package tenant

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/LucasEdu07/friday-agents/pkg/keys"
)

// Static is an in-memory directory used when no store is configured.
// It never reports ErrUnavailable. Thread-safe.
type Static struct {
	mu   sync.RWMutex
	keys map[string]Identity // fingerprint → identity
}

var _ Directory = (*Static)(nil)

// StaticEntry is one row of a static table.
type StaticEntry struct {
	Key  string
	ID   string
	Name string
}

// DefaultFallback is the table served when neither DATABASE_URL nor
// STATIC_TENANTS is set.
func DefaultFallback() []StaticEntry {
	return []StaticEntry{
		{Key: "camila123", ID: "1", Name: "Dra. Camila"},
		{Key: "zeoficina456", ID: "2", Name: "Oficina do Zé"},
		{Key: "squad789", ID: "3", Name: "Squad Inc"},
	}
}

// NewStatic builds a directory from entries. Later entries win on key clashes.
func NewStatic(entries []StaticEntry) *Static {
	s := &Static{keys: make(map[string]Identity, len(entries))}
	for _, e := range entries {
		fp := keys.Fingerprint(e.Key)
		s.keys[fp] = Identity{ID: e.ID, DisplayName: e.Name, KeyFingerprint: fp, Status: StatusActive}
	}
	return s
}

// ParseStatic reads a comma-separated "id:key:name" list. The name is
// optional and defaults to the id. Malformed pairs are skipped.
// Example: "1:sk-abc:Acme,2:sk-def"
func ParseStatic(raw string) []StaticEntry {
	var out []StaticEntry
	if strings.TrimSpace(raw) == "" {
		return out
	}
	for _, item := range strings.Split(raw, ",") {
		parts := strings.SplitN(strings.TrimSpace(item), ":", 3)
		if len(parts) < 2 {
			continue
		}
		id := strings.TrimSpace(parts[0])
		key := strings.TrimSpace(parts[1])
		if id == "" || key == "" {
			continue
		}
		name := id
		if len(parts) == 3 && strings.TrimSpace(parts[2]) != "" {
			name = strings.TrimSpace(parts[2])
		}
		out = append(out, StaticEntry{Key: key, ID: id, Name: name})
	}
	return out
}

// Resolve returns a copy of the matching identity, or nil.
func (s *Static) Resolve(_ context.Context, apiKey string) (*Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.keys[keys.Fingerprint(apiKey)]
	if !ok {
		return nil, nil
	}
	return &id, nil
}

// ListAll returns one row per tenant ordered by id.
func (s *Static) ListAll(_ context.Context) ([]Summary, error) {
	s.mu.RLock()
	seen := make(map[string]Summary, len(s.keys))
	for _, id := range s.keys {
		if _, ok := seen[id.ID]; !ok {
			seen[id.ID] = Summary{ID: id.ID, Name: id.DisplayName}
		}
	}
	s.mu.RUnlock()

	out := make([]Summary, 0, len(seen))
	for _, sum := range seen {
		out = append(out, sum)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
