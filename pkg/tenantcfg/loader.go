package tenantcfg

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// ErrConfigNotFound is returned when a tenant has no config file.
var ErrConfigNotFound = errors.New("tenant config not found")

const fileName = "config.yaml"

// Loader reads tenant files below Dir. Values from the environment override
// the file: TENANT_<ID>__CORS__ORIGINS=https://a,https://b sets cors.origins
// for tenant <ID>.
type Loader struct {
	Dir string
}

// Path returns the config file of tenantID.
func (l *Loader) Path(tenantID string) string {
	return filepath.Join(l.Dir, tenantID, fileName)
}

// EnvPrefix returns the override prefix of tenantID.
func EnvPrefix(tenantID string) string {
	var b strings.Builder
	b.WriteString("TENANT_")
	for _, r := range strings.ToUpper(tenantID) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	b.WriteString("__")
	return b.String()
}

// Load reads and validates one tenant's configuration.
func (l *Loader) Load(tenantID string) (*TenantConfig, error) {
	path := l.Path(tenantID)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, tenantID)
		}
		return nil, fmt.Errorf("tenantcfg.Load %s: %w", tenantID, err)
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("tenantcfg.Load %s: %w", tenantID, err)
	}

	prefix := EnvPrefix(tenantID)
	if err := k.Load(env.ProviderWithValue(prefix, ".", func(key, value string) (string, any) {
		key = strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(key, prefix)), "__", ".")
		if key == "cors.origins" {
			return key, splitList(value)
		}
		return key, value
	}), nil); err != nil {
		return nil, fmt.Errorf("tenantcfg.Load %s env: %w", tenantID, err)
	}

	cfg := Default("")
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("tenantcfg.Load %s decode: %w", tenantID, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("tenantcfg.Load %s: %w", tenantID, err)
	}
	return &cfg, nil
}

// LoadAll loads every tenant directory that holds a config file.
// Any invalid file fails the whole load.
func (l *Loader) LoadAll() (map[string]*TenantConfig, error) {
	ids, err := l.TenantIDs()
	if err != nil {
		return nil, err
	}
	out := make(map[string]*TenantConfig, len(ids))
	for _, id := range ids {
		cfg, err := l.Load(id)
		if err != nil {
			return nil, err
		}
		out[id] = cfg
	}
	return out, nil
}

// TenantIDs lists tenant directories holding a config file, sorted.
func (l *Loader) TenantIDs() ([]string, error) {
	entries, err := os.ReadDir(l.Dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("tenantcfg.TenantIDs: %w", err)
	}
	var ids []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := os.Stat(l.Path(e.Name())); err == nil {
			ids = append(ids, e.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
