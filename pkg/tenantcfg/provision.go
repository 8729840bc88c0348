package tenantcfg

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/LucasEdu07/friday-agents/pkg/tenant"
)

// Lister enumerates tenants. tenant.Directory satisfies it.
type Lister interface {
	ListAll(ctx context.Context) ([]tenant.Summary, error)
}

// Provisioner writes default configuration files. It is only ever invoked
// explicitly (CLI, admin route, startup flag), never from a read path.
type Provisioner struct {
	Loader *Loader
	Source Lister
}

// Sync writes a default config for every listed tenant and returns how many
// files were written. Existing files are kept unless overwrite is set.
func (p *Provisioner) Sync(ctx context.Context, overwrite bool) (int, error) {
	tenants, err := p.Source.ListAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("tenantcfg.Sync: %w", err)
	}
	written := 0
	for _, t := range tenants {
		if t.ID == "" || t.Name == "" {
			continue
		}
		ok, err := p.ProvisionOne(t.ID, t.Name, overwrite)
		if err != nil {
			return written, err
		}
		if ok {
			written++
		}
	}
	return written, nil
}

// ProvisionOne writes the default config of a single tenant. It reports
// whether a file was written.
func (p *Provisioner) ProvisionOne(tenantID, name string, overwrite bool) (bool, error) {
	if tenantID == "" || filepath.Base(tenantID) != tenantID || tenantID == "." || tenantID == ".." {
		return false, fmt.Errorf("tenantcfg.ProvisionOne: invalid tenant id %q", tenantID)
	}
	dst := p.Loader.Path(tenantID)
	if !overwrite {
		if _, err := os.Stat(dst); err == nil {
			return false, nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			return false, fmt.Errorf("tenantcfg.ProvisionOne: %w", err)
		}
	}

	cfg := Default(name)
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return false, fmt.Errorf("tenantcfg.ProvisionOne marshal: %w", err)
	}
	if err := writeFileAtomic(dst, data); err != nil {
		return false, fmt.Errorf("tenantcfg.ProvisionOne: %w", err)
	}
	return true, nil
}

// writeFileAtomic writes through a temp file so a concurrent reload never
// reads a partial file.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".config-*.yaml")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
