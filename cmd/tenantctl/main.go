// Tenantctl administers tenants, API keys and tenant config files against
// the gateway's database. It refuses to run outside development.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/goccy/go-json"

	"github.com/LucasEdu07/friday-agents/pkg/config"
	"github.com/LucasEdu07/friday-agents/pkg/keys"
	"github.com/LucasEdu07/friday-agents/pkg/tenant"
	"github.com/LucasEdu07/friday-agents/pkg/tenantcfg"
)

const usage = `usage: tenantctl <command> [flags]

commands:
  tenants-list                          list tenants with at least one live key
  tenants-add   -id ID -name NAME       create a tenant
  keys-list     -tenant ID              list a tenant's keys
  keys-create   -tenant ID [-name N]    issue a key (printed once)
  keys-rotate   -tenant ID [-previous N] [-name N]
  keys-revoke   -tenant ID -name N
  sync-configs  [-overwrite]            write default tenants/<id>/config.yaml files
`

var errUsage = errors.New("invalid usage")

func main() {
	_ = config.LoadDotEnv()
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}
	if !config.IsDevEnv() {
		fmt.Fprintln(stderr, "tenantctl: refusing to run outside development (set ENV=dev)")
		return 1
	}

	backend, err := tenant.OpenBackend(ctx, tenant.BackendConfig{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		Iterations:  config.EnvOrInt("API_KEY_ITERATIONS", keys.DefaultIterations),
		Migrate:     true,
	})
	if err != nil {
		fmt.Fprintln(stderr, "tenantctl:", err)
		return 1
	}
	defer backend.Close()

	c := &cli{
		backend: backend,
		loader:  &tenantcfg.Loader{Dir: config.EnvOr("TENANT_CONFIG_DIR", "./tenants")},
		out:     stdout,
		errOut:  stderr,
	}
	if err := c.dispatch(ctx, args[0], args[1:]); err != nil {
		if errors.Is(err, errUsage) || errors.Is(err, flag.ErrHelp) {
			fmt.Fprint(stderr, usage)
			return 2
		}
		fmt.Fprintln(stderr, "tenantctl:", err)
		return 1
	}
	return 0
}

type cli struct {
	backend *tenant.Backend
	loader  *tenantcfg.Loader
	out     io.Writer
	errOut  io.Writer
}

func (c *cli) print(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (c *cli) keys() (keys.Admin, error) {
	if c.backend.Keys == nil {
		return nil, errors.New("key commands need DATABASE_URL (postgres:// or sqlite:)")
	}
	return c.backend.Keys, nil
}

func (c *cli) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.errOut)
	return fs
}

func (c *cli) dispatch(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "tenants-list":
		list, err := c.backend.Directory.ListAll(ctx)
		if err != nil {
			return err
		}
		if list == nil {
			list = []tenant.Summary{}
		}
		return c.print(list)

	case "tenants-add":
		fs := c.flags(cmd)
		id := fs.String("id", "", "tenant id")
		name := fs.String("name", "", "display name")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if *id == "" || *name == "" {
			return errUsage
		}
		admin, err := c.keys()
		if err != nil {
			return err
		}
		if err := admin.AddTenant(ctx, *id, *name); err != nil {
			return err
		}
		return c.print(tenant.Summary{ID: *id, Name: *name})

	case "keys-list":
		fs := c.flags(cmd)
		tenantID := fs.String("tenant", "", "tenant id")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if *tenantID == "" {
			return errUsage
		}
		admin, err := c.keys()
		if err != nil {
			return err
		}
		rows, err := admin.List(ctx, *tenantID)
		if err != nil {
			return err
		}
		if rows == nil {
			rows = []keys.Row{}
		}
		return c.print(rows)

	case "keys-create":
		fs := c.flags(cmd)
		tenantID := fs.String("tenant", "", "tenant id")
		name := fs.String("name", "", "key name (default key-<unix>)")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if *tenantID == "" {
			return errUsage
		}
		admin, err := c.keys()
		if err != nil {
			return err
		}
		issued, err := admin.Create(ctx, *tenantID, *name)
		if err != nil {
			return err
		}
		return c.print(issued)

	case "keys-rotate":
		fs := c.flags(cmd)
		tenantID := fs.String("tenant", "", "tenant id")
		previous := fs.String("previous", "", "key to revoke (default newest active)")
		name := fs.String("name", "", "name of the new key")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if *tenantID == "" {
			return errUsage
		}
		admin, err := c.keys()
		if err != nil {
			return err
		}
		issued, err := admin.Rotate(ctx, *tenantID, *previous, *name)
		if err != nil {
			return err
		}
		return c.print(issued)

	case "keys-revoke":
		fs := c.flags(cmd)
		tenantID := fs.String("tenant", "", "tenant id")
		name := fs.String("name", "", "key name")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if *tenantID == "" || *name == "" {
			return errUsage
		}
		admin, err := c.keys()
		if err != nil {
			return err
		}
		n, err := admin.Revoke(ctx, *tenantID, *name)
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("no active key %q for tenant %s", *name, *tenantID)
		}
		return c.print(map[string]int64{"revoked": n})

	case "sync-configs":
		fs := c.flags(cmd)
		overwrite := fs.Bool("overwrite", false, "replace existing files")
		if err := fs.Parse(args); err != nil {
			return err
		}
		p := &tenantcfg.Provisioner{Loader: c.loader, Source: c.backend.Directory}
		n, err := p.Sync(ctx, *overwrite)
		if err != nil {
			return err
		}
		return c.print(map[string]any{"written": n, "dir": c.loader.Dir})
	}
	return errUsage
}
