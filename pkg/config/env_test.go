package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestEnvOr(t *testing.T) {
	t.Setenv("CFG_TEST_STR", "value")
	if got := EnvOr("CFG_TEST_STR", "fallback"); got != "value" {
		t.Errorf("EnvOr = %q, want value", got)
	}
	if got := EnvOr("CFG_TEST_UNSET", "fallback"); got != "fallback" {
		t.Errorf("EnvOr = %q, want fallback", got)
	}
}

func TestEnvOrInt(t *testing.T) {
	t.Setenv("CFG_TEST_INT", "42")
	t.Setenv("CFG_TEST_BAD_INT", "forty")
	if got := EnvOrInt("CFG_TEST_INT", 1); got != 42 {
		t.Errorf("EnvOrInt = %d, want 42", got)
	}
	if got := EnvOrInt("CFG_TEST_BAD_INT", 7); got != 7 {
		t.Errorf("EnvOrInt bad value = %d, want 7", got)
	}
}

func TestEnvOrBool(t *testing.T) {
	tests := []struct {
		raw      string
		fallback bool
		want     bool
	}{
		{"", true, true},
		{"1", false, true},
		{"TRUE", false, true},
		{"on", false, true},
		{"no", true, false},
		{"0", true, false},
		{"maybe", true, true},
	}
	for _, tt := range tests {
		t.Setenv("CFG_TEST_BOOL", tt.raw)
		if got := EnvOrBool("CFG_TEST_BOOL", tt.fallback); got != tt.want {
			t.Errorf("EnvOrBool(%q, %v) = %v, want %v", tt.raw, tt.fallback, got, tt.want)
		}
	}
}

func TestEnvOrDuration(t *testing.T) {
	tests := []struct {
		raw  string
		want time.Duration
	}{
		{"", time.Minute},
		{"30s", 30 * time.Second},
		{"15", 15 * time.Second},
		{"soon", time.Minute},
	}
	for _, tt := range tests {
		t.Setenv("CFG_TEST_DUR", tt.raw)
		if got := EnvOrDuration("CFG_TEST_DUR", time.Minute); got != tt.want {
			t.Errorf("EnvOrDuration(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestIsDevEnv(t *testing.T) {
	for _, v := range []string{"dev", "Development", "local"} {
		t.Setenv("ENV", v)
		if !IsDevEnv() {
			t.Errorf("IsDevEnv() false for %q", v)
		}
	}
	t.Setenv("ENV", "prod")
	if IsDevEnv() {
		t.Error("IsDevEnv() true for prod")
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	if err := os.WriteFile(path, []byte("CFG_DOTENV_NEW=from-file\nCFG_DOTENV_SET=from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CFG_DOTENV_SET", "from-env")
	t.Cleanup(func() { os.Unsetenv("CFG_DOTENV_NEW") })

	if err := LoadDotEnv(path, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := os.Getenv("CFG_DOTENV_NEW"); got != "from-file" {
		t.Errorf("CFG_DOTENV_NEW = %q", got)
	}
	if got := os.Getenv("CFG_DOTENV_SET"); got != "from-env" {
		t.Errorf("existing env var overridden: %q", got)
	}
}
