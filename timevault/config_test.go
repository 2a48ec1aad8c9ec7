package timevault

import (
	"os"
	"path/filepath"
	"testing"
)

const testConfig = `
[log]
level = "debug"

[web]
host = "127.0.0.1"
port = 9090

[db]
host = "db.internal"
port = 5432
user = "timevault"
password = "secret"
database = "timevault"
pool_size = 10

[spaces]
region = "nyc3"
bucket = "tv-cards"
cardroot = "cards"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, testConfig))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Web.Port != 9090 {
		t.Errorf("web port = %d, want 9090", cfg.Web.Port)
	}
	if cfg.DB.Host != "db.internal" {
		t.Errorf("db host = %q, want %q", cfg.DB.Host, "db.internal")
	}
	if cfg.DB.PoolSize != 10 {
		t.Errorf("pool size = %d, want 10", cfg.DB.PoolSize)
	}
	if cfg.Spaces.Bucket != "tv-cards" {
		t.Errorf("bucket = %q, want %q", cfg.Spaces.Bucket, "tv-cards")
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("TIMEVAULT_DB_HOST", "db.override")
	t.Setenv("TIMEVAULT_WEB_PORT", "8081")

	cfg, err := LoadConfig(writeConfig(t, testConfig))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.DB.Host != "db.override" {
		t.Errorf("db host = %q, want env override %q", cfg.DB.Host, "db.override")
	}
	if cfg.Web.Port != 8081 {
		t.Errorf("web port = %d, want env override 8081", cfg.Web.Port)
	}
	if cfg.DB.User != "timevault" {
		t.Errorf("db user = %q, want file value %q", cfg.DB.User, "timevault")
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}
