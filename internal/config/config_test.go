package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleYAML = `
app:
  env: prod
  log_level: warn
server:
  addr: ":9090"
  host: https://id.example.com
storage:
  driver: redis
  redis:
    addr: redis:6379
    prefix: "id:"
auth:
  secret: file-secret
  origin_ttl: 5m
  reserved_usernames: [root, hostmaster]
oauth:
  facebook:
    client_id: fb-app
    client_secret: fb-secret
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFromFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.App.Env != "prod" || cfg.App.LogLevel != "warn" {
		t.Fatalf("app = %+v", cfg.App)
	}
	if cfg.Server.Addr != ":9090" || cfg.Server.Host != "https://id.example.com" {
		t.Fatalf("server = %+v", cfg.Server)
	}
	if cfg.Storage.Driver != "redis" || cfg.Storage.Redis.Prefix != "id:" {
		t.Fatalf("storage = %+v", cfg.Storage)
	}
	if cfg.Auth.OriginTTL != 5*time.Minute {
		t.Fatalf("origin ttl = %v", cfg.Auth.OriginTTL)
	}
	if len(cfg.Auth.ReservedUsernames) != 2 {
		t.Fatalf("reserved = %v", cfg.Auth.ReservedUsernames)
	}
	if cfg.OAuth.Facebook.ClientID != "fb-app" {
		t.Fatalf("facebook = %+v", cfg.OAuth.Facebook)
	}
	if cfg.OAuth.Google.ClientID != "" {
		t.Fatalf("google should be disabled: %+v", cfg.OAuth.Google)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("AUTH_SECRET", "env-secret")
	t.Setenv("STORAGE_DRIVER", "postgres")
	t.Setenv("POSTGRES_DSN", "postgres://localhost/featherfeed")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Auth.Secret != "env-secret" {
		t.Fatalf("secret = %q", cfg.Auth.Secret)
	}
	if cfg.Storage.Driver != "postgres" || cfg.Storage.Postgres.DSN != "postgres://localhost/featherfeed" {
		t.Fatalf("storage = %+v", cfg.Storage)
	}
	// Defaults survive where nothing overrides them.
	if cfg.Server.Addr != ":8080" || cfg.App.Env != "dev" {
		t.Fatalf("defaults = %+v", cfg)
	}
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")

	if _, err := Load(""); err == nil {
		t.Fatal("expected an error for a missing auth secret")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}
