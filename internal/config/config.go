// Package config loads service configuration from a YAML file with
// environment variable overrides for deploy-time secrets.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		// dev | staging | prod
		Env      string `yaml:"env"`
		LogLevel string `yaml:"log_level"`
	} `yaml:"app"`

	Server struct {
		Addr string `yaml:"addr"`
		// Host is the externally visible base URL, used to build provider
		// callback URLs ({host}/v2/oauth/{provider}/callback).
		Host string `yaml:"host"`
	} `yaml:"server"`

	Storage struct {
		// Driver: "redis" | "postgres" | "memory"
		Driver string `yaml:"driver"`
		Redis  struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
		Postgres struct {
			DSN string `yaml:"dsn"`
		} `yaml:"postgres"`
	} `yaml:"storage"`

	Auth struct {
		// Secret signs session tokens and the origin capability state token.
		Secret string `yaml:"secret"`
		// OriginTTL bounds one OAuth round trip.
		OriginTTL time.Duration `yaml:"origin_ttl"`
		// ReservedUsernames are never handed out by the username generator.
		ReservedUsernames []string `yaml:"reserved_usernames"`
	} `yaml:"auth"`

	OAuth struct {
		Facebook ProviderCredentials `yaml:"facebook"`
		Google   ProviderCredentials `yaml:"google"`
		GitHub   ProviderCredentials `yaml:"github"`
	} `yaml:"oauth"`
}

// ProviderCredentials holds the app credentials issued by one provider.
// A provider with an empty client id is considered disabled.
type ProviderCredentials struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
}

// Load reads the YAML file at path (optional) and applies env overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	cfg.defaults()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if cfg.Auth.Secret == "" {
		return nil, fmt.Errorf("config: auth.secret is required")
	}
	return cfg, nil
}

func (c *Config) defaults() {
	c.App.Env = "dev"
	c.App.LogLevel = "info"
	c.Server.Addr = ":8080"
	c.Server.Host = "http://localhost:8080"
	c.Storage.Driver = "memory"
	c.Auth.OriginTTL = 10 * time.Minute
}

func (c *Config) applyEnv() {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&c.App.Env, "APP_ENV")
	set(&c.App.LogLevel, "LOG_LEVEL")
	set(&c.Server.Addr, "SERVER_ADDR")
	set(&c.Server.Host, "SERVER_HOST")
	set(&c.Storage.Driver, "STORAGE_DRIVER")
	set(&c.Storage.Redis.Addr, "REDIS_ADDR")
	set(&c.Storage.Redis.Password, "REDIS_PASSWORD")
	set(&c.Storage.Postgres.DSN, "POSTGRES_DSN")
	set(&c.Auth.Secret, "AUTH_SECRET")
	set(&c.OAuth.Facebook.ClientID, "FACEBOOK_CLIENT_ID")
	set(&c.OAuth.Facebook.ClientSecret, "FACEBOOK_CLIENT_SECRET")
	set(&c.OAuth.Google.ClientID, "GOOGLE_CLIENT_ID")
	set(&c.OAuth.Google.ClientSecret, "GOOGLE_CLIENT_SECRET")
	set(&c.OAuth.GitHub.ClientID, "GITHUB_CLIENT_ID")
	set(&c.OAuth.GitHub.ClientSecret, "GITHUB_CLIENT_SECRET")
}
