package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Progress backends accepted in progress.backend.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

type Config struct {
	Server struct {
		Port          string `yaml:"port" env:"PORT"`
		SessionSecret string `yaml:"session_secret" env:"SESSION_SECRET"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr" env:"REDIS_ADDR"`
		Password string `yaml:"password" env:"REDIS_PASSWORD"`
		DB       int    `yaml:"db" env:"REDIS_DB"`
		TTL      string `yaml:"ttl" env:"REDIS_TTL"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url" env:"POSTGRES_URL"`
	} `yaml:"postgres"`
	SQLite struct {
		Path string `yaml:"path" env:"SQLITE_PATH"`
	} `yaml:"sqlite"`
	Progress struct {
		Backend string `yaml:"backend" env:"PROGRESS_BACKEND"`
	} `yaml:"progress"`
	Generation struct {
		APIKey   string `yaml:"api_key" env:"OPENAI_API_KEY"`
		BaseURL  string `yaml:"base_url" env:"OPENAI_BASE_URL"`
		Model    string `yaml:"model" env:"OPENAI_MODEL"`
		Timeout  string `yaml:"timeout" env:"GENERATION_TIMEOUT"`
		CacheTTL string `yaml:"cache_ttl" env:"GENERATION_CACHE_TTL"`
	} `yaml:"generation"`
}

// Load reads YAML config from path, then applies environment overrides.
// A missing file is not an error; the environment alone can configure the service.
func Load(path string) (Config, error) {
	cfg := Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return cfg, err
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, err
			}
		}
	}
	if err := ParseEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// ProgressBackend picks the progress store: explicit setting first, then the
// first configured storage, then a local SQLite file.
func (c Config) ProgressBackend() string {
	switch {
	case c.Progress.Backend != "":
		return c.Progress.Backend
	case c.Postgres.URL != "":
		return BackendPostgres
	case c.Redis.Addr != "":
		return BackendRedis
	default:
		return BackendSQLite
	}
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
