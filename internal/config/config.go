package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Tailscale TailscaleConfig `yaml:"tailscale"`
	Client    ClientConfig    `yaml:"client"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig points at PostgreSQL. An empty host runs the backend on
// the in-memory store.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

type AuthConfig struct {
	APIKey    string        `yaml:"api_key"`
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type TailscaleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Hostname string `yaml:"hostname"`
	StateDir string `yaml:"state_dir"`
}

// ClientConfig drives cmd/fitcourse.
type ClientConfig struct {
	RemoteURL         string        `yaml:"remote_url"`
	StateDir          string        `yaml:"state_dir"`
	CacheTTL          time.Duration `yaml:"cache_ttl"`
	InactivityTimeout time.Duration `yaml:"inactivity_timeout"`
	CheckInterval     time.Duration `yaml:"check_interval"`
	Fanout            int           `yaml:"fanout"`
}

// DSN returns a PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	sslmode := d.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, sslmode)
}

// InMemory reports whether no database is configured.
func (d DatabaseConfig) InMemory() bool {
	return d.Host == ""
}

func defaults() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return &Config{
		Server:    ServerConfig{Host: "0.0.0.0", Port: 8080},
		Auth:      AuthConfig{TokenTTL: 30 * 24 * time.Hour},
		Tailscale: TailscaleConfig{Hostname: "fitcourse"},
		Client: ClientConfig{
			RemoteURL:         "http://localhost:8080",
			StateDir:          filepath.Join(home, ".fitcourse"),
			CacheTTL:          8 * time.Hour,
			InactivityTimeout: 3 * time.Minute,
			CheckInterval:     time.Minute,
			Fanout:            8,
		},
	}
}

// Load reads the backend config from a YAML file, then applies environment
// variable overrides. A .env file in the working directory is loaded first.
// Env vars use the prefix FITCOURSE_ and underscore-separated paths:
//
//	FITCOURSE_SERVER_HOST, FITCOURSE_SERVER_PORT,
//	FITCOURSE_DB_HOST, FITCOURSE_DB_PORT, FITCOURSE_DB_NAME,
//	FITCOURSE_DB_USER, FITCOURSE_DB_PASSWORD, FITCOURSE_DB_SSLMODE,
//	FITCOURSE_AUTH_API_KEY, FITCOURSE_AUTH_JWT_SECRET, FITCOURSE_AUTH_TOKEN_TTL,
//	FITCOURSE_TAILSCALE_ENABLED, FITCOURSE_TAILSCALE_HOSTNAME
func Load(path string) (*Config, error) {
	cfg, err := read(path, true)
	if err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// LoadClient reads the client config. The file is optional; defaults cover
// a backend on localhost. Client overrides:
//
//	FITCOURSE_REMOTE_URL, FITCOURSE_STATE_DIR, FITCOURSE_CACHE_TTL,
//	FITCOURSE_INACTIVITY_TIMEOUT, FITCOURSE_CHECK_INTERVAL, FITCOURSE_FANOUT
func LoadClient(path string) (*ClientConfig, error) {
	cfg, err := read(path, false)
	if err != nil {
		return nil, err
	}
	if err := cfg.Client.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return &cfg.Client, nil
}

func read(path string, required bool) (*Config, error) {
	// A missing .env is normal.
	_ = godotenv.Load()

	cfg := defaults()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	case required || !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envDuration(key string, dst *time.Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

func envBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func applyEnvOverrides(cfg *Config) {
	envString("FITCOURSE_SERVER_HOST", &cfg.Server.Host)
	envInt("FITCOURSE_SERVER_PORT", &cfg.Server.Port)
	envString("FITCOURSE_DB_HOST", &cfg.Database.Host)
	envInt("FITCOURSE_DB_PORT", &cfg.Database.Port)
	envString("FITCOURSE_DB_NAME", &cfg.Database.Name)
	envString("FITCOURSE_DB_USER", &cfg.Database.User)
	envString("FITCOURSE_DB_PASSWORD", &cfg.Database.Password)
	envString("FITCOURSE_DB_SSLMODE", &cfg.Database.SSLMode)
	envString("FITCOURSE_AUTH_API_KEY", &cfg.Auth.APIKey)
	envString("FITCOURSE_AUTH_JWT_SECRET", &cfg.Auth.JWTSecret)
	envDuration("FITCOURSE_AUTH_TOKEN_TTL", &cfg.Auth.TokenTTL)
	envBool("FITCOURSE_TAILSCALE_ENABLED", &cfg.Tailscale.Enabled)
	envString("FITCOURSE_TAILSCALE_HOSTNAME", &cfg.Tailscale.Hostname)

	envString("FITCOURSE_REMOTE_URL", &cfg.Client.RemoteURL)
	envString("FITCOURSE_STATE_DIR", &cfg.Client.StateDir)
	envDuration("FITCOURSE_CACHE_TTL", &cfg.Client.CacheTTL)
	envDuration("FITCOURSE_INACTIVITY_TIMEOUT", &cfg.Client.InactivityTimeout)
	envDuration("FITCOURSE_CHECK_INTERVAL", &cfg.Client.CheckInterval)
	envInt("FITCOURSE_FANOUT", &cfg.Client.Fanout)
}

func (c *Config) validate() error {
	if c.Server.Port == 0 {
		return fmt.Errorf("server.port is required")
	}
	if !c.Database.InMemory() {
		if c.Database.Port == 0 {
			return fmt.Errorf("database.port is required")
		}
		if c.Database.Name == "" {
			return fmt.Errorf("database.name is required")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database.user is required")
		}
	}
	if c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key is required")
	}
	if len(c.Auth.JWTSecret) < 16 {
		return fmt.Errorf("auth.jwt_secret must be at least 16 characters")
	}
	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}
	return nil
}

func (c *ClientConfig) validate() error {
	if c.RemoteURL == "" {
		return fmt.Errorf("client.remote_url is required")
	}
	if c.StateDir == "" {
		return fmt.Errorf("client.state_dir is required")
	}
	if c.CacheTTL <= 0 || c.InactivityTimeout <= 0 || c.CheckInterval <= 0 {
		return fmt.Errorf("client durations must be positive")
	}
	if c.Fanout <= 0 {
		return fmt.Errorf("client.fanout must be positive")
	}
	return nil
}
