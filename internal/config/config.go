package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

const (
	serverEnvPrefix  = "REPQUEST_"
	sessionEnvPrefix = "REPQUEST_SESSION_"
	minSecretLength  = 32
)

type Config struct {
	Server    ServerConfig    `yaml:"server" envPrefix:"SERVER_"`
	Database  DatabaseConfig  `yaml:"database" envPrefix:"DB_"`
	Auth      AuthConfig      `yaml:"auth" envPrefix:"AUTH_"`
	Live      LiveConfig      `yaml:"live" envPrefix:"LIVE_"`
	Tailscale TailscaleConfig `yaml:"tailscale" envPrefix:"TAILSCALE_"`
	Log       LogConfig       `yaml:"log" envPrefix:"LOG_"`
}

type ServerConfig struct {
	Host           string        `yaml:"host" env:"HOST"`
	Port           int           `yaml:"port" env:"PORT"`
	MigrationsPath string        `yaml:"migrations_path" env:"MIGRATIONS_PATH"`
	LevelCacheTTL  time.Duration `yaml:"level_cache_ttl" env:"LEVEL_CACHE_TTL"`
	// SeedFile optionally names a YAML file of levels upserted at startup.
	SeedFile string `yaml:"seed_file" env:"SEED_FILE"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host" env:"HOST"`
	Port     int    `yaml:"port" env:"PORT"`
	Name     string `yaml:"name" env:"NAME"`
	User     string `yaml:"user" env:"USER"`
	Password string `yaml:"password" env:"PASSWORD"`
	SSLMode  string `yaml:"sslmode" env:"SSLMODE"`
}

type AuthConfig struct {
	JWTSecret   string        `yaml:"jwt_secret" env:"JWT_SECRET"`
	TokenExpiry time.Duration `yaml:"token_expiry" env:"TOKEN_EXPIRY"`
}

// LiveConfig bounds the live relay. Zero values use the relay defaults.
type LiveConfig struct {
	MaxFrameBytes      int `yaml:"max_frame_bytes" env:"MAX_FRAME_BYTES"`
	MaxFramesPerSecond int `yaml:"max_frames_per_second" env:"MAX_FRAMES_PER_SECOND"`
	PeerBuffer         int `yaml:"peer_buffer" env:"PEER_BUFFER"`
}

type TailscaleConfig struct {
	Enabled  bool   `yaml:"enabled" env:"ENABLED"`
	Hostname string `yaml:"hostname" env:"HOSTNAME"`
	StateDir string `yaml:"state_dir" env:"STATE_DIR"`
}

// LogConfig selects the log level and an optional rotated log file.
type LogConfig struct {
	Level     string `yaml:"level" env:"LEVEL"`
	File      string `yaml:"file" env:"FILE"`
	MaxSizeMB int    `yaml:"max_size_mb" env:"MAX_SIZE_MB"`
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

// Load reads config from a YAML file, then applies environment variable overrides.
// Env vars use the prefix REPQUEST_ and underscore-separated paths:
//
//	REPQUEST_SERVER_HOST, REPQUEST_SERVER_PORT, REPQUEST_SERVER_MIGRATIONS_PATH,
//	REPQUEST_DB_HOST, REPQUEST_DB_PORT, REPQUEST_DB_NAME,
//	REPQUEST_DB_USER, REPQUEST_DB_PASSWORD, REPQUEST_DB_SSLMODE,
//	REPQUEST_AUTH_JWT_SECRET, REPQUEST_AUTH_TOKEN_EXPIRY,
//	REPQUEST_TAILSCALE_ENABLED, REPQUEST_LOG_LEVEL, REPQUEST_LOG_FILE
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if err := readYAML(path, cfg); err != nil {
		return nil, err
	}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: serverEnvPrefix}); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func readYAML(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Server.MigrationsPath == "" {
		c.Server.MigrationsPath = "migrations"
	}
	if c.Auth.TokenExpiry == 0 {
		c.Auth.TokenExpiry = 24 * time.Hour
	}
	if c.Tailscale.Hostname == "" {
		c.Tailscale.Hostname = "repquest"
	}
}

func (c *Config) validate() error {
	if c.Server.Port == 0 {
		return fmt.Errorf("server.port is required")
	}
	if c.Database.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if c.Database.Port == 0 {
		return fmt.Errorf("database.port is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("database.name is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("database.user is required")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if len(c.Auth.JWTSecret) < minSecretLength {
		return fmt.Errorf("auth.jwt_secret must be at least %d bytes", minSecretLength)
	}
	if c.Auth.TokenExpiry < 0 {
		return fmt.Errorf("auth.token_expiry must not be negative")
	}
	return nil
}

// SessionConfig configures the session client.
type SessionConfig struct {
	APIURL   string `yaml:"api_url" env:"API_URL"`
	Token    string `yaml:"token" env:"TOKEN"`
	UserID   string `yaml:"user_id" env:"USER_ID"`
	UserName string `yaml:"user_name" env:"USER_NAME"`

	JournalPath string `yaml:"journal_path" env:"JOURNAL_PATH"`

	Replay ReplayConfig `yaml:"replay" envPrefix:"REPLAY_"`

	CompletionTimeout time.Duration `yaml:"completion_timeout" env:"COMPLETION_TIMEOUT"`
	NavigateDelay     time.Duration `yaml:"navigate_delay" env:"NAVIGATE_DELAY"`

	// Live enables publishing to and hearing from the live relay.
	Live bool `yaml:"live" env:"LIVE"`
	// MetricsAddr, when set, serves session metrics for scraping.
	MetricsAddr string `yaml:"metrics_addr" env:"METRICS_ADDR"`

	Log LogConfig `yaml:"log" envPrefix:"LOG_"`
}

// ReplayConfig points the session at a recorded pose stream.
type ReplayConfig struct {
	Path string `yaml:"path" env:"PATH"`
	FPS  int    `yaml:"fps" env:"FPS"`
	Loop bool   `yaml:"loop" env:"LOOP"`
}

// LoadSession reads the session client config. The file is optional; env
// vars use the prefix REPQUEST_SESSION_, for example REPQUEST_SESSION_TOKEN
// and REPQUEST_SESSION_REPLAY_PATH.
func LoadSession(path string) (*SessionConfig, error) {
	cfg := &SessionConfig{}

	if path != "" {
		if err := readYAML(path, cfg); err != nil {
			return nil, err
		}
	}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: sessionEnvPrefix}); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func (c *SessionConfig) applyDefaults() {
	if c.APIURL == "" {
		c.APIURL = "http://localhost:8080"
	}
	if c.JournalPath == "" {
		c.JournalPath = "repquest-journal.db"
	}
	if c.Replay.FPS == 0 {
		c.Replay.FPS = 30
	}
	if c.CompletionTimeout == 0 {
		c.CompletionTimeout = 10 * time.Second
	}
	if c.NavigateDelay == 0 {
		c.NavigateDelay = 2 * time.Second
	}
}

func (c *SessionConfig) validate() error {
	if c.Token == "" {
		return errors.New("token is required")
	}
	if _, err := uuid.Parse(c.UserID); err != nil {
		return fmt.Errorf("user_id must be a uuid: %w", err)
	}
	if c.Replay.FPS < 0 {
		return errors.New("replay.fps must be positive")
	}
	if c.CompletionTimeout < 0 || c.NavigateDelay < 0 {
		return errors.New("timeouts must not be negative")
	}
	return nil
}

// UserUUID returns the validated user id.
func (c *SessionConfig) UserUUID() uuid.UUID {
	id, _ := uuid.Parse(c.UserID)
	return id
}
