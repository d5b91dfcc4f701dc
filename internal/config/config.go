// Package config loads application configuration from the environment,
// optionally overridden by a YAML file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	App        AppConfig        `yaml:"app"`
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Log        LogConfig        `yaml:"log"`
	Worker     WorkerConfig     `yaml:"worker"`
	Encryption EncryptionConfig `yaml:"encryption"`
	Scan       ScanConfig       `yaml:"scan"`
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Name string `yaml:"name"`
	Env  string `yaml:"env"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Addr returns the host:port listen address.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Name            string        `yaml:"name"`
	SSLMode         string        `yaml:"ssl_mode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// DSN returns the postgres connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Addr returns the host:port address.
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// WorkerConfig holds the scan worker configuration.
type WorkerConfig struct {
	Concurrency int `yaml:"concurrency"`
}

// EncryptionConfig holds the vault secret configuration.
type EncryptionConfig struct {
	// VaultSecret keys the ansible-vault envelope for secrets at rest.
	VaultSecret string `yaml:"vault_secret"`
}

// ScanConfig holds scan execution tuning.
type ScanConfig struct {
	// HTTPTimeout is the connect+read timeout for inspection API calls.
	HTTPTimeout time.Duration `yaml:"http_timeout"`
	// SatelliteRequestsPerSecond paces Satellite API calls. Zero
	// disables pacing.
	SatelliteRequestsPerSecond float64 `yaml:"satellite_requests_per_second"`
	// KeyDir is the process-owned directory for transient SSH keys.
	// Empty means a fresh os.MkdirTemp directory.
	KeyDir string `yaml:"key_dir"`
}

// Load builds configuration from the environment. When HOSTSCOUT_CONFIG
// points at a YAML file it is applied over the defaults first, then the
// environment wins.
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("HOSTSCOUT_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		App: AppConfig{Name: "hostscout", Env: "development"},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			RequestTimeout:  60 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			User:            "hostscout",
			Name:            "hostscout",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{Host: "localhost", Port: 6379},
		Log:   LogConfig{Level: "info", Format: "json"},
		Worker: WorkerConfig{
			Concurrency: 4,
		},
		Scan: ScanConfig{
			HTTPTimeout:                30 * time.Second,
			SatelliteRequestsPerSecond: 0,
		},
	}
}

func applyEnv(cfg *Config) {
	setString(&cfg.App.Name, "APP_NAME")
	setString(&cfg.App.Env, "APP_ENV")

	setString(&cfg.Server.Host, "SERVER_HOST")
	setInt(&cfg.Server.Port, "SERVER_PORT")

	setString(&cfg.Database.Host, "DB_HOST")
	setInt(&cfg.Database.Port, "DB_PORT")
	setString(&cfg.Database.User, "DB_USER")
	setString(&cfg.Database.Password, "DB_PASSWORD")
	setString(&cfg.Database.Name, "DB_NAME")
	setString(&cfg.Database.SSLMode, "DB_SSLMODE")

	setString(&cfg.Redis.Host, "REDIS_HOST")
	setInt(&cfg.Redis.Port, "REDIS_PORT")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "REDIS_DB")

	setString(&cfg.Log.Level, "LOG_LEVEL")
	setString(&cfg.Log.Format, "LOG_FORMAT")

	setInt(&cfg.Worker.Concurrency, "WORKER_CONCURRENCY")

	setString(&cfg.Encryption.VaultSecret, "VAULT_SECRET")
	setString(&cfg.Scan.KeyDir, "SCAN_KEY_DIR")
	setDuration(&cfg.Scan.HTTPTimeout, "SCAN_HTTP_TIMEOUT")
}

// Validate checks required configuration.
func (c *Config) Validate() error {
	if c.Encryption.VaultSecret == "" && c.IsProduction() {
		return fmt.Errorf("VAULT_SECRET is required in production")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	return nil
}

// IsProduction reports whether the app runs in production.
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
