// Package config loads service configuration using koanf.
//
// PRECEDENCE (highest first):
//  1. Environment variables, QF_ prefix, "__" separating levels
//     (QF_DATABASE__DSN → database.dsn, QF_AUTH__SECURITY_ENABLED → auth.security_enabled)
//  2. Profile file configs/<profile>.yaml
//  3. Base file configs/base.yaml
//  4. Defaults below
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "QF_"

// Config is the root configuration structure.
type Config struct {
	App        AppConfig        `koanf:"app"        validate:"required"`
	Server     ServerConfig     `koanf:"server"     validate:"required"`
	Log        LogConfig        `koanf:"log"        validate:"required"`
	Database   DatabaseConfig   `koanf:"database"   validate:"required"`
	Auth       AuthConfig       `koanf:"auth"       validate:"required"`
	Directory  DirectoryConfig  `koanf:"directory"  validate:"required"`
	Notify     NotifyConfig     `koanf:"notify"`
	Moderation ModerationConfig `koanf:"moderation" validate:"required"`
}

type AppConfig struct {
	Name        string `koanf:"name"        validate:"required"`
	Environment string `koanf:"environment" validate:"required,oneof=local dev prod test"`
}

type ServerConfig struct {
	Port            int           `koanf:"port"             validate:"required,min=1,max=65535"`
	Host            string        `koanf:"host"`
	ReadTimeout     time.Duration `koanf:"read_timeout"     validate:"required,min=1s"`
	WriteTimeout    time.Duration `koanf:"write_timeout"    validate:"required,min=1s"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"     validate:"required,min=1s"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"required,min=1s"`
	MaxRequestSize  int64         `koanf:"max_request_size" validate:"required,min=1"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type LogConfig struct {
	Level  string        `koanf:"level"  validate:"required,oneof=debug info warn error"`
	Format string        `koanf:"format" validate:"required,oneof=json text pretty"`
	File   LogFileConfig `koanf:"file"`
}

type LogFileConfig struct {
	Enabled    bool   `koanf:"enabled"`
	Path       string `koanf:"path"        validate:"required_if=Enabled true"`
	MaxSizeMB  int    `koanf:"max_size"    validate:"omitempty,min=1,max=1024"`
	MaxBackups int    `koanf:"max_backups" validate:"omitempty,min=0,max=100"`
	MaxAgeDays int    `koanf:"max_age"     validate:"omitempty,min=0,max=365"`
	Compress   bool   `koanf:"compress"`
}

type DatabaseConfig struct {
	Driver          string        `koanf:"driver"            validate:"required,oneof=sqlite postgres"`
	DSN             string        `koanf:"dsn"               validate:"required"`
	MaxOpenConns    int           `koanf:"max_open_conns"    validate:"min=0"`
	MaxIdleConns    int           `koanf:"max_idle_conns"    validate:"min=0"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
}

type AuthConfig struct {
	// SecurityEnabled false makes every authenticated caller privileged.
	SecurityEnabled bool   `koanf:"security_enabled"`
	JWTSecret       string `koanf:"jwt_secret"  validate:"required,min=16"`
	Issuer          string `koanf:"issuer"      validate:"required"`
	AdminGroup      string `koanf:"admin_group" validate:"required"`
}

// DirectoryConfig selects the directory backend and its cache.
type DirectoryConfig struct {
	Mode       string            `koanf:"mode"        validate:"required,oneof=http static"`
	BaseURL    string            `koanf:"base_url"    validate:"required_if=Mode http,omitempty,url"`
	RosterPath string            `koanf:"roster_path" validate:"required_if=Mode static"`
	Timeout    time.Duration     `koanf:"timeout"     validate:"required,min=100ms"`
	OAuth      OAuthClientConfig `koanf:"oauth"`
	Cache      CacheConfig       `koanf:"cache"`
}

type CacheConfig struct {
	Mode     string        `koanf:"mode"      validate:"required,oneof=none lru redis"`
	TTL      time.Duration `koanf:"ttl"       validate:"required,min=1s"`
	Size     int           `koanf:"size"      validate:"required_if=Mode lru,omitempty,min=1"`
	RedisURL string        `koanf:"redis_url" validate:"required_if=Mode redis"`
}

// OAuthClientConfig holds OAuth2 client-credentials settings. An empty
// ClientID disables token acquisition.
type OAuthClientConfig struct {
	ClientID     string   `koanf:"client_id"`
	ClientSecret string   `koanf:"client_secret" validate:"required_with=ClientID"`
	TokenURL     string   `koanf:"token_url"     validate:"required_with=ClientID,omitempty,url"`
	Scopes       []string `koanf:"scopes"`
}

type NotifyConfig struct {
	// An empty BaseURL logs notifications instead of sending them.
	BaseURL string            `koanf:"base_url" validate:"omitempty,url"`
	Timeout time.Duration     `koanf:"timeout"  validate:"required,min=100ms"`
	OAuth   OAuthClientConfig `koanf:"oauth"`
}

type ModerationConfig struct {
	// ReportSalt is mixed into the reporter hash so stored hashes cannot be
	// matched against a list of usernames.
	ReportSalt string `koanf:"report_salt" validate:"required,min=8"`
}

func defaults() map[string]any {
	return map[string]any{
		"app.name":        "quotefault",
		"app.environment": "local",

		"server.port":             8080,
		"server.host":             "",
		"server.read_timeout":     "15s",
		"server.write_timeout":    "30s",
		"server.idle_timeout":     "60s",
		"server.shutdown_timeout": "10s",
		"server.max_request_size": 1 << 20,

		"log.level":            "info",
		"log.format":           "json",
		"log.file.enabled":     false,
		"log.file.path":        "./logs/quotefault.log",
		"log.file.max_size":    100,
		"log.file.max_backups": 3,
		"log.file.max_age":     28,
		"log.file.compress":    true,

		"database.driver":            "sqlite",
		"database.dsn":               "data/quotefault.db",
		"database.max_open_conns":    10,
		"database.max_idle_conns":    5,
		"database.conn_max_lifetime": "30m",

		"auth.security_enabled": true,
		"auth.issuer":           "quotefault",
		"auth.admin_group":      "eboard",

		"directory.mode":        "static",
		"directory.roster_path": "configs/roster.yaml",
		"directory.timeout":     "5s",
		"directory.cache.mode":  "lru",
		"directory.cache.ttl":   "5m",
		"directory.cache.size":  1024,

		"notify.timeout": "10s",
	}
}

// Load loads configuration for profile (may be empty) from dir, which holds
// base.yaml and <profile>.yaml.
func Load(dir, profile string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if err := loadFileIfExists(k, filepath.Join(dir, "base.yaml")); err != nil {
		return nil, fmt.Errorf("loading base config: %w", err)
	}

	if profile != "" {
		if err := loadFileIfExists(k, filepath.Join(dir, profile+".yaml")); err != nil {
			return nil, fmt.Errorf("loading profile config %q: %w", profile, err)
		}
	}

	err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(
			strings.ToLower(strings.TrimPrefix(s, envPrefix)),
			"__",
			".",
		)
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	return &cfg, nil
}

// loadFileIfExists loads a YAML file; a missing file is not an error.
func loadFileIfExists(k *koanf.Koanf, path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return k.Load(file.Provider(path), yaml.Parser())
}
