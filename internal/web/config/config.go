package config

import (
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Tenant   TenantConfig   `yaml:"tenant"`
	Locale   LocaleConfig   `yaml:"locale"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	ListenAddr string    `yaml:"listen_addr" validate:"required"`
	BaseURL    string    `yaml:"base_url" validate:"omitempty,url"`
	AllowedIPs []string  `yaml:"allowed_ips"`
	TLS        TLSConfig `yaml:"tls"`
}

type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file" validate:"required_if=Enabled true"`
	KeyFile  string `yaml:"key_file" validate:"required_if=Enabled true"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver" validate:"oneof=sqlite3 postgres"`
	Path   string `yaml:"path"`
	DSN    string `yaml:"dsn"`
}

// TenantConfig scopes every query to a set of entities
type TenantConfig struct {
	// Entity is the entity the service acts for. Unsubscribe records and member
	// categories are matched against it only.
	Entity int `yaml:"entity" validate:"gte=1"`
	// SharedEntities are additional entities whose members and member types are visible.
	SharedEntities []int `yaml:"shared_entities" validate:"dive,gte=1"`
}

type LocaleConfig struct {
	Language string `yaml:"language" validate:"required,bcp47_language_tag"`
	Timezone string `yaml:"timezone" validate:"required,timezone"`
}

type MetricsConfig struct {
	Enabled    bool     `yaml:"enabled"`
	ListenAddr string   `yaml:"listen_addr"`
	Path       string   `yaml:"path"`
	AllowedIPs []string `yaml:"allowed_ips"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=json text"`
}

// Entities returns the entity ids visible to the tenant, current entity first
func (t TenantConfig) Entities() []int {
	out := []int{t.Entity}
	for _, e := range t.SharedEntities {
		if !slices.Contains(out, e) {
			out = append(out, e)
		}
	}
	return out
}

// Location returns the configured timezone, UTC when it cannot be loaded
func (l LocaleConfig) Location() *time.Location {
	loc, err := time.LoadLocation(l.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	SetDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func SetDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8089"
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite3"
	}
	if cfg.Database.Driver == "sqlite3" && cfg.Database.Path == "" {
		cfg.Database.Path = "/var/lib/mailtarget/app.db"
	}
	if cfg.Tenant.Entity == 0 {
		cfg.Tenant.Entity = 1
	}
	if cfg.Locale.Language == "" {
		cfg.Locale.Language = "en-US"
	}
	if cfg.Locale.Timezone == "" {
		cfg.Locale.Timezone = "UTC"
	}
	if cfg.Metrics.ListenAddr == "" {
		cfg.Metrics.ListenAddr = ":9091"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return err
	}
	if cfg.Database.Driver == "postgres" && cfg.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required when driver is postgres")
	}
	if cfg.Database.Driver == "sqlite3" && cfg.Database.Path == "" {
		return fmt.Errorf("database.path is required when driver is sqlite3")
	}
	if cfg.Metrics.Enabled && cfg.Metrics.ListenAddr == cfg.Server.ListenAddr {
		return fmt.Errorf("metrics.listen_addr must differ from server.listen_addr")
	}
	return nil
}
