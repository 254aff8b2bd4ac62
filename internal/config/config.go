package config

import (
	"fmt"
	"time"

	"github.com/Veraticus/the-harvest-must-flow/internal/common"
	"github.com/Veraticus/the-harvest-must-flow/internal/dates"
	"github.com/spf13/viper"
)

// Database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Cache drivers.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Config is the resolved application configuration.
type Config struct {
	Database DatabaseConfig
	Cache    CacheConfig
	Report   ReportConfig
	Server   ServerConfig
	Sheets   SheetsConfig
	Logging  LoggingConfig
}

// DatabaseConfig selects and locates the transaction store.
type DatabaseConfig struct {
	Driver string
	Path   string
	DSN    string
}

// CacheConfig selects the derived-lookup cache.
type CacheConfig struct {
	Driver string
	Redis  RedisConfig
	TTL    time.Duration
}

// RedisConfig holds connection settings for the redis cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// ReportConfig holds report defaults.
type ReportConfig struct {
	OutputDir    string
	EarliestYear int
}

// SheetsConfig holds Google Sheets credentials for report publishing.
// Either a service account key or an OAuth client with a refresh token.
type SheetsConfig struct {
	ClientID           string
	ClientSecret       string
	RefreshToken       string
	ServiceAccountPath string
	SpreadsheetID      string
	SpreadsheetName    string
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr    string
	CertDir string
	Hosts   []string
	TLS     bool
}

// LoggingConfig mirrors the logging.* keys.
type LoggingConfig struct {
	Level  string
	Format string
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.driver", DriverSQLite)
	v.SetDefault("database.path", "~/.local/share/harvest/harvest.db")
	v.SetDefault("cache.driver", CacheMemory)
	v.SetDefault("cache.ttl", "15m")
	v.SetDefault("cache.redis.addr", "localhost:6379")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("report.earliest_year", dates.DefaultEarliestYear)
	v.SetDefault("report.output_dir", ".")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.cert_dir", "~/.config/harvest/certs")
	v.SetDefault("sheets.spreadsheet_name", "Harvest Reports")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// Load reads the configuration from v and validates it.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Database: DatabaseConfig{
			Driver: v.GetString("database.driver"),
			Path:   ExpandPath(v.GetString("database.path")),
			DSN:    v.GetString("database.dsn"),
		},
		Cache: CacheConfig{
			Driver: v.GetString("cache.driver"),
			TTL:    v.GetDuration("cache.ttl"),
			Redis: RedisConfig{
				Addr:     v.GetString("cache.redis.addr"),
				Password: v.GetString("cache.redis.password"),
				DB:       v.GetInt("cache.redis.db"),
			},
		},
		Report: ReportConfig{
			EarliestYear: v.GetInt("report.earliest_year"),
			OutputDir:    ExpandPath(v.GetString("report.output_dir")),
		},
		Server: ServerConfig{
			Addr:    v.GetString("server.addr"),
			TLS:     v.GetBool("server.tls"),
			CertDir: ExpandPath(v.GetString("server.cert_dir")),
			Hosts:   v.GetStringSlice("server.hosts"),
		},
		Sheets: SheetsConfig{
			ClientID:           v.GetString("sheets.client_id"),
			ClientSecret:       v.GetString("sheets.client_secret"),
			RefreshToken:       v.GetString("sheets.refresh_token"),
			ServiceAccountPath: ExpandPath(v.GetString("sheets.service_account_path")),
			SpreadsheetID:      v.GetString("sheets.spreadsheet_id"),
			SpreadsheetName:    v.GetString("sheets.spreadsheet_name"),
		},
		Logging: LoggingConfig{
			Level:  v.GetString("logging.level"),
			Format: v.GetString("logging.format"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("%w: database.path is required for sqlite", common.ErrMissingConfig)
		}
	case DriverPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("%w: database.dsn is required for postgres", common.ErrMissingConfig)
		}
	default:
		return fmt.Errorf("%w: unknown database.driver %q", common.ErrInvalidConfig, c.Database.Driver)
	}

	switch c.Cache.Driver {
	case CacheMemory:
	case CacheRedis:
		if c.Cache.Redis.Addr == "" {
			return fmt.Errorf("%w: cache.redis.addr is required for redis", common.ErrMissingConfig)
		}
	default:
		return fmt.Errorf("%w: unknown cache.driver %q", common.ErrInvalidConfig, c.Cache.Driver)
	}

	if c.Server.TLS && c.Server.CertDir == "" {
		return fmt.Errorf("%w: server.cert_dir is required for tls", common.ErrMissingConfig)
	}
	if c.Cache.TTL < 0 {
		return fmt.Errorf("%w: cache.ttl must not be negative", common.ErrInvalidConfig)
	}
	if c.Report.EarliestYear < 1900 {
		return fmt.Errorf("%w: report.earliest_year %d is out of range", common.ErrInvalidConfig, c.Report.EarliestYear)
	}
	if _, err := common.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("%w: %v", common.ErrInvalidConfig, err)
	}
	return nil
}
