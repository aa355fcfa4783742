package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/sijey-CJAA/ByaHero-Prototype-V3/internal/core/domain"
)

// Config holds all application configuration.
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Store        StoreConfig        `mapstructure:"store"`
	Database     DatabaseConfig     `mapstructure:"database"`
	SQLite       SQLiteConfig       `mapstructure:"sqlite"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Valkey       ValkeyConfig       `mapstructure:"valkey"`
	NATS         NATSConfig         `mapstructure:"nats"`
	Geofence     GeofenceConfig     `mapstructure:"geofence"`
	Fleet        FleetConfig        `mapstructure:"fleet"`
	Temporal     TemporalConfig     `mapstructure:"temporal"`
	Housekeeping HousekeepingConfig `mapstructure:"housekeeping"`
	Telemetry    TelemetryConfig    `mapstructure:"telemetry"`
	Log          LogConfig          `mapstructure:"log"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
	// WriteDeadline bounds one bus mutation, in milliseconds.
	WriteDeadline int `mapstructure:"write_deadline_ms"`
}

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

type StoreConfig struct {
	Driver string `mapstructure:"driver"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type ValkeyConfig struct {
	Addr    string `mapstructure:"addr"`
	Enabled bool   `mapstructure:"enabled"`
}

type NATSConfig struct {
	URL     string `mapstructure:"url"`
	Enabled bool   `mapstructure:"enabled"`
}

type GeofenceConfig struct {
	Dirs       []string `mapstructure:"dirs"`
	Extensions []string `mapstructure:"extensions"`
}

type FleetConfig struct {
	SeedFile string `mapstructure:"seed_file"`
}

type TemporalConfig struct {
	HostPort  string `mapstructure:"host_port"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

type HousekeepingConfig struct {
	StaleMinutes int    `mapstructure:"stale_minutes"`
	Cron         string `mapstructure:"cron"`
	// Status limits the sweep to buses in this status. Empty means any.
	Status string `mapstructure:"status"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from .env, the config file and environment
// variables, in increasing order of precedence.
func Load(service string) (*Config, error) {
	_ = godotenv.Load() // .env is optional

	v := viper.New()
	setDefaults(v, service)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: BYAHERO_STORE_DRIVER → store.driver
	v.SetEnvPrefix("BYAHERO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper, service string) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("server.write_deadline_ms", 2000)
	v.SetDefault("store.driver", DriverSQLite)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "byahero")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "byahero")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("sqlite.path", "data/byahero.db")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("valkey.addr", "localhost:6380")
	v.SetDefault("valkey.enabled", false)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.enabled", false)
	v.SetDefault("geofence.dirs", []string{"data/routes", "data/location"})
	v.SetDefault("geofence.extensions", []string{".geojson"})
	v.SetDefault("fleet.seed_file", "configs/fleet.yaml")
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "byahero-housekeeping")
	v.SetDefault("housekeeping.stale_minutes", 30)
	v.SetDefault("housekeeping.cron", "*/5 * * * *")
	v.SetDefault("housekeeping.status", "")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.Server.WriteDeadline <= 0 {
		errs = append(errs, "server.write_deadline_ms must be positive")
	}

	switch c.Store.Driver {
	case DriverMemory:
	case DriverSQLite:
		if c.SQLite.Path == "" {
			errs = append(errs, "sqlite.path is required for the sqlite driver")
		}
	case DriverPostgres:
		if c.Database.Host == "" {
			errs = append(errs, "database.host is required")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
		}
		if c.Database.User == "" {
			errs = append(errs, "database.user is required")
		}
		if c.Database.DBName == "" {
			errs = append(errs, "database.dbname is required")
		}
	case DriverRedis:
		if c.Redis.Addr == "" {
			errs = append(errs, "redis.addr is required for the redis driver")
		}
	default:
		errs = append(errs, fmt.Sprintf("store.driver must be memory, sqlite, postgres or redis, got %q", c.Store.Driver))
	}

	if c.NATS.Enabled && c.NATS.URL == "" {
		errs = append(errs, "nats.url is required")
	}
	if c.Valkey.Enabled && c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required")
	}
	if len(c.Geofence.Dirs) == 0 {
		errs = append(errs, "geofence.dirs must name at least one directory")
	}
	for _, ext := range c.Geofence.Extensions {
		if !strings.HasPrefix(ext, ".") {
			errs = append(errs, fmt.Sprintf("geofence.extensions entries start with a dot, got %q", ext))
		}
	}
	if c.Housekeeping.StaleMinutes <= 0 {
		errs = append(errs, "housekeeping.stale_minutes must be positive")
	}
	if st := c.Housekeeping.Status; st != "" && !domain.BusStatus(st).Valid() {
		errs = append(errs, fmt.Sprintf("housekeeping.status %q is not a bus status", st))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
