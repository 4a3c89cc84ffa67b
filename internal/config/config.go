package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrInvalid marks configuration that cannot be used to start the engine.
// Startup treats it as fatal.
var ErrInvalid = errors.New("invalid configuration")

type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverSQLite   Driver = "sqlite"
)

type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Server   ServerConfig   `mapstructure:"server"`
}

type DatabaseConfig struct {
	Driver   Driver `mapstructure:"driver"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`

	// Path is the database file location for the sqlite driver.
	Path string `mapstructure:"path"`

	MaxOpenConns int           `mapstructure:"max_open_conns"`
	ConnTimeout  time.Duration `mapstructure:"conn_timeout"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
}

// Load resolves configuration with precedence: explicit file, then
// environment (prefix TAGFILER_), then built-in defaults. An empty path means
// "use ./config.yaml when present, otherwise env and defaults only".
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("TAGFILER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("%w: reading %s: %v", ErrInvalid, path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.driver", string(DriverPostgres))
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "tagfiler")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "tagfiler")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.path", "")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.conn_timeout", "30s")

	v.SetDefault("server.port", "8090")
}

// Validate checks driver-specific requirements before any connection attempt.
func (c *Config) Validate() error {
	db := c.Database

	switch db.Driver {
	case DriverPostgres:
		if db.Host == "" {
			return fmt.Errorf("%w: postgres requires database.host", ErrInvalid)
		}
		if db.Port <= 0 {
			return fmt.Errorf("%w: postgres requires database.port", ErrInvalid)
		}
		if db.User == "" {
			return fmt.Errorf("%w: postgres requires database.user", ErrInvalid)
		}
		if db.Name == "" {
			return fmt.Errorf("%w: postgres requires database.name", ErrInvalid)
		}
	case DriverSQLite:
		if db.Path == "" {
			return fmt.Errorf("%w: sqlite requires database.path", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown database.driver %q", ErrInvalid, db.Driver)
	}

	if db.MaxOpenConns <= 0 {
		return fmt.Errorf("%w: database.max_open_conns must be positive", ErrInvalid)
	}
	if db.ConnTimeout <= 0 {
		return fmt.Errorf("%w: database.conn_timeout must be positive", ErrInvalid)
	}

	return nil
}
