package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const defaultConfigPath = "config/config.yaml"

type Config struct {
	Env        string `yaml:"env" env:"APP_ENV" env-default:"local"`
	Timezone   string `yaml:"timezone" env:"TIMEZONE" env-default:"UTC"`
	Storage    `yaml:"storage"`
	Redis      `yaml:"redis"`
	Booking    `yaml:"booking"`
	Reminder   `yaml:"reminder"`
	HTTPServer `yaml:"http_server"`
}

type Storage struct {
	Driver       string `yaml:"driver" env:"STORAGE_DRIVER" env-default:"memory"`
	DSN          string `yaml:"dsn" env:"STORAGE_DSN"`
	Migrate      bool   `yaml:"migrate" env-default:"true"`
	SnapshotPath string `yaml:"snapshot_path" env:"STORAGE_SNAPSHOT_PATH"`
	SeedPath     string `yaml:"seed_path" env:"STORAGE_SEED_PATH"`
}

type Redis struct {
	Enabled       bool   `yaml:"enabled" env:"REDIS_ENABLED" env-default:"false"`
	Addr          string `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password      string `yaml:"password" env:"REDIS_PASSWORD"`
	DB            int    `yaml:"db" env-default:"0"`
	NotifyChannel string `yaml:"notify_channel" env-default:"notifications"`
}

type Booking struct {
	LockTTL  time.Duration `yaml:"lock_ttl" env-default:"10s"`
	LockWait time.Duration `yaml:"lock_wait" env-default:"3s"`
}

type Reminder struct {
	Enabled   bool          `yaml:"enabled" env-default:"true"`
	Interval  time.Duration `yaml:"interval" env-default:"60s"`
	LookAhead time.Duration `yaml:"look_ahead" env-default:"60m"`
}

type HTTPServer struct {
	Address         string        `yaml:"address" env:"HTTP_ADDRESS" env-default:"localhost:8080"`
	Timeout         time.Duration `yaml:"timeout" env-default:"4s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env-default:"15s"`
}

// Load reads the YAML file at path, then applies environment overrides.
func Load(path string) (*Config, error) {
	const op = "config.Load"

	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%s: config file %s: %w", op, path, err)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	switch cfg.Storage.Driver {
	case "memory":
	case "postgres":
		if cfg.Storage.DSN == "" {
			return nil, fmt.Errorf("%s: storage.dsn is required for the postgres driver", op)
		}
	default:
		return nil, fmt.Errorf("%s: unknown storage driver %q", op, cfg.Storage.Driver)
	}

	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return nil, fmt.Errorf("%s: timezone: %w", op, err)
	}

	return &cfg, nil
}

// MustLoad loads the config from CONFIG_PATH, or config/config.yaml when
// unset, and exits on failure.
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = defaultConfigPath
	}

	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("Failed to read config file: %v", err)
	}

	return cfg
}

// Location returns the configured timezone. Load has already validated it.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
