package config

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Env            string
	LogLevel       string
	DBType         string
	DBDSN          string
	FileSleep      string
	SQLitePath     string
	HTTPAddr       string
	Timezone       string
	AuthToken      string
	AuthServiceURL string
	StoreTimeout   time.Duration
}

var (
	cfg     *Config
	loadErr error
	once    sync.Once
)

// Load reads the process configuration once and returns the same result on
// every later call.
func Load() (*Config, error) {
	once.Do(func() {
		v := viper.New()
		if _, err := os.Stat(".env"); err == nil {
			v.SetConfigFile(".env")
			v.SetConfigType("env")
			if err := v.ReadInConfig(); err != nil {
				loadErr = fmt.Errorf("read .env: %w", err)
				return
			}
		}
		cfg, loadErr = FromViper(v)
		if loadErr != nil {
			loadErr = fmt.Errorf("invalid config: %w", loadErr)
		}
	})
	return cfg, loadErr
}

// FromViper builds a Config from v, falling back to the environment and
// defaults for anything v does not set.
func FromViper(v *viper.Viper) (*Config, error) {
	setDefaults(v)
	v.AutomaticEnv()

	c := &Config{
		Env:            v.GetString("APP_ENV"),
		LogLevel:       v.GetString("LOG_LEVEL"),
		DBType:         v.GetString("STORAGE_BACKEND"),
		DBDSN:          v.GetString("POSTGRES_DSN"),
		FileSleep:      v.GetString("SLEEP_FILE"),
		SQLitePath:     v.GetString("SQLITE_PATH"),
		HTTPAddr:       v.GetString("HTTP_ADDR"),
		Timezone:       v.GetString("TIMEZONE"),
		AuthToken:      v.GetString("AUTH_TOKEN"),
		AuthServiceURL: v.GetString("AUTH_SERVICE_URL"),
		StoreTimeout:   v.GetDuration("STORE_TIMEOUT"),
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("STORAGE_BACKEND", "file")
	v.SetDefault("SLEEP_FILE", "data/sleep_entries.json")
	v.SetDefault("SQLITE_PATH", "data/sleep.db")
	v.SetDefault("HTTP_ADDR", ":8088")
	v.SetDefault("TIMEZONE", "Local")
	v.SetDefault("AUTH_TOKEN", "MOCK-TOKEN")
	v.SetDefault("STORE_TIMEOUT", "5s")
}

func (c *Config) Validate() error {
	switch c.DBType {
	case "postgres":
		if c.DBDSN == "" {
			return errors.New("POSTGRES_DSN is required when STORAGE_BACKEND=postgres")
		}
	case "file":
		if c.FileSleep == "" {
			return errors.New("File storage requires SLEEP_FILE to be set")
		}
	case "sqlite":
		if c.SQLitePath == "" {
			return errors.New("SQLite storage requires SQLITE_PATH to be set")
		}
	default:
		return fmt.Errorf("STORAGE_BACKEND must be one of: file, sqlite, postgres (got %q)", c.DBType)
	}
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return errors.New("APP_ENV must be one of: development, staging, production")
	}
	if c.Env != "development" && c.AuthServiceURL == "" {
		return errors.New("AUTH_SERVICE_URL is required outside development")
	}
	if c.StoreTimeout < 0 {
		return errors.New("STORE_TIMEOUT must not be negative")
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("TIMEZONE: %w", err)
	}
	return nil
}

// Location resolves Timezone. Calendar days are computed in this location.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}
