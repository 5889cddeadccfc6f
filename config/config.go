// Package config loads runtime settings from the environment and an
// optional config file.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port                string        `mapstructure:"PORT"`
	DBPath              string        `mapstructure:"DB_PATH"`
	LogFormat           string        `mapstructure:"LOG_FORMAT"`
	LogLevel            string        `mapstructure:"LOG_LEVEL"`
	CacheTTL            time.Duration `mapstructure:"CACHE_TTL"`
	CatalogFile         string        `mapstructure:"CATALOG_FILE"`
	CORSOrigins         []string      `mapstructure:"CORS_ORIGINS"`
	DefaultOrganization string        `mapstructure:"DEFAULT_ORGANIZATION"`
}

var keys = []string{
	"PORT",
	"DB_PATH",
	"LOG_FORMAT",
	"LOG_LEVEL",
	"CACHE_TTL",
	"CATALOG_FILE",
	"CORS_ORIGINS",
	"DEFAULT_ORGANIZATION",
}

// Load reads settings from the environment, then from file when one is
// given. Environment variables win over file values.
func Load(file string) (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8080")
	v.SetDefault("DB_PATH", "homecare.db")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CACHE_TTL", "5m")
	v.SetDefault("CATALOG_FILE", "")
	v.SetDefault("CORS_ORIGINS", "*")
	v.SetDefault("DEFAULT_ORGANIZATION", "")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// comma-separated env values arrive untrimmed
	if origins := v.GetString("CORS_ORIGINS"); origins != "" {
		cfg.CORSOrigins = splitList(origins)
	}

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + c.Port
}

// InMemory reports whether stores should live in process memory only.
func (c *Config) InMemory() bool {
	return c.DBPath == "" || c.DBPath == ":memory:"
}

// Validate checks that the configuration is safe to run.
func (c *Config) Validate() error {
	port, err := strconv.Atoi(c.Port)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %q", c.Port)
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("LOG_FORMAT must be \"json\" or \"text\", got %q", c.LogFormat)
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("CACHE_TTL must not be negative, got %s", c.CacheTTL)
	}
	return nil
}
