// Package config loads the server configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every configuration variable.
const EnvPrefix = "VD"

// Config is the visit-desk server configuration.
type Config struct {
	Port               int    `mapstructure:"PORT"`
	DBPath             string `mapstructure:"DB_PATH"`
	Env                string `mapstructure:"ENV"`
	RateLimitPerMinute int    `mapstructure:"RATE_LIMIT_PER_MINUTE"`
	RateLimitBurst     int    `mapstructure:"RATE_LIMIT_BURST"`
}

// Load reads envFile (if it exists) into the environment and then resolves
// VD_* variables over the defaults. An empty envFile skips the file.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		err := godotenv.Load(envFile)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			slog.Debug("no env file, using environment", "path", envFile)
		case err != nil:
			return nil, fmt.Errorf("loading %s: %w", envFile, err)
		}
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	v.SetDefault("PORT", 8080)
	v.SetDefault("DB_PATH", "")
	v.SetDefault("ENV", "development")
	v.SetDefault("RATE_LIMIT_PER_MINUTE", 10)
	v.SetDefault("RATE_LIMIT_BURST", 10)

	for _, key := range []string{"PORT", "DB_PATH", "ENV", "RATE_LIMIT_PER_MINUTE", "RATE_LIMIT_BURST"} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("binding %s_%s: %w", EnvPrefix, key, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// IsDev reports whether the server runs in development mode.
func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Addr is the listen address for the configured port.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("VD_PORT must be between 1 and 65535, got %d", c.Port)
	}
	if c.Env != "development" && c.Env != "production" {
		return fmt.Errorf("VD_ENV must be \"development\" or \"production\", got %q", c.Env)
	}
	if c.RateLimitPerMinute < 1 {
		return fmt.Errorf("VD_RATE_LIMIT_PER_MINUTE must be positive, got %d", c.RateLimitPerMinute)
	}
	if c.RateLimitBurst < 1 {
		return fmt.Errorf("VD_RATE_LIMIT_BURST must be positive, got %d", c.RateLimitBurst)
	}
	return nil
}
