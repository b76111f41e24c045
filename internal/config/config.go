// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration loaded once at startup.
// It is passed by value to constructors and never mutated afterwards.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	DB      DBConfig      `mapstructure:"db"`
	Kobo    KoboConfig    `mapstructure:"kobo"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port            int      `mapstructure:"port"`
	Debug           bool     `mapstructure:"debug"`
	AllowedHosts    []string `mapstructure:"allowed_hosts"`
	DisplayTimezone string   `mapstructure:"display_timezone"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// KoboConfig holds credentials and defaults for the KoboToolbox provider.
type KoboConfig struct {
	Token          string `mapstructure:"token"`
	BaseURL        string `mapstructure:"base_url"`
	FormUID        string `mapstructure:"form_uid"`
	FormURL        string `mapstructure:"form_url"`
	PageSize       int    `mapstructure:"page_size"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment. Environment variables map
// dotted keys with underscores, so kobo.token is read from KOBO_TOKEN and
// db.dsn from DB_DSN.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.debug", false)
	v.SetDefault("server.allowed_hosts", []string{})
	v.SetDefault("server.display_timezone", "Asia/Dhaka")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_conns", 8)
	v.SetDefault("db.min_conns", 0)
	// Empty defaults keep AutomaticEnv visible to Unmarshal for these keys.
	v.SetDefault("kobo.token", "")
	v.SetDefault("kobo.form_uid", "")
	v.SetDefault("kobo.form_url", "")
	v.SetDefault("kobo.base_url", "https://kf.kobotoolbox.org")
	v.SetDefault("kobo.page_size", 1000)
	v.SetDefault("kobo.timeout_seconds", 30)
	v.SetDefault("logging.development", false)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if _, err := time.LoadLocation(c.Server.DisplayTimezone); err != nil {
		return fmt.Errorf("server.display_timezone %q is not a valid timezone", c.Server.DisplayTimezone)
	}
	if c.Kobo.BaseURL == "" {
		return fmt.Errorf("kobo.base_url must be set")
	}
	if c.Kobo.PageSize <= 0 {
		return fmt.Errorf("kobo.page_size must be > 0")
	}
	if c.Kobo.TimeoutSeconds <= 0 {
		return fmt.Errorf("kobo.timeout_seconds must be > 0")
	}
	return nil
}

// KoboTimeout converts the configured provider timeout into a duration.
func (c Config) KoboTimeout() time.Duration {
	return time.Duration(c.Kobo.TimeoutSeconds) * time.Second
}
