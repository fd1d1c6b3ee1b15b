/*
Package config loads server configuration from file and environment.

PURPOSE:
  Centralizes runtime configuration for the tuition engine server. Values
  come from, in order of precedence:
  1. Environment variables (TUITION_ prefix, e.g. TUITION_HTTP_PORT)
  2. An optional config file (config.yaml in the working directory)
  3. Built-in defaults

KEYS:
  http.port          HTTP listen port               (default 8080)
  db.path            SQLite database path           (default tuition.db)
  student.prefix     Student number prefix          (default STU)
  overdue.interval   Overdue scheduler interval     (default 24h)
  overdue.enabled    Run the overdue scheduler      (default true)
  log.level          zap level: debug/info/warn     (default info)

USAGE:
  cfg, err := config.Load()
  if err != nil { ... }
  store, err := sqlite.New(cfg.DBPath)
*/
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	HTTPPort        int
	DBPath          string
	StudentPrefix   string
	OverdueInterval time.Duration
	OverdueEnabled  bool
	LogLevel        string
}

// Load reads config.yaml (if present) and the environment, and returns the
// merged configuration. A missing config file is not an error.
func Load() (Config, error) {
	v := viper.New()

	v.SetDefault("http.port", 8080)
	v.SetDefault("db.path", "tuition.db")
	v.SetDefault("student.prefix", "STU")
	v.SetDefault("overdue.interval", "24h")
	v.SetDefault("overdue.enabled", true)
	v.SetDefault("log.level", "info")

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("TUITION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	interval, err := time.ParseDuration(v.GetString("overdue.interval"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid overdue.interval: %w", err)
	}

	return Config{
		HTTPPort:        v.GetInt("http.port"),
		DBPath:          v.GetString("db.path"),
		StudentPrefix:   v.GetString("student.prefix"),
		OverdueInterval: interval,
		OverdueEnabled:  v.GetBool("overdue.enabled"),
		LogLevel:        v.GetString("log.level"),
	}, nil
}
