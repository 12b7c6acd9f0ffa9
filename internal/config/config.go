package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	DB   DBConfig
	Load LoadConfig
	Wide WideConfig
	Log  LogConfig
}

// DBConfig holds SQLite settings. BusyTimeoutSecs governs contention when
// another process holds the store open; concurrent multi-writer use is
// unsupported beyond that.
type DBConfig struct {
	Path            string `mapstructure:"path"`
	BusyTimeoutSecs int    `mapstructure:"busy_timeout_secs"`
}

// LoadConfig holds batched-load settings.
type LoadConfig struct {
	BatchSize int `mapstructure:"batch_size"`
	LogEvery  int `mapstructure:"log_every"`
}

// WideConfig holds wide-table builder settings.
type WideConfig struct {
	Table string `mapstructure:"table"`
}

// LogConfig holds logging settings. File, when set, adds a secondary sink;
// a relative name is placed under ./log/.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// Load reads configuration from environment variables with the RCN2SQL_ prefix.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("RCN2SQL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// DB defaults
	v.SetDefault("db.path", "rcn_raw.sqlite")
	v.SetDefault("db.busy_timeout_secs", 30)

	// Load defaults
	v.SetDefault("load.batch_size", 100000)
	v.SetDefault("load.log_every", 500000)

	// Wide table defaults
	v.SetDefault("wide.table", "rcn_wide")

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.file", "")

	// Bind environment variables explicitly for nested keys
	envBindings := map[string]string{
		"db.path":              "RCN2SQL_DB_PATH",
		"db.busy_timeout_secs": "RCN2SQL_DB_BUSY_TIMEOUT_SECS",
		"load.batch_size":      "RCN2SQL_LOAD_BATCH_SIZE",
		"load.log_every":       "RCN2SQL_LOAD_LOG_EVERY",
		"wide.table":           "RCN2SQL_WIDE_TABLE",
		"log.level":            "RCN2SQL_LOG_LEVEL",
		"log.format":           "RCN2SQL_LOG_FORMAT",
		"log.file":             "RCN2SQL_LOG_FILE",
	}
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}

	cfg := &Config{}
	cfg.DB = DBConfig{
		Path:            v.GetString("db.path"),
		BusyTimeoutSecs: v.GetInt("db.busy_timeout_secs"),
	}
	cfg.Load = LoadConfig{
		BatchSize: v.GetInt("load.batch_size"),
		LogEvery:  v.GetInt("load.log_every"),
	}
	cfg.Wide = WideConfig{
		Table: v.GetString("wide.table"),
	}
	cfg.Log = LogConfig{
		Level:  v.GetString("log.level"),
		Format: v.GetString("log.format"),
		File:   v.GetString("log.file"),
	}
	return cfg, nil
}
