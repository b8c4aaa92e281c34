package config

import (
	"fmt"
	"strings"
	"sync"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var defineFlagsOnce sync.Once

// flagBindings maps command-line flags to their canonical config keys.
var flagBindings = map[string]string{
	"database-driver":  "database.driver",
	"database-dsn":     "database.dsn",
	"database-name":    "database.database",
	"database-log-sql": "database.log_sql",
	"log-level":        "logging.level",
	"log-format":       "logging.format",
	"registry":         "registry",
}

// Load loads configuration with the following precedence:
// 1. Command line flags
// 2. Environment variables
// 3. Config file
// 4. Default values
func Load() (*Config, error) {
	defineFlags()
	if !pflag.Parsed() {
		pflag.Parse()
	}

	v := viper.New()
	setDefaults(v)

	// --- Config file ---
	cfgPath, _ := pflag.CommandLine.GetString("config")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.SetConfigName("uniquery")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/uniquery/")
		v.AddConfigPath("$HOME/.uniquery")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if cfgPath != "" {
			return nil, fmt.Errorf("failed to read config file %q: %w", cfgPath, err)
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// --- Environment variables ---
	// Canonical keys: dot + snake_case. Env vars: UNIQUERY_DATABASE_DSN
	v.SetEnvPrefix("UNIQUERY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// --- Flags (highest priority, only when changed) ---
	bindChangedFlagsToViper(v)

	return unmarshal(v)
}

func defineFlags() {
	defineFlagsOnce.Do(func() {
		pflag.String("config", "", "Path to config file")
		pflag.String("database-driver", "mysql", "Database dialect: mysql, postgres, or sqlite")
		pflag.String("database-dsn", "", "Database connection string")
		pflag.String("database-name", "", "Database schema to introspect")
		pflag.Bool("database-log-sql", false, "Log executed SQL at debug level")
		pflag.String("log-level", "info", "Log level: debug, info, warn, error")
		pflag.String("log-format", "text", "Log format: json or text")
		pflag.String("registry", "uniquery-registry.json", "Path of the schema registry artifact")
	})
}

func bindChangedFlagsToViper(v *viper.Viper) {
	pflag.CommandLine.Visit(func(f *pflag.Flag) {
		if key, ok := flagBindings[f.Name]; ok {
			v.Set(key, f.Value.String())
		}
	})
}

// unmarshal decodes the assembled viper state into a validated Config.
func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.UnmarshalExact(
		&cfg,
		viper.DecodeHook(
			mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
		),
	); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
