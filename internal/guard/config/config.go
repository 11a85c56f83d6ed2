package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// AppConfig holds configuration values parsed from environment variables.
type AppConfig struct {
	// Env is the runtime environment, either "dev" or "prod".
	Env string `koanf:"env" validate:"required,oneof=dev prod"`

	// LogLevel controls log verbosity: "debug", "info", "warn", or "error".
	LogLevel string `koanf:"log_level" validate:"required,oneof=debug info warn error"`

	// Port is the port the HTTP control API binds to.
	Port int `koanf:"port" validate:"required,gte=1,lt=65535"`

	// DBPath is the location of the bbolt database file.
	DBPath string `koanf:"db_path" validate:"required"`

	// MaxRules is the platform's hard maximum of installed filter rules.
	MaxRules uint `koanf:"max_rules" validate:"required,gte=1"`

	// MaxListBytes is the soft ceiling for the serialized site list.
	MaxListBytes uint `koanf:"max_list_bytes" validate:"required,gte=1024"`

	// RebuildIntervalSec is the recompute ticker period in seconds.
	RebuildIntervalSec uint `koanf:"rebuild_interval_sec" validate:"required,gte=5"`

	// NotifyWindowSec is the per-tab block-notification rate-limit window.
	NotifyWindowSec uint `koanf:"notify_window_sec" validate:"required,gte=1"`

	// LandingURL is the redirect target blocked navigations land on. The
	// original URL is carried as the "from" query parameter.
	LandingURL string `koanf:"landing_url" validate:"required,url"`
}

// DEFAULT_APP_CONFIG defines the default application configuration for the
// guard daemon.
var DEFAULT_APP_CONFIG = AppConfig{
	Env:                "prod",
	LogLevel:           "info",
	Port:               7812,
	DBPath:             "/var/lib/braindefd/guard.db",
	MaxRules:           5000,
	MaxListBytes:       100 * 1024,
	RebuildIntervalSec: 60,
	NotifyWindowSec:    30,
	LandingURL:         "http://127.0.0.1:7812/blocked",
}

// envLoader loads environment variables with the prefix "GUARD_", lowercasing
// keys and splitting space- or comma-separated values into slices. Declared
// as a var so tests can substitute it.
var envLoader = func(k *koanf.Koanf) error {
	return k.Load(env.Provider(".", env.Opt{
		Prefix: "GUARD_",
		TransformFunc: func(key, value string) (string, any) {
			key = strings.ToLower(strings.TrimPrefix(key, "GUARD_"))
			value = strings.TrimSpace(value)

			if value == "" {
				return key, value
			}

			if strings.Contains(value, " ") || strings.Contains(value, ",") {
				parts := strings.FieldsFunc(value, func(r rune) bool {
					return r == ' ' || r == ','
				})
				return key, parts
			}

			return key, value
		},
	}), nil)
}

// defaultLoader loads default values via the structs provider.
var defaultLoader = func(k *koanf.Koanf) error {
	return k.Load(structs.Provider(DEFAULT_APP_CONFIG, "koanf"), nil)
}

// Load parses environment variables and returns an AppConfig instance.
// It applies default values and runs validation automatically.
func Load() (*AppConfig, error) {
	k := koanf.New(".")

	if err := defaultLoader(k); err != nil {
		return nil, fmt.Errorf("error loading default config: %w", err)
	}

	if err := envLoader(k); err != nil {
		return nil, fmt.Errorf("error loading env: %w", err)
	}

	var cfg AppConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	return &cfg, nil
}
