// Copyright 2025 The RevGeo Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads and saves the revgeo settings.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// EnvPrefix prefixes the environment variables read by Load.
const EnvPrefix = "REVGEO"

// Config holds the settings that outlive a single run.
type Config struct {
	GoogleAPIKey       string    `mapstructure:"google_api_key"`
	OpenStreetMapEmail string    `mapstructure:"openstreetmap_email" validate:"omitempty,email,excluded_with=GoogleAPIKey"`
	Provider           string    `mapstructure:"provider" validate:"omitempty,oneof=google openstreetmap"`
	Log                LogConfig `mapstructure:"log"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format" validate:"omitempty,oneof=console json"`
}

// DefaultPath returns $XDG_CONFIG_HOME/revgeo/config.yaml, or its
// platform equivalent.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", eris.Wrap(err, "config: locating config dir")
	}

	return filepath.Join(dir, "revgeo", "config.yaml"), nil
}

func newViper(withEnv bool) *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")

	if withEnv {
		v.SetEnvPrefix(EnvPrefix)
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		v.AutomaticEnv()
	}

	v.SetDefault("google_api_key", "")
	v.SetDefault("openstreetmap_email", "")
	v.SetDefault("provider", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	return v
}

// Load reads the config file at path, or DefaultPath when empty, and the
// REVGEO_* environment. A missing file is not an error.
func Load(path string) (*Config, error) {
	return load(path, true)
}

// LoadFile reads only the config file at path, or DefaultPath when empty,
// ignoring the environment. It is the base for Save.
func LoadFile(path string) (*Config, error) {
	return load(path, false)
}

func load(path string, withEnv bool) (*Config, error) {
	if path == "" {
		var err error
		if path, err = DefaultPath(); err != nil {
			return nil, err
		}
	}

	v := newViper(withEnv)
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, eris.Wrapf(err, "config: reading %s", path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

var validate = validator.New()

// Validate checks the credentials and log settings.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, describe(fe))
			}

			return eris.New("config: " + strings.Join(msgs, "; "))
		}

		return eris.Wrap(err, "config: validate")
	}

	if _, err := zapcore.ParseLevel(c.Log.Level); c.Log.Level != "" && err != nil {
		return eris.Wrapf(err, "config: log level %q", c.Log.Level)
	}

	return nil
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "email":
		return "invalid email address " + quote(fe.Value())
	case "excluded_with":
		return "a Google API key and an OpenStreetMap email cannot be used together"
	case "oneof":
		return strings.ToLower(fe.Field()) + " must be one of: " + fe.Param()
	default:
		return fe.Error()
	}
}

func quote(v any) string {
	s, _ := v.(string)

	return `"` + s + `"`
}

// Save writes the credentials of cfg to path, readable only by the owner.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return eris.Wrapf(err, "config: creating %s", filepath.Dir(path))
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.Set("google_api_key", cfg.GoogleAPIKey)
	v.Set("openstreetmap_email", cfg.OpenStreetMapEmail)

	if cfg.Provider != "" {
		v.Set("provider", cfg.Provider)
	}

	if cfg.Log.Level != "" {
		v.Set("log.level", cfg.Log.Level)
	}

	if cfg.Log.Format != "" {
		v.Set("log.format", cfg.Log.Format)
	}

	if err := v.WriteConfigAs(path); err != nil {
		return eris.Wrapf(err, "config: writing %s", path)
	}

	return eris.Wrapf(os.Chmod(path, 0o600), "config: restricting %s", path)
}

// InitLogger initializes the global zap logger. Logs go to stderr.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zapCfg.DisableStacktrace = true

	levelName := cfg.Level
	if levelName == "" {
		levelName = "info"
	}

	level, err := zapcore.ParseLevel(levelName)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}

	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}

	zap.ReplaceGlobals(logger)

	return nil
}
