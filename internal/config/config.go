// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package config

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/godbus/dbus/v5"
	sigilerr "github.com/sigil-dev/ssitem/pkg/errors"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variable overrides, e.g.
// SSITEM_COLLECTION_ALIAS for collection.alias.
const EnvPrefix = "SSITEM"

// Config is the top-level ssitem configuration.
type Config struct {
	Bus        BusConfig        `mapstructure:"bus" yaml:"bus"`
	Service    ServiceConfig    `mapstructure:"service" yaml:"service"`
	Session    SessionConfig    `mapstructure:"session" yaml:"session"`
	Collection CollectionConfig `mapstructure:"collection" yaml:"collection"`
	Item       ItemConfig       `mapstructure:"item" yaml:"item"`
	Prompt     PromptConfig     `mapstructure:"prompt" yaml:"prompt"`
	Log        LogConfig        `mapstructure:"log" yaml:"log"`
}

// BusConfig selects the message bus. An empty address means the session bus.
type BusConfig struct {
	Address string `mapstructure:"address" yaml:"address"`
}

// ServiceConfig locates the Secret Service on the bus.
type ServiceConfig struct {
	Name string `mapstructure:"name" yaml:"name"`
	Path string `mapstructure:"path" yaml:"path"`
}

// SessionConfig controls session negotiation.
type SessionConfig struct {
	Algorithm string `mapstructure:"algorithm" yaml:"algorithm"`
}

// CollectionConfig selects the collection items are created in.
type CollectionConfig struct {
	Alias string `mapstructure:"alias" yaml:"alias"`
}

// ItemConfig describes the item to create. Secret may be a literal or a
// keyring:// or env:// reference.
type ItemConfig struct {
	Label       string            `mapstructure:"label" yaml:"label"`
	Attributes  map[string]string `mapstructure:"attributes" yaml:"attributes"`
	Secret      string            `mapstructure:"secret" yaml:"secret"`
	ContentType string            `mapstructure:"content_type" yaml:"content_type"`
	Replace     bool              `mapstructure:"replace" yaml:"replace"`
}

// PromptConfig controls how service prompts are shown and awaited.
type PromptConfig struct {
	WindowID string        `mapstructure:"window_id" yaml:"window_id"`
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout"`

	// FailOnDismiss stops the run when the unlock prompt is dismissed
	// instead of continuing to item creation.
	FailOnDismiss bool `mapstructure:"fail_on_dismiss" yaml:"fail_on_dismiss"`
}

// LogConfig controls diagnostic logging on stderr.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
}

// DefaultAttributes returns the lookup attributes used when item.attributes
// is not configured at all.
func DefaultAttributes() map[string]string {
	return map[string]string{"test-lookup-attribute": "value"}
}

// SetDefaults registers the default of every key on v. item.attributes has
// no viper default because viper merges nested map defaults key by key
// into configured maps; FromViper fills it in instead.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("bus.address", "")
	v.SetDefault("service.name", "org.freedesktop.secrets")
	v.SetDefault("service.path", "/org/freedesktop/secrets")
	v.SetDefault("session.algorithm", "plain")
	v.SetDefault("collection.alias", "default")
	v.SetDefault("item.label", "label")
	v.SetDefault("item.secret", "secret value")
	v.SetDefault("item.content_type", "text/plain; charset=utf-8")
	v.SetDefault("item.replace", true)
	v.SetDefault("prompt.window_id", "")
	v.SetDefault("prompt.timeout", time.Duration(0))
	v.SetDefault("prompt.fail_on_dismiss", false)
	v.SetDefault("log.level", "info")
}

// SetupEnv enables SSITEM_ environment overrides on v.
func SetupEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load reads configuration from the given path (or defaults) with
// environment variable overrides (prefix SSITEM_).
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	SetupEnv(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, sigilerr.Errorf(sigilerr.CodeConfigLoadReadFailure, "reading config %s: %w", path, err)
		}
	}

	return FromViper(v)
}

// FromViper decodes and validates the configuration held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, sigilerr.Errorf(sigilerr.CodeConfigParseInvalidFormat, "unmarshalling config: %w", err)
	}
	if cfg.Item.Attributes == nil {
		cfg.Item.Attributes = DefaultAttributes()
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, sigilerr.Errorf(sigilerr.CodeConfigValidateInvalidValue, "validating config: %w", errors.Join(errs...))
	}

	return &cfg, nil
}

// Validate checks the configuration for logical errors. It collects every
// problem instead of stopping at the first one.
func (c *Config) Validate() []error {
	var errs []error

	errs = append(errs, c.validateBus()...)
	errs = append(errs, c.validateItem()...)
	errs = append(errs, c.validatePrompt()...)

	if c.Session.Algorithm != "plain" {
		errs = append(errs, invalid("config: session.algorithm must be \"plain\", got %q", c.Session.Algorithm))
	}
	if c.Collection.Alias == "" {
		errs = append(errs, invalid("config: collection.alias must not be empty"))
	}
	if _, ok := ParseLogLevel(c.Log.Level); !ok {
		errs = append(errs, invalid("config: log.level must be one of [debug, info, warn, error], got %q", c.Log.Level))
	}

	return errs
}

func (c *Config) validateBus() []error {
	var errs []error

	if c.Bus.Address != "" && !strings.Contains(c.Bus.Address, ":") {
		errs = append(errs, invalid("config: bus.address must be a D-Bus address like unix:path=/run/user/1000/bus, got %q", c.Bus.Address))
	}
	if c.Service.Name == "" {
		errs = append(errs, invalid("config: service.name must not be empty"))
	}
	if !dbus.ObjectPath(c.Service.Path).IsValid() || c.Service.Path == "/" {
		errs = append(errs, invalid("config: service.path must be a valid object path, got %q", c.Service.Path))
	}

	return errs
}

func (c *Config) validateItem() []error {
	var errs []error

	if c.Item.Label == "" {
		errs = append(errs, invalid("config: item.label must not be empty"))
	}
	if c.Item.ContentType == "" {
		errs = append(errs, invalid("config: item.content_type must not be empty"))
	}
	for k := range c.Item.Attributes {
		if k == "" {
			errs = append(errs, invalid("config: item.attributes must not contain an empty name"))
		}
	}

	return errs
}

func (c *Config) validatePrompt() []error {
	if c.Prompt.Timeout < 0 {
		return []error{invalid("config: prompt.timeout must not be negative, got %s", c.Prompt.Timeout)}
	}
	return nil
}

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// ParseLogLevel maps a configured level name to a slog level.
func ParseLogLevel(name string) (slog.Level, bool) {
	lvl, ok := logLevels[strings.ToLower(name)]
	return lvl, ok
}

func invalid(format string, args ...any) error {
	return sigilerr.Errorf(sigilerr.CodeConfigValidateInvalidValue, format, args...)
}
