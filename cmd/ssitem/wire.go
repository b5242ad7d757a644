// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"context"
	"log/slog"
	"strings"

	"github.com/godbus/dbus/v5"
	"github.com/sigil-dev/ssitem/internal/config"
	"github.com/sigil-dev/ssitem/internal/secrets"
	"github.com/sigil-dev/ssitem/internal/secretservice"
	sigilerr "github.com/sigil-dev/ssitem/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// busTransport is a secretservice.Transport backed by a live connection.
type busTransport interface {
	secretservice.Transport
	Ping(ctx context.Context) error
	Close() error
}

// transportFactory connects to the bus. It is a package-level variable so
// tests can substitute an in-memory transport.
var transportFactory = func(ctx context.Context, cfg *config.Config) (busTransport, error) {
	return secretservice.Dial(ctx, cfg.Bus.Address, cfg.Service.Name)
}

// secretStoreFactory creates the store keyring:// references resolve
// against. Tests substitute a mock.
var secretStoreFactory = func() secrets.Store {
	return secrets.NewKeyringStore()
}

// loadConfig decodes the global viper into a validated Config. With
// resolve set, secret references are replaced by their values first.
func loadConfig(resolve bool) (*config.Config, error) {
	v := viper.GetViper()
	if resolve {
		if err := secrets.ResolveViperSecrets(v, secretStoreFactory()); err != nil {
			return nil, err
		}
	}
	return config.FromViper(v)
}

// connect dials the bus and returns a client for cfg. The caller closes the
// returned transport.
func connect(ctx context.Context, cfg *config.Config) (*secretservice.Client, busTransport, error) {
	bus, err := transportFactory(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	client := secretservice.NewClient(bus,
		secretservice.WithServicePath(dbus.ObjectPath(cfg.Service.Path)),
		secretservice.WithWindowID(cfg.Prompt.WindowID),
		secretservice.WithPromptTimeout(cfg.Prompt.Timeout),
		secretservice.WithFailOnDismiss(cfg.Prompt.FailOnDismiss),
		secretservice.WithLogger(slog.Default()),
	)
	return client, bus, nil
}

func closeBus(bus busTransport) {
	if err := bus.Close(); err != nil {
		slog.Debug("closing bus connection", "error", err)
	}
}

// bindFlags binds command flags to viper keys. Binding happens when the
// command runs because several commands share flag names.
func bindFlags(cmd *cobra.Command, keys map[string]string) error {
	for key, flag := range keys {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return sigilerr.Errorf(sigilerr.CodeCLISetupFailure, "binding %s flag: %w", flag, err)
		}
	}
	return nil
}

// parseAttributes turns repeated name=value flags into an attribute map.
func parseAttributes(pairs []string) (map[string]string, error) {
	attrs := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, sigilerr.Errorf(sigilerr.CodeCLIInputInvalid, "invalid attribute %q: expected name=value", pair)
		}
		attrs[name] = value
	}
	return attrs, nil
}
