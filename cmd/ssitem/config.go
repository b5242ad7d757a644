// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"github.com/sigil-dev/ssitem/internal/secrets"
	sigilerr "github.com/sigil-dev/ssitem/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const redacted = "<redacted>"

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Long:  "Print the configuration after defaults, config file, environment and flags are applied. A literal item secret is redacted; references are shown as written.",
		Args:  cobra.NoArgs,
		RunE:  runConfig,
	}
}

func runConfig(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(false)
	if err != nil {
		return err
	}
	if cfg.Item.Secret != "" && !secrets.IsReference(cfg.Item.Secret) {
		cfg.Item.Secret = redacted
	}

	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return sigilerr.Errorf(sigilerr.CodeInternalFailure, "encoding config: %w", err)
	}
	return enc.Close()
}
