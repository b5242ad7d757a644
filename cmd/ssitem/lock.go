// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"github.com/sigil-dev/ssitem/internal/itemflow"
	"github.com/spf13/cobra"
)

func newLockCmd(locked bool) *cobra.Command {
	use, short := "unlock", "Unlock a collection, answering the service prompt if needed"
	if locked {
		use, short = "lock", "Lock a collection"
	}

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLock(cmd, locked)
		},
	}
	cmd.Flags().String("alias", "", "collection alias (default \"default\")")

	return cmd
}

func runLock(cmd *cobra.Command, locked bool) error {
	if err := bindFlags(cmd, map[string]string{"collection.alias": "alias"}); err != nil {
		return err
	}

	cfg, err := loadConfig(false)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	client, bus, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeBus(bus)

	_, err = itemflow.LockCollection(ctx, client, cfg.Collection.Alias, locked, cmd.OutOrStdout())
	return err
}
