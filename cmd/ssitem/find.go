// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newFindCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "find",
		Short: "List items whose attributes match",
		Long:  "Search all collections for items carrying every given attribute. Without --attr the configured item attributes are used.",
		Args:  cobra.NoArgs,
		RunE:  runFind,
	}
	cmd.Flags().StringArray("attr", nil, "attribute to match as name=value (repeatable)")

	return cmd
}

func runFind(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(false)
	if err != nil {
		return err
	}

	attrs := cfg.Item.Attributes
	if pairs, _ := cmd.Flags().GetStringArray("attr"); len(pairs) > 0 {
		if attrs, err = parseAttributes(pairs); err != nil {
			return err
		}
	}

	ctx := cmd.Context()
	client, bus, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeBus(bus)

	unlocked, locked, err := client.SearchItems(ctx, attrs)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(unlocked)+len(locked) == 0 {
		_, err := fmt.Fprintln(out, "No matching items.")
		return err
	}
	for _, p := range unlocked {
		if _, err := fmt.Fprintf(out, "%-9s %s\n", "unlocked", p); err != nil {
			return err
		}
	}
	for _, p := range locked {
		if _, err := fmt.Fprintf(out, "%-9s %s\n", "locked", p); err != nil {
			return err
		}
	}
	return nil
}
