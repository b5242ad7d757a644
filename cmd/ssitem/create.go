// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/sigil-dev/ssitem/internal/itemflow"
	"github.com/sigil-dev/ssitem/internal/secrets"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an item in a collection",
		Long: "Open a plain session, resolve the collection alias, unlock the collection and create an item " +
			"holding the secret. An alias with no collection is reported and is not an error.",
		Args: cobra.NoArgs,
		RunE: runCreate,
	}

	cmd.Flags().String("alias", "", "collection alias (default \"default\")")
	cmd.Flags().String("label", "", "item label")
	cmd.Flags().String("secret", "", "secret value, keyring://service/key or env://NAME")
	cmd.Flags().String("content-type", "", "content type of the secret")
	cmd.Flags().StringArray("attr", nil, "lookup attribute as name=value; replaces configured attributes (repeatable)")
	cmd.Flags().Bool("no-wait", false, "exit as soon as the item is created")

	return cmd
}

func runCreate(cmd *cobra.Command, _ []string) error {
	if err := bindFlags(cmd, map[string]string{
		"collection.alias":  "alias",
		"item.label":        "label",
		"item.secret":       "secret",
		"item.content_type": "content-type",
	}); err != nil {
		return err
	}

	pairs, _ := cmd.Flags().GetStringArray("attr")
	var attrs map[string]string
	if len(pairs) > 0 {
		parsed, err := parseAttributes(pairs)
		if err != nil {
			return err
		}
		attrs = parsed
	}

	// A referenced secret is never echoed back.
	reveal := !secrets.IsReference(viper.GetString("item.secret"))

	cfg, err := loadConfig(true)
	if err != nil {
		return err
	}
	if attrs != nil {
		cfg.Item.Attributes = attrs
	}

	ctx := cmd.Context()
	client, bus, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeBus(bus)

	out := cmd.OutOrStdout()
	res, err := itemflow.Run(ctx, client, itemflow.Options{
		Algorithm:   cfg.Session.Algorithm,
		Alias:       cfg.Collection.Alias,
		Label:       cfg.Item.Label,
		Attributes:  cfg.Item.Attributes,
		Secret:      cfg.Item.Secret,
		ContentType: cfg.Item.ContentType,
		Replace:     cfg.Item.Replace,
		Reveal:      reveal,
		Logger:      slog.Default(),
	}, out)
	if err != nil {
		return err
	}
	if res.NoCollection {
		return nil
	}

	if noWait, _ := cmd.Flags().GetBool("no-wait"); noWait {
		return nil
	}
	waitForExit(ctx, cmd.InOrStdin(), out)
	return nil
}

// waitForExit blocks until a line is read from in, in is exhausted, or ctx
// ends.
func waitForExit(ctx context.Context, in io.Reader, out io.Writer) {
	_, _ = fmt.Fprintln(out, "Press Enter to exit")

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = bufio.NewReader(in).ReadString('\n')
	}()

	select {
	case <-done:
	case <-ctx.Done():
	}
}
