// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/sigil-dev/ssitem/internal/secrets"
	sigilerr "github.com/sigil-dev/ssitem/pkg/errors"
	"github.com/spf13/cobra"
)

func newSecretCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Manage secrets that item.secret can reference",
		Long: "Store and delete values under the ssitem service in the OS keyring. " +
			"A stored value is referenced as keyring://ssitem/<name>.",
	}

	cmd.AddCommand(
		newSecretSetCmd(),
		newSecretDeleteCmd(),
	)

	return cmd
}

func newSecretSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <name>",
		Short: "Store a secret read from stdin (or --value)",
		Args:  cobra.ExactArgs(1),
		RunE:  runSecretSet,
	}
	cmd.Flags().String("value", "", "secret value; read from the first line of stdin when omitted")

	return cmd
}

func newSecretDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a stored secret",
		Args:  cobra.ExactArgs(1),
		RunE:  runSecretDelete,
	}
}

func runSecretSet(cmd *cobra.Command, args []string) error {
	name := args[0]

	value, _ := cmd.Flags().GetString("value")
	if !cmd.Flags().Changed("value") {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return sigilerr.Errorf(sigilerr.CodeCLIInputInvalid, "reading secret %q from stdin: %w", name, err)
		}
		value = strings.TrimRight(line, "\r\n")
	}

	if err := secretStoreFactory().Store(secrets.ServiceName, name, value); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Stored secret: %s\n", name)
	_, _ = fmt.Fprintf(out, "Reference it as keyring://%s/%s\n", secrets.ServiceName, name)
	return nil
}

func runSecretDelete(cmd *cobra.Command, args []string) error {
	name := args[0]

	if err := secretStoreFactory().Delete(secrets.ServiceName, name); err != nil {
		if sigilerr.IsNotFound(err) {
			return sigilerr.Errorf(sigilerr.CodeSecretNotFound, "secret %q not found", name)
		}
		return err
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted secret: %s\n", name)
	return nil
}
