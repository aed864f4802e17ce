// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Nursery Contributors

package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/daneel-ai/nursery/internal/secrets"
	nurseryerr "github.com/daneel-ai/nursery/pkg/errors"
)

// serviceName is the keyring service name under which nursery stores secrets.
const serviceName = "nursery"

// secretStoreFactory creates a secrets.Store. It is a package-level variable
// so tests can substitute a mock implementation.
var secretStoreFactory = func() secrets.Store {
	return secrets.NewKeyringStore()
}

func newSecretCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Manage secrets stored in the OS keyring",
		Long: "Store, list and delete secrets under the nursery service in the OS\n" +
			"keyring. Reference a stored secret from the config file as\n" +
			"keyring://nursery/<name>, for example in stream.url when the Redis\n" +
			"connection string carries a password.",
	}

	cmd.AddCommand(
		newSecretSetCmd(),
		newSecretListCmd(),
		newSecretDeleteCmd(),
	)

	return cmd
}

func newSecretSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <name>",
		Short: "Store a secret, reading its value from stdin",
		Args:  cobra.ExactArgs(1),
		RunE:  runSecretSet,
	}
}

func newSecretListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all stored secret names",
		RunE:  runSecretList,
	}
}

func newSecretDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a secret by name",
		Args:  cobra.ExactArgs(1),
		RunE:  runSecretDelete,
	}
}

func runSecretSet(cmd *cobra.Command, args []string) error {
	name := args[0]

	reader := bufio.NewReader(cmd.InOrStdin())
	value, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return nurseryerr.Wrapf(err, nurseryerr.CodeSecretStoreFailure, "reading secret value")
	}
	value = strings.TrimRight(value, "\r\n")
	if value == "" {
		return nurseryerr.New(nurseryerr.CodeSecretInvalidInput, "secret value must not be empty")
	}

	store := secretStoreFactory()
	if err := store.Store(serviceName, name, value); err != nil {
		return nurseryerr.Wrapf(err, nurseryerr.CodeSecretStoreFailure, "storing secret %q", name)
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Stored secret: %s\n", name)
	_, _ = fmt.Fprintf(out, "Reference it in the config as keyring://%s/%s\n", serviceName, name)
	return nil
}

func runSecretList(cmd *cobra.Command, _ []string) error {
	store := secretStoreFactory()
	keys, err := store.List(serviceName)
	if err != nil {
		return nurseryerr.Wrapf(err, nurseryerr.CodeSecretListFailure, "listing secrets")
	}

	out := cmd.OutOrStdout()
	if len(keys) == 0 {
		_, _ = fmt.Fprintln(out, "No secrets stored.")
		return nil
	}

	for _, k := range keys {
		_, _ = fmt.Fprintln(out, k)
	}
	return nil
}

func runSecretDelete(cmd *cobra.Command, args []string) error {
	name := args[0]
	store := secretStoreFactory()

	if err := store.Delete(serviceName, name); err != nil {
		if nurseryerr.HasCode(err, nurseryerr.CodeSecretNotFound) {
			return nurseryerr.Errorf(nurseryerr.CodeSecretNotFound, "secret %q not found", name)
		}
		return nurseryerr.Wrapf(err, nurseryerr.CodeSecretDeleteFailure, "deleting secret %q", name)
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted secret: %s\n", name)
	return nil
}
