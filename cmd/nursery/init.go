// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Nursery Contributors

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/daneel-ai/nursery/internal/config"
	nurseryerr "github.com/daneel-ai/nursery/pkg/errors"
)

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		Long: "Write the commented default configuration to ~/.config/nursery/nursery.yaml\n" +
			"(or the path given with --path) so it can be edited to point at the\n" +
			"observed mind's stores.",
		RunE: runInit,
	}

	cmd.Flags().String("path", "", "write the config to this path instead of the default")
	cmd.Flags().Bool("force", false, "overwrite an existing config file")

	return cmd
}

func runInit(cmd *cobra.Command, _ []string) error {
	path, _ := cmd.Flags().GetString("path")
	force, _ := cmd.Flags().GetBool("force")

	if path == "" {
		var err error
		path, err = config.DefaultConfigPath()
		if err != nil {
			return err
		}
	}

	if !force {
		if _, err := os.Stat(path); err == nil {
			return nurseryerr.Errorf(nurseryerr.CodeConfigAlreadyExists,
				"config file already exists at %s; use --force to overwrite", path)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nurseryerr.Wrapf(err, nurseryerr.CodeConfigLoadReadFailure,
			"creating config directory %s", filepath.Dir(path))
	}
	if err := os.WriteFile(path, config.DefaultConfigYAML, 0o600); err != nil {
		return nurseryerr.Wrapf(err, nurseryerr.CodeConfigLoadReadFailure,
			"writing config to %s", path)
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Wrote default config to %s\n", path)
	_, _ = fmt.Fprintln(out, "Edit it to point at the mind's stores, then run 'nursery start'.")
	return nil
}
