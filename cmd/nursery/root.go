// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Nursery Contributors

package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/daneel-ai/nursery/internal/config"
)

// NewRootCmd creates the root nursery command with all subcommands registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "nursery",
		Short: "nursery — observation layer for a developing mind",
		Long: "Nursery watches a running mind from the outside: it polls the mind's\n" +
			"thought stream and memory store, assembles read-only snapshots, and\n" +
			"serves them to dashboards over HTTP and WebSocket. It never writes to\n" +
			"the mind's stores and never influences what it observes.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags shared by every subcommand.
	root.PersistentFlags().StringP("config", "c", "", "path to config file")
	root.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newInitCmd(),
		newStartCmd(),
		newStatusCmd(),
		newWatchCmd(),
		newSecretCmd(),
		newDoctorCmd(),
		newVersionCmd(),
	)

	return root
}

// defaultConfigIfPresent returns the default config path when that file
// exists, otherwise empty so the caller runs on built-in defaults.
func defaultConfigIfPresent() string {
	p, err := config.DefaultConfigPath()
	if err != nil {
		return ""
	}
	if _, err := os.Stat(p); err != nil {
		return ""
	}
	return p
}
