// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Nursery Contributors

package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/daneel-ai/nursery/internal/config"
)

func newStartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the nursery observation gateway",
		Long: "Load configuration, connect to the mind's thought stream and memory\n" +
			"store, and serve snapshots over HTTP and WebSocket until interrupted.",
		RunE: runStart,
	}

	cmd.Flags().String("listen", "", "override listen address (host:port)")

	return cmd
}

func runStart(cmd *cobra.Command, _ []string) error {
	cfgPath, _ := cmd.Flags().GetString("config")
	if cfgPath == "" {
		// First run writes the commented default config; later runs pick
		// it up from the default location.
		if written := config.BootstrapConfig(); written != "" {
			cfgPath = written
		} else {
			cfgPath = defaultConfigIfPresent()
		}
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
		cfg.Server.Listen = listen
	}

	level := cfg.SlogLevel()
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// Store URLs may embed credentials; nag if other users can read them.
	config.WarnInsecurePermissions(cfgPath)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	n, err := WireNursery(cfg, logger)
	if err != nil {
		return fmt.Errorf("wiring nursery: %w", err)
	}
	defer func() {
		if err := n.Close(); err != nil {
			logger.Warn("closing subsystems", "error", err)
		}
	}()

	logger.Info("nursery starting",
		"mind", cfg.Identity.Name,
		"listen", cfg.Server.Listen,
		"stream_backend", cfg.Stream.Backend,
		"vector_backend", cfg.Vector.Backend,
	)

	return n.Run(ctx)
}
