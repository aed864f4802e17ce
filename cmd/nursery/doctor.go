// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Nursery Contributors

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"

	"github.com/daneel-ai/nursery/internal/config"
	"github.com/daneel-ai/nursery/internal/source"
	nurseryerr "github.com/daneel-ai/nursery/pkg/errors"
)

// sourceCheckTimeout bounds each connectivity probe so a hung store cannot
// stall the whole report.
const sourceCheckTimeout = 3 * time.Second

func newDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostics",
		Long:  "Check binary health, config validity, gateway reachability, source store connectivity and disk space.",
		RunE:  runDoctor,
	}

	cmd.Flags().String("address", "127.0.0.1:3000", "gateway address to check")

	return cmd
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	w := cmd.OutOrStdout()
	addr, _ := cmd.Flags().GetString("address")
	cfgPath, _ := cmd.Flags().GetString("config")
	if cfgPath == "" {
		cfgPath = defaultConfigIfPresent()
	}

	cfg, cfgErr := config.Load(cfgPath)
	if cfg != nil {
		if err := resolveSecretURLs(cfg, secretStoreFactory()); err != nil {
			slog.Debug("keyring resolution failed, probing with raw URLs", "error", err)
		}
	}

	checks := []struct {
		name string
		fn   func() string
	}{
		{"Binary", checkBinary},
		{"Platform", checkPlatform},
		{"Config", func() string { return checkConfig(cfgPath, cfgErr) }},
		{"Gateway", func() string { return checkGateway(addr) }},
		{"Thought stream", func() string { return checkStream(cmd.Context(), cfg) }},
		{"Vector store", func() string { return checkVector(cmd.Context(), cfg) }},
		{"Disk space", func() string { return checkDiskSpace(cfg) }},
	}

	for _, c := range checks {
		if _, err := fmt.Fprintf(w, "%-20s %s\n", c.name+":", c.fn()); err != nil {
			return err
		}
	}

	return nil
}

func checkBinary() string {
	return fmt.Sprintf("nursery %s (%s/%s)", version, runtime.GOOS, runtime.GOARCH)
}

func checkPlatform() string {
	return fmt.Sprintf("%s/%s, Go %s", runtime.GOOS, runtime.GOARCH, runtime.Version())
}

func checkConfig(cfgPath string, cfgErr error) string {
	if cfgErr != nil {
		return fmt.Sprintf("invalid: %s", cfgErr)
	}
	if cfgPath == "" {
		return "using defaults (no config file specified)"
	}
	return fmt.Sprintf("loaded from %s", cfgPath)
}

func checkGateway(addr string) string {
	gw := newGatewayClient(addr)
	var body struct {
		Status string `json:"status"`
	}
	if err := gw.getJSON("/health", &body); err != nil {
		if nurseryerr.HasCode(err, nurseryerr.CodeCLIGatewayNotRunning) {
			return fmt.Sprintf("not running at %s (run 'nursery start')", addr)
		}
		return fmt.Sprintf("error: %s", err)
	}
	return fmt.Sprintf("%s at %s", body.Status, addr)
}

func checkStream(ctx context.Context, cfg *config.Config) string {
	if cfg == nil {
		return "skipped (config failed to load)"
	}

	src, err := source.NewStreamSource(sourceSettings(cfg))
	if err != nil {
		return fmt.Sprintf("error: %s", err)
	}
	defer func() { _ = src.Close() }()

	ctx, cancel := context.WithTimeout(ctx, sourceCheckTimeout)
	defer cancel()

	obs, err := src.Observe(ctx, 1)
	if err != nil {
		return fmt.Sprintf("%s unreachable: %s", cfg.Stream.Backend, err)
	}
	return fmt.Sprintf("%s reachable (%d thoughts this session)", cfg.Stream.Backend, obs.SessionThoughts)
}

func checkVector(ctx context.Context, cfg *config.Config) string {
	if cfg == nil {
		return "skipped (config failed to load)"
	}

	src, err := source.NewVectorSource(sourceSettings(cfg))
	if err != nil {
		return fmt.Sprintf("error: %s", err)
	}
	defer func() { _ = src.Close() }()

	ctx, cancel := context.WithTimeout(ctx, sourceCheckTimeout)
	defer cancel()

	obs, err := src.Observe(ctx)
	if err != nil {
		return fmt.Sprintf("%s unreachable: %s", cfg.Vector.Backend, err)
	}
	return fmt.Sprintf("%s reachable (%d conscious, %d unconscious memories)",
		cfg.Vector.Backend, obs.ConsciousMemories, obs.UnconsciousMemories)
}

func checkDiskSpace(cfg *config.Config) string {
	// The observer itself stores nothing; disk only matters when the mind's
	// database is a local sqlite file.
	path := ""
	if cfg != nil && cfg.SQLite.Path != "" {
		path = filepath.Dir(cfg.SQLite.Path)
	}
	if path == "" {
		path, _ = os.UserHomeDir()
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		path, _ = os.UserHomeDir()
	}

	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return fmt.Sprintf("unable to check: %s", err)
	}

	availBytes := stat.Bavail * uint64(stat.Bsize)
	return formatBytes(availBytes) + " available"
}

// formatBytes formats a byte count as a human-readable string.
func formatBytes(b uint64) string {
	const (
		gb = 1024 * 1024 * 1024
		mb = 1024 * 1024
	)
	switch {
	case b >= gb:
		return fmt.Sprintf("%.1f GB", float64(b)/float64(gb))
	case b >= mb:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(mb))
	default:
		return fmt.Sprintf("%d bytes", b)
	}
}
