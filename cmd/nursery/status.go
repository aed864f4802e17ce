// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Nursery Contributors

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/daneel-ai/nursery/internal/snapshot"
	nurseryerr "github.com/daneel-ai/nursery/pkg/errors"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show what the observed mind is doing",
		Long:  "Query a running gateway's health and metrics endpoints and print a summary of the mind's state.",
		RunE:  runStatus,
	}

	cmd.Flags().String("address", "127.0.0.1:3000", "gateway address to query")
	cmd.Flags().StringP("output", "o", "text", "output format: text, json or yaml")

	return cmd
}

// statusReport is the printable summary assembled from the gateway.
type statusReport struct {
	Address          string  `json:"address" yaml:"address"`
	Gateway          string  `json:"gateway" yaml:"gateway"`
	Name             string  `json:"name,omitempty" yaml:"name,omitempty"`
	Uptime           string  `json:"uptime,omitempty" yaml:"uptime,omitempty"`
	SessionThoughts  int64   `json:"session_thoughts,omitempty" yaml:"session_thoughts,omitempty"`
	LifetimeThoughts int64   `json:"lifetime_thoughts,omitempty" yaml:"lifetime_thoughts,omitempty"`
	Valence          float64 `json:"valence" yaml:"valence"`
	Arousal          float64 `json:"arousal" yaml:"arousal"`
	ActorsAlive      int     `json:"actors_alive" yaml:"actors_alive"`
	ActorsTotal      int     `json:"actors_total" yaml:"actors_total"`
}

func runStatus(cmd *cobra.Command, _ []string) error {
	addr, _ := cmd.Flags().GetString("address")
	format, _ := cmd.Flags().GetString("output")
	out := cmd.OutOrStdout()

	gw := newGatewayClient(addr)

	var health struct {
		Status string `json:"status"`
	}
	if err := gw.getJSON("/health", &health); err != nil {
		if nurseryerr.HasCode(err, nurseryerr.CodeCLIGatewayNotRunning) {
			_, _ = fmt.Fprintf(out, "Gateway at %s is not running (run 'nursery start')\n", addr)
			return nil
		}
		_, _ = fmt.Fprintf(out, "Gateway at %s: %s\n", addr, err)
		return nil
	}

	report := statusReport{Address: addr, Gateway: health.Status}

	var snap snapshot.Snapshot
	if err := gw.getJSON("/metrics", &snap); err != nil {
		// The gateway answers 503 until the first collector tick lands.
		_, _ = fmt.Fprintf(out, "Gateway at %s: %s (snapshot not ready yet)\n", addr, health.Status)
		return nil
	}

	report.Name = snap.Identity.Name
	report.Uptime = formatUptime(snap.Identity.UptimeSeconds)
	report.SessionThoughts = snap.Identity.SessionThoughts
	report.LifetimeThoughts = snap.Identity.LifetimeThoughts
	report.Valence = snap.Emotional.Valence
	report.Arousal = snap.Emotional.Arousal
	report.ActorsTotal = len(snap.Actors)
	for _, a := range snap.Actors {
		if a.Alive {
			report.ActorsAlive++
		}
	}

	return writeReport(out, format, report)
}

func writeReport(out io.Writer, format string, report statusReport) error {
	switch format {
	case "json":
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return nurseryerr.Wrapf(err, nurseryerr.CodeCLIResponseInvalid, "encoding report")
		}
		_, err = fmt.Fprintln(out, string(data))
		return err

	case "yaml":
		data, err := yaml.Marshal(report)
		if err != nil {
			return nurseryerr.Wrapf(err, nurseryerr.CodeCLIResponseInvalid, "encoding report")
		}
		_, err = fmt.Fprint(out, string(data))
		return err

	case "text":
		_, _ = fmt.Fprintf(out, "Gateway:   %s at %s\n", report.Gateway, report.Address)
		_, _ = fmt.Fprintf(out, "Mind:      %s, awake %s\n", report.Name, report.Uptime)
		_, _ = fmt.Fprintf(out, "Thoughts:  %d this session (%d lifetime)\n", report.SessionThoughts, report.LifetimeThoughts)
		_, _ = fmt.Fprintf(out, "Mood:      valence %+.2f, arousal %.2f\n", report.Valence, report.Arousal)
		_, _ = fmt.Fprintf(out, "Actors:    %d/%d alive\n", report.ActorsAlive, report.ActorsTotal)
		return nil

	default:
		return nurseryerr.Errorf(nurseryerr.CodeCLIRequestFailure,
			"unknown output format %q: expected text, json or yaml", format)
	}
}

// formatUptime renders whole seconds as a compact duration like 2h14m3s.
func formatUptime(seconds int64) string {
	return (time.Duration(seconds) * time.Second).String()
}
