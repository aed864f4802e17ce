// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Nursery Contributors

package main

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/daneel-ai/nursery/internal/snapshot"
	nurseryerr "github.com/daneel-ai/nursery/pkg/errors"
)

// watchDialer is the WebSocket dialer used by the watch command.
// Exposed as a variable so tests can replace it.
var watchDialer = websocket.DefaultDialer

// reconnectDelay is how long the watch screen waits before redialing a
// lost gateway.
const reconnectDelay = 2 * time.Second

// watchState tracks which screen the watch TUI is showing.
type watchState int

const (
	watchConnecting watchState = iota // dialing the gateway
	watchObserving                    // streaming snapshots
	watchLost                         // connection dropped, waiting to redial
)

// --- bubbletea messages ---

type (
	connectedMsg    struct{ conn *websocket.Conn }
	snapshotMsg     struct{ snap *snapshot.Snapshot }
	streamClosedMsg struct{ err error }
	redialMsg       struct{}
)

// --- lipgloss styles ---

var (
	watchTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))
	watchLabelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	watchDimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	watchAliveStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	watchDeadStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	watchErrStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	watchBoxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("62")).Padding(0, 1)
)

// watchModel is the bubbletea model for the live observation screen.
type watchModel struct {
	addr    string
	state   watchState
	spinner spinner.Model
	conn    *websocket.Conn
	snap    *snapshot.Snapshot
	lastErr string
}

func newWatchModel(addr string) watchModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return watchModel{
		addr:    addr,
		state:   watchConnecting,
		spinner: sp,
	}
}

func (m watchModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, connectCmd(m.addr))
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if m.conn != nil {
				_ = m.conn.Close()
			}
			return m, tea.Quit
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case connectedMsg:
		m.conn = msg.conn
		m.state = watchObserving
		m.lastErr = ""
		return m, readSnapshotCmd(m.conn)

	case snapshotMsg:
		m.snap = msg.snap
		return m, readSnapshotCmd(m.conn)

	case streamClosedMsg:
		if m.conn != nil {
			_ = m.conn.Close()
			m.conn = nil
		}
		m.state = watchLost
		if msg.err != nil {
			m.lastErr = msg.err.Error()
		}
		return m, tea.Batch(
			m.spinner.Tick,
			tea.Tick(reconnectDelay, func(time.Time) tea.Msg { return redialMsg{} }),
		)

	case redialMsg:
		m.state = watchConnecting
		return m, connectCmd(m.addr)
	}

	return m, nil
}

func (m watchModel) View() string {
	var b strings.Builder

	switch m.state {
	case watchConnecting:
		b.WriteString(m.spinner.View() + " Connecting to " + m.addr + "…\n")

	case watchLost:
		b.WriteString(watchErrStyle.Render("Connection lost") + "\n")
		if m.lastErr != "" {
			b.WriteString(watchDimStyle.Render(m.lastErr) + "\n")
		}
		b.WriteString("\n" + m.spinner.View() + " Reconnecting…\n")

	case watchObserving:
		if m.snap == nil {
			b.WriteString(m.spinner.View() + " Waiting for the first snapshot…\n")
			break
		}
		m.renderSnapshot(&b)
	}

	b.WriteString("\n" + watchDimStyle.Render("q to quit · "+m.addr))
	return watchBoxStyle.Render(b.String())
}

func (m watchModel) renderSnapshot(b *strings.Builder) {
	snap := m.snap

	b.WriteString(watchTitleStyle.Render("  "+snap.Identity.Name+"  ") +
		watchDimStyle.Render(" awake "+formatUptime(snap.Identity.UptimeSeconds)) + "\n\n")

	b.WriteString(meterLine("valence", shiftValence(snap.Emotional.Valence),
		fmt.Sprintf("%+.2f", snap.Emotional.Valence)))
	b.WriteString(meterLine("arousal", snap.Emotional.Arousal,
		fmt.Sprintf("%.2f", snap.Emotional.Arousal)))
	b.WriteString(meterLine("intensity", snap.Emotional.EmotionalIntensity,
		fmt.Sprintf("%.2f", snap.Emotional.EmotionalIntensity)))
	b.WriteString(meterLine("connection", snap.Emotional.ConnectionDrive,
		fmt.Sprintf("%.2f", snap.Emotional.ConnectionDrive)))

	b.WriteString("\n" + watchLabelStyle.Render("actors") + "  ")
	names := make([]string, 0, len(snap.Actors))
	for name := range snap.Actors {
		names = append(names, name)
	}
	sort.Strings(names)
	for i, name := range names {
		if i > 0 {
			b.WriteString("  ")
		}
		status := snap.Actors[name]
		if status.Alive {
			b.WriteString(watchAliveStyle.Render("●") + " " + name)
		} else {
			b.WriteString(watchDeadStyle.Render("○") + " " + name)
		}
		if status.RestartCount > 0 {
			b.WriteString(watchDimStyle.Render(fmt.Sprintf(" ×%d", status.RestartCount)))
		}
	}
	b.WriteString("\n")

	b.WriteString("\n" + watchLabelStyle.Render("thoughts") +
		watchDimStyle.Render(fmt.Sprintf("  %d this session, %d lifetime",
			snap.Identity.SessionThoughts, snap.Identity.LifetimeThoughts)) + "\n")
	for i, th := range snap.RecentThoughts {
		if i >= 5 {
			break
		}
		line := fmt.Sprintf("  · %s", truncate(th.ContentPreview, 64))
		b.WriteString(watchDimStyle.Render(line+fmt.Sprintf("  (%.2f)", th.Salience)) + "\n")
	}
	if len(snap.RecentThoughts) == 0 {
		b.WriteString(watchDimStyle.Render("  (quiet)") + "\n")
	}
}

// meterWidth is the character width of the mood bars.
const meterWidth = 10

func meterLine(label string, value float64, display string) string {
	filled := int(math.Round(value * meterWidth))
	if filled < 0 {
		filled = 0
	}
	if filled > meterWidth {
		filled = meterWidth
	}
	bar := watchLabelStyle.Render(strings.Repeat("█", filled)) +
		watchDimStyle.Render(strings.Repeat("░", meterWidth-filled))
	return fmt.Sprintf("%-11s %s %s\n", label, bar, watchDimStyle.Render(display))
}

// shiftValence maps [-1,1] onto [0,1] for the meter.
func shiftValence(v float64) float64 {
	return (v + 1) / 2
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}

// --- tea.Cmd factories ---

func connectCmd(addr string) tea.Cmd {
	return func() tea.Msg {
		conn, resp, err := watchDialer.Dial("ws://"+addr+"/ws", nil)
		if err != nil {
			if resp != nil {
				_ = resp.Body.Close()
			}
			return streamClosedMsg{err: err}
		}
		return connectedMsg{conn: conn}
	}
}

func readSnapshotCmd(conn *websocket.Conn) tea.Cmd {
	return func() tea.Msg {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return streamClosedMsg{err: err}
		}
		var snap snapshot.Snapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			return streamClosedMsg{err: err}
		}
		return snapshotMsg{snap: &snap}
	}
}

// --- Cobra command ---

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch the mind live in the terminal",
		Long: "Connect to a running gateway's WebSocket stream and render the mind's\n" +
			"mood, actors and recent thoughts as they change.",
		RunE: runWatch,
	}

	cmd.Flags().String("address", "127.0.0.1:3000", "gateway address to watch")

	return cmd
}

func runWatch(cmd *cobra.Command, _ []string) error {
	f, ok := cmd.InOrStdin().(*os.File)
	if !ok || !isTerminal(f) {
		_, _ = fmt.Fprintln(cmd.ErrOrStderr(),
			"nursery watch requires an interactive terminal.\n"+
				"Use 'nursery status' for a one-shot summary.")
		return nurseryerr.New(nurseryerr.CodeCLISetupFailure, "nursery watch: not an interactive terminal")
	}

	addr, _ := cmd.Flags().GetString("address")

	p := tea.NewProgram(newWatchModel(addr), tea.WithAltScreen())
	finalModel, err := p.Run()
	if err != nil {
		return nurseryerr.Wrapf(err, nurseryerr.CodeCLISetupFailure, "watch screen error")
	}

	if fm, ok := finalModel.(watchModel); ok && fm.conn != nil {
		_ = fm.conn.Close()
	}
	return nil
}

// isTerminal reports whether f is a terminal file descriptor.
func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}
