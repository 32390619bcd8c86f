// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/puppetflash/pkg/regbridge"
)

var (
	pingTimeout time.Duration
	pingCount   int
)

var bridgePingCmd = &cobra.Command{
	Use:   "bridge_ping",
	Short: "Test a serial or WebSocket register bridge with PING requests",
	Long: `Send PING requests to the register bridge and wait for PONG.

The bridge answers PING itself without touching the coprocessor, so this
checks the link to the bridge only:
  - the serial port or WebSocket connection is established
  - HTTP Basic authentication works (WebSocket)
  - frames are encoded and decoded in both directions

Use 'status' to check the coprocessor behind the bridge.

Exit codes:
  0 - All pings successful
  1 - One or more pings failed/timed out
  2 - Connection error`,
	Args: cobra.NoArgs,
	RunE: runBridgePing,
}

func init() {
	rootCmd.AddCommand(bridgePingCmd)
	bridgePingCmd.Flags().DurationVar(&pingTimeout, "timeout", 5*time.Second, "Timeout for each ping")
	bridgePingCmd.Flags().IntVar(&pingCount, "count", 3, "Number of pings to send")
}

// pinger is the part of regbridge.Client used by bridge_ping
type pinger interface {
	Ping(ctx context.Context) (uptime time.Duration, rtt time.Duration, err error)
	Statistics() regbridge.Statistics
}

func runBridgePing(cmd *cobra.Command, args []string) error {
	client, connInfo, err := OpenBridge(cfg.Connection, pingTimeout)
	if err != nil {
		return exitWith(ExitUsage, fmt.Errorf("connection error: %w", err))
	}
	defer client.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Puppetflash - Bridge Ping Test\n")
	fmt.Fprintf(out, "Connection: %s\n", connInfo)
	fmt.Fprintf(out, "Timeout: %s per ping\n", pingTimeout)
	fmt.Fprintf(out, "Count: %d pings\n\n", pingCount)

	if failed := pingBridge(cmd.Context(), out, client, pingCount, 100*time.Millisecond); failed > 0 {
		return exitReported(ExitFailure, fmt.Errorf("%d of %d pings failed", failed, pingCount))
	}
	return nil
}

// pingBridge sends count pings and prints a summary. It returns the number of failures.
func pingBridge(ctx context.Context, w io.Writer, p pinger, count int, gap time.Duration) int {
	if ctx == nil {
		ctx = context.Background()
	}

	success := 0
	var totalRTT time.Duration

	for i := 1; i <= count; i++ {
		fmt.Fprintf(w, "Ping %d/%d: ", i, count)

		uptime, rtt, err := p.Ping(ctx)
		if err != nil {
			fmt.Fprintf(w, "FAILED: %v\n", err)
		} else {
			fmt.Fprintf(w, "PONG from bridge, uptime=%s, rtt=%v\n", formatUptime(uint64(uptime.Milliseconds())), rtt.Round(time.Millisecond))
			success++
			totalRTT += rtt
		}

		if i < count && gap > 0 {
			time.Sleep(gap)
		}
	}

	failed := count - success
	loss := 0.0
	if count > 0 {
		loss = float64(failed) / float64(count) * 100
	}

	fmt.Fprintf(w, "\n--- Ping statistics ---\n")
	fmt.Fprintf(w, "%d pings sent, %d responses received, %.0f%% loss\n", count, success, loss)
	if success > 0 {
		fmt.Fprintf(w, "average rtt %v\n", (totalRTT / time.Duration(success)).Round(time.Microsecond))
	}

	stats := p.Statistics()
	fmt.Fprintln(w, stats.String())
	return failed
}

// formatUptime formats uptime in milliseconds to human-friendly string
func formatUptime(ms uint64) string {
	seconds := ms / 1000
	units := []struct {
		name string
		n    uint64
	}{
		{"day", seconds / 86400},
		{"hour", seconds / 3600 % 24},
		{"minute", seconds / 60 % 60},
		{"second", seconds % 60},
	}

	parts := []string{}
	for _, u := range units {
		if u.n == 0 && !(u.name == "second" && len(parts) == 0) {
			continue
		}
		if u.n == 1 {
			parts = append(parts, "1 "+u.name)
		} else {
			parts = append(parts, fmt.Sprintf("%d %ss", u.n, u.name))
		}
	}

	// Join with commas and "and" for last item
	switch len(parts) {
	case 1:
		return parts[0]
	case 2:
		return parts[0] + " and " + parts[1]
	}
	return strings.Join(parts[:len(parts)-1], ", ") + ", and " + parts[len(parts)-1]
}
