// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/puppetflash/pkg/fwupdate"
)

var (
	updatePlatform  string
	updatePollEvery int
	updateTimeout   time.Duration
	updateTUI       bool
)

var updateCmd = &cobra.Command{
	Use:   "update <image.hex>",
	Short: "Stream a firmware image to the peripheral coprocessor",
	Long: `Stream an Intel HEX image to the peripheral coprocessor.

The update runs in five steps:
  1. Select the target platform (TARGET_SELECT)
  2. Check that the target is connected (PERIPHERAL_STATUS == 0x03)
  3. Send the handshake "+<PLATFORM>\n" and expect RECEIVING
  4. Stream every non-empty line, polling UPDATE_CHANNEL every --poll-every lines
  5. Read the final status (OFF or AWAITING_REBOOT is success)

Press Ctrl+C to abort; the target is left in whatever state it reached.

Exit codes:
  0   - Update complete
  1   - Update failed
  2   - Usage or connection error
  130 - Interrupted`,
	Args: cobra.ExactArgs(1),
	RunE: runUpdate,
}

func init() {
	rootCmd.AddCommand(updateCmd)
	updateCmd.Flags().StringVar(&updatePlatform, "platform", "esp32", "Target platform (rp2040, esp32)")
	updateCmd.Flags().IntVar(&updatePollEvery, "poll-every", fwupdate.DefaultPollInterval, "Poll the target status every N lines")
	updateCmd.Flags().DurationVar(&updateTimeout, "timeout", time.Second, "Timeout for a single register operation")
	updateCmd.Flags().BoolVar(&updateTUI, "tui", false, "Show an interactive progress view")
}

func runUpdate(cmd *cobra.Command, args []string) error {
	platform, err := fwupdate.ParsePlatform(cfg.Update.Platform)
	if err != nil {
		return exitWith(ExitUsage, err)
	}

	img, err := fwupdate.LoadImage(args[0])
	if err != nil {
		return exitWith(ExitFailure, err)
	}
	if img.Len() == 0 {
		return exitWith(ExitUsage, fmt.Errorf("%s contains no records", args[0]))
	}

	opTimeout := time.Duration(cfg.Update.OpTimeoutMs) * time.Millisecond
	ch, connInfo, err := OpenChannel(cfg.Connection, opTimeout)
	if err != nil {
		return exitWith(ExitUsage, err)
	}
	defer ch.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger.With("image", args[0])
	log.Debug("connection open", "connection", connInfo)

	if updateTUI {
		return runUpdateTUI(ctx, ch, platform, img, args[0], connInfo)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Puppetflash - Firmware Update\n")
	fmt.Fprintf(out, "Connection: %s\n", connInfo)
	fmt.Fprintf(out, "Image: %s (%d lines, %d bytes)\n", args[0], img.Len(), img.WireBytes())
	fmt.Fprintf(out, "Platform: %s\n\n", platform.Name())

	printer := &progressPrinter{w: out}
	tr := fwupdate.New(ch, platform,
		fwupdate.WithPollInterval(cfg.Update.PollEvery),
		fwupdate.WithLogger(log),
		fwupdate.WithEventCallback(printer.handle),
	)

	report, err := tr.Run(ctx, img)
	printReport(out, report, err)
	return updateResult(report, err)
}

// updateResult converts a session result into a command error.
func updateResult(report fwupdate.Report, err error) error {
	if err == nil && report.Succeeded() {
		return nil
	}
	if err == nil {
		err = errors.New(report.Detail)
	}
	if errors.Is(err, context.Canceled) {
		return exitReported(ExitInterrupted, err)
	}
	return exitReported(ExitFailure, err)
}

// progressPrinter writes one line per phase change and status poll.
type progressPrinter struct {
	w io.Writer
}

func (p *progressPrinter) handle(e fwupdate.Event) {
	switch e.Kind {
	case fwupdate.EventPhase:
		switch e.Phase {
		case fwupdate.PhaseSelectingPlatform:
			fmt.Fprintf(p.w, "Selecting platform %s...\n", e.Platform.Name())
		case fwupdate.PhaseCheckingConnectivity:
			fmt.Fprintf(p.w, "Checking target connectivity...\n")
		case fwupdate.PhaseHandshaking:
			fmt.Fprintf(p.w, "Target connected (%s), sending handshake...\n", e.Flags)
		case fwupdate.PhaseStreaming:
			fmt.Fprintf(p.w, "Handshake accepted, streaming %d lines\n", e.TotalLines)
		case fwupdate.PhaseFinalCheck:
			fmt.Fprintf(p.w, "All lines sent, reading final status...\n")
		}

	case fwupdate.EventPoll:
		fmt.Fprintf(p.w, "  %6d/%d lines (%5.1f%%)  status=%s\n",
			e.Lines, e.TotalLines, e.Percentage(), e.Status)
	}
}

func printReport(w io.Writer, report fwupdate.Report, err error) {
	fmt.Fprintf(w, "\n--- Update summary ---\n")
	fmt.Fprintf(w, "Outcome:  %s\n", report.Outcome)
	fmt.Fprintf(w, "Status:   %s (%s)\n", report.Status, report.Status.Description())
	fmt.Fprintf(w, "Lines:    %d (%d status polls)\n", report.Lines, report.Polls)
	fmt.Fprintf(w, "Elapsed:  %s\n", report.Elapsed.Round(time.Millisecond))
	if err != nil {
		fmt.Fprintf(w, "Error:    %v\n", err)
	} else if report.Detail != "" {
		fmt.Fprintf(w, "Detail:   %s\n", report.Detail)
	}
}
