// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/puppetflash/pkg/fwupdate"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Read and decode the update bridge registers",
	Long: `Read TARGET_SELECT, PERIPHERAL_STATUS and UPDATE_CHANNEL and print them decoded.

Nothing is written. Useful to check wiring before an update, or to see
why an update stopped.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

type registerSnapshot struct {
	Platform fwupdate.Platform
	Flags    fwupdate.ConnectivityFlags
	Status   fwupdate.Status
}

func readSnapshot(ctx context.Context, ch fwupdate.RegisterChannel) (registerSnapshot, error) {
	var snap registerSnapshot

	v, err := ch.ReadRegister(ctx, fwupdate.RegTargetSelect)
	if err != nil {
		return snap, fmt.Errorf("read %s: %w", fwupdate.RegTargetSelect, err)
	}
	snap.Platform = fwupdate.Platform(v)

	v, err = ch.ReadRegister(ctx, fwupdate.RegPeripheralStatus)
	if err != nil {
		return snap, fmt.Errorf("read %s: %w", fwupdate.RegPeripheralStatus, err)
	}
	snap.Flags = fwupdate.ConnectivityFlags(v)

	v, err = ch.ReadRegister(ctx, fwupdate.RegUpdateChannel)
	if err != nil {
		return snap, fmt.Errorf("read %s: %w", fwupdate.RegUpdateChannel, err)
	}
	snap.Status = fwupdate.Status(v)

	return snap, nil
}

func printSnapshot(w io.Writer, snap registerSnapshot) {
	fmt.Fprintf(w, "%-18s (0x%02X): %s\n", fwupdate.RegTargetSelect, byte(fwupdate.RegTargetSelect), snap.Platform.Name())
	fmt.Fprintf(w, "%-18s (0x%02X): %s\n", fwupdate.RegPeripheralStatus, byte(fwupdate.RegPeripheralStatus), snap.Flags)
	fmt.Fprintf(w, "%-18s (0x%02X): %s - %s\n", fwupdate.RegUpdateChannel, byte(fwupdate.RegUpdateChannel), snap.Status, snap.Status.Description())
}

func runStatus(cmd *cobra.Command, args []string) error {
	timeout := time.Duration(cfg.Update.OpTimeoutMs) * time.Millisecond
	ch, connInfo, err := OpenChannel(cfg.Connection, timeout)
	if err != nil {
		return exitWith(ExitUsage, err)
	}
	defer ch.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Fprintf(cmd.OutOrStdout(), "Connection: %s\n\n", connInfo)
	snap, err := readSnapshot(ctx, ch)
	if err != nil {
		return exitWith(ExitFailure, err)
	}
	printSnapshot(cmd.OutOrStdout(), snap)
	return nil
}
