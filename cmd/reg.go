// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/puppetflash/pkg/fwupdate"
)

var regCmd = &cobra.Command{
	Use:   "reg",
	Short: "Read or write a single bridge register",
	Long: `Low-level access to the update bridge registers.

Registers may be given by name (update_channel, target_select,
peripheral_status) or by address (0x30). Values accept decimal, hex (0x..)
or a single quoted character.

Examples:
  puppetflash reg read peripheral_status --port /dev/ttyACM0
  puppetflash reg write target_select 0x01 --i2c-bus 1

Writing UPDATE_CHANNEL outside an update session feeds bytes straight to
the target bootloader.`,
}

var regReadCmd = &cobra.Command{
	Use:   "read <register>",
	Short: "Read a register",
	Args:  cobra.ExactArgs(1),
	RunE:  runRegRead,
}

var regWriteCmd = &cobra.Command{
	Use:   "write <register> <value>",
	Short: "Write a register",
	Args:  cobra.ExactArgs(2),
	RunE:  runRegWrite,
}

func init() {
	rootCmd.AddCommand(regCmd)
	regCmd.AddCommand(regReadCmd)
	regCmd.AddCommand(regWriteCmd)
}

var registerNames = map[string]fwupdate.Register{
	"update_channel":    fwupdate.RegUpdateChannel,
	"target_select":     fwupdate.RegTargetSelect,
	"peripheral_status": fwupdate.RegPeripheralStatus,
}

// parseRegister accepts a register name or an 8-bit address
func parseRegister(s string) (fwupdate.Register, error) {
	key := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "-", "_"))
	if reg, ok := registerNames[key]; ok {
		return reg, nil
	}
	v, err := parseByte(s)
	if err != nil {
		return 0, fmt.Errorf("unknown register %q", s)
	}
	return fwupdate.Register(v), nil
}

// parseByte accepts decimal, 0x-prefixed hex or a single character
func parseByte(s string) (byte, error) {
	s = strings.TrimSpace(s)
	if len(s) == 3 && s[0] == '\'' && s[2] == '\'' {
		return s[1], nil
	}
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid byte value %q", s)
	}
	return byte(v), nil
}

// describeRegister decodes a register value where the meaning is known
func describeRegister(reg fwupdate.Register, v byte) string {
	switch reg {
	case fwupdate.RegTargetSelect:
		return fwupdate.Platform(v).Name()
	case fwupdate.RegPeripheralStatus:
		return fwupdate.ConnectivityFlags(v).String()
	case fwupdate.RegUpdateChannel:
		return fwupdate.Status(v).String()
	}
	return fmt.Sprintf("0x%02X", v)
}

func openRegChannel() (Channel, context.Context, context.CancelFunc, error) {
	timeout := time.Duration(cfg.Update.OpTimeoutMs) * time.Millisecond
	ch, _, err := OpenChannel(cfg.Connection, timeout)
	if err != nil {
		return nil, nil, nil, exitWith(ExitUsage, err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	return ch, ctx, stop, nil
}

func runRegRead(cmd *cobra.Command, args []string) error {
	reg, err := parseRegister(args[0])
	if err != nil {
		return exitWith(ExitUsage, err)
	}

	ch, ctx, stop, err := openRegChannel()
	if err != nil {
		return err
	}
	defer stop()
	defer ch.Close()

	v, err := ch.ReadRegister(ctx, reg)
	if err != nil {
		return exitWith(ExitFailure, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s = 0x%02X (%s)\n", reg, v, describeRegister(reg, v))
	return nil
}

func runRegWrite(cmd *cobra.Command, args []string) error {
	reg, err := parseRegister(args[0])
	if err != nil {
		return exitWith(ExitUsage, err)
	}
	value, err := parseByte(args[1])
	if err != nil {
		return exitWith(ExitUsage, err)
	}

	ch, ctx, stop, err := openRegChannel()
	if err != nil {
		return err
	}
	defer stop()
	defer ch.Close()

	if err := ch.WriteRegister(ctx, reg, value); err != nil {
		return exitWith(ExitFailure, err)
	}
	logger.Info("register written", "register", reg.String(), "value", fmt.Sprintf("0x%02X", value))
	return nil
}
