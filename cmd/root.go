// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/Thermoquad/puppetflash/internal/config"
	"github.com/Thermoquad/puppetflash/internal/logging"
)

var (
	// Serial register bridge flags
	portName string
	baudRate int

	// WebSocket register bridge flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// Direct I2C flags
	i2cBus  int
	i2cAddr uint16

	// Modbus gateway flags
	modbusEndpoint string
	modbusUnitID   uint8

	configPath string
	logLevel   string
	logJSON    bool
)

var (
	// cfg is the effective configuration after flags are merged
	cfg    *config.Config
	logger = logging.Discard()
)

var rootCmd = &cobra.Command{
	Use:   "puppetflash",
	Short: "Firmware updater for peripheral coprocessors",
	Long: `Puppetflash - Streams Intel HEX images to a peripheral coprocessor through
its update bridge registers.

The bridge exposes three 8-bit registers: UPDATE_CHANNEL (0x30),
TARGET_SELECT (0x31) and PERIPHERAL_STATUS (0x32). Puppetflash selects the
target platform, checks connectivity, performs the update handshake and
streams the image one byte at a time while polling the target status.

Connection modes:
  Serial bridge:    --port /dev/ttyACM0 [--baud 115200]
  WebSocket bridge: --url ws://host/path [--username user]
  I2C (Linux):      --i2c-bus 1 [--i2c-addr 0x1F]
  Modbus gateway:   --modbus tcp://host:502 | rtu:///dev/ttyUSB0

For WebSocket authentication, the password is read from the PUPPETFLASH_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.

Settings may also be loaded from a YAML file with --config; flags given on
the command line take precedence over the file.`,
	Version:           "1.0.0",
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func init() {
	// Serial bridge flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port of the register bridge")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", config.DefaultBaudRate, "Baud rate (serial only)")

	// WebSocket bridge flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL of the register bridge (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	// I2C flags
	rootCmd.PersistentFlags().IntVar(&i2cBus, "i2c-bus", -1, "Linux I2C bus number (/dev/i2c-N)")
	rootCmd.PersistentFlags().Uint16Var(&i2cAddr, "i2c-addr", config.DefaultI2CAddress, "I2C address of the bridge")

	// Modbus flags
	rootCmd.PersistentFlags().StringVar(&modbusEndpoint, "modbus", "", "Modbus gateway (tcp://host:port or rtu:///dev/ttyX)")
	rootCmd.PersistentFlags().Uint8Var(&modbusUnitID, "modbus-unit", 1, "Modbus unit ID of the gateway")

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", config.DefaultLogLevel, "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "Log as JSON")
}

// setup loads the config file, applies flags and builds the logger.
func setup(cmd *cobra.Command, args []string) error {
	c := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return exitWith(2, err)
		}
		c = loaded
	}

	applyFlags(cmd.Flags(), c)
	if err := config.Validate(c); err != nil {
		return exitWith(2, err)
	}

	l, err := logging.New(logging.Options{Level: c.Log.Level, JSON: c.Log.JSON})
	if err != nil {
		return exitWith(2, err)
	}

	cfg = c
	logger = l
	slog.SetDefault(l)
	return nil
}

// applyFlags copies every explicitly set flag over c.
func applyFlags(flags *pflag.FlagSet, c *config.Config) {
	if flags.Changed("port") {
		c.Connection.Port = portName
	}
	if flags.Changed("baud") {
		c.Connection.Baud = baudRate
	}
	if flags.Changed("url") {
		c.Connection.URL = wsURL
	}
	if flags.Changed("username") {
		c.Connection.Username = wsUsername
	}
	if flags.Changed("no-ssl-verify") {
		c.Connection.NoSSLVerify = wsNoSSLVerify
	}
	if flags.Changed("i2c-bus") {
		if i2cBus >= 0 {
			bus := i2cBus
			c.Connection.I2CBus = &bus
		} else {
			c.Connection.I2CBus = nil
		}
	}
	if flags.Changed("i2c-addr") {
		c.Connection.I2CAddr = i2cAddr
	}
	if flags.Changed("modbus") {
		c.Connection.Modbus = modbusEndpoint
	}
	if flags.Changed("modbus-unit") {
		c.Connection.ModbusUnitID = modbusUnitID
	}
	if flags.Changed("log-level") {
		c.Log.Level = logLevel
	}
	if flags.Changed("log-json") {
		c.Log.JSON = logJSON
	}

	// update command flags
	if flags.Changed("platform") {
		c.Update.Platform = updatePlatform
	}
	if flags.Changed("poll-every") {
		c.Update.PollEvery = updatePollEvery
	}
	if flags.Changed("timeout") && flags.Lookup("timeout") == updateCmd.Flags().Lookup("timeout") {
		c.Update.OpTimeoutMs = int(updateTimeout.Milliseconds())
	}
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	err := rootCmd.Execute()
	if err == nil {
		return 0
	}

	var ee *exitError
	if !errors.As(err, &ee) || !ee.reported {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return ExitCode(err)
}
