// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package config

import (
	"fmt"
	"strings"

	"github.com/Thermoquad/puppetflash/pkg/fwupdate"
)

// Validate checks configuration correctness.
// It does not mutate the configuration.
func Validate(cfg *Config) error {
	c := cfg.Connection

	// at most one transport
	var set []string
	if c.Port != "" {
		set = append(set, "port")
	}
	if c.URL != "" {
		set = append(set, "url")
	}
	if c.I2CBus != nil {
		set = append(set, "i2c_bus")
	}
	if c.Modbus != "" {
		set = append(set, "modbus")
	}
	if len(set) > 1 {
		return fmt.Errorf("connection: only one of port, url, i2c_bus, modbus may be set (got %s)", strings.Join(set, ", "))
	}

	if c.Baud < 1 {
		return fmt.Errorf("connection: baud must be positive, got %d", c.Baud)
	}
	if c.I2CBus != nil && *c.I2CBus < 0 {
		return fmt.Errorf("connection: i2c_bus must be >= 0, got %d", *c.I2CBus)
	}
	if c.I2CAddr > 0x7F {
		return fmt.Errorf("connection: i2c_addr 0x%X is not a 7-bit address", c.I2CAddr)
	}
	if c.URL != "" && !strings.HasPrefix(c.URL, "ws://") && !strings.HasPrefix(c.URL, "wss://") {
		return fmt.Errorf("connection: url must start with ws:// or wss://, got %q", c.URL)
	}

	if _, err := fwupdate.ParsePlatform(cfg.Update.Platform); err != nil {
		return fmt.Errorf("update: %w", err)
	}
	if cfg.Update.PollEvery < 1 {
		return fmt.Errorf("update: poll_every must be >= 1, got %d", cfg.Update.PollEvery)
	}
	if cfg.Update.OpTimeoutMs < 1 {
		return fmt.Errorf("update: op_timeout_ms must be >= 1, got %d", cfg.Update.OpTimeoutMs)
	}

	switch strings.ToLower(cfg.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log: unknown level %q", cfg.Log.Level)
	}
	return nil
}
