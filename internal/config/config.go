// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads puppetflash settings from YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Defaults
const (
	DefaultBaudRate    = 115200
	DefaultPlatform    = "esp32"
	DefaultPollEvery   = 10
	DefaultOpTimeoutMs = 1000
	DefaultI2CAddress  = 0x1F
	DefaultLogLevel    = "info"
)

type Config struct {
	Connection ConnectionConfig `yaml:"connection"`
	Update     UpdateConfig     `yaml:"update"`
	Log        LogConfig        `yaml:"log"`
}

// ---- CONNECTION ----

type ConnectionConfig struct {
	// serial register bridge
	Port string `yaml:"port"`
	Baud int    `yaml:"baud"`

	// websocket register bridge
	URL         string `yaml:"url"`
	Username    string `yaml:"username"`
	NoSSLVerify bool   `yaml:"no_ssl_verify"`

	// direct i2c-dev; nil bus means unused
	I2CBus  *int   `yaml:"i2c_bus"`
	I2CAddr uint16 `yaml:"i2c_addr"`

	// modbus gateway, tcp://host:port or rtu:///dev/ttyX
	Modbus       string `yaml:"modbus"`
	ModbusUnitID uint8  `yaml:"modbus_unit_id"`
}

// ---- UPDATE ----

type UpdateConfig struct {
	Platform    string `yaml:"platform"`
	PollEvery   int    `yaml:"poll_every"`
	OpTimeoutMs int    `yaml:"op_timeout_ms"`
}

// ---- LOG ----

type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// Load reads, defaults and validates the YAML file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults, so keys that are present win even
// when zero. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills zero values.
func ApplyDefaults(cfg *Config) {
	if cfg.Connection.Baud == 0 {
		cfg.Connection.Baud = DefaultBaudRate
	}
	if cfg.Connection.I2CAddr == 0 {
		cfg.Connection.I2CAddr = DefaultI2CAddress
	}
	if cfg.Connection.ModbusUnitID == 0 {
		cfg.Connection.ModbusUnitID = 1
	}
	if cfg.Update.Platform == "" {
		cfg.Update.Platform = DefaultPlatform
	}
	if cfg.Update.PollEvery == 0 {
		cfg.Update.PollEvery = DefaultPollEvery
	}
	if cfg.Update.OpTimeoutMs == 0 {
		cfg.Update.OpTimeoutMs = DefaultOpTimeoutMs
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
}
