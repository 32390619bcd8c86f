// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package modbusreg exposes the update bridge registers through a Modbus
// gateway. Each bridge register maps to the holding register with the
// same address; only the low byte is significant.
package modbusreg

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/goburrow/modbus"

	"github.com/Thermoquad/puppetflash/pkg/fwupdate"
)

// DefaultTimeout bounds a single Modbus request.
const DefaultTimeout = time.Second

// Config describes a Modbus gateway endpoint.
type Config struct {
	// Endpoint is tcp://host:port or rtu:///dev/ttyUSB0.
	Endpoint string
	UnitID   uint8
	BaudRate int
	Timeout  time.Duration
}

// Client is a register channel backed by a Modbus client.
type Client struct {
	mu     sync.Mutex
	client modbus.Client
	closer io.Closer
	name   string
}

var _ fwupdate.RegisterChannel = (*Client)(nil)

// New wraps an existing modbus.Client.
func New(client modbus.Client, name string) *Client {
	return &Client{client: client, name: name}
}

// Dial connects to the gateway described by cfg.
func Dial(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("modbus: endpoint required")
	}
	u, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("modbus: invalid endpoint %q: %w", cfg.Endpoint, err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.UnitID == 0 {
		cfg.UnitID = 1
	}

	switch u.Scheme {
	case "tcp":
		if u.Host == "" {
			return nil, fmt.Errorf("modbus: missing host in %q", cfg.Endpoint)
		}
		h := modbus.NewTCPClientHandler(u.Host)
		h.Timeout = cfg.Timeout
		h.SlaveId = cfg.UnitID
		if err := h.Connect(); err != nil {
			return nil, fmt.Errorf("modbus: connect %s: %w", u.Host, err)
		}
		return &Client{client: modbus.NewClient(h), closer: h, name: cfg.Endpoint}, nil

	case "rtu":
		if u.Path == "" {
			return nil, fmt.Errorf("modbus: missing device path in %q", cfg.Endpoint)
		}
		h := modbus.NewRTUClientHandler(u.Path)
		h.BaudRate = 19200
		if cfg.BaudRate > 0 {
			h.BaudRate = cfg.BaudRate
		}
		if b := u.Query().Get("baud"); b != "" {
			baud, err := strconv.Atoi(b)
			if err != nil {
				return nil, fmt.Errorf("modbus: invalid baud %q", b)
			}
			h.BaudRate = baud
		}
		h.DataBits = 8
		h.Parity = "N"
		h.StopBits = 1
		h.Timeout = cfg.Timeout
		h.SlaveId = cfg.UnitID
		if err := h.Connect(); err != nil {
			return nil, fmt.Errorf("modbus: open %s: %w", u.Path, err)
		}
		return &Client{client: modbus.NewClient(h), closer: h, name: cfg.Endpoint}, nil

	default:
		return nil, fmt.Errorf("modbus: unsupported scheme %q (want tcp or rtu)", u.Scheme)
	}
}

func (c *Client) String() string {
	return "modbus " + c.name
}

// ReadRegister reads the holding register at reg and returns its low byte.
func (c *Client) ReadRegister(ctx context.Context, reg fwupdate.Register) (byte, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	res, err := c.client.ReadHoldingRegisters(uint16(reg), 1)
	if err != nil {
		return 0, fmt.Errorf("%s: read %s: %w", c, reg, err)
	}
	if len(res) != 2 {
		return 0, fmt.Errorf("%s: read %s: expected 2 bytes, got %d", c, reg, len(res))
	}
	return res[1], nil
}

// WriteRegister writes value into the low byte of the holding register at reg.
func (c *Client) WriteRegister(ctx context.Context, reg fwupdate.Register, value byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.client.WriteSingleRegister(uint16(reg), uint16(value)); err != nil {
		return fmt.Errorf("%s: write %s: %w", c, reg, err)
	}
	return nil
}

// Close closes the underlying transport, if any.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closer == nil {
		return nil
	}
	return c.closer.Close()
}
