// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"go.bug.st/serial"
	"golang.org/x/term"

	"github.com/Thermoquad/puppetflash/internal/config"
	"github.com/Thermoquad/puppetflash/internal/i2cdev"
	"github.com/Thermoquad/puppetflash/internal/modbusreg"
	"github.com/Thermoquad/puppetflash/pkg/fwupdate"
	"github.com/Thermoquad/puppetflash/pkg/regbridge"
)

// serialPollTimeout bounds a single serial Read so cancellation is noticed.
const serialPollTimeout = 50 * time.Millisecond

// Connection provides a common byte stream to a serial or WebSocket register bridge
type Connection interface {
	io.Reader
	io.Writer
	io.Closer
}

// Channel is an open register channel.
type Channel interface {
	fwupdate.RegisterChannel
	io.Closer
}

// SerialConnection wraps a serial port
type SerialConnection struct {
	port serial.Port
}

func (s *SerialConnection) Read(p []byte) (int, error) {
	return s.port.Read(p)
}

func (s *SerialConnection) Write(p []byte) (int, error) {
	return s.port.Write(p)
}

func (s *SerialConnection) Close() error {
	return s.port.Close()
}

// ErrConnectionClosed is returned when reading from a closed WebSocket connection
var ErrConnectionClosed = errors.New("websocket connection closed")

// WebSocketConnection wraps a WebSocket connection for byte-level reading
type WebSocketConnection struct {
	conn      *websocket.Conn
	buf       []byte
	bufOffset int
	closed    bool // Track if connection has failed/closed
}

func (w *WebSocketConnection) Read(p []byte) (int, error) {
	if w.closed {
		return 0, ErrConnectionClosed
	}

	// If we have buffered data, return it first
	if w.bufOffset < len(w.buf) {
		n := copy(p, w.buf[w.bufOffset:])
		w.bufOffset += n
		return n, nil
	}

	for {
		messageType, data, err := w.conn.ReadMessage()
		if err != nil {
			// gorilla connections are unusable after any read error
			w.closed = true
			return 0, err
		}

		// Bridge frames are always binary
		if messageType != websocket.BinaryMessage {
			continue
		}

		w.buf = data
		w.bufOffset = 0
		n := copy(p, w.buf)
		w.bufOffset = n
		return n, nil
	}
}

func (w *WebSocketConnection) Write(p []byte) (int, error) {
	err := w.conn.WriteMessage(websocket.BinaryMessage, p)
	if err != nil {
		return 0, err
	}
	return len(p), nil
}

// SetReadDeadline lets the bridge client bound each transaction
func (w *WebSocketConnection) SetReadDeadline(t time.Time) error {
	return w.conn.SetReadDeadline(t)
}

func (w *WebSocketConnection) Close() error {
	return w.conn.Close()
}

// OpenSerialConnection opens a serial port connection
func OpenSerialConnection(portName string, baudRate int) (Connection, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", portName, err)
	}
	if err := port.SetReadTimeout(serialPollTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to set read timeout on %s: %w", portName, err)
	}

	return &SerialConnection{port: port}, nil
}

// OpenWebSocketConnection opens a WebSocket connection with HTTP Basic auth
func OpenWebSocketConnection(wsURL, username, password string, skipSSLVerify bool) (Connection, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	switch u.Scheme {
	case "ws", "wss":
		// OK
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: skipSSLVerify,
		}
	}

	headers := http.Header{}
	if username != "" && password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("WebSocket connection failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("WebSocket connection failed: %w", err)
	}

	return &WebSocketConnection{conn: conn}, nil
}

// GetPassword retrieves password from environment or prompts user
func GetPassword() (string, error) {
	if pw := os.Getenv("PUPPETFLASH_PASSWORD"); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")

	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fallback to regular input if terminal functions fail
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(os.Stderr)
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr)
	return string(passwordBytes), nil
}

// OpenConnection opens the byte stream to a serial or WebSocket bridge
func OpenConnection(c config.ConnectionConfig) (Connection, string, error) {
	if c.URL != "" {
		password := ""
		if c.Username != "" {
			var err error
			password, err = GetPassword()
			if err != nil {
				return nil, "", err
			}
		}

		conn, err := OpenWebSocketConnection(c.URL, c.Username, password, c.NoSSLVerify)
		if err != nil {
			return nil, "", err
		}
		return conn, fmt.Sprintf("WebSocket: %s", c.URL), nil
	}

	if c.Port != "" {
		conn, err := OpenSerialConnection(c.Port, c.Baud)
		if err != nil {
			return nil, "", err
		}
		return conn, fmt.Sprintf("Serial: %s @ %d baud", c.Port, c.Baud), nil
	}

	return nil, "", errors.New("a register bridge needs --port or --url")
}

// OpenBridge opens a serial or WebSocket bridge and wraps it in a client
func OpenBridge(c config.ConnectionConfig, timeout time.Duration) (*regbridge.Client, string, error) {
	conn, info, err := OpenConnection(c)
	if err != nil {
		return nil, "", err
	}
	client := regbridge.NewClient(conn,
		regbridge.WithTimeout(timeout),
		regbridge.WithLogger(logger.With("bridge", info)),
	)
	return client, info, nil
}

// OpenChannel opens whichever register channel c selects
func OpenChannel(c config.ConnectionConfig, timeout time.Duration) (Channel, string, error) {
	switch {
	case c.I2CBus != nil:
		dev, err := i2cdev.Open(*c.I2CBus, c.I2CAddr)
		if err != nil {
			return nil, "", err
		}
		return dev, fmt.Sprintf("I2C: /dev/i2c-%d @ 0x%02X", *c.I2CBus, c.I2CAddr), nil

	case c.Modbus != "":
		mb, err := modbusreg.Dial(modbusreg.Config{
			Endpoint: c.Modbus,
			UnitID:   c.ModbusUnitID,
			BaudRate: c.Baud,
			Timeout:  timeout,
		})
		if err != nil {
			return nil, "", err
		}
		return mb, fmt.Sprintf("Modbus: %s (unit %d)", c.Modbus, c.ModbusUnitID), nil

	case c.Port != "" || c.URL != "":
		client, info, err := OpenBridge(c, timeout)
		if err != nil {
			return nil, "", err
		}
		return client, info, nil
	}

	return nil, "", errors.New("no connection specified: use --port, --url, --i2c-bus or --modbus")
}
