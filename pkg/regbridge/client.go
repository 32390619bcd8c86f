// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package regbridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/Thermoquad/puppetflash/pkg/fwupdate"
)

// DefaultTimeout bounds a single bridge transaction.
const DefaultTimeout = time.Second

// ErrTimeout is returned when no matching response arrives in time.
var ErrTimeout = errors.New("regbridge: transaction timed out")

// ErrClosed is returned by transactions started after Close.
var ErrClosed = errors.New("regbridge: client closed")

// BridgeError is returned when the bridge answers with MsgError.
type BridgeError struct {
	Op   string
	Code ErrorCode
}

func (e *BridgeError) Error() string {
	return fmt.Sprintf("regbridge: %s rejected by bridge: %s", e.Op, e.Code)
}

// ReadDeadliner is implemented by connections that support read deadlines
// (WebSocket). Connections without it must return from Read periodically
// (serial ports opened with a read timeout).
type ReadDeadliner interface {
	SetReadDeadline(t time.Time) error
}

// Client performs register transactions through a bridge. It implements
// fwupdate.RegisterChannel.
//
// Client is safe for concurrent use; transactions are serialized.
type Client struct {
	mu      sync.Mutex
	conn    io.ReadWriter
	decoder *Decoder
	seq     uint8
	timeout time.Duration
	logger  *slog.Logger
	stats   *Statistics
	buf     []byte
	closed  bool
}

var _ fwupdate.RegisterChannel = (*Client)(nil)

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithTimeout sets the per-transaction timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the logger used for frame-level debug output.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a bridge client on conn.
func NewClient(conn io.ReadWriter, opts ...ClientOption) *Client {
	if conn == nil {
		panic("conn cannot be nil")
	}
	c := &Client{
		conn:    conn,
		decoder: NewDecoder(),
		timeout: DefaultTimeout,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		stats:   NewStatistics(),
		buf:     make([]byte, 128),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ReadRegister reads one register through the bridge.
func (c *Client) ReadRegister(ctx context.Context, reg fwupdate.Register) (byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	seq := c.nextSeq()
	req, err := newReadRequest(seq, byte(reg))
	if err != nil {
		return 0, err
	}

	c.stats.Reads++
	resp, err := c.transact(ctx, "read", seq, req)
	if err != nil {
		return 0, err
	}
	if resp.Type() != MsgRegValue {
		return 0, fmt.Errorf("regbridge: read %s: unexpected response %s", reg, FormatMessageType(resp.Type()))
	}

	got, err := getMapByte(resp.PayloadMap(), keyRegister)
	if err != nil {
		return 0, fmt.Errorf("regbridge: read %s: %w", reg, err)
	}
	if got != byte(reg) {
		return 0, fmt.Errorf("regbridge: read %s: response for register 0x%02X", reg, got)
	}
	value, err := getMapByte(resp.PayloadMap(), keyValue)
	if err != nil {
		return 0, fmt.Errorf("regbridge: read %s: %w", reg, err)
	}
	return value, nil
}

// WriteRegister writes one register through the bridge.
func (c *Client) WriteRegister(ctx context.Context, reg fwupdate.Register, value byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	seq := c.nextSeq()
	req, err := newWriteRequest(seq, byte(reg), value)
	if err != nil {
		return err
	}

	c.stats.Writes++
	resp, err := c.transact(ctx, "write", seq, req)
	if err != nil {
		return err
	}
	if resp.Type() != MsgRegAck {
		return fmt.Errorf("regbridge: write %s: unexpected response %s", reg, FormatMessageType(resp.Type()))
	}
	return nil
}

// Ping checks that the bridge is alive. It returns the bridge uptime and the
// round trip time.
func (c *Client) Ping(ctx context.Context) (uptime time.Duration, rtt time.Duration, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	seq := c.nextSeq()
	req, err := newPingRequest(seq)
	if err != nil {
		return 0, 0, err
	}

	start := time.Now()
	resp, err := c.transact(ctx, "ping", seq, req)
	if err != nil {
		return 0, 0, err
	}
	rtt = time.Since(start)

	if resp.Type() != MsgPong {
		return 0, rtt, fmt.Errorf("regbridge: ping: unexpected response %s", FormatMessageType(resp.Type()))
	}
	ms, _ := GetMapUint(resp.PayloadMap(), keyUptime)
	return time.Duration(ms) * time.Millisecond, rtt, nil
}

// Close waits for any in-flight transaction to finish, then closes the
// underlying connection if it is an io.Closer. Later transactions fail with
// ErrClosed.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	if closer, ok := c.conn.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// Statistics returns a snapshot of the client counters.
func (c *Client) Statistics() Statistics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return *c.stats
}

func (c *Client) nextSeq() uint8 {
	c.seq++
	return c.seq
}

// transact writes req and waits for the response carrying seq.
func (c *Client) transact(ctx context.Context, op string, seq uint8, req []byte) (*Frame, error) {
	if c.closed {
		return nil, fmt.Errorf("%w (%s)", ErrClosed, op)
	}
	c.stats.Transactions++

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if rd, ok := c.conn.(ReadDeadliner); ok {
		if err := rd.SetReadDeadline(deadline); err != nil {
			return nil, fmt.Errorf("regbridge: set deadline: %w", err)
		}
	}

	if _, err := c.conn.Write(req); err != nil {
		return nil, fmt.Errorf("regbridge: %s: write request: %w", op, err)
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if time.Now().After(deadline) {
			c.stats.Timeouts++
			return nil, fmt.Errorf("%w (%s, seq %d)", ErrTimeout, op, seq)
		}

		n, err := c.conn.Read(c.buf)
		for i := 0; i < n; i++ {
			frame, decodeErr := c.decoder.DecodeByte(c.buf[i])
			if frame == nil && decodeErr == nil {
				continue
			}
			c.stats.recordFrame(frame, decodeErr)
			if decodeErr != nil {
				c.logger.Debug("bridge decode error", "error", decodeErr)
				continue
			}
			c.logger.Debug("bridge frame", "frame", FormatFrame(frame))

			if frame.Seq() != seq {
				c.stats.StaleFrames++
				continue
			}
			if frame.ParseError() != nil {
				return nil, fmt.Errorf("regbridge: %s: %w", op, frame.ParseError())
			}
			if frame.Type() == MsgError {
				code, _ := GetMapUint(frame.PayloadMap(), keyCode)
				c.stats.BridgeErrors++
				return nil, &BridgeError{Op: op, Code: ErrorCode(code)}
			}
			return frame, nil
		}

		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				c.stats.Timeouts++
				return nil, fmt.Errorf("%w (%s, seq %d)", ErrTimeout, op, seq)
			}
			return nil, fmt.Errorf("regbridge: %s: read response: %w", op, err)
		}
	}
}
