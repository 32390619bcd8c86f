// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package fwupdate

import (
	"io"
	"log/slog"
)

// DefaultPollInterval is the number of lines streamed between status reads.
const DefaultPollInterval = 10

// Config holds the transport configuration.
type Config struct {
	// PollInterval is the number of lines between status reads while streaming
	PollInterval int

	// Logger receives debug and info logs (optional)
	Logger *slog.Logger

	// EventCallback observes phase changes and progress (optional)
	EventCallback EventCallback
}

func defaultConfig() Config {
	return Config{
		PollInterval: DefaultPollInterval,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// Option is a functional option for configuring the Transport.
type Option func(*Config)

// WithPollInterval sets how many lines are streamed between status reads.
// Values below 1 are ignored.
func WithPollInterval(lines int) Option {
	return func(c *Config) {
		if lines > 0 {
			c.PollInterval = lines
		}
	}
}

// WithLogger sets the logger for transport operations.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		if logger != nil {
			c.Logger = logger
		}
	}
}

// WithEventCallback registers a callback for session progress.
//
// Example:
//
//	t := fwupdate.New(ch, fwupdate.PlatformESP32,
//	    fwupdate.WithEventCallback(func(e fwupdate.Event) {
//	        if e.Kind == fwupdate.EventPoll {
//	            fmt.Printf("%d lines, status %s\n", e.Lines, e.Status)
//	        }
//	    }),
//	)
func WithEventCallback(cb EventCallback) Option {
	return func(c *Config) {
		c.EventCallback = cb
	}
}
