// Copyright 2026 The go-pixtendl Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package serial provides a PiXtend L transport over a serial frame
// bridge: a small adapter firmware that forwards SPI frames across a
// USB serial link. Useful on bench rigs where the board is not wired
// to a Raspberry Pi header.
//
// Wire format per direction: STX, one length byte, payload, CRC16
// little-endian over the payload. The bridge answers every request
// frame with exactly one response frame.
//
// The bridge has no path to the DAC chip select, so analog outputs
// are unavailable over serial.
package serial

import (
	"context"
	"fmt"
	"time"

	"go.bug.st/serial"

	pixtendl "github.com/pixtend-community/go-pixtendl"
	"github.com/pixtend-community/go-pixtendl/internal/frame"
)

const (
	stx = 0x02

	defaultBaudRate = 230400
	defaultTimeout  = 500 * time.Millisecond

	// STX + length + CRC16
	overhead = 4
)

// Transport implements pixtendl.Transport over a serial frame bridge.
type Transport struct {
	port     serial.Port
	portName string
	timeout  time.Duration
}

// New opens the bridge on the given serial device.
func New(portName string) (*Transport, error) {
	return NewWithBaudRate(portName, defaultBaudRate)
}

// NewWithBaudRate opens the bridge with a non-default baud rate.
func NewWithBaudRate(portName string, baudRate int) (*Transport, error) {
	port, err := serial.Open(portName, &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", portName, err)
	}

	t := &Transport{
		port:     port,
		portName: portName,
		timeout:  defaultTimeout,
	}
	if err := port.SetReadTimeout(t.timeout); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("failed to set read timeout: %w", err)
	}
	return t, nil
}

// Exchange sends one wrapped frame and reads the wrapped answer.
func (t *Transport) Exchange(out []byte) ([]byte, error) {
	return t.ExchangeContext(context.Background(), out)
}

// ExchangeContext exchanges a frame with context support. The serial
// read itself is bounded by the read timeout; the context is checked
// between reads.
func (t *Transport) ExchangeContext(ctx context.Context, out []byte) ([]byte, error) {
	if t.port == nil {
		return nil, pixtendl.NewTransportClosedError("Exchange", t.portName)
	}
	if len(out) > 0xFF {
		return nil, pixtendl.ErrLengthMismatch
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if err := t.writeFrame(out); err != nil {
		return nil, err
	}
	return t.readFrame(ctx)
}

func (t *Transport) writeFrame(payload []byte) error {
	buf := make([]byte, 0, len(payload)+overhead)
	buf = append(buf, stx, byte(len(payload)))
	buf = append(buf, payload...)

	crc := frame.CRC16(payload)
	buf = append(buf, byte(crc), byte(crc>>8))

	if _, err := t.port.Write(buf); err != nil {
		return pixtendl.NewBusFaultError("Exchange", t.portName, err)
	}
	return nil
}

func (t *Transport) readFrame(ctx context.Context) ([]byte, error) {
	deadline := time.Now().Add(t.timeout)

	header, err := t.readFull(ctx, 2, deadline)
	if err != nil {
		return nil, err
	}
	if header[0] != stx {
		return nil, fmt.Errorf("%w: bad start byte 0x%02X", pixtendl.ErrChecksumMismatch, header[0])
	}

	length := int(header[1])
	body, err := t.readFull(ctx, length+2, deadline)
	if err != nil {
		return nil, err
	}

	payload := body[:length]
	wire := uint16(body[length]) | uint16(body[length+1])<<8
	if frame.CRC16(payload) != wire {
		// Link-level corruption; the session counts it like any other
		// checksum failure.
		return nil, pixtendl.ErrChecksumMismatch
	}
	return payload, nil
}

// readFull reads exactly n bytes, tolerating the short reads USB
// serial bridges deliver.
func (t *Transport) readFull(ctx context.Context, n int, deadline time.Time) ([]byte, error) {
	buf := make([]byte, n)
	got := 0
	for got < n {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		if time.Now().After(deadline) {
			return nil, pixtendl.NewTimeoutError("Exchange", t.portName)
		}

		read, err := t.port.Read(buf[got:])
		if err != nil {
			return nil, pixtendl.NewBusFaultError("Exchange", t.portName, err)
		}
		if read == 0 {
			// go.bug.st/serial signals a read timeout with a zero-length
			// read, not an error.
			return nil, pixtendl.NewTimeoutError("Exchange", t.portName)
		}
		got += read
	}
	return buf, nil
}

// SetTimeout sets the read timeout for the transport.
func (t *Transport) SetTimeout(timeout time.Duration) error {
	t.timeout = timeout
	if t.port == nil {
		return nil
	}
	if err := t.port.SetReadTimeout(timeout); err != nil {
		return fmt.Errorf("failed to set read timeout: %w", err)
	}
	return nil
}

// Close closes the serial port.
func (t *Transport) Close() error {
	if t.port == nil {
		return nil
	}
	err := t.port.Close()
	t.port = nil
	if err != nil {
		return fmt.Errorf("serial close failed: %w", err)
	}
	return nil
}

// IsConnected returns true if the transport is connected.
func (t *Transport) IsConnected() bool {
	return t.port != nil
}

// Type returns the transport type.
func (*Transport) Type() pixtendl.TransportType {
	return pixtendl.TransportSerial
}
