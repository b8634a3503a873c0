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

// Package spi provides the kernel spidev transport for the PiXtend L,
// built on periph.io.
//
// The microcontroller sits on SPI0 chip select 0 and the DAC on chip
// select 1. GPIO 24 gates the board's SPI level shifter and must be
// driven high before any transfer.
package spi

import (
	"context"
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	pixtendl "github.com/pixtend-community/go-pixtendl"
)

const (
	// The microcontroller samples reliably up to 700kHz; beyond that it
	// reports an SPI frequency error.
	busFreq = 700 * physic.KiloHertz
	mode    = spi.Mode0

	defaultPort    = "SPI0.0"
	defaultDACPort = "SPI0.1"
	enablePin      = "GPIO24"
)

// Config tunes the SPI transport. The zero value selects the stock
// PiXtend wiring.
type Config struct {
	// Port is the spireg name of the microcontroller chip select
	Port string
	// DACPort is the spireg name of the DAC chip select; empty
	// disables the DAC
	DACPort string
	// EnablePin is the gpioreg name of the SPI enable pin; empty skips
	// pin setup (the pin is strapped high externally)
	EnablePin string
}

// Transport implements pixtendl.Transport and pixtendl.DACPort over
// the kernel spidev interface.
type Transport struct {
	port     spi.PortCloser
	conn     spi.Conn
	dacPort  spi.PortCloser
	dacConn  spi.Conn
	portName string
	timeout  time.Duration
}

// New opens the transport with the stock wiring.
func New() (*Transport, error) {
	return NewWithConfig(Config{})
}

// NewWithConfig opens the transport with explicit port names.
func NewWithConfig(cfg Config) (*Transport, error) {
	if cfg.Port == "" {
		cfg.Port = defaultPort
	}
	if cfg.DACPort == "" {
		cfg.DACPort = defaultDACPort
	}
	if cfg.EnablePin == "" {
		cfg.EnablePin = enablePin
	}

	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}

	if cfg.EnablePin != "-" {
		pin := gpioreg.ByName(cfg.EnablePin)
		if pin == nil {
			return nil, fmt.Errorf("%w: enable pin %s not found", pixtendl.ErrTransportUnavailable, cfg.EnablePin)
		}
		if err := pin.Out(gpio.High); err != nil {
			return nil, fmt.Errorf("failed to drive enable pin %s: %w", cfg.EnablePin, err)
		}
	}

	port, err := spireg.Open(cfg.Port)
	if err != nil {
		return nil, fmt.Errorf("failed to open SPI port %s: %w", cfg.Port, err)
	}
	conn, err := port.Connect(busFreq, mode, 8)
	if err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("failed to connect SPI: %w", err)
	}

	t := &Transport{
		port:     port,
		conn:     conn,
		portName: cfg.Port,
		timeout:  100 * time.Millisecond,
	}

	if cfg.DACPort != "-" {
		dacPort, err := spireg.Open(cfg.DACPort)
		if err != nil {
			_ = port.Close()
			return nil, fmt.Errorf("failed to open DAC port %s: %w", cfg.DACPort, err)
		}
		dacConn, err := dacPort.Connect(busFreq, mode, 8)
		if err != nil {
			_ = dacPort.Close()
			_ = port.Close()
			return nil, fmt.Errorf("failed to connect DAC SPI: %w", err)
		}
		t.dacPort = dacPort
		t.dacConn = dacConn
	}

	return t, nil
}

// Exchange clocks one frame out and the simultaneous answer in.
func (t *Transport) Exchange(out []byte) ([]byte, error) {
	if t.conn == nil {
		return nil, pixtendl.NewTransportClosedError("Exchange", t.portName)
	}

	in := make([]byte, len(out))
	if err := t.conn.Tx(out, in); err != nil {
		return nil, pixtendl.NewBusFaultError("Exchange", t.portName, err)
	}
	return in, nil
}

// ExchangeContext exchanges a frame with context support. A single
// 111-byte transfer at 700kHz finishes in under 2ms, so the context is
// only checked up front; spidev transfers cannot be interrupted.
func (t *Transport) ExchangeContext(ctx context.Context, out []byte) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	return t.Exchange(out)
}

// WriteDAC implements pixtendl.DACPort on the second chip select.
func (t *Transport) WriteDAC(packet []byte) error {
	if t.dacConn == nil {
		return pixtendl.NewTransportError("WriteDAC", t.portName,
			pixtendl.ErrTransportUnavailable, pixtendl.ErrorTypePermanent)
	}
	if err := t.dacConn.Tx(packet, nil); err != nil {
		return pixtendl.NewBusFaultError("WriteDAC", t.portName, err)
	}
	return nil
}

// SetTimeout sets the exchange timeout. spidev transfers complete or
// fail synchronously, so the value is stored for interface symmetry.
func (t *Transport) SetTimeout(timeout time.Duration) error {
	t.timeout = timeout
	return nil
}

// Close releases both chip selects.
func (t *Transport) Close() error {
	var firstErr error
	if t.dacPort != nil {
		if err := t.dacPort.Close(); err != nil {
			firstErr = fmt.Errorf("DAC SPI close failed: %w", err)
		}
		t.dacPort = nil
		t.dacConn = nil
	}
	if t.port != nil {
		if err := t.port.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("SPI close failed: %w", err)
		}
		t.port = nil
		t.conn = nil
	}
	return firstErr
}

// IsConnected returns true if the transport is connected.
func (t *Transport) IsConnected() bool {
	return t.conn != nil
}

// Type returns the transport type.
func (*Transport) Type() pixtendl.TransportType {
	return pixtendl.TransportSPI
}
