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

// Package rpio provides a PiXtend L transport over direct BCM283x
// register access, for systems without the spidev kernel module.
//
// It maps /dev/gpiomem and drives SPI0 itself, so it needs no device
// tree overlay but also cannot coexist with a kernel SPI driver on the
// same bus.
package rpio

import (
	"context"
	"fmt"
	"time"

	"github.com/stianeikeland/go-rpio/v4"

	pixtendl "github.com/pixtend-community/go-pixtendl"
)

const (
	busFreq   = 700000
	enablePin = 24
)

// Transport implements pixtendl.Transport and pixtendl.DACPort via
// go-rpio.
type Transport struct {
	timeout time.Duration
	open    bool
}

// New maps the GPIO registers, drives the SPI enable pin high and
// claims SPI0.
func New() (*Transport, error) {
	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("failed to map gpio registers: %w", err)
	}

	pin := rpio.Pin(enablePin)
	pin.Output()
	pin.High()

	if err := rpio.SpiBegin(rpio.Spi0); err != nil {
		rpio.Close()
		return nil, fmt.Errorf("failed to claim SPI0: %w", err)
	}
	rpio.SpiSpeed(busFreq)
	rpio.SpiMode(0, 0)

	return &Transport{
		open:    true,
		timeout: 100 * time.Millisecond,
	}, nil
}

// Exchange clocks one frame out and the simultaneous answer in.
// SpiExchange works in place, so the outgoing frame is copied first.
func (t *Transport) Exchange(out []byte) ([]byte, error) {
	if !t.open {
		return nil, pixtendl.NewTransportClosedError("Exchange", "rpio")
	}

	buf := make([]byte, len(out))
	copy(buf, out)
	rpio.SpiChipSelect(0)
	rpio.SpiExchange(buf)
	return buf, nil
}

// ExchangeContext exchanges a frame with context support. Register
// level transfers cannot be interrupted, so the context is checked up
// front only.
func (t *Transport) ExchangeContext(ctx context.Context, out []byte) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	return t.Exchange(out)
}

// WriteDAC implements pixtendl.DACPort on chip select 1.
func (t *Transport) WriteDAC(packet []byte) error {
	if !t.open {
		return pixtendl.NewTransportClosedError("WriteDAC", "rpio")
	}
	rpio.SpiChipSelect(1)
	rpio.SpiTransmit(packet...)
	rpio.SpiChipSelect(0)
	return nil
}

// SetTimeout stores the timeout for interface symmetry; register
// transfers complete synchronously.
func (t *Transport) SetTimeout(timeout time.Duration) error {
	t.timeout = timeout
	return nil
}

// Close releases SPI0 and unmaps the registers.
func (t *Transport) Close() error {
	if !t.open {
		return nil
	}
	t.open = false
	rpio.SpiEnd(rpio.Spi0)
	if err := rpio.Close(); err != nil {
		return fmt.Errorf("failed to unmap gpio registers: %w", err)
	}
	return nil
}

// IsConnected returns true if the transport is connected.
func (t *Transport) IsConnected() bool {
	return t.open
}

// Type returns the transport type.
func (*Transport) Type() pixtendl.TransportType {
	return pixtendl.TransportRPIO
}
