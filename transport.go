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

package pixtendl

import (
	"context"
	"time"

	"github.com/pixtend-community/go-pixtendl/internal/frame"
	"github.com/pixtend-community/go-pixtendl/internal/syncutil"
)

// Transport defines the interface for exchanging frames with a PiXtend
// board. This can be implemented by SPI, GPIO-driven SPI, or serial
// bridge backends.
//
// Exchange is full duplex: every outgoing frame clocks an incoming
// frame back in the same operation. The transport moves raw bytes only;
// frame validation is the session's job.
type Transport interface {
	// Exchange writes out and returns the frame received while writing
	Exchange(out []byte) ([]byte, error)

	// ExchangeContext exchanges a frame with context support
	ExchangeContext(ctx context.Context, out []byte) ([]byte, error)

	// Close closes the transport connection
	Close() error

	// SetTimeout sets the exchange timeout for the transport
	SetTimeout(timeout time.Duration) error

	// IsConnected returns true if the transport is connected
	IsConnected() bool

	// Type returns the transport type
	Type() TransportType
}

// DACPort is the second chip select carrying the analog output DAC.
// Transports that reach the DAC implement it in addition to Transport;
// the serial bridge does not, and analog outputs are unavailable there.
type DACPort interface {
	// WriteDAC sends one 2-byte command packet to the DAC
	WriteDAC(packet []byte) error
}

// TransportType represents the type of transport
type TransportType string

const (
	// TransportSPI represents kernel spidev SPI transport.
	TransportSPI TransportType = "spi"
	// TransportRPIO represents direct GPIO register SPI transport.
	TransportRPIO TransportType = "rpio"
	// TransportSerial represents a serial frame bridge transport.
	TransportSerial TransportType = "serial"
	// TransportMock represents a mock transport for testing
	TransportMock TransportType = "mock"
)

// TransportWithRetry wraps a Transport with retry capabilities
type TransportWithRetry struct {
	transport Transport
	config    *RetryConfig
}

// NewTransportWithRetry creates a new transport wrapper with retry logic
func NewTransportWithRetry(transport Transport, config *RetryConfig) *TransportWithRetry {
	if config == nil {
		config = DefaultRetryConfig()
	}
	return &TransportWithRetry{
		transport: transport,
		config:    config,
	}
}

// Exchange exchanges a frame with retry logic
func (t *TransportWithRetry) Exchange(out []byte) ([]byte, error) {
	return t.ExchangeContext(context.Background(), out)
}

// ExchangeContext exchanges a frame with context support and retry logic
func (t *TransportWithRetry) ExchangeContext(ctx context.Context, out []byte) ([]byte, error) {
	var result []byte
	err := RetryWithConfig(ctx, t.config, func() error {
		var err error
		result, err = t.transport.ExchangeContext(ctx, out)
		if err != nil {
			return &TransportError{
				Op:        "Exchange",
				Err:       err,
				Type:      errorTypeOf(err),
				Retryable: IsRetryable(err),
			}
		}
		return nil
	})
	return result, err
}

// WriteDAC forwards DAC writes to the underlying transport if it
// carries the DAC chip select. DAC writes are fire-and-forget and not
// retried.
func (t *TransportWithRetry) WriteDAC(packet []byte) error {
	if dac, ok := t.transport.(DACPort); ok {
		return dac.WriteDAC(packet)
	}
	return NewTransportError("WriteDAC", "", ErrTransportUnavailable, ErrorTypePermanent)
}

// Close closes the transport connection
func (t *TransportWithRetry) Close() error {
	return t.transport.Close()
}

// SetTimeout sets the exchange timeout for the transport
func (t *TransportWithRetry) SetTimeout(timeout time.Duration) error {
	return t.transport.SetTimeout(timeout)
}

// IsConnected returns true if the transport is connected
func (t *TransportWithRetry) IsConnected() bool {
	return t.transport.IsConnected()
}

// Type returns the transport type
func (t *TransportWithRetry) Type() TransportType {
	return t.transport.Type()
}

// SetRetryConfig updates the retry configuration
func (t *TransportWithRetry) SetRetryConfig(config *RetryConfig) {
	t.config = config
}

// errorTypeOf maps an error to its retry category.
func errorTypeOf(err error) ErrorType {
	switch {
	case err == nil:
		return ErrorTypeTransient
	case IsFatal(err):
		return ErrorTypePermanent
	default:
		return ErrorTypeTransient
	}
}

// MockTransport provides a mock implementation of Transport for testing
type MockTransport struct {
	handler   func(out []byte) ([]byte, error)
	nextErr   error
	timeout   time.Duration
	delay     time.Duration
	responses [][]byte
	dacWrites [][]byte
	lastOut   []byte
	exchanges int
	mu        syncutil.RWMutex
	connected bool
}

// NewMockTransport creates a new mock transport. Without queued
// responses or a handler it answers every exchange with a valid idle
// input frame.
func NewMockTransport() *MockTransport {
	return &MockTransport{
		connected: true,
		timeout:   time.Second,
	}
}

// IdleInputFrame builds a valid input frame of a running board with all
// inputs at rest. Tests use it as a baseline and flip the bytes they
// care about before re-sealing with SealInputFrame.
func IdleInputFrame() []byte {
	buf := make([]byte, frame.Len)
	buf[frame.InFirmware] = 1
	buf[frame.InHardware] = 21
	buf[frame.InModel] = frame.ModelL
	buf[frame.InState] = frame.StateRun
	SealInputFrame(buf)
	return buf
}

// SealInputFrame recomputes both CRC fields of an input frame buffer
// in place.
func SealInputFrame(buf []byte) {
	frame.PutCRC(buf, frame.HeaderStart, frame.HeaderEnd, frame.HeaderCRC)
	frame.PutCRC(buf, frame.DataStart, frame.DataEnd, frame.DataCRC)
}

// Exchange implements Transport interface
func (m *MockTransport) Exchange(out []byte) ([]byte, error) {
	return m.ExchangeContext(context.Background(), out)
}

// ExchangeContext implements Transport interface with context support
func (m *MockTransport) ExchangeContext(ctx context.Context, out []byte) ([]byte, error) {
	// Check context cancellation first
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	m.mu.RLock()
	connected := m.connected
	delay := m.delay
	m.mu.RUnlock()

	if !connected {
		return nil, NewTransportClosedError("Exchange", "mock")
	}

	// Simulate hardware delay if configured with context awareness
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.exchanges++
	m.lastOut = append([]byte(nil), out...)

	if m.nextErr != nil {
		err := m.nextErr
		m.nextErr = nil
		return nil, err
	}

	if m.handler != nil {
		return m.handler(out)
	}

	if len(m.responses) > 0 {
		resp := m.responses[0]
		m.responses = m.responses[1:]
		return resp, nil
	}

	return IdleInputFrame(), nil
}

// WriteDAC implements DACPort, recording the packet for inspection.
func (m *MockTransport) WriteDAC(packet []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return NewTransportClosedError("WriteDAC", "mock")
	}
	m.dacWrites = append(m.dacWrites, append([]byte(nil), packet...))
	return nil
}

// Close implements Transport interface
func (m *MockTransport) Close() error {
	m.mu.Lock()
	m.connected = false
	m.mu.Unlock()
	return nil
}

// SetTimeout implements Transport interface
func (m *MockTransport) SetTimeout(timeout time.Duration) error {
	m.mu.Lock()
	m.timeout = timeout
	m.mu.Unlock()
	return nil
}

// IsConnected implements Transport interface
func (m *MockTransport) IsConnected() bool {
	m.mu.RLock()
	connected := m.connected
	m.mu.RUnlock()
	return connected
}

// Type implements Transport interface
func (*MockTransport) Type() TransportType {
	return TransportMock
}

// Test helper methods

// QueueResponse appends a raw frame to be returned by the next
// exchange, ahead of the default idle frame.
func (m *MockTransport) QueueResponse(response []byte) {
	m.mu.Lock()
	m.responses = append(m.responses, append([]byte(nil), response...))
	m.mu.Unlock()
}

// SetError injects an error for the next exchange only
func (m *MockTransport) SetError(err error) {
	m.mu.Lock()
	m.nextErr = err
	m.mu.Unlock()
}

// SetHandler installs a function that computes the response from the
// outgoing frame. Queued responses take priority over the handler.
func (m *MockTransport) SetHandler(handler func(out []byte) ([]byte, error)) {
	m.mu.Lock()
	m.handler = handler
	m.mu.Unlock()
}

// SetDelay configures a delay to simulate hardware response time
func (m *MockTransport) SetDelay(delay time.Duration) {
	m.mu.Lock()
	m.delay = delay
	m.mu.Unlock()
}

// SetConnected overrides the connection state
func (m *MockTransport) SetConnected(connected bool) {
	m.mu.Lock()
	m.connected = connected
	m.mu.Unlock()
}

// Exchanges returns how many exchanges were attempted
func (m *MockTransport) Exchanges() int {
	m.mu.RLock()
	count := m.exchanges
	m.mu.RUnlock()
	return count
}

// LastOutput returns a copy of the most recent outgoing frame
func (m *MockTransport) LastOutput() []byte {
	m.mu.RLock()
	out := append([]byte(nil), m.lastOut...)
	m.mu.RUnlock()
	return out
}

// DACWrites returns copies of every DAC packet written so far
func (m *MockTransport) DACWrites() [][]byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([][]byte, len(m.dacWrites))
	for i, w := range m.dacWrites {
		out[i] = append([]byte(nil), w...)
	}
	return out
}

// Reset clears counters, recorded frames and injected behavior
func (m *MockTransport) Reset() {
	m.mu.Lock()
	m.exchanges = 0
	m.lastOut = nil
	m.responses = nil
	m.dacWrites = nil
	m.nextErr = nil
	m.handler = nil
	m.connected = true
	m.mu.Unlock()
}
