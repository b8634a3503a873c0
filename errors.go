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
	"errors"
	"fmt"
	"io"
	"syscall"
)

// Error categories for error handling and caller-driven retry logic
var (
	// Configuration errors - caller supplied a bad index, value or mode;
	// detected before any mutation or bus activity
	ErrInvalidChannel      = errors.New("invalid channel index")
	ErrOutOfRange          = errors.New("value out of range")
	ErrUnsafeValueRejected = errors.New("value outside configured safemode bound")
	ErrPullupNotEnabled    = errors.New("gpio pullups not globally enabled")
	ErrRetainNotEnabled    = errors.New("retain memory not globally enabled")
	ErrRetainTooLong       = errors.New("retain data exceeds 64 bytes")
	ErrGPIONotOutput       = errors.New("gpio not configured as output")
	ErrGPIONotInput        = errors.New("gpio not configured as input")
	ErrGPIONotSensor       = errors.New("gpio not configured as sensor")

	// Transport errors - originate below the engine, potentially retryable
	ErrTransportUnavailable = errors.New("transport unavailable")
	ErrTransportTimeout     = errors.New("transport timeout")
	ErrTransportClosed      = errors.New("transport is closed")
	ErrBusFault             = errors.New("bus-level transport error")

	// Integrity errors - a received frame failed validation; the cached
	// input snapshot is never overwritten with unverified data
	ErrChecksumMismatch = errors.New("frame checksum mismatch")
	ErrLengthMismatch   = errors.New("frame length mismatch")
	ErrModelMismatch    = errors.New("connected board is not a PiXtend L")

	// Session-state errors - operation invalid for the current state
	ErrNotSynchronized = errors.New("no validated input frame yet, call ReadWrite first")
	ErrSessionFaulted  = errors.New("session faulted, reopen the transport")
	ErrBoardNotReady   = errors.New("board not ready for communication, power cycle required")
)

// ErrorType represents the category of a transport error for retry logic
type ErrorType int

const (
	// ErrorTypeTransient indicates a potentially retryable error
	ErrorTypeTransient ErrorType = iota
	// ErrorTypePermanent indicates a non-retryable error
	ErrorTypePermanent
	// ErrorTypeTimeout indicates a timeout error (special handling)
	ErrorTypeTimeout
)

// TransportError wraps transport-level errors with additional context
type TransportError struct {
	Err       error     // Underlying error
	Op        string    // Operation that failed
	Port      string    // Port or device identifier
	Type      ErrorType // Error category
	Retryable bool      // Whether the error is retryable
}

func (e *TransportError) Error() string {
	if e.Port != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Port, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewTransportError creates a transport error with consistent formatting
func NewTransportError(op, port string, err error, errType ErrorType) *TransportError {
	return &TransportError{
		Op:        op,
		Port:      port,
		Err:       err,
		Type:      errType,
		Retryable: errType == ErrorTypeTransient || errType == ErrorTypeTimeout,
	}
}

// NewTimeoutError creates a timeout error for transport operations
func NewTimeoutError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrTransportTimeout, ErrorTypeTimeout)
}

// NewBusFaultError creates a bus-level error (transient)
func NewBusFaultError(op, port string, cause error) *TransportError {
	e := NewTransportError(op, port, ErrBusFault, ErrorTypeTransient)
	if cause != nil {
		e.Err = fmt.Errorf("%w: %w", ErrBusFault, cause)
	}
	return e
}

// NewTransportClosedError creates a closed-transport error (permanent)
func NewTransportClosedError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrTransportClosed, ErrorTypePermanent)
}

// BoardError is an error reported by the board firmware in the state
// byte of an input frame. It means the board rejected the frame we
// sent, so the outgoing data never reached the outputs.
type BoardError struct {
	Code BoardErrorCode
}

func (e *BoardError) Error() string {
	return fmt.Sprintf("board reported error %d (%s)", e.Code, e.Code)
}

// BoardErrorCode is the 4-bit error code in the input state byte.
// Codes are defined by the PiXtend L firmware.
type BoardErrorCode uint8

// Board-reported error codes
const (
	BoardOK               BoardErrorCode = 0
	BoardDataCRCError     BoardErrorCode = 2
	BoardDataTooShort     BoardErrorCode = 3
	BoardModelMismatch    BoardErrorCode = 4
	BoardHeaderCRCError   BoardErrorCode = 5
	BoardSPIFrequencyHigh BoardErrorCode = 6
)

func (c BoardErrorCode) String() string {
	switch c {
	case BoardOK:
		return "no error"
	case BoardDataCRCError:
		return "data block CRC error in received frame"
	case BoardDataTooShort:
		return "received data block too short"
	case BoardModelMismatch:
		return "frame addressed to a different board model"
	case BoardHeaderCRCError:
		return "header CRC error in received frame"
	case BoardSPIFrequencyHigh:
		return "SPI clock frequency too high"
	default:
		return "unknown error"
	}
}

// SensorFault distinguishes the failure modes of a DHT sensor read
type SensorFault int

const (
	// SensorFaultNoSensor means the board reported no conversion for the
	// channel: either nothing is wired to the GPIO or the sensor never
	// answered (payload all-ones or all-zero)
	SensorFaultNoSensor SensorFault = iota
	// SensorFaultParity means the payload failed the sensor-level
	// plausibility check; the DHT transfer was corrupted independently
	// of the frame CRC
	SensorFaultParity
)

func (f SensorFault) String() string {
	switch f {
	case SensorFaultNoSensor:
		return "no sensor present"
	case SensorFaultParity:
		return "sensor payload parity check failed"
	default:
		return "unknown sensor fault"
	}
}

// SensorError reports a failed DHT sensor read. Sensor errors are
// isolated to the sensor getters and never invalidate digital or
// analog data carried in the same frame.
type SensorError struct {
	Channel int
	Fault   SensorFault
}

func (e *SensorError) Error() string {
	return fmt.Sprintf("sensor %d: %s", e.Channel, e.Fault)
}

// IsRetryable returns true if the error is potentially retryable
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var te *TransportError
	if errors.As(err, &te) {
		return te.Retryable
	}

	// A board-reported error means our frame was corrupted in transit;
	// the next cycle usually goes through
	var be *BoardError
	if errors.As(err, &be) {
		return be.Code != BoardModelMismatch
	}

	switch {
	case errors.Is(err, ErrTransportTimeout),
		errors.Is(err, ErrBusFault),
		errors.Is(err, ErrChecksumMismatch),
		errors.Is(err, ErrLengthMismatch):
		return true
	default:
		return false
	}
}

// IsFatal returns true if the error indicates the board or connection is
// gone and the session cannot recover without a fresh New. This is
// distinct from IsRetryable, which judges a single exchange.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	var te *TransportError
	if errors.As(err, &te) {
		return te.Type == ErrorTypePermanent
	}

	if isDeviceGoneError(err) {
		return true
	}

	switch {
	case errors.Is(err, ErrTransportClosed),
		errors.Is(err, ErrTransportUnavailable),
		errors.Is(err, ErrSessionFaulted),
		errors.Is(err, ErrModelMismatch),
		errors.Is(err, ErrBoardNotReady),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrClosedPipe):
		return true
	default:
		return false
	}
}

// isDeviceGoneError checks for OS-level errors indicating the bus or
// adapter disappeared mid-session (mostly USB serial bridges).
func isDeviceGoneError(err error) bool {
	if err == nil {
		return false
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		//nolint:exhaustive // Only checking specific device-gone errors, not all errno values
		switch errno {
		case syscall.EIO, syscall.ENXIO, syscall.ENODEV:
			return true
		}
	}

	return false
}
