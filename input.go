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
	"github.com/pixtend-community/go-pixtendl/internal/frame"
)

// InputSnapshot is one validated incoming frame. It is immutable after
// decoding; getters extract typed values from the raw buffer at the
// firmware-defined offsets.
type InputSnapshot struct {
	buf [frame.Len]byte
}

// decodeInput validates a raw incoming frame and wraps it in a typed
// snapshot. Verification happens before any field is extracted: a
// frame that fails either CRC is never partially trusted.
func decodeInput(raw []byte) (*InputSnapshot, error) {
	if len(raw) != frame.Len {
		return nil, ErrLengthMismatch
	}
	if !frame.CheckCRC(raw, frame.HeaderStart, frame.HeaderEnd, frame.HeaderCRC) {
		return nil, ErrChecksumMismatch
	}
	if !frame.CheckCRC(raw, frame.DataStart, frame.DataEnd, frame.DataCRC) {
		return nil, ErrChecksumMismatch
	}

	snap := &InputSnapshot{}
	copy(snap.buf[:], raw)
	return snap, nil
}

// FirmwareVersion reports the board firmware version byte.
func (s *InputSnapshot) FirmwareVersion() uint8 {
	return s.buf[frame.InFirmware]
}

// HardwareVersion reports the board hardware revision byte.
func (s *InputSnapshot) HardwareVersion() uint8 {
	return s.buf[frame.InHardware]
}

// Model reports the model byte the board identified itself with.
func (s *InputSnapshot) Model() byte {
	return s.buf[frame.InModel]
}

// Run reports the run bit of the state byte. A cleared run bit means
// the microcontroller sits in its safe state and ignores outputs until
// power cycled.
func (s *InputSnapshot) Run() bool {
	return s.buf[frame.InState]&frame.StateRun != 0
}

// ErrorCode reports the 4-bit error code of the state byte.
func (s *InputSnapshot) ErrorCode() BoardErrorCode {
	return BoardErrorCode(s.buf[frame.InState] >> frame.StateErrorShift & frame.StateErrorMask)
}

// Warnings reports the warning bits of the incoming frame.
func (s *InputSnapshot) Warnings() Warnings {
	w := s.buf[frame.InWarnings]
	return Warnings{
		I2CError:       w&frame.WarnI2C != 0,
		VoltageLow:     w&frame.WarnVoltage != 0,
		RetainCRCError: w&frame.WarnRetainCRC != 0,
	}
}

// DigitalInput reports the debounced level of digital input 0-15.
func (s *InputSnapshot) DigitalInput(index int) (bool, error) {
	switch {
	case index >= 0 && index < 8:
		return frame.Bit(s.buf[:], frame.InDigitalIn, uint(index)), nil
	case index >= 8 && index < NumDigitalInputs:
		return frame.Bit(s.buf[:], frame.InDigitalIn+1, uint(index-8)), nil
	default:
		return false, ErrInvalidChannel
	}
}

// analogRaw reports the raw conversion counts of analog input 0-5.
func (s *InputSnapshot) analogRaw(index int) (uint16, error) {
	if index < 0 || index >= NumAnalogInputs {
		return 0, ErrInvalidChannel
	}
	return frame.Uint16(s.buf[:], frame.InAnalogIn+2*index), nil
}

// GPIOInput reports the level of GPIO 0-3. Mode checking happens at
// the session layer, which knows the configured direction.
func (s *InputSnapshot) GPIOInput(index int) (bool, error) {
	if index < 0 || index >= NumGPIOs {
		return false, ErrInvalidChannel
	}
	return frame.Bit(s.buf[:], frame.InGPIOIn, uint(index)), nil
}

// sensorRaw reports the raw temperature and humidity words of DHT
// sensor 0-3.
func (s *InputSnapshot) sensorRaw(index int) (temperature, humidity uint16, err error) {
	if index < 0 || index >= NumGPIOs {
		return 0, 0, ErrInvalidChannel
	}
	base := frame.InSensor + index*frame.SensorLen
	return frame.Uint16(s.buf[:], base), frame.Uint16(s.buf[:], base+2), nil
}

// Retain reports the retain block the board returned. Depending on the
// retain copy setting this is the last stored data or a one-cycle
// delayed mirror of the last data sent.
func (s *InputSnapshot) Retain() []byte {
	out := make([]byte, frame.RetainLen)
	copy(out, s.buf[frame.InRetain:])
	return out
}
