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

// Package frame holds the frozen register layout of the PiXtend L SPI
// frames and the CRC16 routines that protect them. Offsets and bit
// positions in this file are firmware-defined and must not change.
package frame

// Len is the fixed size of both the outgoing and the incoming frame.
// The board clocks exactly this many bytes per exchange cycle.
const Len = 111

// ModelL is the model byte the PiXtend L firmware expects in byte 0 of
// every outgoing frame and reports in byte 2 of every incoming frame.
const ModelL = 'L'

// Shared region boundaries. Both frames carry a 7-byte header protected
// by a CRC16 at bytes 7-8 and a 100-byte data block protected by a
// CRC16 at bytes 109-110.
const (
	HeaderStart = 0
	HeaderEnd   = 7 // exclusive
	HeaderCRC   = 7
	DataStart   = 9
	DataEnd     = 109 // exclusive
	DataCRC     = 109
)

// Outgoing frame (host to board) field offsets.
const (
	OutModel           = 0  // model magic, always ModelL
	OutWatchdog        = 2  // watchdog control, 0 = off, 1..10 = 16ms..8s
	OutSystem          = 3  // system control bits, see Sys* below
	OutDigitalDebounce = 9  // 8 bytes, one per input pair
	OutDigitalOut      = 17 // 2 bytes, DO0-7 then DO8-11
	OutRelayOut        = 19 // bits 0-3 = REL0-3
	OutGPIOCtrl        = 20 // bits 0-3 output mode, bits 4-7 sensor mode
	OutGPIOOut         = 21 // bits 0-3, output level or pullup select
	OutGPIODebounce    = 22 // 2 bytes, one per input pair
	OutPWM             = 24 // 3 groups of PWMGroupLen bytes
	OutRetain          = 45 // RetainLen bytes host -> board
)

// Incoming frame (board to host) field offsets.
const (
	InFirmware  = 0  // firmware version
	InHardware  = 1  // hardware version
	InModel     = 2  // reported model byte
	InState     = 3  // run bit and error code, see State* below
	InWarnings  = 4  // warning bits, see Warn* below
	InDigitalIn = 9  // 2 bytes, DI0-7 then DI8-15
	InAnalogIn  = 11 // 6 channels, u16 little-endian each
	InGPIOIn    = 23 // bits 0-3
	InSensor    = 24 // 4 sensors of SensorLen bytes each
	InRetain    = 45 // RetainLen bytes board -> host
)

// Field geometry.
const (
	RetainLen   = 64
	PWMGroupLen = 7 // ctrl0, ctrl1 u16, channel A u16, channel B u16
	SensorLen   = 4 // temperature u16, humidity u16
)

// System control byte bits (OutSystem).
const (
	SysSafe             = 1 << 0 // request the microcontroller safe state
	SysRetainCopy       = 1 << 1 // mirror last written retain data back
	SysRetainEnable     = 1 << 2 // enable retain storage
	SysLEDDisable       = 1 << 3 // disable the status LED
	SysGPIOPullupEnable = 1 << 4 // globally enable GPIO pullups
)

// State byte layout (InState). The error code occupies the high nibble,
// the run bit is bit 0.
const (
	StateRun        = 1 << 0
	StateErrorShift = 4
	StateErrorMask  = 0x0F
)

// Warning byte bits (InWarnings).
const (
	WarnRetainCRC = 1 << 1 // retain memory failed its CRC check
	WarnVoltage   = 1 << 2 // supply below 19V, retain unavailable
	WarnI2C       = 1 << 3 // I2C fault between board and host
)

// Bit reports the state of a single bit of the byte at off.
// Callers index with layout constants; an out-of-range offset is a
// programming error and panics.
func Bit(buf []byte, off int, bit uint) bool {
	return buf[off]&(1<<bit) != 0
}

// SetBit sets or clears a single bit of the byte at off.
func SetBit(buf []byte, off int, bit uint, on bool) {
	if on {
		buf[off] |= 1 << bit
	} else {
		buf[off] &^= 1 << bit
	}
}

// Uint16 reads a little-endian u16 at off.
func Uint16(buf []byte, off int) uint16 {
	return uint16(buf[off]) | uint16(buf[off+1])<<8
}

// PutUint16 writes a little-endian u16 at off.
func PutUint16(buf []byte, off int, v uint16) {
	buf[off] = byte(v)
	buf[off+1] = byte(v >> 8)
}

// DACPacket builds the 16-bit command word for the board's MCP4812
// analog output DAC, transmitted big-endian over the second chip
// select. Layout: bit 15 channel select, bit 12 output enable (low
// shuts the channel down), bits 11-2 the 10-bit value.
func DACPacket(channel uint8, enable bool, value uint16) [2]byte {
	var word uint16
	if channel != 0 {
		word |= 1 << 15
	}
	if enable {
		word |= 1 << 12
	}
	word |= (value & 0x03FF) << 2
	return [2]byte{byte(word >> 8), byte(word)}
}
