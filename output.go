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

// Channel counts of the PiXtend L
const (
	NumDigitalOutputs = 12
	NumDigitalInputs  = 16
	NumRelays         = 4
	NumGPIOs          = 4
	NumAnalogInputs   = 6
	NumAnalogOutputs  = 2
	NumPWMGroups      = 3
)

// Watchdog selects the board-side communication watchdog period. When
// active, a gap between two valid cycles longer than the period puts
// the microcontroller into its safe state. A cycle rejected for a CRC
// error counts as no cycle at all.
type Watchdog uint8

// Watchdog periods
const (
	WatchdogOff Watchdog = iota
	Watchdog16ms
	Watchdog32ms
	Watchdog64ms
	Watchdog125ms
	Watchdog250ms
	Watchdog500ms
	Watchdog1s
	Watchdog2s
	Watchdog4s
	Watchdog8s
)

// GPIOConfig selects the operating mode of one of the four GPIO
// terminals.
type GPIOConfig uint8

const (
	// GPIOInput configures the terminal as a plain digital input
	GPIOInput GPIOConfig = iota
	// GPIOInputPullup configures a digital input with the internal
	// pullup; requires the global pullup enable
	GPIOInputPullup
	// GPIOOutput configures a digital output
	GPIOOutput
	// GPIOSensor hands the terminal to the one-wire DHT sensor engine
	GPIOSensor
)

// PWMMode selects how a PWM group drives its two channels
type PWMMode uint8

const (
	// PWMServo outputs RC servo pulses, 1-2ms at 50Hz
	PWMServo PWMMode = iota
	// PWMDutyCycle gives both channels individual duty cycles at a
	// shared frequency
	PWMDutyCycle
	// PWMUniversal gives channel A frequency and duty cycle; channel B
	// follows at half the frequency, 50% duty
	PWMUniversal
	// PWMFrequency gives both channels individual frequencies at 50% duty
	PWMFrequency
)

// PWMPrescaler selects the base clock of a PWM group
type PWMPrescaler uint8

const (
	PWMPrescalerOff PWMPrescaler = iota
	PWMPrescaler16MHz
	PWMPrescaler2MHz
	PWMPrescaler250kHz
	PWMPrescaler62k5Hz
	PWMPrescaler15k625Hz
)

// PWMChannel addresses one of the two channels of a PWM group
type PWMChannel int

const (
	PWMChannelA PWMChannel = iota
	PWMChannelB
)

// PWMConfig configures one PWM group. Frequency is ignored for the
// servo and frequency modes.
type PWMConfig struct {
	Mode      PWMMode
	Prescaler PWMPrescaler
	Frequency uint16
	ChannelA  bool
	ChannelB  bool
}

// OutputState is the pending outgoing frame under construction. Every
// setter validates its input and then flips bits in the raw frame
// buffer at the firmware-defined offset; encode seals the buffer with
// both CRCs. Outputs latch: values persist across exchange cycles
// until explicitly changed.
type OutputState struct {
	buf         [frame.Len]byte
	gpioConfigs [NumGPIOs]GPIOConfig
}

func newOutputState() *OutputState {
	o := &OutputState{}
	o.buf[frame.OutModel] = frame.ModelL
	return o
}

// encode seals the pending state into a wire-ready frame. It cannot
// fail: values are validated at the setter layer and the buffer has a
// fixed length.
func (o *OutputState) encode() []byte {
	out := make([]byte, frame.Len)
	copy(out, o.buf[:])
	frame.PutCRC(out, frame.HeaderStart, frame.HeaderEnd, frame.HeaderCRC)
	frame.PutCRC(out, frame.DataStart, frame.DataEnd, frame.DataCRC)
	return out
}

// SetDigitalOutput sets the pending level of digital output 0-11.
func (o *OutputState) SetDigitalOutput(index int, on bool) error {
	switch {
	case index >= 0 && index < 8:
		frame.SetBit(o.buf[:], frame.OutDigitalOut, uint(index), on)
	case index >= 8 && index < NumDigitalOutputs:
		frame.SetBit(o.buf[:], frame.OutDigitalOut+1, uint(index-8), on)
	default:
		return ErrInvalidChannel
	}
	return nil
}

// DigitalOutput reports the pending level of digital output 0-11.
func (o *OutputState) DigitalOutput(index int) (bool, error) {
	switch {
	case index >= 0 && index < 8:
		return frame.Bit(o.buf[:], frame.OutDigitalOut, uint(index)), nil
	case index >= 8 && index < NumDigitalOutputs:
		return frame.Bit(o.buf[:], frame.OutDigitalOut+1, uint(index-8)), nil
	default:
		return false, ErrInvalidChannel
	}
}

// SetRelayOutput sets the pending state of relay 0-3.
func (o *OutputState) SetRelayOutput(index int, on bool) error {
	if index < 0 || index >= NumRelays {
		return ErrInvalidChannel
	}
	frame.SetBit(o.buf[:], frame.OutRelayOut, uint(index), on)
	return nil
}

// RelayOutput reports the pending state of relay 0-3.
func (o *OutputState) RelayOutput(index int) (bool, error) {
	if index < 0 || index >= NumRelays {
		return false, ErrInvalidChannel
	}
	return frame.Bit(o.buf[:], frame.OutRelayOut, uint(index)), nil
}

// SetGPIOConfig configures GPIO 0-3 as input, pullup input, output or
// DHT sensor terminal. Pullup inputs require the global pullup enable
// to be set first.
func (o *OutputState) SetGPIOConfig(index int, config GPIOConfig) error {
	if index < 0 || index >= NumGPIOs {
		return ErrInvalidChannel
	}
	if config > GPIOSensor {
		return ErrOutOfRange
	}
	if config == GPIOInputPullup && o.buf[frame.OutSystem]&frame.SysGPIOPullupEnable == 0 {
		return ErrPullupNotEnabled
	}

	frame.SetBit(o.buf[:], frame.OutGPIOCtrl, uint(index), config == GPIOOutput)
	frame.SetBit(o.buf[:], frame.OutGPIOCtrl, uint(index+4), config == GPIOSensor)
	// For pullup inputs the output bit selects the pullup.
	if config == GPIOInputPullup {
		frame.SetBit(o.buf[:], frame.OutGPIOOut, uint(index), true)
	}
	o.gpioConfigs[index] = config
	return nil
}

// GPIOConfigAt reports the configured mode of GPIO 0-3.
func (o *OutputState) GPIOConfigAt(index int) (GPIOConfig, error) {
	if index < 0 || index >= NumGPIOs {
		return 0, ErrInvalidChannel
	}
	return o.gpioConfigs[index], nil
}

// SetGPIOOutput sets the pending level of GPIO 0-3. The terminal must
// be configured as an output first.
func (o *OutputState) SetGPIOOutput(index int, on bool) error {
	if index < 0 || index >= NumGPIOs {
		return ErrInvalidChannel
	}
	if o.gpioConfigs[index] != GPIOOutput {
		return ErrGPIONotOutput
	}
	frame.SetBit(o.buf[:], frame.OutGPIOOut, uint(index), on)
	return nil
}

// SetDigitalDebounce configures the debounce cycles for one group of
// two digital inputs. Group 0 covers inputs 0 and 1, group 7 covers
// inputs 14 and 15. One cycle is 30ms.
func (o *OutputState) SetDigitalDebounce(group int, cycles uint8) error {
	if group < 0 || group >= 8 {
		return ErrInvalidChannel
	}
	o.buf[frame.OutDigitalDebounce+group] = cycles
	return nil
}

// SetGPIODebounce configures the debounce cycles for one group of two
// GPIOs. Group 0 covers GPIO 0 and 1, group 1 covers GPIO 2 and 3.
func (o *OutputState) SetGPIODebounce(group int, cycles uint8) error {
	if group < 0 || group >= 2 {
		return ErrInvalidChannel
	}
	o.buf[frame.OutGPIODebounce+group] = cycles
	return nil
}

// SetPWMConfig configures PWM group 0-2. Channel values are reset; set
// them again with SetPWMValue after reconfiguring.
func (o *OutputState) SetPWMConfig(group int, config PWMConfig) error {
	if group < 0 || group >= NumPWMGroups {
		return ErrInvalidChannel
	}
	if config.Mode > PWMFrequency || config.Prescaler > PWMPrescaler15k625Hz {
		return ErrOutOfRange
	}

	base := frame.OutPWM + group*frame.PWMGroupLen
	ctrl0 := byte(config.Prescaler)<<5 | byte(config.Mode)
	if config.ChannelB {
		ctrl0 |= 1 << 4
	}
	if config.ChannelA {
		ctrl0 |= 1 << 3
	}
	o.buf[base] = ctrl0

	var ctrl1 uint16
	if config.Mode == PWMDutyCycle || config.Mode == PWMUniversal {
		ctrl1 = config.Frequency
	}
	frame.PutUint16(o.buf[:], base+1, ctrl1)
	frame.PutUint16(o.buf[:], base+3, 0)
	frame.PutUint16(o.buf[:], base+5, 0)
	return nil
}

// SetPWMValue sets the raw channel value of PWM group 0-2. Meaning
// depends on the group mode: pulse width, duty cycle or frequency.
func (o *OutputState) SetPWMValue(group int, channel PWMChannel, value uint16) error {
	if group < 0 || group >= NumPWMGroups {
		return ErrInvalidChannel
	}
	base := frame.OutPWM + group*frame.PWMGroupLen
	switch channel {
	case PWMChannelA:
		frame.PutUint16(o.buf[:], base+3, value)
	case PWMChannelB:
		frame.PutUint16(o.buf[:], base+5, value)
	default:
		return ErrInvalidChannel
	}
	return nil
}

// PWMValue reports the pending raw channel value of PWM group 0-2.
func (o *OutputState) PWMValue(group int, channel PWMChannel) (uint16, error) {
	if group < 0 || group >= NumPWMGroups {
		return 0, ErrInvalidChannel
	}
	base := frame.OutPWM + group*frame.PWMGroupLen
	switch channel {
	case PWMChannelA:
		return frame.Uint16(o.buf[:], base+3), nil
	case PWMChannelB:
		return frame.Uint16(o.buf[:], base+5), nil
	default:
		return 0, ErrInvalidChannel
	}
}

// WriteRetain stages up to 64 bytes of retain data for the next
// exchange. Shorter blocks are zero-padded; retain storage must be
// globally enabled first.
func (o *OutputState) WriteRetain(data []byte) error {
	if o.buf[frame.OutSystem]&frame.SysRetainEnable == 0 {
		return ErrRetainNotEnabled
	}
	if len(data) > frame.RetainLen {
		return ErrRetainTooLong
	}
	copy(o.buf[frame.OutRetain:frame.OutRetain+frame.RetainLen], make([]byte, frame.RetainLen))
	copy(o.buf[frame.OutRetain:], data)
	return nil
}

// Retain reports the pending retain block.
func (o *OutputState) Retain() []byte {
	out := make([]byte, frame.RetainLen)
	copy(out, o.buf[frame.OutRetain:])
	return out
}

// SetWatchdog encodes the watchdog period into every subsequent frame.
func (o *OutputState) SetWatchdog(period Watchdog) error {
	if period > Watchdog8s {
		return ErrOutOfRange
	}
	o.buf[frame.OutWatchdog] = byte(period)
	return nil
}

// WatchdogPeriod reports the configured watchdog period.
func (o *OutputState) WatchdogPeriod() Watchdog {
	return Watchdog(o.buf[frame.OutWatchdog])
}

// SetRetainEnable activates the board retain storage. Off by default
// after reset or power-up.
func (o *OutputState) SetRetainEnable(on bool) {
	frame.SetBit(o.buf[:], frame.OutSystem, 2, on)
}

// SetRetainCopy selects what the board mirrors into the retain input
// area: last stored data (false) or the last data we sent (true,
// delayed by one cycle). The stored content is kept either way.
func (o *OutputState) SetRetainCopy(on bool) {
	frame.SetBit(o.buf[:], frame.OutSystem, 1, on)
}

// SetLEDDisable turns the status LED off. Active by default.
func (o *OutputState) SetLEDDisable(on bool) {
	frame.SetBit(o.buf[:], frame.OutSystem, 3, on)
}

// SetGPIOPullupEnable globally enables GPIO pullups. Individual GPIOs
// still need the pullup input configuration.
func (o *OutputState) SetGPIOPullupEnable(on bool) {
	frame.SetBit(o.buf[:], frame.OutSystem, 4, on)
}

// RequestSafeState asks the microcontroller to enter its safe state:
// outputs off, PWM tri-stated, retain stored. Only a power cycle
// brings the board back.
func (o *OutputState) RequestSafeState() {
	frame.SetBit(o.buf[:], frame.OutSystem, 0, true)
}
