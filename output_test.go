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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixtend-community/go-pixtendl/internal/frame"
)

func TestOutputState_EncodeSealsFrame(t *testing.T) {
	t.Parallel()

	o := newOutputState()
	out := o.encode()

	require.Len(t, out, frame.Len)
	assert.Equal(t, byte(frame.ModelL), out[frame.OutModel])
	assert.True(t, frame.CheckCRC(out, frame.HeaderStart, frame.HeaderEnd, frame.HeaderCRC))
	assert.True(t, frame.CheckCRC(out, frame.DataStart, frame.DataEnd, frame.DataCRC))
}

func TestOutputState_DigitalOutputBits(t *testing.T) {
	t.Parallel()

	o := newOutputState()
	for _, index := range []int{1, 3, 5, 7, 9, 11} {
		require.NoError(t, o.SetDigitalOutput(index, true))
	}

	out := o.encode()
	assert.Equal(t, byte(0b1010_1010), out[frame.OutDigitalOut])
	assert.Equal(t, byte(0b0000_1010), out[frame.OutDigitalOut+1])

	// Clearing one bit leaves the rest latched.
	require.NoError(t, o.SetDigitalOutput(3, false))
	out = o.encode()
	assert.Equal(t, byte(0b1010_0010), out[frame.OutDigitalOut])

	on, err := o.DigitalOutput(9)
	require.NoError(t, err)
	assert.True(t, on)

	require.ErrorIs(t, o.SetDigitalOutput(12, true), ErrInvalidChannel)
	require.ErrorIs(t, o.SetDigitalOutput(-1, true), ErrInvalidChannel)
}

func TestOutputState_RelayBits(t *testing.T) {
	t.Parallel()

	o := newOutputState()
	require.NoError(t, o.SetRelayOutput(1, true))
	require.NoError(t, o.SetRelayOutput(3, true))

	out := o.encode()
	assert.Equal(t, byte(0b0000_1010), out[frame.OutRelayOut])

	require.ErrorIs(t, o.SetRelayOutput(4, true), ErrInvalidChannel)
}

func TestOutputState_SystemByte(t *testing.T) {
	t.Parallel()

	o := newOutputState()
	o.SetRetainCopy(true)
	o.SetRetainEnable(true)
	o.SetGPIOPullupEnable(true)
	o.RequestSafeState()

	out := o.encode()
	assert.Equal(t, byte(0b0001_0111), out[frame.OutSystem])

	o.SetLEDDisable(true)
	out = o.encode()
	assert.Equal(t, byte(0b0001_1111), out[frame.OutSystem])
}

func TestOutputState_Watchdog(t *testing.T) {
	t.Parallel()

	o := newOutputState()
	require.NoError(t, o.SetWatchdog(Watchdog125ms))
	assert.Equal(t, byte(4), o.encode()[frame.OutWatchdog])
	assert.Equal(t, Watchdog125ms, o.WatchdogPeriod())

	require.NoError(t, o.SetWatchdog(WatchdogOff))
	assert.Equal(t, byte(0), o.encode()[frame.OutWatchdog])

	require.ErrorIs(t, o.SetWatchdog(Watchdog8s+1), ErrOutOfRange)
}

func TestOutputState_GPIOConfig(t *testing.T) {
	t.Parallel()

	t.Run("output_and_sensor_bits", func(t *testing.T) {
		t.Parallel()

		o := newOutputState()
		require.NoError(t, o.SetGPIOConfig(0, GPIOOutput))
		require.NoError(t, o.SetGPIOConfig(2, GPIOSensor))

		out := o.encode()
		// bits 0-3 output mode, bits 4-7 sensor mode
		assert.Equal(t, byte(0b0100_0001), out[frame.OutGPIOCtrl])

		require.NoError(t, o.SetGPIOOutput(0, true))
		assert.Equal(t, byte(0b0000_0001), o.encode()[frame.OutGPIOOut])
	})

	t.Run("pullup_requires_global_enable", func(t *testing.T) {
		t.Parallel()

		o := newOutputState()
		require.ErrorIs(t, o.SetGPIOConfig(1, GPIOInputPullup), ErrPullupNotEnabled)

		o.SetGPIOPullupEnable(true)
		require.NoError(t, o.SetGPIOConfig(1, GPIOInputPullup))
		// pullup selection travels in the GPIO out byte
		assert.Equal(t, byte(0b0000_0010), o.encode()[frame.OutGPIOOut])
	})

	t.Run("output_level_needs_output_mode", func(t *testing.T) {
		t.Parallel()

		o := newOutputState()
		require.ErrorIs(t, o.SetGPIOOutput(0, true), ErrGPIONotOutput)
	})

	t.Run("reconfigure_clears_mode_bits", func(t *testing.T) {
		t.Parallel()

		o := newOutputState()
		require.NoError(t, o.SetGPIOConfig(0, GPIOOutput))
		require.NoError(t, o.SetGPIOConfig(0, GPIOInput))
		assert.Equal(t, byte(0), o.encode()[frame.OutGPIOCtrl])
	})
}

func TestOutputState_Debounce(t *testing.T) {
	t.Parallel()

	o := newOutputState()
	require.NoError(t, o.SetDigitalDebounce(0, 10))
	require.NoError(t, o.SetDigitalDebounce(7, 255))
	require.NoError(t, o.SetGPIODebounce(1, 3))

	out := o.encode()
	assert.Equal(t, byte(10), out[frame.OutDigitalDebounce])
	assert.Equal(t, byte(255), out[frame.OutDigitalDebounce+7])
	assert.Equal(t, byte(3), out[frame.OutGPIODebounce+1])

	require.ErrorIs(t, o.SetDigitalDebounce(8, 1), ErrInvalidChannel)
	require.ErrorIs(t, o.SetGPIODebounce(2, 1), ErrInvalidChannel)
}

func TestOutputState_PWM(t *testing.T) {
	t.Parallel()

	t.Run("ctrl_byte_layout", func(t *testing.T) {
		t.Parallel()

		o := newOutputState()
		require.NoError(t, o.SetPWMConfig(0, PWMConfig{
			Mode:      PWMDutyCycle,
			Prescaler: PWMPrescaler16MHz,
			Frequency: 0x1234,
			ChannelA:  true,
		}))

		out := o.encode()
		// prescaler bits 7-5, channel B bit 4, channel A bit 3, mode bits 1-0
		assert.Equal(t, byte(0b0010_1001), out[frame.OutPWM])
		assert.Equal(t, uint16(0x1234), frame.Uint16(out, frame.OutPWM+1))
	})

	t.Run("second_group_offset", func(t *testing.T) {
		t.Parallel()

		o := newOutputState()
		require.NoError(t, o.SetPWMConfig(1, PWMConfig{Mode: PWMServo, ChannelA: true, ChannelB: true}))
		require.NoError(t, o.SetPWMValue(1, PWMChannelA, 1500))
		require.NoError(t, o.SetPWMValue(1, PWMChannelB, 2000))

		out := o.encode()
		base := frame.OutPWM + frame.PWMGroupLen
		assert.Equal(t, byte(0b0001_1000), out[base])
		assert.Equal(t, uint16(1500), frame.Uint16(out, base+3))
		assert.Equal(t, uint16(2000), frame.Uint16(out, base+5))

		value, err := o.PWMValue(1, PWMChannelB)
		require.NoError(t, err)
		assert.Equal(t, uint16(2000), value)
	})

	t.Run("reconfigure_resets_values", func(t *testing.T) {
		t.Parallel()

		o := newOutputState()
		require.NoError(t, o.SetPWMValue(0, PWMChannelA, 999))
		require.NoError(t, o.SetPWMConfig(0, PWMConfig{Mode: PWMFrequency}))

		value, err := o.PWMValue(0, PWMChannelA)
		require.NoError(t, err)
		assert.Zero(t, value)
	})

	t.Run("validation", func(t *testing.T) {
		t.Parallel()

		o := newOutputState()
		require.ErrorIs(t, o.SetPWMConfig(3, PWMConfig{}), ErrInvalidChannel)
		require.ErrorIs(t, o.SetPWMConfig(0, PWMConfig{Mode: PWMFrequency + 1}), ErrOutOfRange)
		require.ErrorIs(t, o.SetPWMValue(0, PWMChannel(2), 1), ErrInvalidChannel)
	})
}

func TestOutputState_Retain(t *testing.T) {
	t.Parallel()

	t.Run("requires_enable", func(t *testing.T) {
		t.Parallel()

		o := newOutputState()
		require.ErrorIs(t, o.WriteRetain([]byte("data")), ErrRetainNotEnabled)
	})

	t.Run("length_limit", func(t *testing.T) {
		t.Parallel()

		o := newOutputState()
		o.SetRetainEnable(true)
		require.ErrorIs(t, o.WriteRetain(make([]byte, frame.RetainLen+1)), ErrRetainTooLong)
		require.NoError(t, o.WriteRetain(make([]byte, frame.RetainLen)))
	})

	t.Run("short_write_zero_pads", func(t *testing.T) {
		t.Parallel()

		o := newOutputState()
		o.SetRetainEnable(true)
		require.NoError(t, o.WriteRetain(make([]byte, frame.RetainLen)))
		require.NoError(t, o.WriteRetain([]byte{0xAA, 0xBB}))

		got := o.Retain()
		require.Len(t, got, frame.RetainLen)
		assert.Equal(t, byte(0xAA), got[0])
		assert.Equal(t, byte(0xBB), got[1])
		for _, b := range got[2:] {
			assert.Zero(t, b)
		}
	})
}
