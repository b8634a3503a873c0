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

package boardsim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixtend-community/go-pixtendl/internal/frame"
)

// sealedFrame builds a valid output frame with the given mutations
// applied before sealing.
func sealedFrame(mutate func(buf []byte)) []byte {
	buf := make([]byte, frame.Len)
	buf[frame.OutModel] = frame.ModelL
	if mutate != nil {
		mutate(buf)
	}
	frame.PutCRC(buf, frame.HeaderStart, frame.HeaderEnd, frame.HeaderCRC)
	frame.PutCRC(buf, frame.DataStart, frame.DataEnd, frame.DataCRC)
	return buf
}

func errorCode(t *testing.T, resp []byte) uint8 {
	t.Helper()
	require.Len(t, resp, frame.Len)
	return resp[frame.InState] >> frame.StateErrorShift & frame.StateErrorMask
}

func TestSimulator_AcceptsValidFrame(t *testing.T) {
	t.Parallel()

	sim := New()
	resp, err := sim.Exchange(sealedFrame(nil))
	require.NoError(t, err)

	assert.Equal(t, uint8(0), errorCode(t, resp))
	assert.NotZero(t, resp[frame.InState]&frame.StateRun)
	assert.Equal(t, byte(frame.ModelL), resp[frame.InModel])
	assert.True(t, frame.CheckCRC(resp, frame.HeaderStart, frame.HeaderEnd, frame.HeaderCRC))
	assert.True(t, frame.CheckCRC(resp, frame.DataStart, frame.DataEnd, frame.DataCRC))
}

func TestSimulator_RejectsLikeFirmware(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		out      func() []byte
		wantCode uint8
	}{
		{
			name:     "short_frame",
			out:      func() []byte { return sealedFrame(nil)[:50] },
			wantCode: 3,
		},
		{
			name: "header_crc_broken",
			out: func() []byte {
				f := sealedFrame(nil)
				f[frame.OutWatchdog] ^= 0xFF // header byte, CRC not recomputed
				return f
			},
			wantCode: 5,
		},
		{
			name: "data_crc_broken",
			out: func() []byte {
				f := sealedFrame(nil)
				f[frame.OutDigitalOut] ^= 0xFF
				return f
			},
			wantCode: 2,
		},
		{
			name: "wrong_model",
			out: func() []byte {
				f := make([]byte, frame.Len)
				f[frame.OutModel] = 'S'
				frame.PutCRC(f, frame.HeaderStart, frame.HeaderEnd, frame.HeaderCRC)
				frame.PutCRC(f, frame.DataStart, frame.DataEnd, frame.DataCRC)
				return f
			},
			wantCode: 4,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			sim := New()
			resp, err := sim.Exchange(tt.out())
			require.NoError(t, err)
			assert.Equal(t, tt.wantCode, errorCode(t, resp))
		})
	}
}

func TestSimulator_LatchesOutputs(t *testing.T) {
	t.Parallel()

	sim := New()
	out := sealedFrame(func(buf []byte) {
		buf[frame.OutDigitalOut] = 0b1010_1010
		buf[frame.OutRelayOut] = 0b0000_1010
	})
	_, err := sim.Exchange(out)
	require.NoError(t, err)

	latched := sim.LastOutput()
	require.Len(t, latched, frame.Len)
	assert.Equal(t, byte(0b1010_1010), latched[frame.OutDigitalOut])
	assert.Equal(t, byte(0b0000_1010), latched[frame.OutRelayOut])
}

func TestSimulator_RetainCopyEchoesLastBlock(t *testing.T) {
	t.Parallel()

	sim := New()
	payload := []byte("counter=42")
	out := sealedFrame(func(buf []byte) {
		buf[frame.OutSystem] = frame.SysRetainEnable | frame.SysRetainCopy
		copy(buf[frame.OutRetain:], payload)
	})

	resp, err := sim.Exchange(out)
	require.NoError(t, err)
	assert.Equal(t, payload, resp[frame.InRetain:frame.InRetain+len(payload)])
}

func TestSimulator_RetainSurvivesPowerCycle(t *testing.T) {
	t.Parallel()

	sim := New()
	payload := []byte("persisted")
	out := sealedFrame(func(buf []byte) {
		buf[frame.OutSystem] = frame.SysRetainEnable | frame.SysSafe
		copy(buf[frame.OutRetain:], payload)
	})

	// Safe state request stores the retain block and drops the run bit.
	_, err := sim.Exchange(out)
	require.NoError(t, err)
	assert.False(t, sim.Running())

	sim.PowerCycle()
	require.True(t, sim.Running())

	resp, err := sim.Exchange(sealedFrame(nil))
	require.NoError(t, err)
	assert.Equal(t, payload, resp[frame.InRetain:frame.InRetain+len(payload)])
}

func TestSimulator_InputKnobs(t *testing.T) {
	t.Parallel()

	sim := New()
	sim.SetDigitalInput(0, true)
	sim.SetDigitalInput(9, true)
	sim.SetAnalogInput(2, 512)
	sim.SetGPIOInput(3, true)
	sim.SetSensor(1, 0x0105, 0x0203)

	resp, err := sim.Exchange(sealedFrame(nil))
	require.NoError(t, err)

	assert.Equal(t, byte(0b0000_0001), resp[frame.InDigitalIn])
	assert.Equal(t, byte(0b0000_0010), resp[frame.InDigitalIn+1])
	assert.Equal(t, uint16(512), frame.Uint16(resp, frame.InAnalogIn+4))
	assert.Equal(t, byte(0b0000_1000), resp[frame.InGPIOIn])
	base := frame.InSensor + frame.SensorLen
	assert.Equal(t, uint16(0x0105), frame.Uint16(resp, base))
	assert.Equal(t, uint16(0x0203), frame.Uint16(resp, base+2))
}

func TestSimulator_FaultInjection(t *testing.T) {
	t.Parallel()

	t.Run("corrupt_next", func(t *testing.T) {
		t.Parallel()

		sim := New()
		sim.CorruptNext()
		resp, err := sim.Exchange(sealedFrame(nil))
		require.NoError(t, err)
		assert.False(t, frame.CheckCRC(resp, frame.DataStart, frame.DataEnd, frame.DataCRC))
	})

	t.Run("short_next", func(t *testing.T) {
		t.Parallel()

		sim := New()
		sim.ShortFrameNext()
		resp, err := sim.Exchange(sealedFrame(nil))
		require.NoError(t, err)
		assert.Less(t, len(resp), frame.Len)
	})

	t.Run("fail_next", func(t *testing.T) {
		t.Parallel()

		sim := New()
		sim.FailNext(assert.AnError)
		_, err := sim.Exchange(sealedFrame(nil))
		require.ErrorIs(t, err, assert.AnError)

		// One-shot: the next exchange answers normally.
		_, err = sim.Exchange(sealedFrame(nil))
		require.NoError(t, err)
	})
}

func TestSimulator_DACWritesRecorded(t *testing.T) {
	t.Parallel()

	sim := New()
	require.NoError(t, sim.WriteDAC([]byte{0x98, 0x84}))
	require.NoError(t, sim.WriteDAC([]byte{0x01, 0x08}))

	writes := sim.DACWrites()
	require.Len(t, writes, 2)
	assert.Equal(t, []byte{0x98, 0x84}, writes[0])
	assert.Equal(t, []byte{0x01, 0x08}, writes[1])
}
